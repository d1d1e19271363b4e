// Package proxy maps the public HTTP surface onto the catalog service and the
// per-user record store. Handlers parse path/query parameters, call exactly
// one service operation and log one structured line per request.
package proxy

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/catalog-hub/catalog-hub/internal/catalog"
	"github.com/catalog-hub/catalog-hub/internal/logging"
	"github.com/catalog-hub/catalog-hub/internal/server"
	"github.com/catalog-hub/catalog-hub/internal/userstore"
)

const headerCacheHit = "X-Catalog-Cache-Hit"

// Handler 负责把 /api/catalog 与 /api/users 请求转交给对应服务，
// 并把任何失败统一渲染为 {"error": "..."}。
type Handler struct {
	catalog *catalog.Service
	users   userstore.Store
	logger  *logrus.Logger
}

// NewHandler constructs a handler. users may be nil, in which case the
// /api/users routes are not registered.
func NewHandler(svc *catalog.Service, users userstore.Store, logger *logrus.Logger) *Handler {
	return &Handler{
		catalog: svc,
		users:   users,
		logger:  logger,
	}
}

// Register 挂载全部业务路由。
func (h *Handler) Register(app *fiber.App) {
	api := app.Group("/api/catalog")
	api.Get("/trending/:mediaType/:timeWindow", h.trending)
	api.Get("/search/multi", h.searchMulti)
	api.Get("/discover/:mediaType", h.discover)
	api.Get("/provider/:providerId/top", h.topByProvider)
	api.Get("/movie/:id", h.movieDetails)
	api.Get("/tv/:id", h.tvDetails)
	api.Get("/tv/:id/season/:seasonNumber", h.seasonDetails)
	api.Get("/genre/:mediaType/list", h.genreList)

	if h.users != nil {
		users := app.Group("/api/users")
		users.Get("/:userKey/:field", h.readUserRecord)
		users.Put("/:userKey/:field", h.writeUserRecord)
	}
}

// result 是一次 catalog 调用的输出：透传的原始 JSON 或需要编码的值。
type result struct {
	raw   json.RawMessage
	value any
	cache *catalog.CacheInfo
}

type operationFunc func(ctx context.Context, c fiber.Ctx) (result, error)

// serve 执行单个 catalog 操作，记录日志并写出响应。
func (h *Handler) serve(c fiber.Ctx, operation string, fn operationFunc) error {
	started := time.Now()
	res, err := fn(requestContext(c), c)
	h.logResult(c, operation, res.cache, started, err)
	if err != nil {
		return server.RenderError(c, fiber.StatusInternalServerError, err.Error())
	}

	if res.cache != nil {
		c.Set(headerCacheHit, strconv.FormatBool(res.cache.Hit))
	}
	if res.raw != nil {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
		return c.Send(res.raw)
	}
	return c.JSON(res.value)
}

func (h *Handler) trending(c fiber.Ctx) error {
	return h.serve(c, catalog.OpTrending, func(ctx context.Context, c fiber.Ctx) (result, error) {
		mediaType, err := catalog.ParseMediaType(c.Params("mediaType"), true)
		if err != nil {
			return result{}, err
		}
		window, err := catalog.ParseTimeWindow(c.Params("timeWindow"))
		if err != nil {
			return result{}, err
		}
		page, err := queryInt(c, "page")
		if err != nil {
			return result{}, err
		}
		raw, err := h.catalog.Trending(ctx, mediaType, window, page)
		return result{raw: raw}, err
	})
}

func (h *Handler) searchMulti(c fiber.Ctx) error {
	return h.serve(c, catalog.OpSearchMulti, func(ctx context.Context, c fiber.Ctx) (result, error) {
		page, err := queryInt(c, "page")
		if err != nil {
			return result{}, err
		}
		found, err := h.catalog.SearchMulti(ctx, c.Query("query"), page)
		return result{value: found}, err
	})
}

func (h *Handler) discover(c fiber.Ctx) error {
	return h.serve(c, catalog.OpDiscover, func(ctx context.Context, c fiber.Ctx) (result, error) {
		mediaType, err := catalog.ParseMediaType(c.Params("mediaType"), false)
		if err != nil {
			return result{}, err
		}
		page, err := queryInt(c, "page")
		if err != nil {
			return result{}, err
		}
		raw, err := h.catalog.Discover(ctx, mediaType, catalog.DiscoverFilters{
			Genres:         c.Query("with_genres"),
			SortBy:         c.Query("sort_by"),
			Page:           page,
			WatchProviders: c.Query("with_watch_providers"),
			WatchRegion:    c.Query("watch_region"),
		})
		return result{raw: raw}, err
	})
}

func (h *Handler) topByProvider(c fiber.Ctx) error {
	return h.serve(c, catalog.OpTopByProvider, func(ctx context.Context, c fiber.Ctx) (result, error) {
		providerID, err := paramInt(c, "providerId")
		if err != nil {
			return result{}, err
		}
		top, info, err := h.catalog.TopByProvider(ctx, providerID, c.Query("region"))
		if info.Key == "" {
			return result{value: top}, err
		}
		return result{value: top, cache: &info}, err
	})
}

func (h *Handler) movieDetails(c fiber.Ctx) error {
	return h.titleDetails(c, catalog.MediaMovie)
}

func (h *Handler) tvDetails(c fiber.Ctx) error {
	return h.titleDetails(c, catalog.MediaTV)
}

func (h *Handler) titleDetails(c fiber.Ctx, mediaType catalog.MediaType) error {
	return h.serve(c, catalog.OpTitleDetails, func(ctx context.Context, c fiber.Ctx) (result, error) {
		id, err := paramInt(c, "id")
		if err != nil {
			return result{}, err
		}
		raw, err := h.catalog.TitleDetails(ctx, mediaType, id)
		return result{raw: raw}, err
	})
}

func (h *Handler) seasonDetails(c fiber.Ctx) error {
	return h.serve(c, catalog.OpSeasonDetails, func(ctx context.Context, c fiber.Ctx) (result, error) {
		tvID, err := paramInt(c, "id")
		if err != nil {
			return result{}, err
		}
		season, err := paramInt(c, "seasonNumber")
		if err != nil {
			return result{}, err
		}
		raw, err := h.catalog.SeasonDetails(ctx, tvID, season)
		return result{raw: raw}, err
	})
}

func (h *Handler) genreList(c fiber.Ctx) error {
	return h.serve(c, catalog.OpGenreList, func(ctx context.Context, c fiber.Ctx) (result, error) {
		mediaType, err := catalog.ParseMediaType(c.Params("mediaType"), false)
		if err != nil {
			return result{}, err
		}
		raw, err := h.catalog.GenreList(ctx, mediaType)
		return result{raw: raw}, err
	})
}

func (h *Handler) logResult(c fiber.Ctx, operation string, info *catalog.CacheInfo, started time.Time, err error) {
	var (
		cacheKey string
		cacheHit bool
	)
	if info != nil {
		cacheKey = info.Key
		cacheHit = info.Hit
	}
	fields := logging.RequestFields(operation, cacheKey, cacheHit)
	fields["action"] = "catalog"
	fields["path"] = c.Path()
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID := server.RequestID(c); requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("catalog_failed")
		return
	}
	h.logger.WithFields(fields).Info("catalog_complete")
}

func requestContext(c fiber.Ctx) context.Context {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

// queryInt 解析可选整数查询参数；缺失时返回 0。
func queryInt(c fiber.Ctx, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", catalog.ErrInvalidArgument, key, raw)
	}
	return v, nil
}

func paramInt(c fiber.Ctx, key string) (int, error) {
	raw := strings.TrimSpace(c.Params(key))
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", catalog.ErrInvalidArgument, key, raw)
	}
	return v, nil
}
