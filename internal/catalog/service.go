// Package catalog implements the metadata proxy: a small set of read-only
// lookups over the upstream movie/TV catalog. Only TopByProvider is cached;
// every other operation is forwarded as-is.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/catalog-hub/catalog-hub/internal/cache"
	"github.com/catalog-hub/catalog-hub/internal/metrics"
	"github.com/catalog-hub/catalog-hub/internal/upstream"
)

// Options 描述构建 Service 所需的依赖。
type Options struct {
	Upstream       upstream.Fetcher
	Cache          *cache.Memory[*ProviderTop]
	DefaultRegion  string
	CoalesceMisses bool
	Metrics        *metrics.Metrics
}

// Service 持有上游客户端与 TopByProvider 缓存，所有方法可并发调用。
type Service struct {
	upstream      upstream.Fetcher
	cache         *cache.Memory[*ProviderTop]
	defaultRegion string
	coalesce      bool
	sf            singleflight.Group
	metrics       *metrics.Metrics
}

// NewService 校验依赖并返回 Service。
func NewService(opts Options) (*Service, error) {
	if opts.Upstream == nil {
		return nil, errors.New("upstream fetcher is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("response cache is required")
	}
	region := strings.ToUpper(strings.TrimSpace(opts.DefaultRegion))
	if region == "" {
		region = "US"
	}
	return &Service{
		upstream:      opts.Upstream,
		cache:         opts.Cache,
		defaultRegion: region,
		coalesce:      opts.CoalesceMisses,
		metrics:       opts.Metrics,
	}, nil
}

// Cache exposes the response cache for diagnostics.
func (s *Service) Cache() *cache.Memory[*ProviderTop] {
	return s.cache
}

// DefaultRegion 返回未指定 region 时使用的地区。
func (s *Service) DefaultRegion() string {
	return s.defaultRegion
}

// Trending 透传 /trending/{mediaType}/{timeWindow}。
func (s *Service) Trending(ctx context.Context, mediaType MediaType, window TimeWindow, page int) (result json.RawMessage, err error) {
	defer s.observe(OpTrending, time.Now(), &err)

	if _, err := ParseMediaType(string(mediaType), true); err != nil {
		return nil, err
	}
	if _, err := ParseTimeWindow(string(window)); err != nil {
		return nil, err
	}
	query := url.Values{}
	setPage(query, page)

	var raw json.RawMessage
	if err := s.upstream.Get(ctx, fmt.Sprintf("/trending/%s/%s", mediaType, window), query, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// SearchMulti 搜索电影与剧集。空查询直接返回空结果且不访问上游；
// 上游结果中 movie/tv 以外的条目（例如 person）会被丢弃。
func (s *Service) SearchMulti(ctx context.Context, query string, page int) (result *Page, err error) {
	defer s.observe(OpSearchMulti, time.Now(), &err)

	query = strings.TrimSpace(query)
	if query == "" {
		return emptyPage(page), nil
	}

	params := url.Values{"query": {query}}
	setPage(params, page)

	var upstreamPage Page
	if err := s.upstream.Get(ctx, "/search/multi", params, &upstreamPage); err != nil {
		return nil, err
	}

	filtered := make([]Title, 0, len(upstreamPage.Results))
	for _, item := range upstreamPage.Results {
		switch item.MediaType() {
		case MediaMovie, MediaTV:
			filtered = append(filtered, item)
		}
	}
	upstreamPage.Results = filtered
	return &upstreamPage, nil
}

// Discover 透传 /discover/{mediaType}，只发送调用方给出的过滤条件。
func (s *Service) Discover(ctx context.Context, mediaType MediaType, filters DiscoverFilters) (result json.RawMessage, err error) {
	defer s.observe(OpDiscover, time.Now(), &err)

	if _, err := ParseMediaType(string(mediaType), false); err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := s.upstream.Get(ctx, "/discover/"+string(mediaType), filters.query(), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// TitleDetails 透传 /movie/{id} 或 /tv/{id}。
func (s *Service) TitleDetails(ctx context.Context, mediaType MediaType, id int) (result json.RawMessage, err error) {
	defer s.observe(OpTitleDetails, time.Now(), &err)

	if _, err := ParseMediaType(string(mediaType), false); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, fmt.Errorf("%w: id %d", ErrInvalidArgument, id)
	}

	var raw json.RawMessage
	if err := s.upstream.Get(ctx, fmt.Sprintf("/%s/%d", mediaType, id), nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// SeasonDetails 透传 /tv/{id}/season/{n}。第 0 季（特别篇）是合法值。
func (s *Service) SeasonDetails(ctx context.Context, tvID, seasonNumber int) (result json.RawMessage, err error) {
	defer s.observe(OpSeasonDetails, time.Now(), &err)

	if tvID <= 0 {
		return nil, fmt.Errorf("%w: tv id %d", ErrInvalidArgument, tvID)
	}
	if seasonNumber < 0 {
		return nil, fmt.Errorf("%w: season number %d", ErrInvalidArgument, seasonNumber)
	}

	var raw json.RawMessage
	if err := s.upstream.Get(ctx, fmt.Sprintf("/tv/%d/season/%d", tvID, seasonNumber), nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// GenreList 透传 /genre/{mediaType}/list。
func (s *Service) GenreList(ctx context.Context, mediaType MediaType) (result json.RawMessage, err error) {
	defer s.observe(OpGenreList, time.Now(), &err)

	if _, err := ParseMediaType(string(mediaType), false); err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := s.upstream.Get(ctx, fmt.Sprintf("/genre/%s/list", mediaType), nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Service) observe(operation string, started time.Time, err *error) {
	var e error
	if err != nil {
		e = *err
	}
	s.metrics.ObserveCatalog(operation, started, e)
}

func (f DiscoverFilters) query() url.Values {
	query := url.Values{}
	if v := strings.TrimSpace(f.Genres); v != "" {
		query.Set("with_genres", v)
	}
	if v := strings.TrimSpace(f.SortBy); v != "" {
		query.Set("sort_by", v)
	}
	setPage(query, f.Page)
	if v := strings.TrimSpace(f.WatchProviders); v != "" {
		query.Set("with_watch_providers", v)
	}
	if v := strings.TrimSpace(f.WatchRegion); v != "" {
		query.Set("watch_region", v)
	}
	return query
}

func setPage(query url.Values, page int) {
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
}

func emptyPage(page int) *Page {
	if page <= 0 {
		page = 1
	}
	return &Page{Page: page, Results: []Title{}}
}
