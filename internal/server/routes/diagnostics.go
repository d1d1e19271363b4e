// Package routes registers the operator-facing diagnostics endpoints under
// the /-/ prefix. They are not part of the catalog API surface.
package routes

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/catalog-hub/catalog-hub/internal/cache"
	"github.com/catalog-hub/catalog-hub/internal/metrics"
	"github.com/catalog-hub/catalog-hub/internal/version"
)

// CacheReporter 是 /-/status 需要的缓存视图。
type CacheReporter interface {
	Stats() cache.Stats
	TTL() time.Duration
}

// DiagnosticsOptions 汇总诊断接口读取的运行时信息。
type DiagnosticsOptions struct {
	Cache         CacheReporter
	Metrics       *metrics.Metrics
	UpstreamHost  string
	DefaultRegion string
	StartedAt     time.Time
}

type statusPayload struct {
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Upstream      string       `json:"upstream_host"`
	DefaultRegion string       `json:"default_region"`
	Cache         cachePayload `json:"cache"`
}

type cachePayload struct {
	TTLSeconds int64 `json:"ttl_seconds"`
	cache.Stats
}

// RegisterDiagnostics 暴露 /-/status 与 /-/metrics。
func RegisterDiagnostics(app *fiber.App, opts DiagnosticsOptions) {
	if app == nil {
		return
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		return c.JSON(buildStatus(opts, time.Now()))
	})

	if opts.Metrics != nil {
		handler := promhttp.HandlerFor(opts.Metrics.Registry, promhttp.HandlerOpts{})
		app.Get("/-/metrics", adaptor.HTTPHandler(handler))
	}
}

func buildStatus(opts DiagnosticsOptions, now time.Time) statusPayload {
	payload := statusPayload{
		Version:       version.Full(),
		Upstream:      opts.UpstreamHost,
		DefaultRegion: opts.DefaultRegion,
	}
	if !opts.StartedAt.IsZero() {
		payload.UptimeSeconds = int64(now.Sub(opts.StartedAt) / time.Second)
	}
	if opts.Cache != nil {
		payload.Cache = cachePayload{
			TTLSeconds: int64(opts.Cache.TTL() / time.Second),
			Stats:      opts.Cache.Stats(),
		}
	}
	return payload
}
