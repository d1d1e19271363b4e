// Package metrics 定义 catalog 代理的 Prometheus 指标。所有采集器注册在独立的
// Registry 上，由 main 创建并注入，测试可以各自持有互不干扰的实例。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Outcome 标签取值。
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

// Metrics 聚合 catalog 请求、缓存与上游调用的采集器。
type Metrics struct {
	Registry *prometheus.Registry

	CatalogRequests  *prometheus.CounterVec
	CatalogDuration  *prometheus.HistogramVec
	CacheEvents      *prometheus.CounterVec
	UpstreamRequests *prometheus.CounterVec
	BreakerState     *prometheus.GaugeVec
}

// New 创建并注册全部采集器，同时附带 Go runtime 与进程指标。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		CatalogRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_requests_total",
				Help: "Total number of catalog operations handled",
			},
			[]string{"operation", "outcome"},
		),
		CatalogDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_request_duration_seconds",
				Help:    "Catalog operation duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		CacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_cache_events_total",
				Help: "Response cache lookups by result",
			},
			[]string{"event"},
		),
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_upstream_requests_total",
				Help: "Outbound calls to the metadata provider",
			},
			[]string{"endpoint", "outcome"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "catalog_upstream_breaker_state",
				Help: "Upstream circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.CatalogRequests,
		m.CatalogDuration,
		m.CacheEvents,
		m.UpstreamRequests,
		m.BreakerState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCatalog 记录一次 catalog 操作的结果与耗时。nil 接收者时为空操作。
func (m *Metrics) ObserveCatalog(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.CatalogRequests.WithLabelValues(operation, outcome).Inc()
	m.CatalogDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// CacheHit 记录一次缓存命中。
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheEvents.WithLabelValues("hit").Inc()
}

// CacheMiss 记录一次缓存未命中（含过期）。
func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheEvents.WithLabelValues("miss").Inc()
}

// ObserveUpstream 记录一次上游调用。
func (m *Metrics) ObserveUpstream(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
}

// SetBreakerState 更新熔断器状态指标。
func (m *Metrics) SetBreakerState(name string, value float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(value)
}
