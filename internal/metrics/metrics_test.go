package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCatalog(t *testing.T) {
	m := New()
	started := time.Now()

	m.ObserveCatalog("trending", started, nil)
	m.ObserveCatalog("trending", started, errors.New("boom"))
	m.ObserveCatalog("trending", started, nil)

	if got := testutil.ToFloat64(m.CatalogRequests.WithLabelValues("trending", OutcomeSuccess)); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.CatalogRequests.WithLabelValues("trending", OutcomeFailure)); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
}

func TestCacheEvents(t *testing.T) {
	m := New()
	m.CacheMiss()
	m.CacheHit()
	m.CacheHit()

	if got := testutil.ToFloat64(m.CacheEvents.WithLabelValues("hit")); got != 2 {
		t.Fatalf("expected 2 hits, got %v", got)
	}
	if got := testutil.ToFloat64(m.CacheEvents.WithLabelValues("miss")); got != 1 {
		t.Fatalf("expected 1 miss, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.CacheHit()
	m.CacheMiss()
	m.ObserveUpstream("discover/movie", OutcomeSuccess)
	m.ObserveCatalog("genre_list", time.Now(), nil)
	m.SetBreakerState("upstream", 0)
}

func TestIndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.ObserveUpstream("trending", OutcomeSuccess)

	if got := testutil.ToFloat64(b.UpstreamRequests.WithLabelValues("trending", OutcomeSuccess)); got != 0 {
		t.Fatalf("registries must not share collectors, got %v", got)
	}
}
