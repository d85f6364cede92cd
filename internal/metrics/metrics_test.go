package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsAdapterAndCache(t *testing.T) {
	m := New()

	m.AdapterCall("CoinGecko", 120*time.Millisecond, nil)
	m.AdapterCall("CoinGecko", time.Second, errors.New("boom"))
	m.CacheHit()
	m.CacheHit()
	m.CacheMiss()

	require.InDelta(t, 1, testutil.ToFloat64(m.adapterCalls.WithLabelValues("CoinGecko", "ok")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.adapterCalls.WithLabelValues("CoinGecko", "error")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")), 0)
}

func TestMetrics_PassReplacesProvenanceMix(t *testing.T) {
	m := New()
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	m.Pass("read", map[string]int{"provider-a": 4, "fallback": 1}, at)
	m.Pass("refresh", map[string]int{"fallback": 5}, at)

	require.InDelta(t, 1, testutil.ToFloat64(m.passes.WithLabelValues("read")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.passes.WithLabelValues("refresh")), 0)
	require.InDelta(t, 5, testutil.ToFloat64(m.quotes.WithLabelValues("fallback")), 0)
	require.Equal(t, 1, testutil.CollectAndCount(m.quotes), "stale provenance labels should be dropped")
	require.InDelta(t, float64(at.Unix()), testutil.ToFloat64(m.lastPass), 0)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.CacheMiss()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `priceoracle_cache_lookups_total{result="miss"} 1`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.AdapterCall("x", time.Second, nil)
	m.CacheHit()
	m.CacheMiss()
	m.Pass("read", nil, time.Now())
	require.Nil(t, m.Registry())

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
