package metrics

import (
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMetrics_ObserveSearch(t *testing.T) {
	m := New()
	m.ObserveSearch(ModeTokens, 10*time.Millisecond, 3)
	m.ObserveSearch(ModeTokens, 20*time.Millisecond, 0)
	m.ObserveSearch(ModeBlank, time.Millisecond, 12)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.searchesTotal.WithLabelValues(ModeTokens, "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.searchesTotal.WithLabelValues(ModeBlank, "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.searchDuration))
}

func TestMetrics_ObserveSearchFailure(t *testing.T) {
	m := New()
	m.ObserveSearchFailure(ModeDayOnly)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.searchesTotal.WithLabelValues(ModeDayOnly, "error")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.searchesTotal.WithLabelValues(ModeDayOnly, "ok")))
}

func TestMetrics_Catalog(t *testing.T) {
	m := New()
	m.SetCatalogSize(42)
	m.AddRejectedRecords(2)
	m.AddRejectedRecords(1)
	assert.Equal(t, float64(42), testutil.ToFloat64(m.catalogSize))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.rejectedRecords))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SetCatalogSize(7)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "festfinder_catalog_festivals 7")
}
