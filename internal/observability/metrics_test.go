package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return NewMetrics("fedsearch_test", prometheus.NewRegistry())
}

func TestNewMetrics(t *testing.T) {
	m := newTestMetrics(t)
	require.NotNil(t, m)
	require.NotNil(t, m.SearchesTotal)
	require.NotNil(t, m.CacheHits)
	require.NotNil(t, m.WarmingRuns)
}

func TestRecordSearch(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordSearch("keyword", 0.42, 10)
	m.RecordSearch("keyword", 0.1, 3)
	m.RecordSearch("doi", 0.05, 1)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.SearchesTotal.WithLabelValues("keyword")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesTotal.WithLabelValues("doi")))
}

func TestRecordCacheMetrics(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordCacheHit("l1", "SEARCH_RESULTS")
	m.RecordCacheHit("l2", "SEARCH_RESULTS")
	m.RecordCacheMiss("SEARCH_RESULTS")
	m.RecordCacheError("l2")
	m.RecordCacheEvictions(10000)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHits.WithLabelValues("l1", "SEARCH_RESULTS")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMisses.WithLabelValues("SEARCH_RESULTS")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheErrors.WithLabelValues("l2")))
	assert.Equal(t, float64(10000), testutil.ToFloat64(m.CacheEvictions))
}

func TestRecordSourceMetrics(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordSourceRequest("crossref", 0.2)
	m.RecordSourceRequestFailed("core", "timeout")
	m.RecordSourceTimeout("core")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRequestsTotal.WithLabelValues("crossref")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRequestsFailed.WithLabelValues("core", "timeout")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceTimeouts.WithLabelValues("core")))
}

func TestRecordWarmingRun(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordWarmingRun("completed", 1.5)
	m.RecordWarmingRun("skipped", 0)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.WarmingRuns.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WarmingRuns.WithLabelValues("skipped")))
}
