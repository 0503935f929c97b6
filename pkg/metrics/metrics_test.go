package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSearch("hybrid", "ok", "miss", 0.01, 3)
		m.BranchFailed("semantic")
		m.ConceptCall("timeout")
		m.CacheResult(true)
		m.IndexState(10, 2)
		m.IndexWrite("upsert")
		m.IndexBuild("ok")
		m.HistoryRecord("ok")
		m.BreakerState("concepts", 1)
	})
}

func TestRecordedValues(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.ObserveSearch("hybrid", "zero_result", "miss", 0.02, 0)
	m.ObserveSearch("hybrid", "zero_result", "miss", 0.02, 0)
	m.BranchFailed("semantic")
	m.CacheResult(false)
	m.IndexState(42, 7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("hybrid", "zero_result")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BranchFailuresTotal.WithLabelValues("semantic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.IndexDocuments))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.IndexGeneration))
}
