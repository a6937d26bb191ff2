package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RowIndexed(2, 1)
	m.RowIndexed(0, 0)
	m.RowsDeleted(3)
	m.RowsDeleted(0)
	m.ObserveCondition("match")
	m.ObserveCondition("match")
	m.ObserveCondition("bitemporal")
	m.ObserveBranch("C3")
	m.SearchDone(time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rowsIndexed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.columnsSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invalidValues))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.rowsDeleted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.conditions.WithLabelValues("match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.branches.WithLabelValues("C3")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.searchLatency))

	_, err = New(reg)
	assert.Error(t, err, "registering twice must fail")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RowIndexed(1, 1)
		m.RowsDeleted(1)
		m.ObserveCondition("all")
		m.ObserveBranch("A")
		m.SearchDone(time.Now())
	})
}
