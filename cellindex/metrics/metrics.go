// Package metrics exposes Prometheus counters for an index. A nil *Metrics is
// valid and records nothing, so callers never need to check before recording.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cellindex"

// Metrics holds the collectors of one index.
type Metrics struct {
	rowsIndexed    prometheus.Counter
	columnsSkipped prometheus.Counter
	invalidValues  prometheus.Counter
	rowsDeleted    prometheus.Counter
	conditions     *prometheus.CounterVec
	branches       *prometheus.CounterVec
	searchLatency  prometheus.Histogram
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is useful in tests.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		rowsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_indexed_total",
			Help:      "Rows written to the index.",
		}),
		columnsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "columns_skipped_total",
			Help:      "Row columns no mapper was registered for.",
		}),
		invalidValues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_values_total",
			Help:      "Column values dropped because a mapper could not convert them.",
		}),
		rowsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_deleted_total",
			Help:      "Rows removed from the index.",
		}),
		conditions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conditions_built_total",
			Help:      "Search conditions translated, by condition type.",
		}, []string{"type"}),
		branches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bitemporal_branches_total",
			Help:      "Bitemporal query plans, by branch.",
		}, []string{"branch"}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.rowsIndexed, m.columnsSkipped, m.invalidValues, m.rowsDeleted,
		m.conditions, m.branches, m.searchLatency,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RowIndexed records one written row with its skipped columns and invalid
// values.
func (m *Metrics) RowIndexed(skipped, invalid int) {
	if m == nil {
		return
	}
	m.rowsIndexed.Inc()
	m.columnsSkipped.Add(float64(skipped))
	m.invalidValues.Add(float64(invalid))
}

func (m *Metrics) RowsDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsDeleted.Add(float64(n))
}

// ObserveCondition counts a translated condition. It makes Metrics usable as
// a query.Observer.
func (m *Metrics) ObserveCondition(conditionType string) {
	if m == nil {
		return
	}
	m.conditions.WithLabelValues(conditionType).Inc()
}

// ObserveBranch counts a bitemporal plan branch.
func (m *Metrics) ObserveBranch(branch string) {
	if m == nil {
		return
	}
	m.branches.WithLabelValues(branch).Inc()
}

// SearchDone records the latency of a search started at start.
func (m *Metrics) SearchDone(start time.Time) {
	if m == nil {
		return
	}
	m.searchLatency.Observe(time.Since(start).Seconds())
}
