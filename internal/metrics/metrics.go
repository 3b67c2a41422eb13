// Package metrics provides Prometheus metrics for the constructor store
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the store's counters. A nil *Metrics records nothing.
type Metrics struct {
	RevisionsWrittenTotal prometheus.Counter
	SnapshotUpsertsTotal  *prometheus.CounterVec
	SnapshotDeletesTotal  *prometheus.CounterVec
	CommonsOpsTotal       *prometheus.CounterVec
	RevisionCacheTotal    *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RevisionsWrittenTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "constructor_revisions_written_total",
				Help: "Total number of project revisions committed",
			},
		),
		SnapshotUpsertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "constructor_snapshot_upserts_total",
				Help: "Total number of snapshot create-or-update calls",
			},
			[]string{"type"},
		),
		SnapshotDeletesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "constructor_snapshot_deletes_total",
				Help: "Total number of snapshot deletions",
			},
			[]string{"mode"},
		),
		CommonsOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "constructor_commons_operations_total",
				Help: "Total number of commons publish and unpublish operations",
			},
			[]string{"operation"},
		),
		RevisionCacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "constructor_revision_cache_total",
				Help: "Revision cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) RevisionWritten() {
	if m == nil {
		return
	}
	m.RevisionsWrittenTotal.Inc()
}

func (m *Metrics) SnapshotUpserted(snapshotType string) {
	if m == nil {
		return
	}
	m.SnapshotUpsertsTotal.WithLabelValues(snapshotType).Inc()
}

func (m *Metrics) SnapshotDeleted(mode string) {
	if m == nil {
		return
	}
	m.SnapshotDeletesTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) CommonsOp(operation string) {
	if m == nil {
		return
	}
	m.CommonsOpsTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) RevisionCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.RevisionCacheTotal.WithLabelValues(result).Inc()
}
