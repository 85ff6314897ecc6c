package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	snapshotFetchTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "snapshot_fetch_time",
		Help:      "Delay between a subscription opening and its first snapshot (ms)",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		Namespace: "health",
		Subsystem: "tracker",
	}, []string{"collection"})
	storeWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "store_writes_total",
		Help:      "Writes issued to the document database",
		Namespace: "health",
		Subsystem: "tracker",
	}, []string{"collection", "op", "result"})
	activeSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name:      "active_subscriptions",
		Help:      "Open live subscriptions",
		Namespace: "health",
		Subsystem: "tracker",
	}, []string{"collection"})
	lateSnapshotsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "late_snapshots_dropped_total",
		Help:      "Snapshots delivered after their store was closed",
		Namespace: "health",
		Subsystem: "tracker",
	})
	exportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "exports_total",
		Help:      "CSV exports by kind and result",
		Namespace: "health",
		Subsystem: "tracker",
	}, []string{"kind", "result"})
)

func writeResult(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
