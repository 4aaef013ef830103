package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the sync engine's Prometheus collectors.
type Metrics struct {
	Runs        *prometheus.CounterVec
	Pushes      *prometheus.CounterVec
	Uploads     *prometheus.CounterVec
	Pulled      prometheus.Counter
	RunDuration prometheus.Histogram
	Pending     prometheus.Gauge
}

// NewMetrics registers the collectors with reg. A nil reg uses a private
// registry, which keeps tests and embedded uses from colliding.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		Runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldsync_sync_runs_total",
				Help: "Sync runs by outcome",
			},
			[]string{"outcome"},
		),
		Pushes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldsync_sync_pushes_total",
				Help: "Record pushes by record kind and result",
			},
			[]string{"kind", "result"},
		),
		Uploads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldsync_asset_uploads_total",
				Help: "Attachment uploads by result",
			},
			[]string{"result"},
		),
		Pulled: f.NewCounter(
			prometheus.CounterOpts{
				Name: "fieldsync_sync_pulled_total",
				Help: "Server records applied to the local store",
			},
		),
		RunDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fieldsync_sync_run_duration_seconds",
				Help:    "Duration of sync runs that reached the network",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		Pending: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "fieldsync_pending_records",
				Help: "Pending inspections plus pending entries",
			},
		),
	}
}

const (
	outcomeOK         = "ok"
	outcomePartial    = "partial"
	outcomeError      = "error"
	outcomeOffline    = "offline"
	outcomeInProgress = "in_progress"

	resultOK       = "ok"
	resultConflict = "conflict"
	resultFailed   = "failed"
)
