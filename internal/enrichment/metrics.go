package enrichment

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// Outcome labels for marks_enrichment_jobs_total.
const (
	OutcomeCompleted   = "completed"
	OutcomeFailed      = "failed"
	OutcomeSkipped     = "skipped"
	OutcomeMissing     = "missing"
	OutcomeConflict    = "conflict"
	OutcomeInterrupted = "interrupted"
	OutcomeError       = "error"
)

// Metrics holds the enrichment Prometheus metrics
type Metrics struct {
	Jobs          *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec
	QueueDepth    prometheus.Gauge
}

// NewMetrics registers the enrichment metrics on reg. A nil reg uses the
// default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Jobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "marks_enrichment_jobs_total",
			Help: "Enrichment jobs handled, by outcome",
		}, []string{"outcome"}),

		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marks_enrichment_stage_duration_seconds",
			Help:    "Time spent in each enrichment stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"stage"}),

		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "marks_enrichment_stage_failures_total",
			Help: "Enrichment stage failures, by stage and error kind",
		}, []string{"stage", "kind"}),

		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "marks_queue_depth",
			Help: "Enrichment jobs waiting in the ready list",
		}),
	}
}

func (m *Metrics) observeStage(s Stage, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(string(s)).Observe(d.Seconds())
}

func (m *Metrics) stageFailed(s Stage, kind domain.ErrorKind) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(string(s), string(kind)).Inc()
}

func (m *Metrics) job(outcome string) {
	if m == nil {
		return
	}
	m.Jobs.WithLabelValues(outcome).Inc()
}

// SetQueueDepth records the ready-list length.
func (m *Metrics) SetQueueDepth(n int64) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
