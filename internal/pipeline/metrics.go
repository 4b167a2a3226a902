package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks pipeline stage latency and terminal outcomes per action.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	outcomes      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		stageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vaultdao_pipeline_stage_duration_seconds",
			Help:    "Time from pipeline start to the end of each reached stage",
			Buckets: prometheus.DefBuckets,
		}, []string{"action", "stage"}),
		outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultdao_pipeline_outcomes_total",
			Help: "Terminal pipeline outcomes by action",
		}, []string{"action", "outcome"}),
	}
}

func (pl *Pipeline) observe(action, stage string, start time.Time, outcome Outcome) {
	if pl.metrics == nil {
		return
	}
	pl.metrics.stageDuration.WithLabelValues(action, stage).Observe(time.Since(start).Seconds())
	pl.metrics.outcomes.WithLabelValues(action, outcome.String()).Inc()
}
