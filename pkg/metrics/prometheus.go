package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetches        *prometheus.CounterVec
	retries        *prometheus.CounterVec
	degradations   *prometheus.CounterVec
	persists       *prometheus.CounterVec
	ingests        *prometheus.CounterVec
	ingestDuration prometheus.Histogram
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macropull_provider_fetches_total",
				Help: "Provider fetches by outcome (ok, absent, degraded)",
			},
			[]string{"provider", "series", "outcome"},
		),
		retries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macropull_provider_retries_total",
				Help: "Retries issued against a provider",
			},
			[]string{"provider"},
		),
		degradations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macropull_provider_degradations_total",
				Help: "Times a provider flipped to degraded",
			},
			[]string{"provider"},
		),
		persists: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macropull_persists_total",
				Help: "Record persist attempts by result",
			},
			[]string{"result"},
		),
		ingests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macropull_ingests_total",
				Help: "Single-date ingestions by result",
			},
			[]string{"result"},
		),
		ingestDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "macropull_ingest_duration_seconds",
				Help:    "Duration of one date's ingestion",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
	}
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordFetch records one provider fetch outcome.
func (r *Recorder) RecordFetch(provider, series, outcome string) {
	r.fetches.WithLabelValues(provider, series, outcome).Inc()
}

// RecordRetry records a retry against a provider.
func (r *Recorder) RecordRetry(provider string) {
	r.retries.WithLabelValues(provider).Inc()
}

// RecordDegraded records a provider degradation.
func (r *Recorder) RecordDegraded(provider string) {
	r.degradations.WithLabelValues(provider).Inc()
}

// RecordPersist records a persist attempt result.
func (r *Recorder) RecordPersist(success bool) {
	r.persists.WithLabelValues(result(success)).Inc()
}

// RecordIngest records a completed single-date ingestion.
func (r *Recorder) RecordIngest(success bool) {
	r.ingests.WithLabelValues(result(success)).Inc()
}

// ObserveIngestDuration records how long one date took end to end.
func (r *Recorder) ObserveIngestDuration(d time.Duration) {
	r.ingestDuration.Observe(d.Seconds())
}
