package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tft"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	evaluations *prometheus.CounterVec
	transitions *prometheus.CounterVec
	skipped     *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	confidence  *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered against the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered against reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phase_evaluations_total",
				Help:      "Total number of phase evaluations that produced a result",
			},
			[]string{"phase"},
		),
		transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phase_transitions_total",
				Help:      "Total number of committed phase transitions",
			},
			[]string{"from", "to"},
		),
		skipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phase_skipped_total",
				Help:      "Evaluations that produced no result",
			},
			[]string{"reason"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		confidence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "phase_confidence",
				Help:      "Confidence of the current phase per asset",
			},
			[]string{"asset"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordEvaluation(phase string) {
	r.evaluations.WithLabelValues(phase).Inc()
}

// RecordTransition counts a transition. from is "NONE" for the first classification.
func (r *Recorder) RecordTransition(from, to string) {
	if from == "" {
		from = "NONE"
	}
	r.transitions.WithLabelValues(from, to).Inc()
}

func (r *Recorder) RecordSkipped(reason string) {
	r.skipped.WithLabelValues(reason).Inc()
}

// RecordConfidence records the current confidence for an asset.
func (r *Recorder) RecordConfidence(asset string, confidence float64) {
	r.confidence.WithLabelValues(asset).Set(confidence)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordEvaluation(string) {}
func (Nop) RecordTransition(string, string) {}
func (Nop) RecordSkipped(string) {}
func (Nop) RecordConfidence(string, float64) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
