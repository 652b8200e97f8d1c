package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordEvaluation("DEFECT")
	r.RecordEvaluation("DEFECT")
	r.RecordTransition("", "COOPERATE")
	r.RecordTransition("COOPERATE", "DEFECT")
	r.RecordSkipped("no_market_data")
	r.RecordError("phase_store")

	if got := testutil.ToFloat64(r.evaluations.WithLabelValues("DEFECT")); got != 2 {
		t.Fatalf("evaluations = %v", got)
	}
	if got := testutil.ToFloat64(r.transitions.WithLabelValues("NONE", "COOPERATE")); got != 1 {
		t.Fatalf("initial transition = %v", got)
	}
	if got := testutil.ToFloat64(r.transitions.WithLabelValues("COOPERATE", "DEFECT")); got != 1 {
		t.Fatalf("transition = %v", got)
	}
	if got := testutil.ToFloat64(r.skipped.WithLabelValues("no_market_data")); got != 1 {
		t.Fatalf("skipped = %v", got)
	}
	if got := testutil.ToFloat64(r.errorsTotal.WithLabelValues("phase_store")); got != 1 {
		t.Fatalf("errors = %v", got)
	}
}

func TestRecorderConfidenceGauge(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())
	r.RecordConfidence("NVDA", 0.84)
	r.RecordConfidence("NVDA", 0.62)
	if got := testutil.ToFloat64(r.confidence.WithLabelValues("NVDA")); got != 0.62 {
		t.Fatalf("confidence = %v", got)
	}
}

func TestRecordersOnSeparateRegistries(t *testing.T) {
	// same metric names on two registries must not panic
	_ = NewWithRegisterer(prometheus.NewRegistry())
	_ = NewWithRegisterer(prometheus.NewRegistry())
}
