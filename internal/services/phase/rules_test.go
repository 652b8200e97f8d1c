package phase

import (
	"math"
	"testing"

	"TFTracker/internal/domain/models"
	"TFTracker/internal/services/features"
)

func f(v float64) *float64 { return &v }

func phasePtr(p models.Phase) *models.Phase { return &p }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEvaluateDefectOnDropAndLowRSI(t *testing.T) {
	s := features.Signals{PriceChangePct: f(-4.651162790697675), RSICurrent: f(28)}
	d := Evaluate(s, nil)
	if d.Phase != models.PhaseDefect {
		t.Fatalf("expected DEFECT, got %s", d.Phase)
	}
	if !near(d.Confidence, 0.84) {
		t.Fatalf("expected 0.84, got %v", d.Confidence)
	}
	want := "Price drop -4.65% <= -2.0%; RSI 28.0 below 35.0"
	if d.Rationale != want {
		t.Fatalf("rationale %q, want %q", d.Rationale, want)
	}
}

func TestEvaluateDefectConfidenceCapped(t *testing.T) {
	s := features.Signals{PriceChangePct: f(-3), RSICurrent: f(20), SentimentCurrent: f(-0.5)}
	d := Evaluate(s, nil)
	if d.Phase != models.PhaseDefect || !near(d.Confidence, 0.95) {
		t.Fatalf("expected DEFECT 0.95, got %s %v", d.Phase, d.Confidence)
	}
}

func TestEvaluateDefectWinsOverCooperateBand(t *testing.T) {
	// price inside the stable band, but RSI triggers a defection
	s := features.Signals{PriceChangePct: f(0.2), RSICurrent: f(30), VolatilityDelta: f(-1)}
	d := Evaluate(s, phasePtr(models.PhaseCooperate))
	if d.Phase != models.PhaseDefect {
		t.Fatalf("expected DEFECT, got %s", d.Phase)
	}
}

func TestEvaluateForgiveAfterDefect(t *testing.T) {
	s := features.Signals{PriceChangePct: f(0.15), RSICurrent: f(46), RSIPrevious: f(42)}
	d := Evaluate(s, phasePtr(models.PhaseDefect))
	if d.Phase != models.PhaseForgive {
		t.Fatalf("expected FORGIVE, got %s", d.Phase)
	}
	if !near(d.Confidence, 0.82) {
		t.Fatalf("expected 0.82, got %v", d.Confidence)
	}
	if d.Rationale != "Price stabilized within ±0.5%; RSI rising" {
		t.Fatalf("unexpected rationale %q", d.Rationale)
	}
}

func TestEvaluateForgiveRSIFloorOnlyWhenNotRising(t *testing.T) {
	s := features.Signals{RSICurrent: f(44), RSIPrevious: f(48)}
	d := Evaluate(s, phasePtr(models.PhaseDefect))
	if d.Phase != models.PhaseForgive || d.Rationale != "RSI recovered above 40.0" {
		t.Fatalf("unexpected %s %q", d.Phase, d.Rationale)
	}
}

func TestEvaluateForgiveSentimentRecovery(t *testing.T) {
	s := features.Signals{SentimentCurrent: f(0.05), SentimentPrevious: f(-0.1)}
	d := Evaluate(s, phasePtr(models.PhaseDefect))
	if d.Phase != models.PhaseForgive || d.Rationale != "Sentiment recovering" {
		t.Fatalf("unexpected %s %q", d.Phase, d.Rationale)
	}
}

func TestEvaluateNoForgiveWithoutPreviousDefect(t *testing.T) {
	s := features.Signals{PriceChangePct: f(0.15), RSICurrent: f(46), RSIPrevious: f(42)}
	d := Evaluate(s, phasePtr(models.PhaseForgive))
	if d.Phase != models.PhaseCooperate {
		t.Fatalf("expected COOPERATE, got %s", d.Phase)
	}
}

func TestEvaluateCooperate(t *testing.T) {
	s := features.Signals{PriceChangePct: f(0.5), RSICurrent: f(52)}
	d := Evaluate(s, nil)
	if d.Phase != models.PhaseCooperate {
		t.Fatalf("expected COOPERATE, got %s", d.Phase)
	}
	if d.Confidence < 0.6 || !near(d.Confidence, 0.8) {
		t.Fatalf("unexpected confidence %v", d.Confidence)
	}
	if d.Rationale != "Price change within stable band; RSI in neutral range" {
		t.Fatalf("unexpected rationale %q", d.Rationale)
	}
}

func TestEvaluateCooperateAllReasonsCapped(t *testing.T) {
	s := features.Signals{PriceChangePct: f(1.5), RSICurrent: f(65), VolatilityDelta: f(-0.1), SentimentCurrent: f(0.15)}
	d := Evaluate(s, nil)
	if d.Phase != models.PhaseCooperate || !near(d.Confidence, 0.9) {
		t.Fatalf("expected COOPERATE 0.9, got %s %v", d.Phase, d.Confidence)
	}
}

func TestEvaluateFallback(t *testing.T) {
	cases := []struct {
		name      string
		signals   features.Signals
		previous  *models.Phase
		phase     models.Phase
		conf      float64
		rationale string
	}{
		{"no signals", features.Signals{}, nil, models.PhaseCooperate, 0.5, reasonCoopFallback},
		{"carry defect", features.Signals{}, phasePtr(models.PhaseDefect), models.PhaseDefect, 0.45, reasonCarryForward},
		{"carry cooperate", features.Signals{}, phasePtr(models.PhaseCooperate), models.PhaseCooperate, 0.45, reasonCoopFallback},
		{"stale sentiment", features.Signals{SentimentStale: true}, nil, models.PhaseCooperate, 0.45, reasonCoopFallback},
		{"stale with previous", features.Signals{SentimentStale: true}, phasePtr(models.PhaseForgive), models.PhaseForgive, 0.4, reasonCarryForward},
		{"price out of band", features.Signals{PriceChangePct: f(1.8)}, nil, models.PhaseCooperate, 0.5, reasonCoopFallback},
	}
	for _, tc := range cases {
		d := Evaluate(tc.signals, tc.previous)
		if d.Phase != tc.phase || !near(d.Confidence, tc.conf) || d.Rationale != tc.rationale {
			t.Fatalf("%s: got %s %v %q", tc.name, d.Phase, d.Confidence, d.Rationale)
		}
	}
}

func TestEvaluateStaleSentimentStillFeedsRules(t *testing.T) {
	s := features.Signals{SentimentCurrent: f(-0.3), SentimentStale: true}
	d := Evaluate(s, nil)
	if d.Phase != models.PhaseDefect || d.Rationale != "Negative sentiment -0.30" {
		t.Fatalf("unexpected %s %q", d.Phase, d.Rationale)
	}
}
