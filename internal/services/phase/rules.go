package phase

import (
	"fmt"
	"math"
	"strings"

	"TFTracker/internal/domain/models"
	"TFTracker/internal/services/features"
)

const (
	DefectDrop = -2.0
	CoopLower  = -0.5
	CoopUpper  = 1.5
	RSILow     = 35.0
	RSIFloor   = 40.0
	RSIHigh    = 65.0

	NegativeSentiment  = -0.2
	PositiveSentiment  = 0.15
	SentimentRecovery  = 0.1
	StablePriceBand    = 0.5
	fallbackWithPrev   = 0.45
	fallbackNoPrev     = 0.5
	stalePenalty       = 0.05
	staleFloor         = 0.3
	reasonSeparator    = "; "
	reasonCoopFallback = "Defaulting to cooperation due to limited signals"
	reasonCarryForward = "Insufficient new evidence; carrying forward previous phase"
)

// Decision is the outcome of running the rule tiers over one signal bundle.
type Decision struct {
	Phase      models.Phase
	Confidence float64
	Rationale  string
}

// tier is a prioritized rule group. The tier matches when any reason fires;
// confidence grows by step per reason up to limit.
type tier struct {
	phase   models.Phase
	base    float64
	step    float64
	limit   float64
	enabled func(previous *models.Phase) bool
	reasons func(s features.Signals) []string
}

func (t tier) confidence(n int) float64 {
	return math.Min(t.base+float64(n)*t.step, t.limit)
}

var tiers = []tier{
	{
		phase: models.PhaseDefect, base: 0.6, step: 0.12, limit: 0.95,
		reasons: defectReasons,
	},
	{
		phase: models.PhaseForgive, base: 0.62, step: 0.1, limit: 0.9,
		enabled: func(previous *models.Phase) bool {
			return previous != nil && *previous == models.PhaseDefect
		},
		reasons: forgiveReasons,
	},
	{
		phase: models.PhaseCooperate, base: 0.6, step: 0.1, limit: 0.9,
		reasons: cooperateReasons,
	},
}

// Evaluate applies DEFECT, FORGIVE and COOPERATE tiers in priority order and
// falls back to the previous phase (or COOPERATE) when none matches.
func Evaluate(s features.Signals, previous *models.Phase) Decision {
	for _, t := range tiers {
		if t.enabled != nil && !t.enabled(previous) {
			continue
		}
		reasons := t.reasons(s)
		if len(reasons) == 0 {
			continue
		}
		return Decision{
			Phase:      t.phase,
			Confidence: t.confidence(len(reasons)),
			Rationale:  strings.Join(reasons, reasonSeparator),
		}
	}
	return fallback(s, previous)
}

func defectReasons(s features.Signals) []string {
	var out []string
	if s.PriceChangePct != nil && *s.PriceChangePct <= DefectDrop {
		out = append(out, fmt.Sprintf("Price drop %.2f%% <= %.1f%%", *s.PriceChangePct, DefectDrop))
	}
	if s.RSICurrent != nil && *s.RSICurrent < RSILow {
		out = append(out, fmt.Sprintf("RSI %.1f below %.1f", *s.RSICurrent, RSILow))
	}
	if s.SentimentCurrent != nil && *s.SentimentCurrent <= NegativeSentiment {
		out = append(out, fmt.Sprintf("Negative sentiment %.2f", *s.SentimentCurrent))
	}
	return out
}

func forgiveReasons(s features.Signals) []string {
	var out []string
	if s.PriceChangePct != nil && math.Abs(*s.PriceChangePct) < StablePriceBand {
		out = append(out, "Price stabilized within ±0.5%")
	}
	if s.RSICurrent != nil {
		// rising RSI takes precedence over the floor check
		if s.RSIPrevious != nil && *s.RSICurrent > *s.RSIPrevious {
			out = append(out, "RSI rising")
		} else if *s.RSICurrent >= RSIFloor {
			out = append(out, fmt.Sprintf("RSI recovered above %.1f", RSIFloor))
		}
	}
	if s.SentimentCurrent != nil && s.SentimentPrevious != nil &&
		*s.SentimentCurrent-*s.SentimentPrevious >= SentimentRecovery {
		out = append(out, "Sentiment recovering")
	}
	return out
}

func cooperateReasons(s features.Signals) []string {
	var out []string
	if s.PriceChangePct != nil && *s.PriceChangePct >= CoopLower && *s.PriceChangePct <= CoopUpper {
		out = append(out, "Price change within stable band")
	}
	if s.RSICurrent != nil && *s.RSICurrent >= RSIFloor && *s.RSICurrent <= RSIHigh {
		out = append(out, "RSI in neutral range")
	}
	if s.VolatilityDelta != nil && *s.VolatilityDelta < 0 {
		out = append(out, "Volatility trending down")
	}
	if s.SentimentCurrent != nil && *s.SentimentCurrent >= PositiveSentiment {
		out = append(out, "Positive sentiment backdrop")
	}
	return out
}

func fallback(s features.Signals, previous *models.Phase) Decision {
	d := Decision{Phase: models.PhaseCooperate, Confidence: fallbackNoPrev}
	if previous != nil {
		d.Phase = *previous
		d.Confidence = fallbackWithPrev
	}
	if d.Phase == models.PhaseCooperate {
		d.Rationale = reasonCoopFallback
	} else {
		d.Rationale = reasonCarryForward
	}
	if s.SentimentStale {
		d.Confidence = math.Max(d.Confidence-stalePenalty, staleFloor)
	}
	return d
}
