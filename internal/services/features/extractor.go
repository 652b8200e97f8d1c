package features

import (
	"time"

	"TFTracker/internal/domain/models"
)

// Signals is the derived input of the phase rules. A nil field means the
// signal could not be computed from the available history.
type Signals struct {
	PriceChangePct    *float64
	VolatilityDelta   *float64
	RSICurrent        *float64
	RSIPrevious       *float64
	SentimentCurrent  *float64
	SentimentPrevious *float64
	SentimentStale    bool
}

// Extract derives Signals from newest-first history slices. market must not
// be empty. sentiment may be nil when sentiment is disabled.
func Extract(
	market []models.MarketSnapshot,
	indicators []models.IndicatorSnapshot,
	sentiment []models.SentimentObservation,
	window time.Duration,
	now time.Time,
) Signals {
	var s Signals
	if len(market) == 0 {
		return s
	}

	cur := market[0]
	var prev *models.MarketSnapshot
	if len(market) > 1 {
		prev = &market[1]
	}
	s.PriceChangePct = PriceChangePct(cur, prev)
	s.VolatilityDelta = VolatilityDelta(cur, prev)

	if len(indicators) > 0 {
		s.RSICurrent = copyFloat(indicators[0].RSI14)
	}
	if len(indicators) > 1 {
		s.RSIPrevious = copyFloat(indicators[1].RSI14)
	}

	s.SentimentCurrent, s.SentimentPrevious, s.SentimentStale = Sentiment(sentiment, window, now)
	return s
}

// PriceChangePct prefers the producer-supplied change. Otherwise it is
// computed from the previous snapshot when both prices are non-zero.
func PriceChangePct(cur models.MarketSnapshot, prev *models.MarketSnapshot) *float64 {
	if cur.PriceChangePct != nil {
		return copyFloat(cur.PriceChangePct)
	}
	if prev == nil || prev.Price == 0 || cur.Price == 0 {
		return nil
	}
	v := (cur.Price - prev.Price) / prev.Price * 100
	return &v
}

// VolatilityDelta is current minus previous 1d volatility.
func VolatilityDelta(cur models.MarketSnapshot, prev *models.MarketSnapshot) *float64 {
	if prev == nil || cur.Volatility1D == nil || prev.Volatility1D == nil {
		return nil
	}
	v := *cur.Volatility1D - *prev.Volatility1D
	return &v
}

// Sentiment returns the two most recent scores and whether the latest one is
// older than twice the freshness window.
func Sentiment(obs []models.SentimentObservation, window time.Duration, now time.Time) (current, previous *float64, stale bool) {
	if len(obs) == 0 {
		return nil, nil, false
	}
	c := obs[0].Score
	current = &c
	if len(obs) > 1 {
		p := obs[1].Score
		previous = &p
	}
	stale = now.Sub(obs[0].ObservedAt) > 2*window
	return current, previous, stale
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
