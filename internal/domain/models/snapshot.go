package models

import (
	"time"

	"github.com/google/uuid"
)

// MarketSnapshot is one point-in-time market observation for an asset.
// Optional metrics are nil when the producer did not supply them.
type MarketSnapshot struct {
	AssetID        uuid.UUID `json:"asset_id"`
	Price          float64   `json:"price" validate:"gte=0"`
	PriceChangePct *float64  `json:"price_change_pct,omitempty"`
	Volume         *float64  `json:"volume,omitempty"`
	VWAP           *float64  `json:"vwap,omitempty"`
	Volatility1D   *float64  `json:"volatility_1d,omitempty"`
	AsOf           time.Time `json:"as_of"`
}

// IndicatorSnapshot holds technical indicators computed for an asset at AsOf.
type IndicatorSnapshot struct {
	AssetID    uuid.UUID `json:"asset_id"`
	RSI14      *float64  `json:"rsi_14,omitempty"`
	MACD       *float64  `json:"macd,omitempty"`
	MACDSignal *float64  `json:"macd_signal,omitempty"`
	ATR14      *float64  `json:"atr_14,omitempty"`
	AsOf       time.Time `json:"as_of"`
}

// SentimentSource describes where sentiment observations come from.
type SentimentSource struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Channel         string    `json:"channel"`
	ReliabilityTier string    `json:"reliability_tier,omitempty"`
}

// SentimentObservation is a scored sentiment reading. Score is in [-1, 1]
// and Magnitude is non-negative.
type SentimentObservation struct {
	AssetID    uuid.UUID          `json:"asset_id"`
	SourceID   uuid.UUID          `json:"source_id"`
	Score      float64            `json:"score" validate:"gte=-1,lte=1"`
	Magnitude  float64            `json:"magnitude" validate:"gte=0"`
	Features   map[string]float64 `json:"features,omitempty"`
	ObservedAt time.Time          `json:"observed_at"`
}

// AssetRef carries the asset columns joined onto snapshot views.
type AssetRef struct {
	Ticker    string    `json:"ticker"`
	AssetName string    `json:"asset_name"`
	AssetType AssetType `json:"asset_type"`
}

func NewAssetRef(a Asset) AssetRef {
	return AssetRef{Ticker: a.Ticker, AssetName: a.Name, AssetType: a.Type}
}

// MarketSnapshotView is the newest market snapshot of an asset.
type MarketSnapshotView struct {
	MarketSnapshot
	AssetRef
}

// IndicatorSnapshotView is the newest indicator snapshot of an asset.
type IndicatorSnapshotView struct {
	IndicatorSnapshot
	AssetRef
}

// Float returns a pointer to v. Handy for optional snapshot fields.
func Float(v float64) *float64 { return &v }
