package models

// Requests for phase HTTP endpoints.

type PhaseTickerRequest struct {
	Ticker string `param:"ticker" validate:"required,max=32"`
}

type PhaseHistoryRequest struct {
	Ticker       string `param:"ticker" validate:"required,max=32"`
	Limit        int    `query:"limit" default:"20" validate:"gte=1,lte=200"`
	SinceMinutes int    `query:"since_minutes" validate:"gte=0"`
}

type PhaseRefreshRequest struct {
	Tickers []string `json:"tickers" validate:"max=200,dive,required,max=32"`
}

// LatestSnapshotsRequest filters the latest snapshot endpoints. Tickers may
// repeat (?tickers=A&tickers=B) or be comma separated.
type LatestSnapshotsRequest struct {
	Tickers []string `query:"tickers"`
}

type AssetCreateRequest struct {
	Ticker   string    `json:"ticker" validate:"required,max=32"`
	Name     string    `json:"name" validate:"max=128"`
	Type     AssetType `json:"type" validate:"omitempty,oneof=stock crypto"`
	Exchange string    `json:"exchange" validate:"max=32"`
}

// SnapshotEvent is the ingestion message consumed from Kafka.
// Type selects which of the payload sections is populated.
type SnapshotEvent struct {
	Type      string                `json:"type" validate:"required,oneof=market sentiment"`
	Ticker    string                `json:"ticker" validate:"required"`
	Name      string                `json:"name,omitempty"`
	Market    *MarketSnapshot       `json:"market,omitempty" validate:"omitempty"`
	Indicator *IndicatorSnapshot    `json:"indicator,omitempty" validate:"omitempty"`
	Source    *SentimentSource      `json:"source,omitempty" validate:"omitempty"`
	Sentiment *SentimentObservation `json:"sentiment,omitempty" validate:"omitempty"`
}

const (
	SnapshotEventMarket    = "market"
	SnapshotEventSentiment = "sentiment"
)
