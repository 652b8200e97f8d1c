package repository

import (
	"context"
	"errors"
	"time"

	"TFTracker/internal/domain/models"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrLockTimeout is returned when a per-asset lock cannot be acquired in time.
	ErrLockTimeout = errors.New("lock wait timeout")
)

// SnapshotStore exposes ordered snapshot history per asset.
// Recent* methods return at most limit records, newest first.
type SnapshotStore interface {
	RecentMarketSnapshots(ctx context.Context, assetID uuid.UUID, limit int) ([]models.MarketSnapshot, error)
	RecentIndicatorSnapshots(ctx context.Context, assetID uuid.UUID, limit int) ([]models.IndicatorSnapshot, error)
	RecentSentimentObservations(ctx context.Context, assetID uuid.UUID, limit int) ([]models.SentimentObservation, error)

	SaveMarketSnapshot(ctx context.Context, s models.MarketSnapshot) error
	SaveIndicatorSnapshot(ctx context.Context, s models.IndicatorSnapshot) error
	SaveSentimentSource(ctx context.Context, s models.SentimentSource) error
	SaveSentimentObservation(ctx context.Context, o models.SentimentObservation) error
}

// AssetStore resolves tracked assets.
type AssetStore interface {
	ListAssets(ctx context.Context) ([]models.Asset, error)
	GetAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Asset, error)
	GetAssetByTicker(ctx context.Context, ticker string) (models.Asset, error)
	GetAssetsByTickers(ctx context.Context, tickers []string) ([]models.Asset, error)
	UpsertAsset(ctx context.Context, a models.Asset) error
}

// HistoryQuery narrows a phase history read.
type HistoryQuery struct {
	Limit int
	Since time.Time // zero means unbounded
}

// PhaseStore persists the current phase per asset and its transition trail.
type PhaseStore interface {
	// GetPhaseState returns ErrNotFound when the asset was never classified.
	GetPhaseState(ctx context.Context, assetID uuid.UUID) (models.PhaseState, error)
	// CommitPhase upserts state and, when entry is non-nil, appends it to the
	// history. Both writes become visible together or not at all.
	CommitPhase(ctx context.Context, state models.PhaseState, entry *models.PhaseHistory) error
	ListPhaseStates(ctx context.Context) ([]models.PhaseState, error)
	ListPhaseHistory(ctx context.Context, assetID uuid.UUID, q HistoryQuery) ([]models.PhaseHistory, error)
}

// Locker provides mutual exclusion keyed by string.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// TransitionNotifier is told about committed phase transitions.
type TransitionNotifier interface {
	NotifyTransition(ctx context.Context, ev models.PhaseTransitionEvent) error
}

// CommitListener is told about every committed state, transition or not.
type CommitListener interface {
	PhaseCommitted(ctx context.Context, state models.PhaseState) error
}

type Metrics interface {
	RecordEvaluation(phase string)
	RecordTransition(from, to string)
	RecordSkipped(reason string)
	RecordConfidence(ticker string, confidence float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
