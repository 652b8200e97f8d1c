package phase

import (
	"context"
	"fmt"
	"time"

	"TFTracker/internal/domain/models"
	domrepo "TFTracker/internal/domain/repository"
	"TFTracker/internal/domain/service"
	"TFTracker/internal/services/features"
	applogger "TFTracker/pkg/logger"

	"github.com/google/uuid"
)

// historyDepth is how many records of each series the rules look at.
const historyDepth = 2

// ClassifierOption configures Classifier.
type ClassifierOption func(*ClassifierConfig)

// ClassifierConfig holds classifier configuration.
type ClassifierConfig struct {
	SentimentEnabled bool
	SentimentWindow  time.Duration
	Now              func() time.Time
	Logger           *applogger.Logger
}

// WithSentiment toggles sentiment signals and sets the freshness window.
func WithSentiment(enabled bool, window time.Duration) ClassifierOption {
	return func(c *ClassifierConfig) {
		c.SentimentEnabled = enabled
		c.SentimentWindow = window
	}
}

// WithClock overrides the clock used for staleness checks.
func WithClock(now func() time.Time) ClassifierOption {
	return func(c *ClassifierConfig) {
		c.Now = now
	}
}

// WithLogger sets a structured logger.
func WithLogger(l *applogger.Logger) ClassifierOption {
	return func(c *ClassifierConfig) {
		c.Logger = l
	}
}

// Classifier is the rule-based phase classifier backed by a snapshot store.
type Classifier struct {
	store domrepo.SnapshotStore
	cfg   ClassifierConfig
}

// NewClassifier creates a classifier reading history from store.
func NewClassifier(store domrepo.SnapshotStore, opts ...ClassifierOption) *Classifier {
	cfg := ClassifierConfig{
		SentimentEnabled: false,
		SentimentWindow:  60 * time.Minute,
		Now:              time.Now,
		Logger:           applogger.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Classifier{store: store, cfg: cfg}
}

// Evaluate classifies assetID given its previous phase. ok is false when the
// asset has no market snapshot. ComputedAt is the latest snapshot's as_of.
func (c *Classifier) Evaluate(ctx context.Context, assetID uuid.UUID, previous *models.Phase) (models.PhaseResult, bool, error) {
	market, err := c.store.RecentMarketSnapshots(ctx, assetID, historyDepth)
	if err != nil {
		return models.PhaseResult{}, false, fmt.Errorf("recent market snapshots: %w", err)
	}
	if len(market) == 0 {
		c.cfg.Logger.Debug("phase.classify no market data", applogger.String("asset_id", assetID.String()))
		return models.PhaseResult{}, false, nil
	}

	indicators, err := c.store.RecentIndicatorSnapshots(ctx, assetID, historyDepth)
	if err != nil {
		return models.PhaseResult{}, false, fmt.Errorf("recent indicator snapshots: %w", err)
	}

	var sentiment []models.SentimentObservation
	if c.cfg.SentimentEnabled {
		sentiment, err = c.store.RecentSentimentObservations(ctx, assetID, historyDepth)
		if err != nil {
			return models.PhaseResult{}, false, fmt.Errorf("recent sentiment observations: %w", err)
		}
	}

	signals := features.Extract(market, indicators, sentiment, c.cfg.SentimentWindow, c.cfg.Now())
	d := Evaluate(signals, previous)

	c.cfg.Logger.Debug("phase.classify decided",
		applogger.String("asset_id", assetID.String()),
		applogger.String("phase", d.Phase.String()),
		applogger.Float64("confidence", d.Confidence),
		applogger.Bool("sentiment_stale", signals.SentimentStale),
	)

	return models.PhaseResult{
		Phase:      d.Phase,
		Confidence: d.Confidence,
		Rationale:  d.Rationale,
		ComputedAt: market[0].AsOf,
	}, true, nil
}

var _ service.PhaseClassifier = (*Classifier)(nil)
