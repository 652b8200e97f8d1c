package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TFTracker/internal/domain/models"
	domrepo "TFTracker/internal/domain/repository"
	pkgkafka "TFTracker/pkg/kafka"
	applogger "TFTracker/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// AssetUpdater re-evaluates a single asset.
type AssetUpdater interface {
	UpdateAsset(ctx context.Context, asset models.Asset) (*models.PhaseState, error)
}

// SnapshotEventsHandler consumes snapshot events from Kafka, stores them and
// re-evaluates the asset on market updates.
type SnapshotEventsHandler struct {
	topic     string
	registry  *AssetRegistry
	snapshots domrepo.SnapshotStore
	updater   AssetUpdater
	metrics   domrepo.Metrics
	validate  *validator.Validate
	l         *applogger.Logger
}

func NewSnapshotEventsHandler(topic string, registry *AssetRegistry, snapshots domrepo.SnapshotStore, updater AssetUpdater, metrics domrepo.Metrics, l *applogger.Logger) *SnapshotEventsHandler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &SnapshotEventsHandler{
		topic:     topic,
		registry:  registry,
		snapshots: snapshots,
		updater:   updater,
		metrics:   metrics,
		validate:  validator.New(),
		l:         l,
	}
}

func (h *SnapshotEventsHandler) Topic() string { return h.topic }

// Handle drops malformed events after logging them: redelivery cannot fix
// them. Store and update failures are returned so the consumer retries.
func (h *SnapshotEventsHandler) Handle(ctx context.Context, b []byte) error {
	start := time.Now()
	defer func() { h.metrics.RecordLatency("ingest_event", time.Since(start).Seconds()) }()

	var ev models.SnapshotEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.reject("decode", err)
		return nil
	}
	if err := h.validate.StructCtx(ctx, ev); err != nil {
		h.reject("validate", err)
		return nil
	}

	switch ev.Type {
	case models.SnapshotEventMarket:
		if ev.Market == nil {
			h.reject("validate", errors.New("market event without market payload"))
			return nil
		}
		return h.handleMarket(ctx, ev)
	default:
		if ev.Sentiment == nil {
			h.reject("validate", errors.New("sentiment event without sentiment payload"))
			return nil
		}
		return h.handleSentiment(ctx, ev)
	}
}

func (h *SnapshotEventsHandler) reject(stage string, err error) {
	h.metrics.RecordError("consumer_" + stage)
	h.l.Warn("snapshot event rejected",
		applogger.String("topic", h.topic),
		applogger.String("stage", stage),
		applogger.Error(err),
	)
}

func (h *SnapshotEventsHandler) handleMarket(ctx context.Context, ev models.SnapshotEvent) error {
	asset, err := h.registry.Ensure(ctx, ev.Ticker, ev.Name)
	if err != nil {
		h.metrics.RecordError("consumer_asset")
		return err
	}

	m := *ev.Market
	m.AssetID = asset.ID
	if m.AsOf.IsZero() {
		m.AsOf = time.Now().UTC()
	}
	if err := h.snapshots.SaveMarketSnapshot(ctx, m); err != nil {
		h.metrics.RecordError("consumer_store")
		return fmt.Errorf("save market snapshot %s: %w", asset.Ticker, err)
	}
	if ev.Indicator != nil {
		ind := *ev.Indicator
		ind.AssetID = asset.ID
		if ind.AsOf.IsZero() {
			ind.AsOf = m.AsOf
		}
		if err := h.snapshots.SaveIndicatorSnapshot(ctx, ind); err != nil {
			h.metrics.RecordError("consumer_store")
			return fmt.Errorf("save indicator snapshot %s: %w", asset.Ticker, err)
		}
	}

	if _, err := h.updater.UpdateAsset(ctx, asset); err != nil {
		return fmt.Errorf("update asset %s: %w", asset.Ticker, err)
	}
	return nil
}

func (h *SnapshotEventsHandler) handleSentiment(ctx context.Context, ev models.SnapshotEvent) error {
	asset, err := h.registry.Ensure(ctx, ev.Ticker, ev.Name)
	if err != nil {
		h.metrics.RecordError("consumer_asset")
		return err
	}

	obs := *ev.Sentiment
	obs.AssetID = asset.ID
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = time.Now().UTC()
	}
	if ev.Source != nil {
		src := *ev.Source
		if src.ID == uuid.Nil {
			src.ID = models.SourceIDFor(src.Name)
		}
		if err := h.snapshots.SaveSentimentSource(ctx, src); err != nil {
			h.metrics.RecordError("consumer_store")
			return fmt.Errorf("save sentiment source: %w", err)
		}
		obs.SourceID = src.ID
	}
	if err := h.snapshots.SaveSentimentObservation(ctx, obs); err != nil {
		h.metrics.RecordError("consumer_store")
		return fmt.Errorf("save sentiment %s: %w", asset.Ticker, err)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*SnapshotEventsHandler)(nil)
