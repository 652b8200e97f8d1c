package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TFTracker/internal/domain/models"
	domrepo "TFTracker/internal/domain/repository"
	"TFTracker/internal/domain/service"
	applogger "TFTracker/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidTransition is returned when a history entry would record a
// transition to the phase the asset is already in.
var ErrInvalidTransition = errors.New("invalid phase transition")

// UpdaterOption configures PhaseUpdater.
type UpdaterOption func(*PhaseUpdater)

// WithUpdaterParallelism bounds how many assets a batch updates at once.
func WithUpdaterParallelism(n int) UpdaterOption {
	return func(u *PhaseUpdater) {
		if n > 0 {
			u.parallelism = n
		}
	}
}

// WithUpdaterNotifier adds a transition listener. Called after commit.
func WithUpdaterNotifier(n domrepo.TransitionNotifier) UpdaterOption {
	return func(u *PhaseUpdater) {
		if n != nil {
			u.notifiers = append(u.notifiers, n)
		}
	}
}

// WithUpdaterCommitListener adds a listener called after every commit,
// including ones that keep the phase.
func WithUpdaterCommitListener(c domrepo.CommitListener) UpdaterOption {
	return func(u *PhaseUpdater) {
		if c != nil {
			u.committed = append(u.committed, c)
		}
	}
}

func WithUpdaterMetrics(m domrepo.Metrics) UpdaterOption {
	return func(u *PhaseUpdater) {
		if m != nil {
			u.metrics = m
		}
	}
}

func WithUpdaterLogger(l *applogger.Logger) UpdaterOption {
	return func(u *PhaseUpdater) {
		if l != nil {
			u.l = l
		}
	}
}

// PhaseUpdater classifies assets and persists the resulting state and
// transitions. Updates of one asset are serialized through the Locker.
type PhaseUpdater struct {
	classifier  service.PhaseClassifier
	assets      domrepo.AssetStore
	phases      domrepo.PhaseStore
	locker      domrepo.Locker
	notifiers   []domrepo.TransitionNotifier
	committed   []domrepo.CommitListener
	metrics     domrepo.Metrics
	l           *applogger.Logger
	parallelism int
	newID       func() uuid.UUID
}

func NewPhaseUpdater(
	classifier service.PhaseClassifier,
	assets domrepo.AssetStore,
	phases domrepo.PhaseStore,
	locker domrepo.Locker,
	opts ...UpdaterOption,
) *PhaseUpdater {
	u := &PhaseUpdater{
		classifier:  classifier,
		assets:      assets,
		phases:      phases,
		locker:      locker,
		metrics:     noopMetrics{},
		l:           applogger.Nop(),
		parallelism: 4,
		newID:       uuid.New,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UpdateAsset re-evaluates one asset. It returns the prior state, possibly
// nil, without writing anything when the classifier has no market data.
func (u *PhaseUpdater) UpdateAsset(ctx context.Context, asset models.Asset) (*models.PhaseState, error) {
	start := time.Now()
	defer func() { u.metrics.RecordLatency("update_asset", time.Since(start).Seconds()) }()

	unlock, err := u.locker.Lock(ctx, "phase:"+asset.ID.String())
	if err != nil {
		u.metrics.RecordError("lock")
		return nil, fmt.Errorf("lock asset %s: %w", asset.Ticker, err)
	}
	res, err := u.updateLocked(ctx, asset)
	unlock()
	if err != nil {
		return nil, err
	}

	if res.committed {
		u.afterCommit(ctx, asset, *res.state)
	}
	if res.event != nil {
		u.notify(ctx, *res.event)
	}
	return res.state, nil
}

type updateResult struct {
	state     *models.PhaseState
	event     *models.PhaseTransitionEvent
	committed bool
}

func (u *PhaseUpdater) updateLocked(ctx context.Context, asset models.Asset) (updateResult, error) {
	var prior *models.PhaseState
	st, err := u.phases.GetPhaseState(ctx, asset.ID)
	switch {
	case err == nil:
		prior = &st
	case errors.Is(err, domrepo.ErrNotFound):
	default:
		u.metrics.RecordError("phase_store_read")
		return updateResult{}, fmt.Errorf("get phase state %s: %w", asset.Ticker, err)
	}

	var previous *models.Phase
	if prior != nil {
		p := prior.Phase
		previous = &p
	}

	res, ok, err := u.classifier.Evaluate(ctx, asset.ID, previous)
	if err != nil {
		u.metrics.RecordError("classify")
		return updateResult{}, fmt.Errorf("classify %s: %w", asset.Ticker, err)
	}
	if !ok {
		u.metrics.RecordSkipped("no_market_data")
		u.l.Debug("phase update skipped",
			applogger.String("ticker", asset.Ticker),
			applogger.String("reason", "no_market_data"),
		)
		return updateResult{state: prior}, nil
	}

	confidence := roundConfidence(res.Confidence)
	next := models.PhaseState{
		AssetID:    asset.ID,
		Phase:      res.Phase,
		Confidence: confidence,
		Rationale:  res.Rationale,
		ComputedAt: res.ComputedAt,
	}

	var entry *models.PhaseHistory
	if previous == nil || *previous != res.Phase {
		entry = &models.PhaseHistory{
			ID:         u.newID(),
			AssetID:    asset.ID,
			From:       previous,
			To:         res.Phase,
			Confidence: confidence,
			Rationale:  res.Rationale,
			ChangedAt:  res.ComputedAt,
		}
	}
	if err := validateTransition(entry); err != nil {
		return updateResult{}, err
	}

	if err := u.phases.CommitPhase(ctx, next, entry); err != nil {
		u.metrics.RecordError("phase_store_write")
		return updateResult{}, fmt.Errorf("commit phase %s: %w", asset.Ticker, err)
	}

	u.metrics.RecordEvaluation(string(next.Phase))
	u.metrics.RecordConfidence(asset.Ticker, confidence)
	if entry == nil {
		return updateResult{state: &next, committed: true}, nil
	}

	from := ""
	if entry.From != nil {
		from = string(*entry.From)
	}
	u.metrics.RecordTransition(from, string(entry.To))
	u.l.Info("phase transition",
		applogger.String("ticker", asset.Ticker),
		applogger.String("from", from),
		applogger.String("to", string(entry.To)),
		applogger.Float64("confidence", confidence),
	)
	return updateResult{state: &next, committed: true, event: &models.PhaseTransitionEvent{
		AssetID:    asset.ID,
		Ticker:     asset.Ticker,
		From:       entry.From,
		To:         entry.To,
		Confidence: entry.Confidence,
		Rationale:  entry.Rationale,
		ChangedAt:  entry.ChangedAt,
	}}, nil
}

func validateTransition(entry *models.PhaseHistory) error {
	if entry == nil {
		return nil
	}
	if !entry.To.Valid() {
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidTransition, entry.To)
	}
	if entry.From != nil && *entry.From == entry.To {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, entry.To, entry.To)
	}
	return nil
}

func (u *PhaseUpdater) afterCommit(ctx context.Context, asset models.Asset, st models.PhaseState) {
	for _, c := range u.committed {
		if err := c.PhaseCommitted(ctx, st); err != nil {
			u.metrics.RecordError("commit_listener")
			u.l.Warn("phase commit listener failed",
				applogger.String("ticker", asset.Ticker),
				applogger.Error(err),
			)
		}
	}
}

func (u *PhaseUpdater) notify(ctx context.Context, ev models.PhaseTransitionEvent) {
	for _, n := range u.notifiers {
		if err := n.NotifyTransition(ctx, ev); err != nil {
			u.metrics.RecordError("notify")
			u.l.Warn("phase transition notify failed",
				applogger.String("ticker", ev.Ticker),
				applogger.Error(err),
			)
		}
	}
}

// UpdateAssetsByIDs updates the given assets. Unknown ids are ignored.
func (u *PhaseUpdater) UpdateAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.PhaseState, error) {
	assets, err := u.assets.GetAssetsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get assets by ids: %w", err)
	}
	return u.updateBatch(ctx, assets)
}

// UpdateAssetsByTickers updates the given tickers. Unknown tickers are ignored.
func (u *PhaseUpdater) UpdateAssetsByTickers(ctx context.Context, tickers []string) ([]models.PhaseState, error) {
	assets, err := u.assets.GetAssetsByTickers(ctx, tickers)
	if err != nil {
		return nil, fmt.Errorf("get assets by tickers: %w", err)
	}
	return u.updateBatch(ctx, assets)
}

// UpdateAll updates every tracked asset.
func (u *PhaseUpdater) UpdateAll(ctx context.Context) ([]models.PhaseState, error) {
	assets, err := u.assets.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return u.updateBatch(ctx, assets)
}

// updateBatch runs UpdateAsset with bounded parallelism. Results keep input
// order and skip assets that still have no state. The first error cancels
// the assets not yet started; finished ones keep their committed state.
func (u *PhaseUpdater) updateBatch(ctx context.Context, assets []models.Asset) ([]models.PhaseState, error) {
	results := make([]*models.PhaseState, len(assets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.parallelism)
	for i, a := range assets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			st, err := u.UpdateAsset(gctx, a)
			if err != nil {
				return err
			}
			results[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.PhaseState, 0, len(results))
	for _, st := range results {
		if st != nil {
			out = append(out, *st)
		}
	}
	return out, nil
}

func roundConfidence(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

type noopMetrics struct{}

func (noopMetrics) RecordEvaluation(string)          {}
func (noopMetrics) RecordTransition(string, string)  {}
func (noopMetrics) RecordSkipped(string)             {}
func (noopMetrics) RecordConfidence(string, float64) {}
func (noopMetrics) RecordError(string)               {}
func (noopMetrics) RecordLatency(string, float64)    {}
