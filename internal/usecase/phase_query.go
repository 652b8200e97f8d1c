package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"TFTracker/internal/domain/models"
	domrepo "TFTracker/internal/domain/repository"
	"TFTracker/pkg/cache"
	applogger "TFTracker/pkg/logger"

	"github.com/google/uuid"
)

var (
	// ErrAssetNotFound is returned when a ticker does not resolve to a tracked asset.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrPhaseNotFound is returned when an asset has never been classified.
	ErrPhaseNotFound = errors.New("phase state not available")
)

var phaseListCacheKey = cache.GenerateKey("phase", "list")

// HistoryParams selects a slice of an asset's transition trail.
type HistoryParams struct {
	Ticker       string
	Limit        int
	SinceMinutes int // 0 means no time window
}

// PhaseQuery serves read-side views over phase state and history.
type PhaseQuery struct {
	assets  domrepo.AssetStore
	phases  domrepo.PhaseStore
	cache   cache.Service
	ttl     time.Duration
	aliases map[string]string
	now     func() time.Time
	l       *applogger.Logger
}

func NewPhaseQuery(assets domrepo.AssetStore, phases domrepo.PhaseStore, c cache.Service, ttl time.Duration, aliases map[string]string, l *applogger.Logger) *PhaseQuery {
	if l == nil {
		l = applogger.Nop()
	}
	return &PhaseQuery{assets: assets, phases: phases, cache: c, ttl: ttl, aliases: aliases, now: time.Now, l: l}
}

// Resolve maps a raw ticker through aliases to a tracked asset.
func (q *PhaseQuery) Resolve(ctx context.Context, raw string) (models.Asset, error) {
	canonical, _ := models.ResolveTicker(raw, q.aliases)
	a, err := q.assets.GetAssetByTicker(ctx, canonical)
	if err != nil {
		if errors.Is(err, domrepo.ErrNotFound) {
			return models.Asset{}, fmt.Errorf("%w: %s", ErrAssetNotFound, canonical)
		}
		return models.Asset{}, fmt.Errorf("get asset %s: %w", canonical, err)
	}
	return a, nil
}

// List returns every classified asset ordered by ticker.
func (q *PhaseQuery) List(ctx context.Context) ([]models.PhaseView, error) {
	if q.cache != nil && q.ttl > 0 {
		var cached []models.PhaseView
		if err := q.cache.Get(ctx, phaseListCacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	states, err := q.phases.ListPhaseStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list phase states: %w", err)
	}
	assets, err := q.assets.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	byID := make(map[uuid.UUID]models.Asset, len(assets))
	for _, a := range assets {
		byID[a.ID] = a
	}

	out := make([]models.PhaseView, 0, len(states))
	for _, st := range states {
		a, ok := byID[st.AssetID]
		if !ok {
			continue
		}
		out = append(out, models.NewPhaseView(a, st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })

	if q.cache != nil && q.ttl > 0 {
		if err := q.cache.Set(ctx, phaseListCacheKey, out, q.ttl); err != nil {
			q.l.Warn("phase list cache set failed", applogger.Error(err))
		}
	}
	return out, nil
}

// Get returns the current phase of one ticker.
func (q *PhaseQuery) Get(ctx context.Context, ticker string) (models.PhaseView, error) {
	a, err := q.Resolve(ctx, ticker)
	if err != nil {
		return models.PhaseView{}, err
	}
	st, err := q.phases.GetPhaseState(ctx, a.ID)
	if err != nil {
		if errors.Is(err, domrepo.ErrNotFound) {
			return models.PhaseView{}, fmt.Errorf("%w: %s", ErrPhaseNotFound, a.Ticker)
		}
		return models.PhaseView{}, fmt.Errorf("get phase state %s: %w", a.Ticker, err)
	}
	return models.NewPhaseView(a, st), nil
}

// History returns transitions newest first.
func (q *PhaseQuery) History(ctx context.Context, p HistoryParams) ([]models.PhaseHistoryView, error) {
	a, err := q.Resolve(ctx, p.Ticker)
	if err != nil {
		return nil, err
	}
	hq := domrepo.HistoryQuery{Limit: p.Limit}
	if p.SinceMinutes > 0 {
		hq.Since = q.now().Add(-time.Duration(p.SinceMinutes) * time.Minute)
	}
	hist, err := q.phases.ListPhaseHistory(ctx, a.ID, hq)
	if err != nil {
		return nil, fmt.Errorf("list phase history %s: %w", a.Ticker, err)
	}
	out := make([]models.PhaseHistoryView, len(hist))
	for i, h := range hist {
		out[i] = models.PhaseHistoryView{PhaseHistory: h, Ticker: a.Ticker}
	}
	return out, nil
}

// PhaseCommitted drops the cached list so the next read sees the new state.
func (q *PhaseQuery) PhaseCommitted(ctx context.Context, _ models.PhaseState) error {
	if q.cache == nil {
		return nil
	}
	return q.cache.Delete(ctx, phaseListCacheKey)
}

// Views joins states with their assets, keeping the order of states.
func (q *PhaseQuery) Views(ctx context.Context, states []models.PhaseState) ([]models.PhaseView, error) {
	ids := make([]uuid.UUID, len(states))
	for i, st := range states {
		ids[i] = st.AssetID
	}
	assets, err := q.assets.GetAssetsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get assets by ids: %w", err)
	}
	byID := make(map[uuid.UUID]models.Asset, len(assets))
	for _, a := range assets {
		byID[a.ID] = a
	}
	out := make([]models.PhaseView, 0, len(states))
	for _, st := range states {
		if a, ok := byID[st.AssetID]; ok {
			out = append(out, models.NewPhaseView(a, st))
		}
	}
	return out, nil
}

var _ domrepo.CommitListener = (*PhaseQuery)(nil)
