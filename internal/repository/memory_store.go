package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"TFTracker/internal/domain/models"
	domrepo "TFTracker/internal/domain/repository"

	"github.com/google/uuid"
)

// MemorySnapshotStore keeps snapshot history in process memory.
type MemorySnapshotStore struct {
	mu         sync.RWMutex
	market     map[uuid.UUID][]models.MarketSnapshot
	indicators map[uuid.UUID][]models.IndicatorSnapshot
	sentiment  map[uuid.UUID][]models.SentimentObservation
	sources    map[uuid.UUID]models.SentimentSource
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{
		market:     make(map[uuid.UUID][]models.MarketSnapshot),
		indicators: make(map[uuid.UUID][]models.IndicatorSnapshot),
		sentiment:  make(map[uuid.UUID][]models.SentimentObservation),
		sources:    make(map[uuid.UUID]models.SentimentSource),
	}
}

func (s *MemorySnapshotStore) RecentMarketSnapshots(_ context.Context, assetID uuid.UUID, limit int) ([]models.MarketSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.market[assetID], limit, func(m models.MarketSnapshot) time.Time { return m.AsOf }), nil
}

func (s *MemorySnapshotStore) RecentIndicatorSnapshots(_ context.Context, assetID uuid.UUID, limit int) ([]models.IndicatorSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.indicators[assetID], limit, func(m models.IndicatorSnapshot) time.Time { return m.AsOf }), nil
}

func (s *MemorySnapshotStore) RecentSentimentObservations(_ context.Context, assetID uuid.UUID, limit int) ([]models.SentimentObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.sentiment[assetID], limit, func(m models.SentimentObservation) time.Time { return m.ObservedAt }), nil
}

func (s *MemorySnapshotStore) SaveMarketSnapshot(_ context.Context, m models.MarketSnapshot) error {
	s.mu.Lock()
	s.market[m.AssetID] = append(s.market[m.AssetID], m)
	s.mu.Unlock()
	return nil
}

func (s *MemorySnapshotStore) SaveIndicatorSnapshot(_ context.Context, m models.IndicatorSnapshot) error {
	s.mu.Lock()
	s.indicators[m.AssetID] = append(s.indicators[m.AssetID], m)
	s.mu.Unlock()
	return nil
}

func (s *MemorySnapshotStore) SaveSentimentSource(_ context.Context, src models.SentimentSource) error {
	s.mu.Lock()
	s.sources[src.ID] = src
	s.mu.Unlock()
	return nil
}

func (s *MemorySnapshotStore) SaveSentimentObservation(_ context.Context, o models.SentimentObservation) error {
	s.mu.Lock()
	s.sentiment[o.AssetID] = append(s.sentiment[o.AssetID], o)
	s.mu.Unlock()
	return nil
}

// newestFirst returns a sorted copy truncated to limit (limit <= 0 means all).
// Records with equal timestamps keep reverse insertion order.
func newestFirst[T any](in []T, limit int, at func(T) time.Time) []T {
	out := make([]T, len(in))
	for i := range in {
		out[len(in)-1-i] = in[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return at(out[i]).After(at(out[j])) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MemoryAssetStore keeps assets in process memory, keyed by id.
type MemoryAssetStore struct {
	mu     sync.RWMutex
	assets map[uuid.UUID]models.Asset
}

func NewMemoryAssetStore(seed ...models.Asset) *MemoryAssetStore {
	s := &MemoryAssetStore{assets: make(map[uuid.UUID]models.Asset, len(seed))}
	for _, a := range seed {
		s.assets[a.ID] = a
	}
	return s
}

func (s *MemoryAssetStore) ListAssets(_ context.Context) ([]models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (s *MemoryAssetStore) GetAssetsByIDs(_ context.Context, ids []uuid.UUID) ([]models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Asset, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.assets[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryAssetStore) GetAssetByTicker(_ context.Context, ticker string) (models.Asset, error) {
	ticker = models.NormalizeTicker(ticker)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assets {
		if a.Ticker == ticker {
			return a, nil
		}
	}
	return models.Asset{}, domrepo.ErrNotFound
}

func (s *MemoryAssetStore) GetAssetsByTickers(_ context.Context, tickers []string) ([]models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byTicker := make(map[string]models.Asset, len(s.assets))
	for _, a := range s.assets {
		byTicker[a.Ticker] = a
	}
	out := make([]models.Asset, 0, len(tickers))
	for _, t := range models.NormalizeTickers(tickers) {
		if a, ok := byTicker[t]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryAssetStore) UpsertAsset(_ context.Context, a models.Asset) error {
	s.mu.Lock()
	s.assets[a.ID] = a
	s.mu.Unlock()
	return nil
}

// MemoryPhaseStore keeps phase state and history in process memory.
// CommitPhase holds the write lock for both writes.
type MemoryPhaseStore struct {
	mu      sync.RWMutex
	states  map[uuid.UUID]models.PhaseState
	history map[uuid.UUID][]models.PhaseHistory
}

func NewMemoryPhaseStore() *MemoryPhaseStore {
	return &MemoryPhaseStore{
		states:  make(map[uuid.UUID]models.PhaseState),
		history: make(map[uuid.UUID][]models.PhaseHistory),
	}
}

func (s *MemoryPhaseStore) GetPhaseState(_ context.Context, assetID uuid.UUID) (models.PhaseState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[assetID]
	if !ok {
		return models.PhaseState{}, domrepo.ErrNotFound
	}
	return st, nil
}

func (s *MemoryPhaseStore) CommitPhase(_ context.Context, state models.PhaseState, entry *models.PhaseHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.AssetID] = state
	if entry != nil {
		s.history[entry.AssetID] = append(s.history[entry.AssetID], *entry)
	}
	return nil
}

func (s *MemoryPhaseStore) ListPhaseStates(_ context.Context) ([]models.PhaseState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PhaseState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st)
	}
	return out, nil
}

func (s *MemoryPhaseStore) ListPhaseHistory(_ context.Context, assetID uuid.UUID, q domrepo.HistoryQuery) ([]models.PhaseHistory, error) {
	s.mu.RLock()
	entries := newestFirst(s.history[assetID], 0, func(h models.PhaseHistory) time.Time { return h.ChangedAt })
	s.mu.RUnlock()

	out := entries[:0]
	for _, h := range entries {
		if !q.Since.IsZero() && h.ChangedAt.Before(q.Since) {
			continue
		}
		out = append(out, h)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

var (
	_ domrepo.SnapshotStore = (*MemorySnapshotStore)(nil)
	_ domrepo.AssetStore    = (*MemoryAssetStore)(nil)
	_ domrepo.PhaseStore    = (*MemoryPhaseStore)(nil)
)
