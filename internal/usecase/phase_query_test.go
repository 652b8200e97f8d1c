package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"TFTracker/internal/domain/models"
	"TFTracker/internal/repository"
	"TFTracker/pkg/cache"

	"github.com/google/uuid"
)

func seededQuery(t *testing.T) (*PhaseQuery, *repository.MemoryPhaseStore, models.Asset) {
	t.Helper()
	btc := newAsset("BTC-USD")
	nvda := newAsset("NVDA")
	aapl := newAsset("AAPL") // never classified
	phases := repository.NewMemoryPhaseStore()
	ctx := context.Background()

	for i, p := range []models.Phase{models.PhaseCooperate, models.PhaseDefect, models.PhaseForgive} {
		at := t0.Add(time.Duration(i) * time.Hour)
		var from *models.Phase
		if i > 0 {
			prev := []models.Phase{models.PhaseCooperate, models.PhaseDefect}[i-1]
			from = &prev
		}
		_ = phases.CommitPhase(ctx, models.PhaseState{AssetID: btc.ID, Phase: p, Confidence: 0.7, ComputedAt: at},
			&models.PhaseHistory{ID: uuid.New(), AssetID: btc.ID, From: from, To: p, ChangedAt: at})
	}
	_ = phases.CommitPhase(ctx, models.PhaseState{AssetID: nvda.ID, Phase: models.PhaseCooperate, ComputedAt: t0}, nil)

	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	q := NewPhaseQuery(repository.NewMemoryAssetStore(btc, nvda, aapl), phases, c, time.Minute,
		map[string]string{"btc": "BTC-USD"}, nil)
	q.now = func() time.Time { return t0.Add(2*time.Hour + 30*time.Minute) }
	return q, phases, btc
}

func TestPhaseQueryListOrderedAndCached(t *testing.T) {
	q, phases, btc := seededQuery(t)
	ctx := context.Background()

	list, err := q.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Ticker != "BTC-USD" || list[1].Ticker != "NVDA" {
		t.Fatalf("unexpected list %+v", list)
	}

	// served from cache until a commit invalidates it
	_ = phases.CommitPhase(ctx, models.PhaseState{AssetID: btc.ID, Phase: models.PhaseCooperate, ComputedAt: t0.Add(5 * time.Hour)}, nil)
	list, _ = q.List(ctx)
	if list[0].Phase != models.PhaseForgive {
		t.Fatalf("expected cached FORGIVE, got %s", list[0].Phase)
	}
	if err := q.PhaseCommitted(ctx, models.PhaseState{}); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	list, _ = q.List(ctx)
	if list[0].Phase != models.PhaseCooperate {
		t.Fatalf("expected fresh COOPERATE, got %s", list[0].Phase)
	}
}

func TestPhaseQueryGetResolvesAliasesAndNotFound(t *testing.T) {
	q, _, _ := seededQuery(t)
	ctx := context.Background()

	v, err := q.Get(ctx, " btc ")
	if err != nil || v.Ticker != "BTC-USD" || v.Phase != models.PhaseForgive {
		t.Fatalf("alias lookup: %+v %v", v, err)
	}
	if _, err := q.Get(ctx, "MSFT"); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
	if _, err := q.Get(ctx, "AAPL"); !errors.Is(err, ErrPhaseNotFound) {
		t.Fatalf("expected ErrPhaseNotFound, got %v", err)
	}
}

func TestPhaseQueryHistoryLimitAndWindow(t *testing.T) {
	q, _, _ := seededQuery(t)
	ctx := context.Background()

	hist, err := q.History(ctx, HistoryParams{Ticker: "BTC-USD", Limit: 2})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 || hist[0].To != models.PhaseForgive || hist[0].Ticker != "BTC-USD" {
		t.Fatalf("unexpected history %+v", hist)
	}

	// now = t0+2h30m; a one hour window keeps only the t0+2h entry
	hist, err = q.History(ctx, HistoryParams{Ticker: "BTC-USD", Limit: 20, SinceMinutes: 60})
	if err != nil || len(hist) != 1 || hist[0].To != models.PhaseForgive {
		t.Fatalf("unexpected windowed history %+v err=%v", hist, err)
	}
}
