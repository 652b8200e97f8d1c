package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TFTracker/internal/domain/models"
	domrepo "TFTracker/internal/domain/repository"
	"TFTracker/pkg/cache"

	"github.com/google/uuid"
)

func TestMemorySnapshotStoreNewestFirst(t *testing.T) {
	s := NewMemorySnapshotStore()
	ctx := context.Background()
	id := uuid.New()
	at := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)

	// inserted out of order on purpose
	for _, h := range []int{2, 0, 1} {
		_ = s.SaveMarketSnapshot(ctx, models.MarketSnapshot{AssetID: id, Price: float64(h), AsOf: at.Add(time.Duration(h) * time.Hour)})
	}
	got, err := s.RecentMarketSnapshots(ctx, id, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Price != 2 || got[1].Price != 1 {
		t.Fatalf("unexpected order %+v", got)
	}
	if other, _ := s.RecentMarketSnapshots(ctx, uuid.New(), 2); len(other) != 0 {
		t.Fatalf("expected empty for unknown asset")
	}
}

func TestMemoryAssetStoreLookups(t *testing.T) {
	a := models.Asset{ID: uuid.New(), Ticker: "NVDA"}
	b := models.Asset{ID: uuid.New(), Ticker: "BTC-USD"}
	s := NewMemoryAssetStore(a, b)
	ctx := context.Background()

	got, err := s.GetAssetByTicker(ctx, "NVDA")
	if err != nil || got.ID != a.ID {
		t.Fatalf("by ticker: %+v %v", got, err)
	}
	if _, err := s.GetAssetByTicker(ctx, "MSFT"); !errors.Is(err, domrepo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	list, _ := s.ListAssets(ctx)
	if len(list) != 2 || list[0].Ticker != "BTC-USD" {
		t.Fatalf("expected ticker order, got %+v", list)
	}
	byTickers, _ := s.GetAssetsByTickers(ctx, []string{"NVDA", "MSFT", "BTC-USD"})
	if len(byTickers) != 2 || byTickers[0].Ticker != "NVDA" {
		t.Fatalf("unexpected %+v", byTickers)
	}
}

func TestMemoryPhaseStoreHistoryQuery(t *testing.T) {
	s := NewMemoryPhaseStore()
	ctx := context.Background()
	id := uuid.New()
	at := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)

	for i, p := range []models.Phase{models.PhaseCooperate, models.PhaseDefect, models.PhaseForgive} {
		ts := at.Add(time.Duration(i) * time.Hour)
		_ = s.CommitPhase(ctx, models.PhaseState{AssetID: id, Phase: p, ComputedAt: ts},
			&models.PhaseHistory{ID: uuid.New(), AssetID: id, To: p, ChangedAt: ts})
	}

	hist, _ := s.ListPhaseHistory(ctx, id, domrepo.HistoryQuery{Limit: 2})
	if len(hist) != 2 || hist[0].To != models.PhaseForgive || hist[1].To != models.PhaseDefect {
		t.Fatalf("unexpected %+v", hist)
	}
	hist, _ = s.ListPhaseHistory(ctx, id, domrepo.HistoryQuery{Since: at.Add(90 * time.Minute)})
	if len(hist) != 1 || hist[0].To != models.PhaseForgive {
		t.Fatalf("unexpected since filter %+v", hist)
	}
	st, err := s.GetPhaseState(ctx, id)
	if err != nil || st.Phase != models.PhaseForgive {
		t.Fatalf("unexpected state %+v %v", st, err)
	}
}

func TestCacheLockerSerializes(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	lk := NewCacheLocker(c, WithLockWait(time.Second, time.Millisecond))

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := lk.Lock(context.Background(), "asset-1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected exclusive access, saw %d holders", maxSeen)
	}
}

func TestCacheLockerTimesOut(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	lk := NewCacheLocker(c, WithLockWait(20*time.Millisecond, 5*time.Millisecond))

	unlock, err := lk.Lock(context.Background(), "asset-2")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	if _, err := lk.Lock(context.Background(), "asset-2"); !errors.Is(err, domrepo.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}

func TestCacheLockerExpiredHolderCannotReleaseSuccessor(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	lk := NewCacheLocker(c,
		WithLockTTL(40*time.Millisecond),
		WithLockWait(15*time.Millisecond, 2*time.Millisecond),
	)
	ctx := context.Background()

	unlockA, err := lk.Lock(ctx, "asset-1")
	if err != nil {
		t.Fatalf("lock A: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	unlockB, err := lk.Lock(ctx, "asset-1")
	if err != nil {
		t.Fatalf("lock B after A expired: %v", err)
	}
	defer unlockB()

	unlockA()

	if unlockC, err := lk.Lock(ctx, "asset-1"); !errors.Is(err, domrepo.ErrLockTimeout) {
		if err == nil {
			unlockC()
		}
		t.Fatalf("expected B to still hold asset-1, got %v", err)
	}
}
