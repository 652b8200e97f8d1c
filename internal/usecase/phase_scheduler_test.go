package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TFTracker/internal/domain/models"
	"TFTracker/internal/repository"
)

type countingBatch struct {
	mu      sync.Mutex
	all     int
	tickers [][]string
	err     error
}

func (c *countingBatch) UpdateAll(context.Context) ([]models.PhaseState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.all++
	return nil, c.err
}

func (c *countingBatch) UpdateAssetsByTickers(_ context.Context, tickers []string) ([]models.PhaseState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tickers = append(c.tickers, tickers)
	return nil, c.err
}

func (c *countingBatch) runs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.all + len(c.tickers)
}

func TestSchedulerRunOnceWithTickersRegistersAssets(t *testing.T) {
	assets := repository.NewMemoryAssetStore()
	b := &countingBatch{}
	s := NewPhaseScheduler(b, NewAssetRegistry(assets, nil), time.Minute, []string{"nvda", "BTC-USD", "NVDA"}, nil)

	s.RunOnce(context.Background())
	if len(b.tickers) != 1 || len(b.tickers[0]) != 2 || b.tickers[0][0] != "NVDA" {
		t.Fatalf("unexpected tickers %+v", b.tickers)
	}
	if list, _ := assets.ListAssets(context.Background()); len(list) != 2 {
		t.Fatalf("expected two registered assets, got %d", len(list))
	}
}

func TestSchedulerRunOnceWithoutTickersUpdatesAll(t *testing.T) {
	b := &countingBatch{err: errors.New("store down")}
	s := NewPhaseScheduler(b, nil, time.Minute, nil, nil)
	s.RunOnce(context.Background()) // failure is logged only
	if b.all != 1 {
		t.Fatalf("expected UpdateAll, got %d", b.all)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	b := &countingBatch{}
	s := NewPhaseScheduler(b, nil, 5*time.Millisecond, nil, nil)
	s.Start(context.Background())
	s.Start(context.Background()) // second start is a no-op

	deadline := time.Now().Add(2 * time.Second)
	for b.runs() < 3 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if b.runs() < 3 {
		t.Fatalf("expected at least 3 runs, got %d", b.runs())
	}
	after := b.runs()
	time.Sleep(20 * time.Millisecond)
	if b.runs() != after {
		t.Fatalf("scheduler kept running after stop")
	}
}
