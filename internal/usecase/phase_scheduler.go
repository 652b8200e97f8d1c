package usecase

import (
	"context"
	"sync"
	"time"

	"TFTracker/internal/domain/models"
	applogger "TFTracker/pkg/logger"
)

// BatchUpdater is the subset of PhaseUpdater the scheduler drives.
type BatchUpdater interface {
	UpdateAll(ctx context.Context) ([]models.PhaseState, error)
	UpdateAssetsByTickers(ctx context.Context, tickers []string) ([]models.PhaseState, error)
}

// PhaseScheduler re-evaluates phases on a fixed interval. With tickers set it
// registers and refreshes only those, otherwise every tracked asset.
type PhaseScheduler struct {
	updater  BatchUpdater
	registry *AssetRegistry
	interval time.Duration
	tickers  []string
	l        *applogger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPhaseScheduler(updater BatchUpdater, registry *AssetRegistry, interval time.Duration, tickers []string, l *applogger.Logger) *PhaseScheduler {
	if l == nil {
		l = applogger.Nop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &PhaseScheduler{
		updater:  updater,
		registry: registry,
		interval: interval,
		tickers:  models.NormalizeTickers(tickers),
		l:        l,
	}
}

// Start launches the loop; the first run happens immediately.
func (s *PhaseScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.l.Info("phase scheduler started",
		applogger.Duration("interval_ms", s.interval),
		applogger.Strings("tickers", s.tickers),
	)
}

// Stop cancels the loop and waits for the current run to finish or ctx to expire.
func (s *PhaseScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *PhaseScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one refresh. Failures are logged; the next tick retries.
func (s *PhaseScheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	var (
		states []models.PhaseState
		err    error
	)
	if len(s.tickers) > 0 {
		tickers := s.tickers
		if s.registry != nil {
			assets, rerr := s.registry.EnsureAll(ctx, s.tickers)
			if rerr != nil {
				s.l.Error("phase scheduler register failed", applogger.Error(rerr))
				return
			}
			// aliases resolve to canonical tickers
			tickers = make([]string, len(assets))
			for i, a := range assets {
				tickers[i] = a.Ticker
			}
		}
		states, err = s.updater.UpdateAssetsByTickers(ctx, tickers)
	} else {
		states, err = s.updater.UpdateAll(ctx)
	}
	if err != nil {
		if ctx.Err() == nil {
			s.l.Error("phase scheduler run failed", applogger.Error(err))
		}
		return
	}
	s.l.Debug("phase scheduler run ok",
		applogger.Int("states", len(states)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
}
