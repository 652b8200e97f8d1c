package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"TFTracker/internal/domain/models"
	domrepo "TFTracker/internal/domain/repository"
	"TFTracker/pkg/cache"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Requires a disposable Redis; set TFT_TEST_REDIS_ADDR=localhost:6379 to run.
func newTestRedisStore(t *testing.T) *RedisPhaseStore {
	t.Helper()
	client, prefix := newTestRedisClient(t)
	return NewRedisPhaseStore(client, prefix, 3)
}

func newTestRedisClient(t *testing.T) (*redis.Client, string) {
	t.Helper()
	addr := os.Getenv("TFT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TFT_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	prefix := "tft-test-" + uuid.NewString()
	t.Cleanup(func() {
		keys, _ := client.Keys(context.Background(), prefix+":*").Result()
		if len(keys) > 0 {
			client.Del(context.Background(), keys...)
		}
		_ = client.Close()
	})
	return client, prefix
}

func TestRedisPhaseStoreCommitAndRead(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	id := uuid.New()

	if _, err := s.GetPhaseState(ctx, id); !errors.Is(err, domrepo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	at := time.Date(2024, 11, 3, 12, 0, 0, 0, time.UTC)
	state := models.PhaseState{AssetID: id, Phase: models.PhaseDefect, Confidence: 0.84, Rationale: "r", ComputedAt: at}
	entry := &models.PhaseHistory{ID: uuid.New(), AssetID: id, To: models.PhaseDefect, Confidence: 0.84, ChangedAt: at}
	if err := s.CommitPhase(ctx, state, entry); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := s.GetPhaseState(ctx, id)
	if err != nil || got.Phase != models.PhaseDefect || !got.ComputedAt.Equal(at) {
		t.Fatalf("unexpected state %+v err=%v", got, err)
	}
	states, err := s.ListPhaseStates(ctx)
	if err != nil || len(states) != 1 {
		t.Fatalf("unexpected states %v err=%v", states, err)
	}
	hist, err := s.ListPhaseHistory(ctx, id, domrepo.HistoryQuery{Limit: 10})
	if err != nil || len(hist) != 1 || hist[0].From != nil {
		t.Fatalf("unexpected history %+v err=%v", hist, err)
	}
}

func TestRedisPhaseStoreHistoryCapAndSince(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	id := uuid.New()
	at := time.Date(2024, 11, 3, 12, 0, 0, 0, time.UTC)

	phases := []models.Phase{models.PhaseCooperate, models.PhaseDefect, models.PhaseForgive, models.PhaseCooperate}
	for i, p := range phases {
		ts := at.Add(time.Duration(i) * time.Hour)
		st := models.PhaseState{AssetID: id, Phase: p, ComputedAt: ts}
		if err := s.CommitPhase(ctx, st, &models.PhaseHistory{ID: uuid.New(), AssetID: id, To: p, ChangedAt: ts}); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}

	hist, err := s.ListPhaseHistory(ctx, id, domrepo.HistoryQuery{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 3 || hist[0].To != models.PhaseCooperate || hist[2].To != models.PhaseDefect {
		t.Fatalf("expected capped newest-first history, got %+v", hist)
	}

	hist, err = s.ListPhaseHistory(ctx, id, domrepo.HistoryQuery{Limit: 5, Since: at.Add(150 * time.Minute)})
	if err != nil || len(hist) != 1 {
		t.Fatalf("expected one entry since window, got %+v err=%v", hist, err)
	}
}

func TestRedisLockReleaseChecksOwner(t *testing.T) {
	client, prefix := newTestRedisClient(t)
	lk := NewCacheLocker(cache.NewRedisCacheFromClient(client, prefix),
		WithLockTTL(100*time.Millisecond),
		WithLockWait(40*time.Millisecond, 5*time.Millisecond),
	)
	ctx := context.Background()

	unlockA, err := lk.Lock(ctx, "asset-1")
	if err != nil {
		t.Fatalf("lock A: %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	unlockB, err := lk.Lock(ctx, "asset-1")
	if err != nil {
		t.Fatalf("lock B: %v", err)
	}
	defer unlockB()

	unlockA()
	if _, err := lk.Lock(ctx, "asset-1"); !errors.Is(err, domrepo.ErrLockTimeout) {
		t.Fatalf("expected B to keep the lock, got %v", err)
	}
}
