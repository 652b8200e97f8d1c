package phase

import (
	"context"
	"errors"
	"testing"
	"time"

	"TFTracker/internal/domain/models"
	"TFTracker/internal/repository"

	"github.com/google/uuid"
)

var base = time.Date(2024, 11, 3, 12, 0, 0, 0, time.UTC)

func seedMarket(t *testing.T, s *repository.MemorySnapshotStore, id uuid.UUID, prices ...float64) {
	t.Helper()
	for i, p := range prices {
		err := s.SaveMarketSnapshot(context.Background(), models.MarketSnapshot{
			AssetID: id,
			Price:   p,
			AsOf:    base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("seed market: %v", err)
		}
	}
}

func seedRSI(t *testing.T, s *repository.MemorySnapshotStore, id uuid.UUID, values ...float64) {
	t.Helper()
	for i, v := range values {
		err := s.SaveIndicatorSnapshot(context.Background(), models.IndicatorSnapshot{
			AssetID: id,
			RSI14:   models.Float(v),
			AsOf:    base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("seed indicators: %v", err)
		}
	}
}

func TestClassifierNoMarketData(t *testing.T) {
	store := repository.NewMemorySnapshotStore()
	c := NewClassifier(store)
	_, ok, err := c.Evaluate(context.Background(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no result")
	}
}

func TestClassifierDefectScenario(t *testing.T) {
	store := repository.NewMemorySnapshotStore()
	id := uuid.New()
	seedMarket(t, store, id, 430, 410)
	seedRSI(t, store, id, 28)

	res, ok, err := NewClassifier(store).Evaluate(context.Background(), id, nil)
	if err != nil || !ok {
		t.Fatalf("expected result, ok=%v err=%v", ok, err)
	}
	if res.Phase != models.PhaseDefect || !near(res.Confidence, 0.84) {
		t.Fatalf("unexpected %s %v", res.Phase, res.Confidence)
	}
	if !res.ComputedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("computed_at should be latest snapshot time, got %v", res.ComputedAt)
	}
}

func TestClassifierSingleSnapshotNoChange(t *testing.T) {
	store := repository.NewMemorySnapshotStore()
	id := uuid.New()
	seedMarket(t, store, id, 100)

	res, ok, err := NewClassifier(store).Evaluate(context.Background(), id, nil)
	if err != nil || !ok {
		t.Fatalf("expected result, ok=%v err=%v", ok, err)
	}
	if res.Phase != models.PhaseCooperate || res.Confidence != 0.5 {
		t.Fatalf("expected fallback COOPERATE 0.5, got %s %v", res.Phase, res.Confidence)
	}
}

func TestClassifierSentimentDisabledIgnoresObservations(t *testing.T) {
	store := repository.NewMemorySnapshotStore()
	id := uuid.New()
	seedMarket(t, store, id, 100)
	_ = store.SaveSentimentObservation(context.Background(), models.SentimentObservation{
		AssetID: id, Score: -0.9, ObservedAt: base,
	})

	res, _, err := NewClassifier(store).Evaluate(context.Background(), id, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Phase != models.PhaseCooperate {
		t.Fatalf("sentiment should be ignored when disabled, got %s", res.Phase)
	}

	enabled := NewClassifier(store,
		WithSentiment(true, 30*time.Minute),
		WithClock(func() time.Time { return base.Add(10 * time.Minute) }),
	)
	res, _, err = enabled.Evaluate(context.Background(), id, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Phase != models.PhaseDefect || res.Rationale != "Negative sentiment -0.90" {
		t.Fatalf("unexpected %s %q", res.Phase, res.Rationale)
	}
}

func TestClassifierStaleSentimentLowersFallback(t *testing.T) {
	store := repository.NewMemorySnapshotStore()
	id := uuid.New()
	seedMarket(t, store, id, 100)
	_ = store.SaveSentimentObservation(context.Background(), models.SentimentObservation{
		AssetID: id, Score: 0.0, ObservedAt: base,
	})
	c := NewClassifier(store,
		WithSentiment(true, 30*time.Minute),
		WithClock(func() time.Time { return base.Add(2 * time.Hour) }),
	)
	res, _, err := c.Evaluate(context.Background(), id, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !near(res.Confidence, 0.45) {
		t.Fatalf("expected 0.45, got %v", res.Confidence)
	}
}

type failingStore struct{ *repository.MemorySnapshotStore }

func (failingStore) RecentMarketSnapshots(context.Context, uuid.UUID, int) ([]models.MarketSnapshot, error) {
	return nil, errors.New("boom")
}

func TestClassifierSurfacesStoreErrors(t *testing.T) {
	c := NewClassifier(failingStore{repository.NewMemorySnapshotStore()})
	if _, _, err := c.Evaluate(context.Background(), uuid.New(), nil); err == nil {
		t.Fatalf("expected error")
	}
}
