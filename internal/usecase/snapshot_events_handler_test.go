package usecase

import (
	"context"
	"errors"
	"testing"

	"TFTracker/internal/domain/models"
	"TFTracker/internal/repository"
)

type stubUpdater struct {
	calls []models.Asset
	err   error
}

func (s *stubUpdater) UpdateAsset(_ context.Context, a models.Asset) (*models.PhaseState, error) {
	s.calls = append(s.calls, a)
	return nil, s.err
}

func newHandler() (*SnapshotEventsHandler, *repository.MemorySnapshotStore, *repository.MemoryAssetStore, *stubUpdater) {
	snaps := repository.NewMemorySnapshotStore()
	assets := repository.NewMemoryAssetStore()
	up := &stubUpdater{}
	reg := NewAssetRegistry(assets, map[string]string{"BTC": "BTC-USD"})
	return NewSnapshotEventsHandler("tft.snapshots", reg, snaps, up, nil, nil), snaps, assets, up
}

func TestSnapshotEventsHandlerMarketEvent(t *testing.T) {
	h, snaps, assets, up := newHandler()
	ctx := context.Background()

	msg := `{"type":"market","ticker":"btc","name":"Bitcoin",
		"market":{"price":68000.5,"price_change_pct":-2.5,"as_of":"2024-11-03T14:00:00Z"},
		"indicator":{"rsi_14":31.2}}`
	if err := h.Handle(ctx, []byte(msg)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	a, err := assets.GetAssetByTicker(ctx, "BTC-USD")
	if err != nil {
		t.Fatalf("asset not registered: %v", err)
	}
	if a.Type != models.AssetCrypto || a.DisplayTicker != "BTC" || a.Name != "Bitcoin" {
		t.Fatalf("unexpected asset %+v", a)
	}
	m, _ := snaps.RecentMarketSnapshots(ctx, a.ID, 1)
	if len(m) != 1 || m[0].Price != 68000.5 || *m[0].PriceChangePct != -2.5 {
		t.Fatalf("unexpected market %+v", m)
	}
	ind, _ := snaps.RecentIndicatorSnapshots(ctx, a.ID, 1)
	if len(ind) != 1 || !ind[0].AsOf.Equal(m[0].AsOf) {
		t.Fatalf("indicator should inherit market as_of, got %+v", ind)
	}
	if len(up.calls) != 1 || up.calls[0].ID != a.ID {
		t.Fatalf("expected one update for %s, got %+v", a.Ticker, up.calls)
	}
}

func TestSnapshotEventsHandlerSentimentEvent(t *testing.T) {
	h, snaps, assets, up := newHandler()
	ctx := context.Background()

	msg := `{"type":"sentiment","ticker":"NVDA","source":{"name":"newswire","channel":"news"},
		"sentiment":{"score":-0.4,"magnitude":0.8,"observed_at":"2024-11-03T14:00:00Z"}}`
	if err := h.Handle(ctx, []byte(msg)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	a, _ := assets.GetAssetByTicker(ctx, "NVDA")
	obs, _ := snaps.RecentSentimentObservations(ctx, a.ID, 5)
	if len(obs) != 1 || obs[0].SourceID != models.SourceIDFor("newswire") || obs[0].Score != -0.4 {
		t.Fatalf("unexpected observations %+v", obs)
	}
	if len(up.calls) != 0 {
		t.Fatalf("sentiment events must not trigger an update")
	}
}

func TestSnapshotEventsHandlerDropsMalformed(t *testing.T) {
	h, snaps, assets, up := newHandler()
	ctx := context.Background()

	for _, msg := range []string{
		`not json`,
		`{"type":"weather","ticker":"NVDA"}`,
		`{"type":"market","ticker":"NVDA"}`,
		`{"type":"sentiment","ticker":""}`,
		`{"type":"sentiment","ticker":"NVDA","sentiment":{"score":-7.5,"magnitude":-3}}`,
		`{"type":"sentiment","ticker":"NVDA","sentiment":{"score":0.4,"magnitude":-1}}`,
		`{"type":"market","ticker":"NVDA","market":{"price":-12}}`,
	} {
		if err := h.Handle(ctx, []byte(msg)); err != nil {
			t.Fatalf("malformed %q should be dropped, got %v", msg, err)
		}
	}
	if list, _ := assets.ListAssets(ctx); len(list) != 0 || len(up.calls) != 0 {
		t.Fatalf("malformed events must not register assets or update")
	}
	id := models.AssetIDFor("NVDA")
	if obs, _ := snaps.RecentSentimentObservations(ctx, id, 10); len(obs) != 0 {
		t.Fatalf("out-of-range sentiment stored: %+v", obs)
	}
	if ms, _ := snaps.RecentMarketSnapshots(ctx, id, 10); len(ms) != 0 {
		t.Fatalf("negative price stored: %+v", ms)
	}
}

func TestSnapshotEventsHandlerPropagatesUpdateError(t *testing.T) {
	h, _, _, up := newHandler()
	up.err = errors.New("lock wait timeout")
	msg := `{"type":"market","ticker":"NVDA","market":{"price":100}}`
	if err := h.Handle(context.Background(), []byte(msg)); err == nil {
		t.Fatalf("expected update error to be returned for retry")
	}
}

func TestAssetRegistryEnsureIsStable(t *testing.T) {
	assets := repository.NewMemoryAssetStore()
	reg := NewAssetRegistry(assets, nil)
	ctx := context.Background()

	a1, err := reg.Ensure(ctx, "nvda", "")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	a2, _ := reg.Ensure(ctx, "NVDA", "Nvidia")
	if a1.ID != a2.ID || a1.ID != models.AssetIDFor("NVDA") {
		t.Fatalf("ids differ: %s %s", a1.ID, a2.ID)
	}
	if _, err := reg.Ensure(ctx, "  ", ""); err == nil {
		t.Fatalf("expected error for blank ticker")
	}
}
