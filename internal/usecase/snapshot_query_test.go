package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"TFTracker/internal/domain/models"
	"TFTracker/internal/repository"
)

func TestSplitTickers(t *testing.T) {
	got := SplitTickers([]string{"nvda, aapl", "", "NVDA", " btc-usd "})
	want := []string{"NVDA", "AAPL", "BTC-USD"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSnapshotQueryLatestMarketNewestPerAsset(t *testing.T) {
	nvda, btc := newAsset("NVDA"), newAsset("BTC-USD")
	snaps := repository.NewMemorySnapshotStore()
	ctx := context.Background()
	_ = snaps.SaveMarketSnapshot(ctx, models.MarketSnapshot{AssetID: nvda.ID, Price: 430, AsOf: t0})
	_ = snaps.SaveMarketSnapshot(ctx, models.MarketSnapshot{AssetID: nvda.ID, Price: 410, AsOf: t0.Add(time.Minute)})
	_ = snaps.SaveMarketSnapshot(ctx, models.MarketSnapshot{AssetID: btc.ID, Price: 68000, AsOf: t0})

	q := NewSnapshotQuery(repository.NewMemoryAssetStore(nvda, btc, newAsset("AAPL")), snaps, map[string]string{"BTC": "BTC-USD"})
	all, err := q.LatestMarket(ctx, nil)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(all) != 2 || all[0].Ticker != "BTC-USD" || all[1].Price != 410 {
		t.Fatalf("unexpected %+v", all)
	}
	only, _ := q.LatestMarket(ctx, []string{"btc"})
	if len(only) != 1 || only[0].AssetID != btc.ID || only[0].AssetType != models.AssetCrypto {
		t.Fatalf("alias filter: %+v", only)
	}
}

func TestAssetRegistryCreateRefusesDuplicate(t *testing.T) {
	reg := NewAssetRegistry(repository.NewMemoryAssetStore(), map[string]string{"BTC": "BTC-USD"})
	ctx := context.Background()

	a, err := reg.Create(ctx, NewAssetParams{Ticker: "btc", Name: "Bitcoin"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Ticker != "BTC-USD" || a.DisplayTicker != "BTC" || a.Type != models.AssetCrypto {
		t.Fatalf("unexpected asset %+v", a)
	}
	if _, err := reg.Create(ctx, NewAssetParams{Ticker: "BTC-USD"}); !errors.Is(err, ErrAssetExists) {
		t.Fatalf("expected ErrAssetExists, got %v", err)
	}
	list, _ := reg.List(ctx)
	if len(list) != 1 {
		t.Fatalf("expected one asset, got %d", len(list))
	}
}
