package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"TFTracker/internal/domain/models"
	domrepo "TFTracker/internal/domain/repository"

	"golang.org/x/sync/errgroup"
)

// SnapshotQuery serves the newest market and indicator snapshot per asset,
// joined with the asset and ordered by ticker.
type SnapshotQuery struct {
	assets      domrepo.AssetStore
	snapshots   domrepo.SnapshotStore
	aliases     map[string]string
	parallelism int
}

func NewSnapshotQuery(assets domrepo.AssetStore, snapshots domrepo.SnapshotStore, aliases map[string]string) *SnapshotQuery {
	return &SnapshotQuery{assets: assets, snapshots: snapshots, aliases: aliases, parallelism: 8}
}

// LatestMarket returns the newest market snapshot of each asset in scope.
// An empty tickers list means every tracked asset. Assets without data are
// left out.
func (q *SnapshotQuery) LatestMarket(ctx context.Context, tickers []string) ([]models.MarketSnapshotView, error) {
	return latestPerAsset(ctx, q, tickers, func(ctx context.Context, a models.Asset) (*models.MarketSnapshotView, error) {
		rows, err := q.snapshots.RecentMarketSnapshots(ctx, a.ID, 1)
		if err != nil || len(rows) == 0 {
			return nil, err
		}
		return &models.MarketSnapshotView{MarketSnapshot: rows[0], AssetRef: models.NewAssetRef(a)}, nil
	})
}

// LatestIndicators is LatestMarket for indicator snapshots.
func (q *SnapshotQuery) LatestIndicators(ctx context.Context, tickers []string) ([]models.IndicatorSnapshotView, error) {
	return latestPerAsset(ctx, q, tickers, func(ctx context.Context, a models.Asset) (*models.IndicatorSnapshotView, error) {
		rows, err := q.snapshots.RecentIndicatorSnapshots(ctx, a.ID, 1)
		if err != nil || len(rows) == 0 {
			return nil, err
		}
		return &models.IndicatorSnapshotView{IndicatorSnapshot: rows[0], AssetRef: models.NewAssetRef(a)}, nil
	})
}

func (q *SnapshotQuery) scope(ctx context.Context, tickers []string) ([]models.Asset, error) {
	var (
		assets []models.Asset
		err    error
	)
	if filter := SplitTickers(tickers); len(filter) == 0 {
		assets, err = q.assets.ListAssets(ctx)
	} else {
		for i, t := range filter {
			filter[i], _ = models.ResolveTicker(t, q.aliases)
		}
		assets, err = q.assets.GetAssetsByTickers(ctx, filter)
	}
	if err != nil {
		return nil, fmt.Errorf("load assets: %w", err)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Ticker < assets[j].Ticker })
	return assets, nil
}

func latestPerAsset[T any](ctx context.Context, q *SnapshotQuery, tickers []string, fetch func(context.Context, models.Asset) (*T, error)) ([]T, error) {
	assets, err := q.scope(ctx, tickers)
	if err != nil {
		return nil, err
	}

	found := make([]*T, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.parallelism)
	for i, a := range assets {
		g.Go(func() error {
			v, err := fetch(gctx, a)
			if err != nil {
				return fmt.Errorf("latest snapshot %s: %w", a.Ticker, err)
			}
			found[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(found))
	for _, v := range found {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out, nil
}

// SplitTickers flattens repeated and comma separated ticker params and
// normalizes them.
func SplitTickers(raw []string) []string {
	var parts []string
	for _, r := range raw {
		parts = append(parts, strings.Split(r, ",")...)
	}
	return models.NormalizeTickers(parts)
}
