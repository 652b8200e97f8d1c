package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"TFTracker/internal/domain/models"
	domrepo "TFTracker/internal/domain/repository"
)

// ErrAssetExists is returned by Create when the ticker is already tracked.
var ErrAssetExists = errors.New("asset already exists")

// NewAssetParams describes an asset registered through the API.
type NewAssetParams struct {
	Ticker   string
	Name     string
	Type     models.AssetType // inferred from the ticker when empty
	Exchange string
}

// AssetRegistry resolves tickers to assets, registering unknown ones.
type AssetRegistry struct {
	assets  domrepo.AssetStore
	aliases map[string]string
	now     func() time.Time
}

func NewAssetRegistry(assets domrepo.AssetStore, aliases map[string]string) *AssetRegistry {
	return &AssetRegistry{assets: assets, aliases: aliases, now: time.Now}
}

// Ensure returns the asset for raw, creating it when missing.
func (r *AssetRegistry) Ensure(ctx context.Context, raw, name string) (models.Asset, error) {
	canonical, display := models.ResolveTicker(raw, r.aliases)
	if canonical == "" {
		return models.Asset{}, errors.New("empty ticker")
	}
	a, err := r.assets.GetAssetByTicker(ctx, canonical)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, domrepo.ErrNotFound) {
		return models.Asset{}, fmt.Errorf("get asset %s: %w", canonical, err)
	}

	if name == "" {
		name = canonical
	}
	now := r.now().UTC()
	a = models.Asset{
		ID:            models.AssetIDFor(canonical),
		Ticker:        canonical,
		Name:          name,
		Type:          models.InferAssetType(canonical),
		DisplayTicker: display,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.assets.UpsertAsset(ctx, a); err != nil {
		return models.Asset{}, fmt.Errorf("register asset %s: %w", canonical, err)
	}
	return a, nil
}

// EnsureAll registers every ticker in order.
func (r *AssetRegistry) EnsureAll(ctx context.Context, tickers []string) ([]models.Asset, error) {
	out := make([]models.Asset, 0, len(tickers))
	for _, t := range models.NormalizeTickers(tickers) {
		a, err := r.Ensure(ctx, t, "")
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// List returns every tracked asset ordered by ticker.
func (r *AssetRegistry) List(ctx context.Context) ([]models.Asset, error) {
	assets, err := r.assets.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Ticker < assets[j].Ticker })
	return assets, nil
}

// Create registers a new asset. Unlike Ensure it refuses a ticker that is
// already tracked.
func (r *AssetRegistry) Create(ctx context.Context, p NewAssetParams) (models.Asset, error) {
	canonical, display := models.ResolveTicker(p.Ticker, r.aliases)
	if canonical == "" {
		return models.Asset{}, errors.New("empty ticker")
	}
	_, err := r.assets.GetAssetByTicker(ctx, canonical)
	switch {
	case err == nil:
		return models.Asset{}, fmt.Errorf("%w: %s", ErrAssetExists, canonical)
	case !errors.Is(err, domrepo.ErrNotFound):
		return models.Asset{}, fmt.Errorf("get asset %s: %w", canonical, err)
	}

	name := p.Name
	if name == "" {
		name = canonical
	}
	typ := p.Type
	if typ == "" {
		typ = models.InferAssetType(canonical)
	}
	now := r.now().UTC()
	a := models.Asset{
		ID:            models.AssetIDFor(canonical),
		Ticker:        canonical,
		Name:          name,
		Type:          typ,
		Exchange:      p.Exchange,
		DisplayTicker: display,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.assets.UpsertAsset(ctx, a); err != nil {
		return models.Asset{}, fmt.Errorf("create asset %s: %w", canonical, err)
	}
	return a, nil
}
