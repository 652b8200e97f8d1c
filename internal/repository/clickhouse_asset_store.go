package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"TFTracker/internal/domain/models"
	domrepo "TFTracker/internal/domain/repository"
	pkgch "TFTracker/pkg/clickhouse"
	applogger "TFTracker/pkg/logger"

	"github.com/google/uuid"
)

const assetColumns = `toString(id), ticker, name, type, exchange, display_ticker, created_at, updated_at`

// CHAssetStore implements AssetStore backed by the ClickHouse assets table.
type CHAssetStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHAssetStore(ch *pkgch.Client) *CHAssetStore {
	return &CHAssetStore{db: ch.DB(), l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHAssetStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHAssetStore) ListAssets(ctx context.Context) ([]models.Asset, error) {
	q := `SELECT ` + assetColumns + ` FROM assets FINAL ORDER BY ticker`
	return s.query(ctx, "list_assets", q)
}

func (s *CHAssetStore) GetAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Asset, error) {
	if len(ids) == 0 {
		return []models.Asset{}, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	q := `SELECT ` + assetColumns + ` FROM assets FINAL WHERE toString(id) IN (?)`
	found, err := s.query(ctx, "assets_by_ids", q, raw)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Asset, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	out := make([]models.Asset, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *CHAssetStore) GetAssetByTicker(ctx context.Context, ticker string) (models.Asset, error) {
	q := `SELECT ` + assetColumns + ` FROM assets FINAL WHERE ticker = ? LIMIT 1`
	found, err := s.query(ctx, "asset_by_ticker", q, models.NormalizeTicker(ticker))
	if err != nil {
		return models.Asset{}, err
	}
	if len(found) == 0 {
		return models.Asset{}, fmt.Errorf("asset %s: %w", ticker, domrepo.ErrNotFound)
	}
	return found[0], nil
}

func (s *CHAssetStore) GetAssetsByTickers(ctx context.Context, tickers []string) ([]models.Asset, error) {
	tickers = models.NormalizeTickers(tickers)
	if len(tickers) == 0 {
		return []models.Asset{}, nil
	}
	q := `SELECT ` + assetColumns + ` FROM assets FINAL WHERE ticker IN (?)`
	found, err := s.query(ctx, "assets_by_tickers", q, tickers)
	if err != nil {
		return nil, err
	}
	byTicker := make(map[string]models.Asset, len(found))
	for _, a := range found {
		byTicker[a.Ticker] = a
	}
	out := make([]models.Asset, 0, len(tickers))
	for _, t := range tickers {
		if a, ok := byTicker[t]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// UpsertAsset inserts a new row version; ReplacingMergeTree keeps the one
// with the latest updated_at.
func (s *CHAssetStore) UpsertAsset(ctx context.Context, a models.Asset) error {
	if a.ID == uuid.Nil {
		return errors.New("upsert asset: id is required")
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
	const q = `INSERT INTO assets (id, ticker, name, type, exchange, display_ticker, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		a.ID, models.NormalizeTicker(a.Ticker), a.Name, string(a.Type), a.Exchange, a.DisplayTicker,
		a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	); err != nil {
		s.l.Error("clickhouse upsert_asset error",
			applogger.String("ticker", a.Ticker),
			applogger.Error(err),
		)
		return fmt.Errorf("upsert asset: %w", err)
	}
	return nil
}

func (s *CHAssetStore) query(ctx context.Context, op, q string, args ...any) ([]models.Asset, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse "+op+" query error", applogger.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]models.Asset, 0, 16)
	for rows.Next() {
		var (
			a       models.Asset
			id, typ string
		)
		if err := rows.Scan(&id, &a.Ticker, &a.Name, &typ, &a.Exchange, &a.DisplayTicker, &a.CreatedAt, &a.UpdatedAt); err != nil {
			s.l.Error("clickhouse "+op+" scan error", applogger.Error(err))
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse asset id %q: %w", id, err)
		}
		a.Type = models.AssetType(typ)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		s.l.Error("clickhouse "+op+" rows error", applogger.Error(err))
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse "+op+" ok",
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

var _ domrepo.AssetStore = (*CHAssetStore)(nil)
