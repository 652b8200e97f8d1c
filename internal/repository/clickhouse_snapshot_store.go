package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TFTracker/internal/domain/models"
	domrepo "TFTracker/internal/domain/repository"
	pkgch "TFTracker/pkg/clickhouse"
	applogger "TFTracker/pkg/logger"

	"github.com/google/uuid"
)

// CHSnapshotStore implements SnapshotStore backed by ClickHouse.
type CHSnapshotStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHSnapshotStore(ch *pkgch.Client) *CHSnapshotStore {
	return &CHSnapshotStore{db: ch.DB(), l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHSnapshotStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSnapshotStore) fail(op string, assetID uuid.UUID, err error) error {
	s.l.Error("clickhouse "+op+" error",
		applogger.String("asset_id", assetID.String()),
		applogger.Error(err),
	)
	return fmt.Errorf("%s: %w", op, err)
}

func (s *CHSnapshotStore) done(op string, assetID uuid.UUID, rows int, start time.Time) {
	s.l.Debug("clickhouse "+op+" ok",
		applogger.String("asset_id", assetID.String()),
		applogger.Int("rows", rows),
		applogger.Duration("duration_ms", time.Since(start)),
	)
}

func (s *CHSnapshotStore) RecentMarketSnapshots(ctx context.Context, assetID uuid.UUID, limit int) ([]models.MarketSnapshot, error) {
	start := time.Now()
	const q = `
        SELECT price, price_change_pct, volume, vwap, volatility_1d, as_of
        FROM market_snapshot FINAL
        WHERE asset_id = toUUID(?)
        ORDER BY as_of DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, assetID.String(), limit)
	if err != nil {
		return nil, s.fail("recent_market", assetID, err)
	}
	defer rows.Close()

	out := make([]models.MarketSnapshot, 0, limit)
	for rows.Next() {
		var (
			m                       models.MarketSnapshot
			chg, vol, vwap, volat1d sql.NullFloat64
		)
		if err := rows.Scan(&m.Price, &chg, &vol, &vwap, &volat1d, &m.AsOf); err != nil {
			return nil, s.fail("recent_market scan", assetID, err)
		}
		m.AssetID = assetID
		m.PriceChangePct = nullable(chg)
		m.Volume = nullable(vol)
		m.VWAP = nullable(vwap)
		m.Volatility1D = nullable(volat1d)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("recent_market rows", assetID, err)
	}
	s.done("recent_market", assetID, len(out), start)
	return out, nil
}

func (s *CHSnapshotStore) RecentIndicatorSnapshots(ctx context.Context, assetID uuid.UUID, limit int) ([]models.IndicatorSnapshot, error) {
	start := time.Now()
	const q = `
        SELECT rsi_14, macd, macd_signal, atr_14, as_of
        FROM indicator_snapshot FINAL
        WHERE asset_id = toUUID(?)
        ORDER BY as_of DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, assetID.String(), limit)
	if err != nil {
		return nil, s.fail("recent_indicators", assetID, err)
	}
	defer rows.Close()

	out := make([]models.IndicatorSnapshot, 0, limit)
	for rows.Next() {
		var (
			ind                    models.IndicatorSnapshot
			rsi, macd, signal, atr sql.NullFloat64
		)
		if err := rows.Scan(&rsi, &macd, &signal, &atr, &ind.AsOf); err != nil {
			return nil, s.fail("recent_indicators scan", assetID, err)
		}
		ind.AssetID = assetID
		ind.RSI14 = nullable(rsi)
		ind.MACD = nullable(macd)
		ind.MACDSignal = nullable(signal)
		ind.ATR14 = nullable(atr)
		out = append(out, ind)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("recent_indicators rows", assetID, err)
	}
	s.done("recent_indicators", assetID, len(out), start)
	return out, nil
}

func (s *CHSnapshotStore) RecentSentimentObservations(ctx context.Context, assetID uuid.UUID, limit int) ([]models.SentimentObservation, error) {
	start := time.Now()
	const q = `
        SELECT toString(source_id), score, magnitude, features, observed_at
        FROM sentiment_observation FINAL
        WHERE asset_id = toUUID(?)
        ORDER BY observed_at DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, assetID.String(), limit)
	if err != nil {
		return nil, s.fail("recent_sentiment", assetID, err)
	}
	defer rows.Close()

	out := make([]models.SentimentObservation, 0, limit)
	for rows.Next() {
		var (
			o        models.SentimentObservation
			sourceID string
			features map[string]float64
		)
		if err := rows.Scan(&sourceID, &o.Score, &o.Magnitude, &features, &o.ObservedAt); err != nil {
			return nil, s.fail("recent_sentiment scan", assetID, err)
		}
		if o.SourceID, err = uuid.Parse(sourceID); err != nil {
			return nil, s.fail("recent_sentiment source_id", assetID, err)
		}
		o.AssetID = assetID
		if len(features) > 0 {
			o.Features = features
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("recent_sentiment rows", assetID, err)
	}
	s.done("recent_sentiment", assetID, len(out), start)
	return out, nil
}

func (s *CHSnapshotStore) SaveMarketSnapshot(ctx context.Context, m models.MarketSnapshot) error {
	const q = `INSERT INTO market_snapshot (asset_id, price, price_change_pct, volume, vwap, volatility_1d, as_of) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		m.AssetID, m.Price, m.PriceChangePct, m.Volume, m.VWAP, m.Volatility1D, m.AsOf.UTC(),
	); err != nil {
		return s.fail("save_market", m.AssetID, err)
	}
	return nil
}

func (s *CHSnapshotStore) SaveIndicatorSnapshot(ctx context.Context, ind models.IndicatorSnapshot) error {
	const q = `INSERT INTO indicator_snapshot (asset_id, rsi_14, macd, macd_signal, atr_14, as_of) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		ind.AssetID, ind.RSI14, ind.MACD, ind.MACDSignal, ind.ATR14, ind.AsOf.UTC(),
	); err != nil {
		return s.fail("save_indicator", ind.AssetID, err)
	}
	return nil
}

func (s *CHSnapshotStore) SaveSentimentSource(ctx context.Context, src models.SentimentSource) error {
	const q = `INSERT INTO sentiment_source (id, name, channel, reliability_tier, updated_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		src.ID, src.Name, src.Channel, src.ReliabilityTier, time.Now().UTC(),
	); err != nil {
		s.l.Error("clickhouse save_source error", applogger.String("source_id", src.ID.String()), applogger.Error(err))
		return fmt.Errorf("save_source: %w", err)
	}
	return nil
}

func (s *CHSnapshotStore) SaveSentimentObservation(ctx context.Context, o models.SentimentObservation) error {
	const q = `INSERT INTO sentiment_observation (asset_id, source_id, score, magnitude, features, observed_at) VALUES (?, ?, ?, ?, ?, ?)`
	features := o.Features
	if features == nil {
		features = map[string]float64{}
	}
	if _, err := s.db.ExecContext(ctx, q,
		o.AssetID, o.SourceID, o.Score, o.Magnitude, features, o.ObservedAt.UTC(),
	); err != nil {
		return s.fail("save_sentiment", o.AssetID, err)
	}
	return nil
}

// Health pings ClickHouse.
func (s *CHSnapshotStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

var _ domrepo.SnapshotStore = (*CHSnapshotStore)(nil)
