package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TFTracker/internal/domain/models"
	domrepo "TFTracker/internal/domain/repository"
	applogger "TFTracker/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisPhaseStore keeps phase state as JSON strings and history as a capped
// newest-first list per asset. CommitPhase uses MULTI/EXEC.
type RedisPhaseStore struct {
	client     *redis.Client
	prefix     string
	historyCap int64
	l          *applogger.Logger
}

func NewRedisPhaseStore(client *redis.Client, prefix string, historyCap int) *RedisPhaseStore {
	if historyCap <= 0 {
		historyCap = 1000
	}
	return &RedisPhaseStore{client: client, prefix: prefix, historyCap: int64(historyCap), l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *RedisPhaseStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *RedisPhaseStore) stateKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:phase:state:%s", s.prefix, id)
}

func (s *RedisPhaseStore) historyKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:phase:history:%s", s.prefix, id)
}

func (s *RedisPhaseStore) indexKey() string {
	return s.prefix + ":phase:assets"
}

func (s *RedisPhaseStore) GetPhaseState(ctx context.Context, assetID uuid.UUID) (models.PhaseState, error) {
	b, err := s.client.Get(ctx, s.stateKey(assetID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.PhaseState{}, domrepo.ErrNotFound
		}
		return models.PhaseState{}, fmt.Errorf("get phase state: %w", err)
	}
	var st models.PhaseState
	if err := json.Unmarshal(b, &st); err != nil {
		return models.PhaseState{}, fmt.Errorf("decode phase state: %w", err)
	}
	return st, nil
}

func (s *RedisPhaseStore) CommitPhase(ctx context.Context, state models.PhaseState, entry *models.PhaseHistory) error {
	start := time.Now()
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode phase state: %w", err)
	}
	var entryJSON []byte
	if entry != nil {
		if entryJSON, err = json.Marshal(entry); err != nil {
			return fmt.Errorf("encode phase history: %w", err)
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.stateKey(state.AssetID), stateJSON, 0)
		pipe.SAdd(ctx, s.indexKey(), state.AssetID.String())
		if entryJSON != nil {
			hk := s.historyKey(state.AssetID)
			pipe.LPush(ctx, hk, entryJSON)
			pipe.LTrim(ctx, hk, 0, s.historyCap-1)
		}
		return nil
	})
	if err != nil {
		s.l.Error("redis commit_phase error",
			applogger.String("asset_id", state.AssetID.String()),
			applogger.Error(err),
		)
		return fmt.Errorf("commit phase: %w", err)
	}
	s.l.Debug("redis commit_phase ok",
		applogger.String("asset_id", state.AssetID.String()),
		applogger.Bool("history", entry != nil),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *RedisPhaseStore) ListPhaseStates(ctx context.Context) ([]models.PhaseState, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list phase assets: %w", err)
	}
	if len(ids) == 0 {
		return []models.PhaseState{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.l.Warn("redis list_phase_states bad asset id", applogger.String("id", raw))
			continue
		}
		keys = append(keys, s.stateKey(id))
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget phase states: %w", err)
	}

	out := make([]models.PhaseState, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var st models.PhaseState
		if err := json.Unmarshal([]byte(str), &st); err != nil {
			return nil, fmt.Errorf("decode phase state: %w", err)
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *RedisPhaseStore) ListPhaseHistory(ctx context.Context, assetID uuid.UUID, q domrepo.HistoryQuery) ([]models.PhaseHistory, error) {
	stop := int64(-1)
	if q.Since.IsZero() && q.Limit > 0 {
		stop = int64(q.Limit) - 1
	}
	raw, err := s.client.LRange(ctx, s.historyKey(assetID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list phase history: %w", err)
	}

	out := make([]models.PhaseHistory, 0, len(raw))
	for _, r := range raw {
		var h models.PhaseHistory
		if err := json.Unmarshal([]byte(r), &h); err != nil {
			return nil, fmt.Errorf("decode phase history: %w", err)
		}
		if !q.Since.IsZero() && h.ChangedAt.Before(q.Since) {
			continue
		}
		out = append(out, h)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// Health pings Redis.
func (s *RedisPhaseStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ domrepo.PhaseStore = (*RedisPhaseStore)(nil)
