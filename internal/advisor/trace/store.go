package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
	errx "github.com/Advisor-core-poc-v1/server/internal/core/error"
	logx "github.com/Advisor-core-poc-v1/server/pkg/logger"
)

// Store is the durable keyed backend for execution traces. Any keyed store
// satisfies the contract; the shipped implementation is Redis.
type Store interface {
	Put(ctx context.Context, t *model.ExecutionTrace) error
	Get(ctx context.Context, traceID string) (*model.ExecutionTrace, error)
	List(ctx context.Context, filter model.TraceFilter) ([]model.TraceSummary, error)
}

// RedisStore keeps one JSON document per trace plus a ZSET index ordered by
// turn start time for listing.
type RedisStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) traceKey(traceID string) string {
	return fmt.Sprintf("trace:%s", traceID)
}

func (s *RedisStore) indexKey() string {
	return "trace:index"
}

func (s *RedisStore) Put(ctx context.Context, t *model.ExecutionTrace) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, s.traceKey(t.TraceID), b, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(t.StartedAt.UnixMilli()),
		Member: t.TraceID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("trace_id", t.TraceID).Msg("failed to persist trace")
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, traceID string) (*model.ExecutionTrace, error) {
	raw, err := s.rdb.Get(ctx, s.traceKey(traceID)).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}
	var t model.ExecutionTrace
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("unmarshal trace %s: %w", traceID, err)
	}
	return &t, nil
}

func (s *RedisStore) List(ctx context.Context, filter model.TraceFilter) ([]model.TraceSummary, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}

	var out []model.TraceSummary
	for _, id := range ids {
		t, err := s.Get(ctx, id)
		if err != nil {
			// Expired documents leave dangling index entries; skip them.
			continue
		}
		if !matches(t, filter) {
			continue
		}
		out = append(out, model.TraceSummary{
			TraceID:        t.TraceID,
			ConversationID: t.ConversationID,
			Intent:         t.Intent,
			Route:          t.Route,
			Status:         t.Status,
			HasHandoff:     t.Route == model.RouteHandoff,
			StartedAt:      t.StartedAt,
		})
	}
	return out, nil
}

func matches(t *model.ExecutionTrace, f model.TraceFilter) bool {
	if f.ConversationID != "" && t.ConversationID != f.ConversationID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Intent != "" && t.Intent != f.Intent {
		return false
	}
	if f.HasHandoff != nil && (t.Route == model.RouteHandoff) != *f.HasHandoff {
		return false
	}
	if !f.From.IsZero() && t.StartedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.StartedAt.After(f.To) {
		return false
	}
	return true
}

var _ Store = (*RedisStore)(nil)
