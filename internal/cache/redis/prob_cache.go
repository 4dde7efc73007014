package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/foldmarket/foldmarket/internal/domain"
)

// ProbCache implements domain.ProbCache using Redis hashes. Each contract's
// probability is stored as a hash at key "prob:{contractID}" with fields
// "prob" and "ts" (Unix nanosecond timestamp), expiring after the configured
// TTL so read paths fall back to the store rather than serving stale odds.
type ProbCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewProbCache creates a ProbCache backed by the given Client. A zero ttl
// disables expiry.
func NewProbCache(c *Client, ttl time.Duration) *ProbCache {
	return &ProbCache{rdb: c.Underlying(), ttl: ttl}
}

func probKey(contractID string) string {
	return "prob:" + contractID
}

// SetProbability stores the latest probability and timestamp for a contract.
func (pc *ProbCache) SetProbability(ctx context.Context, contractID string, prob float64, ts time.Time) error {
	key := probKey(contractID)
	fields := map[string]interface{}{
		"prob": strconv.FormatFloat(prob, 'f', -1, 64),
		"ts":   strconv.FormatInt(ts.UnixNano(), 10),
	}

	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if pc.ttl > 0 {
		pipe.Expire(ctx, key, pc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set probability %s: %w", contractID, err)
	}
	return nil
}

// GetProbability retrieves the cached probability and timestamp for a
// contract. It returns domain.ErrNotFound when the key does not exist.
func (pc *ProbCache) GetProbability(ctx context.Context, contractID string) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, probKey(contractID)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get probability %s: %w", contractID, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	probStr, ok := vals["prob"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	prob, err := strconv.ParseFloat(probStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse probability %s: %w", contractID, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", contractID, err)
	}

	return prob, time.Unix(0, tsNano), nil
}

// Invalidate drops the cached probability for a contract.
func (pc *ProbCache) Invalidate(ctx context.Context, contractID string) error {
	if err := pc.rdb.Del(ctx, probKey(contractID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate probability %s: %w", contractID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ProbCache = (*ProbCache)(nil)
