package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// advanceScript compares-and-sets the watermark: the key only ever moves
// forward, so a replayed or out-of-order update id is rejected.
var advanceScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '-1')
local next = tonumber(ARGV[1])
if next > current then
	redis.call('SET', KEYS[1], ARGV[1])
	return 1
end
return 0
`)

// Watermark tracks the highest processed update id in Redis so each
// inbound command is applied at most once, across restarts and workers.
type Watermark struct {
	redis *redis.Client
	key   string
}

// NewWatermark creates a watermark store under the given key.
func NewWatermark(redisClient *redis.Client, key string) *Watermark {
	return &Watermark{redis: redisClient, key: key}
}

// Advance attempts to move the watermark to updateID. Returns false when
// the id was already processed (watermark at or beyond it).
func (w *Watermark) Advance(ctx context.Context, updateID int64) (bool, error) {
	res, err := advanceScript.Run(ctx, w.redis, []string{w.key}, updateID).Int()
	if err != nil {
		return false, fmt.Errorf("failed to advance watermark: %w", err)
	}
	return res == 1, nil
}

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// refreshScript extends the lock TTL only when the caller still owns it.
var refreshScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// WorkerLock is an advisory lock so only one gateway worker consumes
// commands and advances the watermark at a time.
type WorkerLock struct {
	redis *redis.Client
	key   string
	token string
	ttl   time.Duration
}

// NewWorkerLock creates an advisory lock with a fresh owner token.
func NewWorkerLock(redisClient *redis.Client, key string, ttl time.Duration) *WorkerLock {
	return &WorkerLock{
		redis: redisClient,
		key:   key,
		token: uuid.NewString(),
		ttl:   ttl,
	}
}

// Acquire takes the lock. Returns false when another worker holds it.
func (l *WorkerLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.redis.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire worker lock: %w", err)
	}
	return ok, nil
}

// Refresh extends the TTL while this worker is alive. Returns false when
// the lock was lost.
func (l *WorkerLock) Refresh(ctx context.Context) (bool, error) {
	res, err := refreshScript.Run(ctx, l.redis, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to refresh worker lock: %w", err)
	}
	return res == 1, nil
}

// Release drops the lock if still owned.
func (l *WorkerLock) Release(ctx context.Context) error {
	if _, err := releaseScript.Run(ctx, l.redis, []string{l.key}, l.token).Result(); err != nil {
		return fmt.Errorf("failed to release worker lock: %w", err)
	}
	return nil
}
