package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sheba:rl:"

// slidingWindowScript trims the window, counts it and admits the request
// when there is room, all in one round trip. Scores are unix milliseconds.
// Returns {allowed, count, oldest}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  count = count + 1
  allowed = 1
end
local oldest = now
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
  oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// RedisStore shares sliding windows across server instances.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := s.now()
	raw, err := slidingWindowScript.Run(ctx, s.client,
		[]string{keyPrefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("rate limit script: unexpected reply length %d", len(raw))
	}
	allowed, count, oldest := raw[0] == 1, int(raw[1]), raw[2]

	res := &Result{
		Allowed: allowed,
		Limit:   limit,
		ResetAt: time.UnixMilli(oldest).Add(window),
	}
	if allowed {
		res.Remaining = max(limit-count, 0)
	}
	return res, nil
}
