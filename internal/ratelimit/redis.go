package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// takeScript keeps each key as a sorted set of hit ids scored by time in ms.
// It returns {allowed, count, oldestMs}.
var takeScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
local allowed = 0
if count < limit then
	redis.call("ZADD", key, now, member)
	redis.call("PEXPIRE", key, window)
	count = count + 1
	allowed = 1
end

local oldest = now
local first = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
if first[2] then
	oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// RedisStore shares hit logs between instances through Redis sorted sets.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore wraps client. Keys are written as prefix + key.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// Take records a hit atomically when the window still has room.
func (s *RedisStore) Take(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := s.now()
	id := uuid.NewString()

	vals, err := takeScript.Run(ctx, s.client, []string{s.prefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, id).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit take: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("rate limit take: unexpected reply of %d values", len(vals))
	}

	res := Result{
		Limit:   limit,
		ResetAt: time.UnixMilli(vals[2]).Add(window),
	}
	if vals[0] == 1 {
		res.Allowed = true
		res.Remaining = limit - int(vals[1])
		res.HitID = id
	}
	return res, nil
}

// Release removes a hit recorded by Take.
func (s *RedisStore) Release(ctx context.Context, key, hitID string) error {
	if err := s.client.ZRem(ctx, s.prefix+key, hitID).Err(); err != nil {
		return fmt.Errorf("rate limit release: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
