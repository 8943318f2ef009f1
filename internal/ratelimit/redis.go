package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// The first INCR in a window starts its expiry, so the counter and its reset are set atomically.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

// RedisLimiter shares counters between processes through Redis.
type RedisLimiter struct {
	client redis.Scripter
	cfg    Config
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a limiter storing counters under prefix.
func NewRedisLimiter(client redis.Scripter, cfg Config, prefix string) *RedisLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &RedisLimiter{client: client, cfg: cfg, prefix: prefix, now: time.Now}
}

// Allow records one attempt for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	values, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, l.cfg.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: redis: %w", err)
	}
	if len(values) != 2 {
		return Result{}, fmt.Errorf("ratelimit: redis: unexpected reply %v", values)
	}

	attempts := int(values[0])
	ttl := time.Duration(values[1]) * time.Millisecond
	if ttl < 0 {
		ttl = l.cfg.Window
	}

	return Result{
		Allowed:   attempts <= l.cfg.MaxAttempts,
		Remaining: remaining(l.cfg.MaxAttempts, attempts),
		ResetAt:   l.now().Add(ttl),
	}, nil
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ratelimit: ping redis: %w", err)
	}
	return client, nil
}
