package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// INCR and the window TTL run as one script so a counter can never be left
// without an expiry.
var incrWindowLua = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Config holds refresh throttle tuning parameters.
type Config struct {
	Prefix                  string
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// Limiter throttles refresh attempts per subject using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "gs"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckRefresh counts one refresh attempt for subject and returns
// [ErrRateLimited] once the window budget is spent.
func (l *Limiter) CheckRefresh(ctx context.Context, subject string) error {
	count, err := l.incrementWithTTL(ctx, l.refreshKey(subject), l.config.RefreshCooldownDuration)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) refreshKey(subject string) string {
	return l.config.Prefix + ":ar:" + subject
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	// Fixed-window semantics: the TTL is set by the first hit in the window
	// and repaired by any later hit that finds the key without one.
	count, err := incrWindowLua.Run(ctx, l.redis, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}
