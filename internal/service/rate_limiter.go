package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// slidingWindowScript counts hits in a sorted set scored by unix millis.
// Returns {allowed, remaining, resetAtMillis}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = now + window
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    end
    return {0, 0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('PEXPIRE', key, window + 10000)
return {1, limit - count - 1, now + window}
`)

type RateDecision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimiter is a Redis sliding-window limiter shared by all replicas.
type RateLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client, prefix string) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix, now: time.Now}
}

// Allow records a hit for key and reports whether it fits in limit per
// window. When Redis is unavailable the hit is denied.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) RateDecision {
	now := rl.now()
	fullKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	result, err := slidingWindowScript.Run(
		ctx,
		rl.client,
		[]string{fullKey},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
	).Int64Slice()
	if err == nil && len(result) != 3 {
		err = fmt.Errorf("unexpected script result length %d", len(result))
	}
	if err != nil {
		log.Warn().Err(err).Str("key", fullKey).Msg("rate limit check failed, denying request")
		return RateDecision{ResetAt: now.Add(window)}
	}

	return RateDecision{
		Allowed:   result[0] == 1,
		Remaining: int(result[1]),
		ResetAt:   time.UnixMilli(result[2]),
	}
}
