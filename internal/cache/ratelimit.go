package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Two buckets guard the voucher API: one per client IP, checked before the
// bearer token is sent to the identity provider, and one per resolved user.
const (
	rateLimitUserPrefix = "ratelimit:user:"
	rateLimitIPPrefix   = "ratelimit:ip:"

	// An idle bucket refills completely well before its key expires.
	rateLimitUserTTL = 2 * time.Minute
	rateLimitIPTTL   = 10 * time.Second
)

// RateLimitResult is the outcome of one token-bucket check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int64
	// ResetAt is when the bucket will be full again.
	ResetAt    time.Time
	RetryAfter time.Duration
}

// bucketScript refills and spends one token atomically. The clock is in
// milliseconds so sub-second refill is not lost between requests.
// Returns {allowed, retry_after_ms, tokens_left, ms_until_full}.
var bucketScript = redis.NewScript(`
local per_ms  = tonumber(ARGV[1]) / 1000
local burst   = tonumber(ARGV[2])
local now_ms  = tonumber(ARGV[3])
local ttl_ms  = tonumber(ARGV[4])

local state  = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1]) or burst
local ts     = tonumber(state[2]) or now_ms
if now_ms > ts then
	tokens = math.min(burst, tokens + (now_ms - ts) * per_ms)
end

local allowed, wait_ms = 0, 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	wait_ms = math.ceil((1 - tokens) / per_ms)
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', now_ms)
redis.call('PEXPIRE', KEYS[1], ttl_ms)

return {allowed, wait_ms, math.floor(tokens), math.ceil((burst - tokens) / per_ms)}
`)

// CheckUserRateLimit spends a token from the caller's per-user bucket.
// A zero rate disables the limit.
func (c *Cache) CheckUserRateLimit(ctx context.Context, userID string, ratePerMinute, burst int) (*RateLimitResult, error) {
	return c.spend(ctx, rateLimitUserPrefix+hashKey(userID), float64(ratePerMinute)/60, burst, rateLimitUserTTL)
}

// CheckIPRateLimit spends a token from the client address's bucket.
// A zero rate disables the limit.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	return c.spend(ctx, rateLimitIPPrefix+hashKey(ip), float64(ratePerSecond), burst, rateLimitIPTTL)
}

// spend runs the bucket script. Redis errors are returned; callers decide
// whether to fail open.
func (c *Cache) spend(ctx context.Context, key string, perSecond float64, burst int, ttl time.Duration) (*RateLimitResult, error) {
	now := time.Now()
	if perSecond <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst), ResetAt: now}, nil
	}
	if burst < 1 {
		burst = 1
	}

	out, err := bucketScript.Run(ctx, c.client, []string{key},
		perSecond, burst, now.UnixMilli(), ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("rate limit script: unexpected reply length %d", len(out))
	}

	return &RateLimitResult{
		Allowed:    out[0] == 1,
		RetryAfter: time.Duration(out[1]) * time.Millisecond,
		Remaining:  out[2],
		ResetAt:    now.Add(time.Duration(out[3]) * time.Millisecond),
	}, nil
}

// hashKey keeps raw IPs and user ids out of Redis key names.
func hashKey(subject string) string {
	sum := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(sum[:8])
}
