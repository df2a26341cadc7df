package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Bucket key prefixes. IPs are hashed before they reach Redis.
const (
	userBucketPrefix = "rl:user:"
	ipBucketPrefix   = "rl:ip:"
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// bucket describes one token bucket: Rate tokens per second up to Burst.
type bucket struct {
	key   string
	rate  float64
	burst int
}

// idleTTL is how long a bucket survives without traffic: the time to
// refill completely plus a margin.
func (b bucket) idleTTL() time.Duration {
	full := time.Duration(float64(b.burst) / b.rate * float64(time.Second))
	return full + 10*time.Second
}

// takeTokenScript refills the bucket for the elapsed milliseconds, then
// takes one token if available. Returns {allowed, retry_ms, remaining, full_ms}.
var takeTokenScript = redis.NewScript(`
local rate = tonumber(ARGV[1]) / 1000
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now

tokens = math.min(burst, tokens + math.max(0, now - ts) * rate)

local allowed = 0
local retry = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	retry = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', KEYS[1], ARGV[4])

return {allowed, retry, math.floor(tokens), math.ceil((burst - tokens) / rate)}
`)

// CheckUserRateLimit takes a token from userID's bucket. A zero rate
// disables the limit.
func (c *Cache) CheckUserRateLimit(ctx context.Context, userID string, ratePerMinute, burst int) (*RateLimitResult, error) {
	if ratePerMinute <= 0 {
		return unlimited(burst), nil
	}
	return c.take(ctx, bucket{
		key:   userBucketPrefix + userID,
		rate:  float64(ratePerMinute) / 60,
		burst: burst,
	})
}

// CheckIPRateLimit takes a token from the bucket for ip. A zero rate
// disables the limit.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	if ratePerSecond <= 0 {
		return unlimited(burst), nil
	}
	return c.take(ctx, bucket{
		key:   ipBucketPrefix + hashIP(ip),
		rate:  float64(ratePerSecond),
		burst: burst,
	})
}

func (c *Cache) take(ctx context.Context, b bucket) (*RateLimitResult, error) {
	now := time.Now()
	res, err := takeTokenScript.Run(ctx, c.client, []string{b.key},
		b.rate, b.burst, now.UnixMilli(), b.idleTTL().Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", b.key, err)
	}
	if len(res) != 4 {
		return nil, fmt.Errorf("rate limit %s: unexpected reply %v", b.key, res)
	}

	return &RateLimitResult{
		Allowed:    res[0] == 1,
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
		Remaining:  res[2],
		ResetAt:    now.Add(time.Duration(res[3]) * time.Millisecond),
	}, nil
}

func unlimited(burst int) *RateLimitResult {
	return &RateLimitResult{
		Allowed:   true,
		Remaining: int64(max(burst, 0)),
		ResetAt:   time.Now(),
	}
}

// hashIP keys buckets by the first 8 bytes of SHA-256(ip) in hex.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}
