// Package gate provides a Redis-backed token-bucket rate limiter used to
// throttle task submission into the index. Keeping the bucket state in
// Redis lets several API instances share one admission budget; the index
// itself stays purely in-memory.
package gate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter checks admission against a token bucket stored in Redis.
type Limiter struct {
	rdb *redis.Client
}

// New creates a limiter connected to the given Redis address
// (host:port).
func New(addr string) *Limiter {
	return &Limiter{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// allowScript implements the token bucket atomically so concurrent callers
// against the same key cannot double-spend tokens.
//
//	KEYS[1]: bucket key
//	ARGV[1]: refill rate (tokens/sec)
//	ARGV[2]: burst (bucket capacity)
//	ARGV[3]: current timestamp (seconds)
//	ARGV[4]: tokens to consume
var allowScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local requested = tonumber(ARGV[4])

	local tokens = tonumber(redis.call('HGET', key, 'tokens'))
	local last_refill = tonumber(redis.call('HGET', key, 'last_refill'))

	if not tokens then
		tokens = burst
		last_refill = now
	end

	-- Refill tokens
	local delta = math.max(0, now - last_refill)
	local new_tokens = math.min(burst, tokens + (delta * rate))

	if new_tokens >= requested then
		new_tokens = new_tokens - requested
		redis.call('HSET', key, 'tokens', new_tokens, 'last_refill', now)
		return 1 -- Allowed
	else
		redis.call('HSET', key, 'tokens', new_tokens, 'last_refill', now)
		return 0 -- Denied
	end
`)

// Allow consumes one token from the bucket identified by key and reports
// whether the caller may proceed.
//
// Parameters:
//   - key: unique bucket key (e.g. "submit:dashboard")
//   - rate: tokens added per second
//   - burst: maximum number of tokens in the bucket (capacity)
func (l *Limiter) Allow(ctx context.Context, key string, rate, burst int) (bool, error) {
	result, err := allowScript.Run(ctx, l.rdb,
		[]string{key},
		rate,
		burst,
		time.Now().Unix(),
		1,
	).Result()
	if err != nil {
		return false, err
	}
	return result.(int64) == 1, nil
}

// Ping verifies the Redis connection.
func (l *Limiter) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Close releases the underlying Redis connection.
func (l *Limiter) Close() error {
	return l.rdb.Close()
}
