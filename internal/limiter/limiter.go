// Package limiter throttles /tools per client with local token buckets and an
// optional Redis sliding window shared between replicas.
package limiter

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const redisKeyPrefix = "exchange-rate-mcp:rate:"

// ErrRateLimited indicates the client exceeded its limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter is safe for concurrent use. A disabled Limiter allows everything.
type Limiter struct {
	enabled bool

	rps    float64
	burst  int
	window time.Duration
	idle   time.Duration

	mu      sync.Mutex
	buckets *ristretto.Cache

	redis redis.UniversalClient
}

// Config contains parameters for limiter construction.
type Config struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
	Window            time.Duration
	Redis             redis.UniversalClient

	// MaxClients bounds the number of local buckets kept in memory.
	MaxClients int64
}

// New creates a Limiter from the supplied configuration.
func New(cfg Config) *Limiter {
	if !cfg.Enabled {
		return &Limiter{}
	}
	if cfg.Burst <= 0 {
		cfg.Burst = max(int(cfg.RequestsPerSecond*2), 1)
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = 1 << 18
	}
	buckets, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.MaxClients * 10,
		MaxCost:     cfg.MaxClients,
		BufferItems: 64,

		IgnoreInternalCost: true,
	})
	if err != nil {
		panic(err)
	}
	return &Limiter{
		enabled: true,
		rps:     cfg.RequestsPerSecond,
		burst:   cfg.Burst,
		window:  cfg.Window,
		idle:    idleTimeout(cfg.RequestsPerSecond, cfg.Burst, cfg.Window),
		buckets: buckets,
		redis:   cfg.Redis,
	}
}

// idleTimeout is how long an unused bucket is kept. It is never shorter than
// a full refill, so eviction cannot hand out tokens early.
func idleTimeout(rps float64, burst int, window time.Duration) time.Duration {
	if rps <= 0 {
		return window
	}
	refill := time.Duration(float64(burst) / rps * float64(time.Second))
	return max(refill, window)
}

// Enabled reports whether limits are enforced.
func (l *Limiter) Enabled() bool { return l != nil && l.enabled }

// Close releases the bucket store.
func (l *Limiter) Close() {
	if l.Enabled() {
		l.buckets.Close()
	}
}

// Allow returns ErrRateLimited when key may not issue another request.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	if !l.Enabled() || key == "" {
		return nil
	}
	if !l.allowLocal(key) {
		return ErrRateLimited
	}
	if l.redis != nil {
		allowed, err := l.allowRedis(ctx, key)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrRateLimited
		}
	}
	return nil
}

// allowLocal consumes a token from the key's bucket. Every access pushes the
// bucket's expiry out by the idle timeout.
func (l *Limiter) allowLocal(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	var lim *rate.Limiter
	if v, ok := l.buckets.Get(key); ok {
		lim = v.(*rate.Limiter)
		l.buckets.SetWithTTL(key, lim, 1, l.idle)
	} else {
		limit := rate.Inf
		if l.rps > 0 {
			limit = rate.Limit(l.rps)
		}
		lim = rate.NewLimiter(limit, l.burst)
		l.buckets.SetWithTTL(key, lim, 1, l.idle)
		l.buckets.Wait()
	}
	return lim.Allow()
}

// windowScript keeps one sorted-set member per admitted request, scored by
// its timestamp. Members must be unique per request.
var windowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

func (l *Limiter) allowRedis(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixMilli()
	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()
	res, err := windowScript.Run(ctx, l.redis, []string{redisKeyPrefix + key}, now, l.window.Milliseconds(), l.burst, member).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
