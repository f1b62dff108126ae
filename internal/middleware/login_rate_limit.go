package middleware

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/cryptoearn/cryptoearn/internal/apperr"
	"github.com/cryptoearn/cryptoearn/internal/logging"
)

const loginRatePrefix = "rl:login:"

// LoginRateLimit caps login attempts per email (or client IP when the body
// carries none) at maxPerMin. With Redis the window is a shared fixed minute;
// without it each process keeps token buckets in memory. Redis errors fail open.
func LoginRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	logger = logging.Component(logger, "login_rate_limit")
	local := newKeyedLimiter(rate.Every(time.Minute/time.Duration(maxPerMin)), maxPerMin)

	return func(c *fiber.Ctx) error {
		key := loginKey(c)

		if cache == nil {
			if !local.allow(key) {
				return tooManyAttempts(c, time.Minute/time.Duration(maxPerMin))
			}
			return c.Next()
		}

		ctx := c.UserContext()
		redisKey := loginRatePrefix + key
		cnt, err := cache.Incr(ctx, redisKey).Result()
		if err != nil {
			logger.Warn("login rate limit unavailable", slog.Any("error", err))
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(ctx, redisKey, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			ttl, err := cache.TTL(ctx, redisKey).Result()
			if err != nil || ttl <= 0 {
				ttl = time.Minute
			}
			return tooManyAttempts(c, ttl)
		}
		return c.Next()
	}
}

func loginKey(c *fiber.Ctx) string {
	var req struct {
		Email string `json:"email"`
	}
	_ = c.BodyParser(&req)
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
		return email
	}
	return c.IP()
}

var errTooManyAttempts = apperr.New(apperr.KindRateLimited, "rate_limited", "Too many login attempts, try again later")

func tooManyAttempts(c *fiber.Ctx, wait time.Duration) error {
	secs := int(wait.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
	return errTooManyAttempts
}

// maxLimiterKeys bounds the in-memory fallback when many distinct keys are
// active within one refill window.
const maxLimiterKeys = 10000

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedLimiter holds one token bucket per key. Buckets idle for a full refill
// window are dropped; a fresh bucket for the same key behaves identically.
type keyedLimiter struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	idle      time.Duration
	maxKeys   int
	lastSweep time.Time
	now       func() time.Time
}

func newKeyedLimiter(limit rate.Limit, burst int) *keyedLimiter {
	idle := time.Minute
	if limit > 0 {
		idle = time.Duration(float64(burst) / float64(limit) * float64(time.Second))
	}
	return &keyedLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   limit,
		burst:   burst,
		idle:    idle,
		maxKeys: maxLimiterKeys,
		now:     time.Now,
	}
}

func (k *keyedLimiter) allow(key string) bool {
	now := k.now()

	k.mu.Lock()
	if now.Sub(k.lastSweep) >= k.idle {
		k.sweep(now)
	}
	e, ok := k.entries[key]
	if !ok {
		if len(k.entries) >= k.maxKeys {
			k.evictOldest()
		}
		e = &limiterEntry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.entries[key] = e
	}
	e.lastSeen = now
	k.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

func (k *keyedLimiter) sweep(now time.Time) {
	for key, e := range k.entries {
		if now.Sub(e.lastSeen) >= k.idle {
			delete(k.entries, key)
		}
	}
	k.lastSweep = now
}

func (k *keyedLimiter) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, e := range k.entries {
		if oldestKey == "" || e.lastSeen.Before(oldest) {
			oldestKey, oldest = key, e.lastSeen
		}
	}
	delete(k.entries, oldestKey)
}

func (k *keyedLimiter) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
