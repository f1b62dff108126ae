package rewards

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownStore holds the per-account, per-method cooldown expiry.
type CooldownStore interface {
	// Get returns the expiry for the pair, ok=false when none is stored.
	Get(ctx context.Context, accountID, method string) (expiresAt time.Time, ok bool, err error)
	Set(ctx context.Context, accountID, method string, expiresAt time.Time) error
}

type memoryCooldowns struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewMemoryCooldowns builds a process-local cooldown store.
func NewMemoryCooldowns() CooldownStore {
	return &memoryCooldowns{entries: make(map[string]time.Time)}
}

func (m *memoryCooldowns) Get(_ context.Context, accountID, method string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.entries[accountID+":"+method]
	return at, ok, nil
}

func (m *memoryCooldowns) Set(_ context.Context, accountID, method string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[accountID+":"+method] = expiresAt
	return nil
}

const cooldownPrefix = "cooldown:v1:"

// RedisCooldowns stores cooldowns in Redis; keys expire with the cooldown.
type RedisCooldowns struct {
	cache *redis.Client
	now   func() time.Time
}

// NewRedisCooldowns builds a Redis-backed cooldown store. now is used to
// compute key TTLs.
func NewRedisCooldowns(cache *redis.Client, now func() time.Time) *RedisCooldowns {
	if now == nil {
		now = time.Now
	}
	return &RedisCooldowns{cache: cache, now: now}
}

func (r *RedisCooldowns) Get(ctx context.Context, accountID, method string) (time.Time, bool, error) {
	raw, err := r.cache.Get(ctx, cooldownPrefix+accountID+":"+method).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

func (r *RedisCooldowns) Set(ctx context.Context, accountID, method string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.cache.Set(ctx, cooldownPrefix+accountID+":"+method, strconv.FormatInt(expiresAt.UnixMilli(), 10), ttl).Err()
}
