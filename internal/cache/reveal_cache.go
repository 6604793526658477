package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// pinFailureWindow is the rolling window for counting wrong PINs
	pinFailureWindow = 15 * time.Minute

	// pinFailureThreshold is how many failures are tolerated before backoff starts
	pinFailureThreshold = 3

	// pinBackoffBase is the first lockout; doubles per extra failure
	pinBackoffBase = 30 * time.Second

	// pinBackoffMax caps the exponential lockout
	pinBackoffMax = 30 * time.Minute
)

// RevealStore tracks ephemeral reveal sessions and PIN failure counters.
// Nothing here is durable: sessions live only for their TTL and failure
// counters expire with their rolling window.
type RevealStore interface {
	BeginReveal(ctx context.Context, cardID, requesterID uuid.UUID, ttl time.Duration) (bool, error)
	ActiveReveal(ctx context.Context, cardID uuid.UUID) (bool, error)
	RecordPINFailure(ctx context.Context, requesterID uuid.UUID) (int64, error)
	ClearPINFailures(ctx context.Context, requesterID uuid.UUID) error
	PINLockRemaining(ctx context.Context, requesterID uuid.UUID) (time.Duration, error)
}

// RevealCache implements RevealStore on redis. When redis is unreachable it
// degrades to an in-process lazy-expiry map, which keeps the single-node
// guarantees but not cross-replica ones.
type RevealCache struct {
	client *redis.Client

	mu     sync.Mutex
	local  map[string]localEntry
}

type localEntry struct {
	value     int64
	expiresAt time.Time
}

// NewRevealCache creates a reveal cache backed by redis at the given address
func NewRevealCache(addr, password string, db int) *RevealCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// Degrade to the in-process map
		return &RevealCache{local: make(map[string]localEntry)}
	}

	return &RevealCache{client: client, local: make(map[string]localEntry)}
}

// Close releases the redis connection
func (c *RevealCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func revealKey(cardID uuid.UUID) string {
	return fmt.Sprintf("custody:reveal:%s", cardID)
}

func pinFailKey(requesterID uuid.UUID) string {
	return fmt.Sprintf("custody:pinfail:%s", requesterID)
}

func pinLockKey(requesterID uuid.UUID) string {
	return fmt.Sprintf("custody:pinlock:%s", requesterID)
}

// BeginReveal opens a disclosure window for the card. Returns false if a
// window is already open; the same card can be revealed again only after
// the previous window expires.
func (c *RevealCache) BeginReveal(ctx context.Context, cardID, requesterID uuid.UUID, ttl time.Duration) (bool, error) {
	key := revealKey(cardID)

	if c.client == nil {
		return c.localSetNX(key, ttl), nil
	}

	ok, err := c.client.SetNX(ctx, key, requesterID.String(), ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ActiveReveal reports whether a disclosure window is currently open
func (c *RevealCache) ActiveReveal(ctx context.Context, cardID uuid.UUID) (bool, error) {
	key := revealKey(cardID)

	if c.client == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		entry, ok := c.local[key]
		if !ok || time.Now().After(entry.expiresAt) {
			delete(c.local, key)
			return false, nil
		}
		return true, nil
	}

	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordPINFailure increments the rolling failure counter and, once past
// the threshold, arms an exponential lockout.
func (c *RevealCache) RecordPINFailure(ctx context.Context, requesterID uuid.UUID) (int64, error) {
	var count int64

	if c.client == nil {
		count = c.localIncr(pinFailKey(requesterID), pinFailureWindow)
	} else {
		var err error
		count, err = c.client.Incr(ctx, pinFailKey(requesterID)).Result()
		if err != nil {
			return 0, err
		}
		if count == 1 {
			c.client.Expire(ctx, pinFailKey(requesterID), pinFailureWindow)
		}
	}

	if count >= pinFailureThreshold {
		lockout := BackoffFor(count)
		if c.client == nil {
			c.localSet(pinLockKey(requesterID), lockout)
		} else {
			c.client.Set(ctx, pinLockKey(requesterID), count, lockout)
		}
	}

	return count, nil
}

// ClearPINFailures resets the counter after a successful verification
func (c *RevealCache) ClearPINFailures(ctx context.Context, requesterID uuid.UUID) error {
	if c.client == nil {
		c.mu.Lock()
		delete(c.local, pinFailKey(requesterID))
		delete(c.local, pinLockKey(requesterID))
		c.mu.Unlock()
		return nil
	}
	return c.client.Del(ctx, pinFailKey(requesterID), pinLockKey(requesterID)).Err()
}

// PINLockRemaining returns how long the requester is locked out, zero when
// not locked.
func (c *RevealCache) PINLockRemaining(ctx context.Context, requesterID uuid.UUID) (time.Duration, error) {
	key := pinLockKey(requesterID)

	if c.client == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		entry, ok := c.local[key]
		if !ok {
			return 0, nil
		}
		remaining := time.Until(entry.expiresAt)
		if remaining <= 0 {
			delete(c.local, key)
			return 0, nil
		}
		return remaining, nil
	}

	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

// BackoffFor computes the lockout duration for a failure count: no lockout
// below the threshold, then doubling from the base, capped.
func BackoffFor(failures int64) time.Duration {
	if failures < pinFailureThreshold {
		return 0
	}
	lockout := pinBackoffBase
	for i := int64(pinFailureThreshold); i < failures; i++ {
		lockout *= 2
		if lockout >= pinBackoffMax {
			return pinBackoffMax
		}
	}
	return lockout
}

// --- in-process fallback helpers ---

func (c *RevealCache) localSetNX(key string, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if entry, ok := c.local[key]; ok && now.Before(entry.expiresAt) {
		return false
	}
	c.local[key] = localEntry{value: 1, expiresAt: now.Add(ttl)}
	return true
}

func (c *RevealCache) localIncr(key string, ttl time.Duration) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	entry, ok := c.local[key]
	if !ok || now.After(entry.expiresAt) {
		entry = localEntry{value: 0, expiresAt: now.Add(ttl)}
	}
	entry.value++
	c.local[key] = entry
	return entry.value
}

func (c *RevealCache) localSet(key string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[key] = localEntry{value: 1, expiresAt: time.Now().Add(ttl)}
}
