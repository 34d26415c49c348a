// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// Default cache configuration values.
const (
	defaultCacheTTL      = 5 * time.Minute
	defaultSweepInterval = defaultCacheTTL / 2
)

// Cache keyspace and result labels for metrics.
const (
	keyspaceID    = "id"
	keyspaceEmail = "email"
	resultHit     = "hit"
	resultMiss    = "miss"
)

// cacheEntry holds a user snapshot and its expiry instant.
type cacheEntry struct {
	user      User
	expiresAt time.Time
}

// CacheOption configures UserCache behavior.
type CacheOption func(*UserCache)

// WithCacheTTL sets the time-to-live for cached entries.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *UserCache) {
		c.ttl = ttl
		c.sweepInterval = ttl / 2
	}
}

// WithSweepInterval sets how often the background sweeper evicts
// expired entries.
func WithSweepInterval(d time.Duration) CacheOption {
	return func(c *UserCache) {
		c.sweepInterval = d
	}
}

// WithCacheClock overrides the clock used for expiry. Intended for tests.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *UserCache) {
		c.now = now
	}
}

// WithLookupCounter sets the Prometheus counter recording hits and
// misses per keyspace.
func WithLookupCounter(cv *prometheus.CounterVec) CacheOption {
	return func(c *UserCache) {
		c.lookups = cv
	}
}

// UserCache is a read-through cache in front of a UserRepository, keyed
// independently by user id and by email. Only positive lookups are
// cached so a miss never masks a newly created account. The store stays
// the source of truth; entries may be stale for up to the TTL unless
// refreshed through Put or Invalidate. Concurrent writers on the same
// key are last-write-wins.
type UserCache struct {
	store         UserRepository
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	lookups       *prometheus.CounterVec

	mu      sync.RWMutex
	byID    map[string]cacheEntry
	byEmail map[string]cacheEntry

	// wg tracks the sweeper goroutine for graceful shutdown.
	wg sync.WaitGroup
}

// NewUserCache creates a UserCache backed by the given store.
func NewUserCache(store UserRepository, opts ...CacheOption) *UserCache {
	c := &UserCache{
		store:         store,
		ttl:           defaultCacheTTL,
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
		byID:          make(map[string]cacheEntry),
		byEmail:       make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetByID returns the cached user if present and not expired, otherwise
// fetches from the store and populates the cache. A store miss
// (ErrNotFound) passes through uncached.
func (c *UserCache) GetByID(ctx context.Context, id ulid.ULID) (*User, error) {
	key := id.String()

	c.mu.RLock()
	entry, ok := c.byID[key]
	c.mu.RUnlock()

	if ok && c.now().Before(entry.expiresAt) {
		c.record(keyspaceID, resultHit)
		u := entry.user
		return &u, nil
	}
	c.record(keyspaceID, resultMiss)

	user, err := c.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Put(user)
	return user, nil
}

// GetByEmail is the email-keyed counterpart of GetByID. Lookup is an
// exact match on the stored email.
func (c *UserCache) GetByEmail(ctx context.Context, email string) (*User, error) {
	c.mu.RLock()
	entry, ok := c.byEmail[email]
	c.mu.RUnlock()

	if ok && c.now().Before(entry.expiresAt) {
		c.record(keyspaceEmail, resultHit)
		u := entry.user
		return &u, nil
	}
	c.record(keyspaceEmail, resultMiss)

	user, err := c.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	c.Put(user)
	return user, nil
}

// Put stores a snapshot of the user under both keyspaces with a fresh
// TTL. Used by the flows after signup and after a last-login update so
// readers observe the new record without waiting for expiry.
func (c *UserCache) Put(user *User) {
	entry := cacheEntry{
		user:      *user,
		expiresAt: c.now().Add(c.ttl),
	}

	c.mu.Lock()
	c.byID[user.ID.String()] = entry
	c.byEmail[user.Email] = entry
	c.mu.Unlock()
}

// Invalidate removes the entry for the given user id from both
// keyspaces, if present.
func (c *UserCache) Invalidate(id ulid.ULID) {
	key := id.String()

	c.mu.Lock()
	if entry, ok := c.byID[key]; ok {
		delete(c.byEmail, entry.user.Email)
	}
	delete(c.byID, key)
	c.mu.Unlock()
}

// Len returns the number of id-keyed entries currently held.
func (c *UserCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Start spawns the background sweeper that evicts expired entries. The
// goroutine exits when the context is cancelled; call Wait to block
// until it has stopped.
func (c *UserCache) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.sweepLoop(ctx)
}

// Wait blocks until the sweeper goroutine has exited.
func (c *UserCache) Wait() {
	c.wg.Wait()
}

// sweepLoop runs in a goroutine, periodically removing expired entries.
func (c *UserCache) sweepLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := c.sweep()
			if evicted > 0 {
				slog.Debug("user cache sweep", "evicted", evicted)
			}
		}
	}
}

// sweep removes all expired entries and returns the count.
func (c *UserCache) sweep() int {
	now := c.now()
	evicted := 0

	c.mu.Lock()
	for key, entry := range c.byID {
		if !now.Before(entry.expiresAt) {
			delete(c.byID, key)
			evicted++
		}
	}
	for key, entry := range c.byEmail {
		if !now.Before(entry.expiresAt) {
			delete(c.byEmail, key)
		}
	}
	c.mu.Unlock()

	return evicted
}

func (c *UserCache) record(keyspace, result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(keyspace, result).Inc()
	}
}
