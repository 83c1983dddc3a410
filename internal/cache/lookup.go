package cache

import (
	"context"
	"sync"
	"time"

	"prok/internal/models"
	"prok/internal/observability"
)

// DefaultLookupTTL bounds how stale a cached aggregate may be.
const DefaultLookupTTL = time.Hour

// Clock returns the current time.
type Clock func() time.Time

// Loader computes an aggregate view from the store.
type Loader func(ctx context.Context) ([]models.NameCount, error)

type entry struct {
	value    []models.NameCount
	filledAt time.Time
	ok       bool
}

// LookupCache holds the category and popular-tag aggregates. Both views are
// dropped together by Invalidate. A fill that overlaps an invalidation is
// returned to its caller but not stored.
type LookupCache struct {
	mu         sync.Mutex
	now        Clock
	ttl        time.Duration
	generation uint64
	categories entry
	tags       entry
}

// NewLookupCache builds a cache with the given TTL and clock. A nil clock
// uses time.Now; a non-positive TTL uses DefaultLookupTTL.
func NewLookupCache(ttl time.Duration, now Clock) *LookupCache {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = DefaultLookupTTL
	}
	return &LookupCache{now: now, ttl: ttl}
}

// Categories returns the cached categories view, filling it with load on a miss.
func (c *LookupCache) Categories(ctx context.Context, load Loader) ([]models.NameCount, error) {
	return c.get(ctx, "categories", &c.categories, load)
}

// PopularTags returns the cached popular-tags view, filling it with load on a miss.
func (c *LookupCache) PopularTags(ctx context.Context, load Loader) ([]models.NameCount, error) {
	return c.get(ctx, "tags", &c.tags, load)
}

// Invalidate drops both views.
func (c *LookupCache) Invalidate() {
	c.mu.Lock()
	c.generation++
	c.categories = entry{}
	c.tags = entry{}
	c.mu.Unlock()
	observability.LookupCacheEvents.WithLabelValues("all", "invalidate").Inc()
}

func (c *LookupCache) get(ctx context.Context, view string, e *entry, load Loader) ([]models.NameCount, error) {
	c.mu.Lock()
	if e.ok && c.now().Sub(e.filledAt) < c.ttl {
		v := e.value
		c.mu.Unlock()
		observability.LookupCacheEvents.WithLabelValues(view, "hit").Inc()
		return v, nil
	}
	gen := c.generation
	c.mu.Unlock()

	observability.LookupCacheEvents.WithLabelValues(view, "miss").Inc()
	v, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = []models.NameCount{}
	}

	c.mu.Lock()
	if c.generation == gen {
		*e = entry{value: v, filledAt: c.now(), ok: true}
	}
	c.mu.Unlock()
	return v, nil
}
