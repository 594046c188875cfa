package planner

import (
	"sync"
	"time"

	"github.com/simaogato/wealthflow-planner/internal/domain"
)

// DefaultCacheTTL is used when a PlanCache is created with a zero TTL
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	plans    []*domain.MonthlyPlan
	storedAt time.Time
}

// PlanCache holds recently read plan sets per month for a bounded time.
// Callers always receive copies; mutating them never reaches the cache.
type PlanCache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[domain.MonthLabel]cacheEntry
}

// NewPlanCache creates a new PlanCache instance
func NewPlanCache(ttl time.Duration) *PlanCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &PlanCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[domain.MonthLabel]cacheEntry),
	}
}

// Get returns the cached plans of month while fresh
func (c *PlanCache) Get(month domain.MonthLabel) ([]*domain.MonthlyPlan, bool) {
	c.mu.RLock()
	entry, ok := c.entries[month]
	c.mu.RUnlock()
	if !ok || c.now().Sub(entry.storedAt) >= c.ttl {
		return nil, false
	}
	return clonePlans(entry.plans), true
}

// Put stores the plans of month
func (c *PlanCache) Put(month domain.MonthLabel, plans []*domain.MonthlyPlan) {
	c.mu.Lock()
	c.entries[month] = cacheEntry{plans: clonePlans(plans), storedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate drops the plans of month
func (c *PlanCache) Invalidate(month domain.MonthLabel) {
	c.mu.Lock()
	delete(c.entries, month)
	c.mu.Unlock()
}

// InvalidateAll drops every month
func (c *PlanCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[domain.MonthLabel]cacheEntry)
	c.mu.Unlock()
}

func clonePlans(plans []*domain.MonthlyPlan) []*domain.MonthlyPlan {
	out := make([]*domain.MonthlyPlan, len(plans))
	for i, p := range plans {
		out[i] = p.Clone()
	}
	return out
}
