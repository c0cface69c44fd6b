package web

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"fitverse/pkg/workouts"
)

type viewEntry struct {
	list     *workouts.List
	lastSeen time.Time
}

// viewCache holds the workout list of each active browser session. Sessions idle for longer
// than ttl are evicted on the next access.
type viewCache struct {
	ttl     time.Duration
	now     func() time.Time
	onCount func(int)

	mu    sync.Mutex
	views map[uuid.UUID]*viewEntry
}

func newViewCache(ttl time.Duration, onCount func(int)) *viewCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &viewCache{
		ttl:     ttl,
		now:     time.Now,
		onCount: onCount,
		views:   make(map[uuid.UUID]*viewEntry),
	}
}

// list returns the list for id, creating it when missing.
func (c *viewCache) list(id uuid.UUID) *workouts.List {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.evictLocked(now)

	entry, ok := c.views[id]
	if !ok {
		entry = &viewEntry{list: workouts.NewList()}
		c.views[id] = entry
	}
	entry.lastSeen = now
	c.reportLocked()
	return entry.list
}

func (c *viewCache) drop(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, id)
	c.reportLocked()
}

func (c *viewCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.views)
}

func (c *viewCache) evictLocked(now time.Time) {
	for id, entry := range c.views {
		if now.Sub(entry.lastSeen) > c.ttl {
			delete(c.views, id)
		}
	}
}

func (c *viewCache) reportLocked() {
	if c.onCount != nil {
		c.onCount(len(c.views))
	}
}
