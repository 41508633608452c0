// Package resume holds the transient per-tab playback positions captured
// before a coordinator-initiated reload.
package resume

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/dgnsrekt/avsync/internal/types"
)

// DefaultCapacity bounds the number of tabs with a pending resume point.
const DefaultCapacity = 64

// Cache stores at most one resume point per tab. When full, the least
// recently stored entry is evicted. Entries are never persisted.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  *simplelru.LRU[types.TabID, types.ResumePoint]
}

// NewCache creates a Cache holding up to capacity entries.
func NewCache(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	entries, err := simplelru.NewLRU[types.TabID, types.ResumePoint](capacity, nil)
	if err != nil {
		return nil, fmt.Errorf("resume cache: %w", err)
	}
	return &Cache{capacity: capacity, entries: entries}, nil
}

// Put records the resume point for a tab, replacing any previous one.
// It reports whether another tab's point was evicted to make room.
func (c *Cache) Put(tabID types.TabID, point types.ResumePoint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var oldest types.TabID
	full := !c.entries.Contains(tabID) && c.entries.Len() >= c.capacity
	if full {
		oldest, _, _ = c.entries.GetOldest()
	}
	evicted := c.entries.Add(tabID, point)
	if evicted {
		slog.Debug("resume point evicted", "tab_id", oldest, "capacity", c.capacity)
	}
	return evicted
}

// Take returns the tab's resume point and removes it. Concurrent callers
// for the same tab see the point at most once.
func (c *Cache) Take(tabID types.TabID) (types.ResumePoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	point, ok := c.entries.Peek(tabID)
	if ok {
		c.entries.Remove(tabID)
	}
	return point, ok
}

// Clear drops the tab's resume point, if any.
func (c *Cache) Clear(tabID types.TabID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(tabID)
}

// Len returns the number of pending resume points.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
