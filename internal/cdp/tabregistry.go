package cdp

import (
	"sort"
	"sync"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/avsync/internal/types"
)

// TabRegistry assigns integer tab ids to CDP page targets. An id is never
// reused within a process.
type TabRegistry struct {
	mu       sync.RWMutex
	next     types.TabID
	byTarget map[target.ID]types.TabID
	tabs     map[types.TabID]*types.Tab
}

func NewTabRegistry() *TabRegistry {
	return &TabRegistry{
		next:     1,
		byTarget: make(map[target.ID]types.TabID),
		tabs:     make(map[types.TabID]*types.Tab),
	}
}

// Register records a target, or refreshes its URL and title when it is
// already known. It reports whether the target is new.
func (r *TabRegistry) Register(targetID target.ID, url, title string) (types.Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byTarget[targetID]; ok {
		tab := r.tabs[id]
		tab.URL = url
		if title != "" {
			tab.Title = title
		}
		return *tab, false
	}

	id := r.next
	r.next++
	tab := &types.Tab{ID: id, TargetID: string(targetID), URL: url, Title: title}
	r.byTarget[targetID] = id
	r.tabs[id] = tab
	return *tab, true
}

// SetURL updates a known target's URL after a navigation.
func (r *TabRegistry) SetURL(targetID target.ID, url string) (types.Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byTarget[targetID]
	if !ok {
		return types.Tab{}, false
	}
	r.tabs[id].URL = url
	return *r.tabs[id], true
}

func (r *TabRegistry) Tab(id types.TabID) (types.Tab, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tab, ok := r.tabs[id]
	if !ok {
		return types.Tab{}, false
	}
	return *tab, true
}

func (r *TabRegistry) ByTarget(targetID target.ID) (types.Tab, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byTarget[targetID]
	if !ok {
		return types.Tab{}, false
	}
	return *r.tabs[id], true
}

// Remove drops a target and returns the tab it was registered as.
func (r *TabRegistry) Remove(targetID target.ID) (types.Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byTarget[targetID]
	if !ok {
		return types.Tab{}, false
	}
	tab := *r.tabs[id]
	delete(r.byTarget, targetID)
	delete(r.tabs, id)
	return tab, true
}

// List returns every registered tab ordered by id.
func (r *TabRegistry) List() []types.Tab {
	r.mu.RLock()
	out := make([]types.Tab, 0, len(r.tabs))
	for _, tab := range r.tabs {
		out = append(out, *tab)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *TabRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabs)
}
