// Package action holds the toolbar affordances of the extension: icon,
// title and per-tab badge.
package action

import (
	"sort"
	"sync"

	"github.com/dgnsrekt/avsync/internal/relay"
	"github.com/dgnsrekt/avsync/internal/types"
)

// Badge is a short text indicator with a background color.
type Badge struct {
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
}

// TabBadge is a badge scoped to one tab.
type TabBadge struct {
	TabID types.TabID `json:"tab_id"`
	Badge
}

// State is a snapshot of the toolbar.
type State struct {
	Icon   types.IconSet `json:"icon"`
	Title  string        `json:"title"`
	Badge  Badge         `json:"badge"`
	Badges []TabBadge    `json:"tab_badges"`
}

// Toolbar keeps the toolbar state and publishes every change on the
// action feed.
type Toolbar struct {
	broker *relay.Broker

	mu     sync.Mutex
	icon   types.IconSet
	title  string
	global Badge
	perTab map[types.TabID]Badge
}

// NewToolbar creates a Toolbar. broker may be nil.
func NewToolbar(broker *relay.Broker) *Toolbar {
	return &Toolbar{broker: broker, perTab: make(map[types.TabID]Badge)}
}

func (t *Toolbar) SetIcon(icon types.IconSet) {
	t.mu.Lock()
	t.icon = icon
	t.mu.Unlock()
	t.publish()
}

func (t *Toolbar) SetTitle(title string) {
	t.mu.Lock()
	t.title = title
	t.mu.Unlock()
	t.publish()
}

// SetBadge sets the badge text of one tab, or the global badge when tabID
// is nil. An empty text clears the badge; color is kept when empty.
func (t *Toolbar) SetBadge(tabID *types.TabID, text, color string) {
	t.mu.Lock()
	if tabID == nil {
		t.global = mergeBadge(t.global, text, color)
	} else if text == "" {
		delete(t.perTab, *tabID)
	} else {
		t.perTab[*tabID] = mergeBadge(t.perTab[*tabID], text, color)
	}
	t.mu.Unlock()
	t.publish()
}

// ForgetTab drops any badge scoped to a closed tab.
func (t *Toolbar) ForgetTab(tabID types.TabID) {
	t.mu.Lock()
	_, ok := t.perTab[tabID]
	delete(t.perTab, tabID)
	t.mu.Unlock()
	if ok {
		t.publish()
	}
}

// State returns a copy of the toolbar state.
func (t *Toolbar) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	icon := make(types.IconSet, len(t.icon))
	for k, v := range t.icon {
		icon[k] = v
	}
	badges := make([]TabBadge, 0, len(t.perTab))
	for id, b := range t.perTab {
		badges = append(badges, TabBadge{TabID: id, Badge: b})
	}
	sort.Slice(badges, func(i, j int) bool { return badges[i].TabID < badges[j].TabID })

	return State{Icon: icon, Title: t.title, Badge: t.global, Badges: badges}
}

func (t *Toolbar) publish() {
	if t.broker == nil {
		return
	}
	t.broker.PublishJSON(relay.FeedAction, t.State())
}

func mergeBadge(b Badge, text, color string) Badge {
	b.Text = text
	if color != "" {
		b.Color = color
	}
	return b
}
