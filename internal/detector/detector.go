// Package detector decides when the audio resource backing a tab's video changes.
package detector

import (
	"strings"
	"sync"

	"github.com/dgnsrekt/avsync/internal/types"
)

// LiveStream is the resource identity recorded for unbounded streams. It is
// distinct from every concrete URL.
const LiveStream = ""

// Defaults for the YouTube player's media requests.
const (
	DefaultAudioMarker = "mime=audio"
	DefaultLiveMarker  = "live=1"
)

// DefaultStripParams vary between functionally identical requests for the
// same stream: byte range, request sequence number and buffer size.
var DefaultStripParams = []string{"range", "rn", "rbuf"}

// Rules configures request classification.
type Rules struct {
	AudioMarker string
	LiveMarker  string
	StripParams []string
}

// DefaultRules returns the rules for the YouTube player.
func DefaultRules() Rules {
	return Rules{
		AudioMarker: DefaultAudioMarker,
		LiveMarker:  DefaultLiveMarker,
		StripParams: append([]string(nil), DefaultStripParams...),
	}
}

// Change is emitted when a tab's active audio resource changed.
type Change struct {
	TabID types.TabID
	URL   string
	Live  bool
}

// Detector tracks the active audio resource per tab.
type Detector struct {
	rules Rules

	mu     sync.Mutex
	active map[types.TabID]string
}

// New creates a Detector. Empty fields in rules fall back to the defaults.
func New(rules Rules) *Detector {
	def := DefaultRules()
	if rules.AudioMarker == "" {
		rules.AudioMarker = def.AudioMarker
	}
	if rules.LiveMarker == "" {
		rules.LiveMarker = def.LiveMarker
	}
	if rules.StripParams == nil {
		rules.StripParams = def.StripParams
	}
	return &Detector{rules: rules, active: make(map[types.TabID]string)}
}

// Process classifies an intercepted request. It reports a change when the
// request is audio and its normalized URL differs from the one recorded for
// the tab. Live streams always report a change.
func (d *Detector) Process(req types.RequestDetails) (Change, bool) {
	if !strings.Contains(req.URL, d.rules.AudioMarker) {
		return Change{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Live requests are re-notified every time, without deduplication.
	if strings.Contains(req.URL, d.rules.LiveMarker) {
		d.active[req.TabID] = LiveStream
		return Change{TabID: req.TabID, URL: LiveStream, Live: true}, true
	}

	audioURL := StripParams(req.URL, d.rules.StripParams)
	if current, ok := d.active[req.TabID]; ok && current == audioURL {
		return Change{}, false
	}
	d.active[req.TabID] = audioURL
	return Change{TabID: req.TabID, URL: audioURL}, true
}

// Current returns the resource recorded for a tab.
func (d *Detector) Current(tabID types.TabID) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.active[tabID]
	return u, ok
}

// Forget drops the entry for a closed tab.
func (d *Detector) Forget(tabID types.TabID) {
	d.mu.Lock()
	delete(d.active, tabID)
	d.mu.Unlock()
}

// Reset clears every tab's entry.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.active = make(map[types.TabID]string)
	d.mu.Unlock()
}

// Len returns the number of tracked tabs.
func (d *Detector) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.active)
}
