// Package cdpcontrol watches the browser's targets over a browser-level CDP
// connection. Page sessions are left to the cdp package.
package cdpcontrol

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/avsync/internal/types"
)

const pageTargetType = "page"

// TargetEvents receives target lifecycle events. Callbacks run on the
// connection's read goroutine and must not block on CDP commands.
type TargetEvents struct {
	Created   func(info *target.Info)
	Changed   func(info *target.Info)
	Destroyed func(id target.ID)
}

// TargetWatcher reports page targets as they open, change and close.
type TargetWatcher struct {
	cdpURL string

	mu         sync.Mutex
	cdp        *rawCDP
	unregister []func()
}

func NewTargetWatcher(cdpURL string) *TargetWatcher {
	return &TargetWatcher{cdpURL: cdpURL}
}

// Start connects and enables target discovery. Chromium replays a
// targetCreated event for every existing target once discovery is on.
func (w *TargetWatcher) Start(ctx context.Context, ev TargetEvents) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cdpURL == "" {
		return types.NewError(types.CodeCDPUnavailable, "missing CDP URL", nil)
	}
	w.cleanupLocked()

	w.cdp = newRawCDP(w.cdpURL)
	if err := w.cdp.connect(ctx); err != nil {
		w.cdp = nil
		return types.NewError(types.CodeCDPUnavailable, "connect to CDP failed", err)
	}
	w.registerLocked(ev)

	params := struct {
		Discover bool `json:"discover"`
	}{Discover: true}
	if _, err := w.cdp.send(ctx, "Target.setDiscoverTargets", params); err != nil {
		w.cleanupLocked()
		return types.NewError(types.CodeCDPUnavailable, "enable target discovery failed", err)
	}
	slog.Info("target watcher started", "cdp_url", w.cdpURL)
	return nil
}

func (w *TargetWatcher) registerLocked(ev TargetEvents) {
	onInfo := func(fn func(*target.Info)) func(json.RawMessage) {
		return func(params json.RawMessage) {
			var p struct {
				TargetInfo *target.Info `json:"targetInfo"`
			}
			if err := json.Unmarshal(params, &p); err != nil || p.TargetInfo == nil {
				slog.Debug("target event decode failed", "error", err)
				return
			}
			if p.TargetInfo.Type != pageTargetType || fn == nil {
				return
			}
			fn(p.TargetInfo)
		}
	}

	w.unregister = append(w.unregister,
		w.cdp.registerEventHandler("Target.targetCreated", onInfo(ev.Created)),
		w.cdp.registerEventHandler("Target.targetInfoChanged", onInfo(ev.Changed)),
		w.cdp.registerEventHandler("Target.targetDestroyed", func(params json.RawMessage) {
			var p struct {
				TargetID target.ID `json:"targetId"`
			}
			if err := json.Unmarshal(params, &p); err != nil || p.TargetID == "" {
				slog.Debug("targetDestroyed decode failed", "error", err)
				return
			}
			if ev.Destroyed != nil {
				ev.Destroyed(p.TargetID)
			}
		}),
	)
}

// Pages lists the open page targets.
func (w *TargetWatcher) Pages(ctx context.Context) ([]*target.Info, error) {
	w.mu.Lock()
	r := w.cdp
	w.mu.Unlock()
	if r == nil {
		r = newRawCDP(w.cdpURL)
	}

	targets, err := r.listTargets(ctx)
	if err != nil {
		return nil, types.NewError(types.CodeCDPUnavailable, "failed to list targets", err)
	}
	pages := make([]*target.Info, 0, len(targets))
	for _, t := range targets {
		if t.Type == pageTargetType {
			pages = append(pages, t)
		}
	}
	return pages, nil
}

// CreateTarget opens url in a new tab.
func (w *TargetWatcher) CreateTarget(ctx context.Context, url string) (target.ID, error) {
	w.mu.Lock()
	r := w.cdp
	w.mu.Unlock()
	if r == nil {
		return "", types.NewError(types.CodeCDPUnavailable, "target watcher not started", nil)
	}

	params := struct {
		URL string `json:"url"`
	}{URL: url}
	raw, err := r.send(ctx, "Target.createTarget", params)
	if err != nil {
		return "", types.NewError(types.CodeCDPUnavailable, "create target failed", err)
	}
	var out struct {
		TargetID target.ID `json:"targetId"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", types.NewError(types.CodeCDPUnavailable, "decode createTarget reply failed", err)
	}
	return out.TargetID, nil
}

// Done is closed when the browser connection drops.
func (w *TargetWatcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cdp == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return w.cdp.done()
}

func (w *TargetWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cleanupLocked()
	return nil
}

func (w *TargetWatcher) cleanupLocked() {
	for _, fn := range w.unregister {
		fn()
	}
	w.unregister = nil
	if w.cdp != nil {
		w.cdp.close()
		w.cdp = nil
	}
}
