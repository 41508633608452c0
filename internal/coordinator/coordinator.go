// Package coordinator is the background coordinator of the sync extension.
// It tracks each tab's active audio resource, owns the enabled/disabled
// mode, keeps resume points across coordinator-initiated reloads and routes
// messages between the extension surfaces.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/avsync/internal/detector"
	"github.com/dgnsrekt/avsync/internal/resume"
	"github.com/dgnsrekt/avsync/internal/storage"
	"github.com/dgnsrekt/avsync/internal/types"
)

// Tabs is the host platform's tab surface.
type Tabs interface {
	Query(ctx context.Context, q types.TabQuery) ([]types.Tab, error)
	// Send delivers a fire-and-forget message to a tab's content script.
	Send(ctx context.Context, tabID types.TabID, msg types.Message) error
	// Request delivers a message and waits for the content script's reply.
	// A nil reply means the content script did not answer.
	Request(ctx context.Context, tabID types.TabID, msg types.Message) (json.RawMessage, error)
	Navigate(ctx context.Context, tabID types.TabID, url string) error
	Open(ctx context.Context, url string) error
}

// Interceptor registers the coordinator's platform listeners.
type Interceptor interface {
	AddRequestListener(fn func(types.RequestDetails))
	RemoveRequestListener()
	AddTabUpdatedListener(fn func(types.TabID))
	RemoveTabUpdatedListener()
}

// Toolbar is the extension's toolbar button.
type Toolbar interface {
	SetIcon(icon types.IconSet)
	SetTitle(title string)
	SetBadge(tabID *types.TabID, text, color string)
	ForgetTab(tabID types.TabID)
}

// Notifier shows user-visible notifications.
type Notifier interface {
	Notify(ctx context.Context, n types.Notification) error
}

// Recorder receives activity journal entries.
type Recorder interface {
	Record(e storage.Entry) error
}

// Options configures a Coordinator.
type Options struct {
	// TabPattern matches tabs of the video platform, e.g. "*://*.youtube.com/*".
	TabPattern    string
	ResumeTimeout time.Duration
	// SendTimeout bounds delivery of a broadcast to a single tab.
	SendTimeout time.Duration
	OptionsURL  string
	Links         map[string]string
	Version       string
}

// Deps are the coordinator's collaborators. Journal may be nil.
type Deps struct {
	Tabs        Tabs
	Interceptor Interceptor
	Toolbar     Toolbar
	Notifier    Notifier
	Store       storage.Store
	Detector    *detector.Detector
	Resume      *resume.Cache
	Journal     Recorder
}

// Coordinator is created once per process and lives until it exits.
type Coordinator struct {
	opts Options

	tabs        Tabs
	interceptor Interceptor
	toolbar     Toolbar
	notifier    Notifier
	store       storage.Store
	detector    *detector.Detector
	resume      *resume.Cache
	journal     Recorder

	// mu serializes mode transitions and message dispatch.
	mu   sync.Mutex
	mode Mode

	pending sync.WaitGroup
}

// New creates a Coordinator. The mode starts out Disabled in memory until
// ApplyStoredMode or a lifecycle hook applies the durable one.
func New(deps Deps, opts Options) (*Coordinator, error) {
	if deps.Tabs == nil || deps.Interceptor == nil || deps.Toolbar == nil || deps.Notifier == nil || deps.Store == nil {
		return nil, errors.New("coordinator: missing dependency")
	}
	if deps.Detector == nil {
		deps.Detector = detector.New(detector.DefaultRules())
	}
	if deps.Resume == nil {
		cache, err := resume.NewCache(resume.DefaultCapacity)
		if err != nil {
			return nil, err
		}
		deps.Resume = cache
	}
	if opts.TabPattern == "" {
		opts.TabPattern = DefaultTabPattern
	}
	if opts.ResumeTimeout <= 0 {
		opts.ResumeTimeout = DefaultResumeTimeout
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}

	return &Coordinator{
		opts:        opts,
		tabs:        deps.Tabs,
		interceptor: deps.Interceptor,
		toolbar:     deps.Toolbar,
		notifier:    deps.Notifier,
		store:       deps.Store,
		detector:    deps.Detector,
		resume:      deps.Resume,
		journal:     deps.Journal,
		mode:        ModeDisabled,
	}, nil
}

// Wait blocks until background resume sequences have finished.
func (c *Coordinator) Wait() {
	c.pending.Wait()
}

// OnRequest is the request listener registered while Enabled. Calls that
// arrive after a Disable has removed the listener are dropped.
func (c *Coordinator) OnRequest(req types.RequestDetails) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeEnabled {
		return
	}
	change, ok := c.detector.Process(req)
	if !ok {
		return
	}
	slog.Debug("audio resource changed", "tab_id", change.TabID, "live", change.Live, "url", truncateURL(change.URL))
	c.record("resource", change.TabID, change.URL)
	c.sendResource(context.Background(), change.TabID)
}

// OnTabUpdated is the tab-updated listener registered while Enabled. It
// re-sends the tab's current resource, if one is known.
func (c *Coordinator) OnTabUpdated(tabID types.TabID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeEnabled {
		return
	}
	c.sendResource(context.Background(), tabID)
}

// OnTabRemoved drops every per-tab entry of a closed tab.
func (c *Coordinator) OnTabRemoved(tabID types.TabID) {
	c.resume.Clear(tabID)
	c.detector.Forget(tabID)
	c.toolbar.ForgetTab(tabID)
	c.record("tab_removed", tabID, nil)
	slog.Debug("tab removed", "tab_id", tabID)
}

func (c *Coordinator) sendResource(ctx context.Context, tabID types.TabID) {
	url, ok := c.detector.Current(tabID)
	if !ok {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, c.opts.SendTimeout)
	defer cancel()
	msg := types.Message{Message: types.KindURLChanged, URL: types.String(url)}
	if err := c.tabs.Send(sendCtx, tabID, msg); err != nil {
		slog.Debug("url-changed delivery failed", "tab_id", tabID, "error", err)
	}
}

// Snapshot describes the coordinator's in-memory state.
type Snapshot struct {
	Mode            string `json:"mode"`
	ActiveResources int    `json:"active_resources"`
	ResumePoints    int    `json:"resume_points"`
}

func (c *Coordinator) Snapshot() Snapshot {
	return Snapshot{
		Mode:            c.Mode().String(),
		ActiveResources: c.detector.Len(),
		ResumePoints:    c.resume.Len(),
	}
}

func (c *Coordinator) record(kind string, tabID types.TabID, detail any) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(storage.Entry{Kind: kind, TabID: int(tabID), Detail: detail}); err != nil {
		slog.Debug("journal record failed", "kind", kind, "error", err)
	}
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
