// Package cdp hosts the coordinator inside a Chromium instance reached over
// the DevTools protocol. Page targets are the tabs, network interception
// feeds the request listener and a page binding carries content-script
// messages.
package cdp

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/avsync/internal/cdpcontrol"
	"github.com/dgnsrekt/avsync/internal/types"
)

const (
	attachTimeout     = 15 * time.Second
	replyTimeout      = 5 * time.Second
	visibilityTimeout = time.Second
)

// MessageHandler answers an inbound content-script message.
type MessageHandler func(ctx context.Context, msg types.Message, sender types.Sender) (any, error)

// Handlers are the callbacks the Browser drives besides the coordinator's
// toggleable listeners. MessagePattern limits OnMessage to tabs whose URL
// matches it; any page can call the binding, so leaving it empty accepts
// messages from every site.
type Handlers struct {
	OnMessage      MessageHandler
	OnTabRemoved   func(types.TabID)
	MessagePattern string
}

type tabSession struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Browser implements the coordinator's tab and interception surfaces.
// Events from every tab are handled one at a time on a single goroutine,
// outside chromedp's listener callbacks.
type Browser struct {
	cdpURL   string
	registry *TabRegistry
	watcher  *cdpcontrol.TargetWatcher

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu        sync.Mutex
	sessions  map[target.ID]*tabSession
	handlers  Handlers
	onRequest func(types.RequestDetails)
	onUpdated func(types.TabID)

	// queue is unbounded so chromedp's event goroutine never blocks on it.
	queueMu sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewBrowser(cdpURL string, registry *TabRegistry) *Browser {
	if registry == nil {
		registry = NewTabRegistry()
	}
	return &Browser{
		cdpURL:   cdpURL,
		registry: registry,
		watcher:  cdpcontrol.NewTargetWatcher(cdpURL),
		sessions: make(map[target.ID]*tabSession),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// SetHandlers installs the message and tab-close callbacks. Call it before
// Connect.
func (b *Browser) SetHandlers(h Handlers) {
	b.mu.Lock()
	b.handlers = h
	b.mu.Unlock()
}

// Connect attaches to every open page target and starts following target
// lifecycle events.
func (b *Browser) Connect(ctx context.Context) error {
	slog.Info("connecting to Chromium", "url", b.cdpURL)
	b.allocCtx, b.allocCancel = chromedp.NewRemoteAllocator(context.Background(), b.cdpURL)

	b.wg.Add(1)
	go b.loop()

	err := b.watcher.Start(ctx, cdpcontrol.TargetEvents{
		Created: func(info *target.Info) {
			b.enqueue(func() { b.attach(info.TargetID, info.URL, info.Title) })
		},
		Changed: func(info *target.Info) {
			b.enqueue(func() { b.registry.SetURL(info.TargetID, info.URL) })
		},
		Destroyed: func(id target.ID) {
			b.enqueue(func() { b.detach(id) })
		},
	})
	if err != nil {
		return err
	}

	slog.Info("connected to Chromium", "pages", b.seedPages(ctx))
	return nil
}

// seedPages queues an attach for every page already open. Discovery events
// replay the same targets; attach ignores the duplicates.
func (b *Browser) seedPages(ctx context.Context) int {
	pages, err := b.watcher.Pages(ctx)
	if err != nil {
		slog.Warn("listing open tabs failed, relying on discovery events", "error", err)
		return 0
	}
	for _, info := range pages {
		info := info
		b.enqueue(func() { b.attach(info.TargetID, info.URL, info.Title) })
	}
	return len(pages)
}

// Done is closed when the browser connection drops.
func (b *Browser) Done() <-chan struct{} {
	return b.watcher.Done()
}

func (b *Browser) Close() error {
	select {
	case <-b.done:
		return nil
	default:
	}
	close(b.done)
	_ = b.watcher.Close()

	b.mu.Lock()
	for id, s := range b.sessions {
		s.cancel()
		delete(b.sessions, id)
	}
	b.mu.Unlock()

	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.wg.Wait()
	slog.Info("CDP browser closed")
	return nil
}

func (b *Browser) enqueue(fn func()) {
	b.queueMu.Lock()
	b.queue = append(b.queue, fn)
	b.queueMu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Browser) loop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.wake:
		case <-b.done:
			return
		}
		for {
			b.queueMu.Lock()
			if len(b.queue) == 0 {
				b.queueMu.Unlock()
				break
			}
			fn := b.queue[0]
			b.queue[0] = nil
			b.queue = b.queue[1:]
			b.queueMu.Unlock()
			fn()
		}
	}
}

func (b *Browser) attach(targetID target.ID, url, title string) {
	b.mu.Lock()
	_, known := b.sessions[targetID]
	b.mu.Unlock()
	if known {
		return
	}

	tab, _ := b.registry.Register(targetID, url, title)
	tabCtx, cancel := chromedp.NewContext(b.allocCtx, chromedp.WithTargetID(targetID))

	runCtx, runCancel := context.WithTimeout(tabCtx, attachTimeout)
	defer runCancel()
	err := chromedp.Run(runCtx,
		network.Enable(),
		page.Enable(),
		runtime.Enable(),
		runtime.AddBinding(BindingName),
	)
	if err != nil {
		cancel()
		b.registry.Remove(targetID)
		slog.Warn("attach to tab failed", "target_id", targetID, "url", truncateURL(url), "error", err)
		return
	}

	b.mu.Lock()
	b.sessions[targetID] = &tabSession{ctx: tabCtx, cancel: cancel}
	b.mu.Unlock()

	chromedp.ListenTarget(tabCtx, b.eventHandler(targetID))
	slog.Info("attached to tab", "tab_id", tab.ID, "target_id", targetID, "url", truncateURL(url))
}

func (b *Browser) detach(targetID target.ID) {
	b.mu.Lock()
	s, ok := b.sessions[targetID]
	delete(b.sessions, targetID)
	onRemoved := b.handlers.OnTabRemoved
	b.mu.Unlock()
	if ok {
		s.cancel()
	}

	tab, known := b.registry.Remove(targetID)
	if !known {
		return
	}
	slog.Info("tab closed", "tab_id", tab.ID, "target_id", targetID)
	if onRemoved != nil {
		onRemoved(tab.ID)
	}
}

// eventHandler runs inside chromedp's event goroutine, so it only queues work.
func (b *Browser) eventHandler(targetID target.ID) func(ev interface{}) {
	return func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			if e.Request == nil {
				return
			}
			url := e.Request.URL
			b.enqueue(func() { b.deliverRequest(targetID, url) })
		case *page.EventFrameNavigated:
			if e.Frame == nil || e.Frame.ParentID != "" {
				return
			}
			url := e.Frame.URL
			b.enqueue(func() { b.deliverUpdate(targetID, url) })
		case *page.EventNavigatedWithinDocument:
			url := e.URL
			b.enqueue(func() { b.deliverUpdate(targetID, url) })
		case *page.EventLoadEventFired:
			b.enqueue(func() { b.deliverUpdate(targetID, "") })
		case *runtime.EventBindingCalled:
			if e.Name != BindingName {
				return
			}
			payload := e.Payload
			b.enqueue(func() { b.deliverMessage(targetID, payload) })
		}
	}
}

func (b *Browser) deliverRequest(targetID target.ID, url string) {
	tab, ok := b.registry.ByTarget(targetID)
	if !ok {
		return
	}
	b.mu.Lock()
	fn := b.onRequest
	b.mu.Unlock()
	if fn != nil {
		fn(types.RequestDetails{URL: url, TabID: tab.ID})
	}
}

func (b *Browser) deliverUpdate(targetID target.ID, url string) {
	var (
		tab types.Tab
		ok  bool
	)
	if url != "" {
		tab, ok = b.registry.SetURL(targetID, url)
	} else {
		tab, ok = b.registry.ByTarget(targetID)
	}
	if !ok {
		return
	}
	b.mu.Lock()
	fn := b.onUpdated
	b.mu.Unlock()
	if fn != nil {
		fn(tab.ID)
	}
}

func (b *Browser) deliverMessage(targetID target.ID, payload string) {
	tab, ok := b.registry.ByTarget(targetID)
	if !ok {
		return
	}
	call, err := decodeBindingCall(payload)
	if err != nil {
		slog.Debug("ignoring content script message", "tab_id", tab.ID, "error", err)
		return
	}

	b.mu.Lock()
	handle := b.handlers.OnMessage
	pattern := b.handlers.MessagePattern
	b.mu.Unlock()
	if handle == nil {
		return
	}
	if !MatchPattern(pattern, tab.URL) {
		slog.Warn("dropping message from tab outside the platform", "tab_id", tab.ID, "message", call.Message.Message, "url", truncateURL(tab.URL))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()
	response, callErr := handle(ctx, call.Message, types.Sender{Tab: &tab})
	if call.ID == 0 {
		if callErr != nil {
			slog.Warn("content script message failed", "tab_id", tab.ID, "message", call.Message.Message, "error", callErr)
		}
		return
	}

	js, err := jsReply(call.ID, response, callErr)
	if err != nil {
		slog.Warn("encode reply failed", "tab_id", tab.ID, "error", err)
		return
	}
	if err := b.evaluate(ctx, tab.ID, js, nil, false); err != nil {
		slog.Debug("reply delivery failed", "tab_id", tab.ID, "error", err)
	}
}

// Query returns the registered tabs matching q. Active tabs are those whose
// document is visible; only the first one is returned.
func (b *Browser) Query(ctx context.Context, q types.TabQuery) ([]types.Tab, error) {
	var out []types.Tab
	for _, tab := range b.registry.List() {
		if !MatchPattern(q.URLPattern, tab.URL) {
			continue
		}
		if q.Active {
			if ctx.Err() != nil {
				return nil, types.NewError(types.CodeNoResponse, "active tab query timed out", ctx.Err())
			}
			if !b.visible(ctx, tab.ID) {
				continue
			}
			tab.Active = true
			return []types.Tab{tab}, nil
		}
		out = append(out, tab)
	}
	return out, nil
}

// visible bounds each tab's probe so a tab stuck in a dialog cannot use up
// the whole query deadline.
func (b *Browser) visible(ctx context.Context, tabID types.TabID) bool {
	probeCtx, cancel := context.WithTimeout(ctx, visibilityTimeout)
	defer cancel()
	var state string
	if err := b.evaluate(probeCtx, tabID, `document.visibilityState`, &state, false); err != nil {
		slog.Debug("visibility probe failed", "tab_id", tabID, "error", err)
		return false
	}
	return state == "visible"
}

func (b *Browser) Send(ctx context.Context, tabID types.TabID, msg types.Message) error {
	js, err := jsPostMessage(msg)
	if err != nil {
		return types.NewError(types.CodeValidation, "encode message failed", err)
	}
	return b.evaluate(ctx, tabID, js, nil, false)
}

func (b *Browser) Request(ctx context.Context, tabID types.TabID, msg types.Message) (json.RawMessage, error) {
	js, err := jsRequest(msg)
	if err != nil {
		return nil, types.NewError(types.CodeValidation, "encode message failed", err)
	}
	var result string
	if err := b.evaluate(ctx, tabID, js, &result, true); err != nil {
		return nil, err
	}
	return decodeRequestResult(result)
}

func (b *Browser) Navigate(ctx context.Context, tabID types.TabID, url string) error {
	tabCtx, err := b.session(tabID)
	if err != nil {
		return err
	}
	runCtx, cancel := mergeDeadline(tabCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return types.NewError(types.CodeCDPUnavailable, "navigate failed", err)
	}
	return nil
}

func (b *Browser) Open(ctx context.Context, url string) error {
	id, err := b.watcher.CreateTarget(ctx, url)
	if err != nil {
		return err
	}
	slog.Info("opened tab", "target_id", id, "url", truncateURL(url))
	return nil
}

func (b *Browser) AddRequestListener(fn func(types.RequestDetails)) {
	b.mu.Lock()
	b.onRequest = fn
	b.mu.Unlock()
}

func (b *Browser) RemoveRequestListener() {
	b.mu.Lock()
	b.onRequest = nil
	b.mu.Unlock()
}

func (b *Browser) AddTabUpdatedListener(fn func(types.TabID)) {
	b.mu.Lock()
	b.onUpdated = fn
	b.mu.Unlock()
}

func (b *Browser) RemoveTabUpdatedListener() {
	b.mu.Lock()
	b.onUpdated = nil
	b.mu.Unlock()
}

func (b *Browser) session(tabID types.TabID) (context.Context, error) {
	tab, ok := b.registry.Tab(tabID)
	if !ok {
		return nil, types.NewError(types.CodeTabNotFound, "tab not found", nil)
	}
	b.mu.Lock()
	s, ok := b.sessions[target.ID(tab.TargetID)]
	b.mu.Unlock()
	if !ok {
		return nil, types.NewError(types.CodeTabNotFound, "tab not attached", nil)
	}
	return s.ctx, nil
}

func (b *Browser) evaluate(ctx context.Context, tabID types.TabID, js string, res interface{}, await bool) error {
	tabCtx, err := b.session(tabID)
	if err != nil {
		return err
	}
	runCtx, cancel := mergeDeadline(tabCtx, ctx)
	defer cancel()

	opts := []chromedp.EvaluateOption{}
	if await {
		opts = append(opts, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		})
	}
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, res, opts...)); err != nil {
		if ctx.Err() != nil {
			return types.NewError(types.CodeNoResponse, "tab did not answer in time", err)
		}
		return types.NewError(types.CodeCDPUnavailable, "evaluate in tab failed", err)
	}
	return nil
}

// mergeDeadline derives from the tab context and also stops when the
// caller's context is done.
func mergeDeadline(tabCtx, callCtx context.Context) (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if deadline, ok := callCtx.Deadline(); ok {
		ctx, cancel = context.WithDeadline(tabCtx, deadline)
	} else {
		ctx, cancel = context.WithCancel(tabCtx)
	}
	stop := context.AfterFunc(callCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
