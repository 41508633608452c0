package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/avsync/internal/action"
	"github.com/dgnsrekt/avsync/internal/storage"
	"github.com/dgnsrekt/avsync/internal/types"
)

type sentMessage struct {
	TabID types.TabID
	Msg   types.Message
}

type fakeTabs struct {
	mu        sync.Mutex
	tabs      []types.Tab
	active    *types.Tab
	sent      []sentMessage
	failSend  map[types.TabID]bool
	reply     json.RawMessage
	requestFn func(ctx context.Context) (json.RawMessage, error)
	sendFn    func(ctx context.Context, tabID types.TabID) error
	queryFn   func(ctx context.Context) ([]types.Tab, error)
	navigated []string
	opened    []string
}

func (f *fakeTabs) Query(ctx context.Context, q types.TabQuery) ([]types.Tab, error) {
	f.mu.Lock()
	fn := f.queryFn
	f.mu.Unlock()
	if fn != nil && q.Active {
		return fn(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if q.Active {
		if f.active == nil {
			return nil, nil
		}
		return []types.Tab{*f.active}, nil
	}
	return append([]types.Tab(nil), f.tabs...), nil
}

func (f *fakeTabs) Send(ctx context.Context, tabID types.TabID, msg types.Message) error {
	f.mu.Lock()
	fn := f.sendFn
	f.mu.Unlock()
	if fn != nil {
		if err := fn(ctx, tabID); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend[tabID] {
		return errors.New("receiving end does not exist")
	}
	f.sent = append(f.sent, sentMessage{TabID: tabID, Msg: msg})
	return nil
}

func (f *fakeTabs) Request(ctx context.Context, _ types.TabID, _ types.Message) (json.RawMessage, error) {
	f.mu.Lock()
	fn, reply := f.requestFn, f.reply
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return reply, nil
}

func (f *fakeTabs) Navigate(_ context.Context, _ types.TabID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeTabs) Open(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, url)
	return nil
}

func (f *fakeTabs) sentTo(tabID types.TabID, kind types.MessageKind) []types.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Message
	for _, s := range f.sent {
		if s.TabID == tabID && s.Msg.Message == kind {
			out = append(out, s.Msg)
		}
	}
	return out
}

func (f *fakeTabs) navigations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.navigated...)
}

type fakeInterceptor struct {
	mu        sync.Mutex
	onRequest func(types.RequestDetails)
	onUpdated func(types.TabID)
}

func (f *fakeInterceptor) AddRequestListener(fn func(types.RequestDetails)) {
	f.mu.Lock()
	f.onRequest = fn
	f.mu.Unlock()
}

func (f *fakeInterceptor) RemoveRequestListener() {
	f.mu.Lock()
	f.onRequest = nil
	f.mu.Unlock()
}

func (f *fakeInterceptor) AddTabUpdatedListener(fn func(types.TabID)) {
	f.mu.Lock()
	f.onUpdated = fn
	f.mu.Unlock()
}

func (f *fakeInterceptor) RemoveTabUpdatedListener() {
	f.mu.Lock()
	f.onUpdated = nil
	f.mu.Unlock()
}

// request delivers an intercepted request the way the platform would: only
// while a listener is registered.
func (f *fakeInterceptor) request(url string, tabID types.TabID) {
	f.mu.Lock()
	fn := f.onRequest
	f.mu.Unlock()
	if fn != nil {
		fn(types.RequestDetails{URL: url, TabID: tabID})
	}
}

func (f *fakeInterceptor) update(tabID types.TabID) {
	f.mu.Lock()
	fn := f.onUpdated
	f.mu.Unlock()
	if fn != nil {
		fn(tabID)
	}
}

func (f *fakeInterceptor) listening() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onRequest != nil, f.onUpdated != nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []types.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, n types.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, n)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notes)
}

type harness struct {
	c           *Coordinator
	tabs        *fakeTabs
	interceptor *fakeInterceptor
	toolbar     *action.Toolbar
	notifier    *fakeNotifier
	store       *storage.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		tabs:        &fakeTabs{failSend: map[types.TabID]bool{}},
		interceptor: &fakeInterceptor{},
		toolbar:     action.NewToolbar(nil),
		notifier:    &fakeNotifier{},
		store:       storage.NewMemoryStore(),
	}
	c, err := New(Deps{
		Tabs:        h.tabs,
		Interceptor: h.interceptor,
		Toolbar:     h.toolbar,
		Notifier:    h.notifier,
		Store:       h.store,
	}, Options{
		ResumeTimeout: 50 * time.Millisecond,
		SendTimeout:   100 * time.Millisecond,
		OptionsURL:    "chrome-extension://avsync/html/options.html",
		Links:         map[string]string{"support": "https://example.com/support"},
		Version:       "2.0.0",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.c = c
	t.Cleanup(c.Wait)
	return h
}

func (h *harness) storedValues(t *testing.T, keys ...string) map[string]json.RawMessage {
	t.Helper()
	values, err := h.store.Get(context.Background(), keys...)
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	return values
}
