package coordinator

import (
	"context"
	"testing"

	"github.com/dgnsrekt/avsync/internal/storage"
	"github.com/dgnsrekt/avsync/internal/types"
)

const audioURL = "https://rr1.googlevideo.com/videoplayback?id=1&mime=audio%2Fwebm&rn=1"

func TestEnableRegistersListenersAndSetsToolbar(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.c.Enable(ctx); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if got := h.c.Mode(); got != ModeEnabled {
		t.Fatalf("Mode() = %v; want enabled", got)
	}
	req, upd := h.interceptor.listening()
	if !req || !upd {
		t.Fatalf("listeners = request:%v updated:%v; want both", req, upd)
	}
	st := h.toolbar.State()
	if st.Title != "YouTube Audio/Video Sync - Enabled" || st.Icon["19"] != "img/icon19.png" {
		t.Fatalf("toolbar = %+v; want enabled variant", st)
	}
	if storage.Bool(h.storedValues(t, storage.KeyExtensionDisabled), storage.KeyExtensionDisabled) {
		t.Fatal("is_extension_disabled = true after Enable")
	}
}

func TestDisableClearsResourcesAndListeners(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.c.Enable(ctx); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	h.interceptor.request(audioURL, 1)
	h.interceptor.request(audioURL, 2)
	if got := h.c.Snapshot().ActiveResources; got != 2 {
		t.Fatalf("ActiveResources = %d; want 2", got)
	}

	if err := h.c.Disable(ctx); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	if got := h.c.Snapshot().ActiveResources; got != 0 {
		t.Fatalf("ActiveResources after Disable = %d; want 0", got)
	}
	req, upd := h.interceptor.listening()
	if req || upd {
		t.Fatalf("listeners = request:%v updated:%v; want none", req, upd)
	}
	st := h.toolbar.State()
	if st.Title != "YouTube Audio/Video Sync - Disabled" || st.Icon["38"] != "img/disabled_icon38.png" {
		t.Fatalf("toolbar = %+v; want disabled variant", st)
	}
	if !storage.Bool(h.storedValues(t, storage.KeyExtensionDisabled), storage.KeyExtensionDisabled) {
		t.Fatal("is_extension_disabled = false after Disable")
	}

	// Requests while disabled are not observed.
	h.interceptor.request(audioURL, 1)
	if err := h.c.Enable(ctx); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if got := h.c.Snapshot().ActiveResources; got != 0 {
		t.Fatalf("ActiveResources after re-Enable = %d; want 0 until a new request", got)
	}
	h.interceptor.update(1)
	if got := len(h.tabs.sentTo(1, types.KindURLChanged)); got != 1 {
		t.Fatalf("url-changed to tab 1 = %d; want 1 (forgotten state is not resent)", got)
	}
	h.interceptor.request(audioURL, 1)
	if got := h.c.Snapshot().ActiveResources; got != 1 {
		t.Fatalf("ActiveResources after new request = %d; want 1", got)
	}
}

func TestRequestNotifiesOwningTabOnce(t *testing.T) {
	h := newHarness(t)
	if err := h.c.Enable(context.Background()); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}

	h.interceptor.request(audioURL, 4)
	h.interceptor.request(audioURL, 4)
	h.interceptor.request("https://rr1.googlevideo.com/videoplayback?id=1&mime=audio%2Fwebm&rn=2&range=10-20", 4)

	msgs := h.tabs.sentTo(4, types.KindURLChanged)
	if len(msgs) != 1 {
		t.Fatalf("url-changed messages = %d; want 1", len(msgs))
	}
	if got, want := *msgs[0].URL, "https://rr1.googlevideo.com/videoplayback?id=1&mime=audio%2Fwebm"; got != want {
		t.Fatalf("url = %q; want %q", got, want)
	}
}

func TestLiveStreamAlwaysNotifies(t *testing.T) {
	h := newHarness(t)
	if err := h.c.Enable(context.Background()); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	live := "https://rr1.googlevideo.com/videoplayback?id=1&mime=audio%2Fmp4&live=1"
	h.interceptor.request(live, 6)
	h.interceptor.request(live, 6)

	msgs := h.tabs.sentTo(6, types.KindURLChanged)
	if len(msgs) != 2 {
		t.Fatalf("url-changed messages = %d; want 2", len(msgs))
	}
	if *msgs[1].URL != "" {
		t.Fatalf("live url = %q; want empty sentinel", *msgs[1].URL)
	}
}

func TestTabUpdatedResendsCurrentResource(t *testing.T) {
	h := newHarness(t)
	if err := h.c.Enable(context.Background()); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	h.interceptor.update(2)
	if got := len(h.tabs.sentTo(2, types.KindURLChanged)); got != 0 {
		t.Fatalf("url-changed for unknown tab = %d; want 0", got)
	}
	h.interceptor.request(audioURL, 2)
	h.interceptor.update(2)
	if got := len(h.tabs.sentTo(2, types.KindURLChanged)); got != 2 {
		t.Fatalf("url-changed = %d; want 2", got)
	}
}

func TestToggleInvertsDurableFlag(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.c.Toggle(ctx); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if got := h.c.Mode(); got != ModeDisabled {
		t.Fatalf("Mode() after first Toggle = %v; want disabled (unset flag means enabled)", got)
	}
	if err := h.c.Toggle(ctx); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if got := h.c.Mode(); got != ModeEnabled {
		t.Fatalf("Mode() after second Toggle = %v; want enabled", got)
	}
}

func TestApplyStoredMode(t *testing.T) {
	tests := []struct {
		name   string
		stored map[string]any
		want   Mode
	}{
		{name: "unset defaults to enabled", stored: nil, want: ModeEnabled},
		{name: "disabled flag", stored: map[string]any{storage.KeyExtensionDisabled: true}, want: ModeDisabled},
		{name: "enabled flag", stored: map[string]any{storage.KeyExtensionDisabled: false}, want: ModeEnabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			if tt.stored != nil {
				if err := h.store.Set(ctx, tt.stored); err != nil {
					t.Fatalf("Set() error = %v", err)
				}
			}
			if err := h.c.ApplyStoredMode(ctx); err != nil {
				t.Fatalf("ApplyStoredMode() error = %v", err)
			}
			if got := h.c.Mode(); got != tt.want {
				t.Fatalf("Mode() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestActionClickedClearsBadgeAndToggles(t *testing.T) {
	h := newHarness(t)
	h.toolbar.SetBadge(nil, "!", "")
	if err := h.c.ActionClicked(context.Background()); err != nil {
		t.Fatalf("ActionClicked() error = %v", err)
	}
	if got := h.toolbar.State().Badge.Text; got != "" {
		t.Fatalf("global badge = %q; want cleared", got)
	}
	if got := h.c.Mode(); got != ModeDisabled {
		t.Fatalf("Mode() = %v; want disabled", got)
	}
}

func TestStaleListenerAfterDisableIsDropped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.c.Enable(ctx); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	h.interceptor.mu.Lock()
	onRequest, onUpdated := h.interceptor.onRequest, h.interceptor.onUpdated
	h.interceptor.mu.Unlock()

	if err := h.c.Disable(ctx); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	onRequest(types.RequestDetails{URL: audioURL, TabID: 4})
	onUpdated(4)

	if got := h.c.Snapshot().ActiveResources; got != 0 {
		t.Fatalf("ActiveResources = %d after Disable; want 0", got)
	}
	if got := len(h.tabs.sentTo(4, types.KindURLChanged)); got != 0 {
		t.Fatalf("url-changed to tab 4 = %d; want 0", got)
	}
}
