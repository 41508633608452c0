package coordinator

import (
	"context"
	"log/slog"

	"github.com/dgnsrekt/avsync/internal/storage"
	"github.com/dgnsrekt/avsync/internal/types"
)

// Mode is the extension's operating state.
type Mode int

const (
	ModeDisabled Mode = iota
	ModeEnabled
)

func (m Mode) String() string {
	if m == ModeEnabled {
		return "enabled"
	}
	return "disabled"
}

// modeEffects is the complete set of side effects for entering a mode.
type modeEffects struct {
	disabledFlag bool
	icon         types.IconSet
	title        string
	listen       bool
}

var effectsByMode = map[Mode]modeEffects{
	ModeEnabled: {
		disabledFlag: false,
		icon:         types.IconSet{"19": "img/icon19.png", "38": "img/icon38.png"},
		title:        "YouTube Audio/Video Sync - Enabled",
		listen:       true,
	},
	ModeDisabled: {
		disabledFlag: true,
		icon:         types.IconSet{"19": "img/disabled_icon19.png", "38": "img/disabled_icon38.png"},
		title:        "YouTube Audio/Video Sync - Disabled",
		listen:       false,
	},
}

// Mode returns the in-memory mode.
func (c *Coordinator) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Enable enters ModeEnabled.
func (c *Coordinator) Enable(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitionLocked(ctx, ModeEnabled)
}

// Disable enters ModeDisabled and forgets every tab's active resource.
func (c *Coordinator) Disable(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitionLocked(ctx, ModeDisabled)
}

// Toggle inverts the durable mode.
func (c *Coordinator) Toggle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storedDisabledLocked(ctx) {
		return c.transitionLocked(ctx, ModeEnabled)
	}
	return c.transitionLocked(ctx, ModeDisabled)
}

// ApplyStoredMode re-enters the durable mode. An unset flag means Enabled.
func (c *Coordinator) ApplyStoredMode(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storedDisabledLocked(ctx) {
		return c.transitionLocked(ctx, ModeDisabled)
	}
	return c.transitionLocked(ctx, ModeEnabled)
}

// enableIfDisabled and disableIfEnabled consult the durable flag, so repeated
// device events are no-ops.
func (c *Coordinator) enableIfDisabled(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.storedDisabledLocked(ctx) {
		return nil
	}
	return c.transitionLocked(ctx, ModeEnabled)
}

func (c *Coordinator) disableIfEnabled(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storedDisabledLocked(ctx) {
		return nil
	}
	return c.transitionLocked(ctx, ModeDisabled)
}

// storedDisabledLocked reads the durable flag, falling back to the
// in-memory mode when the store is unreadable.
func (c *Coordinator) storedDisabledLocked(ctx context.Context) bool {
	values, err := c.store.Get(ctx, storage.KeyExtensionDisabled)
	if err != nil {
		slog.Error("read extension mode failed", "error", err)
		return c.mode == ModeDisabled
	}
	return storage.Bool(values, storage.KeyExtensionDisabled)
}

func (c *Coordinator) transitionLocked(ctx context.Context, m Mode) error {
	fx := effectsByMode[m]

	c.toolbar.SetIcon(fx.icon)
	err := c.store.Set(ctx, map[string]any{storage.KeyExtensionDisabled: fx.disabledFlag})
	if err != nil {
		slog.Error("persist extension mode failed", "mode", m, "error", err)
		err = types.NewError(types.CodeStorage, "persist extension mode failed", err)
	}
	c.toolbar.SetTitle(fx.title)

	if fx.listen {
		c.interceptor.AddTabUpdatedListener(c.OnTabUpdated)
		c.interceptor.AddRequestListener(c.OnRequest)
	} else {
		c.interceptor.RemoveTabUpdatedListener()
		c.interceptor.RemoveRequestListener()
		c.detector.Reset()
	}

	c.mode = m
	slog.Info("extension mode applied", "mode", m)
	c.record("mode", 0, m.String())

	c.startResume()
	return err
}
