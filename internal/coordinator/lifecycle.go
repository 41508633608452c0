package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dgnsrekt/avsync/internal/storage"
	"github.com/dgnsrekt/avsync/internal/types"
)

// Reason tells why the process is starting.
type Reason string

const (
	ReasonInstall Reason = "install"
	ReasonUpdate  Reason = "update"
	ReasonStartup Reason = "startup"
)

// Boot runs the matching lifecycle hook, deciding the reason from the
// durable version key, and records the running version.
func (c *Coordinator) Boot(ctx context.Context) (Reason, error) {
	values, err := c.store.Get(ctx, storage.KeyExtensionVersion)
	if err != nil {
		return "", types.NewError(types.CodeStorage, "read extension version failed", err)
	}

	reason := ReasonStartup
	if stored, ok := storage.String(values, storage.KeyExtensionVersion); !ok {
		reason = ReasonInstall
	} else if stored != c.opts.Version {
		reason = ReasonUpdate
	}
	slog.Info("coordinator boot", "reason", reason, "version", c.opts.Version)

	switch reason {
	case ReasonInstall:
		err = c.Install(ctx)
	case ReasonUpdate:
		err = c.Update(ctx)
	default:
		err = c.Startup(ctx)
	}
	if err != nil {
		return reason, err
	}

	if err := c.store.Set(ctx, map[string]any{storage.KeyExtensionVersion: c.opts.Version}); err != nil {
		return reason, types.NewError(types.CodeStorage, "record extension version failed", err)
	}
	return reason, nil
}

// Install opens the options page, enables the extension and zeroes the sync value.
func (c *Coordinator) Install(ctx context.Context) error {
	if c.opts.OptionsURL != "" {
		if err := c.tabs.Open(ctx, c.opts.OptionsURL); err != nil {
			slog.Warn("open options page failed", "url", c.opts.OptionsURL, "error", err)
		}
	}
	if err := c.Enable(ctx); err != nil {
		return err
	}
	if err := c.store.Set(ctx, map[string]any{storage.KeySyncValue: 0}); err != nil {
		return types.NewError(types.CodeStorage, "initialize syncValue failed", err)
	}
	return nil
}

// Update migrates the legacy delay value and re-applies the durable mode.
func (c *Coordinator) Update(ctx context.Context) error {
	if err := c.MigrateLegacyDelay(ctx); err != nil {
		slog.Error("legacy delay migration failed", "error", err)
	}
	return c.ApplyStoredMode(ctx)
}

// Startup clears the global badge and re-applies the durable mode.
func (c *Coordinator) Startup(ctx context.Context) error {
	c.toolbar.SetBadge(nil, "", "")
	return c.ApplyStoredMode(ctx)
}

// MigrateLegacyDelay converts a legacy delayValue into syncValue, which
// uses the opposite sign, when syncValue has never been set.
func (c *Coordinator) MigrateLegacyDelay(ctx context.Context) error {
	values, err := c.store.Get(ctx, storage.KeySyncValue, storage.KeyLegacyDelayValue)
	if err != nil {
		return types.NewError(types.CodeStorage, "read sync values failed", err)
	}
	if _, ok := values[storage.KeySyncValue]; ok {
		return nil
	}
	delay, ok := storage.Float(values, storage.KeyLegacyDelayValue)
	if !ok {
		return nil
	}
	slog.Info("migrating legacy delay value", "delay_value", delay)
	return c.ProcessSyncChange(ctx, -delay)
}

// ActionClicked handles a click on the toolbar button.
func (c *Coordinator) ActionClicked(ctx context.Context) error {
	c.toolbar.SetBadge(nil, "", "")
	return c.Toggle(ctx)
}

// Links returns the configured link names, sorted.
func (c *Coordinator) Links() []string {
	names := make([]string, 0, len(c.opts.Links))
	for name := range c.opts.Links {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenLink opens a configured link (support, donate) in a new tab.
func (c *Coordinator) OpenLink(ctx context.Context, name string) error {
	url, ok := c.opts.Links[name]
	if !ok || url == "" {
		return types.NewError(types.CodeValidation, fmt.Sprintf("unknown link %q", name), nil)
	}
	return c.tabs.Open(ctx, url)
}
