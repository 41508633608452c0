package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/avsync/internal/storage"
	"github.com/dgnsrekt/avsync/internal/types"
)

const (
	waitingBadgeText  = "⌛"
	waitingBadgeColor = "#FFFFFF"

	// DefaultSendTimeout bounds delivery of one message to one tab.
	DefaultSendTimeout = 5 * time.Second
)

// Dispatch is the single entry point for inbound messages. The returned
// value is the reply for request/response kinds and nil otherwise. Unknown
// kinds are ignored.
func (c *Coordinator) Dispatch(ctx context.Context, msg types.Message, sender types.Sender) (any, error) {
	switch msg.Message {
	case types.KindProcessSyncChange:
		if msg.SyncValue == nil {
			return nil, types.NewError(types.CodeValidation, "syncValue is required", nil)
		}
		return nil, c.ProcessSyncChange(ctx, *msg.SyncValue)

	case types.KindMaxSelectableDelayChange:
		if msg.MaxSelectableDelayValue == nil {
			return nil, types.NewError(types.CodeValidation, "maxSelectableDelayValue is required", nil)
		}
		v := *msg.MaxSelectableDelayValue
		return nil, c.changeSetting(ctx, storage.KeyMaxSelectableDelayValue, v,
			types.Message{Message: types.KindMaxSelectableDelayChanged, MaxSelectableDelayValue: types.Float(v)})

	case types.KindMaxAcceptableDelayChange:
		if msg.MaxAcceptableDelayValue == nil {
			return nil, types.NewError(types.CodeValidation, "maxAcceptableDelayValue is required", nil)
		}
		v := *msg.MaxAcceptableDelayValue
		return nil, c.changeSetting(ctx, storage.KeyMaxAcceptableDelayValue, v,
			types.Message{Message: types.KindMaxAcceptableDelayChanged, MaxAcceptableDelayValue: types.Float(v)})

	case types.KindGetCurrentTimeBeforeToggle:
		tab, ok := senderTab(msg, sender)
		if !ok {
			return types.NotFound, nil
		}
		return c.TakeResumePoint(tab.ID), nil

	case types.KindClearTabStorage:
		if tab, ok := senderTab(msg, sender); ok {
			c.resume.Clear(tab.ID)
		}
		return nil, nil

	case types.KindSetWaitingBadge:
		if tab, ok := senderTab(msg, sender); ok {
			id := tab.ID
			c.toolbar.SetBadge(&id, waitingBadgeText, waitingBadgeColor)
		}
		return nil, nil

	case types.KindRemoveWaitingBadge:
		if tab, ok := senderTab(msg, sender); ok {
			id := tab.ID
			c.toolbar.SetBadge(&id, "", "")
		}
		return nil, nil

	case types.KindToggleExtension:
		return nil, c.Toggle(ctx)

	case types.KindAudioDeviceConnected:
		return nil, c.AudioDeviceConnected(ctx, msg.AudioDevice)

	case types.KindAudioDeviceDisconnected:
		return nil, c.disableIfEnabled(ctx)

	default:
		slog.Debug("ignoring message", "message", msg.Message)
		return nil, nil
	}
}

// TakeResumePoint consumes the tab's resume point. It returns a
// types.ResumePoint, or types.NotFound when none is stored.
func (c *Coordinator) TakeResumePoint(tabID types.TabID) any {
	point, ok := c.resume.Take(tabID)
	if !ok {
		return types.NotFound
	}
	return point
}

// ProcessSyncChange persists the sync offset and broadcasts it to every tab.
func (c *Coordinator) ProcessSyncChange(ctx context.Context, syncValue float64) error {
	return c.changeSetting(ctx, storage.KeySyncValue, syncValue,
		types.Message{Message: types.KindSyncChanged, SyncValue: types.Float(syncValue)})
}

// AudioDeviceConnected records the device and resumes sync when disabled.
func (c *Coordinator) AudioDeviceConnected(ctx context.Context, device string) error {
	if err := c.store.Set(ctx, map[string]any{
		storage.KeyAutoToggleAudioDevice: true,
		storage.KeyAudioDevice:           device,
	}); err != nil {
		slog.Error("persist audio device failed", "error", err)
		return types.NewError(types.CodeStorage, "persist audio device failed", err)
	}
	c.record("audio_device", 0, device)
	return c.enableIfDisabled(ctx)
}

func (c *Coordinator) changeSetting(ctx context.Context, key string, value float64, notice types.Message) error {
	if err := c.store.Set(ctx, map[string]any{key: value}); err != nil {
		slog.Error("persist setting failed", "key", key, "error", err)
		return types.NewError(types.CodeStorage, "persist "+key+" failed", err)
	}
	c.record("setting", 0, map[string]any{key: value})
	c.broadcast(ctx, notice)
	return nil
}

// broadcast sends msg to every open tab. Each tab gets its own deadline,
// detached from ctx, so a tab that hangs or fails never starves the others.
func (c *Coordinator) broadcast(ctx context.Context, msg types.Message) {
	tabs, err := c.tabs.Query(ctx, types.TabQuery{})
	if err != nil {
		slog.Warn("broadcast tab query failed", "message", msg.Message, "error", err)
		return
	}

	base := context.WithoutCancel(ctx)
	var (
		wg        sync.WaitGroup
		delivered atomic.Int32
	)
	for _, tab := range tabs {
		wg.Add(1)
		go func(tabID types.TabID) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(base, c.opts.SendTimeout)
			defer cancel()
			if err := c.tabs.Send(sendCtx, tabID, msg); err != nil {
				slog.Debug("broadcast delivery skipped", "message", msg.Message, "tab_id", tabID, "error", err)
				return
			}
			delivered.Add(1)
		}(tab.ID)
	}
	wg.Wait()
	slog.Debug("broadcast sent", "message", msg.Message, "tabs", len(tabs), "delivered", delivered.Load())
}

func senderTab(msg types.Message, sender types.Sender) (types.Tab, bool) {
	if sender.Tab == nil {
		slog.Debug("message needs a sender tab", "message", msg.Message)
		return types.Tab{}, false
	}
	return *sender.Tab, true
}
