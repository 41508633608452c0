package coordinator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dgnsrekt/avsync/internal/types"
)

const (
	// DefaultTabPattern matches the video platform's tabs.
	DefaultTabPattern = "*://*.youtube.com/*"
	// DefaultResumeTimeout bounds the wait for a tab's playback timestamp.
	DefaultResumeTimeout = 3 * time.Second

	navigateTimeout = 30 * time.Second
	notifyTimeout   = 10 * time.Second
)

var refreshAdvice = types.Notification{
	Title:              "YouTube Audio/Video Sync",
	Message:            "The extension has been recently installed or updated. To use it on an already opened youtube tab, you first need to refresh that tab!",
	IconURL:            "img/icon128.png",
	RequireInteraction: true,
}

// startResume reloads the focused video tab in the background, keeping its
// playback position. Mode transitions never wait for it.
func (c *Coordinator) startResume() {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		c.resumeActiveTab(context.Background())
	}()
}

func (c *Coordinator) resumeActiveTab(ctx context.Context) {
	queryCtx, cancel := context.WithTimeout(ctx, c.opts.ResumeTimeout)
	tabs, err := c.tabs.Query(queryCtx, types.TabQuery{Active: true, CurrentWindow: true, URLPattern: c.opts.TabPattern})
	cancel()
	if err != nil {
		slog.Warn("query active video tab failed", "error", err)
		return
	}
	if len(tabs) == 0 {
		slog.Debug("no active video tab to reload")
		return
	}
	tab := tabs[0]

	currentTime, ok := c.requestCurrentTime(ctx, tab.ID)
	if !ok {
		slog.Warn("content script did not report playback time", "tab_id", tab.ID)
		notifyCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := c.notifier.Notify(notifyCtx, refreshAdvice); err != nil {
			slog.Warn("refresh notification failed", "tab_id", tab.ID, "error", err)
		}
		return
	}

	point := types.ResumePoint{Time: currentTime, URL: tab.URL}
	c.resume.Put(tab.ID, point)
	c.record("resume_point", tab.ID, point)

	navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()
	if err := c.tabs.Navigate(navCtx, tab.ID, tab.URL); err != nil {
		slog.Warn("reload video tab failed", "tab_id", tab.ID, "error", err)
		return
	}
	slog.Info("video tab reloaded", "tab_id", tab.ID, "time", currentTime, "url", truncateURL(tab.URL))
}

func (c *Coordinator) requestCurrentTime(ctx context.Context, tabID types.TabID) (float64, bool) {
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.ResumeTimeout)
	defer cancel()

	raw, err := c.tabs.Request(reqCtx, tabID, types.Message{Message: types.KindGetCurrentTime})
	if err != nil {
		slog.Debug("getCurrentTime request failed", "tab_id", tabID, "error", err)
		return 0, false
	}
	if len(raw) == 0 {
		return 0, false
	}

	var reply struct {
		CurrentTime *float64 `json:"currentTime"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil || reply.CurrentTime == nil {
		slog.Debug("getCurrentTime reply malformed", "tab_id", tabID, "reply", string(raw))
		return 0, false
	}
	return *reply.CurrentTime, true
}
