// Package notify delivers user-visible notifications.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dgnsrekt/avsync/internal/relay"
	"github.com/dgnsrekt/avsync/internal/types"
)

// Notifier posts notifications to an ntfy topic and to the SSE stream.
type Notifier struct {
	client   *http.Client
	endpoint string
	broker   *relay.Broker
}

// NewNotifier creates a Notifier. An empty endpoint disables ntfy delivery;
// a nil broker disables SSE delivery.
func NewNotifier(client *http.Client, endpoint string, broker *relay.Broker) *Notifier {
	return &Notifier{client: client, endpoint: strings.TrimSpace(endpoint), broker: broker}
}

// Notify delivers note. A missing ID is generated.
func (n *Notifier) Notify(ctx context.Context, note types.Notification) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if n.broker != nil {
		n.broker.PublishJSON(relay.FeedNotification, note)
	}
	slog.Info("notification", "id", note.ID, "title", note.Title)

	if n.endpoint == "" {
		return nil
	}
	headers := map[string]string{"Title": note.Title}
	if note.RequireInteraction {
		headers["Priority"] = "high"
	}
	if note.IconURL != "" {
		headers["Icon"] = note.IconURL
	}
	return Send(ctx, n.client, n.endpoint, note.Message, headers)
}

// Send posts message to endpoint with the given extra headers.
func Send(ctx context.Context, client *http.Client, endpoint, message string, headers map[string]string) error {
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Debug("ntfy response close failed", "error", err)
		}
	}()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		slog.Debug("ntfy response drain failed", "error", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
