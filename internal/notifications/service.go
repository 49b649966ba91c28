package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"courier/internal/config"
)

const userAgent = "Courier-Go/0.1.0"

// NewService builds a push publisher backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Publisher {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := config.Seconds(cfg.Notifications.RequestTimeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

// Publish pushes only the events a phone should buzz for: finished and
// failed items. Start events stay in the feed.
func (n *ntfyService) Publish(ctx context.Context, note Notification) error {
	if note.Action == ActionStarted {
		return nil
	}
	subject := strings.TrimSpace(note.Subject)
	if subject == "" {
		subject = "unknown"
	}
	data := payload{
		title:   "Courier - " + note.Action,
		message: fmt.Sprintf("%s: %s", note.Message, subject),
		tags:    []string{"courier", strings.ToLower(note.Action)},
	}
	if kind := strings.TrimSpace(note.Kind); kind != "" {
		data.tags = append(data.tags, kind)
	}
	switch note.Severity {
	case SeverityError:
		data.message = "❌ " + data.message
		data.priority = "high"
	case SeverityWarning:
		data.message = "⚠️ " + data.message
	case SeveritySuccess:
		data.message = "✅ " + data.message
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Notification) error { return nil }

// Multi fans a notification out to every publisher. Every publisher is
// attempted; errors are joined.
type Multi []Publisher

// Publish delivers n to each publisher.
func (m Multi) Publish(ctx context.Context, n Notification) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
