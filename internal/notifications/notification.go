package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"courier/internal/storage"
)

// FeedKey is the storage key holding pending server notifications.
const FeedKey = "server_notifications"

const timeLayout = "15:04:05"

// Severity classifies a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Actions framing an item's processing window.
const (
	ActionStarted  = "Started"
	ActionFinished = "Finished"
	ActionFailed   = "Failed"
)

// Notification is a transient UI event.
type Notification struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Action   string   `json:"action"`
	Subject  string   `json:"subject"`
	Kind     string   `json:"kind"`
	Time     string   `json:"time"`
}

// Publisher delivers notifications.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// Started announces that processing of subject began.
func Started(kind, subject string) Notification {
	return Notification{
		Severity: SeverityInfo,
		Message:  fmt.Sprintf("Starting %s download", kind),
		Action:   ActionStarted,
		Subject:  subject,
		Kind:     kind,
	}
}

// Finished announces a completed item. A warning severity marks partial
// multi-track results.
func Finished(kind, subject string, partial bool) Notification {
	n := Notification{
		Severity: SeveritySuccess,
		Message:  fmt.Sprintf("Successfully downloaded %s", kind),
		Action:   ActionFinished,
		Subject:  subject,
		Kind:     kind,
	}
	if partial {
		n.Severity = SeverityWarning
		n.Message = fmt.Sprintf("Downloaded %s with missing tracks", kind)
	}
	return n
}

// Failed announces a failed item.
func Failed(kind, subject, reason string) Notification {
	n := Notification{
		Severity: SeverityError,
		Message:  fmt.Sprintf("Failed %s download", kind),
		Action:   ActionFailed,
		Subject:  subject,
		Kind:     kind,
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		n.Message += ": " + reason
	}
	return n
}

// Feed is the store-backed notification list.
type Feed struct {
	store *storage.Store
	now   func() time.Time
}

// NewFeed returns a feed over store.
func NewFeed(store *storage.Store) *Feed {
	return &Feed{store: store, now: time.Now}
}

// Publish appends n to the feed, stamping the time when absent.
func (f *Feed) Publish(_ context.Context, n Notification) error {
	if n.Time == "" {
		n.Time = f.now().Format(timeLayout)
	}
	if !storage.Update(f.store, FeedKey, []Notification(nil), func(list []Notification) []Notification {
		return append(list, n)
	}) {
		return fmt.Errorf("append notification: feed could not be persisted")
	}
	return nil
}

// Drain returns every pending notification and clears the feed.
func (f *Feed) Drain() []Notification {
	var drained []Notification
	storage.Update(f.store, FeedKey, []Notification(nil), func(list []Notification) []Notification {
		drained = list
		return []Notification{}
	})
	return drained
}

// Peek returns pending notifications without clearing them.
func (f *Feed) Peek() []Notification {
	return storage.Get(f.store, FeedKey, []Notification(nil))
}
