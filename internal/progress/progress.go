// Package progress stores the live status document polled for each download.
package progress

import (
	"strings"
	"time"

	"courier/internal/storage"
)

// KeyPrefix prefixes every progress document key.
const KeyPrefix = "progress_"

// Status values of a progress record.
const (
	StatusDownloading = "downloading"
	StatusComplete    = "complete"
	StatusError       = "error"
)

// Record is the per-download progress document.
type Record struct {
	Status     string  `json:"status"`
	Filename   string  `json:"filename"`
	Percentage float64 `json:"percentage"`
	Speed      string  `json:"speed"`
	Downloaded int64   `json:"downloaded"`
	Total      int64   `json:"total"`
	LastUpdate int64   `json:"last_update"`
	Message    string  `json:"message,omitempty"`
}

// Terminal reports whether the record will not change again.
func (r Record) Terminal() bool {
	return r.Status == StatusComplete || r.Status == StatusError
}

// Age returns how long ago the record was last written.
func (r Record) Age(now time.Time) time.Duration {
	if r.LastUpdate <= 0 {
		return time.Duration(1<<63 - 1)
	}
	return now.Sub(time.Unix(r.LastUpdate, 0))
}

// Key returns the storage key for a download id.
func Key(downloadID string) string {
	return KeyPrefix + strings.TrimSpace(downloadID)
}

// Tracker reads and writes progress documents.
type Tracker struct {
	store *storage.Store
	now   func() time.Time
}

// NewTracker returns a tracker backed by store.
func NewTracker(store *storage.Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// WithClock overrides the clock used to stamp records.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	if now != nil {
		t.now = now
	}
	return t
}

// Read returns the record for downloadID, if any.
func (t *Tracker) Read(downloadID string) (Record, bool) {
	rec := storage.Get(t.store, Key(downloadID), Record{})
	if rec.Status == "" {
		return Record{}, false
	}
	return rec, true
}

// Write stores rec, stamping LastUpdate. A downloading record never moves
// its LastUpdate backwards.
func (t *Tracker) Write(downloadID string, rec Record) {
	now := t.now().Unix()
	storage.Update(t.store, Key(downloadID), Record{}, func(prev Record) Record {
		rec.LastUpdate = now
		if prev.Status == StatusDownloading && prev.LastUpdate > now {
			rec.LastUpdate = prev.LastUpdate
		}
		return rec
	})
}

// Fail writes a terminal error record.
func (t *Tracker) Fail(downloadID, filename, message string) {
	t.Write(downloadID, Record{
		Status:   StatusError,
		Filename: filename,
		Speed:    "0 B/s",
		Message:  message,
	})
}

// PurgeAll deletes every progress document and returns the count removed.
func (t *Tracker) PurgeAll() int {
	return t.store.DeletePrefix(KeyPrefix)
}
