package queue

import (
	"errors"
	"fmt"
	"strings"

	"courier/internal/mediatype"
)

// Kind is the closed set of queue item variants.
type Kind string

const (
	KindTransfer   Kind = "transfer"
	KindMultiTrack Kind = "multitrack"
)

// Outcome is the terminal status recorded in history.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarning  Outcome = "warning"
	OutcomeError    Outcome = "error"
	OutcomeCanceled Outcome = "canceled"
)

// Storage keys shared with the worker process.
const (
	KeyQueue      = "server_queue"
	KeyActiveTask = "active_worker_task"
	KeyHeartbeat  = "worker_heartbeat"
	KeySpawnedAt  = "worker_spawned_at"
	KeyHistory    = "history"

	spawnLockName = "worker_spawn.lock"
)

// HistoryDateLayout formats HistoryEntry.Date.
const HistoryDateLayout = "2006-01-02 15:04:05"

// Track identifies one song of a multi-track acquisition.
type Track struct {
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	SongName string `json:"song_name"`
}

// MatchKey normalizes the track identity for comparisons.
func (t Track) MatchKey() string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return norm(t.Artist) + "\x00" + norm(t.Album) + "\x00" + norm(t.SongName)
}

func (t Track) String() string {
	return fmt.Sprintf("%s - %s - %s", t.Artist, t.Album, t.SongName)
}

// TransferSpec carries the fields only ordinary transfers need.
type TransferSpec struct {
	Overwrite bool `json:"overwrite"`
}

// MultiTrackSpec carries the fields only multi-track jobs need.
type MultiTrackSpec struct {
	ExpectedTracks []Track `json:"expected_tracks"`
}

// Item is one queued unit of work. Exactly one of Transfer or MultiTrack is
// set, matching Kind.
type Item struct {
	DownloadID string         `json:"download_id"`
	URL        string         `json:"url"`
	Filename   string         `json:"filename"`
	Path       string         `json:"path"`
	Kind       Kind           `json:"kind"`
	MediaType  mediatype.Type `json:"media_type"`
	EnqueuedAt int64          `json:"enqueued_at"`

	Transfer   *TransferSpec   `json:"transfer,omitempty"`
	MultiTrack *MultiTrackSpec `json:"multitrack,omitempty"`
}

// NewTransfer builds a transfer item.
func NewTransfer(url, filename, path string, overwrite bool) Item {
	return Item{
		URL:      strings.TrimSpace(url),
		Filename: strings.TrimSpace(filename),
		Path:     strings.TrimSpace(path),
		Kind:     KindTransfer,
		Transfer: &TransferSpec{Overwrite: overwrite},
	}
}

// NewMultiTrack builds a multi-track item.
func NewMultiTrack(url, filename, path string, tracks []Track) Item {
	return Item{
		URL:        strings.TrimSpace(url),
		Filename:   strings.TrimSpace(filename),
		Path:       strings.TrimSpace(path),
		Kind:       KindMultiTrack,
		MultiTrack: &MultiTrackSpec{ExpectedTracks: append([]Track(nil), tracks...)},
	}
}

// Validate checks that the variant payload matches the kind.
func (i Item) Validate() error {
	switch i.Kind {
	case KindTransfer:
		if i.Transfer == nil {
			return errors.New("transfer item missing transfer payload")
		}
		if i.MultiTrack != nil {
			return errors.New("transfer item carries multitrack payload")
		}
		if strings.TrimSpace(i.URL) == "" {
			return errors.New("transfer item missing url")
		}
		if strings.TrimSpace(i.Filename) == "" {
			return errors.New("transfer item missing filename")
		}
	case KindMultiTrack:
		if i.MultiTrack == nil {
			return errors.New("multitrack item missing multitrack payload")
		}
		if i.Transfer != nil {
			return errors.New("multitrack item carries transfer payload")
		}
		if strings.TrimSpace(i.URL) == "" {
			return errors.New("multitrack item missing url")
		}
	default:
		return fmt.Errorf("unknown item kind %q", i.Kind)
	}
	return nil
}

// Overwrite reports the transfer overwrite flag; false for other kinds.
func (i Item) Overwrite() bool {
	return i.Transfer != nil && i.Transfer.Overwrite
}

// ExpectedTracks returns the multi-track expectation list; nil for other kinds.
func (i Item) ExpectedTracks() []Track {
	if i.MultiTrack == nil {
		return nil
	}
	return i.MultiTrack.ExpectedTracks
}

// DisplayName returns the filename, falling back to the URL.
func (i Item) DisplayName() string {
	if name := strings.TrimSpace(i.Filename); name != "" {
		return name
	}
	return i.URL
}

// Stats describes how an item finished.
type Stats struct {
	Size             int64
	Speed            string
	Duration         float64
	DownloadedTracks []Track
	MissingTracks    []Track
	ErrorMessage     string
}

// HistoryEntry is the terminal record of a processed or canceled item.
type HistoryEntry struct {
	DownloadID       string         `json:"download_id"`
	Filename         string         `json:"filename"`
	Kind             Kind           `json:"kind"`
	MediaType        mediatype.Type `json:"type"`
	Status           Outcome        `json:"status"`
	Date             string         `json:"date"`
	Path             string         `json:"path"`
	FileCount        int            `json:"file_count"`
	Size             int64          `json:"size"`
	Speed            string         `json:"speed"`
	Duration         float64        `json:"duration"`
	ExpectedTracks   []Track        `json:"expected_tracks,omitempty"`
	DownloadedTracks []Track        `json:"downloaded_tracks,omitempty"`
	MissingTracks    []Track        `json:"missing_tracks,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
}
