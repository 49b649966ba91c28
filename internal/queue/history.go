package queue

import (
	"strings"

	"courier/internal/logging"
	"courier/internal/mediatype"
	"courier/internal/storage"
)

// RecordHistory appends a terminal entry for item and trims the history to
// the retention limit, dropping the oldest entries first.
func (m *Manager) RecordHistory(item Item, status Outcome, fileCount int, stats Stats) HistoryEntry {
	mediaType := item.MediaType
	if mediatype.IsGeneric(mediaType) {
		mediaType = mediatype.Classify(item.Filename)
	}
	if item.Kind == KindMultiTrack {
		mediaType = mediatype.Audio
	}

	entry := HistoryEntry{
		DownloadID:       item.DownloadID,
		Filename:         item.DisplayName(),
		Kind:             item.Kind,
		MediaType:        mediaType,
		Status:           status,
		Date:             m.now().Format(HistoryDateLayout),
		Path:             item.Path,
		FileCount:        fileCount,
		Size:             stats.Size,
		Speed:            stats.Speed,
		Duration:         stats.Duration,
		ExpectedTracks:   item.ExpectedTracks(),
		DownloadedTracks: stats.DownloadedTracks,
		MissingTracks:    stats.MissingTracks,
		ErrorMessage:     stats.ErrorMessage,
	}

	limit := m.historyLimit
	storage.Update(m.store, KeyHistory, []HistoryEntry(nil), func(entries []HistoryEntry) []HistoryEntry {
		entries = append(entries, entry)
		if over := len(entries) - limit; over > 0 {
			entries = append([]HistoryEntry(nil), entries[over:]...)
		}
		return entries
	})

	m.logger.Info("history recorded",
		logging.String(logging.FieldDownloadID, item.DownloadID),
		logging.String(logging.FieldKind, string(item.Kind)),
		logging.String("status", string(status)),
	)
	return entry
}

// History returns every retained entry, newest first.
func (m *Manager) History() []HistoryEntry {
	entries := storage.Get(m.store, KeyHistory, []HistoryEntry(nil))
	out := make([]HistoryEntry, len(entries))
	for i, entry := range entries {
		out[len(entries)-1-i] = entry
	}
	return out
}

// HistoryPage returns one newest-first page (1-based) and the total count.
func (m *Manager) HistoryPage(page, perPage int) ([]HistoryEntry, int) {
	all := m.History()
	if perPage <= 0 {
		perPage = 20
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * perPage
	if start >= len(all) {
		return nil, len(all)
	}
	end := min(start+perPage, len(all))
	return all[start:end], len(all)
}

// IsDownloaded reports whether filename finished successfully (or with
// warnings) according to the retained history.
func (m *Manager) IsDownloaded(filename string) bool {
	target := strings.TrimSpace(filename)
	if target == "" {
		return false
	}
	for _, entry := range storage.Get(m.store, KeyHistory, []HistoryEntry(nil)) {
		if entry.Filename != target {
			continue
		}
		if entry.Status == OutcomeSuccess || entry.Status == OutcomeWarning {
			return true
		}
	}
	return false
}

// ClearHistory removes every history entry.
func (m *Manager) ClearHistory() {
	storage.Set(m.store, KeyHistory, []HistoryEntry{})
}
