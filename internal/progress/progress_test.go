package progress_test

import (
	"path/filepath"
	"testing"
	"time"

	"courier/internal/logging"
	"courier/internal/progress"
	"courier/internal/storage"
)

func newTracker(t *testing.T, now *time.Time) (*progress.Tracker, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "s"), logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return progress.NewTracker(store).WithClock(func() time.Time { return *now }), store
}

func TestWriteStampsLastUpdate(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tracker, store := newTracker(t, &now)

	tracker.Write("abc", progress.Record{Status: progress.StatusDownloading, Filename: "f.bin", Percentage: 12.5})
	rec, ok := tracker.Read("abc")
	if !ok {
		t.Fatal("expected record")
	}
	if rec.LastUpdate != now.Unix() || rec.Percentage != 12.5 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if _, ok := storage.Get(store, "progress_abc", map[string]any(nil))["last_update"]; !ok {
		t.Fatal("expected last_update field in stored document")
	}
}

func TestWriteKeepsLastUpdateMonotonicWhileDownloading(t *testing.T) {
	now := time.Unix(1_700_000_100, 0)
	tracker, _ := newTracker(t, &now)
	tracker.Write("abc", progress.Record{Status: progress.StatusDownloading})

	now = now.Add(-30 * time.Second)
	tracker.Write("abc", progress.Record{Status: progress.StatusDownloading})

	rec, _ := tracker.Read("abc")
	if rec.LastUpdate != 1_700_000_100 {
		t.Fatalf("last_update went backwards: %d", rec.LastUpdate)
	}
}

func TestFailAndPurge(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tracker, _ := newTracker(t, &now)
	tracker.Fail("one", "a.bin", "boom")
	tracker.Write("two", progress.Record{Status: progress.StatusComplete, Percentage: 100})

	rec, ok := tracker.Read("one")
	if !ok || rec.Status != progress.StatusError || rec.Message != "boom" || !rec.Terminal() {
		t.Fatalf("unexpected failure record %+v", rec)
	}
	if removed := tracker.PurgeAll(); removed != 2 {
		t.Fatalf("PurgeAll removed %d, want 2", removed)
	}
	if _, ok := tracker.Read("two"); ok {
		t.Fatal("expected record purged")
	}
}

func TestAge(t *testing.T) {
	now := time.Unix(1_700_000_020, 0)
	rec := progress.Record{LastUpdate: 1_700_000_000}
	if got := rec.Age(now); got != 20*time.Second {
		t.Fatalf("Age = %v", got)
	}
}
