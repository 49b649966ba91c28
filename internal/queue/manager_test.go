package queue_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"courier/internal/logging"
	"courier/internal/mediatype"
	"courier/internal/progress"
	"courier/internal/queue"
	"courier/internal/storage"
	"courier/internal/testsupport"
)

type countingLauncher struct {
	calls atomic.Int32
	err   error
}

func (l *countingLauncher) Launch(context.Context) error {
	l.calls.Add(1)
	return l.err
}

func newManager(t *testing.T, opts ...testsupport.ConfigOption) (*queue.Manager, *countingLauncher, *testsupport.Clock) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	launcher := &countingLauncher{}
	clock := testsupport.NewClock(time.Unix(1_700_000_000, 0))

	options := queue.OptionsFromConfig(cfg)
	options.Launcher = launcher
	options.Logger = logging.NewNop()
	options.Now = clock.Now
	return queue.NewManager(store, options), launcher, clock
}

func TestEnqueuePopIsFIFO(t *testing.T) {
	mgr, _, _ := newManager(t)
	ctx := context.Background()

	a, err := mgr.Enqueue(ctx, queue.NewTransfer("https://example.test/a", "a.mkv", "/data", false), mediatype.Default)
	if err != nil {
		t.Fatalf("Enqueue A: %v", err)
	}
	b, err := mgr.Enqueue(ctx, queue.NewTransfer("https://example.test/b", "b.mkv", "/data", false), mediatype.Default)
	if err != nil {
		t.Fatalf("Enqueue B: %v", err)
	}

	first, ok := mgr.Pop(ctx)
	if !ok || first.DownloadID != a.DownloadID {
		t.Fatalf("first pop = %+v, want %s", first, a.DownloadID)
	}
	second, ok := mgr.Pop(ctx)
	if !ok || second.DownloadID != b.DownloadID {
		t.Fatalf("second pop = %+v, want %s", second, b.DownloadID)
	}
	if _, ok := mgr.Pop(ctx); ok {
		t.Fatal("expected empty queue")
	}
}

func TestEnqueueAssignsIdentityAndMediaType(t *testing.T) {
	mgr, _, clock := newManager(t)
	ctx := context.Background()

	item, err := mgr.Enqueue(ctx, queue.NewTransfer("https://example.test/x", "novel.epub", "/books", false), mediatype.Default)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if item.DownloadID == "" {
		t.Fatal("expected download id")
	}
	if item.EnqueuedAt != clock.Now().Unix() {
		t.Fatalf("EnqueuedAt = %d", item.EnqueuedAt)
	}
	if item.MediaType != mediatype.Ebook {
		t.Fatalf("MediaType = %q, want ebook", item.MediaType)
	}

	explicit, err := mgr.Enqueue(ctx, queue.NewTransfer("https://example.test/y", "clip.mp4", "/v", false), mediatype.Archive)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if explicit.MediaType != mediatype.Archive {
		t.Fatalf("explicit hint not kept: %q", explicit.MediaType)
	}

	tracks, err := mgr.Enqueue(ctx, queue.NewMultiTrack("https://music.test/album/1", "Album", "/music", nil), mediatype.Default)
	if err != nil {
		t.Fatalf("Enqueue multitrack: %v", err)
	}
	if tracks.MediaType != mediatype.Audio {
		t.Fatalf("multitrack media type = %q", tracks.MediaType)
	}
}

func TestEnqueueRejectsMismatchedPayload(t *testing.T) {
	mgr, launcher, _ := newManager(t)
	item := queue.NewTransfer("https://example.test/a", "a.bin", "/d", false)
	item.MultiTrack = &queue.MultiTrackSpec{}
	if _, err := mgr.Enqueue(context.Background(), item, ""); err == nil {
		t.Fatal("expected validation error")
	}
	if mgr.Len() != 0 || launcher.calls.Load() != 0 {
		t.Fatal("invalid item must not be queued or spawn a worker")
	}
}

func TestTriggerWorkerSpawnsOnceWithinAliveWindow(t *testing.T) {
	mgr, launcher, clock := newManager(t)
	ctx := context.Background()

	if _, err := mgr.Enqueue(ctx, queue.NewTransfer("https://example.test/a", "a.bin", "/d", false), ""); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if launcher.calls.Load() != 1 {
		t.Fatalf("expected first enqueue to spawn, got %d", launcher.calls.Load())
	}

	clock.Advance(3 * time.Second)
	spawned, err := mgr.TriggerWorker(ctx)
	if err != nil {
		t.Fatalf("TriggerWorker: %v", err)
	}
	if spawned || launcher.calls.Load() != 1 {
		t.Fatalf("expected no second spawn within alive window, calls=%d", launcher.calls.Load())
	}

	clock.Advance(20 * time.Second)
	spawned, err = mgr.TriggerWorker(ctx)
	if err != nil {
		t.Fatalf("TriggerWorker: %v", err)
	}
	if !spawned || launcher.calls.Load() != 2 {
		t.Fatalf("expected spawn after window elapsed, calls=%d", launcher.calls.Load())
	}
}

func TestTriggerWorkerSkipsWhenHeartbeatFresh(t *testing.T) {
	mgr, launcher, clock := newManager(t)
	ctx := context.Background()
	mgr.Beat()
	clock.Advance(5 * time.Second)

	if _, err := mgr.Enqueue(ctx, queue.NewTransfer("https://example.test/a", "a.bin", "/d", false), ""); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if launcher.calls.Load() != 0 {
		t.Fatalf("expected live worker to suppress spawn, calls=%d", launcher.calls.Load())
	}
}

func TestTriggerWorkerYieldsToHeldSpawnLock(t *testing.T) {
	mgr, launcher, _ := newManager(t)
	ctx := context.Background()

	held := flock.New(filepath.Join(mgr.Store().Dir(), "worker_spawn.lock"))
	if err := held.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := mgr.Enqueue(ctx, queue.NewTransfer("https://example.test/a", "a.bin", "/d", false), ""); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if launcher.calls.Load() != 0 {
		t.Fatalf("expected held spawn lock to suppress launch, calls=%d", launcher.calls.Load())
	}

	if err := held.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	spawned, err := mgr.TriggerWorker(ctx)
	if err != nil || !spawned || launcher.calls.Load() != 1 {
		t.Fatalf("spawned=%v err=%v calls=%d", spawned, err, launcher.calls.Load())
	}
}

func TestTriggerWorkerEmptyQueueNeverSpawns(t *testing.T) {
	mgr, launcher, _ := newManager(t)
	spawned, err := mgr.TriggerWorker(context.Background())
	if err != nil || spawned || launcher.calls.Load() != 0 {
		t.Fatalf("spawned=%v err=%v calls=%d", spawned, err, launcher.calls.Load())
	}
}

func TestTriggerWorkerLaunchFailureClearsStamp(t *testing.T) {
	mgr, launcher, _ := newManager(t)
	launcher.err = errors.New("exec failed")
	ctx := context.Background()

	if _, err := mgr.Enqueue(ctx, queue.NewTransfer("https://example.test/a", "a.bin", "/d", false), ""); err != nil {
		t.Fatalf("Enqueue should succeed even when spawn fails: %v", err)
	}
	launcher.err = nil
	spawned, err := mgr.TriggerWorker(ctx)
	if err != nil || !spawned {
		t.Fatalf("expected retry to spawn immediately, spawned=%v err=%v", spawned, err)
	}
}

func TestResetHeartbeatAllowsImmediateRespawn(t *testing.T) {
	mgr, launcher, clock := newManager(t)
	ctx := context.Background()

	if _, err := mgr.Enqueue(ctx, queue.NewTransfer("https://example.test/a", "a.bin", "/d", false), ""); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	mgr.Pop(ctx)
	mgr.ResetHeartbeat()
	clock.Advance(time.Second)

	if _, err := mgr.Enqueue(ctx, queue.NewTransfer("https://example.test/b", "b.bin", "/d", false), ""); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if launcher.calls.Load() != 2 {
		t.Fatalf("expected drained worker to allow respawn, calls=%d", launcher.calls.Load())
	}
}

func TestActiveTaskGhostDetection(t *testing.T) {
	mgr, _, clock := newManager(t)

	transfer := queue.NewTransfer("https://example.test/a", "a.bin", "/d", false)
	transfer.DownloadID = "t1"
	mgr.SetActiveTask(transfer)
	mgr.Beat()

	if got, ok := mgr.ActiveTask(); !ok || got.DownloadID != "t1" {
		t.Fatalf("expected active task, got %+v", got)
	}

	clock.Advance(61 * time.Second)
	if _, ok := mgr.ActiveTask(); ok {
		t.Fatal("expected transfer ghost after 61s")
	}

	multi := queue.NewMultiTrack("https://music.test/a", "Album", "/m", nil)
	multi.DownloadID = "m1"
	mgr.SetActiveTask(multi)
	if got, ok := mgr.ActiveTask(); !ok || got.DownloadID != "m1" {
		t.Fatal("expected multitrack task to survive 61s heartbeat age")
	}
	clock.Advance(900 * time.Second)
	if _, ok := mgr.ActiveTask(); ok {
		t.Fatal("expected multitrack ghost after 961s")
	}
}

func TestActiveTaskIdleHeartbeatIsGhost(t *testing.T) {
	mgr, _, _ := newManager(t)
	item := queue.NewTransfer("https://example.test/a", "a.bin", "/d", false)
	mgr.SetActiveTask(item)
	mgr.ResetHeartbeat()
	if _, ok := mgr.ActiveTask(); ok {
		t.Fatal("expected idle heartbeat to void the active marker")
	}
	mgr.ClearActiveTask()
	if _, ok := mgr.ActiveTask(); ok {
		t.Fatal("expected cleared marker")
	}
}

func TestRecordHistoryRetention(t *testing.T) {
	mgr, _, _ := newManager(t, testsupport.WithHistoryLimit(100))
	for i := 0; i < 105; i++ {
		item := queue.NewTransfer("https://example.test/f", fmt.Sprintf("file-%03d.bin", i), "/d", false)
		item.DownloadID = fmt.Sprintf("id-%03d", i)
		mgr.RecordHistory(item, queue.OutcomeSuccess, 1, queue.Stats{})
	}

	entries := mgr.History()
	if len(entries) != 100 {
		t.Fatalf("history length = %d, want 100", len(entries))
	}
	if entries[0].DownloadID != "id-104" {
		t.Fatalf("newest entry = %s", entries[0].DownloadID)
	}
	if entries[99].DownloadID != "id-005" {
		t.Fatalf("oldest retained entry = %s, want id-005", entries[99].DownloadID)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].DownloadID <= entries[i].DownloadID {
			t.Fatalf("order not preserved at %d: %s then %s", i, entries[i-1].DownloadID, entries[i].DownloadID)
		}
	}
}

func TestRecordHistoryRetentionFloor(t *testing.T) {
	mgr, _, _ := newManager(t, testsupport.WithHistoryLimit(2))
	for i := 0; i < 15; i++ {
		mgr.RecordHistory(queue.NewTransfer("u", fmt.Sprintf("f%d", i), "/d", false), queue.OutcomeError, 0, queue.Stats{})
	}
	if got := len(mgr.History()); got != 10 {
		t.Fatalf("history length = %d, want floor of 10", got)
	}
}

func TestRecordHistoryFieldsAndLookup(t *testing.T) {
	mgr, _, clock := newManager(t)
	item := queue.NewTransfer("https://example.test/a", "photo.PNG", "/pics", false)
	item.DownloadID = "abc"
	entry := mgr.RecordHistory(item, queue.OutcomeSuccess, 1, queue.Stats{Size: 42, Speed: "1 KB/s", Duration: 0.5})

	if entry.MediaType != mediatype.Photo {
		t.Fatalf("media type = %q", entry.MediaType)
	}
	if entry.Date != clock.Now().Format(queue.HistoryDateLayout) {
		t.Fatalf("date = %q", entry.Date)
	}
	if !mgr.IsDownloaded("photo.PNG") || mgr.IsDownloaded("other.png") {
		t.Fatal("IsDownloaded mismatch")
	}

	page, total := mgr.HistoryPage(1, 10)
	if total != 1 || len(page) != 1 || page[0].Size != 42 {
		t.Fatalf("page = %+v total=%d", page, total)
	}
	if page, _ := mgr.HistoryPage(2, 10); len(page) != 0 {
		t.Fatalf("expected empty second page, got %d", len(page))
	}

	mgr.ClearHistory()
	if len(mgr.History()) != 0 {
		t.Fatal("expected cleared history")
	}
}

func TestRemoveFromQueueRecordsCanceled(t *testing.T) {
	mgr, _, _ := newManager(t)
	ctx := context.Background()
	var ids []string
	for _, name := range []string{"a.bin", "b.bin", "c.bin"} {
		item, err := mgr.Enqueue(ctx, queue.NewTransfer("https://example.test/"+name, name, "/d", false), "")
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		ids = append(ids, item.DownloadID)
	}

	removed, err := mgr.RemoveFromQueue(1)
	if err != nil {
		t.Fatalf("RemoveFromQueue: %v", err)
	}
	if removed.DownloadID != ids[1] {
		t.Fatalf("removed %s, want %s", removed.DownloadID, ids[1])
	}
	remaining := mgr.List()
	if len(remaining) != 2 || remaining[0].DownloadID != ids[0] || remaining[1].DownloadID != ids[2] {
		t.Fatalf("unexpected remaining queue %+v", remaining)
	}
	history := mgr.History()
	if len(history) != 1 || history[0].Status != queue.OutcomeCanceled {
		t.Fatalf("expected canceled history, got %+v", history)
	}

	if _, err := mgr.RemoveFromQueue(5); !errors.Is(err, queue.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestRemoveFromQueueReportsPersistenceFailure(t *testing.T) {
	mgr, _, _ := newManager(t)
	if _, err := mgr.Enqueue(context.Background(), queue.NewTransfer("https://example.test/a", "a.bin", "/d", false), ""); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	lockPath := mgr.Store().LockPath(queue.KeyQueue)
	if err := os.Remove(lockPath); err != nil {
		t.Fatalf("remove lock file: %v", err)
	}
	if err := os.Mkdir(lockPath, 0o755); err != nil {
		t.Fatalf("replace lock file: %v", err)
	}

	_, err := mgr.RemoveFromQueue(0)
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if errors.Is(err, queue.ErrIndexOutOfRange) {
		t.Fatalf("lock failure reported as index error: %v", err)
	}
	if len(mgr.History()) != 0 {
		t.Fatalf("expected no history entry, got %+v", mgr.History())
	}
}

func TestPurgeQueueResetsState(t *testing.T) {
	mgr, _, _ := newManager(t)
	ctx := context.Background()
	for _, name := range []string{"a.bin", "b.bin"} {
		if _, err := mgr.Enqueue(ctx, queue.NewTransfer("https://example.test/"+name, name, "/d", false), ""); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	active := queue.NewTransfer("https://example.test/z", "z.bin", "/d", false)
	mgr.SetActiveTask(active)
	mgr.Beat()
	mgr.Progress().Write("z", progress.Record{Status: progress.StatusDownloading})

	count, err := mgr.PurgeQueue()
	if err != nil {
		t.Fatalf("PurgeQueue: %v", err)
	}
	if count != 2 {
		t.Fatalf("purged %d, want 2", count)
	}
	if mgr.Len() != 0 {
		t.Fatal("expected empty queue")
	}
	if storage.Get[*queue.Item](mgr.Store(), queue.KeyActiveTask, nil) != nil {
		t.Fatal("expected active marker cleared")
	}
	if mgr.Heartbeat() != queue.IdleHeartbeat {
		t.Fatalf("heartbeat = %d, want idle", mgr.Heartbeat())
	}
	if _, ok := mgr.Progress().Read("z"); ok {
		t.Fatal("expected progress purged")
	}
	history := mgr.History()
	if len(history) != 2 || history[0].Status != queue.OutcomeCanceled || history[1].Status != queue.OutcomeCanceled {
		t.Fatalf("expected two canceled entries, got %+v", history)
	}
}

func TestSnapshotReportsWorkerAlive(t *testing.T) {
	mgr, _, clock := newManager(t)
	if mgr.Snapshot().WorkerAlive {
		t.Fatal("expected idle worker")
	}
	mgr.Beat()
	clock.Advance(2 * time.Second)
	snap := mgr.Snapshot()
	if !snap.WorkerAlive || snap.HeartbeatAge != 2*time.Second {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
