package testsupport

import (
	"testing"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/storage"
)

// MustOpenStore opens the storage directory named by cfg for tests.
func MustOpenStore(t testing.TB, cfg *config.Config) *storage.Store {
	t.Helper()

	store, err := storage.Open(cfg.Paths.StorageDir, logging.NewNop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	return store
}
