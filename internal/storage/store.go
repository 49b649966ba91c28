package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"courier/internal/logging"
)

const (
	documentExt = ".json"
	lockExt     = ".json.lock"
)

// ErrInvalidKey reports a key that cannot be mapped to a file name.
var ErrInvalidKey = errors.New("invalid storage key")

// Store maps keys to JSON files under a single directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// Open prepares the storage directory and returns a store rooted there.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logging.NewComponentLogger(logger, "storage"),
	}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the document path backing key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+documentExt)
}

// LockPath returns the lock file path guarding key.
func (s *Store) LockPath(key string) string {
	return filepath.Join(s.dir, key+lockExt)
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" || key != filepath.Base(key) || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Get decodes the document stored under key into a T. Any failure, including
// a missing document, returns def.
func Get[T any](s *Store, key string, def T) T {
	if s == nil {
		return def
	}
	data, ok := s.readLocked(key)
	if !ok {
		return def
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		s.logger.Debug("storage document unparsable; using default",
			logging.String("key", key),
			logging.Error(err),
		)
		return def
	}
	return value
}

// Set replaces the document stored under key. Failures are logged and
// otherwise ignored.
func Set(s *Store, key string, value any) {
	if s == nil {
		return
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		s.warn("encode storage document failed", key, err)
		return
	}
	lock, ok := s.lockExclusive(key)
	if !ok {
		return
	}
	defer s.unlock(lock, key)
	if err := s.writeDocument(key, data); err != nil {
		s.warn("write storage document failed", key, err)
	}
}

// Update performs a read-modify-write of key under a single exclusive lock.
// The current value (or def) is passed to fn; the returned value is written
// back. Update reports whether the write reached disk.
func Update[T any](s *Store, key string, def T, fn func(T) T) bool {
	if s == nil || fn == nil {
		return false
	}
	lock, ok := s.lockExclusive(key)
	if !ok {
		return false
	}
	defer s.unlock(lock, key)

	current := def
	if data, err := os.ReadFile(s.Path(key)); err == nil && len(bytes.TrimSpace(data)) > 0 {
		var decoded T
		if err := json.Unmarshal(data, &decoded); err == nil {
			current = decoded
		}
	}

	next := fn(current)
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		s.warn("encode storage document failed", key, err)
		return false
	}
	if err := s.writeDocument(key, data); err != nil {
		s.warn("write storage document failed", key, err)
		return false
	}
	return true
}

// Delete removes the document stored under key. The lock file is left in
// place so concurrent lockers keep contending on the same inode.
func (s *Store) Delete(key string) {
	if s == nil {
		return
	}
	lock, ok := s.lockExclusive(key)
	if !ok {
		return
	}
	defer s.unlock(lock, key)
	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.warn("delete storage document failed", key, err)
	}
}

// DeletePrefix removes every document whose key starts with prefix and
// returns how many were removed.
func (s *Store) DeletePrefix(prefix string) int {
	removed := 0
	for _, key := range s.Keys(prefix) {
		if _, err := os.Stat(s.Path(key)); err != nil {
			continue
		}
		s.Delete(key)
		if _, err := os.Stat(s.Path(key)); errors.Is(err, os.ErrNotExist) {
			removed++
		}
	}
	return removed
}

// Keys lists stored keys beginning with prefix, sorted.
func (s *Store) Keys(prefix string) []string {
	if s == nil {
		return nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("list storage directory failed",
			logging.String("dir", s.dir),
			logging.Error(err),
		)
		return nil
	}
	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, documentExt) {
			continue
		}
		key := strings.TrimSuffix(name, documentExt)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) readLocked(key string) ([]byte, bool) {
	if err := validateKey(key); err != nil {
		s.warn("read storage document failed", key, err)
		return nil, false
	}
	path := s.Path(key)
	if _, err := os.Stat(path); err != nil {
		return nil, false
	}

	lock := flock.New(s.LockPath(key))
	if err := lock.RLock(); err != nil {
		s.warn("acquire shared storage lock failed", key, err)
		return nil, false
	}
	defer s.unlock(lock, key)

	file, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.warn("open storage document failed", key, err)
		}
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.warn("read storage document failed", key, err)
		return nil, false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, false
	}
	return data, true
}

func (s *Store) lockExclusive(key string) (*flock.Flock, bool) {
	if err := validateKey(key); err != nil {
		s.warn("lock storage document failed", key, err)
		return nil, false
	}
	lock := flock.New(s.LockPath(key))
	if err := lock.Lock(); err != nil {
		s.warn("acquire exclusive storage lock failed", key, err)
		return nil, false
	}
	return lock, true
}

func (s *Store) unlock(lock *flock.Flock, key string) {
	if err := lock.Unlock(); err != nil {
		s.logger.Debug("release storage lock failed",
			logging.String("key", key),
			logging.Error(err),
		)
	}
}

func (s *Store) writeDocument(key string, data []byte) error {
	file, err := os.OpenFile(s.Path(key), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func (s *Store) warn(msg, key string, err error) {
	logging.WarnWithContext(s.logger, msg, "storage_io_failed",
		logging.String("key", key),
		logging.Error(err),
		logging.String(logging.FieldErrorKind, "transient_store"),
	)
}
