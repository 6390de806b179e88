// Package session provides the file-backed session lock store. Each user has
// one JSON lock file in a shared directory; writes are atomic renames guarded
// by a cross-process flock so several quickcheck processes on one machine can
// share the directory.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/Iron-Ham/quickcheck/internal/draft"
	"github.com/Iron-Ham/quickcheck/internal/errors"
	"github.com/Iron-Ham/quickcheck/internal/logging"
)

const (
	// GuardFileName is the flock target inside the lock directory.
	GuardFileName = ".quickcheck.lock"
	// LockFileExt is the extension of per-user lock files.
	LockFileExt = ".json"

	guardRetryDelay = 10 * time.Millisecond
)

// plainUserID matches user IDs that can be used as file names directly.
var plainUserID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// FileLockStore is a draft.LockStore keeping one JSON file per user.
type FileLockStore struct {
	dir    string
	guard  *flock.Flock
	logger *logging.Logger

	// mu serializes access within the process; the flock covers other
	// processes.
	mu sync.Mutex
}

var _ draft.LockStore = (*FileLockStore)(nil)

// NewFileLockStore creates a FileLockStore rooted at dir, creating the
// directory if needed. The logger may be nil.
func NewFileLockStore(dir string, logger *logging.Logger) (*FileLockStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewLockError("failed to create lock directory", err).WithPath(dir)
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &FileLockStore{
		dir:    dir,
		guard:  flock.New(filepath.Join(dir, GuardFileName)),
		logger: logger.WithComponent("lockstore"),
	}, nil
}

// Dir returns the lock directory.
func (s *FileLockStore) Dir() string { return s.dir }

// Path returns the lock file path for userID. IDs that are not safe file
// names are hashed.
func (s *FileLockStore) Path(userID string) string {
	return filepath.Join(s.dir, lockFileName(userID))
}

func lockFileName(userID string) string {
	if plainUserID.MatchString(userID) {
		return userID + LockFileExt
	}
	sum := sha256.Sum256([]byte(userID))
	return "u-" + hex.EncodeToString(sum[:16]) + LockFileExt
}

// Load returns the user's lock, or nil if there is none. A file that cannot
// be parsed yields an error matching errors.ErrLockCorrupted.
func (s *FileLockStore) Load(ctx context.Context, userID string) (*draft.SessionLock, error) {
	var lock *draft.SessionLock
	err := s.withGuard(ctx, true, func() error {
		var err error
		lock, err = readLockFile(s.Path(userID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// Save replaces the lock for lock.OwnerUserID.
func (s *FileLockStore) Save(ctx context.Context, lock *draft.SessionLock) error {
	if lock == nil || lock.OwnerUserID == "" {
		return errors.NewLockError("lock has no owner", errors.ErrInvalidInput)
	}
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock: %w", err)
	}
	path := s.Path(lock.OwnerUserID)
	err = s.withGuard(ctx, false, func() error {
		return atomicWriteFile(path, data, 0o644)
	})
	if err != nil {
		return errors.NewLockError("failed to write lock", err).WithUserID(lock.OwnerUserID).WithPath(path)
	}
	s.logger.WithUser(lock.OwnerUserID).Debug("session lock written", "draft_id", lock.DraftID)
	return nil
}

// Delete removes the user's lock file. A missing file is not an error.
func (s *FileLockStore) Delete(ctx context.Context, userID string) error {
	path := s.Path(userID)
	err := s.withGuard(ctx, false, func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	})
	if err != nil {
		return errors.NewLockError("failed to delete lock", err).WithUserID(userID).WithPath(path)
	}
	s.logger.WithUser(userID).Debug("session lock removed")
	return nil
}

// withGuard runs fn holding the in-process mutex and the directory flock,
// shared when read is true.
func (s *FileLockStore) withGuard(ctx context.Context, read bool, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		ok  bool
		err error
	)
	if read {
		ok, err = s.guard.TryRLockContext(ctx, guardRetryDelay)
	} else {
		ok, err = s.guard.TryLockContext(ctx, guardRetryDelay)
	}
	if err != nil {
		return fmt.Errorf("failed to acquire lock directory guard: %w", err)
	}
	if !ok {
		return errors.ErrTimeout
	}
	defer func() {
		if err := s.guard.Unlock(); err != nil {
			s.logger.Warn("failed to release lock directory guard", "error", err)
		}
	}()
	return fn()
}

// readLockFile reads one lock file. A missing file returns nil, nil.
func readLockFile(path string) (*draft.SessionLock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewLockError("failed to read lock", err).WithPath(path)
	}
	var lock draft.SessionLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, errors.NewLockError("failed to parse lock", fmt.Errorf("%w: %v", errors.ErrLockCorrupted, err)).WithPath(path)
	}
	return &lock, nil
}

// atomicWriteFile writes data to a file atomically by writing to a temporary
// file first, then renaming. This ensures the target file is never in a
// partially-written state.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
