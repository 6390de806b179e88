package session

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Iron-Ham/quickcheck/internal/draft"
)

// List returns every readable lock in the directory, ordered by user ID.
// Files that cannot be parsed are skipped.
func (s *FileLockStore) List(ctx context.Context) ([]draft.SessionLock, error) {
	var locks []draft.SessionLock
	err := s.withGuard(ctx, true, func() error {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		for _, entry := range entries {
			if !isLockFile(entry) {
				continue
			}
			lock, err := readLockFile(filepath.Join(s.dir, entry.Name()))
			if err != nil || lock == nil {
				s.logger.Debug("skipping unreadable lock file", "file", entry.Name(), "error", err)
				continue
			}
			locks = append(locks, *lock)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(locks, func(a, b draft.SessionLock) int {
		return strings.Compare(a.OwnerUserID, b.OwnerUserID)
	})
	return locks, nil
}

// LockedDrafts maps draft IDs to the user whose lock names them.
func (s *FileLockStore) LockedDrafts(ctx context.Context) (map[string]string, error) {
	locks, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(locks))
	for _, lock := range locks {
		if lock.DraftID != "" {
			out[lock.DraftID] = lock.OwnerUserID
		}
	}
	return out, nil
}

// Prune deletes every lock naming one of draftIDs and returns the affected
// user IDs. It is used after drafts are finished outside a session.
func (s *FileLockStore) Prune(ctx context.Context, draftIDs ...string) ([]string, error) {
	if len(draftIDs) == 0 {
		return nil, nil
	}
	locks, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var pruned []string
	for _, lock := range locks {
		if !slices.Contains(draftIDs, lock.DraftID) {
			continue
		}
		if err := s.Delete(ctx, lock.OwnerUserID); err != nil {
			return pruned, err
		}
		s.logger.WithUser(lock.OwnerUserID).Info("pruned lock for finished draft", "draft_id", lock.DraftID)
		pruned = append(pruned, lock.OwnerUserID)
	}
	return pruned, nil
}

func isLockFile(entry os.DirEntry) bool {
	name := entry.Name()
	return !entry.IsDir() &&
		!strings.HasPrefix(name, ".") &&
		strings.HasSuffix(name, LockFileExt)
}
