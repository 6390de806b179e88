// Package testutil provides fixtures shared by quickcheck tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Iron-Ham/quickcheck/internal/draft"
	"github.com/Iron-Ham/quickcheck/internal/quickcheck"
	"github.com/Iron-Ham/quickcheck/internal/session"
	"github.com/Iron-Ham/quickcheck/internal/store"
)

// OpenStore opens a SQLite draft store in a temporary directory. Fields set
// in opts are kept; an empty DSN is replaced with a fresh database file.
// The store is closed when the test completes.
func OpenStore(t *testing.T, opts store.Options) *store.Store {
	t.Helper()

	if opts.Driver == "" {
		opts.Driver = store.DriverSQLite
	}
	if opts.DSN == "" {
		opts.DSN = filepath.Join(t.TempDir(), "drafts.db")
	}
	st, err := store.Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("failed to open draft store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// OpenLocks creates a lock directory store in a temporary directory.
func OpenLocks(t *testing.T) *session.FileLockStore {
	t.Helper()

	locks, err := session.NewFileLockStore(filepath.Join(t.TempDir(), "locks"), nil)
	if err != nil {
		t.Fatalf("failed to create lock store: %v", err)
	}
	return locks
}

// SeedDraft stores form as a new unfinished draft for userID and returns its
// ID.
func SeedDraft(t *testing.T, backend draft.Backend, userID string, form quickcheck.Form) string {
	t.Helper()

	conv := quickcheck.Converter{}
	payload, err := conv.ToWire(form)
	if err != nil {
		t.Fatalf("failed to encode form: %v", err)
	}
	id, err := backend.Create(context.Background(), userID, conv.Title(form), payload)
	if err != nil {
		t.Fatalf("failed to seed draft for %s: %v", userID, err)
	}
	return id
}

// HoldLock records that userID's session is editing draftID, as an editor
// would after recovery.
func HoldLock(t *testing.T, locks draft.LockStore, userID, draftID string) *draft.Registry {
	t.Helper()

	reg := draft.NewRegistry(locks, userID, nil)
	if _, err := reg.Acquire(context.Background(), draftID); err != nil {
		t.Fatalf("failed to acquire lock for %s: %v", userID, err)
	}
	return reg
}
