package draft_test

import (
	"context"
	"testing"
	"time"

	"github.com/Iron-Ham/quickcheck/internal/draft"
	"github.com/Iron-Ham/quickcheck/internal/draft/drafttest"
	"github.com/Iron-Ham/quickcheck/internal/errors"
)

func TestRegistry_AcquireAndOwns(t *testing.T) {
	ctx := context.Background()
	clock := drafttest.NewFakeClock(t0)
	store := draft.NewMemoryLockStore()
	a := draft.NewRegistry(store, testUser, clock)
	b := draft.NewRegistry(store, testUser, clock)

	if a.Token() == "" || a.Token() == b.Token() {
		t.Fatalf("tokens %q and %q should be distinct and non-empty", a.Token(), b.Token())
	}

	lock, err := a.Acquire(ctx, "d-1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if lock.OwnerUserID != testUser || lock.DraftID != "d-1" || !lock.AcquiredAt.Equal(t0) {
		t.Errorf("lock = %+v", lock)
	}

	tests := []struct {
		name    string
		reg     *draft.Registry
		draftID string
		want    bool
	}{
		{"owner same draft", a, "d-1", true},
		{"owner other draft", a, "d-2", false},
		{"other session same draft", b, "d-1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.reg.Owns(ctx, tt.draftID)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Owns(%q) = %v, want %v", tt.draftID, got, tt.want)
			}
		})
	}

	// Overwrite by the second session.
	if _, err := b.Acquire(ctx, "d-1"); err != nil {
		t.Fatal(err)
	}
	if owns, _ := a.Owns(ctx, "d-1"); owns {
		t.Error("first session should lose ownership after overwrite")
	}
}

func TestRegistry_ReleaseMissingIsNoError(t *testing.T) {
	ctx := context.Background()
	reg := draft.NewRegistry(draft.NewMemoryLockStore(), testUser, nil)

	if err := reg.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	lock, err := reg.Read(ctx)
	if err != nil || lock != nil {
		t.Errorf("Read() = %+v, %v, want nil, nil", lock, err)
	}
}

func TestMemoryLockStore_RejectsOwnerless(t *testing.T) {
	store := draft.NewMemoryLockStore()
	err := store.Save(context.Background(), &draft.SessionLock{DraftID: "d-1"})
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Save() error = %v, want ErrInvalidInput", err)
	}
}

func TestMemoryLockStore_IsolatesUsers(t *testing.T) {
	ctx := context.Background()
	store := draft.NewMemoryLockStore()
	clock := drafttest.NewFakeClock(t0)

	if _, err := draft.NewRegistry(store, "alice", clock).Acquire(ctx, "d-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := draft.NewRegistry(store, "bob", clock).Acquire(ctx, "d-b"); err != nil {
		t.Fatal(err)
	}

	lock, _ := store.Load(ctx, "alice")
	if lock == nil || lock.DraftID != "d-a" {
		t.Errorf("alice lock = %+v", lock)
	}
	if err := store.Delete(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if lock, _ := store.Load(ctx, "bob"); lock == nil {
		t.Error("deleting alice's lock must not touch bob's")
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		status   draft.Status
		name     string
		inFlight bool
	}{
		{draft.StatusIdle, "idle", false},
		{draft.StatusCreating, "creating", true},
		{draft.StatusUpdating, "updating", true},
		{draft.StatusError, "error", false},
		{draft.Status(42), "unknown", false},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
		if got := tt.status.InFlight(); got != tt.inFlight {
			t.Errorf("%s.InFlight() = %v, want %v", tt.name, got, tt.inFlight)
		}
	}
}

func TestParseCancelAction(t *testing.T) {
	for _, s := range []string{"delete", "archive"} {
		if got, err := draft.ParseCancelAction(s); err != nil || string(got) != s {
			t.Errorf("ParseCancelAction(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := draft.ParseCancelAction("discard"); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("ParseCancelAction(discard) error = %v, want ErrInvalidInput", err)
	}
}

func TestActiveDraftError(t *testing.T) {
	err := error(&draft.ActiveDraftError{UserID: "u", DraftID: "d-1"})
	if !errors.Is(err, errors.ErrActiveDraftExists) {
		t.Error("ActiveDraftError should match ErrActiveDraftExists")
	}
	var active *draft.ActiveDraftError
	if !errors.As(errors.Wrap(err, "create"), &active) || active.DraftID != "d-1" {
		t.Errorf("As() = %+v", active)
	}
}

var _ draft.Clock = (*drafttest.FakeClock)(nil)

func TestFakeClock_StoppedTimerDoesNotFire(t *testing.T) {
	clock := drafttest.NewFakeClock(t0)
	fired := 0
	timer := clock.AfterFunc(time.Second, func() { fired++ })
	if !timer.Stop() {
		t.Error("Stop() on an armed timer should return true")
	}
	clock.Advance(2 * time.Second)
	if fired != 0 {
		t.Errorf("fired = %d, want 0", fired)
	}
	if timer.Stop() {
		t.Error("second Stop() should return false")
	}
}
