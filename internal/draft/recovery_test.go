package draft_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/quickcheck/internal/draft"
	"github.com/Iron-Ham/quickcheck/internal/draft/drafttest"
	"github.com/Iron-Ham/quickcheck/internal/errors"
	"github.com/Iron-Ham/quickcheck/internal/event"
)

func (h *harness) recoveredSource() event.RecoverySource {
	h.t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.events) - 1; i >= 0; i-- {
		if e, ok := h.events[i].(event.DraftRecoveredEvent); ok {
			return e.Source
		}
	}
	h.t.Fatal("no draft.recovered event published")
	return ""
}

func (h *harness) putDraft(id string, form drafttest.Form, updated time.Time) {
	h.t.Helper()
	h.backend.Put(draft.Record{
		ID:        id,
		UserID:    testUser,
		Title:     form.Name,
		Payload:   []byte(wire(h.t, form)),
		CreatedAt: updated,
		UpdatedAt: updated,
	})
}

func (h *harness) initialize(opts draft.InitOptions[drafttest.Form]) drafttest.Form {
	h.t.Helper()
	form, err := h.coord.Initialize(context.Background(), opts)
	if err != nil {
		h.t.Fatalf("Initialize() error = %v", err)
	}
	if !h.coord.State().Initialized {
		h.t.Error("Initialized should be true after Initialize returns")
	}
	return form
}

func TestInitialize_ExplicitIDWinsOverLock(t *testing.T) {
	h := newHarness(t)
	h.putDraft("d-locked", drafttest.NewForm("Locked"), t0.Add(-time.Hour))
	h.putDraft("d-linked", drafttest.NewForm("Linked"), t0.Add(-2*time.Hour))
	if _, err := draft.NewRegistry(h.store, testUser, h.clock).Acquire(context.Background(), "d-locked"); err != nil {
		t.Fatal(err)
	}

	form := h.initialize(draft.InitOptions[drafttest.Form]{DraftID: "d-linked"})

	if form.Name != "Linked" {
		t.Errorf("form = %+v, want the linked draft", form)
	}
	if lock := h.lock(); lock.DraftID != "d-linked" || lock.SessionToken != h.coord.SessionToken() {
		t.Errorf("lock = %+v, want d-linked owned by this session", lock)
	}
	if got := h.recoveredSource(); got != event.RecoveredFromExplicitID {
		t.Errorf("source = %s, want %s", got, event.RecoveredFromExplicitID)
	}
}

func TestInitialize_ExplicitIDMissing(t *testing.T) {
	h := newHarness(t)

	_, err := h.coord.Initialize(context.Background(), draft.InitOptions[drafttest.Form]{DraftID: "gone"})
	if !errors.Is(err, draft.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	st := h.coord.State()
	if !st.Initialized || st.Status != draft.StatusError {
		t.Errorf("state = %+v, want initialized error", st)
	}
	if got := h.backend.Calls(drafttest.OpCreate); got != 0 {
		t.Errorf("create calls = %d, want 0", got)
	}
}

func TestInitialize_ResumesFromLock(t *testing.T) {
	h := newHarness(t)
	h.putDraft("d-newer", drafttest.NewForm("Newer"), t0)
	h.putDraft("d-locked", drafttest.NewForm("Locked", "plate", "L1"), t0.Add(-time.Hour))
	if _, err := draft.NewRegistry(h.store, testUser, h.clock).Acquire(context.Background(), "d-locked"); err != nil {
		t.Fatal(err)
	}

	form := h.initialize(draft.InitOptions[drafttest.Form]{})

	if form.Name != "Locked" || form.Fields["plate"] != "L1" {
		t.Errorf("form = %+v, want the locked draft", form)
	}
	if got := h.recoveredSource(); got != event.RecoveredFromLock {
		t.Errorf("source = %s, want %s", got, event.RecoveredFromLock)
	}
	if got := h.backend.Calls(drafttest.OpFetchUnfinished); got != 0 {
		t.Errorf("fetch unfinished calls = %d, want 0", got)
	}
}

func TestInitialize_StaleLockFallsThrough(t *testing.T) {
	h := newHarness(t)
	h.putDraft("d-old", drafttest.NewForm("Old"), t0.Add(-3*time.Hour))
	h.putDraft("d-new", drafttest.NewForm("New"), t0.Add(-time.Hour))
	h.backend.Put(draft.Record{ID: "d-submitted", UserID: testUser, State: draft.RecordSubmitted, Payload: []byte(`{"name":"Done"}`)})
	if _, err := draft.NewRegistry(h.store, testUser, h.clock).Acquire(context.Background(), "d-submitted"); err != nil {
		t.Fatal(err)
	}

	form := h.initialize(draft.InitOptions[drafttest.Form]{})

	if form.Name != "New" {
		t.Errorf("form = %+v, want the newest unfinished draft", form)
	}
	st := h.coord.State()
	if st.DraftID != "d-new" || st.Status != draft.StatusIdle || st.LastError != nil {
		t.Errorf("state = %+v", st)
	}
	if lock := h.lock(); lock.DraftID != "d-new" {
		t.Errorf("lock = %+v, want d-new", lock)
	}
	if got := h.recoveredSource(); got != event.RecoveredFromServer {
		t.Errorf("source = %s, want %s", got, event.RecoveredFromServer)
	}
}

func TestInitialize_CreatesWhenNothingToResume(t *testing.T) {
	h := newHarness(t)
	h.backend.Put(draft.Record{ID: "d-other-user", UserID: "someone-else", Payload: []byte(`{"name":"x"}`)})
	seed := drafttest.NewForm("Seed", "plate", "NEW1")

	form := h.initialize(draft.InitOptions[drafttest.Form]{Seed: seed})

	if form.Name != "Seed" {
		t.Errorf("form = %+v, want the seed", form)
	}
	writes := h.backend.Writes(drafttest.OpCreate)
	if len(writes) != 1 || string(writes[0].Payload) != wire(t, seed) {
		t.Errorf("create writes = %+v", writes)
	}
	if got := h.recoveredSource(); got != event.RecoveredByCreate {
		t.Errorf("source = %s, want %s", got, event.RecoveredByCreate)
	}
}

func TestInitialize_ServerErrorStillInitializes(t *testing.T) {
	h := newHarness(t)
	boom := errors.NewBackendError("fetch", 502, nil)
	h.backend.FailNext(drafttest.OpFetchUnfinished, boom)

	_, err := h.coord.Initialize(context.Background(), draft.InitOptions[drafttest.Form]{Seed: drafttest.NewForm("Seed")})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	st := h.coord.State()
	if !st.Initialized || st.Status != draft.StatusError || st.DraftID != "" {
		t.Errorf("state = %+v", st)
	}
	if got := h.backend.Calls(drafttest.OpCreate); got != 0 {
		t.Errorf("create calls = %d, want 0", got)
	}

	// The form stays usable; an explicit create recovers.
	h.create(drafttest.NewForm("Seed"))
}

func TestInitialize_RunsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.coord.Initialize(ctx, draft.InitOptions[drafttest.Form]{Seed: drafttest.NewForm("Seed")})
		}()
	}
	wg.Wait()

	second, err := h.coord.Initialize(ctx, draft.InitOptions[drafttest.Form]{Seed: drafttest.NewForm("Again")})
	if err != nil || second.Name != "" {
		t.Errorf("second Initialize() = %+v, %v, want zero form and nil", second, err)
	}
	if got := h.backend.Calls(drafttest.OpCreate); got != 1 {
		t.Errorf("create calls = %d, want 1", got)
	}
	if got := h.backend.Calls(drafttest.OpFetchUnfinished); got != 1 {
		t.Errorf("fetch unfinished calls = %d, want 1", got)
	}
}

func TestInitialize_NewSessionResumesAfterClose(t *testing.T) {
	first := newHarness(t)
	id := first.create(drafttest.NewForm("Civic"))
	edited := drafttest.NewForm("Civic", "notes", "left mid-edit")
	if err := first.coord.UpdateDraft(context.Background(), edited); err != nil {
		t.Fatal(err)
	}
	first.coord.Close()

	second := newSession(t, first.clock, first.backend, first.store)
	form := second.initialize(draft.InitOptions[drafttest.Form]{})

	if second.coord.State().DraftID != id {
		t.Errorf("resumed %q, want %q", second.coord.State().DraftID, id)
	}
	if form.Fields["notes"] != "left mid-edit" {
		t.Errorf("form = %+v", form)
	}
	if second.coord.SessionToken() == first.coord.SessionToken() {
		t.Error("sessions should have distinct tokens")
	}
	if lock := second.lock(); lock.SessionToken != second.coord.SessionToken() {
		t.Error("resuming session should own the lock")
	}
	if got := first.backend.Calls(drafttest.OpCreate); got != 1 {
		t.Errorf("create calls = %d, want 1", got)
	}
}

func TestInitialize_TakeoverStopsOldSessionWrites(t *testing.T) {
	first := newHarness(t)
	first.initialize(draft.InitOptions[drafttest.Form]{Seed: drafttest.NewForm("Civic")})

	second := newSession(t, first.clock, first.backend, first.store)
	second.initialize(draft.InitOptions[drafttest.Form]{})

	first.coord.ScheduleAutosave(drafttest.NewForm("Civic", "from", "first"))
	first.clock.Advance(time.Second)
	if got := first.backend.Calls(drafttest.OpUpdate); got != 0 {
		t.Fatalf("update calls = %d, old session should be silenced", got)
	}

	if err := second.coord.UpdateDraft(context.Background(), drafttest.NewForm("Civic", "from", "second")); err != nil {
		t.Fatal(err)
	}
	writes := first.backend.Writes(drafttest.OpUpdate)
	if len(writes) != 1 || string(writes[0].Payload) != wire(t, drafttest.NewForm("Civic", "from", "second")) {
		t.Errorf("writes = %+v", writes)
	}
}
