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

const testUser = "tech-7"

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type harness struct {
	t       *testing.T
	clock   *drafttest.FakeClock
	backend *drafttest.FakeBackend
	store   *draft.MemoryLockStore
	locks   *draft.Registry
	coord   *draft.Coordinator[drafttest.Form]

	mu     sync.Mutex
	events []event.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := drafttest.NewFakeClock(t0)
	return newSession(t, clock, drafttest.NewFakeBackend(clock.Now), draft.NewMemoryLockStore())
}

// newSession creates a second session sharing backend and lock storage.
func newSession(t *testing.T, clock *drafttest.FakeClock, backend *drafttest.FakeBackend, store *draft.MemoryLockStore) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		clock:   clock,
		backend: backend,
		store:   store,
		locks:   draft.NewRegistry(store, testUser, clock),
	}
	bus := event.NewBus(nil)
	bus.SubscribeAll(func(e event.Event) {
		h.mu.Lock()
		h.events = append(h.events, e)
		h.mu.Unlock()
	})
	h.coord = draft.New[drafttest.Form](backend, drafttest.Converter{}, h.locks,
		draft.WithClock(clock),
		draft.WithDebounce(time.Second),
		draft.WithEventBus(bus),
	)
	t.Cleanup(h.coord.Close)
	return h
}

func (h *harness) create(form drafttest.Form) string {
	h.t.Helper()
	id, err := h.coord.CreateDraft(context.Background(), form)
	if err != nil {
		h.t.Fatalf("CreateDraft() error = %v", err)
	}
	if id == "" {
		h.t.Fatal("CreateDraft() returned empty id")
	}
	return id
}

func (h *harness) lock() *draft.SessionLock {
	h.t.Helper()
	lock, err := h.store.Load(context.Background(), testUser)
	if err != nil {
		h.t.Fatalf("Load() error = %v", err)
	}
	return lock
}

func (h *harness) eventTypes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.events))
	for i, e := range h.events {
		out[i] = e.EventType()
	}
	return out
}

func wire(t *testing.T, f drafttest.Form) string {
	t.Helper()
	b, err := drafttest.Converter{}.ToWire(f)
	if err != nil {
		t.Fatalf("ToWire() error = %v", err)
	}
	return string(b)
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for backend call")
	}
}

// -----------------------------------------------------------------------------
// CreateDraft
// -----------------------------------------------------------------------------

func TestCreateDraft_CreatesRecordAndLock(t *testing.T) {
	h := newHarness(t)

	id := h.create(drafttest.NewForm("Civic", "plate", "ABC123"))

	if got := h.backend.Calls(drafttest.OpCreate); got != 1 {
		t.Errorf("create calls = %d, want 1", got)
	}
	lock := h.lock()
	if lock == nil || lock.DraftID != id || lock.SessionToken != h.coord.SessionToken() {
		t.Errorf("lock = %+v, want draft %s owned by this session", lock, id)
	}
	st := h.coord.State()
	if st.Status != draft.StatusIdle || st.DraftID != id {
		t.Errorf("state = %+v, want idle with id %s", st, id)
	}
	if !st.LastSaveAt.Equal(t0) {
		t.Errorf("LastSaveAt = %v, want %v", st.LastSaveAt, t0)
	}
	rec, _ := h.backend.Record(id)
	if rec.Title != "Civic" || rec.UserID != testUser {
		t.Errorf("record = %+v", rec)
	}
}

func TestCreateDraft_AdoptsLockedDraftWithoutRemoteCreate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.store.Save(ctx, &draft.SessionLock{
		OwnerUserID:  testUser,
		DraftID:      "draft-existing",
		SessionToken: "previous-session",
		AcquiredAt:   t0.Add(-time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	id := h.create(drafttest.NewForm("Civic"))

	if id != "draft-existing" {
		t.Errorf("id = %q, want draft-existing", id)
	}
	if got := h.backend.Calls(drafttest.OpCreate); got != 0 {
		t.Errorf("create calls = %d, want 0", got)
	}
	if st := h.coord.State(); st.Status != draft.StatusIdle {
		t.Errorf("status = %v, want idle", st.Status)
	}
	if lock := h.lock(); lock.SessionToken != h.coord.SessionToken() {
		t.Errorf("lock token = %q, want this session's token", lock.SessionToken)
	}
}

func TestCreateDraft_FailureLeavesHandleEmpty(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("connection refused")
	h.backend.FailNext(drafttest.OpCreate, boom)

	id, err := h.coord.CreateDraft(context.Background(), drafttest.NewForm("Civic"))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if id != "" {
		t.Errorf("id = %q, want empty", id)
	}
	st := h.coord.State()
	if st.Status != draft.StatusError || st.DraftID != "" || st.LastError == nil {
		t.Errorf("state = %+v, want error with no draft", st)
	}
	if h.lock() != nil {
		t.Error("no lock should be written after a failed create")
	}

	// Error is a resting state; the next create retries.
	h.create(drafttest.NewForm("Civic"))
	if st := h.coord.State(); st.Status != draft.StatusIdle || st.LastError != nil {
		t.Errorf("state after retry = %+v", st)
	}
}

func TestCreateDraft_ReturnsExistingID(t *testing.T) {
	h := newHarness(t)
	first := h.create(drafttest.NewForm("Civic"))
	second := h.create(drafttest.NewForm("Other"))

	if first != second {
		t.Errorf("second create returned %q, want %q", second, first)
	}
	if got := h.backend.Calls(drafttest.OpCreate); got != 1 {
		t.Errorf("create calls = %d, want 1", got)
	}
}

func TestCreateDraft_AdoptsActiveDraftOnConflict(t *testing.T) {
	h := newHarness(t)
	h.backend.SingleActive = true
	h.backend.Put(draft.Record{ID: "draft-other-tab", UserID: testUser, Payload: []byte(`{"name":"x"}`), UpdatedAt: t0})

	id := h.create(drafttest.NewForm("Civic"))

	if id != "draft-other-tab" {
		t.Errorf("id = %q, want draft-other-tab", id)
	}
	if h.backend.Len() != 1 {
		t.Errorf("records = %d, want 1", h.backend.Len())
	}
	if lock := h.lock(); lock.DraftID != "draft-other-tab" {
		t.Errorf("lock = %+v", lock)
	}
}

func TestCreateDraft_StaleResponseIsDiscarded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	gate := h.backend.Block(drafttest.OpCreate)

	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := h.coord.CreateDraft(ctx, drafttest.NewForm("Civic"))
		done <- result{id, err}
	}()
	waitFor(t, gate.Entered())

	if err := h.coord.ReleaseSession(ctx); err != nil {
		t.Fatalf("ReleaseSession() error = %v", err)
	}
	gate.Release()
	res := <-done

	if !errors.Is(res.err, draft.ErrSuperseded) {
		t.Errorf("err = %v, want ErrSuperseded", res.err)
	}
	if st := h.coord.State(); st.DraftID != "" || st.Status != draft.StatusIdle {
		t.Errorf("state = %+v, want empty idle handle", st)
	}
	if h.lock() != nil {
		t.Error("a discarded create must not write a lock")
	}
}

// -----------------------------------------------------------------------------
// UpdateDraft
// -----------------------------------------------------------------------------

func TestUpdateDraft_Persists(t *testing.T) {
	h := newHarness(t)
	id := h.create(drafttest.NewForm("Civic"))
	h.clock.Advance(time.Minute)

	edited := drafttest.NewForm("Civic", "mileage", "42000")
	if err := h.coord.UpdateDraft(context.Background(), edited); err != nil {
		t.Fatalf("UpdateDraft() error = %v", err)
	}

	rec, _ := h.backend.Record(id)
	if string(rec.Payload) != wire(t, edited) {
		t.Errorf("payload = %s, want %s", rec.Payload, wire(t, edited))
	}
	if st := h.coord.State(); !st.LastSaveAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("LastSaveAt = %v", st.LastSaveAt)
	}
}

func TestUpdateDraft_NoOpWithoutDraft(t *testing.T) {
	h := newHarness(t)
	if err := h.coord.UpdateDraft(context.Background(), drafttest.NewForm("Civic")); err != nil {
		t.Fatalf("UpdateDraft() error = %v", err)
	}
	if got := h.backend.Calls(drafttest.OpUpdate); got != 0 {
		t.Errorf("update calls = %d, want 0", got)
	}
}

func TestUpdateDraft_NoOpWhenOwnershipLost(t *testing.T) {
	h := newHarness(t)
	id := h.create(drafttest.NewForm("Civic"))

	// Another session of the same user takes over the draft.
	other := draft.NewRegistry(h.store, testUser, h.clock)
	if _, err := other.Acquire(context.Background(), id); err != nil {
		t.Fatal(err)
	}

	if err := h.coord.UpdateDraft(context.Background(), drafttest.NewForm("Civic", "a", "b")); err != nil {
		t.Fatalf("UpdateDraft() error = %v", err)
	}
	if got := h.backend.Calls(drafttest.OpUpdate); got != 0 {
		t.Errorf("update calls = %d, want 0", got)
	}
	if st := h.coord.State(); st.Status != draft.StatusIdle || st.LastError != nil {
		t.Errorf("ownership mismatch must not surface as an error: %+v", st)
	}
}

func TestUpdateDraft_FailureKeepsDraftAndLock(t *testing.T) {
	h := newHarness(t)
	id := h.create(drafttest.NewForm("Civic"))
	h.backend.FailNext(drafttest.OpUpdate, errors.NewBackendError("update", 503, nil))

	err := h.coord.UpdateDraft(context.Background(), drafttest.NewForm("Civic", "a", "1"))
	if err == nil {
		t.Fatal("UpdateDraft() should return the backend error")
	}
	if !errors.IsRetryable(err) {
		t.Errorf("a 503 should be retryable: %v", err)
	}
	st := h.coord.State()
	if st.Status != draft.StatusError || st.DraftID != id {
		t.Errorf("state = %+v, want error keeping %s", st, id)
	}
	if lock := h.lock(); lock == nil || lock.DraftID != id {
		t.Errorf("lock = %+v, want it kept", lock)
	}

	if err := h.coord.UpdateDraft(context.Background(), drafttest.NewForm("Civic", "a", "2")); err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if st := h.coord.State(); st.Status != draft.StatusIdle || st.LastError != nil {
		t.Errorf("state after retry = %+v", st)
	}
}

func TestUpdateDraft_AtMostOneInFlight(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(drafttest.NewForm("Civic"))
	gate := h.backend.Block(drafttest.OpUpdate)

	done := make(chan error, 1)
	go func() { done <- h.coord.UpdateDraft(ctx, drafttest.NewForm("Civic", "a", "1")) }()
	waitFor(t, gate.Entered())

	if st := h.coord.State(); st.Status != draft.StatusUpdating {
		t.Fatalf("status = %v, want updating", st.Status)
	}
	if err := h.coord.UpdateDraft(ctx, drafttest.NewForm("Civic", "a", "2")); err != nil {
		t.Errorf("concurrent UpdateDraft() error = %v, want silent no-op", err)
	}
	h.coord.ScheduleAutosave(drafttest.NewForm("Civic", "a", "3"))
	if st := h.coord.State(); st.AutosavePending {
		t.Error("ScheduleAutosave should not arm while updating")
	}

	gate.Release()
	if err := <-done; err != nil {
		t.Fatalf("UpdateDraft() error = %v", err)
	}
	if got := h.backend.Calls(drafttest.OpUpdate); got != 1 {
		t.Errorf("update calls = %d, want 1", got)
	}
}

func TestUpdateDraft_StaleResponseIsDiscarded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(drafttest.NewForm("Civic"))
	gate := h.backend.Block(drafttest.OpUpdate)

	done := make(chan error, 1)
	go func() { done <- h.coord.UpdateDraft(ctx, drafttest.NewForm("Civic", "a", "1")) }()
	waitFor(t, gate.Entered())

	if err := h.coord.ReleaseSession(ctx); err != nil {
		t.Fatal(err)
	}
	gate.Release()
	if err := <-done; err != nil {
		t.Fatalf("UpdateDraft() error = %v", err)
	}

	st := h.coord.State()
	if st.DraftID != "" || !st.LastSaveAt.IsZero() {
		t.Errorf("state = %+v, want untouched empty handle", st)
	}
}

// -----------------------------------------------------------------------------
// ScheduleAutosave
// -----------------------------------------------------------------------------

func TestScheduleAutosave_DebouncesToLatestSnapshot(t *testing.T) {
	h := newHarness(t)
	h.create(drafttest.NewForm("Civic"))

	e1 := drafttest.NewForm("Civic", "plate", "A")
	e2 := e1.With("mileage", "1000")
	e3 := e2.With("notes", "brake pads worn")

	h.coord.ScheduleAutosave(e1)
	h.clock.Advance(300 * time.Millisecond)
	h.coord.ScheduleAutosave(e2)
	h.clock.Advance(300 * time.Millisecond)
	h.coord.ScheduleAutosave(e3)
	h.clock.Advance(300 * time.Millisecond)

	if got := h.backend.Calls(drafttest.OpUpdate); got != 0 {
		t.Fatalf("update calls inside the window = %d, want 0", got)
	}
	if st := h.coord.State(); !st.AutosavePending {
		t.Error("AutosavePending should be true while the timer is armed")
	}

	h.clock.Advance(time.Second)

	writes := h.backend.Writes(drafttest.OpUpdate)
	if len(writes) != 1 {
		t.Fatalf("updates = %d, want 1", len(writes))
	}
	if string(writes[0].Payload) != wire(t, e3) {
		t.Errorf("payload = %s, want %s", writes[0].Payload, wire(t, e3))
	}
	st := h.coord.State()
	if st.AutosavePending || st.IsAutoSaving || st.Status != draft.StatusIdle {
		t.Errorf("state after autosave = %+v", st)
	}
	if h.clock.Pending() != 0 {
		t.Errorf("pending timers = %d, want 0", h.clock.Pending())
	}
}

func TestScheduleAutosave_NoOpWithoutDraft(t *testing.T) {
	h := newHarness(t)
	h.coord.ScheduleAutosave(drafttest.NewForm("Civic"))
	if h.clock.Pending() != 0 {
		t.Errorf("pending timers = %d, want 0", h.clock.Pending())
	}
}

func TestScheduleAutosave_RetriesAfterFailure(t *testing.T) {
	h := newHarness(t)
	h.create(drafttest.NewForm("Civic"))
	h.backend.FailNext(drafttest.OpUpdate, errors.New("timeout"))

	h.coord.ScheduleAutosave(drafttest.NewForm("Civic", "a", "1"))
	h.clock.Advance(time.Second)

	if st := h.coord.State(); st.Status != draft.StatusError {
		t.Fatalf("status = %v, want error", st.Status)
	}

	latest := drafttest.NewForm("Civic", "a", "2")
	h.coord.ScheduleAutosave(latest)
	h.clock.Advance(time.Second)

	writes := h.backend.Writes(drafttest.OpUpdate)
	if len(writes) != 1 || string(writes[0].Payload) != wire(t, latest) {
		t.Errorf("writes = %+v, want one write of the latest snapshot", writes)
	}
	if st := h.coord.State(); st.Status != draft.StatusIdle || st.LastError != nil {
		t.Errorf("state = %+v", st)
	}
}

func TestClose_CancelsPendingAutosaveWithoutFlush(t *testing.T) {
	h := newHarness(t)
	id := h.create(drafttest.NewForm("Civic"))

	h.coord.ScheduleAutosave(drafttest.NewForm("Civic", "a", "1"))
	h.coord.Close()
	h.clock.Advance(5 * time.Second)

	if got := h.backend.Calls(drafttest.OpUpdate); got != 0 {
		t.Errorf("update calls = %d, want 0", got)
	}
	if lock := h.lock(); lock == nil || lock.DraftID != id {
		t.Error("Close must keep the lock so the draft can be resumed")
	}
	if _, err := h.coord.CreateDraft(context.Background(), drafttest.NewForm("x")); !errors.Is(err, draft.ErrClosed) {
		t.Errorf("CreateDraft after Close error = %v, want ErrClosed", err)
	}
}

// -----------------------------------------------------------------------------
// SubmitDraft / CancelDraft
// -----------------------------------------------------------------------------

func TestSubmitDraft_ClearsLockAndHandle(t *testing.T) {
	h := newHarness(t)
	id := h.create(drafttest.NewForm("Civic"))
	final := drafttest.NewForm("Civic", "result", "pass")

	if err := h.coord.SubmitDraft(context.Background(), final); err != nil {
		t.Fatalf("SubmitDraft() error = %v", err)
	}

	rec, _ := h.backend.Record(id)
	if rec.State != draft.RecordSubmitted || string(rec.Payload) != wire(t, final) {
		t.Errorf("record = %+v", rec)
	}
	if h.lock() != nil {
		t.Error("lock should be cleared")
	}
	st := h.coord.State()
	if st.DraftID != "" || st.Status != draft.StatusIdle || !st.LastSaveAt.IsZero() {
		t.Errorf("state = %+v, want empty handle", st)
	}

	types := h.eventTypes()
	if types[len(types)-1] != event.TypeDraftSubmitted {
		t.Errorf("last event = %s, want %s", types[len(types)-1], event.TypeDraftSubmitted)
	}
}

func TestSubmitDraft_FailureIsReturned(t *testing.T) {
	h := newHarness(t)
	id := h.create(drafttest.NewForm("Civic"))
	boom := errors.New("server exploded")
	h.backend.SetError(drafttest.OpSubmit, boom)

	err := h.coord.SubmitDraft(context.Background(), drafttest.NewForm("Civic"))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	var derr *errors.DraftError
	if !errors.As(err, &derr) || derr.DraftID != id || derr.Op != "submit" {
		t.Errorf("err = %#v, want DraftError for submit of %s", err, id)
	}
	if st := h.coord.State(); st.DraftID != id || st.Status != draft.StatusError {
		t.Errorf("state = %+v", st)
	}
	if h.lock() == nil {
		t.Error("lock should survive a failed submit")
	}
}

func TestSubmitDraft_Preconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.coord.SubmitDraft(ctx, drafttest.NewForm("Civic")); !errors.Is(err, errors.ErrNoDraft) {
		t.Errorf("err = %v, want ErrNoDraft", err)
	}

	h.create(drafttest.NewForm("Civic"))
	gate := h.backend.Block(drafttest.OpUpdate)
	done := make(chan error, 1)
	go func() { done <- h.coord.UpdateDraft(ctx, drafttest.NewForm("Civic", "a", "1")) }()
	waitFor(t, gate.Entered())

	if err := h.coord.SubmitDraft(ctx, drafttest.NewForm("Civic")); !errors.Is(err, errors.ErrDraftBusy) {
		t.Errorf("err = %v, want ErrDraftBusy", err)
	}
	gate.Release()
	<-done
}

func TestSubmitDraft_DropsPendingAutosave(t *testing.T) {
	h := newHarness(t)
	h.create(drafttest.NewForm("Civic"))

	h.coord.ScheduleAutosave(drafttest.NewForm("Civic", "a", "1"))
	if err := h.coord.SubmitDraft(context.Background(), drafttest.NewForm("Civic", "a", "2")); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(5 * time.Second)

	if got := h.backend.Calls(drafttest.OpUpdate); got != 0 {
		t.Errorf("update calls = %d, want 0", got)
	}
}

func TestSubmitDraft_FailureKeepsEditForAutosave(t *testing.T) {
	h := newHarness(t)
	h.create(drafttest.NewForm("Civic"))
	h.backend.FailNext(drafttest.OpSubmit, errors.ErrBackendUnavailable)

	final := drafttest.NewForm("Civic", "result", "pass")
	if err := h.coord.SubmitDraft(context.Background(), final); err == nil {
		t.Fatal("expected submit to fail")
	}
	if !h.coord.State().AutosavePending {
		t.Fatal("failed submit should leave the edit armed for autosave")
	}
	h.clock.Advance(time.Second)

	writes := h.backend.Writes(drafttest.OpUpdate)
	if len(writes) != 1 || string(writes[0].Payload) != wire(t, final) {
		t.Errorf("update writes = %+v, want the submitted form", writes)
	}
}

// takeover has a second session load the draft first created, so the first
// session no longer owns the lock.
func takeover(t *testing.T, first *harness, id string) *harness {
	t.Helper()
	second := newSession(t, first.clock, first.backend, first.store)
	if _, err := second.coord.LoadForm(context.Background(), id); err != nil {
		t.Fatalf("LoadForm() error = %v", err)
	}
	return second
}

func TestSubmitDraft_RefusedAfterTakeover(t *testing.T) {
	first := newHarness(t)
	ctx := context.Background()
	id := first.create(drafttest.NewForm("Civic"))
	second := takeover(t, first, id)

	err := first.coord.SubmitDraft(ctx, drafttest.NewForm("Civic", "from", "first"))
	if !errors.Is(err, errors.ErrLockNotHeld) {
		t.Fatalf("err = %v, want ErrLockNotHeld", err)
	}
	var lockErr *errors.LockError
	if !errors.As(err, &lockErr) {
		t.Errorf("err = %#v, want *LockError", err)
	}
	if got := first.backend.Calls(drafttest.OpSubmit); got != 0 {
		t.Errorf("submit calls = %d, want 0", got)
	}
	if st := first.coord.State(); st.DraftID != id || st.Status != draft.StatusIdle {
		t.Errorf("first state = %+v, want handle untouched", st)
	}
	if lock := first.lock(); lock == nil || lock.SessionToken != second.coord.SessionToken() {
		t.Fatalf("lock = %+v, want it held by the second session", lock)
	}

	edit := drafttest.NewForm("Civic", "from", "second")
	if err := second.coord.UpdateDraft(ctx, edit); err != nil {
		t.Fatal(err)
	}
	writes := first.backend.Writes(drafttest.OpUpdate)
	if len(writes) != 1 || string(writes[0].Payload) != wire(t, edit) {
		t.Errorf("update writes = %+v, want the second session's edit", writes)
	}
}

func TestCancelDraft_RefusedAfterTakeover(t *testing.T) {
	for _, action := range []draft.CancelAction{draft.CancelDelete, draft.CancelArchive} {
		t.Run(string(action), func(t *testing.T) {
			first := newHarness(t)
			id := first.create(drafttest.NewForm("Civic"))
			second := takeover(t, first, id)

			err := first.coord.CancelDraft(context.Background(), action)
			if !errors.Is(err, errors.ErrLockNotHeld) {
				t.Fatalf("err = %v, want ErrLockNotHeld", err)
			}
			rec, ok := first.backend.Record(id)
			if !ok || rec.State != draft.RecordDraft {
				t.Errorf("record = %+v, %v; want it untouched", rec, ok)
			}
			if lock := first.lock(); lock == nil || lock.SessionToken != second.coord.SessionToken() {
				t.Errorf("lock = %+v, want it held by the second session", lock)
			}
		})
	}
}

func TestCancelDraft_FailureKeepsPendingEdit(t *testing.T) {
	h := newHarness(t)
	id := h.create(drafttest.NewForm("Civic"))

	latest := drafttest.NewForm("Civic", "notes", "left front low")
	h.coord.ScheduleAutosave(latest)
	h.backend.FailNext(drafttest.OpDelete, errors.ErrBackendUnavailable)

	if err := h.coord.CancelDraft(context.Background(), draft.CancelDelete); err == nil {
		t.Fatal("expected cancel to fail")
	}
	st := h.coord.State()
	if st.DraftID != id || st.Status != draft.StatusError || !st.AutosavePending {
		t.Fatalf("state = %+v, want draft kept with the edit armed", st)
	}

	h.clock.Advance(2 * time.Second)
	writes := h.backend.Writes(drafttest.OpUpdate)
	if len(writes) != 1 || string(writes[0].Payload) != wire(t, latest) {
		t.Errorf("update writes = %+v, want the pending edit", writes)
	}
}

func TestCancelDraft_DeleteTwiceNeverErrors(t *testing.T) {
	h := newHarness(t)
	id := h.create(drafttest.NewForm("Civic"))
	ctx := context.Background()

	if err := h.coord.CancelDraft(ctx, draft.CancelDelete); err != nil {
		t.Fatalf("first CancelDraft() error = %v", err)
	}
	if err := h.coord.CancelDraft(ctx, draft.CancelDelete); err != nil {
		t.Fatalf("second CancelDraft() error = %v", err)
	}

	if _, ok := h.backend.Record(id); ok {
		t.Error("record should be deleted")
	}
	if h.lock() != nil {
		t.Error("lock should be cleared")
	}
}

func TestCancelDraft_DeleteNotFoundIsSuccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.create(drafttest.NewForm("Civic"))

	// Consumed by another path before this session cancels.
	if err := h.backend.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}

	if err := h.coord.CancelDraft(ctx, draft.CancelDelete); err != nil {
		t.Fatalf("CancelDraft() error = %v", err)
	}
	if st := h.coord.State(); st.DraftID != "" || st.Status != draft.StatusIdle {
		t.Errorf("state = %+v", st)
	}
}

func TestCancelDraft_ArchiveUsesPendingSnapshot(t *testing.T) {
	h := newHarness(t)
	id := h.create(drafttest.NewForm("Civic"))

	pending := drafttest.NewForm("Civic", "notes", "customer left")
	h.coord.ScheduleAutosave(pending)
	if err := h.coord.CancelDraft(context.Background(), draft.CancelArchive); err != nil {
		t.Fatalf("CancelDraft() error = %v", err)
	}

	rec, _ := h.backend.Record(id)
	if rec.State != draft.RecordArchived || string(rec.Payload) != wire(t, pending) {
		t.Errorf("record = %+v, want archived with pending payload", rec)
	}
	h.clock.Advance(5 * time.Second)
	if got := h.backend.Calls(drafttest.OpUpdate); got != 0 {
		t.Errorf("update calls = %d, want 0", got)
	}
}

func TestCancelDraft_ArchiveUsesLastSavedPayload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(drafttest.NewForm("Civic"))
	saved := drafttest.NewForm("Civic", "a", "1")
	if err := h.coord.UpdateDraft(ctx, saved); err != nil {
		t.Fatal(err)
	}

	if err := h.coord.CancelDraft(ctx, draft.CancelArchive); err != nil {
		t.Fatal(err)
	}

	writes := h.backend.Writes(drafttest.OpArchive)
	if len(writes) != 1 || string(writes[0].Payload) != wire(t, saved) {
		t.Errorf("archive writes = %+v", writes)
	}
}

func TestCancelDraft_InvalidAction(t *testing.T) {
	h := newHarness(t)
	h.create(drafttest.NewForm("Civic"))
	if err := h.coord.CancelDraft(context.Background(), draft.CancelAction("shred")); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

// -----------------------------------------------------------------------------
// LoadForm / ReleaseSession
// -----------------------------------------------------------------------------

func TestLoadForm(t *testing.T) {
	h := newHarness(t)
	stored := drafttest.NewForm("Accord", "plate", "XYZ")
	h.backend.Put(draft.Record{ID: "d-9", UserID: testUser, Payload: []byte(wire(t, stored)), UpdatedAt: t0.Add(-time.Hour)})

	form, err := h.coord.LoadForm(context.Background(), "d-9")
	if err != nil {
		t.Fatalf("LoadForm() error = %v", err)
	}
	if form.Name != "Accord" || form.Fields["plate"] != "XYZ" {
		t.Errorf("form = %+v", form)
	}
	st := h.coord.State()
	if st.DraftID != "d-9" || st.Status != draft.StatusIdle || !st.LastSaveAt.Equal(t0.Add(-time.Hour)) {
		t.Errorf("state = %+v", st)
	}
	if lock := h.lock(); lock.DraftID != "d-9" || lock.SessionToken != h.coord.SessionToken() {
		t.Errorf("lock = %+v", lock)
	}
}

func TestLoadForm_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.coord.LoadForm(context.Background(), "missing")
	if !errors.Is(err, draft.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if st := h.coord.State(); st.Status != draft.StatusError {
		t.Errorf("status = %v, want error", st.Status)
	}
}

func TestLoadForm_CorruptPayload(t *testing.T) {
	h := newHarness(t)
	h.backend.Put(draft.Record{ID: "d-bad", UserID: testUser, Payload: []byte("{not json")})

	_, err := h.coord.LoadForm(context.Background(), "d-bad")
	if !errors.Is(err, errors.ErrPayloadCorrupted) {
		t.Errorf("err = %v, want ErrPayloadCorrupted", err)
	}
}

func TestReleaseSession(t *testing.T) {
	t.Run("releases owned lock", func(t *testing.T) {
		h := newHarness(t)
		h.create(drafttest.NewForm("Civic"))
		if err := h.coord.ReleaseSession(context.Background()); err != nil {
			t.Fatal(err)
		}
		if h.lock() != nil {
			t.Error("lock should be released")
		}
	})

	t.Run("keeps another session's lock", func(t *testing.T) {
		h := newHarness(t)
		id := h.create(drafttest.NewForm("Civic"))
		other := draft.NewRegistry(h.store, testUser, h.clock)
		if _, err := other.Acquire(context.Background(), id); err != nil {
			t.Fatal(err)
		}
		if err := h.coord.ReleaseSession(context.Background()); err != nil {
			t.Fatal(err)
		}
		if lock := h.lock(); lock == nil || lock.SessionToken != other.Token() {
			t.Errorf("lock = %+v, want the other session's", lock)
		}
	})
}

// -----------------------------------------------------------------------------
// End to end
// -----------------------------------------------------------------------------

func TestEndToEnd_OpenEditSubmit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seed := drafttest.NewForm("New quick check")

	form, err := h.coord.Initialize(ctx, draft.InitOptions[drafttest.Form]{Seed: seed})
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	st := h.coord.State()
	if h.backend.Calls(drafttest.OpCreate) != 1 || st.Status != draft.StatusIdle || !st.Initialized {
		t.Fatalf("after open: creates=%d state=%+v", h.backend.Calls(drafttest.OpCreate), st)
	}
	if lock := h.lock(); lock == nil || lock.DraftID != st.DraftID {
		t.Fatalf("lock = %+v, want one naming %s", lock, st.DraftID)
	}

	form = form.With("customer", "Dana")
	h.coord.ScheduleAutosave(form)
	h.clock.Advance(100 * time.Millisecond)
	form = form.With("plate", "QC-101")
	h.coord.ScheduleAutosave(form)
	h.clock.Advance(100 * time.Millisecond)
	form = form.With("mileage", "88000")
	h.coord.ScheduleAutosave(form)
	h.clock.Advance(time.Second)

	updates := h.backend.Writes(drafttest.OpUpdate)
	if len(updates) != 1 || string(updates[0].Payload) != wire(t, form) {
		t.Fatalf("updates = %+v, want one merged update", updates)
	}

	if err := h.coord.SubmitDraft(ctx, form); err != nil {
		t.Fatalf("SubmitDraft() error = %v", err)
	}
	if h.lock() != nil {
		t.Error("lock should be cleared after submit")
	}
	if st := h.coord.State(); st.DraftID != "" || st.Status != draft.StatusIdle {
		t.Errorf("state after submit = %+v", st)
	}
}
