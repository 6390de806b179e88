package event

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/quickcheck/internal/logging"
)

// editorSession mimics what the editor does with the bus: it records saves
// for the status line and flags a takeover.
type editorSession struct {
	mu       sync.Mutex
	savedAt  []time.Time
	lostTo   string
	failures []string
}

func (s *editorSession) attach(bus *Bus) []string {
	return []string{
		bus.Subscribe(TypeDraftSaved, func(e Event) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.savedAt = append(s.savedAt, e.(DraftSavedEvent).SavedAt)
		}),
		bus.Subscribe(TypeLockLost, func(e Event) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.lostTo = e.(LockLostEvent).NewDraftID
		}),
		bus.Subscribe(TypeDraftSaveFailed, func(e Event) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.failures = append(s.failures, e.(DraftSaveFailedEvent).Op)
		}),
	}
}

func TestBus_RoutesDraftEventsByType(t *testing.T) {
	bus := NewBus(nil)
	var s editorSession
	ids := s.attach(bus)

	if bus.SubscriptionCount() != len(ids) {
		t.Fatalf("SubscriptionCount() = %d, want %d", bus.SubscriptionCount(), len(ids))
	}

	at := time.Date(2026, 3, 2, 9, 0, 1, 0, time.UTC)
	bus.Publish(NewDraftSavedEvent("d-1", at, true))
	bus.Publish(NewDraftSaveFailedEvent("d-1", "update", errors.New("503")))
	bus.Publish(NewDraftSubmittedEvent("d-1")) // nobody listens
	bus.Publish(NewLockLostEvent("tech-7", "d-1", "d-2"))

	if len(s.savedAt) != 1 || !s.savedAt[0].Equal(at) {
		t.Errorf("savedAt = %v, want [%v]", s.savedAt, at)
	}
	if len(s.failures) != 1 || s.failures[0] != "update" {
		t.Errorf("failures = %v", s.failures)
	}
	if s.lostTo != "d-2" {
		t.Errorf("lostTo = %q, want d-2", s.lostTo)
	}
}

func TestBus_WildcardRunsAfterSpecificHandlers(t *testing.T) {
	bus := NewBus(nil)

	var order []string
	bus.SubscribeAll(func(e Event) { order = append(order, "all:"+e.EventType()) })
	bus.Subscribe(TypeDraftCreated, func(e Event) { order = append(order, "created") })

	bus.Publish(NewDraftCreatedEvent("tech-7", "d-1", false))
	bus.Publish(NewDraftCancelledEvent("d-1", "archive"))

	want := []string{"created", "all:draft.created", "all:draft.cancelled"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)
	var s editorSession
	ids := s.attach(bus)

	if !bus.Unsubscribe(ids[0]) {
		t.Fatal("Unsubscribe() = false for a live subscription")
	}
	if bus.Unsubscribe(ids[0]) {
		t.Error("second Unsubscribe() should report false")
	}
	if bus.Unsubscribe("no-such-id") {
		t.Error("Unsubscribe() of an unknown ID should report false")
	}

	bus.Publish(NewDraftSavedEvent("d-1", time.Now(), false))
	bus.Publish(NewLockLostEvent("tech-7", "d-1", ""))
	if len(s.savedAt) != 0 {
		t.Error("removed handler was called")
	}
	if bus.SubscriptionCount() != 2 {
		t.Errorf("SubscriptionCount() = %d, want 2", bus.SubscriptionCount())
	}

	bus.Clear()
	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() after Clear = %d", bus.SubscriptionCount())
	}
}

func TestBus_SubscriptionIDsAreUnique(t *testing.T) {
	bus := NewBus(nil)
	seen := make(map[string]bool)
	for range 50 {
		id := bus.Subscribe(TypeSweepCompleted, func(Event) {})
		if id == "" || seen[id] {
			t.Fatalf("bad subscription ID %q", id)
		}
		seen[id] = true
	}
}

func TestBus_PanickingHandlerIsLoggedAndSkipped(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(logging.NewWithWriter(&buf, logging.LevelDebug))

	reached := false
	bus.Subscribe(TypeLockLost, func(Event) { panic("boom") })
	bus.Subscribe(TypeLockLost, func(Event) { reached = true })
	bus.Publish(NewLockLostEvent("tech-7", "d-1", "d-2"))

	if !reached {
		t.Error("handler after the panicking one was not called")
	}
	out := buf.String()
	if !strings.Contains(out, "event handler panicked") || !strings.Contains(out, `"event_type":"lock.lost"`) {
		t.Errorf("panic not logged with its event type: %q", out)
	}
}

func TestBus_ConcurrentAutosaves(t *testing.T) {
	bus := NewBus(nil)
	var s editorSession
	s.attach(bus)

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			bus.Publish(NewDraftSavedEvent("d-1", time.Now(), true))
		})
		wg.Go(func() {
			id := bus.Subscribe(TypeDraftSaved, func(Event) {})
			bus.Unsubscribe(id)
		})
	}
	wg.Wait()

	if len(s.savedAt) != 100 {
		t.Errorf("saves seen = %d, want 100", len(s.savedAt))
	}
	if bus.SubscriptionCount() != 3 {
		t.Errorf("SubscriptionCount() = %d, want 3", bus.SubscriptionCount())
	}
}

func TestBus_PublishOnNilBus(t *testing.T) {
	var bus *Bus
	bus.Publish(NewDraftSubmittedEvent("d-1"))
}
