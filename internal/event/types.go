package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "draft.saved", "lock.lost")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeDraftCreated    = "draft.created"
	TypeDraftRecovered  = "draft.recovered"
	TypeDraftSaved      = "draft.saved"
	TypeDraftSaveFailed = "draft.save_failed"
	TypeDraftSubmitted  = "draft.submitted"
	TypeDraftCancelled  = "draft.cancelled"
	TypeLockLost        = "lock.lost"
	TypeSweepCompleted  = "sweep.completed"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Draft Lifecycle Events
// -----------------------------------------------------------------------------

// DraftCreatedEvent is emitted when a new draft record is created remotely,
// or when an existing record is adopted instead of creating one.
type DraftCreatedEvent struct {
	baseEvent
	UserID  string
	DraftID string
	Adopted bool // true when the draft came from a lock or a conflict, not a remote create
}

// NewDraftCreatedEvent creates a DraftCreatedEvent.
func NewDraftCreatedEvent(userID, draftID string, adopted bool) DraftCreatedEvent {
	return DraftCreatedEvent{
		baseEvent: newBaseEvent(TypeDraftCreated),
		UserID:    userID,
		DraftID:   draftID,
		Adopted:   adopted,
	}
}

// RecoverySource identifies which step of initialization produced the draft.
type RecoverySource string

const (
	RecoveredFromExplicitID RecoverySource = "explicit_id"
	RecoveredFromLock       RecoverySource = "lock"
	RecoveredFromServer     RecoverySource = "server"
	RecoveredByCreate       RecoverySource = "create"
)

// DraftRecoveredEvent is emitted once initialization settles on a draft.
type DraftRecoveredEvent struct {
	baseEvent
	UserID  string
	DraftID string
	Source  RecoverySource
}

// NewDraftRecoveredEvent creates a DraftRecoveredEvent.
func NewDraftRecoveredEvent(userID, draftID string, source RecoverySource) DraftRecoveredEvent {
	return DraftRecoveredEvent{
		baseEvent: newBaseEvent(TypeDraftRecovered),
		UserID:    userID,
		DraftID:   draftID,
		Source:    source,
	}
}

// DraftSavedEvent is emitted after a successful update.
type DraftSavedEvent struct {
	baseEvent
	DraftID  string
	SavedAt  time.Time
	Autosave bool // true when the save was triggered by the debounce timer
}

// NewDraftSavedEvent creates a DraftSavedEvent.
func NewDraftSavedEvent(draftID string, savedAt time.Time, autosave bool) DraftSavedEvent {
	return DraftSavedEvent{
		baseEvent: newBaseEvent(TypeDraftSaved),
		DraftID:   draftID,
		SavedAt:   savedAt,
		Autosave:  autosave,
	}
}

// DraftSaveFailedEvent is emitted when a create or update fails.
type DraftSaveFailedEvent struct {
	baseEvent
	DraftID string // empty when the failure was a create
	Op      string
	Err     error
}

// NewDraftSaveFailedEvent creates a DraftSaveFailedEvent.
func NewDraftSaveFailedEvent(draftID, op string, err error) DraftSaveFailedEvent {
	return DraftSaveFailedEvent{
		baseEvent: newBaseEvent(TypeDraftSaveFailed),
		DraftID:   draftID,
		Op:        op,
		Err:       err,
	}
}

// DraftSubmittedEvent is emitted when a draft is submitted.
type DraftSubmittedEvent struct {
	baseEvent
	DraftID string
}

// NewDraftSubmittedEvent creates a DraftSubmittedEvent.
func NewDraftSubmittedEvent(draftID string) DraftSubmittedEvent {
	return DraftSubmittedEvent{
		baseEvent: newBaseEvent(TypeDraftSubmitted),
		DraftID:   draftID,
	}
}

// DraftCancelledEvent is emitted when a draft is deleted or archived.
type DraftCancelledEvent struct {
	baseEvent
	DraftID string
	Action  string // "delete" or "archive"
}

// NewDraftCancelledEvent creates a DraftCancelledEvent.
func NewDraftCancelledEvent(draftID, action string) DraftCancelledEvent {
	return DraftCancelledEvent{
		baseEvent: newBaseEvent(TypeDraftCancelled),
		DraftID:   draftID,
		Action:    action,
	}
}

// -----------------------------------------------------------------------------
// Lock Events
// -----------------------------------------------------------------------------

// LockLostEvent is emitted when another session overwrites or removes the
// lock this session held.
type LockLostEvent struct {
	baseEvent
	UserID     string
	DraftID    string // draft this session owned
	NewDraftID string // draft named by the new lock, empty if the lock was removed
}

// NewLockLostEvent creates a LockLostEvent.
func NewLockLostEvent(userID, draftID, newDraftID string) LockLostEvent {
	return LockLostEvent{
		baseEvent:  newBaseEvent(TypeLockLost),
		UserID:     userID,
		DraftID:    draftID,
		NewDraftID: newDraftID,
	}
}

// -----------------------------------------------------------------------------
// Maintenance Events
// -----------------------------------------------------------------------------

// SweepCompletedEvent is emitted after the stale draft sweeper finishes a pass.
type SweepCompletedEvent struct {
	baseEvent
	Archived int
	Failed   int
	Duration time.Duration
}

// NewSweepCompletedEvent creates a SweepCompletedEvent.
func NewSweepCompletedEvent(archived, failed int, duration time.Duration) SweepCompletedEvent {
	return SweepCompletedEvent{
		baseEvent: newBaseEvent(TypeSweepCompleted),
		Archived:  archived,
		Failed:    failed,
		Duration:  duration,
	}
}
