package draft

import (
	"context"
	"fmt"
	"time"

	"github.com/Iron-Ham/quickcheck/internal/errors"
)

// Status is the lifecycle status of a draft handle.
type Status int

const (
	// StatusIdle means no operation is in flight.
	StatusIdle Status = iota
	// StatusCreating means a create or load is in flight.
	StatusCreating
	// StatusUpdating means an update, submit or cancel is in flight.
	StatusUpdating
	// StatusError means the last operation failed. It is a resting state:
	// the next create or update may start from here.
	StatusError
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusCreating:
		return "creating"
	case StatusUpdating:
		return "updating"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// InFlight reports whether an operation is currently running.
func (s Status) InFlight() bool {
	return s == StatusCreating || s == StatusUpdating
}

// Snapshot is a point-in-time copy of a coordinator's observable state.
type Snapshot struct {
	Status      Status
	DraftID     string
	LastSaveAt  time.Time // zero until the first successful save
	LastError   error
	Initialized bool

	// IsAutoSaving is true while a timer-driven update is in flight.
	IsAutoSaving bool
	// AutosavePending is true while a debounce timer is armed.
	AutosavePending bool
	// Saves counts the updates this handle has persisted. It lets a caller
	// tell a save from an UpdateDraft call that did nothing.
	Saves uint64
}

// HasDraft reports whether the handle currently names a draft.
func (s Snapshot) HasDraft() bool {
	return s.DraftID != ""
}

// RecordState is the remote lifecycle state of a draft record.
type RecordState string

const (
	RecordDraft     RecordState = "draft"
	RecordSubmitted RecordState = "submitted"
	RecordArchived  RecordState = "archived"
)

// Valid reports whether s is a known record state.
func (s RecordState) Valid() bool {
	switch s {
	case RecordDraft, RecordSubmitted, RecordArchived:
		return true
	}
	return false
}

// Record is a draft record as stored by a Backend.
type Record struct {
	ID        string
	UserID    string
	Title     string
	Payload   []byte
	State     RecordState
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Unfinished reports whether the record can still be edited.
func (r Record) Unfinished() bool {
	return r.State == RecordDraft
}

// Backend is the persistence collaborator behind a coordinator.
//
// Implementations return an error matching ErrNotFound when a record does not
// exist or is no longer unfinished, and an *ActiveDraftError from Create when
// they enforce one unfinished draft per user.
type Backend interface {
	Create(ctx context.Context, userID, title string, payload []byte) (string, error)
	Update(ctx context.Context, id, title string, payload []byte) error
	// FetchUnfinishedForUser returns the user's unfinished drafts, newest first.
	FetchUnfinishedForUser(ctx context.Context, userID string) ([]Record, error)
	FetchByID(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	// Archive marks the record archived. A nil payload keeps the stored one.
	Archive(ctx context.Context, id string, payload []byte) error
	// Submit stores the final payload and marks the record submitted.
	Submit(ctx context.Context, id, title string, payload []byte) error
}

// Converter maps between a form type and its persisted payload.
//
// ToWire drops anything without a durable remote representation, so it may
// be lossy, but ToWire(FromWire(ToWire(f))) must equal ToWire(f).
type Converter[F any] interface {
	ToWire(form F) ([]byte, error)
	FromWire(payload []byte) (F, error)
	// Title is a short human label stored alongside the payload.
	Title(form F) string
}

// CancelAction selects how CancelDraft disposes of a draft.
type CancelAction string

const (
	CancelDelete  CancelAction = "delete"
	CancelArchive CancelAction = "archive"
)

// ParseCancelAction parses "delete" or "archive".
func ParseCancelAction(s string) (CancelAction, error) {
	switch CancelAction(s) {
	case CancelDelete, CancelArchive:
		return CancelAction(s), nil
	}
	return "", errors.NewValidationError("must be delete or archive").WithField("action").WithValue(s)
}

var (
	// ErrNotFound is returned by backends for missing or finished records.
	ErrNotFound = errors.ErrDraftNotFound
	// ErrClosed is returned by operations on a closed coordinator.
	ErrClosed = errors.New("draft coordinator closed")
)

// ActiveDraftError is returned by a Backend that refuses to create a second
// unfinished draft for a user. DraftID names the existing draft.
type ActiveDraftError struct {
	UserID  string
	DraftID string
}

func (e *ActiveDraftError) Error() string {
	return fmt.Sprintf("user %s already has an active draft: %s", e.UserID, e.DraftID)
}

// Is matches errors.ErrActiveDraftExists.
func (e *ActiveDraftError) Is(target error) bool {
	return target == errors.ErrActiveDraftExists
}
