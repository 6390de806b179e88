package draft

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/quickcheck/internal/errors"
	"github.com/Iron-Ham/quickcheck/internal/event"
	"github.com/Iron-Ham/quickcheck/internal/logging"
)

// ErrSuperseded is returned when the handle was reset or closed while the
// operation was in flight. The operation's result was not applied.
var ErrSuperseded = errors.New("draft handle reset while operation was in flight")

// Coordinator drives the draft lifecycle of one form for one user session.
//
// All methods are safe for concurrent use. Backend calls run without holding
// the handle mutex; the status field rejects a second create, update, submit
// or cancel while one is in flight. Lock store calls are local and run under
// the mutex.
type Coordinator[F any] struct {
	backend Backend
	conv    Converter[F]
	locks   *Registry
	cfg     coordinatorConfig
	logger  *logging.Logger

	mu          sync.Mutex
	draftID     string
	status      Status
	lastSaveAt  time.Time
	lastError   error
	lastPayload []byte
	initialized bool
	initStarted bool
	autosaving  bool
	closed      bool
	saves       uint64
	// generation changes whenever the handle is reset or closed; responses
	// dispatched under an older generation are discarded.
	generation uint64

	timer    Timer
	timerSeq uint64
	pending  *F
}

// New creates a Coordinator with an empty handle.
func New[F any](backend Backend, conv Converter[F], locks *Registry, opts ...Option) *Coordinator[F] {
	cfg := buildConfig(opts)
	return &Coordinator[F]{
		backend: backend,
		conv:    conv,
		locks:   locks,
		cfg:     cfg,
		logger:  cfg.logger.WithComponent("coordinator").WithUser(locks.UserID()),
	}
}

// State returns a snapshot of the handle.
func (c *Coordinator[F]) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Status:          c.status,
		DraftID:         c.draftID,
		LastSaveAt:      c.lastSaveAt,
		LastError:       c.lastError,
		Initialized:     c.initialized,
		IsAutoSaving:    c.autosaving && c.status == StatusUpdating,
		AutosavePending: c.timer != nil,
		Saves:           c.saves,
	}
}

// SessionToken returns the token this session writes into its locks.
func (c *Coordinator[F]) SessionToken() string {
	return c.locks.Token()
}

// CreateDraft creates the remote draft for form, or adopts the draft named by
// the user's existing lock without a remote create. If the handle already
// names a draft its ID is returned unchanged. While another operation is in
// flight the call does nothing and returns "".
func (c *Coordinator[F]) CreateDraft(ctx context.Context, form F) (string, error) {
	id, _, err := c.create(ctx, form)
	return id, err
}

func (c *Coordinator[F]) create(ctx context.Context, form F) (id string, adopted bool, err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", false, ErrClosed
	}
	if c.draftID != "" {
		id := c.draftID
		c.mu.Unlock()
		return id, false, nil
	}
	if c.status.InFlight() {
		c.mu.Unlock()
		return "", false, nil
	}
	c.status = StatusCreating
	gen := c.generation
	c.mu.Unlock()

	if lock := c.readLock(ctx); lock != nil && lock.DraftID != "" {
		c.logger.Info("adopting draft from session lock", "draft_id", lock.DraftID)
		id, err := c.adopt(ctx, gen, lock.DraftID, nil, time.Time{})
		if err == nil {
			c.publish(event.NewDraftCreatedEvent(c.locks.UserID(), id, true))
		}
		return id, true, err
	}

	title, payload, err := c.encode(form)
	if err == nil {
		id, err = c.backend.Create(ctx, c.locks.UserID(), title, payload)
	}
	if err != nil {
		var active *ActiveDraftError
		if errors.As(err, &active) && active.DraftID != "" {
			c.logger.Info("backend reported an active draft, adopting it", "draft_id", active.DraftID)
			id, err := c.adopt(ctx, gen, active.DraftID, nil, time.Time{})
			if err == nil {
				c.publish(event.NewDraftCreatedEvent(c.locks.UserID(), id, true))
			}
			return id, true, err
		}
		return "", false, c.fail(gen, "create", "", err)
	}

	id, err = c.adopt(ctx, gen, id, payload, c.cfg.clock.Now())
	if err == nil {
		c.logger.WithDraft(id).Info("draft created", "bytes", len(payload))
		c.publish(event.NewDraftCreatedEvent(c.locks.UserID(), id, false))
	}
	return id, false, err
}

// adopt points the handle at id and writes this session's lock. A zero
// savedAt leaves lastSaveAt untouched. Callers publish their own events.
func (c *Coordinator[F]) adopt(ctx context.Context, gen uint64, id string, payload []byte, savedAt time.Time) (string, error) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.Warn("discarding create result for a reset handle", "draft_id", id)
		return "", ErrSuperseded
	}
	c.draftID = id
	c.lastPayload = payload
	if !savedAt.IsZero() {
		c.lastSaveAt = savedAt
	}
	if _, err := c.locks.Acquire(ctx, id); err != nil {
		lockErr := errors.NewLockError("acquire failed", err).WithUserID(c.locks.UserID())
		c.status = StatusError
		c.lastError = lockErr
		c.mu.Unlock()
		c.logger.WithDraft(id).Error("failed to write session lock", "error", err)
		c.publish(event.NewDraftSaveFailedEvent(id, "lock", lockErr))
		return id, lockErr
	}
	c.status = StatusIdle
	c.lastError = nil
	c.mu.Unlock()
	return id, nil
}

// UpdateDraft persists form to the current draft. It does nothing and
// returns nil when there is no draft, another operation is in flight, or
// this session no longer owns the draft lock.
func (c *Coordinator[F]) UpdateDraft(ctx context.Context, form F) error {
	return c.update(ctx, form, false)
}

func (c *Coordinator[F]) update(ctx context.Context, form F, autosave bool) error {
	c.mu.Lock()
	if c.closed || c.draftID == "" || c.status.InFlight() {
		c.mu.Unlock()
		return nil
	}
	id, gen := c.draftID, c.generation
	c.mu.Unlock()

	log := c.logger.WithDraft(id)
	owns, err := c.locks.Owns(ctx, id)
	if err != nil {
		log.Warn("skipping update, session lock unreadable", "error", err)
		return nil
	}
	if !owns {
		log.Debug("skipping update, session does not own the draft lock")
		return nil
	}

	c.mu.Lock()
	if c.closed || gen != c.generation || c.draftID != id || c.status.InFlight() {
		c.mu.Unlock()
		return nil
	}
	c.status = StatusUpdating
	c.autosaving = autosave
	c.mu.Unlock()

	title, payload, err := c.encode(form)
	if err == nil {
		err = c.backend.Update(ctx, id, title, payload)
	}
	if err != nil {
		return c.fail(gen, "update", id, err)
	}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		log.Debug("discarding update response for a reset handle")
		return nil
	}
	now := c.cfg.clock.Now()
	c.status = StatusIdle
	c.autosaving = false
	c.lastSaveAt = now
	c.lastError = nil
	c.lastPayload = payload
	c.saves++
	c.mu.Unlock()

	log.Debug("draft saved", "autosave", autosave, "bytes", len(payload))
	c.publish(event.NewDraftSavedEvent(id, now, autosave))
	return nil
}

// SubmitDraft stores form as the final version of the draft and marks it
// submitted. On success the lock is released and the handle is emptied. Any
// pending autosave is dropped.
func (c *Coordinator[F]) SubmitDraft(ctx context.Context, form F) error {
	op, err := c.beginTerminal(ctx)
	if err != nil {
		return err
	}

	title, payload, err := c.encode(form)
	if err == nil {
		err = c.backend.Submit(ctx, op.id, title, payload)
	}
	if err != nil {
		err = c.fail(op.gen, "submit", op.id, err)
		// The submitted form is the newest edit; keep it for autosave.
		c.restorePending(op.gen, &form)
		return err
	}

	if !c.finishTerminal(ctx, op.gen, op.id) {
		return nil
	}
	c.logger.WithDraft(op.id).Info("draft submitted")
	c.publish(event.NewDraftSubmittedEvent(op.id))
	return nil
}

// CancelDraft deletes or archives the current draft. A backend "not found"
// counts as success, and so does calling it with an empty handle. Archive
// stores the pending autosave snapshot if there is one, otherwise the last
// persisted payload.
func (c *Coordinator[F]) CancelDraft(ctx context.Context, action CancelAction) error {
	if _, err := ParseCancelAction(string(action)); err != nil {
		return err
	}

	op, err := c.beginTerminal(ctx)
	if errors.Is(err, errors.ErrNoDraft) {
		return nil
	}
	if err != nil {
		return err
	}
	log := c.logger.WithDraft(op.id)

	switch action {
	case CancelDelete:
		err = c.backend.Delete(ctx, op.id)
	case CancelArchive:
		payload := op.lastPayload
		if op.pending != nil {
			if p, encErr := c.conv.ToWire(*op.pending); encErr == nil {
				payload = p
			} else {
				log.Warn("archiving last saved payload, pending edit did not encode", "error", encErr)
			}
		}
		err = c.backend.Archive(ctx, op.id, payload)
	}
	if errors.Is(err, ErrNotFound) {
		log.Info("draft already gone, treating cancel as done", "action", string(action))
		err = nil
	}
	if err != nil {
		err = c.fail(op.gen, string(action), op.id, err)
		c.restorePending(op.gen, op.pending)
		return err
	}

	if !c.finishTerminal(ctx, op.gen, op.id) {
		return nil
	}
	log.Info("draft cancelled", "action", string(action))
	c.publish(event.NewDraftCancelledEvent(op.id, string(action)))
	return nil
}

// terminalOp is the handle state captured when a submit or cancel starts.
type terminalOp[F any] struct {
	id          string
	gen         uint64
	pending     *F
	lastPayload []byte
}

// beginTerminal moves the handle into Updating for a submit or cancel, takes
// the pending autosave snapshot and verifies that this session still owns
// the draft lock. When it does not, the handle is left as it was and a
// LockError matching errors.ErrLockNotHeld is returned.
func (c *Coordinator[F]) beginTerminal(ctx context.Context) (terminalOp[F], error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return terminalOp[F]{}, ErrClosed
	case c.draftID == "":
		c.mu.Unlock()
		return terminalOp[F]{}, errors.ErrNoDraft
	case c.status.InFlight():
		c.mu.Unlock()
		return terminalOp[F]{}, errors.ErrDraftBusy
	}
	op := terminalOp[F]{
		id:          c.draftID,
		gen:         c.generation,
		pending:     c.pending,
		lastPayload: c.lastPayload,
	}
	prev := c.status
	c.stopTimerLocked()
	c.status = StatusUpdating
	c.autosaving = false
	c.mu.Unlock()

	owns, err := c.locks.Owns(ctx, op.id)
	if err == nil && owns {
		return op, nil
	}
	if err == nil {
		err = errors.ErrLockNotHeld
	}
	c.logger.WithDraft(op.id).Warn("refusing to finish draft, session lock not held", "error", err)

	c.mu.Lock()
	if op.gen == c.generation && c.status == StatusUpdating {
		c.status = prev
	}
	c.mu.Unlock()
	c.restorePending(op.gen, op.pending)
	return terminalOp[F]{}, errors.NewLockError("session does not own draft "+op.id, err).WithUserID(c.locks.UserID())
}

// restorePending re-arms the autosave timer with form after a submit or
// cancel did not finish, unless the handle moved on or a newer edit was
// scheduled meanwhile.
func (c *Coordinator[F]) restorePending(gen uint64, form *F) {
	if form == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.generation || c.draftID == "" || c.pending != nil {
		return
	}
	c.armLocked(*form)
}

// finishTerminal releases the lock and empties the handle. It returns false
// if the handle was reset while the operation was in flight.
func (c *Coordinator[F]) finishTerminal(ctx context.Context, gen uint64, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.releaseLocked(ctx, id)
	c.resetLocked()
	return true
}

// LoadForm fetches draft id, adopts it into the handle, writes a fresh lock
// and returns the decoded form. Any pending autosave for the previous draft
// is dropped.
func (c *Coordinator[F]) LoadForm(ctx context.Context, id string) (F, error) {
	form, err := c.loadForm(ctx, id, true)
	if err == nil {
		c.publish(event.NewDraftRecoveredEvent(c.locks.UserID(), id, event.RecoveredFromExplicitID))
	}
	return form, err
}

// loadForm is LoadForm. When failOnMissing is false a missing draft returns
// ErrNotFound without moving the handle into Error.
func (c *Coordinator[F]) loadForm(ctx context.Context, id string, failOnMissing bool) (F, error) {
	var zero F
	if id == "" {
		return zero, errors.NewValidationError("draft id is required").WithField("draft_id")
	}

	gen, err := c.beginLoad()
	if err != nil {
		return zero, err
	}

	rec, err := c.backend.FetchByID(ctx, id)
	if err == nil && !rec.Unfinished() {
		err = errors.NewNotFoundError("draft", id)
	}
	if err != nil {
		if !failOnMissing && errors.Is(err, ErrNotFound) {
			c.mu.Lock()
			if gen == c.generation {
				c.status = StatusIdle
			}
			c.mu.Unlock()
			return zero, err
		}
		return zero, c.fail(gen, "load", id, err)
	}
	return c.adoptRecord(ctx, gen, rec)
}

func (c *Coordinator[F]) beginLoad() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	if c.status.InFlight() {
		return 0, errors.ErrDraftBusy
	}
	c.stopTimerLocked()
	c.status = StatusCreating
	return c.generation, nil
}

func (c *Coordinator[F]) adoptRecord(ctx context.Context, gen uint64, rec *Record) (F, error) {
	form, err := c.conv.FromWire(rec.Payload)
	if err != nil {
		var zero F
		return zero, c.fail(gen, "load", rec.ID, fmt.Errorf("%w: %v", errors.ErrPayloadCorrupted, err))
	}
	if _, err := c.adopt(ctx, gen, rec.ID, rec.Payload, rec.UpdatedAt); err != nil {
		return form, err
	}
	return form, nil
}

// ReleaseSession empties the handle and deletes the user's lock if this
// session owns it. It is used on an explicit user switch. A response still
// in flight is discarded when it arrives.
func (c *Coordinator[F]) ReleaseSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	id := c.draftID
	c.resetLocked()
	if id == "" {
		return nil
	}
	owns, err := c.locks.Owns(ctx, id)
	if err != nil || !owns {
		return err
	}
	return c.locks.Release(ctx)
}

// Close cancels any pending autosave without flushing it and discards
// responses still in flight. The lock is kept so a new session can resume
// the draft.
func (c *Coordinator[F]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.generation++
	if c.status.InFlight() {
		c.status = StatusIdle
	}
	c.autosaving = false
}

// fail records err as the handle's last error unless the handle moved on.
func (c *Coordinator[F]) fail(gen uint64, op, id string, err error) error {
	derr := errors.NewDraftError(op, err).WithDraftID(id)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return derr
	}
	c.status = StatusError
	c.autosaving = false
	c.lastError = derr
	c.mu.Unlock()

	c.logger.WithDraft(id).Warn("draft operation failed", "op", op, "error", err, "retryable", errors.IsRetryable(err))
	c.publish(event.NewDraftSaveFailedEvent(id, op, derr))
	return derr
}

func (c *Coordinator[F]) resetLocked() {
	c.stopTimerLocked()
	c.draftID = ""
	c.status = StatusIdle
	c.lastSaveAt = time.Time{}
	c.lastError = nil
	c.lastPayload = nil
	c.autosaving = false
	c.generation++
}

// releaseLocked deletes the user's lock when it names id and this session.
// An unreadable lock is deleted too.
func (c *Coordinator[F]) releaseLocked(ctx context.Context, id string) {
	lock, err := c.locks.Read(ctx)
	if err == nil && (lock == nil || lock.DraftID != id || lock.SessionToken != c.locks.Token()) {
		return
	}
	if err := c.locks.Release(ctx); err != nil {
		c.logger.WithDraft(id).Warn("failed to release session lock", "error", err)
	}
}

func (c *Coordinator[F]) readLock(ctx context.Context) *SessionLock {
	lock, err := c.locks.Read(ctx)
	if err != nil {
		c.logger.Warn("ignoring unreadable session lock", "error", err)
		return nil
	}
	return lock
}

func (c *Coordinator[F]) encode(form F) (string, []byte, error) {
	payload, err := c.conv.ToWire(form)
	if err != nil {
		return "", nil, err
	}
	return c.conv.Title(form), payload, nil
}

func (c *Coordinator[F]) publish(e event.Event) {
	c.cfg.bus.Publish(e)
}
