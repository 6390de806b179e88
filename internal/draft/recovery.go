package draft

import (
	"context"

	"github.com/Iron-Ham/quickcheck/internal/errors"
	"github.com/Iron-Ham/quickcheck/internal/event"
)

// InitOptions controls Initialize.
type InitOptions[F any] struct {
	// DraftID is an explicitly requested draft, e.g. from a deep link.
	DraftID string
	// Seed is the form used when a new draft has to be created.
	Seed F
}

// Initialize resolves which draft this session edits and returns its form.
// The first match wins:
//
//  1. opts.DraftID, which must exist
//  2. the draft named by the user's session lock
//  3. the newest unfinished draft the backend holds for the user
//  4. a new draft created from opts.Seed
//
// A lock naming a draft that no longer exists is released and recovery
// continues. Initialize runs once per coordinator; later calls return the
// zero form and nil. State().Initialized is true once it returns, whether or
// not it succeeded.
func (c *Coordinator[F]) Initialize(ctx context.Context, opts InitOptions[F]) (F, error) {
	var zero F

	c.mu.Lock()
	if c.initStarted || c.closed {
		c.mu.Unlock()
		return zero, nil
	}
	c.initStarted = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.initialized = true
		c.mu.Unlock()
	}()

	if opts.DraftID != "" {
		form, err := c.loadForm(ctx, opts.DraftID, true)
		if err != nil {
			return zero, err
		}
		c.recovered(opts.DraftID, event.RecoveredFromExplicitID)
		return form, nil
	}

	if lock := c.readLock(ctx); lock != nil && lock.DraftID != "" {
		form, err := c.loadForm(ctx, lock.DraftID, false)
		switch {
		case err == nil:
			c.recovered(lock.DraftID, event.RecoveredFromLock)
			return form, nil
		case errors.Is(err, ErrNotFound):
			c.logger.Info("locked draft no longer exists, releasing lock", "draft_id", lock.DraftID)
			if relErr := c.locks.Release(ctx); relErr != nil {
				c.logger.Warn("failed to release stale lock", "error", relErr)
			}
		default:
			return zero, err
		}
	}

	form, found, err := c.resumeFromServer(ctx)
	if err != nil || found {
		return form, err
	}

	id, adopted, err := c.create(ctx, opts.Seed)
	if err != nil {
		return zero, err
	}
	if adopted {
		// Another session created a draft first; show its content.
		form, err := c.loadForm(ctx, id, true)
		if err != nil {
			return zero, err
		}
		c.recovered(id, event.RecoveredFromServer)
		return form, nil
	}
	c.recovered(id, event.RecoveredByCreate)
	return opts.Seed, nil
}

// resumeFromServer adopts the newest unfinished draft the backend holds for
// the user.
func (c *Coordinator[F]) resumeFromServer(ctx context.Context) (F, bool, error) {
	var zero F

	gen, err := c.beginLoad()
	if err != nil {
		return zero, false, err
	}

	records, err := c.backend.FetchUnfinishedForUser(ctx, c.locks.UserID())
	if err != nil {
		return zero, false, c.fail(gen, "recover", "", err)
	}

	for i := range records {
		if !records[i].Unfinished() {
			continue
		}
		form, err := c.adoptRecord(ctx, gen, &records[i])
		if err != nil {
			return zero, false, err
		}
		c.recovered(records[i].ID, event.RecoveredFromServer)
		return form, true, nil
	}

	c.mu.Lock()
	if gen == c.generation {
		c.status = StatusIdle
	}
	c.mu.Unlock()
	return zero, false, nil
}

func (c *Coordinator[F]) recovered(id string, source event.RecoverySource) {
	c.logger.WithDraft(id).Info("draft recovered", "source", string(source))
	c.publish(event.NewDraftRecoveredEvent(c.locks.UserID(), id, source))
}
