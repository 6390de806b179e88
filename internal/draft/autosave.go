package draft

import (
	"context"
	"fmt"
)

// ScheduleAutosave arms the debounce timer with form, replacing any snapshot
// armed earlier. When the timer fires the latest snapshot is passed to
// UpdateDraft. It does nothing when there is no draft or an update is in
// flight.
func (c *Coordinator[F]) ScheduleAutosave(form F) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.draftID == "" || c.status == StatusUpdating {
		return
	}

	c.armLocked(form)
}

// armLocked replaces any armed timer with one that saves form.
func (c *Coordinator[F]) armLocked(form F) {
	c.stopTimerLocked()
	snapshot := form
	c.pending = &snapshot
	seq := c.timerSeq
	c.timer = c.cfg.clock.AfterFunc(c.cfg.debounce, func() { c.fireAutosave(seq) })
}

// stopTimerLocked cancels the armed timer and drops its snapshot. Bumping
// timerSeq also disarms a callback that already started but has not yet
// taken the mutex.
func (c *Coordinator[F]) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = nil
	c.timerSeq++
}

func (c *Coordinator[F]) fireAutosave(seq uint64) {
	c.mu.Lock()
	if seq != c.timerSeq || c.pending == nil {
		c.mu.Unlock()
		return
	}
	form := *c.pending
	c.pending = nil
	c.timer = nil
	c.mu.Unlock()

	// Nothing above the timer goroutine can handle a panic or an error.
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("autosave panicked", "panic", r)
			c.mu.Lock()
			if c.status == StatusUpdating && c.autosaving {
				c.status = StatusError
				c.autosaving = false
				c.lastError = fmt.Errorf("autosave panicked: %v", r)
			}
			c.mu.Unlock()
		}
	}()

	ctx, cancel := context.WithTimeout(c.cfg.baseCtx, c.cfg.requestTimeout)
	defer cancel()
	if err := c.update(ctx, form, true); err != nil {
		c.logger.Debug("autosave failed, will retry on next edit", "error", err)
	}
}
