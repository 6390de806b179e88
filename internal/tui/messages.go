package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/quickcheck/internal/event"
	"github.com/Iron-Ham/quickcheck/internal/quickcheck"
)

// initDoneMsg carries the result of recovery.
type initDoneMsg struct {
	form quickcheck.Form
	err  error
}

// opDoneMsg reports a user-triggered coordinator call.
type opDoneMsg struct {
	op  string
	err error
	// skipped is set when a save returned without persisting anything.
	skipped bool
}

// savedMsg is sent when any save (manual or autosave) succeeds.
type savedMsg struct {
	at       time.Time
	autosave bool
}

// saveFailedMsg is sent when a save fails.
type saveFailedMsg struct {
	err error
}

// lockLostMsg is sent when another session takes over the draft.
type lockLostMsg struct {
	newDraftID string
}

// tickMsg refreshes the status bar.
type tickMsg time.Time

const tickInterval = 500 * time.Millisecond

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// msgForEvent translates bus events the editor cares about. It returns nil
// for other events.
func msgForEvent(e event.Event) tea.Msg {
	switch ev := e.(type) {
	case event.DraftSavedEvent:
		return savedMsg{at: ev.SavedAt, autosave: ev.Autosave}
	case event.DraftSaveFailedEvent:
		return saveFailedMsg{err: ev.Err}
	case event.LockLostEvent:
		return lockLostMsg{newDraftID: ev.NewDraftID}
	}
	return nil
}
