package tui

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/quickcheck/internal/event"
)

// App wraps the Bubbletea program
type App struct {
	program *tea.Program
	model   Model
	bus     *event.Bus
}

// New creates the editor application. bus may be nil; when set, save and
// lock events from the coordinator and lock watcher are shown live.
func New(ctx context.Context, coord Coordinator, bus *event.Bus, opts Options) *App {
	return &App{
		model: NewModel(ctx, coord, opts),
		bus:   bus,
	}
}

// Run starts the editor and blocks until it exits. It returns the final
// model so callers can report the outcome.
func (a *App) Run() (Model, error) {
	a.program = tea.NewProgram(a.model, tea.WithAltScreen())

	var subs []string
	if a.bus != nil {
		for _, eventType := range []string{event.TypeDraftSaved, event.TypeDraftSaveFailed, event.TypeLockLost} {
			subs = append(subs, a.bus.Subscribe(eventType, func(e event.Event) {
				if msg := msgForEvent(e); msg != nil {
					a.program.Send(msg)
				}
			}))
		}
	}
	defer func() {
		for _, id := range subs {
			a.bus.Unsubscribe(id)
		}
	}()

	// Quit cleanly on termination so the final save runs.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		if _, ok := <-sigChan; ok {
			a.program.Send(tea.KeyMsg{Type: tea.KeyEsc})
		}
	}()
	defer func() {
		signal.Stop(sigChan)
		close(sigChan)
	}()

	final, err := a.program.Run()
	if m, ok := final.(Model); ok {
		return m, err
	}
	return a.model, err
}
