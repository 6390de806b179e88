// Package event provides a pub-sub event bus for decoupled inter-component
// communication in quickcheck.
//
// The draft coordinator publishes lifecycle events, the file lock store
// publishes ownership changes, and the terminal editor and logging subscribe
// to them. Publishers never know who is listening.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Draft Lifecycle:
//   - [DraftCreatedEvent]: a draft was created or adopted
//   - [DraftRecoveredEvent]: initialization settled on a draft
//   - [DraftSavedEvent]: an update succeeded
//   - [DraftSaveFailedEvent]: a create or update failed
//   - [DraftSubmittedEvent], [DraftCancelledEvent]: terminal transitions
//
// Locks:
//   - [LockLostEvent]: another session took over the user's lock
//
// Maintenance:
//   - [SweepCompletedEvent]: the stale draft sweeper finished a pass
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously on the publisher's goroutine and protected against panics.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//
//	bus.Subscribe(event.TypeDraftSaved, func(e event.Event) {
//	    saved := e.(event.DraftSavedEvent)
//	    fmt.Println("saved", saved.DraftID)
//	})
//
//	bus.Publish(event.NewDraftSavedEvent("d-1", time.Now(), true))
package event
