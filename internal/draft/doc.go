// Package draft coordinates the lifecycle of a long-running form that is
// persisted incrementally as a draft record.
//
// A [Coordinator] owns one draft handle for one user session. It creates the
// remote record on first use, debounces edits into single updates, and ends
// the draft exactly once through [Coordinator.SubmitDraft] or
// [Coordinator.CancelDraft]. A per-user [SessionLock], written through a
// [Registry], records which draft the session owns so that a reload resumes
// the same draft instead of creating another.
//
// # Lifecycle
//
//	Idle -> Creating -> Idle | Error
//	Idle -> Updating -> Idle | Error
//
// Error is a resting state; the next create or update retries. Only one
// operation runs at a time per handle. Concurrent update calls are silent
// no-ops, concurrent submit and cancel calls fail with errors.ErrDraftBusy.
//
// # Recovery
//
// [Coordinator.Initialize] resolves the draft to edit, in order: an explicit
// draft ID, the user's session lock, the newest unfinished draft on the
// backend, and finally a new draft built from a seed form.
//
// # Autosave
//
// [Coordinator.ScheduleAutosave] keeps only the latest snapshot and persists
// it once the debounce interval passes without another edit. Errors from
// timer-driven saves are recorded in the handle state, never returned.
// [Coordinator.Close] cancels a pending autosave without flushing it.
//
// # Basic Usage
//
//	locks := draft.NewRegistry(lockStore, userID, nil)
//	coord := draft.New[quickcheck.Form](backend, quickcheck.Converter{}, locks,
//	    draft.WithDebounce(time.Second),
//	    draft.WithLogger(logger),
//	)
//	defer coord.Close()
//
//	form, err := coord.Initialize(ctx, draft.InitOptions[quickcheck.Form]{Seed: seed})
//	...
//	coord.ScheduleAutosave(form)
//	...
//	err = coord.SubmitDraft(ctx, form)
package draft
