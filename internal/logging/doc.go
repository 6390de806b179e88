// Package logging provides structured logging for quickcheck.
//
// This package wraps Go's log/slog. A logger either appends JSON lines to
// quickcheck.log inside a log directory, or writes to stderr, choosing a
// human-readable text handler when stderr is a terminal and JSON otherwise.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (user ID, draft ID, component)
//   - Console-friendly text output on interactive terminals
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer safely.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/logs", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	draftLog := logger.WithUser("tech-7").WithDraft(id)
//	draftLog.Info("draft saved", "autosave", true)
//
// Tests that do not care about output use [NopLogger].
package logging
