// Package errors provides centralized error definitions and error handling utilities
// for the quickcheck codebase. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - DraftError: errors raised by the draft coordinator for a given operation
//   - LockError: errors reading or writing session locks
//   - BackendError: errors returned by the remote draft persistence layer
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewDraftError("update", errors.ErrBackendUnavailable).WithDraftID(id)
//	err := errors.NewNotFoundError("draft", id)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrDraftNotFound) { ... }
//
//	var backendErr *errors.BackendError
//	if errors.As(err, &backendErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Draft-related sentinel errors
var (
	// ErrDraftNotFound indicates that a draft record does not exist or is no longer unfinished.
	ErrDraftNotFound = New("draft not found")
	// ErrActiveDraftExists indicates the backend refused to create a second unfinished draft for a user.
	ErrActiveDraftExists = New("user already has an active draft")
	// ErrDraftBusy indicates another operation is in flight for the same draft handle.
	ErrDraftBusy = New("draft operation already in flight")
	// ErrNoDraft indicates an operation needs a draft but the handle is empty.
	ErrNoDraft = New("no active draft")
)

// Lock-related sentinel errors
var (
	// ErrLockNotHeld indicates the calling session does not own the draft lock.
	ErrLockNotHeld = New("session lock not held")
	// ErrLockCorrupted indicates a stored lock could not be decoded.
	ErrLockCorrupted = New("session lock corrupted")
)

// Backend-related sentinel errors
var (
	// ErrBackendUnavailable indicates the persistence backend could not be reached.
	ErrBackendUnavailable = New("draft backend unavailable")
	// ErrPayloadCorrupted indicates a stored payload could not be decoded.
	ErrPayloadCorrupted = New("draft payload corrupted")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// QuickcheckError is the base interface for all quickcheck errors.
type QuickcheckError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error      { return e.cause }
func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) IsRetryable() bool  { return e.retryable }
func (e *baseError) IsUserFacing() bool { return e.userFacing }

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// DraftError represents a failed coordinator operation.
//
// Example:
//
//	err := errors.NewDraftError("create", cause).WithDraftID("abc")
//	fmt.Println(err) // "draft create failed [draft=abc]: <cause>"
type DraftError struct {
	baseError
	Op      string
	DraftID string
}

// NewDraftError creates a new DraftError for the named operation.
// Retryability is inherited from the cause.
func NewDraftError(op string, cause error) *DraftError {
	return &DraftError{
		baseError: baseError{
			message:    fmt.Sprintf("draft %s failed", op),
			cause:      cause,
			severity:   SeverityError,
			retryable:  IsRetryable(cause),
			userFacing: true,
		},
		Op: op,
	}
}

// WithDraftID adds a draft ID to the error context.
func (e *DraftError) WithDraftID(id string) *DraftError {
	e.DraftID = id
	return e
}

// WithSeverity sets the error severity.
func (e *DraftError) WithSeverity(s Severity) *DraftError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *DraftError) Error() string {
	prefix := e.message
	if e.DraftID != "" {
		prefix = fmt.Sprintf("%s [draft=%s]", e.message, e.DraftID)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// LockError represents errors reading or writing session locks.
type LockError struct {
	baseError
	UserID string
	Path   string
}

// NewLockError creates a new LockError.
func NewLockError(message string, cause error) *LockError {
	return &LockError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: false,
		},
	}
}

// WithUserID adds the lock owner to the error context.
func (e *LockError) WithUserID(id string) *LockError {
	e.UserID = id
	return e
}

// WithPath adds the lock file path to the error context.
func (e *LockError) WithPath(path string) *LockError {
	e.Path = path
	return e
}

// Error returns the formatted error message.
func (e *LockError) Error() string {
	var parts []string
	if e.UserID != "" {
		parts = append(parts, fmt.Sprintf("user=%s", e.UserID))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}

	prefix := "lock error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("lock error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// BackendError represents a failure reported by the remote draft store.
// StatusCode is the HTTP status when the backend is reached over HTTP.
type BackendError struct {
	baseError
	Op         string
	StatusCode int
}

// NewBackendError creates a new BackendError. Server-side (5xx) and
// transport failures are retryable; client errors are not.
func NewBackendError(op string, statusCode int, cause error) *BackendError {
	retryable := statusCode == 0 || statusCode >= 500 || statusCode == 429
	return &BackendError{
		baseError: baseError{
			message:    fmt.Sprintf("backend %s", op),
			cause:      cause,
			severity:   SeverityError,
			retryable:  retryable,
			userFacing: false,
		},
		Op:         op,
		StatusCode: statusCode,
	}
}

// Error returns the formatted error message.
func (e *BackendError) Error() string {
	prefix := e.message
	if e.StatusCode != 0 {
		prefix = fmt.Sprintf("%s [status=%d]", e.message, e.StatusCode)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
// It matches ErrDraftNotFound when the resource type is "draft".
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s not found", resourceType),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.ResourceID != "" {
		return fmt.Sprintf("%s not found: %s", e.ResourceType, e.ResourceID)
	}
	return e.message
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrDraftNotFound && e.ResourceType == "draft"
}

// ValidationError represents invalid input or state.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			cause:      ErrInvalidInput,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.message)
	}
	if e.Value != nil {
		return fmt.Sprintf("validation error [%s=%v]: %s", e.Field, e.Value, e.message)
	}
	return fmt.Sprintf("validation error [%s]: %s", e.Field, e.message)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// where retrying the operation might succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var qcErr QuickcheckError
	if As(err, &qcErr) {
		return qcErr.IsRetryable()
	}

	return Is(err, ErrTimeout) || Is(err, ErrBackendUnavailable)
}

// IsNotFound reports whether err means the draft no longer exists.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrDraftNotFound)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var qcErr QuickcheckError
	if As(err, &qcErr) {
		return qcErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement QuickcheckError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var qcErr QuickcheckError
	if As(err, &qcErr) {
		return qcErr.Severity()
	}
	return SeverityError
}

// Wrap wraps an error with an additional message. Returns nil for a nil error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
