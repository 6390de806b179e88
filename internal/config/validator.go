package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "draft.debounce_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidThemes returns the list of valid editor themes.
// These names must match the palettes registered in tui/styles
// (defined separately to avoid a circular import).
func ValidThemes() []string {
	return []string{"default", "monokai", "dracula", "nord"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateDraft()...)
	errors = append(errors, c.validateLock()...)
	errors = append(errors, c.validateBackend()...)
	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateMaintenance()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateTUI()...)

	return errors
}

// validateDraft validates the DraftConfig
func (c *Config) validateDraft() []ValidationError {
	var errors []ValidationError

	const minDebounceMs = 50
	const maxDebounceMs = 60_000

	if c.Draft.DebounceMs < minDebounceMs {
		errors = append(errors, ValidationError{
			Field:   "draft.debounce_ms",
			Value:   c.Draft.DebounceMs,
			Message: fmt.Sprintf("must be at least %dms", minDebounceMs),
		})
	}
	if c.Draft.DebounceMs > maxDebounceMs {
		errors = append(errors, ValidationError{
			Field:   "draft.debounce_ms",
			Value:   c.Draft.DebounceMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxDebounceMs),
		})
	}

	if c.Draft.RequestTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "draft.request_timeout_seconds",
			Value:   c.Draft.RequestTimeoutSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

// validateLock validates the LockConfig
func (c *Config) validateLock() []ValidationError {
	return validatePath("lock.dir", c.Lock.Dir)
}

// validateBackend validates the BackendConfig
func (c *Config) validateBackend() []ValidationError {
	var errors []ValidationError

	if !IsValidDriver(c.Backend.Driver) {
		errors = append(errors, ValidationError{
			Field:   "backend.driver",
			Value:   c.Backend.Driver,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidDrivers(), ", ")),
		})
	}

	switch c.Backend.Driver {
	case "postgres":
		if c.Backend.DSN == "" {
			errors = append(errors, ValidationError{
				Field:   "backend.dsn",
				Value:   c.Backend.DSN,
				Message: "is required for the postgres driver",
			})
		}
	case "http":
		if c.Backend.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "backend.url",
				Value:   c.Backend.URL,
				Message: "is required for the http driver",
			})
		} else if u, err := url.Parse(c.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "backend.url",
				Value:   c.Backend.URL,
				Message: "must be an absolute URL",
			})
		}
	case "sqlite":
		errors = append(errors, validatePath("backend.dsn", c.Backend.DSN)...)
	}

	if c.Backend.CompressThresholdBytes < 0 {
		errors = append(errors, ValidationError{
			Field:   "backend.compress_threshold_bytes",
			Value:   c.Backend.CompressThresholdBytes,
			Message: "must be non-negative (0 disables compression)",
		})
	}

	return errors
}

// validateServer validates the ServerConfig
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if c.Server.Addr == "" {
		errors = append(errors, ValidationError{
			Field:   "server.addr",
			Value:   c.Server.Addr,
			Message: "cannot be empty",
		})
	}

	for i, origin := range c.Server.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("server.allowed_origins[%d]", i),
				Value:   origin,
				Message: "must be \"*\" or an origin such as https://shop.example.com",
			})
		}
	}

	if c.Server.ShutdownTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.shutdown_timeout_seconds",
			Value:   c.Server.ShutdownTimeoutSeconds,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateMaintenance validates the MaintenanceConfig
func (c *Config) validateMaintenance() []ValidationError {
	var errors []ValidationError

	if c.Maintenance.StaleAfterHours < 1 {
		errors = append(errors, ValidationError{
			Field:   "maintenance.stale_after_hours",
			Value:   c.Maintenance.StaleAfterHours,
			Message: "must be at least 1",
		})
	}

	const maxConcurrency = 64
	if c.Maintenance.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "maintenance.concurrency",
			Value:   c.Maintenance.Concurrency,
			Message: "must be at least 1",
		})
	}
	if c.Maintenance.Concurrency > maxConcurrency {
		errors = append(errors, ValidationError{
			Field:   "maintenance.concurrency",
			Value:   c.Maintenance.Concurrency,
			Message: fmt.Sprintf("exceeds maximum of %d", maxConcurrency),
		})
	}

	if c.Maintenance.IntervalMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "maintenance.interval_minutes",
			Value:   c.Maintenance.IntervalMinutes,
			Message: "must be non-negative (0 disables the periodic sweep)",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	errors = append(errors, validatePath("logging.dir", c.Logging.Dir)...)

	return errors
}

// validateTUI validates the TUIConfig
func (c *Config) validateTUI() []ValidationError {
	var errors []ValidationError

	if c.TUI.Theme != "" && !slices.Contains(ValidThemes(), c.TUI.Theme) {
		errors = append(errors, ValidationError{
			Field:   "tui.theme",
			Value:   c.TUI.Theme,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidThemes(), ", ")),
		})
	}

	return errors
}

// validatePath checks an optional filesystem path for characters and
// lengths no filesystem accepts.
func validatePath(field, path string) []ValidationError {
	var errors []ValidationError
	if path == "" {
		return nil
	}

	// Check for null bytes which are invalid in paths
	if strings.ContainsRune(path, '\x00') {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: "path contains invalid null character",
		})
	}

	// Reasonable path length limit (most filesystems have limits around 4096)
	const maxPathLength = 4096
	if len(path) > maxPathLength {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
		})
	}

	return errors
}
