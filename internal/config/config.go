package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete quickcheck configuration
type Config struct {
	Draft       DraftConfig       `mapstructure:"draft" yaml:"draft" toml:"draft"`
	Lock        LockConfig        `mapstructure:"lock" yaml:"lock" toml:"lock"`
	Backend     BackendConfig     `mapstructure:"backend" yaml:"backend" toml:"backend"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server" toml:"server"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance" yaml:"maintenance" toml:"maintenance"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging" toml:"logging"`
	TUI         TUIConfig         `mapstructure:"tui" yaml:"tui" toml:"tui"`
}

// DraftConfig controls the draft coordinator
type DraftConfig struct {
	// DebounceMs is the quiet period after the last edit before an autosave fires (default: 1000)
	DebounceMs int `mapstructure:"debounce_ms" yaml:"debounce_ms" toml:"debounce_ms"`
	// RequestTimeoutSeconds bounds each backend call made by the coordinator (default: 15)
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds" toml:"request_timeout_seconds"`
}

// LockConfig controls where session locks are kept
type LockConfig struct {
	// Dir is the directory holding one lock file per user.
	// If empty, defaults to "locks" under the data directory.
	// Supports ~ for home directory expansion.
	Dir string `mapstructure:"dir" yaml:"dir" toml:"dir"`
	// Watch notifies the editor when another session takes over the lock (default: true)
	Watch bool `mapstructure:"watch" yaml:"watch" toml:"watch"`
}

// BackendConfig selects the draft record store
type BackendConfig struct {
	// Driver is one of "sqlite", "postgres" or "http" (default: "sqlite")
	Driver string `mapstructure:"driver" yaml:"driver" toml:"driver"`
	// DSN is the database path (sqlite) or connection string (postgres).
	// If empty with the sqlite driver, defaults to "drafts.db" under the data directory.
	DSN string `mapstructure:"dsn" yaml:"dsn" toml:"dsn"`
	// URL is the base URL of a quickcheck server, used by the http driver
	URL string `mapstructure:"url" yaml:"url" toml:"url"`
	// SingleActiveDraft rejects a create when the user already has an unfinished draft (default: false)
	SingleActiveDraft bool `mapstructure:"single_active_draft" yaml:"single_active_draft" toml:"single_active_draft"`
	// CompressThresholdBytes compresses payloads at or above this size, 0 disables (default: 4096)
	CompressThresholdBytes int `mapstructure:"compress_threshold_bytes" yaml:"compress_threshold_bytes" toml:"compress_threshold_bytes"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	// Addr is the listen address (default: ":8080")
	Addr string `mapstructure:"addr" yaml:"addr" toml:"addr"`
	// AllowedOrigins lists CORS origins; empty allows none
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	// ShutdownTimeoutSeconds bounds graceful shutdown (default: 10)
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds"`
}

// MaintenanceConfig controls the stale draft sweeper
type MaintenanceConfig struct {
	// StaleAfterHours is how long an unfinished draft may sit untouched before it is archived (default: 72)
	StaleAfterHours int `mapstructure:"stale_after_hours" yaml:"stale_after_hours" toml:"stale_after_hours"`
	// Concurrency is the number of drafts archived in parallel (default: 4)
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" toml:"concurrency"`
	// IntervalMinutes runs the sweeper periodically inside "serve", 0 = disabled (default: 0)
	IntervalMinutes int `mapstructure:"interval_minutes" yaml:"interval_minutes" toml:"interval_minutes"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Enabled controls whether logs are written to a file in Dir (default: true)
	// When false, logs go to stderr.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" toml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level" toml:"level"`
	// Dir is the log directory. If empty, defaults to "logs" under the data directory.
	Dir string `mapstructure:"dir" yaml:"dir" toml:"dir"`
}

// TUIConfig controls the terminal editor
type TUIConfig struct {
	// Theme is the color theme for the editor (default: "default")
	// Options: "default", "monokai", "dracula", "nord"
	Theme string `mapstructure:"theme" yaml:"theme" toml:"theme"`
	// ShowSaveTimes shows the last autosave time in the status bar (default: true)
	ShowSaveTimes bool `mapstructure:"show_save_times" yaml:"show_save_times" toml:"show_save_times"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Draft: DraftConfig{
			DebounceMs:            1000,
			RequestTimeoutSeconds: 15,
		},
		Lock: LockConfig{
			Dir:   "", // Empty means use default: <data dir>/locks
			Watch: true,
		},
		Backend: BackendConfig{
			Driver:                 "sqlite",
			DSN:                    "",
			URL:                    "",
			SingleActiveDraft:      false,
			CompressThresholdBytes: 4096,
		},
		Server: ServerConfig{
			Addr:                   ":8080",
			AllowedOrigins:         []string{},
			ShutdownTimeoutSeconds: 10,
		},
		Maintenance: MaintenanceConfig{
			StaleAfterHours: 72,
			Concurrency:     4,
			IntervalMinutes: 0,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "",
		},
		TUI: TUIConfig{
			Theme:         "default",
			ShowSaveTimes: true,
		},
	}
}

// Debounce returns the autosave debounce as a time.Duration
func (c *DraftConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// RequestTimeout returns the per-call backend timeout as a time.Duration
func (c *DraftConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown bound as a time.Duration
func (c *ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// StaleAfter returns the sweeper age threshold as a time.Duration
func (c *MaintenanceConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterHours) * time.Hour
}

// Interval returns the sweeper period as a time.Duration (0 means disabled)
func (c *MaintenanceConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// ResolveLockDir returns the resolved lock directory.
func (c *LockConfig) ResolveLockDir() string {
	return resolvePath(c.Dir, "locks")
}

// ResolveLogDir returns the resolved log directory.
func (c *LoggingConfig) ResolveLogDir() string {
	return resolvePath(c.Dir, "logs")
}

// ResolveDSN returns the sqlite database path, or the configured DSN verbatim
// for other drivers.
func (c *BackendConfig) ResolveDSN() string {
	if c.Driver != "sqlite" {
		return c.DSN
	}
	return resolvePath(c.DSN, "drafts.db")
}

// resolvePath expands ~ and places relative paths under DataDir. An empty
// path resolves to DataDir/fallback.
func resolvePath(path, fallback string) string {
	if path == "" {
		return filepath.Join(DataDir(), fallback)
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(DataDir(), path)
	}

	return path
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Draft defaults
	viper.SetDefault("draft.debounce_ms", defaults.Draft.DebounceMs)
	viper.SetDefault("draft.request_timeout_seconds", defaults.Draft.RequestTimeoutSeconds)

	// Lock defaults
	viper.SetDefault("lock.dir", defaults.Lock.Dir)
	viper.SetDefault("lock.watch", defaults.Lock.Watch)

	// Backend defaults
	viper.SetDefault("backend.driver", defaults.Backend.Driver)
	viper.SetDefault("backend.dsn", defaults.Backend.DSN)
	viper.SetDefault("backend.url", defaults.Backend.URL)
	viper.SetDefault("backend.single_active_draft", defaults.Backend.SingleActiveDraft)
	viper.SetDefault("backend.compress_threshold_bytes", defaults.Backend.CompressThresholdBytes)

	// Server defaults
	viper.SetDefault("server.addr", defaults.Server.Addr)
	viper.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)
	viper.SetDefault("server.shutdown_timeout_seconds", defaults.Server.ShutdownTimeoutSeconds)

	// Maintenance defaults
	viper.SetDefault("maintenance.stale_after_hours", defaults.Maintenance.StaleAfterHours)
	viper.SetDefault("maintenance.concurrency", defaults.Maintenance.Concurrency)
	viper.SetDefault("maintenance.interval_minutes", defaults.Maintenance.IntervalMinutes)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	// TUI defaults
	viper.SetDefault("tui.theme", defaults.TUI.Theme)
	viper.SetDefault("tui.show_save_times", defaults.TUI.ShowSaveTimes)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "quickcheck")
	}
	// Fall back to ~/.config/quickcheck
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quickcheck"
	}
	return filepath.Join(home, ".config", "quickcheck")
}

// DataDir returns the path to the user's data directory, where the default
// database, lock files and logs live.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "quickcheck")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quickcheck"
	}
	return filepath.Join(home, ".local", "share", "quickcheck")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidDrivers returns the list of valid backend drivers
func ValidDrivers() []string {
	return []string{"sqlite", "postgres", "http"}
}

// IsValidDriver checks if the given driver is valid
func IsValidDriver(driver string) bool {
	for _, valid := range ValidDrivers() {
		if driver == valid {
			return true
		}
	}
	return false
}
