package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Iron-Ham/quickcheck/internal/client"
	"github.com/Iron-Ham/quickcheck/internal/config"
	"github.com/Iron-Ham/quickcheck/internal/draft"
	"github.com/Iron-Ham/quickcheck/internal/logging"
	"github.com/Iron-Ham/quickcheck/internal/session"
	"github.com/Iron-Ham/quickcheck/internal/store"
)

// loadConfig reads the merged configuration and rejects invalid values
// instead of silently falling back to defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. File logging goes to the configured
// log directory; otherwise entries go to stderr. The editor forces file
// logging because stderr output would corrupt the screen.
func newLogger(cfg *config.Config, forceFile bool) (*logging.Logger, error) {
	dir := ""
	if cfg.Logging.Enabled || forceFile {
		dir = cfg.Logging.ResolveLogDir()
	}
	return logging.NewLogger(dir, cfg.Logging.Level)
}

// openBackend returns the draft backend selected by backend.driver and a
// function releasing it.
func openBackend(ctx context.Context, cfg *config.Config, logger *logging.Logger) (draft.Backend, func(), error) {
	if cfg.Backend.Driver == "http" {
		c, err := client.New(cfg.Backend.URL,
			client.WithLogger(logger),
			client.WithHTTPClient(&http.Client{Timeout: cfg.Draft.RequestTimeout()}),
		)
		if err != nil {
			return nil, nil, err
		}
		return c, func() {}, nil
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return st, func() {
		if err := st.Close(); err != nil {
			logger.Warn("close draft store", "error", err)
		}
	}, nil
}

// openStore opens the database directly. Commands that administer drafts
// need it; the http driver only offers the session operations.
func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*store.Store, error) {
	if cfg.Backend.Driver == "http" {
		return nil, fmt.Errorf("this command needs direct database access; set backend.driver to sqlite or postgres")
	}
	st, err := store.Open(ctx, store.Options{
		Driver:            cfg.Backend.Driver,
		DSN:               cfg.Backend.ResolveDSN(),
		SingleActive:      cfg.Backend.SingleActiveDraft,
		CompressThreshold: cfg.Backend.CompressThresholdBytes,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open draft store: %w", err)
	}
	return st, nil
}

// openLocks opens the lock directory shared by editor sessions.
func openLocks(cfg *config.Config, logger *logging.Logger) (*session.FileLockStore, error) {
	locks, err := session.NewFileLockStore(cfg.Lock.ResolveLockDir(), logger)
	if err != nil {
		return nil, fmt.Errorf("open lock directory: %w", err)
	}
	return locks, nil
}
