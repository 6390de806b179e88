package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/quickcheck/internal/event"
	"github.com/Iron-Ham/quickcheck/internal/maintenance"
	"github.com/Iron-Ham/quickcheck/internal/server"
)

var (
	serveAddr    string
	serveNoSweep bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the draft HTTP API",
	Long: `Serve the draft API under /api/v1 backed by the configured database.

Editors on other machines use it by setting backend.driver to "http" and
backend.url to this server. When maintenance.interval_minutes is set, stale
drafts are archived periodically while the server runs.`,
	RunE: runServe,
}

func registerServeCmd(parent *cobra.Command) {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveNoSweep, "no-sweep", false, "disable the periodic stale draft sweeper")
	parent.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	logger, err := newLogger(cfg, false)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	srv := server.New(st, server.Options{
		Addr:            cfg.Server.Addr,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		ShutdownTimeout: cfg.Server.ShutdownTimeout(),
		Logger:          logger,
	})

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(srv.ListenAndServe)

	if interval := cfg.Maintenance.Interval(); interval > 0 && !serveNoSweep {
		locks, err := openLocks(cfg, logger)
		if err != nil {
			return err
		}
		bus := event.NewBus(logger)
		bus.Subscribe(event.TypeSweepCompleted, func(e event.Event) {
			if ev, ok := e.(event.SweepCompletedEvent); ok && ev.Archived > 0 {
				logger.Info("stale drafts archived", "count", ev.Archived, "failed", ev.Failed)
			}
		})
		sweeper := maintenance.New(st, locks, maintenance.Options{
			StaleAfter:  cfg.Maintenance.StaleAfter(),
			Concurrency: cfg.Maintenance.Concurrency,
			Logger:      logger,
			Bus:         bus,
		})
		p.Go(func(ctx context.Context) error { return sweeper.Run(ctx, interval) })
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving draft API on %s (%s backend)\n", cfg.Server.Addr, st.Driver())
	return p.Wait()
}
