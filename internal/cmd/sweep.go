package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/quickcheck/internal/maintenance"
)

var (
	sweepOlderThan   time.Duration
	sweepDryRun      bool
	sweepConcurrency int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Archive abandoned drafts",
	Long: `Archive unfinished drafts that nobody has touched for a while.

Archived drafts keep their last saved content. Session locks naming them are
removed so the next editor session starts fresh.

Examples:
  quickcheck sweep --dry-run
  quickcheck sweep --older-than 168h`,
	RunE: runSweep,
}

func registerSweepCmd(parent *cobra.Command) {
	sweepCmd.Flags().DurationVar(&sweepOlderThan, "older-than", 0, "minimum idle time (default: maintenance.stale_after_hours)")
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "list the drafts that would be archived")
	sweepCmd.Flags().IntVar(&sweepConcurrency, "concurrency", 0, "drafts archived in parallel (default: maintenance.concurrency)")
	parent.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	if sweepOlderThan < 0 {
		return fmt.Errorf("--older-than must be positive")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, false)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	ctx := cmd.Context()
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	locks, err := openLocks(cfg, logger)
	if err != nil {
		return err
	}

	opts := maintenance.Options{
		StaleAfter:  cfg.Maintenance.StaleAfter(),
		Concurrency: cfg.Maintenance.Concurrency,
		DryRun:      sweepDryRun,
		Logger:      logger,
	}
	if sweepOlderThan > 0 {
		opts.StaleAfter = sweepOlderThan
	}
	if sweepConcurrency > 0 {
		opts.Concurrency = sweepConcurrency
	}

	res, err := maintenance.New(st, locks, opts).Sweep(ctx)
	if err != nil {
		return err
	}
	printSweepResult(cmd.OutOrStdout(), res, sweepDryRun)
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d drafts could not be archived", len(res.Failed))
	}
	return nil
}

func printSweepResult(w io.Writer, res *maintenance.Result, dryRun bool) {
	cutoff := res.Cutoff.Local().Format(time.DateTime)
	if len(res.Candidates) == 0 {
		fmt.Fprintf(w, "No unfinished drafts idle since before %s.\n", cutoff)
		return
	}

	if dryRun {
		rows := make([][]string, 0, len(res.Candidates))
		for _, rec := range res.Candidates {
			rows = append(rows, []string{rec.ID, rec.UserID, rec.Title, rec.UpdatedAt.Local().Format(time.DateTime)})
		}
		fmt.Fprintln(w, renderTable([]string{"Draft", "User", "Title", "Last saved"}, rows, nil))
		fmt.Fprintf(w, "%d drafts idle since before %s would be archived.\n", len(res.Candidates), cutoff)
		return
	}

	fmt.Fprintf(w, "Archived %d of %d stale drafts in %s.\n", len(res.Archived), len(res.Candidates), res.Duration.Round(time.Millisecond))
	if len(res.Skipped) > 0 {
		fmt.Fprintf(w, "%d were finished by someone else first.\n", len(res.Skipped))
	}
	if len(res.PrunedLocks) > 0 {
		fmt.Fprintf(w, "Removed session locks for: %v\n", res.PrunedLocks)
	}
	if len(res.Failed) > 0 {
		rows := make([][]string, 0, len(res.Failed))
		for _, f := range res.Failed {
			rows = append(rows, []string{f.DraftID, f.Err.Error()})
		}
		fmt.Fprintln(w, renderTable([]string{"Draft", "Error"}, rows, nil))
	}
}
