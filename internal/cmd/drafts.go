package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Iron-Ham/quickcheck/internal/config"
	"github.com/Iron-Ham/quickcheck/internal/draft"
	"github.com/Iron-Ham/quickcheck/internal/errors"
	"github.com/Iron-Ham/quickcheck/internal/logging"
	"github.com/Iron-Ham/quickcheck/internal/quickcheck"
	"github.com/Iron-Ham/quickcheck/internal/session"
	"github.com/Iron-Ham/quickcheck/internal/store"
	"github.com/Iron-Ham/quickcheck/internal/util"
)

var (
	listUser  string
	listState string
	listLimit int
	listStats bool

	showPayload bool
)

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Inspect and manage stored drafts",
	Long: `Commands for listing, inspecting and finishing drafts directly in the
database. Finishing a draft here also removes any session lock naming it.`,
}

var draftsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List drafts",
	Long: `List drafts, most recently saved first.

The Locked column shows the user whose editor session currently holds the
draft, as recorded in the lock directory.`,
	RunE: runDraftsList,
}

var draftsShowCmd = &cobra.Command{
	Use:   "show <draft-id>",
	Short: "Show a draft and its checklist",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraftsShow,
}

var draftsDeleteCmd = &cobra.Command{
	Use:   "delete <draft-id>",
	Short: "Delete an unfinished draft",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraftsDelete,
}

var draftsArchiveCmd = &cobra.Command{
	Use:   "archive <draft-id>",
	Short: "Archive an unfinished draft, keeping its content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraftsArchive,
}

func registerDraftsCmd(parent *cobra.Command) {
	draftsListCmd.Flags().StringVar(&listUser, "user", "", "only drafts owned by this user")
	draftsListCmd.Flags().StringVar(&listState, "state", "", "only drafts in this state (draft, submitted, archived)")
	draftsListCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum number of drafts (0 for all)")
	draftsListCmd.Flags().BoolVar(&listStats, "stats", false, "also print a count per state")
	draftsShowCmd.Flags().BoolVar(&showPayload, "payload", false, "print the stored payload as JSON")

	draftsCmd.AddCommand(draftsListCmd)
	draftsCmd.AddCommand(draftsShowCmd)
	draftsCmd.AddCommand(draftsDeleteCmd)
	draftsCmd.AddCommand(draftsArchiveCmd)
	parent.AddCommand(draftsCmd)
}

// adminEnv holds what the drafts subcommands share.
type adminEnv struct {
	store  *store.Store
	locks  *session.FileLockStore
	logger *logging.Logger
}

func (e *adminEnv) close() {
	_ = e.store.Close()
	_ = e.logger.Close()
}

func openAdmin(ctx context.Context) (*adminEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openAdminWith(ctx, cfg)
}

func openAdminWith(ctx context.Context, cfg *config.Config) (*adminEnv, error) {
	logger, err := newLogger(cfg, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	locks, err := openLocks(cfg, logger)
	if err != nil {
		_ = st.Close()
		_ = logger.Close()
		return nil, err
	}
	return &adminEnv{store: st, locks: locks, logger: logger}, nil
}

var stateCaser = cases.Title(language.English)

// titleWidth caps the Title column of the drafts table.
const titleWidth = 40

func runDraftsList(cmd *cobra.Command, args []string) error {
	state := draft.RecordState(listState)
	if listState != "" && !state.Valid() {
		return errors.NewValidationError("unknown draft state").WithField("--state").WithValue(listState)
	}
	if listLimit < 0 {
		return errors.NewValidationError("limit must not be negative").WithField("--limit").WithValue(listLimit)
	}

	ctx := cmd.Context()
	env, err := openAdmin(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	return listDrafts(ctx, cmd.OutOrStdout(), env, store.Filter{UserID: listUser, State: state, Limit: listLimit}, listStats)
}

func listDrafts(ctx context.Context, w io.Writer, env *adminEnv, filter store.Filter, withStats bool) error {
	records, err := env.store.List(ctx, filter)
	if err != nil {
		return err
	}
	locked, err := env.locks.LockedDrafts(ctx)
	if err != nil {
		env.logger.Warn("could not read session locks", "error", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "No drafts found.")
	} else {
		rows := make([][]string, 0, len(records))
		for _, rec := range records {
			rows = append(rows, []string{
				rec.ID,
				rec.UserID,
				stateCaser.String(string(rec.State)),
				util.TruncateString(rec.Title, titleWidth),
				strconv.Itoa(rec.Version),
				formatAge(rec.UpdatedAt),
				locked[rec.ID],
			})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"ID", "User", "State", "Title", "Version", "Last saved", "Locked"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		))
	}

	if withStats {
		stats, err := env.store.Stats(ctx)
		if err != nil {
			return err
		}
		var parts []string
		for _, state := range []draft.RecordState{draft.RecordDraft, draft.RecordSubmitted, draft.RecordArchived} {
			parts = append(parts, fmt.Sprintf("%s: %d", stateCaser.String(string(state)), stats[state]))
		}
		fmt.Fprintln(w, strings.Join(parts, "  "))
	}
	return nil
}

func runDraftsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := openAdmin(ctx)
	if err != nil {
		return err
	}
	defer env.close()
	return showDraft(ctx, cmd.OutOrStdout(), env, args[0], showPayload)
}

func showDraft(ctx context.Context, w io.Writer, env *adminEnv, id string, rawPayload bool) error {
	rec, err := env.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if rawPayload {
		fmt.Fprintln(w, string(rec.Payload))
		return nil
	}

	fmt.Fprintf(w, "Draft:      %s\n", rec.ID)
	fmt.Fprintf(w, "User:       %s\n", rec.UserID)
	fmt.Fprintf(w, "State:      %s\n", stateCaser.String(string(rec.State)))
	fmt.Fprintf(w, "Title:      %s\n", rec.Title)
	fmt.Fprintf(w, "Version:    %d\n", rec.Version)
	fmt.Fprintf(w, "Created:    %s\n", rec.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Last saved: %s (%s)\n", rec.UpdatedAt.Local().Format(time.DateTime), formatAge(rec.UpdatedAt))

	form, err := quickcheck.Converter{}.FromWire(rec.Payload)
	if err != nil {
		fmt.Fprintf(w, "\nPayload could not be decoded: %v\n", err)
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Customer:   %s\n", form.Customer)
	fmt.Fprintf(w, "Technician: %s\n", form.Technician)
	fmt.Fprintf(w, "Vehicle:    %s\n", form.Title())
	if form.Vehicle.VIN != "" {
		fmt.Fprintf(w, "VIN:        %s\n", form.Vehicle.VIN)
	}

	rows := make([][]string, 0, len(form.Items))
	for _, item := range form.Items {
		result := string(item.Result)
		if result == "" {
			result = "-"
		}
		rows = append(rows, []string{item.Label, stateCaser.String(result), item.Notes})
	}
	fmt.Fprintln(w, renderTable([]string{"Item", "Result", "Notes"}, rows, nil))
	if form.Notes != "" {
		fmt.Fprintf(w, "Notes: %s\n", form.Notes)
	}
	if pending := form.PendingUploads(); len(pending) > 0 {
		fmt.Fprintf(w, "%d photos were not uploaded when the draft was saved.\n", len(pending))
	}
	return nil
}

func runDraftsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := openAdmin(ctx)
	if err != nil {
		return err
	}
	defer env.close()
	return finishDraft(ctx, cmd.OutOrStdout(), env, args[0], draft.CancelDelete)
}

func runDraftsArchive(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := openAdmin(ctx)
	if err != nil {
		return err
	}
	defer env.close()
	return finishDraft(ctx, cmd.OutOrStdout(), env, args[0], draft.CancelArchive)
}

// finishDraft deletes or archives an unfinished draft and drops any session
// lock naming it, so the owner's next session does not try to resume it.
func finishDraft(ctx context.Context, w io.Writer, env *adminEnv, id string, action draft.CancelAction) error {
	var err error
	switch action {
	case draft.CancelDelete:
		err = env.store.Delete(ctx, id)
	case draft.CancelArchive:
		err = env.store.Archive(ctx, id, nil)
	}
	if errors.IsNotFound(err) {
		return fmt.Errorf("no unfinished draft %s", id)
	}
	if err != nil {
		return err
	}

	pruned, err := env.locks.Prune(ctx, id)
	if err != nil {
		env.logger.Warn("could not prune session lock", "draft_id", id, "error", err)
	}
	past := map[draft.CancelAction]string{draft.CancelDelete: "Deleted", draft.CancelArchive: "Archived"}[action]
	fmt.Fprintf(w, "%s draft %s.\n", past, id)
	if len(pruned) > 0 {
		fmt.Fprintf(w, "Released the session lock held by %s.\n", strings.Join(pruned, ", "))
	}
	return nil
}

// formatAge renders how long ago t was, in the largest whole unit.
func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
