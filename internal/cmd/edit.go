package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/quickcheck/internal/draft"
	"github.com/Iron-Ham/quickcheck/internal/event"
	"github.com/Iron-Ham/quickcheck/internal/quickcheck"
	"github.com/Iron-Ham/quickcheck/internal/tui"
)

var (
	editUser  string
	editDraft string
	editLink  string
	editSets  []string
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the quick-check editor",
	Long: `Open the quick-check editor for a technician.

The editor resumes the draft named by --draft, or the one this user's last
session was editing, or the newest unfinished draft on the server. If none
exists a new draft is created, prefilled from --link and --set.

Edits are autosaved one second after you stop typing. Quitting saves the
latest edits and keeps the draft open for the next session.

Examples:
  quickcheck edit --user dana
  quickcheck edit --user dana --set plate=ABC123 --set customer="Lee Motors"
  quickcheck edit --user dana --link "quickcheck://new?plate=ABC123&vin=1HGCM82633A004352"`,
	RunE: runEdit,
}

func registerEditCmd(parent *cobra.Command) {
	editCmd.Flags().StringVarP(&editUser, "user", "u", os.Getenv("USER"), "technician user ID owning the draft")
	editCmd.Flags().StringVar(&editDraft, "draft", "", "open this draft instead of recovering")
	editCmd.Flags().StringVar(&editLink, "link", "", "deep link whose query prefills a new draft")
	editCmd.Flags().StringArrayVar(&editSets, "set", nil, "prefill a field of a new draft (key=value, repeatable)")
	parent.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	if editUser == "" {
		return fmt.Errorf("--user is required")
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("the editor needs an interactive terminal")
	}

	seed, draftID, err := buildSeed(editLink, editSets)
	if err != nil {
		return err
	}
	if editDraft != "" {
		draftID = editDraft
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, true)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()
	logger = logger.WithUser(editUser)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	backend, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	lockStore, err := openLocks(cfg, logger)
	if err != nil {
		return err
	}
	locks := draft.NewRegistry(lockStore, editUser, nil)
	bus := event.NewBus(logger)

	coord := draft.New[quickcheck.Form](backend, quickcheck.Converter{}, locks,
		draft.WithDebounce(cfg.Draft.Debounce()),
		draft.WithRequestTimeout(cfg.Draft.RequestTimeout()),
		draft.WithLogger(logger),
		draft.WithEventBus(bus),
		draft.WithBaseContext(ctx),
	)
	defer coord.Close()

	if cfg.Lock.Watch {
		watcher, err := lockStore.Watch(editUser, locks.Token(), bus)
		if err != nil {
			// The editor still works; it just cannot report takeovers.
			logger.Warn("lock watch unavailable", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	app := tui.New(ctx, coord, bus, tui.Options{
		UserID:         editUser,
		DraftID:        draftID,
		Seed:           seed,
		Theme:          cfg.TUI.Theme,
		ShowSaveTimes:  cfg.TUI.ShowSaveTimes,
		RequestTimeout: cfg.Draft.RequestTimeout(),
	})
	final, err := app.Run()
	if err != nil {
		return fmt.Errorf("editor: %w", err)
	}

	out := cmd.OutOrStdout()
	snap := coord.State()
	switch {
	case final.Outcome() != "":
		fmt.Fprintf(out, "Quick check %s.\n", final.Outcome())
	case snap.HasDraft():
		fmt.Fprintf(out, "Draft %s saved. Run 'quickcheck edit --user %s' to resume.\n", snap.DraftID, editUser)
	}
	return nil
}

// buildSeed assembles the form a new draft starts from. The deep link is
// applied first so explicit --set values win.
func buildSeed(link string, sets []string) (quickcheck.Form, string, error) {
	form := quickcheck.New()
	var draftID string
	if link != "" {
		var err error
		form, draftID, err = quickcheck.ParseDeepLink(link)
		if err != nil {
			return quickcheck.Form{}, "", fmt.Errorf("--link: %w", err)
		}
	}
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return quickcheck.Form{}, "", fmt.Errorf("--set %q: expected key=value", kv)
		}
		next, err := form.Set(strings.TrimSpace(key), value)
		if err != nil {
			return quickcheck.Form{}, "", fmt.Errorf("--set %q: %w", kv, err)
		}
		form = next
	}
	return form, draftID, nil
}
