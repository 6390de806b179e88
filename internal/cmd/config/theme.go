package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/quickcheck/internal/tui/styles"
)

var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Inspect editor color themes",
	Long: `Inspect the color themes of the quick-check editor.

Select a theme with the tui.theme setting or QUICKCHECK_TUI_THEME.`,
}

var themeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all available themes",
	RunE:  runThemeList,
}

var themeInfoCmd = &cobra.Command{
	Use:   "info <theme-name>",
	Short: "Show the colors of a theme",
	Args:  cobra.ExactArgs(1),
	RunE:  runThemeInfo,
}

func init() {
	themeCmd.AddCommand(themeListCmd)
	themeCmd.AddCommand(themeInfoCmd)
}

func runThemeList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	current := viper.GetString("tui.theme")

	fmt.Fprintln(out, "Available themes:")
	for _, name := range styles.BuiltinThemes() {
		marker := " "
		if name == current {
			marker = "*"
		}
		fmt.Fprintf(out, " %s %s\n", marker, name)
	}
	return nil
}

func runThemeInfo(cmd *cobra.Command, args []string) error {
	themeName := args[0]
	if !styles.IsValidTheme(themeName) {
		return fmt.Errorf("unknown theme: %s\n\nRun 'quickcheck config theme list' to see available themes", themeName)
	}

	p := styles.GetPalette(styles.ThemeName(themeName))
	s := styles.New(p)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Theme: %s\n\n", capitalizeFirst(themeName))
	colors := []struct {
		name  string
		value string
	}{
		{"primary", string(p.Primary)},
		{"secondary", string(p.Secondary)},
		{"warning", string(p.Warning)},
		{"error", string(p.Error)},
		{"muted", string(p.Muted)},
		{"surface", string(p.Surface)},
		{"text", string(p.Text)},
		{"border", string(p.Border)},
	}
	for _, c := range colors {
		fmt.Fprintf(out, "  %-10s %s\n", c.name, c.value)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "  results    %s %s %s\n",
		s.Result("ok").Render("ok"),
		s.Result("attention").Render("attention"),
		s.Result("urgent").Render("urgent"),
	)
	return nil
}

// capitalizeFirst returns s with the first letter capitalized.
func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
