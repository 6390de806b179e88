// Package styles holds the lipgloss styles used by the quick-check editor.
package styles

import "github.com/charmbracelet/lipgloss"

// Styles is the set of styles derived from one palette.
type Styles struct {
	Palette *ColorPalette

	Title    lipgloss.Style
	Subtitle lipgloss.Style

	// Form rows
	Label        lipgloss.Style
	FocusedLabel lipgloss.Style
	Cursor       lipgloss.Style
	Section      lipgloss.Style

	// Checklist results
	ResultOK        lipgloss.Style
	ResultAttention lipgloss.Style
	ResultUrgent    lipgloss.Style
	ResultUnset     lipgloss.Style

	// Chrome
	Box       lipgloss.Style
	StatusBar lipgloss.Style
	HelpKey   lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Success   lipgloss.Style
	Banner    lipgloss.Style
}

// New builds styles from a palette.
func New(p *ColorPalette) *Styles {
	if p == nil {
		p = DefaultPalette()
	}
	return &Styles{
		Palette: p,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Primary),

		Subtitle: lipgloss.NewStyle().
			Foreground(p.Muted).
			Italic(true),

		Label: lipgloss.NewStyle().
			Foreground(p.Muted).
			Width(14),

		FocusedLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Primary).
			Width(14),

		Cursor: lipgloss.NewStyle().
			Foreground(p.Primary),

		Section: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Text).
			MarginTop(1),

		ResultOK:        lipgloss.NewStyle().Bold(true).Foreground(p.Secondary),
		ResultAttention: lipgloss.NewStyle().Bold(true).Foreground(p.Warning),
		ResultUrgent:    lipgloss.NewStyle().Bold(true).Foreground(p.Error),
		ResultUnset:     lipgloss.NewStyle().Foreground(p.Muted),

		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border).
			Padding(0, 1),

		StatusBar: lipgloss.NewStyle().
			Foreground(p.Text).
			Background(p.Surface).
			Padding(0, 1),

		HelpKey: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Secondary),

		Muted:   lipgloss.NewStyle().Foreground(p.Muted),
		Error:   lipgloss.NewStyle().Foreground(p.Error),
		Warning: lipgloss.NewStyle().Foreground(p.Warning),
		Success: lipgloss.NewStyle().Foreground(p.Secondary),

		Banner: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Text).
			Background(p.Error).
			Padding(0, 1),
	}
}

// ForTheme returns styles for a named theme.
func ForTheme(name string) *Styles {
	return New(GetPalette(ThemeName(name)))
}

// Result returns the style for a checklist result name.
func (s *Styles) Result(result string) lipgloss.Style {
	switch result {
	case "ok":
		return s.ResultOK
	case "attention":
		return s.ResultAttention
	case "urgent":
		return s.ResultUrgent
	default:
		return s.ResultUnset
	}
}
