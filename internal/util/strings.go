// Package util provides small text helpers shared by the CLI and the editor.
package util

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// ShortIDLen is the length of a draft ID prefix shown in status lines.
const ShortIDLen = 8

// ShortID returns the first ShortIDLen characters of a draft ID.
func ShortID(id string) string {
	if len(id) > ShortIDLen {
		return id[:ShortIDLen]
	}
	return id
}

// TruncateString truncates a string to maxLen runes, adding "..." if truncated.
// Line breaks are flattened to spaces so the result fits one table cell.
func TruncateString(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}

// FitLines truncates every line of a rendered block to maxWidth visual
// columns, keeping ANSI styling intact. A non-positive width leaves s as is.
func FitLines(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if lipgloss.Width(line) > maxWidth {
			lines[i] = ansi.Truncate(line, maxWidth, "…")
		}
	}
	return strings.Join(lines, "\n")
}
