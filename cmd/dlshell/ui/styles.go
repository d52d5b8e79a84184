// Package ui holds the lipgloss styles of the interactive prompt.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the palette a Styles set is built from.
type Theme struct {
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Failure    lipgloss.Color
	IsDark     bool
}

// LightTheme suits terminals with a light background.
func LightTheme() Theme {
	return Theme{
		Foreground: "#1f2933",
		Primary:    "#3b4a6b",
		Accent:     "#d97706",
		Muted:      "#9aa5b1",
		Failure:    "#c62828",
	}
}

// DarkTheme suits terminals with a dark background.
func DarkTheme() Theme {
	return Theme{
		Foreground: "#f2f2f2",
		Primary:    "#b45309",
		Accent:     "#f59e0b",
		Muted:      "#52606d",
		Failure:    "#ef5350",
		IsDark:     true,
	}
}

// DetectTheme reads the background hint of COLORFGBG ("fg;bg"), then
// DLSHELL_DARK_MODE=1. Without either the light theme is used.
func DetectTheme() Theme {
	if fg, bg, ok := strings.Cut(os.Getenv("COLORFGBG"), ";"); ok && fg != "" {
		if n, err := strconv.Atoi(bg); err == nil && (n <= 6 || n == 8) {
			return DarkTheme()
		}
	}
	if os.Getenv("DLSHELL_DARK_MODE") == "1" {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles are the rendered pieces of the REPL screen.
type Styles struct {
	Theme Theme

	// chrome
	Header  lipgloss.Style
	Badge   lipgloss.Style
	Content lipgloss.Style
	Input   lipgloss.Style
	Footer  lipgloss.Style
	Spinner lipgloss.Style

	// transcript
	Prompt    lipgloss.Style
	Statement lipgloss.Style
	Relation  lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
}

// NewStyles builds every style from theme.
func NewStyles(theme Theme) Styles {
	base := lipgloss.NewStyle()
	return Styles{
		Theme: theme,

		Header:  base.Background(theme.Primary).Foreground(lipgloss.Color("#ffffff")).Bold(true).Padding(0, 2),
		Badge:   base.Foreground(theme.Accent).Padding(0, 1),
		Content: base.Padding(0, 2),
		Input:   base.Border(lipgloss.RoundedBorder()).BorderForeground(theme.Accent).Padding(0, 1),
		Footer:  base.Foreground(theme.Muted).Padding(0, 2),
		Spinner: base.Foreground(theme.Accent),

		Prompt:    base.Foreground(theme.Accent).Bold(true),
		Statement: base.Foreground(theme.Foreground),
		Relation:  base.Foreground(theme.Foreground).PaddingLeft(2),
		Muted:     base.Foreground(theme.Muted),
		Error:     base.Foreground(theme.Failure).Bold(true),
	}
}

// DefaultStyles returns styles for the detected theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}
