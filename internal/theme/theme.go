package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/cyclic-tasks/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// GroupHeaderStyle introduces each group of tasks in the list.
var GroupHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorMagenta)

// DimmedStyle fades tasks whose cycle target is already met.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// OverdueStyle flags a deadline that has passed.
var OverdueStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// UrgentStyle flags a deadline within a few days.
var UrgentStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorOrange)

// DeadlineStyle renders a deadline that is neither urgent nor overdue.
var DeadlineStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// BlockedStyle marks a task whose contribution limit is used up.
var BlockedStyle = lipgloss.NewStyle().
	Foreground(ColorYellow)

// ErrorStyle renders transient error messages in the status bar.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// FrequencyStyle returns a color-coded badge style for a recurrence period.
func FrequencyStyle(f model.Frequency) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch f {
	case model.FrequencyDaily:
		return base.Foreground(ColorGreen)
	case model.FrequencyWeekly:
		return base.Foreground(ColorBlue)
	case model.FrequencyMonthly:
		return base.Foreground(ColorMagenta)
	case model.FrequencyQuarterly, model.FrequencyYearly:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}

// FrequencyLabel returns the short badge text for f.
func FrequencyLabel(f model.Frequency) string {
	switch f {
	case model.FrequencyDaily:
		return "DAY"
	case model.FrequencyWeekly:
		return "WK"
	case model.FrequencyMonthly:
		return "MO"
	case model.FrequencyQuarterly:
		return "QTR"
	case model.FrequencyYearly:
		return "YR"
	default:
		return "CUS"
	}
}
