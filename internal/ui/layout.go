package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/cyclic-tasks/internal/theme"
)

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// RenderHeader renders the top bar with the title on the left and the
// scheduler state on the right.
func (l Layout) RenderHeader(title, status string) string {
	return l.spread(theme.HeaderStyle, theme.HeaderStyle.Render(title), theme.HeaderStyle.Render(status))
}

// RenderStatusBar renders keyboard hints, with an optional message pinned
// to the right edge. An error message is highlighted.
func (l Layout) RenderStatusBar(hints, message string, isError bool) string {
	right := ""
	if message != "" {
		style := theme.StatusBarStyle
		if isError {
			style = style.Bold(true).Foreground(theme.ColorRed)
		}
		right = style.Render(message)
	}
	return l.spread(theme.StatusBarStyle, theme.StatusBarStyle.Render(hints), right)
}

// spread places left and right on one line of the full width, filling the
// gap with the background of base.
func (l Layout) spread(base lipgloss.Style, left, right string) string {
	gap := max(l.Width-lipgloss.Width(left)-lipgloss.Width(right), 0)

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(base.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}
