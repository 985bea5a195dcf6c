package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailsetup/internal/theme"
)

// Layout manages the multi-panel terminal layout dimensions.
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

// SplitWidths divides the content width between the folders table and
// the detail pane. With the pane closed the table gets everything.
func (l Layout) SplitWidths(detailOpen bool) (table, detail int) {
	if !detailOpen {
		return l.Width, 0
	}
	detail = l.Width * 2 / 5
	if detail < 30 {
		detail = min(30, l.Width/2)
	}
	return l.Width - detail, detail
}

// RenderHeader renders the top header bar with the account tabs on the
// left and the sync status on the right.
func (l Layout) RenderHeader(title string, syncStatus string) string {
	return fill(theme.HeaderStyle, l.Width, title, syncStatus)
}

// RenderStatusBar renders the bottom status bar with keyboard hints, or
// with errMsg on a red background when it is set.
func (l Layout) RenderStatusBar(hints string, errMsg string) string {
	if errMsg != "" {
		return fill(theme.ErrorStatusStyle, l.Width, errMsg, "")
	}
	return fill(theme.StatusBarStyle, l.Width, hints, "")
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	statusBar string,
) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		statusBar,
	)
}

// fill renders left and right in style, padding the gap between them
// with the style's background so the bar spans width.
func fill(style lipgloss.Style, width int, left, right string) string {
	leftRendered := style.Render(left)
	rightRendered := ""
	if right != "" {
		rightRendered = style.Align(lipgloss.Right).Render(right)
	}

	gap := max(width-lipgloss.Width(leftRendered)-lipgloss.Width(rightRendered), 0)

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftRendered,
		filler,
		rightRendered,
	)
}
