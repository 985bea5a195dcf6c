package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
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

// ErrorStatusStyle replaces the status bar when an error is shown.
var ErrorStatusStyle = StatusBarStyle.
	Background(ColorRed)

// DetailPanelStyle wraps the detail view content area.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// TableHeaderStyle styles the folders table header row.
var TableHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Padding(0, 1).
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(ColorBorder).
	BorderBottom(true)

// SelectedRowStyle highlights the focused table row.
var SelectedRowStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// DimmedStyle renders placeholder folders and empty values.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// BorderStyle provides a standard rounded border for panels.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// RoleStyle returns a color-coded style for a special-use folder role.
func RoleStyle(role string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch role {
	case "Inbox":
		return base.Foreground(ColorBlue)
	case "Sent", "Drafts":
		return base.Foreground(ColorGreen)
	case "Trash", "Junk":
		return base.Foreground(ColorRed)
	case "Archive", "All":
		return base.Foreground(ColorMagenta)
	case "Flagged":
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}

// UnreadStyle highlights non-zero unread counts.
func UnreadStyle(unread uint32) lipgloss.Style {
	if unread == 0 {
		return DimmedStyle
	}
	return lipgloss.NewStyle().Bold(true).Foreground(ColorYellow)
}
