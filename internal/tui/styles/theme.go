package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serialmon/internal/tui/colors"
	"github.com/allbin/serialmon/session"
)

var (
	// Status styles
	StatusConnectedStyle = lipgloss.NewStyle().
				Foreground(colors.Green).
				Bold(true)

	StatusDisconnectedStyle = lipgloss.NewStyle().
				Foreground(colors.Red).
				Bold(true)

	StatusTransitionStyle = lipgloss.NewStyle().
				Foreground(colors.Yellow).
				Bold(true)

	// Content area styles
	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	// Input styles
	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(0, 1)

	// Picker styles
	PickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colors.Mauve).
				Padding(0, 1)

	PickerHintStyle = lipgloss.NewStyle().
			Foreground(colors.Overlay0).
			Padding(0, 1)
)

// StateStyle returns the style and glyph for a session state
func StateStyle(st session.State) (lipgloss.Style, string) {
	switch st {
	case session.StateConnected:
		return StatusConnectedStyle, "●"
	case session.StateConnecting, session.StateDisconnecting:
		return StatusTransitionStyle, "◐"
	default:
		return StatusDisconnectedStyle, "○"
	}
}
