package resolve

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")

	titleStyle  = lipgloss.NewStyle().Bold(true)
	subtleStyle = lipgloss.NewStyle().Foreground(mutedColor)
	helpStyle   = lipgloss.NewStyle().Foreground(mutedColor)

	cursorStyle   = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	conflictStyle = lipgloss.NewStyle().Foreground(primaryColor)

	localBadge  = lipgloss.NewStyle().Foreground(successColor)
	serverBadge = lipgloss.NewStyle().Foreground(warningColor)
	skipBadge   = lipgloss.NewStyle().Foreground(mutedColor)
)

// formatChoice renders a choice badge.
func formatChoice(c Choice) string {
	switch c {
	case ChoiceLocal:
		return localBadge.Render("[keep local]")
	case ChoiceServer:
		return serverBadge.Render("[take server]")
	default:
		return skipBadge.Render("[skip]")
	}
}
