package cli

import "github.com/charmbracelet/lipgloss"

// Styles shared across command output. The adaptive pairs keep the text
// readable on both light and dark terminals.
var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#059669", Dark: "#10B981"}).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#EF4444"}).
			Bold(true)

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1E40AF", Dark: "#3B82F6"}).
			Bold(true)
)
