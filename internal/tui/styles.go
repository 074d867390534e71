package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorBright = lipgloss.Color("#00FF41")
	ColorNorm   = lipgloss.Color("#00CC33")
	ColorDim    = lipgloss.Color("#008F11")
	ColorUser   = lipgloss.Color("#00FFFF")
	ColorWarn   = lipgloss.Color("#FFAA00")
	ColorError  = lipgloss.Color("#FF3300")
)

var (
	StyleTitle = lipgloss.NewStyle().
			Foreground(ColorBright).
			Bold(true).
			Padding(0, 1)

	StylePanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDim).
			Padding(0, 1)

	StyleLabel = lipgloss.NewStyle().
			Foreground(ColorDim)

	StyleValue = lipgloss.NewStyle().
			Foreground(ColorNorm)

	StyleUnknown = lipgloss.NewStyle().
			Foreground(ColorWarn)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	StyleNode = lipgloss.NewStyle().
			Foreground(ColorDim)

	StyleUser = lipgloss.NewStyle().
			Foreground(ColorUser).
			Bold(true)

	StyleHelp = lipgloss.NewStyle().
			Foreground(ColorDim)
)
