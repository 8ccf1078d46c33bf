package commands

import "github.com/charmbracelet/lipgloss"

// Color palette for terminal output.
var (
	ColorPrimary = lipgloss.Color("#9b59b6") // Purple
	ColorMuted   = lipgloss.Color("#95a5a6") // Gray
	ColorWarning = lipgloss.Color("#f39c12") // Amber
	ColorError   = lipgloss.Color("#e74c3c") // Red
	ColorInfo    = lipgloss.Color("#3498db") // Blue
	ColorSuccess = lipgloss.Color("#2ecc71") // Bright green
)

var (
	// TitleStyle for banners and headings.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// InfoStyle for ids, urls and provider names.
	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	// HelpStyle for hints and secondary text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Italic(true)
)

const separatorWidth = 60
