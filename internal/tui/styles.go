package tui

import "github.com/charmbracelet/lipgloss"

var (
	Primary = lipgloss.Color("#FF6B35")
	Success = lipgloss.Color("#4CAF50")
	Warning = lipgloss.Color("#FFB74D")
	Muted   = lipgloss.Color("#90A4AE")
	Text    = lipgloss.Color("#E0E0E0")
)

var (
	TitleStyle = lipgloss.NewStyle().
		Foreground(Text).
		Bold(true)

	PlayingStyle = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	PausedStyle = lipgloss.NewStyle().
		Foreground(Warning).
		Bold(true)

	EndStyle = lipgloss.NewStyle().
		Foreground(Primary).
		Bold(true)

	HelpStyle = lipgloss.NewStyle().
		Foreground(Muted)
)
