package tui

import "github.com/charmbracelet/lipgloss"

var (
	accentColor = lipgloss.Color("#4ade80")
	dimColor    = lipgloss.Color("#6b7280")
	textColor   = lipgloss.Color("#e5e7eb")
	errorColor  = lipgloss.Color("#f87171")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	keyStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	authorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)

	timeStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	pendingStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(dimColor)

	bodyStyle = lipgloss.NewStyle().
			Foreground(textColor).
			PaddingLeft(2)

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	emptyStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(dimColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	successStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	labelStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			Width(9)

	focusedLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(accentColor).
				Width(9)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	helpLabelStyle = lipgloss.NewStyle().
			Foreground(dimColor)
)
