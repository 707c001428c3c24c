package view

import "github.com/charmbracelet/lipgloss"

// Status styles
var (
	StyleStatusRunning = lipgloss.NewStyle().
				Foreground(lipgloss.Color("3")).
				Bold(true)

	StyleStatusComplete = lipgloss.NewStyle().
				Foreground(lipgloss.Color("2")).
				Bold(true)

	StyleStatusFailed = lipgloss.NewStyle().
				Foreground(lipgloss.Color("1")).
				Bold(true)

	StyleStatusPending = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true)

	StyleMuted = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)
