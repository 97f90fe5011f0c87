package style

import (
	"github.com/charmbracelet/lipgloss"
)

// Base styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(HeadingColor).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	// NameStyle renders HUD identifiers in listings
	NameStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	// PathStyle renders filesystem paths and URLs
	PathStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Italic(true)
)
