package theme

import "github.com/charmbracelet/lipgloss"

// Main output styles
var (
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	NormalStyle = lipgloss.NewStyle().
			Foreground(ColorNormal)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Padding(1, 0)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)
)

// Tracking status styles
var (
	ExitPendingStyle = lipgloss.NewStyle().
				Foreground(ColorExitPending)

	IdleStyle = lipgloss.NewStyle().
			Foreground(ColorIdle)

	TrackingStyle = lipgloss.NewStyle().
			Foreground(ColorTracking)
)

// StatusStyle returns the style for a tracking status string
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "TRACKING":
		return TrackingStyle
	case "EXIT_PENDING":
		return ExitPendingStyle
	default:
		return IdleStyle
	}
}

// FlagStyle returns the style for a day summary flag
func FlagStyle(flag string) lipgloss.Style {
	switch flag {
	case "ai_corrected":
		return lipgloss.NewStyle().Foreground(ColorFlagCorrected)
	case "early_departure":
		return lipgloss.NewStyle().Foreground(ColorFlagEarly)
	case "no_break":
		return lipgloss.NewStyle().Foreground(ColorFlagNoBreak)
	case "overtime":
		return lipgloss.NewStyle().Foreground(ColorFlagOvertime)
	default:
		return MutedStyle
	}
}
