package theme

import "github.com/charmbracelet/lipgloss"

// Color is an alias for lipgloss.Color for convenience
type Color = lipgloss.Color

// Brand colors
const (
	ColorPrimary   Color = "99" // Purple - app name, titles
	ColorSecondary Color = "86" // Cyan - subtitles
)

// Tracking state colors
const (
	ColorIdle        Color = "8" // Gray - idle
	ColorExitPending Color = "3" // Yellow - debouncing an exit
	ColorTracking    Color = "2" // Green - actively tracking
)

// UI semantic colors
const (
	ColorError     Color = "196" // Bright red
	ColorHighlight Color = "255" // White - emphasis
	ColorMuted     Color = "241" // Gray - secondary text
	ColorNormal    Color = "250" // Default text
	ColorSubtle    Color = "245" // Light gray - labels
	ColorWarning   Color = "214" // Orange - flags
)

// Day flag colors
const (
	ColorFlagCorrected Color = "141" // Purple
	ColorFlagEarly     Color = "1"   // Red
	ColorFlagNoBreak   Color = "178" // Gold
	ColorFlagOvertime  Color = "226" // Yellow
)
