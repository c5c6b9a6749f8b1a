package tui

import "github.com/charmbracelet/lipgloss"

const (
	accentColor  = "#2563EB" // Blue
	okColor      = "#16A34A" // Green
	cautionColor = "#D97706" // Amber
	alertColor   = "#DC2626" // Red
	mutedColor   = "#6B7280" // Gray
	clockText    = "#F9FAFB"
)

// Shared by the assessment editor and the console driver.
var (
	// BoxStyle frames the task description.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(accentColor)).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(accentColor)).
			Bold(true)

	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(mutedColor))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(okColor))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(alertColor))
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(cautionColor))

	// ClockStyle renders the countdown while more than a minute is left;
	// ClockLowStyle takes over for the final minute.
	ClockStyle = lipgloss.NewStyle().
			Background(lipgloss.Color(accentColor)).
			Foreground(lipgloss.Color(clockText)).
			Bold(true).
			Padding(0, 2)
	ClockLowStyle = ClockStyle.
			Background(lipgloss.Color(alertColor))
)

// Stage markers used in console headings.
var (
	StageDone    = SuccessStyle.Render("✓")
	StageActive  = WarningStyle.Render("▸")
	StagePending = DimStyle.Render("○")
)
