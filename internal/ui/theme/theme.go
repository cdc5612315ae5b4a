package theme

import (
	"image/color"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/tutord/internal/assessment"
)

// Color palette
var (
	Primary   = lipgloss.Color("#8B5CF6") // Vivid Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F97316") // Orange
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Subtitle = lipgloss.NewStyle().
			Foreground(TextDim)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)
)

// Layout
var (
	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)
)

// States
var (
	Good = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Bad = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)

	Warn = lipgloss.NewStyle().
		Foreground(Accent)
)

// MasteryColor grades a mastery score: red below the floor, orange in the
// middle, green once difficulty should rise.
func MasteryColor(mastery float64, p assessment.Policy) color.Color {
	switch {
	case mastery >= p.AdvanceMastery:
		return Success
	case mastery < p.MasteryFloor:
		return Error
	default:
		return Accent
	}
}

// TrajectoryStyle returns the style for a trajectory label.
func TrajectoryStyle(t assessment.Trajectory) lipgloss.Style {
	switch t {
	case assessment.TrajectoryImproving:
		return Good
	case assessment.TrajectoryDeclining:
		return Bad
	case assessment.TrajectoryFlat:
		return Warn
	default:
		return Hint
	}
}
