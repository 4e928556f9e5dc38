// Package tui implements the cellnode watch TUI: a live view of the
// competition state built from the bridge event stream.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/cellnode/internal/protocol"
)

// Theme holds the styles of the competition board.
type Theme struct {
	// Phase colours, keyed by competition phase label.
	Phases       map[string]lipgloss.Style
	PhaseUnknown lipgloss.Style

	Score     lipgloss.Style
	Order     lipgloss.Style
	ArmIdle   lipgloss.Style
	ArmMoving lipgloss.Style
	BeamHit   lipgloss.Style

	LinkUp   lipgloss.Style
	LinkDown lipgloss.Style

	Panel lipgloss.Style
	Title lipgloss.Style
	Dim   lipgloss.Style

	PulseOn  lipgloss.Style
	PulseOff lipgloss.Style
}

// Phase returns the style for a competition phase label.
func (t Theme) Phase(label string) lipgloss.Style {
	if s, ok := t.Phases[label]; ok {
		return s
	}
	return t.PhaseUnknown
}

func fg(hex string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
}

// NewDefaultTheme is a dark palette: amber while the cell is working,
// green once it is done, cyan for orders and the arm.
func NewDefaultTheme() Theme {
	steel := lipgloss.Color("#5C6F82")

	return Theme{
		Phases: map[string]lipgloss.Style{
			protocol.PhaseInit:    fg("#9AA5B1"),
			protocol.PhaseGo:      fg("#F5A623").Bold(true),
			protocol.PhaseEndGame: fg("#F0643C").Bold(true),
			protocol.PhaseDone:    fg("#3DDC84").Bold(true),
		},
		PhaseUnknown: fg("#6B7785").Italic(true),

		Score:     fg("#F8E16C").Bold(true),
		Order:     fg("#4FC3F7"),
		ArmIdle:   fg("#6B7785"),
		ArmMoving: fg("#4FC3F7").Bold(true),
		BeamHit:   fg("#FF5C8A"),

		LinkUp:   fg("#3DDC84"),
		LinkDown: fg("#F0643C").Bold(true),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(steel),
		Title: fg("#E6EDF3").Bold(true).Underline(true).Padding(0, 1),
		Dim:   fg("#6B7785"),

		PulseOn:  fg("#F5A623"),
		PulseOff: fg("#2B3440"),
	}
}
