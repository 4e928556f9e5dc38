package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/cellnode/internal/events"
	"github.com/mattjoyce/cellnode/internal/protocol"
)

// Activity shows message activity with a decaying dot pattern.
type Activity struct {
	dots      int
	lastEvent time.Time
}

func (a *Activity) OnEvent(now time.Time) {
	a.dots = 5
	a.lastEvent = now
}

// Decay fades the dots based on time since the last event.
func (a *Activity) Decay(now time.Time) {
	if a.dots == 0 {
		return
	}
	elapsed := now.Sub(a.lastEvent)
	switch {
	case elapsed > 10*time.Second:
		a.dots = 0
	case elapsed > 8*time.Second:
		a.dots = 1
	case elapsed > 6*time.Second:
		a.dots = 2
	case elapsed > 4*time.Second:
		a.dots = 3
	case elapsed > 2*time.Second:
		a.dots = 4
	}
}

func (a Activity) Render(theme Theme) string {
	var result strings.Builder
	for i := range 5 {
		if i < a.dots {
			result.WriteString(theme.PulseOn.Render("●"))
		} else {
			result.WriteString(theme.PulseOff.Render("○"))
		}
	}
	return result.String()
}

func renderHeader(health HealthState, activity Activity, theme Theme, width int) string {
	innerWidth := width - 4

	statusText := theme.LinkUp.Render("LINKED")
	if !health.Connected {
		statusText = theme.LinkDown.Render("CONNECTING")
	} else if health.Status != "ok" && health.Status != "" {
		statusText = theme.LinkDown.Render("DEGRADED")
	}

	lastEventStr := "never"
	if !activity.lastEvent.IsZero() {
		lastEventStr = fmt.Sprintf("%s ago", time.Since(activity.lastEvent).Round(time.Second))
	}

	clock := theme.Dim.Render(time.Now().Format("15:04:05"))
	title := " CELLNODE WATCH"
	pad := innerWidth - lipgloss.Width(title) - lipgloss.Width(clock) - 4
	if pad < 1 {
		pad = 1
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title+strings.Repeat(" ", pad)+clock+" ",
		fmt.Sprintf(" %s  ⏱ %s  Queue: %d", statusText, formatDuration(time.Duration(health.UptimeSeconds)*time.Second), health.QueueDepth),
		fmt.Sprintf(" Last event: %s %s", lastEventStr, activity.Render(theme)),
	)
	return theme.Panel.Width(innerWidth).Render(content)
}

func renderCompetition(b *Board, theme Theme, width int) string {
	phaseStyle := theme.Phase(b.Phase)
	phase := b.Phase
	if phase == protocol.PhaseUnknown {
		phase = "unknown"
	}

	arm := theme.ArmIdle.Render("waiting for joint states")
	if b.ArmCommands > 0 {
		arm = theme.ArmMoving.Render(fmt.Sprintf("commanded (%d)", b.ArmCommands))
	}

	beams := theme.Dim.Render("0")
	if b.BreakBeams > 0 {
		beams = theme.BeamHit.Render(fmt.Sprintf("%d", b.BreakBeams))
	}

	gripper := "-"
	if b.Gripper != nil {
		gripper = fmt.Sprintf("enabled=%t attached=%t", b.Gripper.Enabled, b.Gripper.Attached)
	}

	orders := theme.Dim.Render("none")
	if len(b.Orders) > 0 {
		orders = theme.Order.Render(strings.Join(b.Orders, ", "))
	}

	lines := []string{
		fmt.Sprintf(" Phase: %s   Score: %s", phaseStyle.Render(phase), theme.Score.Render(fmt.Sprintf("%g", b.Score))),
		fmt.Sprintf(" Orders (%d): %s", len(b.Orders), orders),
		fmt.Sprintf(" Arm: %s   Joints: %s", arm, formatJoints(b.Joints)),
		fmt.Sprintf(" Gripper: %s   Break beam hits: %s   Camera models: %d", gripper, beams, b.Models),
	}

	return theme.Panel.Width(width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			append([]string{theme.Title.Render("COMPETITION")}, lines...)...,
		),
	)
}

func formatJoints(pos []float64) string {
	if len(pos) == 0 {
		return "-"
	}
	parts := make([]string, len(pos))
	for i, p := range pos {
		parts[i] = fmt.Sprintf("%.2f", p)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	innerWidth := width - 4

	if len(eventLog) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("EVENT STREAM"),
			theme.Dim.Render("  Waiting for events..."),
		)
		return theme.Panel.Width(innerWidth).Render(content)
	}

	var lines []string
	for i, e := range eventLog {
		if i >= 10 {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("EVENT STREAM"),
		lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n")),
	)
	return theme.Panel.Width(innerWidth).Render(content)
}

func formatEvent(e events.Event, theme Theme) string {
	ts := theme.Dim.Render(e.At.Format("15:04:05"))

	name := e.Channel
	style := theme.Dim
	switch {
	case e.Type == events.TypeNode:
		name = "node"
		style = theme.LinkUp
	case e.Channel == protocol.ChannelArmCommand:
		style = theme.ArmMoving
	case e.Channel == protocol.ChannelOrders:
		style = theme.Order
	case e.Channel == protocol.ChannelBreakBeam:
		style = theme.BeamHit
	case e.Channel == protocol.ChannelCompetitionState:
		style = theme.Phase(protocol.PhaseGo)
	}

	raw := string(e.Data)
	if len(raw) > 60 {
		raw = raw[:60] + "..."
	}
	return fmt.Sprintf("%s %s %s", ts, style.Render(fmt.Sprintf("%-28s", name)), raw)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
