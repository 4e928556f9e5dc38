package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/cellnode/internal/events"
	"github.com/mattjoyce/cellnode/internal/protocol"
)

func message(id int64, channel string, payload any) events.Event {
	data, _ := json.Marshal(payload)
	return events.Event{
		ID:      id,
		Type:    events.TypeMessage,
		Channel: channel,
		At:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Data:    data,
	}
}

func TestBoardApply(t *testing.T) {
	b := NewBoard()
	b.Apply(message(1, protocol.ChannelCompetitionState, protocol.String{Data: protocol.PhaseGo}))
	b.Apply(message(2, protocol.ChannelOrders, protocol.Order{OrderID: "order_0"}))
	b.Apply(message(3, protocol.ChannelOrders, protocol.Order{OrderID: "order_1"}))
	b.Apply(message(4, protocol.ChannelScore, protocol.Float32{Data: 7.5}))
	b.Apply(message(5, protocol.ChannelJointStates, protocol.JointState{Position: []float64{0.5, 1}}))
	b.Apply(message(6, protocol.ChannelArmCommand, protocol.JointTrajectory{}))
	b.Apply(message(7, protocol.ChannelGripperState, protocol.VacuumGripperState{Enabled: true}))
	b.Apply(message(8, protocol.ChannelBreakBeam, protocol.Proximity{ObjectDetected: true}))
	b.Apply(message(9, protocol.ChannelBreakBeam, protocol.Proximity{ObjectDetected: false}))
	b.Apply(message(10, protocol.ChannelLogicalCamera, protocol.LogicalCameraImage{Models: []protocol.Model{{Type: "gear_part"}}}))

	assert.Equal(t, protocol.PhaseGo, b.Phase)
	assert.Equal(t, []string{"order_0", "order_1"}, b.Orders)
	assert.Equal(t, 7.5, b.Score)
	assert.Equal(t, []float64{0.5, 1}, b.Joints)
	assert.Equal(t, 1, b.ArmCommands)
	require.NotNil(t, b.Gripper)
	assert.True(t, b.Gripper.Enabled)
	assert.Equal(t, 1, b.BreakBeams)
	assert.Equal(t, 1, b.Models)
	assert.Equal(t, 2, b.Counts[protocol.ChannelOrders])
}

func TestBoardIgnoresNodeEventsAndBadPayloads(t *testing.T) {
	b := NewBoard()
	b.Apply(events.Event{ID: 1, Type: events.TypeNode, Data: json.RawMessage(`{"state":"started"}`)})
	b.Apply(events.Event{ID: 2, Type: events.TypeMessage, Channel: protocol.ChannelScore, Data: json.RawMessage(`{"data":"high"}`)})

	assert.Equal(t, 0.0, b.Score)
	assert.Equal(t, 1, b.Counts[protocol.ChannelScore])
	assert.Len(t, b.Counts, 1)
}

func TestBoardChannelCountsSorted(t *testing.T) {
	b := NewBoard()
	b.Apply(message(1, protocol.ChannelScore, protocol.Float32{}))
	b.Apply(message(2, protocol.ChannelBreakBeam, protocol.Proximity{}))
	b.Apply(message(3, protocol.ChannelScore, protocol.Float32{}))

	assert.Equal(t, []ChannelCount{
		{Channel: protocol.ChannelBreakBeam, Count: 1},
		{Channel: protocol.ChannelScore, Count: 2},
	}, b.ChannelCounts())
}

func TestModelUpdateAndView(t *testing.T) {
	m := New("http://127.0.0.1:0", "")

	var model tea.Model = *m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	model, _ = model.Update(eventMsg(message(1, protocol.ChannelCompetitionState, protocol.String{Data: protocol.PhaseGo})))
	model, _ = model.Update(eventMsg(message(2, protocol.ChannelOrders, protocol.Order{OrderID: "order_0"})))
	model, _ = model.Update(eventMsg(message(3, protocol.ChannelArmCommand, protocol.JointTrajectory{})))
	model, _ = model.Update(healthMsg{Status: "ok", UptimeSeconds: 75, QueueDepth: 3})

	view := model.View()
	for _, want := range []string{"CELLNODE WATCH", "Phase:", "go", "order_0", "commanded (1)", "1m 15s", "Queue: 3", protocol.ChannelOrders} {
		assert.True(t, strings.Contains(view, want), "view missing %q", want)
	}

	got := model.(Model)
	assert.Equal(t, int64(3), got.lastID)
	assert.Len(t, got.eventLog, 3)
	assert.Equal(t, int64(3), got.eventLog[0].ID, "newest event first")
}

func TestModelDisconnectSchedulesReconnect(t *testing.T) {
	m := New("http://127.0.0.1:0", "")

	model, cmd := (*m).Update(sseDisconnectedMsg{lastID: 9})
	assert.NotNil(t, cmd)
	got := model.(Model)
	assert.False(t, got.health.Connected)
	assert.Contains(t, got.lastError, "reconnecting")
}

func TestModelQuit(t *testing.T) {
	m := New("http://127.0.0.1:0", "")
	_, cmd := (*m).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestActivityDecay(t *testing.T) {
	var a Activity
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	a.OnEvent(start)
	assert.Equal(t, 5, a.dots)

	a.Decay(start.Add(3 * time.Second))
	assert.Equal(t, 4, a.dots)

	a.Decay(start.Add(11 * time.Second))
	assert.Equal(t, 0, a.dots)
}

func TestThemePhaseStyles(t *testing.T) {
	theme := NewDefaultTheme()

	seen := map[string]string{}
	for _, phase := range []string{protocol.PhaseInit, protocol.PhaseGo, protocol.PhaseEndGame, protocol.PhaseDone} {
		color := fmt.Sprint(theme.Phase(phase).GetForeground())
		for other, c := range seen {
			assert.NotEqual(t, c, color, "%s and %s share a colour", phase, other)
		}
		seen[phase] = color
	}

	assert.Equal(t, theme.PhaseUnknown.GetForeground(), theme.Phase(protocol.PhaseUnknown).GetForeground())
	assert.Equal(t, theme.PhaseUnknown.GetForeground(), theme.Phase("paused").GetForeground())
}
