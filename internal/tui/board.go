package tui

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/mattjoyce/cellnode/internal/events"
	"github.com/mattjoyce/cellnode/internal/protocol"
)

// Board is the watcher's copy of the competition state, rebuilt from the
// message events the node dispatches.
type Board struct {
	Phase       string
	Score       float64
	Orders      []string
	ArmCommands int
	Joints      []float64
	Gripper     *protocol.VacuumGripperState
	BreakBeams  int
	Models      int
	Counts      map[string]int
	LastMessage time.Time
}

// ChannelCount is one row of the per-channel table.
type ChannelCount struct {
	Channel string
	Count   int
}

func NewBoard() *Board {
	return &Board{Counts: make(map[string]int)}
}

// Apply folds one event into the board. Node events and payloads that do
// not decode only bump the channel count.
func (b *Board) Apply(e events.Event) {
	if e.Type != events.TypeMessage {
		return
	}
	b.Counts[e.Channel]++
	b.LastMessage = e.At

	switch e.Channel {
	case protocol.ChannelCompetitionState:
		var m protocol.String
		if json.Unmarshal(e.Data, &m) == nil {
			b.Phase = m.Data
		}
	case protocol.ChannelScore:
		var m protocol.Float32
		if json.Unmarshal(e.Data, &m) == nil {
			b.Score = m.Data
		}
	case protocol.ChannelOrders:
		var m protocol.Order
		if json.Unmarshal(e.Data, &m) == nil {
			b.Orders = append(b.Orders, m.OrderID)
		}
	case protocol.ChannelArmCommand:
		b.ArmCommands++
	case protocol.ChannelJointStates:
		var m protocol.JointState
		if json.Unmarshal(e.Data, &m) == nil {
			b.Joints = m.Position
		}
	case protocol.ChannelGripperState:
		var m protocol.VacuumGripperState
		if json.Unmarshal(e.Data, &m) == nil {
			b.Gripper = &m
		}
	case protocol.ChannelBreakBeam:
		var m protocol.Proximity
		if json.Unmarshal(e.Data, &m) == nil && m.ObjectDetected {
			b.BreakBeams++
		}
	case protocol.ChannelLogicalCamera:
		var m protocol.LogicalCameraImage
		if json.Unmarshal(e.Data, &m) == nil {
			b.Models = len(m.Models)
		}
	}
}

// ChannelCounts returns the per-channel counts sorted by channel name.
func (b *Board) ChannelCounts() []ChannelCount {
	out := make([]ChannelCount, 0, len(b.Counts))
	for ch, n := range b.Counts {
		out = append(out, ChannelCount{Channel: ch, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}
