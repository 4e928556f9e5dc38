package competition

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/cellnode/internal/competition/mocks"
	"github.com/mattjoyce/cellnode/internal/protocol"
	"github.com/mattjoyce/cellnode/internal/transport"
)

// TestLogBuffer is a bytes.Buffer that can be used to capture log output.
type TestLogBuffer struct {
	bytes.Buffer
}

// NewTestSlogger creates a new *slog.Logger that writes to a TestLogBuffer.
func NewTestSlogger() (*slog.Logger, *TestLogBuffer) {
	var buf TestLogBuffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), &buf
}

// Count returns how many log records carry msg.
func (b *TestLogBuffer) Count(t *testing.T, msg string) int {
	t.Helper()
	n := 0
	for _, line := range strings.Split(strings.TrimSpace(b.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec["msg"] == msg {
			n++
		}
	}
	return n
}

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func jointState(pos float64) protocol.JointState {
	return protocol.JointState{
		Name:     []string{"iiwa_joint_1", "linear_arm_actuator_joint"},
		Position: []float64{pos, pos},
		Velocity: []float64{0, 0},
	}
}

func TestNewInitialState(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	slogger, _ := NewTestSlogger()
	c := New(mocks.NewMockPublisher(ctrl), slogger)

	assert.Equal(t, protocol.PhaseUnknown, c.Phase())
	assert.Equal(t, 0.0, c.Score())
	assert.Empty(t, c.Orders())
	assert.False(t, c.Zeroed())
	assert.False(t, c.HasJointState())
	_, ok := c.GripperState()
	assert.False(t, ok)
}

func TestJointStateFiresZeroPoseOnlyOnFirstMessage(t *testing.T) {
	for _, n := range []int{1, 2, 5, 50} {
		t.Run("", func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			pub := mocks.NewMockPublisher(ctrl)
			slogger, logBuf := NewTestSlogger()
			c := New(pub, slogger)

			pub.EXPECT().Publish(protocol.ChannelArmCommand, gomock.Any()).Times(1).Do(func(_ string, msg any) {
				// The latch is set before the command goes out.
				assert.True(t, c.Zeroed())
				cmd, ok := msg.(protocol.JointTrajectory)
				require.True(t, ok, "unexpected message type %T", msg)
				assert.Equal(t, protocol.ArmJointNames, cmd.JointNames)
			})

			for i := range n {
				c.HandleJointState(jointState(float64(i)))
				assert.True(t, c.Zeroed())
			}

			assert.Equal(t, 1, logBuf.Count(t, "sending arm to zero joint positions"))
			js, ok := c.JointState()
			require.True(t, ok)
			assert.Equal(t, float64(n-1), js.Position[0], "latest snapshot should overwrite earlier ones")
		})
	}
}

func TestScoreChangeLogging(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	slogger, logBuf := NewTestSlogger()
	c := New(mocks.NewMockPublisher(ctrl), slogger)

	steps := []struct {
		score    float64
		wantLogs int
	}{
		{0, 0},    // same as the initial score
		{1.5, 1},  // change
		{1.5, 1},  // repeat: no new line
		{1.0, 2},  // decreases log like increases
		{12.0, 3}, // change
		{12.0, 3}, // repeat
	}
	for i, step := range steps {
		c.HandleScore(protocol.Float32{Data: step.score})
		assert.Equal(t, step.score, c.Score(), "step %d", i)
		assert.Equal(t, step.wantLogs, logBuf.Count(t, "score changed"), "step %d", i)
	}
}

func TestPhaseEndedLoggedOnceForRepeatedDone(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	slogger, logBuf := NewTestSlogger()
	c := New(mocks.NewMockPublisher(ctrl), slogger)

	for _, phase := range []string{protocol.PhaseInit, protocol.PhaseGo, protocol.PhaseDone, protocol.PhaseDone, protocol.PhaseDone} {
		c.HandlePhase(protocol.String{Data: phase})
		assert.Equal(t, phase, c.Phase())
	}
	assert.Equal(t, 1, logBuf.Count(t, "competition ended"))
}

func TestPhaseDoneFromUnknown(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	slogger, logBuf := NewTestSlogger()
	c := New(mocks.NewMockPublisher(ctrl), slogger)

	c.HandlePhase(protocol.String{Data: protocol.PhaseDone})
	c.HandlePhase(protocol.String{Data: protocol.PhaseDone})
	assert.Equal(t, 1, logBuf.Count(t, "competition ended"))

	// Leaving the terminal phase and coming back is a new transition.
	c.HandlePhase(protocol.String{Data: protocol.PhaseGo})
	c.HandlePhase(protocol.String{Data: protocol.PhaseDone})
	assert.Equal(t, 2, logBuf.Count(t, "competition ended"))
}

func TestOrdersPreserveArrivalOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	slogger, logBuf := NewTestSlogger()
	c := New(mocks.NewMockPublisher(ctrl), slogger)

	in := []protocol.Order{
		{OrderID: "order_0", Kits: []protocol.Kit{{KitType: "kit_0", Objects: []protocol.KitObject{{Type: "gear_part"}}}}},
		{OrderID: "order_1"},
		{OrderID: "order_0"}, // duplicates are kept
	}
	for _, o := range in {
		c.HandleOrder(o)
	}

	got := c.Orders()
	require.Len(t, got, 3)
	for i := range in {
		assert.Equal(t, in[i].OrderID, got[i].OrderID)
	}
	assert.Equal(t, "gear_part", got[0].Kits[0].Objects[0].Type)
	assert.Equal(t, 3, logBuf.Count(t, "received order"))
	assert.Contains(t, logBuf.String(), `"digest":"blake3:`)
}

func TestOrdersReturnsCopy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	slogger, _ := NewTestSlogger()
	c := New(mocks.NewMockPublisher(ctrl), slogger)
	c.HandleOrder(protocol.Order{OrderID: "order_0"})

	got := c.Orders()
	got[0].OrderID = "tampered"
	_ = append(got, protocol.Order{OrderID: "extra"})

	assert.Equal(t, "order_0", c.Orders()[0].OrderID)
	assert.Len(t, c.Orders(), 1)
}

func TestBreakBeamLogsEveryTrigger(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	slogger, logBuf := NewTestSlogger()
	c := New(mocks.NewMockPublisher(ctrl), slogger)

	for _, detected := range []bool{true, false, true, true, false} {
		c.HandleBreakBeam(protocol.Proximity{ObjectDetected: detected})
	}
	assert.Equal(t, 3, logBuf.Count(t, "break beam triggered"))
}

func TestThrottledLogs(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().Publish(protocol.ChannelArmCommand, gomock.Any()).Times(1)

	clock := newFakeClock()
	slogger, logBuf := NewTestSlogger()
	c := New(pub, slogger, WithClock(clock.Now))

	image := protocol.LogicalCameraImage{Models: []protocol.Model{{Type: "gear_part"}, {Type: "gasket_part"}}}
	gripper := protocol.VacuumGripperState{Enabled: true}

	for range 3 {
		c.HandleJointState(jointState(0))
		c.HandleLogicalCamera(image)
		c.HandleGripperState(gripper)
		clock.Advance(3 * time.Second)
	}
	assert.Equal(t, 1, logBuf.Count(t, "joint states (throttled to 0.1 Hz)"))
	assert.Equal(t, 1, logBuf.Count(t, "logical camera"))
	assert.Equal(t, 1, logBuf.Count(t, "gripper state (throttled to 0.1 Hz)"))

	clock.Advance(time.Second) // 10s after the first emission
	c.HandleJointState(jointState(1))
	c.HandleLogicalCamera(image)
	c.HandleGripperState(gripper)
	assert.Equal(t, 2, logBuf.Count(t, "joint states (throttled to 0.1 Hz)"))
	assert.Equal(t, 2, logBuf.Count(t, "logical camera"))
	assert.Equal(t, 2, logBuf.Count(t, "gripper state (throttled to 0.1 Hz)"))
	assert.Contains(t, logBuf.String(), `"objects":2`)

	// Every message still updates state.
	js, _ := c.JointState()
	assert.Equal(t, 1.0, js.Position[0])
	gs, ok := c.GripperState()
	assert.True(t, ok)
	assert.True(t, gs.Enabled)
}

func TestSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).AnyTimes()

	slogger, _ := NewTestSlogger()
	c := New(pub, slogger)
	c.HandlePhase(protocol.String{Data: protocol.PhaseGo})
	c.HandleScore(protocol.Float32{Data: 4})
	c.HandleOrder(protocol.Order{OrderID: "order_0"})
	c.HandleJointState(jointState(0))

	assert.Equal(t, Snapshot{
		Phase:         protocol.PhaseGo,
		Score:         4,
		Orders:        1,
		OrderIDs:      []string{"order_0"},
		Zeroed:        true,
		HasJointState: true,
	}, c.Snapshot())
}

func TestRegisterDispatchesThroughBus(t *testing.T) {
	slogger, logBuf := NewTestSlogger()
	bus := transport.NewBus(transport.WithLogger(slogger))
	c := New(bus, slogger)
	Register(bus, c, NewDetectors(slogger, nil))

	var commands []protocol.JointTrajectory
	transport.Subscribe(bus, protocol.ChannelArmCommand, func(m protocol.JointTrajectory) {
		commands = append(commands, m)
	})

	bus.Publish(protocol.ChannelCompetitionState, protocol.String{Data: protocol.PhaseGo})
	for i := range 3 {
		bus.Publish(protocol.ChannelOrders, protocol.Order{OrderID: "order_" + string(rune('0'+i))})
	}
	bus.Publish(protocol.ChannelScore, protocol.Float32{Data: 2})
	for range 4 {
		bus.Publish(protocol.ChannelJointStates, jointState(0.3))
	}
	bus.Publish(protocol.ChannelBreakBeam, protocol.Proximity{ObjectDetected: true})
	bus.Publish(protocol.ChannelProximitySensor, protocol.Range{Range: 9.5, MaxRange: 10})
	bus.Publish(protocol.ChannelLaserProfiler, protocol.LaserScan{Ranges: protocol.Samples{1}})
	bus.Publish(protocol.ChannelLogicalCamera, protocol.LogicalCameraImage{})
	bus.Publish(protocol.ChannelGripperState, protocol.VacuumGripperState{Attached: true})
	bus.Publish(protocol.ChannelCompetitionState, protocol.String{Data: protocol.PhaseDone})
	bus.Drain()

	require.Len(t, commands, 1)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0, 0, 0}, commands[0].Points[0].Positions)
	assert.Equal(t, ZeroPoseTimeFromStart, commands[0].Points[0].TimeFromStart)

	assert.Equal(t, []string{"order_0", "order_1", "order_2"}, c.Snapshot().OrderIDs)
	assert.Equal(t, 2.0, c.Score())
	assert.Equal(t, protocol.PhaseDone, c.Phase())
	assert.True(t, c.Zeroed())
	gs, ok := c.GripperState()
	assert.True(t, ok)
	assert.True(t, gs.Attached)

	assert.Equal(t, 1, logBuf.Count(t, "break beam triggered"))
	assert.Equal(t, 1, logBuf.Count(t, "proximity sensor sees something"))
	assert.Equal(t, 1, logBuf.Count(t, "laser profiler sees something"))
	assert.Equal(t, 1, logBuf.Count(t, "competition ended"))
}
