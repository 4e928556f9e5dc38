package competition

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mattjoyce/cellnode/internal/protocol"
)

const (
	// ZeroPoseTimeFromStart is how long the arm is given to reach the zero pose.
	ZeroPoseTimeFromStart = time.Millisecond

	// ArmMoveTimeFromStart is the default time allowed for an operator move.
	ArmMoveTimeFromStart = time.Second
)

// NewArmCommand builds a single-waypoint trajectory for the arm joints.
func NewArmCommand(positions []float64, timeFromStart time.Duration) protocol.JointTrajectory {
	names := make([]string, len(protocol.ArmJointNames))
	copy(names, protocol.ArmJointNames)

	pos := make([]float64, len(positions))
	copy(pos, positions)

	return protocol.JointTrajectory{
		JointNames: names,
		Points: []protocol.JointTrajectoryPoint{{
			Positions:     pos,
			TimeFromStart: timeFromStart,
		}},
	}
}

// SendArmToState publishes a command moving every arm joint to positions.
// positions must have one entry per arm joint.
func SendArmToState(pub Publisher, positions []float64, timeFromStart time.Duration, logger *slog.Logger) error {
	if len(positions) != len(protocol.ArmJointNames) {
		return fmt.Errorf("arm command needs %d positions, got %d", len(protocol.ArmJointNames), len(positions))
	}
	msg := NewArmCommand(positions, timeFromStart)
	logger.Info("sending arm command", "command", msg)
	pub.Publish(protocol.ChannelArmCommand, msg)
	return nil
}

// SendZeroPose commands every arm joint to 0.0.
func SendZeroPose(pub Publisher, logger *slog.Logger) {
	zeros := make([]float64, len(protocol.ArmJointNames))
	// Length always matches, so the error path is unreachable.
	_ = SendArmToState(pub, zeros, ZeroPoseTimeFromStart, logger)
}
