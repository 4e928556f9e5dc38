package competition

import (
	"log/slog"
	"time"

	"github.com/mattjoyce/cellnode/internal/log"
	"github.com/mattjoyce/cellnode/internal/protocol"
)

const (
	// jointStateLogInterval throttles joint state, camera and gripper logs (0.1 Hz).
	jointStateLogInterval = 10 * time.Second
)

// Competition aggregates the competition channels into session state.
//
// All fields are owned by the bus dispatch goroutine. See the package doc
// for why there is no locking here.
type Competition struct {
	pub    Publisher
	logger *slog.Logger
	now    func() time.Time

	phase      string
	score      float64
	orders     []protocol.Order
	joints     protocol.JointState
	hasJoints  bool
	gripper    protocol.VacuumGripperState
	hasGripper bool
	zeroed     bool

	jointLog   *log.Throttle
	cameraLog  *log.Throttle
	gripperLog *log.Throttle
}

// Option configures a Competition.
type Option func(*Competition)

// WithClock sets the clock used by the log throttles.
func WithClock(now func() time.Time) Option {
	return func(c *Competition) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Competition in its initial state: unknown phase, zero score,
// no orders, no joint state, arm not zeroed.
func New(pub Publisher, logger *slog.Logger, opts ...Option) *Competition {
	c := &Competition{
		pub:    pub,
		logger: logger,
		now:    time.Now,
		phase:  protocol.PhaseUnknown,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.jointLog = log.NewThrottleWithClock(jointStateLogInterval, c.now)
	c.cameraLog = log.NewThrottleWithClock(jointStateLogInterval, c.now)
	c.gripperLog = log.NewThrottleWithClock(jointStateLogInterval, c.now)
	return c
}

// HandleScore records the current score. Every change is logged, decreases
// included.
func (c *Competition) HandleScore(msg protocol.Float32) {
	if msg.Data != c.score {
		c.logger.Info("score changed", "score", msg.Data, "previous", c.score)
	}
	c.score = msg.Data
}

// HandlePhase records the competition phase and logs the first transition
// into the terminal phase.
func (c *Competition) HandlePhase(msg protocol.String) {
	if msg.Data == protocol.PhaseDone && c.phase != protocol.PhaseDone {
		c.logger.Info("competition ended", "score", c.score, "orders", len(c.orders))
	}
	c.phase = msg.Data
}

// HandleOrder appends the order to the received orders as-is.
func (c *Competition) HandleOrder(msg protocol.Order) {
	c.logger.Info("received order",
		"order_id", msg.OrderID,
		"digest", msg.Digest(),
		"kits", len(msg.Kits),
		"objects", msg.ObjectCount(),
		"order", msg,
	)
	c.orders = append(c.orders, msg)
}

// HandleJointState stores the latest joint telemetry. The first message
// ever received sends the arm to the zero pose.
func (c *Competition) HandleJointState(msg protocol.JointState) {
	if c.jointLog.Allow() {
		c.logger.Info("joint states (throttled to 0.1 Hz)", "joint_state", msg)
	}
	c.joints = msg
	c.hasJoints = true

	if !c.zeroed {
		c.zeroed = true
		c.logger.Info("sending arm to zero joint positions")
		SendZeroPose(c.pub, c.logger)
	}
}

// HandleLogicalCamera logs how many models the camera sees.
func (c *Competition) HandleLogicalCamera(msg protocol.LogicalCameraImage) {
	if c.cameraLog.Allow() {
		c.logger.Info("logical camera", "objects", len(msg.Models))
	}
}

// HandleBreakBeam logs every triggered break beam reading.
func (c *Competition) HandleBreakBeam(msg protocol.Proximity) {
	if msg.ObjectDetected {
		c.logger.Info("break beam triggered")
	}
}

// HandleGripperState stores the latest vacuum gripper state.
func (c *Competition) HandleGripperState(msg protocol.VacuumGripperState) {
	if c.gripperLog.Allow() {
		c.logger.Info("gripper state (throttled to 0.1 Hz)", "enabled", msg.Enabled, "attached", msg.Attached)
	}
	c.gripper = msg
	c.hasGripper = true
}

// Score returns the last received score.
func (c *Competition) Score() float64 { return c.score }

// Phase returns the last received phase label, "" before any.
func (c *Competition) Phase() string { return c.phase }

// Zeroed reports whether the zero-pose command has been issued.
func (c *Competition) Zeroed() bool { return c.zeroed }

// HasJointState reports whether any joint telemetry has arrived.
func (c *Competition) HasJointState() bool { return c.hasJoints }

// JointState returns the latest joint telemetry.
func (c *Competition) JointState() (protocol.JointState, bool) { return c.joints, c.hasJoints }

// GripperState returns the latest gripper state.
func (c *Competition) GripperState() (protocol.VacuumGripperState, bool) {
	return c.gripper, c.hasGripper
}

// Orders returns a copy of the received orders in arrival order.
func (c *Competition) Orders() []protocol.Order {
	out := make([]protocol.Order, len(c.orders))
	copy(out, c.orders)
	return out
}

// Snapshot summarizes the session state.
type Snapshot struct {
	Phase         string   `json:"phase"`
	Score         float64  `json:"score"`
	Orders        int      `json:"orders"`
	OrderIDs      []string `json:"order_ids"`
	Zeroed        bool     `json:"zeroed"`
	HasJointState bool     `json:"has_joint_state"`
}

// Snapshot returns the current session summary.
func (c *Competition) Snapshot() Snapshot {
	ids := make([]string, 0, len(c.orders))
	for _, o := range c.orders {
		ids = append(ids, o.OrderID)
	}
	return Snapshot{
		Phase:         c.phase,
		Score:         c.score,
		Orders:        len(c.orders),
		OrderIDs:      ids,
		Zeroed:        c.zeroed,
		HasJointState: c.hasJoints,
	}
}
