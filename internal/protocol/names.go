package protocol

// Channels the node subscribes or publishes to.
const (
	ChannelScore            = "/ariac/current_score"
	ChannelCompetitionState = "/ariac/competition_state"
	ChannelOrders           = "/ariac/orders"
	ChannelJointStates      = "/ariac/joint_states"
	ChannelProximitySensor  = "/ariac/proximity_sensor_1"
	ChannelBreakBeam        = "/ariac/break_beam_1_change"
	ChannelLogicalCamera    = "/ariac/logical_camera_1"
	ChannelLaserProfiler    = "/ariac/laser_profiler_1"
	ChannelGripperState     = "/ariac/gripper/state"
	ChannelArmCommand       = "/ariac/arm/command"
)

// Request/response services exposed by the competition controller.
const (
	ServiceStartCompetition = "/ariac/start_competition"
	ServiceGripperControl   = "/ariac/gripper/control"
	ServiceConveyorControl  = "/ariac/conveyor/control"
	ServiceDroneControl     = "/ariac/drone"
)

// Competition phase labels published on ChannelCompetitionState.
const (
	PhaseUnknown = ""
	PhaseInit    = "init"
	PhaseGo      = "go"
	PhaseEndGame = "end_game"
	PhaseDone    = "done"
)

// ArmJointNames lists the controllable arm joints in command order.
// The vacuum gripper joint is not controllable and is not included.
var ArmJointNames = []string{
	"iiwa_joint_1",
	"iiwa_joint_2",
	"iiwa_joint_3",
	"iiwa_joint_4",
	"iiwa_joint_5",
	"iiwa_joint_6",
	"iiwa_joint_7",
	"linear_arm_actuator_joint",
}

// InboundChannels lists every channel the node consumes.
func InboundChannels() []string {
	return []string{
		ChannelScore,
		ChannelCompetitionState,
		ChannelOrders,
		ChannelJointStates,
		ChannelProximitySensor,
		ChannelBreakBeam,
		ChannelLogicalCamera,
		ChannelLaserProfiler,
		ChannelGripperState,
	}
}
