package protocol

import "time"

// Header carries the sequence and stamp of sensor messages.
type Header struct {
	Seq     uint32    `json:"seq,omitempty"`
	Stamp   time.Time `json:"stamp,omitzero"`
	FrameID string    `json:"frame_id,omitempty"`
}

// Float32 is the score message.
type Float32 struct {
	Data float64 `json:"data"`
}

// String is the competition phase message.
type String struct {
	Data string `json:"data"`
}

// Point is a position in metres.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is an orientation.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Pose is a position plus orientation.
type Pose struct {
	Position    Point      `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// KitObject is one part requested inside a kit.
type KitObject struct {
	Type string `json:"type"`
	Pose Pose   `json:"pose"`
}

// Kit groups the objects that must be delivered together.
type Kit struct {
	KitType string      `json:"kit_type"`
	Objects []KitObject `json:"objects"`
}

// Order is a work order announced by the competition controller.
// The node stores it as received and never inspects the kits.
type Order struct {
	OrderID string `json:"order_id"`
	Kits    []Kit  `json:"kits"`
}

// JointState is the joint telemetry message.
type JointState struct {
	Header   Header    `json:"header"`
	Name     []string  `json:"name"`
	Position []float64 `json:"position"`
	Velocity []float64 `json:"velocity"`
	Effort   []float64 `json:"effort,omitempty"`
}

// Range is a proximity sensor reading.
type Range struct {
	Header        Header  `json:"header"`
	RadiationType uint8   `json:"radiation_type"`
	FieldOfView   float64 `json:"field_of_view"`
	MinRange      float64 `json:"min_range"`
	MaxRange      float64 `json:"max_range"`
	Range         float64 `json:"range"`
}

// LaserScan is a laser profiler reading. Ranges may hold NaN or infinite
// samples for beams without a return.
type LaserScan struct {
	Header         Header    `json:"header"`
	AngleMin       float64   `json:"angle_min"`
	AngleMax       float64   `json:"angle_max"`
	AngleIncrement float64   `json:"angle_increment"`
	TimeIncrement  float64   `json:"time_increment"`
	ScanTime       float64   `json:"scan_time"`
	RangeMin       float64   `json:"range_min"`
	RangeMax       float64   `json:"range_max"`
	Ranges         Samples   `json:"ranges"`
	Intensities    []float64 `json:"intensities,omitempty"`
}

// Model is one object seen by the logical camera.
type Model struct {
	Type string `json:"type"`
	Pose Pose   `json:"pose"`
}

// LogicalCameraImage lists the models seen by a logical camera.
type LogicalCameraImage struct {
	Models []Model `json:"models"`
	Pose   Pose    `json:"pose"`
}

// Proximity is the break beam message.
type Proximity struct {
	ObjectDetected bool `json:"object_detected"`
}

// VacuumGripperState reports the gripper suction and attachment status.
type VacuumGripperState struct {
	Enabled  bool `json:"enabled"`
	Attached bool `json:"attached"`
}

// JointTrajectoryPoint is one waypoint. TimeFromStart is encoded in nanoseconds.
type JointTrajectoryPoint struct {
	Positions     []float64     `json:"positions"`
	Velocities    []float64     `json:"velocities,omitempty"`
	Accelerations []float64     `json:"accelerations,omitempty"`
	Effort        []float64     `json:"effort,omitempty"`
	TimeFromStart time.Duration `json:"time_from_start"`
}

// JointTrajectory is the arm command message.
type JointTrajectory struct {
	Header     Header                 `json:"header"`
	JointNames []string               `json:"joint_names"`
	Points     []JointTrajectoryPoint `json:"points"`
}

// TriggerRequest is the empty start competition request.
type TriggerRequest struct{}

// TriggerResponse is the start competition response.
type TriggerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// GripperControlRequest enables or disables the vacuum gripper.
type GripperControlRequest struct {
	Enable bool `json:"enable"`
}

// ConveyorControlRequest sets the conveyor belt power (0-100).
type ConveyorControlRequest struct {
	Power float64 `json:"power"`
}

// DroneControlRequest dispatches the delivery drone for a shipment.
type DroneControlRequest struct {
	ShipmentType string `json:"shipment_type"`
}

// ControlResponse is returned by the gripper, conveyor and drone services.
type ControlResponse struct {
	Success bool `json:"success"`
}
