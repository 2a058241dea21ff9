// Package msgs defines the middleware messages exchanged between the
// navigation stack and the environment, along with the topics they are
// published on.
package msgs

import (
	"math"
	"time"
)

// Topics
const (
	TopicScan       = "scan"
	TopicRobotState = "plan_manager/robot_state"
	TopicSubgoal    = "plan_manager/subgoal"
	TopicGlobalPlan = "plan_manager/globalPlan"
	TopicWaypoint   = "/plan_manager/wp4train"

	obstacleTopicPrefix = "/flatland_server/debug/model/"
)

// MapFrame is the frame id of world-frame messages
const MapFrame = "map"

// ObstacleTopic returns the topic the markers of the named model are
// published on
func ObstacleTopic(name string) string {
	return obstacleTopicPrefix + name
}

// Header is the standard message header
type Header struct {
	Seq     uint32
	Stamp   time.Time
	FrameID string
}

// Point is a position in 3D space
type Point struct {
	X, Y, Z float64
}

// Vector3 is a direction and magnitude in 3D space
type Vector3 struct {
	X, Y, Z float64
}

// Quaternion is an orientation in 3D space
type Quaternion struct {
	X, Y, Z, W float64
}

// Yaw extracts yaw (radians) from a quaternion, discarding roll and
// pitch. The zero quaternion has yaw 0.
func (q Quaternion) Yaw() float64 {
	siny := 2.0 * (q.W*q.Z + q.X*q.Y)
	cosy := 1.0 - 2.0*(q.Y*q.Y+q.Z*q.Z)
	return math.Atan2(siny, cosy)
}

// QuaternionFromYaw returns the unit quaternion of a rotation of yaw
// radians about the z-axis
func QuaternionFromYaw(yaw float64) Quaternion {
	return Quaternion{Z: math.Sin(yaw / 2), W: math.Cos(yaw / 2)}
}

// Pose is a position and orientation
type Pose struct {
	Position    Point
	Orientation Quaternion
}

// PoseStamped is a Pose with a header
type PoseStamped struct {
	Header Header
	Pose   Pose
}

// Twist is a linear and angular velocity
type Twist struct {
	Linear  Vector3
	Angular Vector3
}

// RobotState is the pose and velocity of a robot
type RobotState struct {
	Pose  Pose
	Twist Twist
}

// RobotStateStamped is a RobotState with a header
type RobotStateStamped struct {
	Header Header
	State  RobotState
}

// LaserScan is a single sweep of a planar range finder. Beams without a
// return are reported as NaN.
type LaserScan struct {
	Header         Header
	AngleMin       float64
	AngleMax       float64
	AngleIncrement float64
	RangeMin       float64
	RangeMax       float64
	Ranges         []float64
}

// Marker is a visualization marker of a simulated model
type Marker struct {
	Header Header
	NS     string
	ID     int
	Pose   Pose
	Scale  Vector3
}

// MarkerArray holds the markers of a single model
type MarkerArray struct {
	Markers []Marker
}

// Path is a sequence of world-frame poses, as produced by a global
// planner
type Path struct {
	Header Header
	Poses  []PoseStamped
}
