package navigation

import (
	"github.com/samuelfneumann/navenv/geometry"
	"github.com/samuelfneumann/navenv/msgs"
	"github.com/samuelfneumann/navenv/utils/floatutils"
)

// Mode is how a step chose its waypoint
type Mode int

const (
	// Projected waypoints are projected from the reference waypoint in
	// the direction of the action
	Projected Mode = iota

	// Pursuing re-publishes the previous waypoint, which the robot has
	// not reached yet
	Pursuing

	// NearGoalDirect publishes the reference waypoint itself
	NearGoalDirect
)

func (m Mode) String() string {
	switch m {
	case Projected:
		return "projected"
	case Pursuing:
		return "pursuing"
	default:
		return "near_goal_direct"
	}
}

// EpisodeState is the per-episode bookkeeping of a Waypoint
// environment. It is reset at the start of every episode and mutated
// once per step.
type EpisodeState struct {
	Steps    int
	MaxSteps int

	// FirstIssued is set once the first waypoint of the episode has been
	// published
	FirstIssued bool

	// Waypoint is the last published waypoint
	Waypoint geometry.Pose2D
	Mode     Mode
}

// Reset starts a new episode
func (e *EpisodeState) Reset() {
	*e = EpisodeState{MaxSteps: e.MaxSteps}
}

// selector chooses waypoints from steering angles
type selector struct {
	lookahead float64
	reach     float64
	nearGoal  float64
	degrees   bool
}

// next returns the waypoint to publish for a steering angle, given the
// reference waypoint and the latest observation, and records it in
// state.
//
// The first waypoint of an episode is always projected. Afterwards the
// previous waypoint is kept until the robot is within the reach
// threshold of it. Once reached, the reference waypoint is used directly
// if the goal is nearer than the near-goal threshold, otherwise a new
// waypoint is projected.
func (s selector) next(state *EpisodeState, ref, robot geometry.Pose2D,
	goal geometry.Polar, angle float64) geometry.Pose2D {
	switch {
	case !state.FirstIssued:
		state.FirstIssued = true
		state.Mode = Projected
		state.Waypoint = s.project(ref, angle)

	case geometry.Distance(robot, state.Waypoint) >= s.reach:
		state.Mode = Pursuing

	case goal.Rho < s.nearGoal:
		state.Mode = NearGoalDirect
		state.Waypoint = geometry.Pose2D{X: ref.X, Y: ref.Y}

	default:
		state.Mode = Projected
		state.Waypoint = s.project(ref, angle)
	}
	return state.Waypoint
}

func (s selector) project(ref geometry.Pose2D, angle float64) geometry.Pose2D {
	if s.degrees {
		angle = floatutils.Degrees(angle)
	}
	p := geometry.Project(ref.Vec(), s.lookahead, angle)
	return geometry.Pose2D{X: p.X, Y: p.Y}
}

// poseStamped returns the waypoint message for p. Waypoints carry no
// heading.
func poseStamped(p geometry.Pose2D, header msgs.Header) msgs.PoseStamped {
	return msgs.PoseStamped{
		Header: header,
		Pose: msgs.Pose{
			Position:    msgs.Point{X: p.X, Y: p.Y},
			Orientation: msgs.Quaternion{W: 1},
		},
	}
}
