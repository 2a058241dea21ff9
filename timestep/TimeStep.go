// Package timestep implements timesteps of the agent-environment interaction
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of step that a TimeStep can be, either  first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// EndType denotes why an episode ended. It is the done reason reported
// to the training loop alongside the last TimeStep of an episode.
type EndType int

const (
	// Timeout is reported when the per-episode step budget is exhausted
	Timeout EndType = iota

	// Collision is reported when the robot came closer to an obstacle
	// than the safe distance
	Collision

	// GoalReached is reported when the robot reached the goal radius
	GoalReached

	// Nil is the end type of a TimeStep that did not end an episode
	Nil
)

func (e EndType) String() string {
	switch e {
	case Timeout:
		return "timeout"
	case Collision:
		return "collision"
	case GoalReached:
		return "goal_reached"
	default:
		return "nil"
	}
}

// TimeStep packages together a single timestep in an environment
type TimeStep struct {
	stepType    StepType
	Reward      float64
	Discount    float64
	Observation *mat.VecDense
	Number      int
	endType     EndType
}

// New returns a new First or Mid TimeStep. The end type of the TimeStep
// is Nil until SetEnd makes it the last step of its episode. New panics
// if t is Last.
func New(t StepType, r, d float64, o *mat.VecDense, n int) TimeStep {
	if t == Last {
		panic("new: last timesteps must be made with SetEnd")
	}
	return TimeStep{t, r, d, o, n, Nil}
}

// First returns whether a TimeStep is the first in an environment
func (t *TimeStep) First() bool {
	return t.stepType == First
}

// Mid returns whether a TimeStep is a middle step in an environment
func (t *TimeStep) Mid() bool {
	return t.stepType == Mid
}

// Last returns whether a TimeStep is the last step in an environment
func (t *TimeStep) Last() bool {
	return t.stepType == Last
}

// SetEnd marks the TimeStep as the last in its episode with the given
// end type
func (t *TimeStep) SetEnd(e EndType) {
	t.stepType = Last
	t.endType = e
}

// EndType returns why the episode ended on this TimeStep, or Nil if the
// TimeStep is not the last in its episode
func (t *TimeStep) EndType() EndType {
	return t.endType
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Discount: %.2f  |  " +
		"Step Number:  %v  |  End: %v"

	return fmt.Sprintf(str, t.stepType, t.Reward, t.Discount, t.Number,
		t.endType)
}
