// Package environment outlines the interfaces and structs needed to
// implement concrete environments
package environment

import (
	"context"

	"github.com/samuelfneumann/navenv/timestep"
	"gonum.org/v1/gonum/mat"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() *mat.VecDense
}

// Ender determines when episodes end. If End returns true, it has
// marked the TimeStep as the last in the episode with the appropriate
// end type.
type Ender interface {
	End(*timestep.TimeStep) bool
}

// Environment implements an environment that an agent interacts with
// through Reset and Step. Both calls block until the environment has
// produced the next observation, which for environments backed by an
// external simulator may involve advancing simulated time.
type Environment interface {
	// Reset resets the environment between episodes and returns the
	// first TimeStep of the new episode
	Reset(ctx context.Context) (timestep.TimeStep, error)

	// Step takes one environmental step with the given action and
	// returns the next TimeStep and whether the episode has ended
	Step(ctx context.Context, action *mat.VecDense) (timestep.TimeStep,
		bool, error)

	RewardSpec() Spec
	DiscountSpec() Spec
	ObservationSpec() Spec
	ActionSpec() Spec
}
