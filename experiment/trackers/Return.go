package trackers

import (
	"fmt"

	ts "github.com/samuelfneumann/navenv/timestep"
)

// Return tracks and saves the episodic return in an experiment. When
// an environment returns a TimeStep, this Tracker will extract the
// reward and accumulate the return for each episode in the experiment.
//
// Note: An episode must finish for this Tracker to save its data.
// If the last episode in an experiment does not finish, that episode's
// return will not be saved.
type Return struct {
	lastTimeStep   int
	currentReturn  float64
	episodeReturns []float64
	filename       string
}

// NewReturn creates and returns a new *Return Tracker
func NewReturn(filename string) *Return {
	return &Return{lastTimeStep: -1, filename: filename}
}

// Track accumulates the reward of a timestep into the return of the
// current episode, and caches the return when the episode ends.
//
// Track returns an error if it is called for non-sequential timesteps
func (r *Return) Track(step ts.TimeStep) error {
	if r.lastTimeStep+1 != step.Number {
		return fmt.Errorf("track return: timesteps %v and %v are not "+
			"sequential", r.lastTimeStep, step.Number)
	}

	r.currentReturn += step.Reward
	if !step.Last() {
		r.lastTimeStep = step.Number
		return nil
	}

	// Episode has ended, save the return and begin tracking the
	// return for a new episode
	r.episodeReturns = append(r.episodeReturns, r.currentReturn)
	r.currentReturn = 0.0
	r.lastTimeStep = -1
	return nil
}

// Returns returns the returns of the finished episodes
func (r *Return) Returns() []float64 {
	return r.episodeReturns
}

// Save saves the data tracked by the Return Tracker to disk.
func (r *Return) Save() error {
	return save(r.filename, r.episodeReturns)
}
