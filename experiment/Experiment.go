// Package experiment implements functionality for running an experiment
package experiment

import (
	"context"

	"github.com/samuelfneumann/navenv/experiment/trackers"
)

// Experiment outlines structs that can run experiments. Experiments
// send every environment TimeStep to their Trackers, which cache the
// data they track until Save is called. Run runs episodes until the
// step budget of the experiment is spent, and RunEpisode runs a single
// episode.
type Experiment interface {
	Run(ctx context.Context) error

	// RunEpisode returns whether the step budget is spent
	RunEpisode(ctx context.Context) (bool, error)

	// Register adds a Tracker to the (possibly already running)
	// experiment
	Register(t trackers.Tracker)

	// Save saves all tracked data
	Save() error
}
