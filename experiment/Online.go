package experiment

import (
	"context"
	"fmt"

	"github.com/samuelfneumann/navenv/agent"
	env "github.com/samuelfneumann/navenv/environment"
	"github.com/samuelfneumann/navenv/experiment/trackers"
	"github.com/samuelfneumann/navenv/logging"
	ts "github.com/samuelfneumann/navenv/timestep"
	"go.uber.org/multierr"
)

// Online is an Experiment that runs an agent online only. No offline
// evaluation is performed.
type Online struct {
	env.Environment
	agent.Agent
	maxSteps     int
	currentSteps int
	episodes     int
	trackers     []trackers.Tracker
	logger       logging.Logger
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The steps parameter determines how
// many timesteps the experiment is run for, and t determines what data
// is tracked.
func NewOnline(e env.Environment, a agent.Agent, steps int,
	logger logging.Logger, t ...trackers.Tracker) *Online {
	return &Online{
		Environment: e,
		Agent:       a,
		maxSteps:    steps,
		trackers:    t,
		logger:      logger,
	}
}

// Register registers a Tracker with the experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t trackers.Tracker) {
	o.trackers = append(o.trackers, t)
}

// RunEpisode runs a single episode of the experiment, cut short if the
// step budget runs out
func (o *Online) RunEpisode(ctx context.Context) (bool, error) {
	step, err := o.Environment.Reset(ctx)
	if err != nil {
		return false, fmt.Errorf("run episode: %w", err)
	}
	if err := o.Agent.ObserveFirst(step); err != nil {
		return false, fmt.Errorf("run episode: %w", err)
	}
	if err := o.track(step); err != nil {
		return false, fmt.Errorf("run episode: %w", err)
	}

	var ret float64
	for !step.Last() && o.currentSteps < o.maxSteps {
		o.currentSteps++

		// Select action, step in environment
		action := o.Agent.SelectAction(step)
		step, _, err = o.Environment.Step(ctx, action)
		if err != nil {
			return false, fmt.Errorf("run episode: %w", err)
		}
		ret += step.Reward

		if err := o.track(step); err != nil {
			return false, fmt.Errorf("run episode: %w", err)
		}

		// Observe the timestep and step the agent
		if err := o.Agent.Observe(action, step); err != nil {
			return false, fmt.Errorf("run episode: %w", err)
		}
		if err := o.Agent.Step(); err != nil {
			return false, fmt.Errorf("run episode: %w", err)
		}
	}

	if step.Last() {
		o.episodes++
		o.Agent.EndEpisode()
		o.logger.Debugw("episode finished", "episode", o.episodes,
			"steps", step.Number, "return", ret, "end", step.EndType(),
			"total_steps", o.currentSteps)
	}

	return o.currentSteps >= o.maxSteps, nil
}

// Run runs the entire experiment for all timesteps
func (o *Online) Run(ctx context.Context) error {
	for {
		ended, err := o.RunEpisode(ctx)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if ended {
			return nil
		}
	}
}

// Episodes returns the number of finished episodes
func (o *Online) Episodes() int {
	return o.episodes
}

// Steps returns the number of steps taken
func (o *Online) Steps() int {
	return o.currentSteps
}

// Save saves all the data cached by the Trackers
func (o *Online) Save() error {
	var err error
	for _, t := range o.trackers {
		err = multierr.Append(err, t.Save())
	}
	return err
}

// track sends the current timestep to each tracker
func (o *Online) track(t ts.TimeStep) error {
	for _, tracker := range o.trackers {
		if err := tracker.Track(t); err != nil {
			return err
		}
	}
	return nil
}

var _ Experiment = (*Online)(nil)
