package transport

import "context"

// Stepper advances a simulated world by one tick. Sensor messages
// produced by the tick are published asynchronously.
type Stepper interface {
	StepWorld(ctx context.Context) error
}

// StepperFunc adapts a function to the Stepper interface
type StepperFunc func(ctx context.Context) error

// StepWorld calls f(ctx)
func (f StepperFunc) StepWorld(ctx context.Context) error {
	return f(ctx)
}

// TaskGenerator regenerates training scenarios: robot start pose, goal
// and obstacle placement.
type TaskGenerator interface {
	// ResetTask places the robot, goal and obstacles for a new episode
	ResetTask(ctx context.Context) error

	// ObstacleNames returns the model names of all obstacles in the
	// current scenario. Dynamic obstacles contain "dynamic" in their
	// name.
	ObstacleNames(ctx context.Context) ([]string, error)
}

// PubSub is both a Publisher and a Subscriber
type PubSub interface {
	Publisher
	Subscriber
}
