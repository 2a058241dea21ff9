// Package sim implements a planar robot simulator on box2d. It serves
// the world stepping and task generation services and publishes laser
// scans, robot states, planner output and obstacle markers on a bus.
package sim

import (
	"fmt"
	"time"

	"github.com/samuelfneumann/navenv/config"
)

const (
	// Velocity and position iterations of the box2d solver
	velocityIterations = 8
	positionIterations = 3

	// Attempts at placing a goal or obstacle before giving up on the
	// minimum distance constraints
	placementAttempts = 100
)

// Config configures a World
type Config struct {
	// Width and Height of the walled arena, in meters
	Width  float64
	Height float64

	// Robot is the robot model, whose laser is simulated
	Robot config.Robot

	// Tick is the simulated time advanced by each step
	Tick time.Duration

	// RobotSpeed is the speed at which the robot drives towards its
	// waypoint
	RobotSpeed float64

	StaticObstacles  int
	DynamicObstacles int
	ObstacleRadius   float64
	ObstacleSpeed    float64

	// MinGoalDistance is the smallest distance between the start and
	// goal of a task
	MinGoalDistance float64

	// Lookahead is the distance along the global plan between the
	// robot's projection on the plan and the sub-goal
	Lookahead float64

	// PlanResolution is the spacing of global plan poses
	PlanResolution float64

	// StateLag is subtracted from robot state stamps
	StateLag time.Duration

	Seed uint64
}

// DefaultConfig returns the default configuration of a World simulating
// robot
func DefaultConfig(robot config.Robot) Config {
	return Config{
		Width:            20,
		Height:           20,
		Robot:            robot,
		Tick:             100 * time.Millisecond,
		RobotSpeed:       0.5,
		StaticObstacles:  4,
		DynamicObstacles: 4,
		ObstacleRadius:   0.3,
		ObstacleSpeed:    0.3,
		MinGoalDistance:  6,
		Lookahead:        2,
		PlanResolution:   0.5,
	}
}

func (c Config) validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("arena must have positive size, got %vx%v",
			c.Width, c.Height)
	case c.Tick <= 0:
		return fmt.Errorf("tick must be positive, got %v", c.Tick)
	case c.Robot.Beams <= 0:
		return fmt.Errorf("robot laser must have beams, got %v",
			c.Robot.Beams)
	case c.Robot.MaxRange <= 0:
		return fmt.Errorf("robot laser must have positive range, got %v",
			c.Robot.MaxRange)
	case c.StaticObstacles < 0 || c.DynamicObstacles < 0:
		return fmt.Errorf("obstacle counts must be non-negative")
	case c.PlanResolution <= 0:
		return fmt.Errorf("plan resolution must be positive, got %v",
			c.PlanResolution)
	}
	return nil
}

// margin is the distance from the walls within which nothing is placed
func (c Config) margin() float64 {
	return c.Robot.Radius + c.ObstacleRadius + 0.5
}
