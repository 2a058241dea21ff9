package config

import (
	"fmt"
	"time"

	"github.com/samuelfneumann/navenv/observation"
	"go.uber.org/multierr"
)

// Units in which steering angles are passed to cos and sin when
// projecting waypoints
const (
	Degrees = "degrees"
	Radians = "radians"
)

// Sync configures synchronization of laser scans and robot states
type Sync struct {
	Slop        time.Duration `yaml:"slop"`
	QueueSize   int           `yaml:"queue_size"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
	Poll        time.Duration `yaml:"poll"`
}

// Reward holds the reward weights of the navigation task
type Reward struct {
	Goal      float64 `yaml:"goal"`
	Collision float64 `yaml:"collision"`

	// Approach and Retreat scale the change in goal distance when the
	// robot closes in on or moves away from the goal
	Approach float64 `yaml:"approach"`
	Retreat  float64 `yaml:"retreat"`

	// Proximity is the largest penalty for approaching obstacles, paid
	// at the safe distance and decreasing linearly to zero at the safe
	// distance plus Slack
	Proximity float64 `yaml:"proximity"`
	Slack     float64 `yaml:"slack"`

	// PathDeviation scales the distance of the robot to the global plan
	PathDeviation float64 `yaml:"path_deviation"`
}

// Env holds the options of the navigation environment
type Env struct {
	GoalRadius         float64 `yaml:"goal_radius"`
	SafeDist           float64 `yaml:"safe_dist"`
	MaxStepsPerEpisode int     `yaml:"max_steps_per_episode"`
	ObstacleSlots      int     `yaml:"obstacle_slots"`
	DiscreteActions    bool    `yaml:"discrete_actions"`
	TrainMode          bool    `yaml:"train_mode"`
	Discount           float64 `yaml:"discount"`

	LookaheadRadius   float64 `yaml:"lookahead_radius"`
	ReachThreshold    float64 `yaml:"reach_threshold"`
	NearGoalThreshold float64 `yaml:"near_goal_threshold"`
	ProjectionUnits   string  `yaml:"projection_units"`

	Sync   Sync   `yaml:"sync"`
	Reward Reward `yaml:"reward"`
}

// DefaultEnv returns the default environment options
func DefaultEnv() Env {
	return Env{
		GoalRadius:         0.1,
		MaxStepsPerEpisode: 100,
		ObstacleSlots:      8,
		TrainMode:          true,
		Discount:           0.99,

		LookaheadRadius:   1.5,
		ReachThreshold:    0.6,
		NearGoalThreshold: 2.0,
		ProjectionUnits:   Degrees,

		Sync: Sync{
			Slop:        50 * time.Millisecond,
			QueueSize:   100,
			Timeout:     30 * time.Second,
			MaxAttempts: 10000,
			Poll:        5 * time.Millisecond,
		},
		Reward: Reward{
			Goal:      15,
			Collision: 10,
			Approach:  0.3,
			Retreat:   0.5,
			Proximity: 0.25,
			Slack:     0.5,
		},
	}
}

// LoadEnv returns the default options overridden by those in the file
// at path. An empty path returns the defaults.
func LoadEnv(path string) (Env, error) {
	env := DefaultEnv()
	if path == "" {
		return env, nil
	}
	if err := readYAML(path, "environment options", &env); err != nil {
		return Env{}, err
	}
	return env, nil
}

func (e Env) validate() error {
	var err error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf("env: "+format, args...))
		}
	}

	check(e.GoalRadius > 0, "goal_radius must be positive, got %v",
		e.GoalRadius)
	check(e.SafeDist >= 0, "safe_dist must be non-negative, got %v",
		e.SafeDist)
	check(e.MaxStepsPerEpisode > 0,
		"max_steps_per_episode must be positive, got %v",
		e.MaxStepsPerEpisode)
	check(e.ObstacleSlots >= 0, "obstacle_slots must be non-negative, got %v",
		e.ObstacleSlots)
	check(e.Discount >= 0 && e.Discount <= 1,
		"discount must be in [0, 1], got %v", e.Discount)
	check(e.LookaheadRadius > 0, "lookahead_radius must be positive, got %v",
		e.LookaheadRadius)
	check(e.ReachThreshold > 0, "reach_threshold must be positive, got %v",
		e.ReachThreshold)
	check(e.NearGoalThreshold >= 0,
		"near_goal_threshold must be non-negative, got %v",
		e.NearGoalThreshold)
	check(e.ProjectionUnits == Degrees || e.ProjectionUnits == Radians,
		"projection_units must be %q or %q, got %q", Degrees, Radians,
		e.ProjectionUnits)

	check(e.Sync.Slop >= 0, "sync.slop must be non-negative, got %v",
		e.Sync.Slop)
	check(e.Sync.QueueSize > 0, "sync.queue_size must be positive, got %v",
		e.Sync.QueueSize)
	check(e.Sync.Timeout > 0, "sync.timeout must be positive, got %v",
		e.Sync.Timeout)
	check(e.Sync.MaxAttempts > 0,
		"sync.max_attempts must be positive, got %v", e.Sync.MaxAttempts)
	check(e.Sync.Poll > 0, "sync.poll must be positive, got %v", e.Sync.Poll)

	check(e.Reward.Slack >= 0, "reward.slack must be non-negative, got %v",
		e.Reward.Slack)

	return err
}

// Observation returns the configuration of the observation pipeline
func (c Config) Observation() observation.Config {
	return observation.Config{
		Beams:         c.Robot.Beams,
		MaxRange:      c.Robot.MaxRange,
		ObstacleSlots: c.Env.ObstacleSlots,
		Slop:          c.Env.Sync.Slop,
		QueueSize:     c.Env.Sync.QueueSize,
		Timeout:       c.Env.Sync.Timeout,
		MaxAttempts:   c.Env.Sync.MaxAttempts,
		Poll:          c.Env.Sync.Poll,
	}
}
