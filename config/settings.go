package config

import (
	"fmt"

	"go.uber.org/multierr"
)

// DiscreteAction is one entry of a discrete action space. Only the
// angular value is used, as the steering angle of the waypoint.
type DiscreteAction struct {
	Name    string  `yaml:"name"`
	Linear  float64 `yaml:"linear"`
	Angular float64 `yaml:"angular"`
}

// Settings holds the action spaces of the robot
type Settings struct {
	DiscreteActions []DiscreteAction

	// AngularRange bounds continuous steering angles. It is nil when the
	// settings declare no continuous action space.
	AngularRange []float64
}

type settingsFile struct {
	Robot struct {
		DiscreteActions   []DiscreteAction `yaml:"discrete_actions"`
		ContinuousActions struct {
			AngularRange []float64 `yaml:"angular_range"`
		} `yaml:"continuous_actions"`
	} `yaml:"robot"`
}

// LoadSettings reads a settings file
func LoadSettings(path string) (Settings, error) {
	var f settingsFile
	if err := readYAML(path, "settings", &f); err != nil {
		return Settings{}, err
	}
	return Settings{
		DiscreteActions: f.Robot.DiscreteActions,
		AngularRange:    f.Robot.ContinuousActions.AngularRange,
	}, nil
}

func (s Settings) validate(discrete bool) error {
	if discrete {
		if len(s.DiscreteActions) == 0 {
			return fmt.Errorf("settings: robot.discrete_actions is empty")
		}
		return nil
	}

	var err error
	if len(s.AngularRange) != 2 {
		err = multierr.Append(err, fmt.Errorf(
			"settings: robot.continuous_actions.angular_range must have 2 "+
				"entries, got %v", len(s.AngularRange)))
	} else if s.AngularRange[0] > s.AngularRange[1] {
		err = multierr.Append(err, fmt.Errorf(
			"settings: angular_range lower bound %v exceeds upper bound %v",
			s.AngularRange[0], s.AngularRange[1]))
	}
	return err
}
