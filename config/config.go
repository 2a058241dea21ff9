// Package config loads and validates the robot, action and environment
// configuration of a navigation environment.
package config

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// ErrConfig is wrapped by every configuration error
var ErrConfig = errors.New("invalid configuration")

// Config is the complete configuration of a navigation environment
type Config struct {
	Robot    Robot
	Settings Settings
	Env      Env
}

// Load reads the robot model, the settings and, if envPath is not
// empty, environment option overrides, then validates the result. All
// problems found are reported together.
func Load(robotPath, settingsPath, envPath string) (Config, error) {
	var cfg Config
	var err error

	cfg.Robot, err = LoadRobot(robotPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Settings, err = LoadSettings(settingsPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Env, err = LoadEnv(envPath)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration as a whole
func (c Config) Validate() error {
	err := multierr.Combine(
		c.Robot.validate(),
		c.Settings.validate(c.Env.DiscreteActions),
		c.Env.validate(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return nil
}

// SafeDist returns the configured safe distance, defaulting to 1.1
// times the robot radius
func (c Config) SafeDist() float64 {
	if c.Env.SafeDist > 0 {
		return c.Env.SafeDist
	}
	return 1.1 * c.Robot.Radius
}

func readYAML(path, what string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %v: %w", ErrConfig, what, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: parse %v %v: %w", ErrConfig, what, path, err)
	}
	return nil
}
