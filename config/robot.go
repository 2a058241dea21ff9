package config

import (
	"fmt"
	"math"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultRadius is used for circular footprints without a radius
	DefaultRadius = 0.3

	// RadiusInflation scales the footprint radius
	RadiusInflation = 1.04

	footprintBody = "base_footprint"
	laserPlugin   = "Laser"
)

// Robot describes the robot model: its inflated radius and laser
type Robot struct {
	Radius float64

	AngleMin       float64
	AngleMax       float64
	AngleIncrement float64
	MaxRange       float64

	// Beams is the number of laser beams,
	// round((AngleMax-AngleMin)/AngleIncrement) + 1
	Beams int
}

type robotModel struct {
	Bodies []struct {
		Name       string `yaml:"name"`
		Footprints []struct {
			Type   string   `yaml:"type"`
			Radius *float64 `yaml:"radius"`
		} `yaml:"footprints"`
	} `yaml:"bodies"`
	Plugins []struct {
		Type  string  `yaml:"type"`
		Name  string  `yaml:"name"`
		Range float64 `yaml:"range"`
		Angle struct {
			Min       float64 `yaml:"min"`
			Max       float64 `yaml:"max"`
			Increment float64 `yaml:"increment"`
		} `yaml:"angle"`
	} `yaml:"plugins"`
}

// LoadRobot reads a flatland robot model file
func LoadRobot(path string) (Robot, error) {
	var model robotModel
	if err := readYAML(path, "robot model", &model); err != nil {
		return Robot{}, err
	}
	return model.robot(), nil
}

// ParseRobot parses a flatland robot model
func ParseRobot(data []byte) (Robot, error) {
	var model robotModel
	if err := yaml.Unmarshal(data, &model); err != nil {
		return Robot{}, fmt.Errorf("%w: parse robot model: %w", ErrConfig, err)
	}
	return model.robot(), nil
}

func (m robotModel) robot() Robot {
	var r Robot
	for _, body := range m.Bodies {
		if body.Name != footprintBody {
			continue
		}
		for _, fp := range body.Footprints {
			if fp.Type != "circle" {
				continue
			}
			radius := DefaultRadius
			if fp.Radius != nil && *fp.Radius != 0 {
				radius = *fp.Radius
			}
			r.Radius = radius * RadiusInflation
		}
	}

	for _, plugin := range m.Plugins {
		if plugin.Type != laserPlugin {
			continue
		}
		r.AngleMin = plugin.Angle.Min
		r.AngleMax = plugin.Angle.Max
		r.AngleIncrement = plugin.Angle.Increment
		r.MaxRange = plugin.Range
		if r.AngleIncrement > 0 {
			r.Beams = int(math.Round(
				(r.AngleMax-r.AngleMin)/r.AngleIncrement)) + 1
		}
	}
	return r
}

func (r Robot) validate() error {
	var err error
	if r.Radius <= 0 {
		err = multierr.Append(err, fmt.Errorf(
			"robot: no circular footprint on body %q", footprintBody))
	}
	if r.AngleIncrement <= 0 {
		err = multierr.Append(err, fmt.Errorf(
			"robot: %v plugin angle increment must be positive, got %v",
			laserPlugin, r.AngleIncrement))
	} else if r.Beams <= 0 {
		err = multierr.Append(err, fmt.Errorf(
			"robot: laser angle range [%v, %v] yields no beams",
			r.AngleMin, r.AngleMax))
	}
	if r.MaxRange <= 0 {
		err = multierr.Append(err, fmt.Errorf(
			"robot: %v plugin range must be positive, got %v", laserPlugin,
			r.MaxRange))
	}
	return err
}
