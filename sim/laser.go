package sim

import (
	"math"

	"github.com/ByteArena/box2d"
	"github.com/samuelfneumann/navenv/msgs"
)

// scan casts one ray per laser beam from the robot and returns the
// distance to the nearest fixture hit by each. Beams that hit nothing
// within range are NaN. It is called with w.mu held.
func (w *World) scan(header msgs.Header) msgs.LaserScan {
	robot := bodyPose(w.robot)
	laser := w.cfg.Robot
	origin := box2d.MakeB2Vec2(robot.X, robot.Y)

	ranges := make([]float64, laser.Beams)
	for i := range ranges {
		angle := robot.Theta + laser.AngleMin + float64(i)*laser.AngleIncrement
		end := box2d.MakeB2Vec2(
			robot.X+laser.MaxRange*math.Cos(angle),
			robot.Y+laser.MaxRange*math.Sin(angle),
		)

		nearest := math.NaN()
		w.world.RayCast(func(fixture *box2d.B2Fixture, point, normal box2d.B2Vec2,
			fraction float64) float64 {
			if fixture.GetBody() == w.robot {
				// Ignore the robot's own body and continue
				return -1
			}
			nearest = fraction * laser.MaxRange
			return fraction
		}, origin, end)
		ranges[i] = nearest
	}

	return msgs.LaserScan{
		Header:         header,
		AngleMin:       laser.AngleMin,
		AngleMax:       laser.AngleMax,
		AngleIncrement: laser.AngleIncrement,
		RangeMin:       0,
		RangeMax:       laser.MaxRange,
		Ranges:         ranges,
	}
}
