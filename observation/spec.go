package observation

import (
	"math"

	"github.com/samuelfneumann/navenv/environment"
	"gonum.org/v1/gonum/mat"
)

// MaxGoalRange is the upper bound of the goal range in observation
// specs
const MaxGoalRange = 10.0

// Spec returns the observation specification of vectors produced under
// cfg: laser ranges in [0, MaxRange], goal range in [0, MaxGoalRange],
// goal bearing in [-π, π] and per obstacle slot a range in [0, +Inf)
// and bearing in [-π, π].
func Spec(cfg Config) environment.Spec {
	n := cfg.Len()
	low := mat.NewVecDense(n, nil)
	high := mat.NewVecDense(n, nil)

	for i := 0; i < cfg.Beams; i++ {
		high.SetVec(i, cfg.MaxRange)
	}
	high.SetVec(cfg.Beams, MaxGoalRange)
	low.SetVec(cfg.Beams+1, -math.Pi)
	high.SetVec(cfg.Beams+1, math.Pi)

	for slot := 0; slot < cfg.ObstacleSlots; slot++ {
		i := cfg.Beams + 2 + 2*slot
		high.SetVec(i, math.Inf(1))
		low.SetVec(i+1, -math.Pi)
		high.SetVec(i+1, math.Pi)
	}

	return environment.NewSpec(mat.NewVecDense(n, nil),
		environment.Observation, low, high, environment.Continuous)
}
