package agent

import (
	"fmt"

	"github.com/samuelfneumann/navenv/environment"
	"github.com/samuelfneumann/navenv/timestep"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// sampler samples a single action dimension
type sampler interface {
	Rand() float64
}

// Random is an Agent that selects actions uniformly at random from an
// action space and never learns
type Random struct {
	spec     environment.Spec
	samplers []sampler
	offsets  []float64

	steps    int
	episodes int
}

// NewRandom returns a new Random agent acting in the action space
// described by spec. Discrete action dimensions sample the integers
// between their bounds, continuous dimensions sample the interval
// between their bounds.
func NewRandom(spec environment.Spec, seed uint64) (*Random, error) {
	if spec.Type != environment.Action {
		return nil, fmt.Errorf("new random agent: expected an action spec, "+
			"got %v", spec.Type)
	}

	n := spec.LowerBound.Len()
	a := &Random{
		spec:     spec,
		samplers: make([]sampler, n),
		offsets:  make([]float64, n),
	}

	source := rand.NewSource(seed)
	for i := 0; i < n; i++ {
		low, high := spec.LowerBound.AtVec(i), spec.UpperBound.AtVec(i)
		if low > high {
			return nil, fmt.Errorf("new random agent: empty bounds [%v, %v] "+
				"in dimension %v", low, high, i)
		}

		if spec.Cardinality == environment.Discrete {
			// Every integer in the bounds is equally likely
			numActions := int(high-low) + 1
			probs := make([]float64, numActions)
			for j := range probs {
				probs[j] = 1.0 / float64(numActions)
			}
			categorical := distuv.NewCategorical(probs, source)
			a.samplers[i] = &categorical
			a.offsets[i] = low
		} else {
			a.samplers[i] = distuv.Uniform{Min: low, Max: high, Src: source}
		}
	}
	return a, nil
}

// SelectAction samples a random action. The timestep is ignored.
func (a *Random) SelectAction(timestep.TimeStep) *mat.VecDense {
	action := mat.NewVecDense(len(a.samplers), nil)
	for i, s := range a.samplers {
		action.SetVec(i, a.offsets[i]+s.Rand())
	}
	return action
}

// ObserveFirst records the start of an episode
func (a *Random) ObserveFirst(timestep.TimeStep) error {
	return nil
}

// Observe records a transition
func (a *Random) Observe(mat.Vector, timestep.TimeStep) error {
	a.steps++
	return nil
}

// Step does nothing, a Random agent never learns
func (a *Random) Step() error { return nil }

// EndEpisode records the end of an episode
func (a *Random) EndEpisode() {
	a.episodes++
}

// Steps returns the number of transitions observed
func (a *Random) Steps() int { return a.steps }

// Episodes returns the number of episodes ended
func (a *Random) Episodes() int { return a.episodes }

var _ Agent = (*Random)(nil)
