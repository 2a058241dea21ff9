package agent

import (
	"math"
	"testing"

	"github.com/samuelfneumann/navenv/environment"
	"github.com/samuelfneumann/navenv/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomContinuous(t *testing.T) {
	spec := environment.NewScalarSpec(environment.Action, -math.Pi, math.Pi,
		environment.Continuous)
	a, err := NewRandom(spec, 1)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		action := a.SelectAction(timestep.TimeStep{})
		require.Equal(t, 1, action.Len())
		assert.True(t, spec.Contains(action), "action %v", action.AtVec(0))
	}
}

func TestRandomDiscrete(t *testing.T) {
	spec := environment.NewScalarSpec(environment.Action, 0, 3,
		environment.Discrete)
	a, err := NewRandom(spec, 1)
	require.NoError(t, err)

	counts := make(map[float64]int)
	for i := 0; i < 4000; i++ {
		action := a.SelectAction(timestep.TimeStep{}).AtVec(0)
		require.Equal(t, math.Trunc(action), action)
		require.True(t, action >= 0 && action <= 3, "action %v", action)
		counts[action]++
	}

	assert.Len(t, counts, 4)
	for action, n := range counts {
		// Each action is chosen about a quarter of the time
		assert.InDelta(t, 1000, n, 200, "action %v", action)
	}
}

func TestRandomSeeded(t *testing.T) {
	spec := environment.NewScalarSpec(environment.Action, -1, 1,
		environment.Continuous)
	a, err := NewRandom(spec, 42)
	require.NoError(t, err)
	b, err := NewRandom(spec, 42)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.SelectAction(timestep.TimeStep{}).AtVec(0),
			b.SelectAction(timestep.TimeStep{}).AtVec(0))
	}
}

func TestRandomCounts(t *testing.T) {
	spec := environment.NewScalarSpec(environment.Action, -1, 1,
		environment.Continuous)
	a, err := NewRandom(spec, 0)
	require.NoError(t, err)

	require.NoError(t, a.ObserveFirst(timestep.TimeStep{}))
	for i := 0; i < 3; i++ {
		action := a.SelectAction(timestep.TimeStep{})
		require.NoError(t, a.Observe(action, timestep.TimeStep{}))
		require.NoError(t, a.Step())
	}
	a.EndEpisode()

	assert.Equal(t, 3, a.Steps())
	assert.Equal(t, 1, a.Episodes())
}

func TestNewRandomInvalidSpec(t *testing.T) {
	obs := environment.NewScalarSpec(environment.Observation, 0, 1,
		environment.Continuous)
	_, err := NewRandom(obs, 0)
	assert.Error(t, err)

	empty := environment.NewScalarSpec(environment.Action, 1, 0,
		environment.Continuous)
	_, err = NewRandom(empty, 0)
	assert.Error(t, err)
}
