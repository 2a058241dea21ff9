package environment

import (
	"testing"

	"github.com/samuelfneumann/navenv/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

func TestStepLimit(t *testing.T) {
	limit := NewStepLimit(3)

	for n := 1; n < 3; n++ {
		step := timestep.New(timestep.Mid, 0, 1, nil, n)
		assert.False(t, limit.End(&step), "step %v", n)
		assert.Equal(t, timestep.Nil, step.EndType())
	}

	step := timestep.New(timestep.Mid, 0, 1, nil, 3)
	require.True(t, limit.End(&step))
	assert.True(t, step.Last())
	assert.Equal(t, timestep.Timeout, step.EndType())
}

func TestUniformStarter(t *testing.T) {
	bounds := []r1.Interval{{Min: -1, Max: 1}, {Min: 5, Max: 5}}
	s := NewUniformStarter(bounds, 42)

	for i := 0; i < 100; i++ {
		start := s.Start()
		require.Equal(t, 2, start.Len())
		assert.GreaterOrEqual(t, start.AtVec(0), -1.0)
		assert.LessOrEqual(t, start.AtVec(0), 1.0)
		assert.Equal(t, 5.0, start.AtVec(1))
	}
}

func TestNewSpecPanicsOnMismatch(t *testing.T) {
	assert.Panics(t, func() {
		NewSpec(mat.NewVecDense(2, nil), Observation,
			mat.NewVecDense(1, nil), mat.NewVecDense(2, nil), Continuous)
	})
}

func TestSpecContains(t *testing.T) {
	s := NewScalarSpec(Action, -1, 1, Continuous)

	assert.True(t, s.Contains(mat.NewVecDense(1, []float64{0.5})))
	assert.False(t, s.Contains(mat.NewVecDense(1, []float64{1.5})))
	assert.False(t, s.Contains(mat.NewVecDense(2, nil)))
}
