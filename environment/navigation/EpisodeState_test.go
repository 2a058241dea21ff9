package navigation

import (
	"math"
	"testing"

	"github.com/samuelfneumann/navenv/geometry"
	"github.com/stretchr/testify/assert"
)

func testSelector(degrees bool) selector {
	return selector{lookahead: 1.5, reach: 0.6, nearGoal: 2.0, degrees: degrees}
}

func TestSelectorFirstWaypointIsProjected(t *testing.T) {
	s := testSelector(false)
	var state EpisodeState
	ref := geometry.Pose2D{X: 2, Y: 3}

	// The robot is far from any previous waypoint and near the goal, but
	// the first waypoint is always projected
	wp := s.next(&state, ref, geometry.Pose2D{X: 50}, geometry.Polar{Rho: 1},
		math.Pi/2)
	assert.True(t, state.FirstIssued)
	assert.Equal(t, Projected, state.Mode)
	assert.InDelta(t, 2.0, wp.X, 1e-12)
	assert.InDelta(t, 4.5, wp.Y, 1e-12)
}

func TestSelectorKeepsUnreachedWaypoint(t *testing.T) {
	s := testSelector(false)
	var state EpisodeState
	ref := geometry.Pose2D{X: 2, Y: 3}
	first := s.next(&state, ref, geometry.Pose2D{}, geometry.Polar{Rho: 5}, 0)

	for _, angle := range []float64{-3, -1, 0.5, 2} {
		wp := s.next(&state, geometry.Pose2D{X: -7, Y: 1}, geometry.Pose2D{},
			geometry.Polar{Rho: 5}, angle)
		assert.Equal(t, first, wp, "angle %v", angle)
		assert.Equal(t, Pursuing, state.Mode)
	}
}

func TestSelectorReachedWaypoint(t *testing.T) {
	s := testSelector(false)
	ref := geometry.Pose2D{X: 2, Y: 3}

	t.Run("near goal", func(t *testing.T) {
		var state EpisodeState
		first := s.next(&state, ref, geometry.Pose2D{}, geometry.Polar{Rho: 5}, 0)

		robot := geometry.Pose2D{X: first.X + 0.5, Y: first.Y}
		newRef := geometry.Pose2D{X: 4, Y: 4, Theta: 1}
		wp := s.next(&state, newRef, robot, geometry.Polar{Rho: 1.9}, 1)
		assert.Equal(t, NearGoalDirect, state.Mode)
		assert.Equal(t, geometry.Pose2D{X: 4, Y: 4}, wp)
	})

	t.Run("far from goal", func(t *testing.T) {
		var state EpisodeState
		first := s.next(&state, ref, geometry.Pose2D{}, geometry.Polar{Rho: 5}, 0)

		wp := s.next(&state, ref, first, geometry.Polar{Rho: 2}, math.Pi)
		assert.Equal(t, Projected, state.Mode)
		assert.InDelta(t, 0.5, wp.X, 1e-12)
		assert.InDelta(t, 3.0, wp.Y, 1e-12)
	})
}

func TestSelectorDegrees(t *testing.T) {
	ref := geometry.Pose2D{X: 1, Y: -1}
	angle := math.Pi / 2

	var state EpisodeState
	wp := testSelector(true).next(&state, ref, geometry.Pose2D{},
		geometry.Polar{Rho: 5}, angle)

	// The angle in degrees is passed to cos and sin as if it were radians
	assert.InDelta(t, 1+1.5*math.Cos(90), wp.X, 1e-12)
	assert.InDelta(t, -1+1.5*math.Sin(90), wp.Y, 1e-12)
}

func TestEpisodeStateReset(t *testing.T) {
	state := EpisodeState{
		Steps:       7,
		MaxSteps:    100,
		FirstIssued: true,
		Waypoint:    geometry.Pose2D{X: 1},
		Mode:        Pursuing,
	}
	state.Reset()
	assert.Equal(t, EpisodeState{MaxSteps: 100}, state)
}
