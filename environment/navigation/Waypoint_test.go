package navigation

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/samuelfneumann/navenv/config"
	"github.com/samuelfneumann/navenv/environment"
	"github.com/samuelfneumann/navenv/geometry"
	"github.com/samuelfneumann/navenv/logging"
	"github.com/samuelfneumann/navenv/msgs"
	"github.com/samuelfneumann/navenv/timestep"
	"github.com/samuelfneumann/navenv/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// fakeWorld publishes a synchronized laser scan and robot state, and
// the sub-goal, on every step
type fakeWorld struct {
	bus *transport.Bus

	mu        sync.Mutex
	now       time.Time
	robot     geometry.Pose2D
	subgoal   geometry.Pose2D
	clearance float64
	beams     int
	names     []string
	steps     int
	resets    int
	resetErr  error
}

func (f *fakeWorld) StepWorld(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.steps++
	f.now = f.now.Add(100 * time.Millisecond)
	header := msgs.Header{Stamp: f.now, FrameID: msgs.MapFrame}

	ranges := make([]float64, f.beams)
	for i := range ranges {
		ranges[i] = f.clearance
	}
	ranges[0] = math.NaN()

	return errors.Join(
		f.bus.Publish(msgs.TopicSubgoal, msgs.PoseStamped{
			Header: header, Pose: f.subgoal.Pose(),
		}),
		f.bus.Publish(msgs.TopicScan, msgs.LaserScan{
			Header: header, RangeMax: 3.5, Ranges: ranges,
		}),
		f.bus.Publish(msgs.TopicRobotState, msgs.RobotStateStamped{
			Header: header,
			State:  msgs.RobotState{Pose: f.robot.Pose()},
		}),
	)
}

func (f *fakeWorld) ResetTask(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return f.resetErr
}

func (f *fakeWorld) ObstacleNames(context.Context) ([]string, error) {
	return f.names, nil
}

func (f *fakeWorld) set(fn func(f *fakeWorld)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func testEnvConfig() config.Config {
	env := config.DefaultEnv()
	env.MaxStepsPerEpisode = 5
	env.ObstacleSlots = 2
	env.Sync.Timeout = 10 * time.Second

	return config.Config{
		Robot: config.Robot{
			Radius:         0.3 * config.RadiusInflation,
			AngleMin:       0,
			AngleMax:       3,
			AngleIncrement: 1,
			MaxRange:       3.5,
			Beams:          4,
		},
		Settings: config.Settings{
			DiscreteActions: []config.DiscreteAction{
				{Name: "right", Angular: -1},
				{Name: "left", Angular: 1},
			},
			AngularRange: []float64{-math.Pi, math.Pi},
		},
		Env: env,
	}
}

func newTestEnv(t *testing.T, cfg config.Config) (*Waypoint, *fakeWorld,
	*transport.Bus) {
	t.Helper()
	bus := transport.NewBus(0, logging.NewTestLogger(t))
	t.Cleanup(func() { bus.Close() })

	world := &fakeWorld{
		bus:       bus,
		now:       time.Unix(10, 0),
		robot:     geometry.Pose2D{X: 5, Y: 5},
		subgoal:   geometry.Pose2D{X: -5, Y: 5},
		clearance: 3,
		beams:     cfg.Robot.Beams,
		names:     []string{"dynamic_human_0", "static_0"},
	}

	env, err := New(cfg, bus, world, world, logging.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })
	return env, world, bus
}

func action(a float64) *mat.VecDense {
	return mat.NewVecDense(1, []float64{a})
}

func TestWaypointReset(t *testing.T) {
	cfg := testEnvConfig()
	env, world, bus := newTestEnv(t, cfg)

	waypoints := make(chan msgs.PoseStamped, 10)
	_, err := bus.Subscribe(msgs.TopicWaypoint, func(msg any) {
		waypoints <- msg.(msgs.PoseStamped)
	})
	require.NoError(t, err)

	ts, err := env.Reset(context.Background())
	require.NoError(t, err)
	assert.True(t, ts.First())
	assert.Equal(t, 0, ts.Number)
	assert.Equal(t, 4+2+2*2, ts.Observation.Len())
	assert.True(t, env.ObservationSpec().Contains(ts.Observation))
	assert.Equal(t, 3.5, ts.Observation.AtVec(0))

	assert.Equal(t, 1, world.resets)
	// One step for the reset itself and at least one for the observation
	assert.GreaterOrEqual(t, world.steps, 2)
	assert.Equal(t, 1, bus.Subscribers(msgs.ObstacleTopic("dynamic_human_0")))
	assert.Equal(t, 0, bus.Subscribers(msgs.ObstacleTopic("static_0")))

	select {
	case wp := <-waypoints:
		assert.Equal(t, msgs.PoseStamped{}, wp)
	case <-time.After(time.Second):
		t.Fatal("no waypoint published on reset")
	}
}

func TestWaypointResetWithoutTrainMode(t *testing.T) {
	cfg := testEnvConfig()
	cfg.Env.TrainMode = false
	env, world, _ := newTestEnv(t, cfg)

	_, err := env.Reset(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, world.steps, 1)
}

func TestWaypointResetTaskError(t *testing.T) {
	env, world, _ := newTestEnv(t, testEnvConfig())
	world.resetErr = errors.New("task generator unavailable")

	_, err := env.Reset(context.Background())
	assert.ErrorIs(t, err, world.resetErr)
}

func TestWaypointTimeoutAtMaxSteps(t *testing.T) {
	cfg := testEnvConfig()
	env, _, _ := newTestEnv(t, cfg)

	for episode := 0; episode < 2; episode++ {
		_, err := env.Reset(context.Background())
		require.NoError(t, err)

		for n := 1; n <= cfg.Env.MaxStepsPerEpisode; n++ {
			ts, done, err := env.Step(context.Background(), action(0.3))
			require.NoError(t, err)
			assert.Equal(t, n, ts.Number)

			last := n == cfg.Env.MaxStepsPerEpisode
			assert.Equal(t, last, done, "episode %v step %v", episode, n)
			if last {
				assert.Equal(t, timestep.Timeout, ts.EndType())
				assert.Equal(t, cfg.Env.Discount, ts.Discount)
			} else {
				assert.Equal(t, timestep.Nil, ts.EndType())
			}
		}
	}
}

func TestWaypointCollision(t *testing.T) {
	env, world, _ := newTestEnv(t, testEnvConfig())
	_, err := env.Reset(context.Background())
	require.NoError(t, err)

	world.set(func(f *fakeWorld) { f.clearance = 0.1 })

	var ts timestep.TimeStep
	for i := 0; i < 3; i++ {
		var done bool
		ts, done, err = env.Step(context.Background(), action(0))
		require.NoError(t, err)
		if done {
			break
		}
	}
	assert.Equal(t, timestep.Collision, ts.EndType())
	assert.Equal(t, -10.0, ts.Reward)
	assert.Equal(t, 0.0, ts.Discount)
}

func TestWaypointGoalReached(t *testing.T) {
	cfg := testEnvConfig()
	cfg.Env.MaxStepsPerEpisode = 100
	env, world, _ := newTestEnv(t, cfg)
	_, err := env.Reset(context.Background())
	require.NoError(t, err)

	world.set(func(f *fakeWorld) {
		// Close to obstacles as well: the goal wins
		f.robot = f.subgoal
		f.clearance = 0.01
	})

	var ts timestep.TimeStep
	for i := 0; i < 3; i++ {
		var done bool
		ts, done, err = env.Step(context.Background(), action(0))
		require.NoError(t, err)
		if done {
			break
		}
	}
	assert.Equal(t, timestep.GoalReached, ts.EndType())
	assert.Equal(t, 15.0, ts.Reward)
}

func TestWaypointPublishesWaypoints(t *testing.T) {
	cfg := testEnvConfig()
	cfg.Env.ProjectionUnits = config.Radians
	env, world, bus := newTestEnv(t, cfg)

	_, err := env.Reset(context.Background())
	require.NoError(t, err)

	waypoints := make(chan msgs.PoseStamped, 10)
	_, err = bus.Subscribe(msgs.TopicWaypoint, func(msg any) {
		waypoints <- msg.(msgs.PoseStamped)
	})
	require.NoError(t, err)

	ref := env.LastObservation().Subgoal
	_, _, err = env.Step(context.Background(), action(math.Pi/2))
	require.NoError(t, err)

	var first msgs.PoseStamped
	select {
	case first = <-waypoints:
	case <-time.After(time.Second):
		t.Fatal("no waypoint published")
	}
	assert.Equal(t, msgs.MapFrame, first.Header.FrameID)
	assert.Equal(t, 1.0, first.Pose.Orientation.W)
	assert.InDelta(t, ref.X, first.Pose.Position.X, 1e-9)
	assert.InDelta(t, ref.Y+1.5, first.Pose.Position.Y, 1e-9)
	assert.Equal(t, Projected, env.State().Mode)

	// The robot stands still, far from the waypoint: it is re-published
	// unchanged whatever the action
	world.set(func(f *fakeWorld) { f.robot = geometry.Pose2D{X: 5, Y: 5} })
	_, _, err = env.Step(context.Background(), action(-2))
	require.NoError(t, err)

	select {
	case second := <-waypoints:
		assert.Equal(t, first.Pose, second.Pose)
		assert.Greater(t, second.Header.Seq, first.Header.Seq)
	case <-time.After(time.Second):
		t.Fatal("no waypoint published")
	}
	assert.Equal(t, Pursuing, env.State().Mode)
}

func TestWaypointActions(t *testing.T) {
	t.Run("continuous", func(t *testing.T) {
		env, _, _ := newTestEnv(t, testEnvConfig())

		spec := env.ActionSpec()
		assert.Equal(t, environment.Continuous, spec.Cardinality)
		assert.Equal(t, -math.Pi, spec.LowerBound.AtVec(0))

		angle, err := env.steeringAngle(action(10))
		require.NoError(t, err)
		assert.Equal(t, math.Pi, angle)

		_, err = env.steeringAngle(mat.NewVecDense(2, nil))
		assert.Error(t, err)
		_, err = env.steeringAngle(action(math.NaN()))
		assert.Error(t, err)
	})

	t.Run("discrete", func(t *testing.T) {
		cfg := testEnvConfig()
		cfg.Env.DiscreteActions = true
		env, _, _ := newTestEnv(t, cfg)

		spec := env.ActionSpec()
		assert.Equal(t, environment.Discrete, spec.Cardinality)
		assert.Equal(t, 1.0, spec.UpperBound.AtVec(0))

		angle, err := env.steeringAngle(action(1))
		require.NoError(t, err)
		assert.Equal(t, 1.0, angle)

		for _, bad := range []float64{-1, 2, 0.5} {
			_, err := env.steeringAngle(action(bad))
			assert.Error(t, err, "action %v", bad)
		}
	})
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := testEnvConfig()
	cfg.Env.GoalRadius = 0

	bus := transport.NewBus(0, logging.NewTestLogger(t))
	t.Cleanup(func() { bus.Close() })
	_, err := New(cfg, bus, nil, nil, logging.NewTestLogger(t))
	assert.ErrorIs(t, err, config.ErrConfig)
}
