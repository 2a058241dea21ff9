// Package navigation implements a waypoint navigation environment in
// which an agent steers a robot by choosing waypoints around the
// sub-goal given by a global planner.
package navigation

import (
	"context"
	"fmt"
	"math"

	"github.com/samuelfneumann/navenv/config"
	"github.com/samuelfneumann/navenv/environment"
	"github.com/samuelfneumann/navenv/logging"
	"github.com/samuelfneumann/navenv/msgs"
	"github.com/samuelfneumann/navenv/observation"
	"github.com/samuelfneumann/navenv/timestep"
	"github.com/samuelfneumann/navenv/transport"
	"github.com/samuelfneumann/navenv/utils/floatutils"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// Waypoint is a navigation environment whose actions are steering
// angles. Every step publishes a waypoint, advances the world until a
// synchronized observation is available and rewards it with the
// Navigate task.
//
// Continuous actions are a single angle in radians, clipped to the
// configured angular range. Discrete actions are the index of a
// configured discrete action, whose angular value is used as the angle.
type Waypoint struct {
	cfg     config.Config
	bus     transport.PubSub
	stepper transport.Stepper
	tasks   transport.TaskGenerator
	logger  logging.Logger

	collector *observation.Collector
	task      *Navigate
	selector  selector
	state     EpisodeState

	// last is the most recent observation
	last observation.Record
	seq  uint32

	actionSpec      environment.Spec
	observationSpec environment.Spec
}

// New returns a new Waypoint environment. The environment must be Reset
// before it is stepped.
func New(cfg config.Config, bus transport.PubSub, stepper transport.Stepper,
	tasks transport.TaskGenerator, logger logging.Logger,
	opts ...observation.Option) (*Waypoint, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new waypoint environment: %w", err)
	}

	collector, err := observation.NewCollector(cfg.Observation(), bus,
		stepper, logger.Named("observation"), opts...)
	if err != nil {
		return nil, fmt.Errorf("new waypoint environment: %w", err)
	}

	w := &Waypoint{
		cfg:       cfg,
		bus:       bus,
		stepper:   stepper,
		tasks:     tasks,
		logger:    logger,
		collector: collector,
		task: NewNavigate(cfg.Env.GoalRadius, cfg.SafeDist(), cfg.Env.Reward,
			cfg.Env.MaxStepsPerEpisode),
		selector: selector{
			lookahead: cfg.Env.LookaheadRadius,
			reach:     cfg.Env.ReachThreshold,
			nearGoal:  cfg.Env.NearGoalThreshold,
			degrees:   cfg.Env.ProjectionUnits == config.Degrees,
		},
		state:           EpisodeState{MaxSteps: cfg.Env.MaxStepsPerEpisode},
		observationSpec: observation.Spec(cfg.Observation()),
	}

	if cfg.Env.DiscreteActions {
		w.actionSpec = environment.NewScalarSpec(environment.Action, 0,
			float64(len(cfg.Settings.DiscreteActions)-1), environment.Discrete)
	} else {
		w.actionSpec = environment.NewScalarSpec(environment.Action,
			cfg.Settings.AngularRange[0], cfg.Settings.AngularRange[1],
			environment.Continuous)
	}

	return w, nil
}

// Reset starts a new episode: it clears the published waypoint,
// regenerates the task, discovers the dynamic obstacles of the new
// task and returns the first observation
func (w *Waypoint) Reset(ctx context.Context) (timestep.TimeStep, error) {
	if err := w.bus.Publish(msgs.TopicWaypoint, msgs.PoseStamped{}); err != nil {
		return timestep.TimeStep{}, fmt.Errorf("reset: %w", err)
	}

	if w.cfg.Env.TrainMode {
		if err := w.stepper.StepWorld(ctx); err != nil {
			if ctx.Err() != nil {
				return timestep.TimeStep{}, fmt.Errorf("reset: %w", ctx.Err())
			}
			w.logger.Debugw("step world failed", "error", err)
		}
	}

	if err := w.tasks.ResetTask(ctx); err != nil {
		return timestep.TimeStep{}, fmt.Errorf("reset: %w", err)
	}
	names, err := w.tasks.ObstacleNames(ctx)
	if err != nil {
		return timestep.TimeStep{}, fmt.Errorf("reset: %w", err)
	}
	if err := w.collector.TrackObstacles(names); err != nil {
		return timestep.TimeStep{}, fmt.Errorf("reset: %w", err)
	}

	w.task.Reset()
	w.state.Reset()
	w.collector.Reset()

	obs, rec, err := w.collector.GetObservations(ctx)
	if err != nil {
		return timestep.TimeStep{}, fmt.Errorf("reset: %w", err)
	}
	w.last = rec

	return timestep.New(timestep.First, 0, w.cfg.Env.Discount, obs, 0), nil
}

// Step publishes the waypoint chosen by action and returns the next
// TimeStep, along with whether it ends the episode
func (w *Waypoint) Step(ctx context.Context,
	action *mat.VecDense) (timestep.TimeStep, bool, error) {
	angle, err := w.steeringAngle(action)
	if err != nil {
		return timestep.TimeStep{}, false, fmt.Errorf("step: %w", err)
	}

	w.state.Steps++
	wp := w.selector.next(&w.state, w.last.Subgoal, w.last.RobotPose,
		w.last.Goal, angle)

	w.seq++
	msg := poseStamped(wp, msgs.Header{
		Seq:     w.seq,
		Stamp:   w.last.Stamp,
		FrameID: msgs.MapFrame,
	})
	if err := w.bus.Publish(msgs.TopicWaypoint, msg); err != nil {
		return timestep.TimeStep{}, false, fmt.Errorf("step: %w", err)
	}

	obs, rec, err := w.collector.GetObservations(ctx)
	if err != nil {
		return timestep.TimeStep{}, false, fmt.Errorf("step: %w", err)
	}
	w.last = rec

	reward, info := w.task.GetReward(rec.LaserScan, rec.Goal, rec.RobotPose,
		rec.GlobalPlan)

	t := timestep.New(timestep.Mid, reward, w.cfg.Env.Discount, obs,
		w.state.Steps)
	if info.Done {
		t.SetEnd(info.Reason)
		t.Discount = 0
	} else {
		w.task.End(&t)
	}

	if t.Last() {
		w.logger.Infow("episode ended", "reason", t.EndType(),
			"steps", t.Number, "goal_distance", rec.Goal.Rho)
	}
	return t, t.Last(), nil
}

func (w *Waypoint) steeringAngle(action *mat.VecDense) (float64, error) {
	if action == nil || action.Len() != 1 {
		n := 0
		if action != nil {
			n = action.Len()
		}
		return 0, fmt.Errorf("action must have exactly one element, got %v",
			n)
	}
	a := action.AtVec(0)

	if w.cfg.Env.DiscreteActions {
		i := int(a)
		if float64(i) != a || i < 0 || i >= len(w.cfg.Settings.DiscreteActions) {
			return 0, fmt.Errorf("discrete action %v out of range [0, %v)", a,
				len(w.cfg.Settings.DiscreteActions))
		}
		return w.cfg.Settings.DiscreteActions[i].Angular, nil
	}

	if math.IsNaN(a) {
		return 0, fmt.Errorf("action is NaN")
	}
	return floatutils.ClipInterval(a, r1.Interval{
		Min: w.cfg.Settings.AngularRange[0],
		Max: w.cfg.Settings.AngularRange[1],
	}), nil
}

// State returns the bookkeeping of the current episode
func (w *Waypoint) State() EpisodeState {
	return w.state
}

// LastObservation returns the structured form of the latest observation
func (w *Waypoint) LastObservation() observation.Record {
	return w.last
}

// Close releases the subscriptions of the environment
func (w *Waypoint) Close() error {
	w.collector.Close()
	return nil
}

// RewardSpec returns the reward specification of the environment
func (w *Waypoint) RewardSpec() environment.Spec {
	return environment.NewScalarSpec(environment.Reward, math.Inf(-1),
		math.Inf(1), environment.Continuous)
}

// DiscountSpec returns the discount specification of the environment
func (w *Waypoint) DiscountSpec() environment.Spec {
	return environment.NewScalarSpec(environment.Discount, 0,
		w.cfg.Env.Discount, environment.Continuous)
}

// ObservationSpec returns the observation specification of the
// environment
func (w *Waypoint) ObservationSpec() environment.Spec {
	return w.observationSpec
}

// ActionSpec returns the action specification of the environment
func (w *Waypoint) ActionSpec() environment.Spec {
	return w.actionSpec
}

func (w *Waypoint) String() string {
	return fmt.Sprintf("Waypoint | beams: %v | obstacle slots: %v | "+
		"max steps: %v", w.cfg.Robot.Beams, w.cfg.Env.ObstacleSlots,
		w.cfg.Env.MaxStepsPerEpisode)
}

var _ environment.Environment = (*Waypoint)(nil)
