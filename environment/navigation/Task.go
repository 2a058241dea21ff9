package navigation

import (
	"math"

	"github.com/samuelfneumann/navenv/config"
	"github.com/samuelfneumann/navenv/environment"
	"github.com/samuelfneumann/navenv/geometry"
	"github.com/samuelfneumann/navenv/msgs"
	"github.com/samuelfneumann/navenv/timestep"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
)

// RewardInfo describes the outcome of a single step
type RewardInfo struct {
	Reward float64
	Done   bool

	// Reason is why the episode ended, or timestep.Nil if it did not
	Reason timestep.EndType
}

// Navigate is the task of reaching a goal without colliding. Goal
// checks take precedence over collision checks. Non-terminal steps are
// rewarded for progress towards the goal and penalized for approaching
// obstacles and, optionally, for straying from the global plan.
type Navigate struct {
	goalRadius float64
	safeDist   float64
	weights    config.Reward

	stepLimit environment.Ender

	prevGoalDist *float64
}

// NewNavigate returns a new Navigate task whose episodes time out after
// maxSteps steps
func NewNavigate(goalRadius, safeDist float64, weights config.Reward,
	maxSteps int) *Navigate {
	return &Navigate{
		goalRadius: goalRadius,
		safeDist:   safeDist,
		weights:    weights,
		stepLimit:  environment.NewStepLimit(maxSteps),
	}
}

// Reset forgets the previous goal distance, so that the first progress
// term of an episode is zero
func (n *Navigate) Reset() {
	n.prevGoalDist = nil
}

// End ends the episode of t with a timeout once the step budget is
// exhausted
func (n *Navigate) End(t *timestep.TimeStep) bool {
	return n.stepLimit.End(t)
}

// SafeDist returns the clearance below which the robot collides
func (n *Navigate) SafeDist() float64 {
	return n.safeDist
}

// GetReward computes the reward for reaching the state described by a
// laser scan, the goal offset in the robot frame, the robot pose and
// the global plan
func (n *Navigate) GetReward(scan []float64, goal geometry.Polar,
	robot geometry.Pose2D, plan msgs.Path) (float64, RewardInfo) {
	if goal.Rho < n.goalRadius {
		return n.weights.Goal, RewardInfo{
			Reward: n.weights.Goal,
			Done:   true,
			Reason: timestep.GoalReached,
		}
	}

	clearance := math.Inf(1)
	if len(scan) > 0 {
		clearance = floats.Min(scan)
	}
	if clearance < n.safeDist {
		return -n.weights.Collision, RewardInfo{
			Reward: -n.weights.Collision,
			Done:   true,
			Reason: timestep.Collision,
		}
	}

	reward := n.progress(goal.Rho) + n.proximity(clearance)
	if n.weights.PathDeviation != 0 && len(plan.Poses) > 0 {
		reward -= n.weights.PathDeviation * distanceToPath(robot.Vec(), plan)
	}

	return reward, RewardInfo{Reward: reward, Reason: timestep.Nil}
}

// progress rewards the change in goal distance since the previous step
func (n *Navigate) progress(goalDist float64) float64 {
	prev := n.prevGoalDist
	n.prevGoalDist = &goalDist
	if prev == nil {
		return 0
	}

	delta := *prev - goalDist
	if delta > 0 {
		return n.weights.Approach * delta
	}
	return n.weights.Retreat * delta
}

// proximity is the obstacle penalty, which grows linearly from zero at
// safeDist + slack to the full weight at safeDist
func (n *Navigate) proximity(clearance float64) float64 {
	slack := n.weights.Slack
	if slack <= 0 || clearance >= n.safeDist+slack {
		return 0
	}
	return -n.weights.Proximity * (1 - (clearance-n.safeDist)/slack)
}

// distanceToPath returns the distance from p to the polyline through
// the poses of plan
func distanceToPath(p r2.Vec, plan msgs.Path) float64 {
	pts := make([]r2.Vec, len(plan.Poses))
	for i, pose := range plan.Poses {
		pts[i] = geometry.FromPose(pose.Pose).Vec()
	}

	best := r2.Norm(r2.Sub(p, pts[0]))
	for i := 1; i < len(pts); i++ {
		best = math.Min(best, distanceToSegment(p, pts[i-1], pts[i]))
	}
	return best
}

func distanceToSegment(p, a, b r2.Vec) float64 {
	ab := r2.Sub(b, a)
	length := r2.Dot(ab, ab)
	if length == 0 {
		return r2.Norm(r2.Sub(p, a))
	}
	t := math.Max(0, math.Min(1, r2.Dot(r2.Sub(p, a), ab)/length))
	return r2.Norm(r2.Sub(p, r2.Add(a, r2.Scale(t, ab))))
}
