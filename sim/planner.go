package sim

import (
	"math"

	"github.com/samuelfneumann/navenv/geometry"
	"github.com/samuelfneumann/navenv/msgs"
	"github.com/samuelfneumann/navenv/utils/floatutils"
	"gonum.org/v1/gonum/spatial/r2"
)

// straightPlan returns points spaced at most resolution apart on the
// segment from start to goal, both included
func straightPlan(start, goal r2.Vec, resolution float64) []r2.Vec {
	d := r2.Sub(goal, start)
	n := int(math.Ceil(r2.Norm(d) / resolution))
	if n == 0 {
		return []r2.Vec{start}
	}

	plan := make([]r2.Vec, n+1)
	for i := range plan {
		plan[i] = r2.Add(start, r2.Scale(float64(i)/float64(n), d))
	}
	return plan
}

// subgoal returns the point of the plan Lookahead further along it than
// the point of the plan closest to robot, or the goal if the plan ends
// first. It is called with w.mu held.
func (w *World) subgoal(robot r2.Vec) geometry.Pose2D {
	if len(w.plan) < 2 {
		return w.goal
	}

	// Arc length of the projection of robot on the plan
	best, along, total := math.Inf(1), 0.0, 0.0
	for i := 1; i < len(w.plan); i++ {
		a, b := w.plan[i-1], w.plan[i]
		ab := r2.Sub(b, a)
		length := r2.Norm(ab)

		t := 0.0
		if length > 0 {
			t = floatutils.Clip(r2.Dot(r2.Sub(robot, a), ab)/(length*length), 0, 1)
		}
		if d := r2.Norm(r2.Sub(robot, r2.Add(a, r2.Scale(t, ab)))); d < best {
			best, along = d, total+t*length
		}
		total += length
	}

	target := along + w.cfg.Lookahead
	for i := 1; i < len(w.plan); i++ {
		a, b := w.plan[i-1], w.plan[i]
		length := r2.Norm(r2.Sub(b, a))
		if target <= length && length > 0 {
			p := r2.Add(a, r2.Scale(target/length, r2.Sub(b, a)))
			return geometry.Pose2D{X: p.X, Y: p.Y}
		}
		target -= length
	}
	return w.goal
}

// pathMessage returns the global plan message. It is called with w.mu
// held.
func (w *World) pathMessage(header msgs.Header) msgs.Path {
	path := msgs.Path{Header: header, Poses: make([]msgs.PoseStamped, len(w.plan))}
	for i, p := range w.plan {
		path.Poses[i] = msgs.PoseStamped{
			Header: header,
			Pose:   geometry.Pose2D{X: p.X, Y: p.Y}.Pose(),
		}
	}
	return path
}
