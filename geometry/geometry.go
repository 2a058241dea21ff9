// Package geometry implements the planar pose and robot-frame polar
// representations used to build observations.
package geometry

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/navenv/msgs"
	"gonum.org/v1/gonum/spatial/r2"
)

// Pose2D is a planar world-frame pose. Theta is the heading in radians.
type Pose2D struct {
	X     float64
	Y     float64
	Theta float64
}

// FromPose converts a 3-D pose to a planar pose, keeping only the yaw
// of its orientation
func FromPose(p msgs.Pose) Pose2D {
	return Pose2D{
		X:     p.Position.X,
		Y:     p.Position.Y,
		Theta: p.Orientation.Yaw(),
	}
}

// Vec returns the position of the pose
func (p Pose2D) Vec() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// Pose returns the 3-D pose with the same position and heading
func (p Pose2D) Pose() msgs.Pose {
	return msgs.Pose{
		Position:    msgs.Point{X: p.X, Y: p.Y},
		Orientation: msgs.QuaternionFromYaw(p.Theta),
	}
}

func (p Pose2D) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", p.X, p.Y, p.Theta)
}

// Polar is the offset of a target point expressed in the robot frame
type Polar struct {
	Rho   float64
	Theta float64
}

// PolarOffset returns the range and bearing of target as seen from
// robot. Rho is the Euclidean distance between the two positions and
// Theta the bearing relative to the robot heading, in (-π, π]. The
// heading of target is ignored.
func PolarOffset(target, robot Pose2D) Polar {
	rel := r2.Sub(target.Vec(), robot.Vec())
	return Polar{
		Rho:   r2.Norm(rel),
		Theta: NormalizeAngle(math.Atan2(rel.Y, rel.X) - robot.Theta),
	}
}

// Distance returns the Euclidean distance between the positions of two
// poses
func Distance(a, b Pose2D) float64 {
	return r2.Norm(r2.Sub(a.Vec(), b.Vec()))
}

// NormalizeAngle wraps an angle in radians into (-π, π]
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// Project returns the point at the given radius from center in the
// direction angle, which is passed to cos and sin as is
func Project(center r2.Vec, radius, angle float64) r2.Vec {
	return r2.Add(center, r2.Scale(radius, r2.Vec{
		X: math.Cos(angle),
		Y: math.Sin(angle),
	}))
}
