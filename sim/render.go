package sim

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/ByteArena/box2d"
	"github.com/fogleman/gg"
)

// PixelsPerMeter is the rendering scale
const PixelsPerMeter float64 = 30.0

var (
	floorColour    = color.RGBA{R: 240, G: 240, B: 235, A: 255}
	wallColour     = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	planColour     = color.RGBA{R: 120, G: 160, B: 230, A: 255}
	goalColour     = color.RGBA{R: 40, G: 170, B: 80, A: 255}
	waypointColour = color.RGBA{R: 240, G: 150, B: 30, A: 255}
	robotColour    = color.RGBA{R: 30, G: 70, B: 180, A: 255}
	staticColour   = color.RGBA{R: 110, G: 110, B: 110, A: 255}
	dynamicColour  = color.RGBA{R: 200, G: 50, B: 50, A: 255}
)

// worldToPixelCoord converts world coordinates to pixel coordinates,
// with the y axis pointing down
func (w *World) worldToPixelCoord(x, y float64) (float64, float64) {
	return PixelsPerMeter * x, PixelsPerMeter * (w.cfg.Height - y)
}

// Image draws the arena, the global plan, the goal, the current
// waypoint, the obstacles and the robot
func (w *World) Image() image.Image {
	w.mu.Lock()
	defer w.mu.Unlock()

	dc := gg.NewContext(int(PixelsPerMeter*w.cfg.Width),
		int(PixelsPerMeter*w.cfg.Height))
	dc.SetColor(floorColour)
	dc.Clear()

	// Walls
	dc.SetColor(wallColour)
	dc.SetLineWidth(5.0)
	for _, wall := range w.walls {
		fix := wall.GetFixtureList()
		sh := fix.M_shape.(*box2d.B2EdgeShape)
		x1, y1 := w.worldToPixelCoord(sh.M_vertex1.X, sh.M_vertex1.Y)
		x2, y2 := w.worldToPixelCoord(sh.M_vertex2.X, sh.M_vertex2.Y)
		dc.DrawLine(x1, y1, x2, y2)
	}
	dc.Stroke()

	// Global plan
	dc.ClearPath()
	for _, p := range w.plan {
		x, y := w.worldToPixelCoord(p.X, p.Y)
		dc.LineTo(x, y)
	}
	dc.SetColor(planColour)
	dc.SetLineWidth(2.0)
	dc.Stroke()

	if w.robot == nil {
		return dc.Image()
	}

	x, y := w.worldToPixelCoord(w.goal.X, w.goal.Y)
	dc.DrawCircle(x, y, 0.2*PixelsPerMeter)
	dc.SetColor(goalColour)
	dc.Fill()

	if w.waypoint != nil {
		x, y := w.worldToPixelCoord(w.waypoint.X, w.waypoint.Y)
		dc.DrawCircle(x, y, 0.1*PixelsPerMeter)
		dc.SetColor(waypointColour)
		dc.Fill()
	}

	for _, o := range w.obstacles {
		pos := o.body.GetPosition()
		x, y := w.worldToPixelCoord(pos.X, pos.Y)
		dc.DrawCircle(x, y, o.radius*PixelsPerMeter)
		if o.dynamic {
			dc.SetColor(dynamicColour)
		} else {
			dc.SetColor(staticColour)
		}
		dc.Fill()
	}

	// Robot, with a line showing its heading
	robot := bodyPose(w.robot)
	x, y = w.worldToPixelCoord(robot.X, robot.Y)
	r := w.cfg.Robot.Radius * PixelsPerMeter
	dc.DrawCircle(x, y, r)
	dc.SetColor(robotColour)
	dc.Fill()

	hx, hy := w.worldToPixelCoord(
		robot.X+w.cfg.Robot.Radius*math.Cos(robot.Theta),
		robot.Y+w.cfg.Robot.Radius*math.Sin(robot.Theta),
	)
	dc.DrawLine(x, y, hx, hy)
	dc.SetColor(color.White)
	dc.SetLineWidth(2.0)
	dc.Stroke()

	return dc.Image()
}

// Render saves an image of the world as a PNG at path
func (w *World) Render(path string) error {
	if err := gg.SavePNG(path, w.Image()); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}
