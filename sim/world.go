package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ByteArena/box2d"
	"github.com/samuelfneumann/navenv/environment"
	"github.com/samuelfneumann/navenv/geometry"
	"github.com/samuelfneumann/navenv/logging"
	"github.com/samuelfneumann/navenv/msgs"
	"github.com/samuelfneumann/navenv/transport"
	"github.com/samuelfneumann/navenv/utils/floatutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrNoTask is returned by StepWorld before the first ResetTask
var ErrNoTask = errors.New("sim: no task")

// Body types
const (
	staticBody    = 0
	kinematicBody = 1
)

type obstacle struct {
	name    string
	body    *box2d.B2Body
	radius  float64
	dynamic bool
}

// World is a walled arena holding a circular robot and circular
// obstacles. The robot drives towards the last waypoint published on
// msgs.TopicWaypoint, dynamic obstacles move in straight lines and
// bounce off the walls, and static obstacles never move.
//
// World implements transport.Stepper and transport.TaskGenerator.
type World struct {
	cfg    Config
	bus    transport.PubSub
	logger logging.Logger

	unsubscribe func()

	mu        sync.Mutex
	world     box2d.B2World
	walls     []*box2d.B2Body
	robot     *box2d.B2Body
	obstacles []obstacle

	goal     geometry.Pose2D
	plan     []r2.Vec
	waypoint *geometry.Pose2D

	now     time.Time
	seq     uint32
	episode int

	// starter samples start and goal positions as x, y, x, y
	starter environment.UniformStarter
	rng     distuv.Uniform
}

// New returns a new World publishing on and subscribing to bus. The
// world is empty until ResetTask is called.
func New(cfg Config, bus transport.PubSub, logger logging.Logger) (*World,
	error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("new world: %w", err)
	}
	m := cfg.margin()
	if 2*m >= cfg.Width || 2*m >= cfg.Height {
		return nil, fmt.Errorf("new world: arena %vx%v too small for margin %v",
			cfg.Width, cfg.Height, m)
	}

	x := r1.Interval{Min: m, Max: cfg.Width - m}
	y := r1.Interval{Min: m, Max: cfg.Height - m}

	w := &World{
		cfg:     cfg,
		bus:     bus,
		logger:  logger,
		world:   box2d.MakeB2World(box2d.B2Vec2{X: 0, Y: 0}),
		now:     time.Unix(0, 0).UTC(),
		starter: environment.NewUniformStarter([]r1.Interval{x, y, x, y}, cfg.Seed),
		rng: distuv.Uniform{
			Min: 0,
			Max: 1,
			Src: rand.NewSource(cfg.Seed + 1),
		},
	}

	unsubscribe, err := bus.Subscribe(msgs.TopicWaypoint, w.handleWaypoint)
	if err != nil {
		return nil, fmt.Errorf("new world: %w", err)
	}
	w.unsubscribe = unsubscribe

	return w, nil
}

// Close stops listening for waypoints
func (w *World) Close() error {
	w.unsubscribe()
	return nil
}

// Now returns the simulated time
func (w *World) Now() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.now
}

// RobotPose returns the pose of the robot
func (w *World) RobotPose() geometry.Pose2D {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.robot == nil {
		return geometry.Pose2D{}
	}
	return bodyPose(w.robot)
}

// Goal returns the goal of the current task
func (w *World) Goal() geometry.Pose2D {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.goal
}

// handleWaypoint sets the robot's target. Waypoints without a frame
// make the robot stop.
func (w *World) handleWaypoint(msg any) {
	wp, ok := msg.(msgs.PoseStamped)
	if !ok {
		w.logger.Warnw("unexpected message type", "topic", msgs.TopicWaypoint,
			"type", fmt.Sprintf("%T", msg))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if wp.Header.FrameID == "" {
		w.waypoint = nil
		return
	}
	p := geometry.FromPose(wp.Pose)
	w.waypoint = &p
}

// ResetTask replaces the arena with a new task: new robot start and
// goal poses, new obstacles and a new global plan
func (w *World) ResetTask(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("reset task: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.destroy()
	w.episode++
	w.waypoint = nil

	start, goal := w.sampleStartGoal()
	w.goal = geometry.Pose2D{X: goal.X, Y: goal.Y}
	w.plan = straightPlan(start, goal, w.cfg.PlanResolution)

	w.createWalls()
	w.robot = w.createCircle(start, w.cfg.Robot.Radius, true)
	w.robot.SetTransform(box2d.MakeB2Vec2(start.X, start.Y),
		math.Atan2(goal.Y-start.Y, goal.X-start.X))

	keepOut := []r2.Vec{start, goal}
	for i := 0; i < w.cfg.StaticObstacles+w.cfg.DynamicObstacles; i++ {
		dynamic := i >= w.cfg.StaticObstacles
		pos := w.samplePosition(keepOut)
		keepOut = append(keepOut, pos)

		kind := "static"
		if dynamic {
			kind = "dynamic"
		}
		o := obstacle{
			name:    fmt.Sprintf("%v_obstacle_%v", kind, i),
			body:    w.createCircle(pos, w.cfg.ObstacleRadius, dynamic),
			radius:  w.cfg.ObstacleRadius,
			dynamic: dynamic,
		}
		if dynamic {
			heading := 2 * math.Pi * w.rng.Rand()
			o.body.SetLinearVelocity(box2d.MakeB2Vec2(
				w.cfg.ObstacleSpeed*math.Cos(heading),
				w.cfg.ObstacleSpeed*math.Sin(heading)))
		}
		w.obstacles = append(w.obstacles, o)
	}

	w.logger.Debugw("task reset", "episode", w.episode, "start", start,
		"goal", goal, "obstacles", len(w.obstacles))
	return nil
}

// ObstacleNames returns the names of the obstacles of the current task
func (w *World) ObstacleNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("obstacle names: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, len(w.obstacles))
	for i, o := range w.obstacles {
		names[i] = o.name
	}
	return names, nil
}

// StepWorld advances the simulation by one tick and publishes the
// resulting sensor and planner messages
func (w *World) StepWorld(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("step world: %w", err)
	}

	w.mu.Lock()
	if w.robot == nil {
		w.mu.Unlock()
		return fmt.Errorf("step world: %w", ErrNoTask)
	}

	dt := w.cfg.Tick.Seconds()
	w.driveRobot(dt)
	w.moveObstacles(dt)
	w.world.Step(dt, velocityIterations, positionIterations)
	w.now = w.now.Add(w.cfg.Tick)
	w.seq++

	out := w.messages()
	w.mu.Unlock()

	var err error
	for _, m := range out {
		err = errors.Join(err, w.bus.Publish(m.topic, m.msg))
	}
	if err != nil {
		return fmt.Errorf("step world: %w", err)
	}
	return nil
}

// driveRobot points the robot at its waypoint, at most at the robot
// speed and without overshooting
func (w *World) driveRobot(dt float64) {
	pos := w.robot.GetPosition()
	if w.waypoint == nil {
		w.robot.SetLinearVelocity(box2d.MakeB2Vec2(0, 0))
		return
	}

	d := r2.Sub(w.waypoint.Vec(), r2.Vec{X: pos.X, Y: pos.Y})
	dist := r2.Norm(d)
	if dist < 1e-6 {
		w.robot.SetLinearVelocity(box2d.MakeB2Vec2(0, 0))
		return
	}

	speed := floatutils.Min(w.cfg.RobotSpeed, dist/dt)
	v := r2.Scale(speed/dist, d)
	w.robot.SetLinearVelocity(box2d.MakeB2Vec2(v.X, v.Y))
	w.robot.SetTransform(pos, math.Atan2(d.Y, d.X))
}

// moveObstacles reflects the velocity of dynamic obstacles about to
// leave the arena
func (w *World) moveObstacles(dt float64) {
	for _, o := range w.obstacles {
		if !o.dynamic {
			continue
		}
		pos := o.body.GetPosition()
		vel := o.body.GetLinearVelocity()
		next := r2.Vec{X: pos.X + vel.X*dt, Y: pos.Y + vel.Y*dt}

		if next.X < o.radius || next.X > w.cfg.Width-o.radius {
			vel.X = -vel.X
		}
		if next.Y < o.radius || next.Y > w.cfg.Height-o.radius {
			vel.Y = -vel.Y
		}
		o.body.SetLinearVelocity(vel)
	}
}

type message struct {
	topic string
	msg   any
}

// messages returns everything published after a step. It is called
// with w.mu held.
func (w *World) messages() []message {
	header := msgs.Header{Seq: w.seq, Stamp: w.now, FrameID: msgs.MapFrame}
	robot := bodyPose(w.robot)
	vel := w.robot.GetLinearVelocity()

	stateHeader := header
	stateHeader.Stamp = w.now.Add(-w.cfg.StateLag)

	out := []message{
		{msgs.TopicSubgoal, msgs.PoseStamped{
			Header: header,
			Pose:   w.subgoal(robot.Vec()).Pose(),
		}},
		{msgs.TopicGlobalPlan, w.pathMessage(header)},
		{msgs.TopicScan, w.scan(header)},
		{msgs.TopicRobotState, msgs.RobotStateStamped{
			Header: stateHeader,
			State: msgs.RobotState{
				Pose: robot.Pose(),
				Twist: msgs.Twist{
					Linear:  msgs.Vector3{X: vel.X, Y: vel.Y},
					Angular: msgs.Vector3{Z: w.robot.GetAngularVelocity()},
				},
			},
		}},
	}

	for i, o := range w.obstacles {
		pos := o.body.GetPosition()
		out = append(out, message{msgs.ObstacleTopic(o.name), msgs.MarkerArray{
			Markers: []msgs.Marker{{
				Header: header,
				NS:     o.name,
				ID:     i,
				Pose: geometry.Pose2D{
					X: pos.X, Y: pos.Y, Theta: o.body.GetAngle(),
				}.Pose(),
				Scale: msgs.Vector3{X: 2 * o.radius, Y: 2 * o.radius},
			}},
		}})
	}
	return out
}

// sampleStartGoal samples a start and goal at least MinGoalDistance
// apart, if it can
func (w *World) sampleStartGoal() (r2.Vec, r2.Vec) {
	var start, goal r2.Vec
	for i := 0; i < placementAttempts; i++ {
		s := w.starter.Start()
		start = r2.Vec{X: s.AtVec(0), Y: s.AtVec(1)}
		goal = r2.Vec{X: s.AtVec(2), Y: s.AtVec(3)}
		if r2.Norm(r2.Sub(goal, start)) >= w.cfg.MinGoalDistance {
			break
		}
	}
	return start, goal
}

// samplePosition samples an obstacle position clear of keepOut, if it
// can
func (w *World) samplePosition(keepOut []r2.Vec) r2.Vec {
	m := w.cfg.margin()
	clearance := w.cfg.Robot.Radius + w.cfg.ObstacleRadius + 1

	var p r2.Vec
	for i := 0; i < placementAttempts; i++ {
		p = r2.Vec{
			X: m + w.rng.Rand()*(w.cfg.Width-2*m),
			Y: m + w.rng.Rand()*(w.cfg.Height-2*m),
		}
		free := true
		for _, k := range keepOut {
			if r2.Norm(r2.Sub(p, k)) < clearance {
				free = false
				break
			}
		}
		if free {
			break
		}
	}
	return p
}

func (w *World) createWalls() {
	corners := []box2d.B2Vec2{
		box2d.MakeB2Vec2(0, 0),
		box2d.MakeB2Vec2(0, w.cfg.Height),
		box2d.MakeB2Vec2(w.cfg.Width, w.cfg.Height),
		box2d.MakeB2Vec2(w.cfg.Width, 0),
	}

	w.walls = make([]*box2d.B2Body, len(corners))
	for i := range corners {
		def := box2d.NewB2BodyDef()
		def.Type = staticBody
		w.walls[i] = w.world.CreateBody(def)

		shape := box2d.NewB2EdgeShape()
		shape.Set(corners[i], corners[(i+1)%len(corners)])

		fix := box2d.MakeB2FixtureDef()
		fix.Shape = shape
		w.walls[i].CreateFixtureFromDef(&fix)
	}
}

// createCircle creates a circular static or kinematic body
func (w *World) createCircle(pos r2.Vec, radius float64,
	kinematic bool) *box2d.B2Body {
	def := box2d.NewB2BodyDef()
	def.Type = staticBody
	if kinematic {
		def.Type = kinematicBody
	}
	def.Position = box2d.MakeB2Vec2(pos.X, pos.Y)
	body := w.world.CreateBody(def)

	shape := box2d.NewB2CircleShape()
	shape.M_radius = radius

	fix := box2d.MakeB2FixtureDef()
	fix.Shape = shape
	fix.Density = 1.0
	body.CreateFixtureFromDef(&fix)

	return body
}

// destroy removes every body from the world
func (w *World) destroy() {
	for _, wall := range w.walls {
		w.world.DestroyBody(wall)
	}
	w.walls = nil

	for _, o := range w.obstacles {
		w.world.DestroyBody(o.body)
	}
	w.obstacles = nil

	if w.robot != nil {
		w.world.DestroyBody(w.robot)
		w.robot = nil
	}
}

func bodyPose(b *box2d.B2Body) geometry.Pose2D {
	pos := b.GetPosition()
	return geometry.Pose2D{X: pos.X, Y: pos.Y, Theta: b.GetAngle()}
}

var (
	_ transport.Stepper       = (*World)(nil)
	_ transport.TaskGenerator = (*World)(nil)
)
