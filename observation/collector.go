// Package observation collects, synchronizes and merges the sensor and
// planner messages of a robot into observation vectors.
package observation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samuelfneumann/navenv/geometry"
	"github.com/samuelfneumann/navenv/logging"
	"github.com/samuelfneumann/navenv/msgs"
	"github.com/samuelfneumann/navenv/transport"
	"gonum.org/v1/gonum/mat"
)

// ErrSyncTimeout is returned by GetObservations when no synchronized
// laser scan and robot state arrived within the attempt or time budget
var ErrSyncTimeout = errors.New("observation: synchronization timed out")

// DynamicMarker is the substring identifying dynamic obstacles by name
const DynamicMarker = "dynamic"

// Config configures a Collector
type Config struct {
	// Beams is the number of laser beams in the observation vector
	Beams int

	// MaxRange is the laser range, used for beams without a return and
	// as the range of empty obstacle slots
	MaxRange float64

	// ObstacleSlots is the number of obstacles in the observation vector
	ObstacleSlots int

	// Slop is the largest stamp difference between a laser scan and a
	// robot state that are considered synchronized
	Slop time.Duration

	// QueueSize bounds the unmatched messages kept per stream
	QueueSize int

	// Timeout and MaxAttempts bound a single GetObservations call
	Timeout     time.Duration
	MaxAttempts int

	// Poll is how long to wait for a synchronized pair after each world
	// step
	Poll time.Duration
}

// Validate returns an error describing the first invalid field of c
func (c Config) Validate() error {
	switch {
	case c.Beams <= 0:
		return fmt.Errorf("beams must be positive, got %v", c.Beams)
	case c.MaxRange <= 0:
		return fmt.Errorf("max range must be positive, got %v", c.MaxRange)
	case c.ObstacleSlots < 0:
		return fmt.Errorf("obstacle slots must be non-negative, got %v",
			c.ObstacleSlots)
	case c.Slop < 0:
		return fmt.Errorf("slop must be non-negative, got %v", c.Slop)
	case c.QueueSize <= 0:
		return fmt.Errorf("queue size must be positive, got %v", c.QueueSize)
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	case c.MaxAttempts <= 0:
		return fmt.Errorf("max attempts must be positive, got %v",
			c.MaxAttempts)
	case c.Poll <= 0:
		return fmt.Errorf("poll must be positive, got %v", c.Poll)
	}
	return nil
}

// Len returns the length of the observation vectors produced under c
func (c Config) Len() int {
	return c.Beams + 2 + 2*c.ObstacleSlots
}

// Record is the structured form of an observation
type Record struct {
	// LaserScan holds the sanitized ranges, one per beam
	LaserScan []float64

	// Goal is the sub-goal in the robot frame
	Goal geometry.Polar

	RobotPose     geometry.Pose2D
	RobotVelocity msgs.Twist
	Subgoal       geometry.Pose2D

	// Obstacles is a 2 x slots matrix of obstacle ranges (row 0) and
	// bearings (row 1) in the robot frame, nearest first. It is nil when
	// there are no obstacle slots.
	Obstacles *mat.Dense

	// LiveObstacles is the number of slots holding a real obstacle
	LiveObstacles int

	GlobalPlan msgs.Path

	// Stamp is the stamp of the synchronized laser scan
	Stamp time.Time
}

// Option configures optional Collector fields
type Option func(*Collector)

// WithClock sets the clock that bounds GetObservations
func WithClock(c clock.Clock) Option {
	return func(col *Collector) {
		col.clock = c
	}
}

// Collector is the observation pipeline. Message handlers registered on
// a transport.Subscriber write the last received value of each signal,
// each through its own setter, and GetObservations reads them once a
// laser scan and robot state have been synchronized.
type Collector struct {
	cfg     Config
	bus     transport.Subscriber
	stepper transport.Stepper
	clock   clock.Clock
	logger  logging.Logger

	mu        sync.Mutex
	pairs     *synchronizer
	scan      []float64
	stamp     time.Time
	robot     geometry.Pose2D
	velocity  msgs.Twist
	subgoal   geometry.Pose2D
	plan      msgs.Path
	obstacles map[string]geometry.Pose2D
	tracked   map[string]bool

	// generation counts TrackObstacles calls. Obstacle handlers of an
	// older generation are ignored.
	generation uint64

	synced chan struct{}

	subs         []func()
	obstacleSubs []func()
}

// NewCollector returns a Collector subscribed to the laser, robot state,
// sub-goal and global plan topics of bus. Obstacles are not tracked
// until TrackObstacles is called.
func NewCollector(cfg Config, bus transport.Subscriber,
	stepper transport.Stepper, logger logging.Logger,
	opts ...Option) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new collector: %w", err)
	}

	c := &Collector{
		cfg:       cfg,
		bus:       bus,
		stepper:   stepper,
		clock:     clock.New(),
		logger:    logger,
		scan:      filled(cfg.Beams, cfg.MaxRange),
		obstacles: make(map[string]geometry.Pose2D),
		tracked:   make(map[string]bool),
		synced:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.pairs = newSynchronizer(cfg.Slop, cfg.QueueSize, c.setSynchronized)

	handlers := map[string]transport.Handler{
		msgs.TopicScan:       c.handleScan,
		msgs.TopicRobotState: c.handleRobotState,
		msgs.TopicSubgoal:    c.handleSubgoal,
		msgs.TopicGlobalPlan: c.handleGlobalPlan,
	}
	for topic, h := range handlers {
		cancel, err := bus.Subscribe(topic, h)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("new collector: %w", err)
		}
		c.subs = append(c.subs, cancel)
	}

	return c, nil
}

// Config returns the configuration of the Collector
func (c *Collector) Config() Config {
	return c.cfg
}

// TrackObstacles replaces the tracked obstacles by those names that
// contain DynamicMarker. Positions of previously tracked obstacles are
// forgotten.
func (c *Collector) TrackObstacles(names []string) error {
	c.cancelObstacles()

	tracked := make(map[string]bool)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if strings.Contains(name, DynamicMarker) {
			tracked[name] = true
		}
	}

	c.mu.Lock()
	c.obstacles = make(map[string]geometry.Pose2D)
	c.tracked = tracked
	c.generation++
	generation := c.generation
	c.mu.Unlock()

	for name := range tracked {
		name := name
		cancel, err := c.bus.Subscribe(msgs.ObstacleTopic(name),
			func(msg any) { c.handleObstacle(generation, name, msg) })
		if err != nil {
			return fmt.Errorf("track obstacle %v: %w", name, err)
		}
		c.obstacleSubs = append(c.obstacleSubs, cancel)
	}

	if len(tracked) > c.cfg.ObstacleSlots {
		c.logger.Debugw("more dynamic obstacles than slots",
			"obstacles", len(tracked), "slots", c.cfg.ObstacleSlots)
	}
	return nil
}

func (c *Collector) cancelObstacles() {
	for _, cancel := range c.obstacleSubs {
		cancel()
	}
	c.obstacleSubs = nil
}

// Close cancels all subscriptions of the Collector
func (c *Collector) Close() {
	c.cancelObstacles()
	for _, cancel := range c.subs {
		cancel()
	}
	c.subs = nil
}

// Reset discards unmatched messages and any pending synchronization
func (c *Collector) Reset() {
	c.mu.Lock()
	c.pairs.clear()
	c.mu.Unlock()
	c.drain()
}

func (c *Collector) drain() {
	select {
	case <-c.synced:
	default:
	}
}

// GetObservations advances the world until a laser scan and robot
// state have been synchronized, then returns the merged observation
// vector and its structured record. The world is advanced at least
// once per call. Step failures are logged and retried; if no pair
// arrives within the configured attempts or timeout, an error wrapping
// ErrSyncTimeout is returned.
func (c *Collector) GetObservations(ctx context.Context) (*mat.VecDense,
	Record, error) {
	c.drain()

	start := c.clock.Now()
	deadline := start.Add(c.cfg.Timeout)
	for attempt := 1; ; attempt++ {
		wait := c.clock.After(c.cfg.Poll)

		if err := c.stepper.StepWorld(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, Record{}, fmt.Errorf("get observations: %w",
					ctx.Err())
			}
			c.logger.Debugw("step world failed", "attempt", attempt,
				"error", err)
		}

		select {
		case <-c.synced:
			return c.synchronized(attempt)

		case <-ctx.Done():
			return nil, Record{}, fmt.Errorf("get observations: %w",
				ctx.Err())

		case <-wait:
		}

		// The poll interval and a pair may have elapsed together
		select {
		case <-c.synced:
			return c.synchronized(attempt)
		default:
		}

		if attempt >= c.cfg.MaxAttempts || !c.clock.Now().Before(deadline) {
			elapsed := c.clock.Since(start)
			c.logger.Warnw("no synchronized laser scan and robot state",
				"attempts", attempt, "elapsed", elapsed)
			return nil, Record{}, fmt.Errorf(
				"get observations: %v attempts in %v: %w", attempt, elapsed,
				ErrSyncTimeout)
		}
	}
}

func (c *Collector) synchronized(attempt int) (*mat.VecDense, Record,
	error) {
	vec, rec := c.merge()
	if attempt > 1 {
		c.logger.Debugw("synchronized", "steps", attempt)
	}
	return vec, rec, nil
}

// merge builds the observation from the last received values
func (c *Collector) merge() (*mat.VecDense, Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := Record{
		LaserScan:     append([]float64(nil), c.scan...),
		Goal:          geometry.PolarOffset(c.subgoal, c.robot),
		RobotPose:     c.robot,
		RobotVelocity: c.velocity,
		Subgoal:       c.subgoal,
		GlobalPlan:    c.plan,
		Stamp:         c.stamp,
	}

	live := make([]geometry.Polar, 0, len(c.obstacles))
	for _, pose := range c.obstacles {
		live = append(live, geometry.PolarOffset(pose, c.robot))
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].Rho != live[j].Rho {
			return live[i].Rho < live[j].Rho
		}
		return live[i].Theta < live[j].Theta
	})
	if len(live) > c.cfg.ObstacleSlots {
		live = live[:c.cfg.ObstacleSlots]
	}
	rec.LiveObstacles = len(live)

	vec := mat.NewVecDense(c.cfg.Len(), nil)
	for i, r := range rec.LaserScan {
		vec.SetVec(i, r)
	}
	vec.SetVec(c.cfg.Beams, rec.Goal.Rho)
	vec.SetVec(c.cfg.Beams+1, rec.Goal.Theta)

	if c.cfg.ObstacleSlots > 0 {
		rec.Obstacles = mat.NewDense(2, c.cfg.ObstacleSlots, nil)
	}
	for slot := 0; slot < c.cfg.ObstacleSlots; slot++ {
		p := c.placeholder()
		if slot < len(live) {
			p = live[slot]
		}
		rec.Obstacles.Set(0, slot, p.Rho)
		rec.Obstacles.Set(1, slot, p.Theta)
		vec.SetVec(c.cfg.Beams+2+2*slot, p.Rho)
		vec.SetVec(c.cfg.Beams+3+2*slot, p.Theta)
	}

	return vec, rec
}

// placeholder is the polar offset reported for empty obstacle slots:
// an obstacle straight ahead at the laser's maximum range
func (c *Collector) placeholder() geometry.Polar {
	return geometry.Polar{Rho: c.cfg.MaxRange, Theta: 0}
}

// SetScan queues a laser scan for synchronization
func (c *Collector) SetScan(scan msgs.LaserScan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs.addScan(scan)
}

// SetRobotState queues a robot state for synchronization
func (c *Collector) SetRobotState(state msgs.RobotStateStamped) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs.addState(state)
}

// setSynchronized stores a synchronized pair. It is called with c.mu
// held.
func (c *Collector) setSynchronized(scan msgs.LaserScan,
	state msgs.RobotStateStamped) {
	c.scan = c.sanitize(scan)
	c.stamp = scan.Header.Stamp
	c.robot = geometry.FromPose(state.State.Pose)
	c.velocity = state.State.Twist

	select {
	case c.synced <- struct{}{}:
	default:
	}
}

// sanitize returns the ranges of scan with NaNs replaced by the
// scan's maximum range, truncated or padded to the configured number
// of beams
func (c *Collector) sanitize(scan msgs.LaserScan) []float64 {
	maxRange := scan.RangeMax
	if maxRange <= 0 {
		maxRange = c.cfg.MaxRange
	}

	if len(scan.Ranges) != c.cfg.Beams {
		c.logger.Debugw("laser scan length mismatch", "beams",
			len(scan.Ranges), "want", c.cfg.Beams)
	}

	out := filled(c.cfg.Beams, maxRange)
	for i := 0; i < len(out) && i < len(scan.Ranges); i++ {
		if !math.IsNaN(scan.Ranges[i]) {
			out[i] = scan.Ranges[i]
		}
	}
	return out
}

// SetSubgoal stores the last received sub-goal
func (c *Collector) SetSubgoal(goal msgs.PoseStamped) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subgoal = geometry.FromPose(goal.Pose)
}

// SetGlobalPlan stores the last received global plan
func (c *Collector) SetGlobalPlan(plan msgs.Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plan = plan
}

// SetObstacle stores the position of the named obstacle, given by the
// first marker of its marker array. Empty arrays and untracked
// obstacles are ignored.
func (c *Collector) SetObstacle(name string, markers msgs.MarkerArray) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setObstacle(c.generation, name, markers)
}

// setObstacle is called with c.mu held
func (c *Collector) setObstacle(generation uint64, name string,
	markers msgs.MarkerArray) {
	if len(markers.Markers) == 0 || generation != c.generation ||
		!c.tracked[name] {
		return
	}
	c.obstacles[name] = geometry.FromPose(markers.Markers[0].Pose)
}

func (c *Collector) handleScan(msg any) {
	scan, ok := msg.(msgs.LaserScan)
	if !ok {
		c.unexpected(msgs.TopicScan, msg)
		return
	}
	c.SetScan(scan)
}

func (c *Collector) handleRobotState(msg any) {
	state, ok := msg.(msgs.RobotStateStamped)
	if !ok {
		c.unexpected(msgs.TopicRobotState, msg)
		return
	}
	c.SetRobotState(state)
}

func (c *Collector) handleSubgoal(msg any) {
	goal, ok := msg.(msgs.PoseStamped)
	if !ok {
		c.unexpected(msgs.TopicSubgoal, msg)
		return
	}
	c.SetSubgoal(goal)
}

func (c *Collector) handleGlobalPlan(msg any) {
	plan, ok := msg.(msgs.Path)
	if !ok {
		c.unexpected(msgs.TopicGlobalPlan, msg)
		return
	}
	c.SetGlobalPlan(plan)
}

func (c *Collector) handleObstacle(generation uint64, name string,
	msg any) {
	markers, ok := msg.(msgs.MarkerArray)
	if !ok {
		c.unexpected(msgs.ObstacleTopic(name), msg)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setObstacle(generation, name, markers)
}

func (c *Collector) unexpected(topic string, msg any) {
	c.logger.Warnw("unexpected message type", "topic", topic,
		"type", fmt.Sprintf("%T", msg))
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
