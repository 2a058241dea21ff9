package trackers

import (
	"time"

	"github.com/samuelfneumann/navenv/logging"
	"github.com/samuelfneumann/navenv/timestep"
)

// Progress is a Tracker that logs the progress of an experiment every
// fixed number of steps. It saves nothing.
type Progress struct {
	logger logging.Logger
	total  int
	every  int

	steps    int
	episodes int
	start    time.Time
}

// NewProgress returns a Progress tracker for an experiment of total
// steps, logging every every steps
func NewProgress(logger logging.Logger, total, every int) *Progress {
	return &Progress{logger: logger, total: total, every: max(every, 1)}
}

// Track counts the steps and finished episodes
func (p *Progress) Track(t timestep.TimeStep) error {
	if p.start.IsZero() {
		p.start = time.Now()
	}
	if t.First() {
		return nil
	}

	p.steps++
	if t.Last() {
		p.episodes++
	}
	if p.steps%p.every == 0 || p.steps == p.total {
		p.logger.Infow("progress", "steps", p.steps, "total", p.total,
			"percent", 100*float64(p.steps)/float64(max(p.total, 1)),
			"episodes", p.episodes, "elapsed", time.Since(p.start).Round(time.Millisecond))
	}
	return nil
}

// Steps returns the number of steps tracked
func (p *Progress) Steps() int { return p.steps }

// Save does nothing
func (p *Progress) Save() error { return nil }
