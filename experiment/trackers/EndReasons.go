package trackers

import (
	"github.com/samuelfneumann/navenv/timestep"
)

// EndReasons tracks why each episode of an experiment ended
type EndReasons struct {
	reasons  []string
	counts   map[timestep.EndType]int
	filename string
}

// NewEndReasons returns a new EndReasons tracker which will save its
// data at filename
func NewEndReasons(filename string) *EndReasons {
	return &EndReasons{
		counts:   make(map[timestep.EndType]int),
		filename: filename,
	}
}

// Track records the end type of last timesteps
func (e *EndReasons) Track(t timestep.TimeStep) error {
	if t.Last() {
		e.reasons = append(e.reasons, t.EndType().String())
		e.counts[t.EndType()]++
	}
	return nil
}

// Count returns the number of episodes that ended with end
func (e *EndReasons) Count(end timestep.EndType) int {
	return e.counts[end]
}

// Save saves the end reasons, one per episode, to disk
func (e *EndReasons) Save() error {
	return save(e.filename, e.reasons)
}
