package observation

import (
	"time"

	"github.com/samuelfneumann/navenv/msgs"
)

// synchronizer pairs laser scans with robot states whose stamps differ
// by at most slop. Each stream keeps at most queueSize unmatched
// messages, dropping the oldest first. Once a pair is emitted, every
// message at or before it in either stream is discarded so that pairs
// are emitted in stamp order.
//
// A synchronizer is not safe for concurrent use.
type synchronizer struct {
	slop      time.Duration
	queueSize int
	scans     []msgs.LaserScan
	states    []msgs.RobotStateStamped
	onPair    func(msgs.LaserScan, msgs.RobotStateStamped)
}

func newSynchronizer(slop time.Duration, queueSize int,
	onPair func(msgs.LaserScan, msgs.RobotStateStamped)) *synchronizer {
	return &synchronizer{
		slop:      slop,
		queueSize: queueSize,
		onPair:    onPair,
	}
}

func (s *synchronizer) addScan(scan msgs.LaserScan) {
	s.scans = append(s.scans, scan)
	if len(s.scans) > s.queueSize {
		s.scans = s.scans[len(s.scans)-s.queueSize:]
	}
	s.match()
}

func (s *synchronizer) addState(state msgs.RobotStateStamped) {
	s.states = append(s.states, state)
	if len(s.states) > s.queueSize {
		s.states = s.states[len(s.states)-s.queueSize:]
	}
	s.match()
}

// match emits pairs while any scan has a state within the slop window.
// Scans are considered oldest first, and each is paired with its
// closest state.
func (s *synchronizer) match() {
	for {
		scanIdx, stateIdx := -1, -1
		for i := range s.scans {
			best := time.Duration(-1)
			for j := range s.states {
				d := absDuration(s.scans[i].Header.Stamp.Sub(
					s.states[j].Header.Stamp))
				if d <= s.slop && (best < 0 || d < best) {
					best = d
					stateIdx = j
				}
			}
			if stateIdx >= 0 {
				scanIdx = i
				break
			}
		}
		if scanIdx < 0 {
			return
		}

		scan, state := s.scans[scanIdx], s.states[stateIdx]
		s.scans = s.scans[scanIdx+1:]
		s.states = s.states[stateIdx+1:]
		s.onPair(scan, state)
	}
}

func (s *synchronizer) clear() {
	s.scans = nil
	s.states = nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
