package observation

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/samuelfneumann/navenv/msgs"
)

type pair struct {
	Scan, State time.Duration
}

func TestSynchronizer(t *testing.T) {
	base := time.Unix(1000, 0)
	ms := time.Millisecond

	type event struct {
		scan bool
		at   time.Duration
	}

	tests := []struct {
		name      string
		queueSize int
		events    []event
		want      []pair
	}{
		{
			name:      "exact",
			queueSize: 10,
			events:    []event{{true, 0}, {false, 0}},
			want:      []pair{{0, 0}},
		},
		{
			name:      "within slop",
			queueSize: 10,
			events:    []event{{false, 0}, {true, 50 * ms}},
			want:      []pair{{50 * ms, 0}},
		},
		{
			name:      "outside slop",
			queueSize: 10,
			events:    []event{{true, 0}, {false, 51 * ms}},
			want:      nil,
		},
		{
			name:      "closest state",
			queueSize: 10,
			events: []event{
				{false, 0}, {false, 30 * ms}, {false, 200 * ms},
				{true, 40 * ms},
			},
			want: []pair{{40 * ms, 30 * ms}},
		},
		{
			name:      "older messages discarded after pair",
			queueSize: 10,
			events: []event{
				{true, 0}, {true, 100 * ms}, {false, 100 * ms},
				{false, 10 * ms},
			},
			want: []pair{{100 * ms, 100 * ms}},
		},
		{
			name:      "queue drops oldest",
			queueSize: 1,
			events:    []event{{true, 0}, {true, 500 * ms}, {false, 0}},
			want:      nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var got []pair
			s := newSynchronizer(50*ms, test.queueSize,
				func(scan msgs.LaserScan, state msgs.RobotStateStamped) {
					got = append(got, pair{
						scan.Header.Stamp.Sub(base),
						state.Header.Stamp.Sub(base),
					})
				})

			for _, e := range test.events {
				h := msgs.Header{Stamp: base.Add(e.at)}
				if e.scan {
					s.addScan(msgs.LaserScan{Header: h})
				} else {
					s.addState(msgs.RobotStateStamped{Header: h})
				}
			}

			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("pairs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
