package trackers

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/samuelfneumann/navenv/logging"
	"github.com/samuelfneumann/navenv/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// episode returns the timesteps of an episode with the given rewards
// after the first timestep, ending with end
func episode(end timestep.EndType, rewards ...float64) []timestep.TimeStep {
	steps := []timestep.TimeStep{timestep.New(timestep.First, 0, 1, nil, 0)}
	for i, r := range rewards {
		t := timestep.New(timestep.Mid, r, 1, nil, i+1)
		if i == len(rewards)-1 {
			t.SetEnd(end)
		}
		steps = append(steps, t)
	}
	return steps
}

func track(t *testing.T, tracker Tracker, steps ...[]timestep.TimeStep) {
	t.Helper()
	for _, ep := range steps {
		for _, step := range ep {
			require.NoError(t, tracker.Track(step))
		}
	}
}

func TestReturn(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "return.bin")
	r := NewReturn(filename)

	track(t, r,
		episode(timestep.Timeout, 1, 2, 3),
		episode(timestep.Collision, -0.5, -10),
	)
	assert.Equal(t, []float64{6, -10.5}, r.Returns())

	require.NoError(t, r.Save())
	data, err := LoadData[float64](filename)
	require.NoError(t, err)
	assert.Equal(t, []float64{6, -10.5}, data)
}

func TestReturnNonSequential(t *testing.T) {
	r := NewReturn("")
	require.NoError(t, r.Track(timestep.New(timestep.First, 0, 1, nil, 0)))
	assert.Error(t, r.Track(timestep.New(timestep.Mid, 0, 1, nil, 2)))
}

func TestEpisodeLength(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "length.bin")
	e := NewEpisodeLength(filename)

	track(t, e,
		episode(timestep.Timeout, 1, 2, 3),
		episode(timestep.GoalReached, 15),
	)
	assert.Equal(t, []int{3, 1}, e.Lengths())

	require.NoError(t, e.Save())
	data, err := LoadData[int](filename)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1}, data)
}

func TestEndReasons(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "reasons.bin")
	e := NewEndReasons(filename)

	track(t, e,
		episode(timestep.Timeout, 1),
		episode(timestep.Collision, -10),
		episode(timestep.Collision, 0, -10),
	)
	assert.Equal(t, 1, e.Count(timestep.Timeout))
	assert.Equal(t, 2, e.Count(timestep.Collision))
	assert.Equal(t, 0, e.Count(timestep.GoalReached))

	require.NoError(t, e.Save())
	data, err := LoadData[string](filename)
	require.NoError(t, err)
	assert.Equal(t, []string{timestep.Timeout.String(),
		timestep.Collision.String(), timestep.Collision.String()}, data)
}

func TestLoadDataMissing(t *testing.T) {
	_, err := LoadData[float64](filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}

func TestStore(t *testing.T) {
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	run := NewRunID()
	now := time.Unix(1700000000, 0)
	workers := []*Store{NewStore(db, run, 0), NewStore(db, run, 1)}
	for _, s := range workers {
		s.now = func() time.Time { return now }
	}

	track(t, workers[1], episode(timestep.GoalReached, 1, 15))
	track(t, workers[0],
		episode(timestep.Timeout, 1, 2, 3),
		episode(timestep.Collision, -10),
	)
	require.NoError(t, workers[0].Save())

	// Another run in the same database
	track(t, NewStore(db, NewRunID(), 0), episode(timestep.Timeout, 1))

	episodes, err := Episodes(db, run)
	require.NoError(t, err)
	require.Len(t, episodes, 3)

	want := []Episode{
		{RunID: run, Worker: 0, Episode: 1, Steps: 3, Return: 6,
			EndReason: timestep.Timeout.String()},
		{RunID: run, Worker: 0, Episode: 2, Steps: 1, Return: -10,
			EndReason: timestep.Collision.String()},
		{RunID: run, Worker: 1, Episode: 1, Steps: 2, Return: 16,
			EndReason: timestep.GoalReached.String()},
	}
	ids := make(map[string]bool)
	for i, got := range episodes {
		assert.NotEmpty(t, got.EpisodeID)
		ids[got.EpisodeID] = true
		assert.True(t, now.Equal(got.CreatedAt))

		got.EpisodeID = ""
		got.CreatedAt = time.Time{}
		assert.Equal(t, want[i], got)
	}
	assert.Len(t, ids, 3)
}

func TestProgress(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	p := NewProgress(logger, 6, 2)

	track(t, p,
		episode(timestep.Timeout, 1, 2, 3),
		episode(timestep.Collision, 1, 2, 3),
	)
	assert.Equal(t, 6, p.Steps())
	assert.Equal(t, 3, logs.FilterMessage("progress").Len())

	last := logs.FilterMessage("progress").All()[2].ContextMap()
	assert.EqualValues(t, 2, last["episodes"])
	assert.EqualValues(t, 100, last["percent"])
	require.NoError(t, p.Save())
}
