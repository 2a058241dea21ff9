package trackers

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samuelfneumann/navenv/timestep"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Episode is a finished episode persisted by a Store
type Episode struct {
	EpisodeID string
	RunID     string
	Worker    int
	Episode   int
	Steps     int
	Return    float64
	EndReason string
	CreatedAt time.Time
}

// OpenDB opens the SQLite database at path, creating the episodes table
// if needed. Use ":memory:" for a database that lives as long as the
// returned handle.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Workers share the handle and SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("open db: create schema: %w", err)
	}
	return db, nil
}

// NewRunID returns a new unique run identifier
func NewRunID() string {
	return uuid.NewString()
}

// Store is a Tracker that writes one row per finished episode to an
// SQLite database
type Store struct {
	db     *sql.DB
	runID  string
	worker int

	episode int
	ret     float64
	now     func() time.Time
}

// NewStore returns a Store recording the episodes of one worker of a
// run into db
func NewStore(db *sql.DB, runID string, worker int) *Store {
	return &Store{db: db, runID: runID, worker: worker, now: time.Now}
}

// Track accumulates rewards and inserts the episode when t is last
func (s *Store) Track(t timestep.TimeStep) error {
	if t.First() {
		s.ret = 0
		return nil
	}
	s.ret += t.Reward
	if !t.Last() {
		return nil
	}

	s.episode++
	_, err := s.db.Exec(`
		INSERT INTO episodes (
			episode_id, run_id, worker, episode, steps, episode_return,
			end_reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), s.runID, s.worker, s.episode, t.Number, s.ret,
		t.EndType().String(), s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store episode %v: %w", s.episode, err)
	}
	return nil
}

// Save does nothing, episodes are written as they finish
func (s *Store) Save() error {
	return nil
}

// Episodes returns the episodes of a run, ordered by worker and episode
func Episodes(db *sql.DB, runID string) ([]Episode, error) {
	rows, err := db.Query(`
		SELECT episode_id, run_id, worker, episode, steps, episode_return,
		       end_reason, created_at
		FROM episodes
		WHERE run_id = ?
		ORDER BY worker, episode`, runID)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var e Episode
		var createdAt int64
		if err := rows.Scan(&e.EpisodeID, &e.RunID, &e.Worker, &e.Episode,
			&e.Steps, &e.Return, &e.EndReason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		e.CreatedAt = time.Unix(0, createdAt)
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}
