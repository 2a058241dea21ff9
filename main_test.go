package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/navenv/experiment/trackers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const robotYAML = `
bodies:
  - name: base_footprint
    footprints:
      - type: circle
        radius: 0.25
plugins:
  - type: Laser
    name: static_laser
    range: 3.5
    angle: {min: -3.14159265, max: 3.14159265, increment: 0.17453293}
`

const settingsYAML = `
robot:
  continuous_actions:
    angular_range: [-3.14, 3.14]
`

const envYAML = `
max_steps_per_episode: 5
obstacle_slots: 2
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSpaces(t *testing.T) {
	dir := t.TempDir()
	robot := writeFile(t, dir, "robot.yaml", robotYAML)
	settings := writeFile(t, dir, "settings.yaml", settingsYAML)

	out, err := execute(t, "spaces", "--robot", robot, "--settings", settings)
	require.NoError(t, err)
	assert.Contains(t, out, "Observation Spec")
	assert.Contains(t, out, "Action Spec")
	assert.Contains(t, out, "laser beams: 37, obstacle slots: 8")
}

func TestSpacesMissingConfig(t *testing.T) {
	_, err := execute(t, "spaces", "--robot",
		filepath.Join(t.TempDir(), "missing.yaml"), "--settings", "")
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	robot := writeFile(t, dir, "robot.yaml", robotYAML)
	settings := writeFile(t, dir, "settings.yaml", settingsYAML)
	env := writeFile(t, dir, "env.yaml", envYAML)
	dbPath := filepath.Join(dir, "episodes.db")

	_, err := execute(t, "run", "--robot", robot, "--settings", settings,
		"--env", env, "--steps", "20", "--workers", "2", "--seed", "3",
		"--db", dbPath, "--render-every", "2", "--render-dir", dir)
	require.NoError(t, err)

	db, err := trackers.OpenDB(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Every episode lasts at most 5 steps, so each worker finishes at
	// least 4 of them in 20 steps
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM episodes`).Scan(&n))
	assert.GreaterOrEqual(t, n, 8)

	images, err := filepath.Glob(filepath.Join(dir, "*.png"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(images), 4)
}
