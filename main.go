package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/samuelfneumann/navenv/agent"
	"github.com/samuelfneumann/navenv/config"
	"github.com/samuelfneumann/navenv/environment/navigation"
	"github.com/samuelfneumann/navenv/experiment"
	"github.com/samuelfneumann/navenv/experiment/trackers"
	"github.com/samuelfneumann/navenv/logging"
	"github.com/samuelfneumann/navenv/sim"
	"github.com/samuelfneumann/navenv/timestep"
	"github.com/samuelfneumann/navenv/transport"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type options struct {
	robot    string
	settings string
	env      string

	steps       int
	workers     int
	seed        uint64
	db          string
	renderEvery int
	renderDir   string
	debug       bool
}

func main() {
	for _, envFile := range []string{".env", "../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	rootCmd := &cobra.Command{
		Use:          "navenv",
		Short:        "navenv runs agents in a waypoint navigation environment",
		SilenceUsage: true,
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.robot, "robot", os.Getenv("NAVENV_ROBOT"),
		"robot model YAML file (NAVENV_ROBOT)")
	flags.StringVar(&opts.settings, "settings", os.Getenv("NAVENV_SETTINGS"),
		"action settings YAML file (NAVENV_SETTINGS)")
	flags.StringVar(&opts.env, "env", os.Getenv("NAVENV_ENV"),
		"optional environment options YAML file (NAVENV_ENV)")
	flags.BoolVar(&opts.debug, "debug", false, "log at debug level")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a random steering agent in simulated worlds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	runFlags := runCmd.Flags()
	runFlags.IntVar(&opts.steps, "steps", 1000, "steps per worker")
	runFlags.IntVar(&opts.workers, "workers", 1,
		"number of independent worlds run in parallel")
	runFlags.Uint64Var(&opts.seed, "seed", 0, "random seed")
	runFlags.StringVar(&opts.db, "db", "navenv.db",
		"SQLite database the episodes are stored in")
	runFlags.IntVar(&opts.renderEvery, "render-every", 0,
		"render the last step of every n-th episode, 0 to never render")
	runFlags.StringVar(&opts.renderDir, "render-dir", ".",
		"directory rendered images are saved in")

	spacesCmd := &cobra.Command{
		Use:   "spaces",
		Short: "Print the observation and action spaces",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return spaces(cmd, opts)
		},
	}

	rootCmd.AddCommand(runCmd, spacesCmd)
	return rootCmd
}

func newLogger(opts options) logging.Logger {
	if opts.debug {
		return logging.NewDebugLogger("navenv")
	}
	return logging.NewLogger("navenv")
}

func run(ctx context.Context, opts options) error {
	if opts.workers < 1 {
		return fmt.Errorf("run: need at least one worker, got %v", opts.workers)
	}
	cfg, err := config.Load(opts.robot, opts.settings, opts.env)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	logger := newLogger(opts)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	db, err := trackers.OpenDB(opts.db)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer db.Close()

	runID := trackers.NewRunID()
	logger.Infow("starting run", "run", runID, "workers", opts.workers,
		"steps", opts.steps, "db", opts.db)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.workers; w++ {
		w := w
		g.Go(func() error {
			return runWorker(ctx, cfg, opts, db, runID, w,
				logger.With("worker", w))
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	episodes, err := trackers.Episodes(db, runID)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	reasons := make(map[string]int)
	for _, e := range episodes {
		reasons[e.EndReason]++
	}
	logger.Infow("run finished", "run", runID, "episodes", len(episodes),
		"end_reasons", reasons)
	return nil
}

// runWorker runs an agent in its own world, connected to its own bus
func runWorker(ctx context.Context, cfg config.Config, opts options,
	db *sql.DB, runID string, worker int, logger logging.Logger) error {
	bus := transport.NewBus(cfg.Env.Sync.QueueSize, logger.Named("bus"))
	defer bus.Close()

	simCfg := sim.DefaultConfig(cfg.Robot)
	simCfg.Seed = opts.seed + uint64(worker)
	world, err := sim.New(simCfg, bus, logger.Named("sim"))
	if err != nil {
		return fmt.Errorf("worker %v: %w", worker, err)
	}
	defer world.Close()

	env, err := navigation.New(cfg, bus, world, world,
		logger.Named("navigation"))
	if err != nil {
		return fmt.Errorf("worker %v: %w", worker, err)
	}
	defer env.Close()

	a, err := agent.NewRandom(env.ActionSpec(), opts.seed+uint64(worker))
	if err != nil {
		return fmt.Errorf("worker %v: %w", worker, err)
	}

	o := experiment.NewOnline(env, a, opts.steps, logger,
		trackers.NewStore(db, runID, worker),
		trackers.NewProgress(logger, opts.steps, opts.steps/10))
	if opts.renderEvery > 0 {
		o.Register(&renderer{
			world: world,
			every: opts.renderEvery,
			pattern: filepath.Join(opts.renderDir,
				fmt.Sprintf("%v-w%v-ep%%v.png", runID[:8], worker)),
		})
	}

	if err := o.Run(ctx); err != nil {
		return fmt.Errorf("worker %v: %w", worker, err)
	}
	if err := o.Save(); err != nil {
		return fmt.Errorf("worker %v: %w", worker, err)
	}
	logger.Infow("worker finished", "episodes", o.Episodes(),
		"steps", o.Steps())
	return nil
}

// renderer is a Tracker saving an image of the world on the last step
// of every n-th episode
type renderer struct {
	world   *sim.World
	every   int
	pattern string
	episode int
}

func (r *renderer) Track(t timestep.TimeStep) error {
	if !t.Last() {
		return nil
	}
	r.episode++
	if r.episode%r.every != 0 {
		return nil
	}
	return r.world.Render(fmt.Sprintf(r.pattern, r.episode))
}

func (r *renderer) Save() error { return nil }

func spaces(cmd *cobra.Command, opts options) error {
	cfg, err := config.Load(opts.robot, opts.settings, opts.env)
	if err != nil {
		return fmt.Errorf("spaces: %w", err)
	}

	bus := transport.NewBus(0, logging.NewNop())
	defer bus.Close()
	env, err := navigation.New(cfg, bus, nil, nil, logging.NewNop())
	if err != nil {
		return fmt.Errorf("spaces: %w", err)
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, env)
	fmt.Fprintln(out, env.ObservationSpec())
	fmt.Fprintln(out, env.ActionSpec())
	fmt.Fprintf(out, "laser beams: %v, obstacle slots: %v\n", cfg.Robot.Beams,
		cfg.Env.ObstacleSlots)
	return nil
}
