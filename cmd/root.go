package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Shared flags
	configPath string // Path to the defaults file
	logLevel   string // Log verbosity level

	// CLI flags for the clock
	ticksPerSecond float64       // Target tick rate
	simSpeed       float64       // Simulated-time multiplier
	waitStrategy   string        // sleep or spin between ticks
	runDuration    time.Duration // Wall-clock run length; 0 runs until interrupted

	// CLI flags for the spatial index
	indexKind string  // flat or tiled
	tileSize  float64 // Tile side length
	maxExtent int     // Max tiles from the root tile on either axis

	// CLI flags for the agent driver
	withAgents   bool  // Run the built-in agent population
	mobileAgents int   // Number of wandering agents
	staticAgents int   // Number of landmark agents
	agentSeed    int64 // Seed for placement and wandering

	// CLI flags for observers and records
	observeAddr  string // WebSocket observer listen address
	traceLevel   string // Tick trace level
	traceEvery   uint64 // Keep one tick record every N ticks
	traceFile    string // Tick trace output path
	databasePath string // SQLite run recorder path
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "envsim",
	Short: "Fixed-rate simulation environment with a concurrent spatial index",
}

// runCmd runs the environment using defaults.yaml overridden by CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation environment",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := effectiveConfig(cmd)

		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", cfg.LogLevel)
		}
		logrus.SetLevel(level)

		env, err := newEnvironment(cfg)
		if err != nil {
			logrus.Fatalf("Failed to build environment: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if runDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, runDuration)
			defer cancel()
		}

		logrus.Infof("Starting environment: %.2f ticks/s, speed %.2f, %s wait, %s index, duration %v",
			cfg.Clock.TicksPerSecond, cfg.Clock.SimSpeed, env.strategy, cfg.Surface.Kind, runDuration)
		if err := env.run(ctx, cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("Environment halted: %v", err)
		}
		logrus.Info("Environment stopped.")
	},
}

// effectiveConfig loads the defaults file and applies every flag the user set.
func effectiveConfig(cmd *cobra.Command) Config {
	cfg, err := loadConfigOrDefaults(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// applyFlags overrides file values only for flags that were set explicitly,
// so flag defaults never mask the defaults file.
func applyFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("log") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("tps") {
		cfg.Clock.TicksPerSecond = ticksPerSecond
	}
	if flags.Changed("speed") {
		cfg.Clock.SimSpeed = simSpeed
	}
	if flags.Changed("wait") {
		cfg.Clock.WaitStrategy = waitStrategy
	}
	if flags.Changed("index") {
		cfg.Surface.Kind = indexKind
	}
	if flags.Changed("tile-size") {
		cfg.Surface.TileSize = tileSize
	}
	if flags.Changed("max-extent") {
		cfg.Surface.MaxExtent = maxExtent
	}
	if flags.Changed("agents") {
		cfg.Agents.Enabled = withAgents
	}
	if flags.Changed("mobile") {
		cfg.Agents.Mobile = mobileAgents
	}
	if flags.Changed("static") {
		cfg.Agents.Static = staticAgents
	}
	if flags.Changed("seed") {
		cfg.Agents.Seed = agentSeed
	}
	if flags.Changed("observe") {
		cfg.Observe.Addr = observeAddr
	}
	if flags.Changed("trace-level") {
		cfg.Record.TraceLevel = traceLevel
	}
	if flags.Changed("trace-every") {
		cfg.Record.TraceEvery = traceEvery
	}
	if flags.Changed("trace-file") {
		cfg.Record.TraceFile = traceFile
	}
	if flags.Changed("db") {
		cfg.Record.Database = databasePath
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "defaults.yaml", "Path to the defaults file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().Float64Var(&ticksPerSecond, "tps", 1, "Target ticks per second")
	runCmd.Flags().Float64Var(&simSpeed, "speed", 1, "Simulation speed multiplier")
	runCmd.Flags().StringVar(&waitStrategy, "wait", "spin", "Wait strategy between ticks (sleep, spin)")
	runCmd.Flags().DurationVar(&runDuration, "duration", 5*time.Second, "Wall-clock run length (0 runs until interrupted)")

	runCmd.Flags().StringVar(&indexKind, "index", "tiled", "Spatial index (flat, tiled)")
	runCmd.Flags().Float64Var(&tileSize, "tile-size", 100, "Tile side length for the tiled index")
	runCmd.Flags().IntVar(&maxExtent, "max-extent", 1000, "Max tiles from the root tile on either axis")

	runCmd.Flags().BoolVar(&withAgents, "agents", false, "Run the built-in agent population")
	runCmd.Flags().IntVar(&mobileAgents, "mobile", 8, "Number of wandering agents")
	runCmd.Flags().IntVar(&staticAgents, "static", 4, "Number of landmark agents")
	runCmd.Flags().Int64Var(&agentSeed, "seed", 42, "Seed for agent placement and wandering")

	runCmd.Flags().StringVar(&observeAddr, "observe", "", "Listen address for WebSocket observers (empty disables)")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Tick trace level (none, ticks)")
	runCmd.Flags().Uint64Var(&traceEvery, "trace-every", 1, "Keep one tick record every N ticks")
	runCmd.Flags().StringVar(&traceFile, "trace-file", "", "Write the tick trace as JSONL (.zst compresses)")
	runCmd.Flags().StringVar(&databasePath, "db", "", "Record the run in this SQLite database")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
