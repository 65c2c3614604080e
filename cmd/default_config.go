package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/envsim/envsim/sim"
	"github.com/envsim/envsim/sim/agents"
	"github.com/envsim/envsim/sim/surface"
	"github.com/envsim/envsim/sim/trace"
)

// ClockSection configures the environment clock and its scheduler.
type ClockSection struct {
	TicksPerSecond float64       `yaml:"ticks_per_second"`
	SimSpeed       float64       `yaml:"sim_speed"`
	WaitStrategy   string        `yaml:"wait_strategy"`   // sleep, spin (alias loop)
	StatusInterval time.Duration `yaml:"status_interval"` // 0 uses the clock default
	FPSWindow      time.Duration `yaml:"fps_window"`
	StallThreshold time.Duration `yaml:"stall_threshold"` // a tick running longer is reported
}

// SurfaceSection selects and sizes the spatial index.
type SurfaceSection struct {
	Kind      string  `yaml:"kind"` // flat or tiled
	TileSize  float64 `yaml:"tile_size"`
	MaxExtent int     `yaml:"max_extent"`
}

// AgentsSection configures the built-in agent driver.
type AgentsSection struct {
	Enabled       bool `yaml:"enabled"`
	agents.Config `yaml:",inline"`
}

// ObserveSection configures the WebSocket observer endpoint. An empty address
// disables it.
type ObserveSection struct {
	Addr     string        `yaml:"addr"`
	Interval time.Duration `yaml:"interval"`
	Tiles    bool          `yaml:"tiles"` // include tile layout in frames (tiled index only)
}

// RecordSection configures what is kept after a run.
type RecordSection struct {
	TraceLevel string `yaml:"trace_level"`
	TraceEvery uint64 `yaml:"trace_every"`
	TraceFile  string `yaml:"trace_file"` // JSONL, zstd-compressed when it ends in .zst
	Database   string `yaml:"database"`   // SQLite run recorder; empty disables
}

// Config represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Clock    ClockSection   `yaml:"clock"`
	Surface  SurfaceSection `yaml:"surface"`
	Agents   AgentsSection  `yaml:"agents"`
	Observe  ObserveSection `yaml:"observe"`
	Record   RecordSection  `yaml:"record"`
}

// DefaultConfig mirrors the shipped defaults.yaml, so a missing file still
// yields a runnable environment.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Clock: ClockSection{
			TicksPerSecond: 1,
			SimSpeed:       1,
			WaitStrategy:   string(sim.WaitSpin),
			StallThreshold: 5 * time.Second,
		},
		Surface: SurfaceSection{
			Kind:      "tiled",
			TileSize:  100,
			MaxExtent: 1000,
		},
		Agents: AgentsSection{Config: agents.DefaultConfig()},
		Observe: ObserveSection{
			Interval: 250 * time.Millisecond,
		},
		Record: RecordSection{
			TraceLevel: string(trace.TraceLevelNone),
		},
	}
}

// loadConfig parses a defaults file over DefaultConfig with strict field
// checking; keys absent from the file keep their default values.
func loadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading defaults file: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing defaults YAML %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// loadConfigOrDefaults is loadConfig, except that a missing file is fine when
// the caller did not ask for it explicitly.
func loadConfigOrDefaults(path string, explicit bool) (Config, error) {
	cfg, err := loadConfig(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		logrus.Debugf("No defaults file at %s, using built-in defaults", path)
		return DefaultConfig(), nil
	}
	return cfg, err
}

func (c Config) clockConfig() sim.ClockConfig {
	cc := sim.NewClockConfig(c.Clock.TicksPerSecond, c.Clock.SimSpeed)
	cc.StatusFlushInterval = c.Clock.StatusInterval
	cc.FPSWindow = c.Clock.FPSWindow
	return cc
}

func (c Config) tiledConfig() surface.TiledConfig {
	return surface.NewTiledConfig(c.Surface.TileSize, c.Surface.MaxExtent)
}

// Validate checks every section. Failures wrap sim.ErrInvalidConfiguration.
func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", sim.ErrInvalidConfiguration, err)
	}
	if err := c.clockConfig().Validate(); err != nil {
		return err
	}
	if _, err := sim.ParseWaitStrategy(c.Clock.WaitStrategy); err != nil {
		return err
	}
	if c.Clock.StallThreshold < 0 {
		return fmt.Errorf("%w: stall_threshold must not be negative, got %v", sim.ErrInvalidConfiguration, c.Clock.StallThreshold)
	}
	switch strings.ToLower(c.Surface.Kind) {
	case "flat":
	case "tiled":
		if err := c.tiledConfig().Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: surface kind must be flat or tiled, got %q", sim.ErrInvalidConfiguration, c.Surface.Kind)
	}
	if c.Agents.Enabled {
		if err := c.Agents.Validate(); err != nil {
			return err
		}
	}
	if c.Observe.Addr != "" && c.Observe.Interval <= 0 {
		return fmt.Errorf("%w: observe interval must be positive, got %v", sim.ErrInvalidConfiguration, c.Observe.Interval)
	}
	if !trace.IsValidTraceLevel(c.Record.TraceLevel) {
		return fmt.Errorf("%w: unknown trace level %q", sim.ErrInvalidConfiguration, c.Record.TraceLevel)
	}
	return nil
}

// YAML renders the configuration the way defaults.yaml is written.
func (c Config) YAML() (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
