package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envsim/envsim/sim"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_ShippedDefaults(t *testing.T) {
	// Skip if defaults.yaml not available
	path := "../defaults.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("defaults.yaml not found, skipping integration test")
	}

	// GIVEN the shipped defaults file
	cfg, err := loadConfig(path)

	// THEN it parses strictly, validates and keeps the original project values
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Clock.TicksPerSecond)
	assert.Equal(t, 1.0, cfg.Clock.SimSpeed)
	assert.Equal(t, "loop", cfg.Clock.WaitStrategy)
	assert.Equal(t, 900*time.Millisecond, cfg.Clock.StatusInterval)
	assert.Equal(t, 100.0, cfg.Surface.TileSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Agents.Interval)
}

func TestLoadConfig_UnknownKeyRejected(t *testing.T) {
	// GIVEN a typo in a nested key
	path := writeConfig(t, "clock:\n  tick_rate: 3\n")

	// WHEN loaded
	_, err := loadConfig(path)

	// THEN strict parsing reports it
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick_rate")
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "clock:\n  ticks_per_second: 30\nsurface:\n  kind: flat\n")

	cfg, err := loadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, 30.0, cfg.Clock.TicksPerSecond)
	assert.Equal(t, "flat", cfg.Surface.Kind)
	// untouched keys keep built-in defaults
	assert.Equal(t, DefaultConfig().Clock.SimSpeed, cfg.Clock.SimSpeed)
	assert.Equal(t, DefaultConfig().Agents.Config, cfg.Agents.Config)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero tick rate", "clock:\n  ticks_per_second: 0\n"},
		{"negative speed", "clock:\n  sim_speed: -1\n"},
		{"unknown wait", "clock:\n  wait_strategy: nap\n"},
		{"unknown index", "surface:\n  kind: quadtree\n"},
		{"zero tile size", "surface:\n  tile_size: 0\n"},
		{"extent overflow", "surface:\n  max_extent: 9223372036854775807\n"},
		{"bad log level", "log_level: chatty\n"},
		{"bad trace level", "record:\n  trace_level: decisions\n"},
		{"agents without interval", "agents:\n  enabled: true\n  interval: 0s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, sim.ErrInvalidConfiguration)
		})
	}
}

func TestLoadConfigOrDefaults_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	// an implicit path falls back to built-in defaults
	cfg, err := loadConfigOrDefaults(missing, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	// an explicit path must exist
	_, err = loadConfigOrDefaults(missing, true)
	assert.Error(t, err)
}

func TestConfig_YAML_RoundTrips(t *testing.T) {
	// GIVEN a non-default configuration
	cfg := DefaultConfig()
	cfg.Clock.TicksPerSecond = 60
	cfg.Clock.StatusInterval = 2 * time.Second
	cfg.Agents.Enabled = true
	cfg.Agents.Mobile = 3
	cfg.Record.TraceLevel = "ticks"

	// WHEN rendered and parsed back
	out, err := cfg.YAML()
	require.NoError(t, err)
	got, err := loadConfig(writeConfig(t, out))

	// THEN nothing is lost
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
	assert.Contains(t, out, "status_interval: 2s")
}

// resetFlags restores every flag of c to its default and clears Changed.
func resetFlags(t *testing.T, c *cobra.Command) {
	t.Helper()
	t.Cleanup(func() {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	})
}

func TestApplyFlags_OnlyChangedFlagsOverride(t *testing.T) {
	resetFlags(t, runCmd)

	// GIVEN a file configuration and a command line that sets two flags
	cfg := DefaultConfig()
	cfg.Clock.TicksPerSecond = 5
	cfg.Surface.Kind = "flat"
	require.NoError(t, runCmd.ParseFlags([]string{"--tps", "20", "--agents"}))

	// WHEN flags are applied
	applyFlags(runCmd, &cfg)

	// THEN set flags win and unset flags leave file values alone
	assert.Equal(t, 20.0, cfg.Clock.TicksPerSecond)
	assert.True(t, cfg.Agents.Enabled)
	assert.Equal(t, "flat", cfg.Surface.Kind, "unset --index must not reset the file value")
	assert.Equal(t, 1.0, cfg.Clock.SimSpeed)
}
