package sim

import (
	"fmt"
	"math"
	"time"
)

const (
	// DefaultStatusFlushInterval is slightly under one second so the status
	// line lands once per wall-clock second even with tick jitter.
	DefaultStatusFlushInterval = 900 * time.Millisecond

	// DefaultFPSWindow is the wall-clock window over which ticks are counted.
	DefaultFPSWindow = time.Second
)

// ClockConfig groups the fixed parameters of a simulation clock.
type ClockConfig struct {
	TicksPerSecond      float64       // target tick rate (must be > 0)
	SimSpeed            float64       // simulated-time speed factor (must be > 0)
	StatusFlushInterval time.Duration // minimum gap between status lines (0 = DefaultStatusFlushInterval)
	FPSWindow           time.Duration // fps recomputation window (0 = DefaultFPSWindow)
	StatusPrefix        string        // prefix of every status line
}

// NewClockConfig builds a ClockConfig with default flush interval and fps window.
func NewClockConfig(ticksPerSecond, simSpeed float64) ClockConfig {
	return ClockConfig{
		TicksPerSecond: ticksPerSecond,
		SimSpeed:       simSpeed,
	}
}

// Validate checks rates and intervals. Failures wrap ErrInvalidConfiguration.
func (c ClockConfig) Validate() error {
	if err := validateFinitePositive("ticks_per_second", c.TicksPerSecond); err != nil {
		return err
	}
	if err := validateFinitePositive("sim_speed", c.SimSpeed); err != nil {
		return err
	}
	if c.StatusFlushInterval < 0 {
		return fmt.Errorf("%w: status flush interval must be non-negative, got %v", ErrInvalidConfiguration, c.StatusFlushInterval)
	}
	if c.FPSWindow < 0 {
		return fmt.Errorf("%w: fps window must be non-negative, got %v", ErrInvalidConfiguration, c.FPSWindow)
	}
	return nil
}

// withDefaults fills zero-valued optional fields.
func (c ClockConfig) withDefaults() ClockConfig {
	if c.StatusFlushInterval == 0 {
		c.StatusFlushInterval = DefaultStatusFlushInterval
	}
	if c.FPSWindow == 0 {
		c.FPSWindow = DefaultFPSWindow
	}
	return c
}

// Period returns the wall-clock duration of one tick.
func (c ClockConfig) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.TicksPerSecond)
}

// SimScale is the factor applied to runtime seconds to obtain simulated seconds.
func (c ClockConfig) SimScale() float64 {
	return c.SimSpeed / c.TicksPerSecond
}

func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%w: %s must be a finite number, got %f", ErrInvalidConfiguration, name, val)
	}
	if val <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %f", ErrInvalidConfiguration, name, val)
	}
	return nil
}
