package sim

import (
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClock(t *testing.T, cfg ClockConfig, ft *fakeTime) (*Clock, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	c, err := newClock(cfg, ft.Now, logger)
	require.NoError(t, err)
	return c, hook
}

// tick runs one clock cycle after advancing fake time by gap.
func tick(c *Clock, ft *fakeTime, gap time.Duration) time.Time {
	ft.Advance(gap)
	c.BeginTick()
	return c.EndTick()
}

func TestNewClock_InvalidConfig_ReturnsInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClockConfig
	}{
		{"zero ticks", NewClockConfig(0, 1)},
		{"negative ticks", NewClockConfig(-5, 1)},
		{"zero speed", NewClockConfig(10, 0)},
		{"negative speed", NewClockConfig(10, -1)},
		{"NaN ticks", NewClockConfig(math.NaN(), 1)},
		{"Inf speed", NewClockConfig(10, math.Inf(1))},
		{"negative flush interval", ClockConfig{TicksPerSecond: 1, SimSpeed: 1, StatusFlushInterval: -time.Second}},
		{"negative fps window", ClockConfig{TicksPerSecond: 1, SimSpeed: 1, FPSWindow: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClock(tt.cfg)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestNewClock_AppliesDefaults(t *testing.T) {
	c, err := NewClock(NewClockConfig(20, 1))
	require.NoError(t, err)
	assert.Equal(t, DefaultStatusFlushInterval, c.Config().StatusFlushInterval)
	assert.Equal(t, DefaultFPSWindow, c.Config().FPSWindow)
	assert.Equal(t, 50*time.Millisecond, c.Period())
}

func TestNewClockWithLogger_StatusGoesToGivenLogger(t *testing.T) {
	// GIVEN a clock reporting to its own logger with a short flush interval
	logger, hook := test.NewNullLogger()
	cfg := NewClockConfig(100, 1)
	cfg.StatusFlushInterval = time.Millisecond
	c, err := NewClockWithLogger(cfg, logger)
	require.NoError(t, err)

	// WHEN a tick ends after the interval has passed
	time.Sleep(5 * time.Millisecond)
	c.BeginTick()
	c.EndTick()

	// THEN the status line is written there
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "-step: 1")
}

func TestClock_BeforeFirstTick_ZeroSnapshot(t *testing.T) {
	ft := newFakeTime(0)
	c, _ := newTestClock(t, NewClockConfig(10, 1), ft)

	assert.False(t, c.HasCompletedFirstTick())
	assert.Equal(t, Snapshot{}, c.Snapshot())
}

func TestClock_StepIncrementsByOnePerTick(t *testing.T) {
	ft := newFakeTime(0)
	c, _ := newTestClock(t, NewClockConfig(10, 1), ft)

	for i := 1; i <= 25; i++ {
		tick(c, ft, 100*time.Millisecond)
		assert.Equal(t, uint64(i), c.Snapshot().Step)
	}
	assert.True(t, c.HasCompletedFirstTick())
}

func TestClock_EndTick_DeadlineIsTickStartPlusPeriod(t *testing.T) {
	// GIVEN a 4 ticks/s clock
	ft := newFakeTime(0)
	c, _ := newTestClock(t, NewClockConfig(4, 1), ft)

	// WHEN a tick begins and the update takes 30ms
	ft.Advance(time.Second)
	start := ft.Now()
	c.BeginTick()
	ft.Advance(30 * time.Millisecond)
	deadline := c.EndTick()

	// THEN the deadline is measured from the tick start, not the tick end
	assert.Equal(t, start.Add(250*time.Millisecond), deadline)
}

func TestClock_RuntimeMeasuredFromFirstTick(t *testing.T) {
	ft := newFakeTime(0)
	c, _ := newTestClock(t, NewClockConfig(10, 1), ft)

	// time passing before the first tick is not runtime
	ft.Advance(5 * time.Second)
	tick(c, ft, 0)
	assert.Equal(t, 0.0, c.Snapshot().RuntimeSeconds)

	for i := 0; i < 10; i++ {
		tick(c, ft, 100*time.Millisecond)
	}
	assert.InDelta(t, 1.0, c.Snapshot().RuntimeSeconds, 1e-9)
}

func TestClock_SimulatedIsRuntimeTimesScale_EverySnapshot(t *testing.T) {
	// GIVEN ticks=10, speed=2 (scale 0.2)
	ft := newFakeTime(0)
	cfg := NewClockConfig(10, 2)
	c, _ := newTestClock(t, cfg, ft)

	// WHEN ticks of irregular length run
	gaps := []time.Duration{0, 97 * time.Millisecond, 103 * time.Millisecond, 250 * time.Millisecond, time.Millisecond, 3 * time.Second}
	for _, g := range gaps {
		tick(c, ft, g)
		snap := c.Snapshot()

		// THEN simulated seconds equal runtime times speed/ticks exactly
		assert.Equal(t, snap.RuntimeSeconds*cfg.SimScale(), snap.SimulatedSeconds)
	}
}

func TestClock_RuntimeMonotonic(t *testing.T) {
	ft := newFakeTime(0)
	c, _ := newTestClock(t, NewClockConfig(100, 1), ft)

	prev := -1.0
	for i := 0; i < 200; i++ {
		tick(c, ft, time.Duration(i%7)*time.Millisecond)
		rt := c.Snapshot().RuntimeSeconds
		assert.GreaterOrEqual(t, rt, prev)
		prev = rt
	}
}

func TestClock_FPS_ChangesOnlyAtWindowBoundaries(t *testing.T) {
	// GIVEN a 1s fps window and ticks every 10ms
	ft := newFakeTime(0)
	c, _ := newTestClock(t, NewClockConfig(100, 1), ft)

	tick(c, ft, 0) // opens the window
	for k := 1; k <= 100; k++ {
		tick(c, ft, 10*time.Millisecond)
		// THEN no rate is reported before a whole window has elapsed
		assert.Equal(t, 0.0, c.Snapshot().FPS, "tick %d", k)
	}

	// WHEN the window boundary is crossed
	tick(c, ft, 10*time.Millisecond)
	assert.InDelta(t, 100.0, c.Snapshot().FPS, 1e-9)

	// AND the tick rate halves inside the next window
	var samples []float64
	for j := 1; j <= 50; j++ {
		tick(c, ft, 20*time.Millisecond)
		samples = append(samples, c.Snapshot().FPS)
	}
	// THEN the reported value stays stale for the whole window
	for _, s := range samples {
		assert.Equal(t, samples[0], s)
	}
	assert.InDelta(t, 100.0, samples[0], 1e-9)

	// AND updates once the window closes
	tick(c, ft, 20*time.Millisecond)
	assert.InDelta(t, 50.0, c.Snapshot().FPS, 1e-9)
}

func TestClock_StatusLine_ThrottledToInterval(t *testing.T) {
	// GIVEN a clock ticking every 10ms for 3 simulated wall seconds
	ft := newFakeTime(0)
	cfg := NewClockConfig(100, 1)
	cfg.StatusPrefix = "Global Environment"
	c, hook := newTestClock(t, cfg, ft)

	for i := 0; i < 300; i++ {
		tick(c, ft, 10*time.Millisecond)
	}

	// THEN one line was emitted per 900ms, not one per tick
	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Contains(t, e.Message, "Global Environment -runtime: ")
		assert.Contains(t, e.Message, " -simulatedSec: ")
		assert.Contains(t, e.Message, " -step: ")
		assert.Contains(t, e.Message, " -fps: ")
	}
	// AND the flushed step is the latest one at flush time
	assert.Contains(t, entries[0].Message, "-step: 90 ")
}
