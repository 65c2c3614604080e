// sim/clock.go
package sim

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Snapshot is the immutable clock state published at the end of every tick.
type Snapshot struct {
	Step             uint64  `json:"step"`
	FPS              float64 `json:"fps"`
	RuntimeSeconds   float64 `json:"runtime_seconds"`
	SimulatedSeconds float64 `json:"simulated_seconds"`
}

// Clock owns wall-clock and simulated-time bookkeeping for one scheduler.
//
// BeginTick and EndTick mutate internal counters and must only be called from
// the scheduler goroutine. Snapshot and HasCompletedFirstTick are safe to call
// from any goroutine.
type Clock struct {
	cfg    ClockConfig
	now    func() time.Time
	period time.Duration

	step        uint64
	started     bool
	startWall   time.Time
	currentWall time.Time
	fps         *fpsCounter
	status      *StatusReporter

	snapshot  atomic.Pointer[Snapshot]
	firstTick atomic.Bool
}

// NewClock validates cfg and creates a clock. Non-positive rates fail with
// ErrInvalidConfiguration.
func NewClock(cfg ClockConfig) (*Clock, error) {
	return newClock(cfg, time.Now, nil)
}

// NewClockWithLogger is NewClock with an explicit destination for status lines.
func NewClockWithLogger(cfg ClockConfig, logger logrus.FieldLogger) (*Clock, error) {
	return newClock(cfg, time.Now, logger)
}

func newClock(cfg ClockConfig, now func() time.Time, logger logrus.FieldLogger) (*Clock, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("creating clock: %w", err)
	}
	cfg = cfg.withDefaults()
	c := &Clock{
		cfg:    cfg,
		now:    now,
		period: cfg.Period(),
		fps:    newFPSCounter(cfg.FPSWindow),
		status: newStatusReporter(cfg.StatusPrefix, cfg.StatusFlushInterval, logger, now),
	}
	c.snapshot.Store(&Snapshot{})
	return c, nil
}

// Config returns the clock configuration with defaults applied.
func (c *Clock) Config() ClockConfig {
	return c.cfg
}

// Period returns the wall-clock length of one tick.
func (c *Clock) Period() time.Duration {
	return c.period
}

// BeginTick records the tick wall time, advances the step counter and feeds
// the fps estimator. The first call also fixes the runtime origin.
func (c *Clock) BeginTick() {
	c.currentWall = c.now()
	if !c.started {
		c.started = true
		c.startWall = c.currentWall
	}
	c.step++
	c.fps.sample(c.currentWall)
}

// EndTick publishes a new snapshot, feeds the status reporter and returns the
// deadline before which the next tick must not start.
func (c *Clock) EndTick() time.Time {
	elapsed := c.now().Sub(c.startWall).Seconds()
	snap := &Snapshot{
		Step:             c.step,
		FPS:              c.fps.get(),
		RuntimeSeconds:   elapsed,
		SimulatedSeconds: elapsed * c.cfg.SimScale(),
	}
	c.snapshot.Store(snap)
	c.firstTick.Store(true)

	c.status.Add("runtime", snap.RuntimeSeconds)
	c.status.Add("simulatedSec", snap.SimulatedSeconds)
	c.status.Add("step", snap.Step)
	c.status.Add("fps", snap.FPS)
	c.status.TryFlush()

	return c.currentWall.Add(c.period)
}

// Snapshot returns the most recently published state. Before the first
// completed tick it returns the zero Snapshot.
func (c *Clock) Snapshot() Snapshot {
	return *c.snapshot.Load()
}

// HasCompletedFirstTick reports whether EndTick has run at least once.
func (c *Clock) HasCompletedFirstTick() bool {
	return c.firstTick.Load()
}
