package sim

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// WaitStrategy selects how the scheduler blocks until the next tick deadline.
type WaitStrategy string

const (
	// WaitSleep blocks on a timer for the remaining time. Cheap, but subject to
	// OS timer granularity.
	WaitSleep WaitStrategy = "sleep"
	// WaitSpin busy-polls the clock until the deadline. Uses a full core while
	// waiting in exchange for sub-millisecond jitter.
	WaitSpin WaitStrategy = "spin"
)

// ParseWaitStrategy maps a case-insensitive name to a WaitStrategy.
// "loop" is accepted as an alias for spin.
func ParseWaitStrategy(name string) (WaitStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sleep":
		return WaitSleep, nil
	case "spin", "loop":
		return WaitSpin, nil
	default:
		return "", fmt.Errorf("%w: unknown wait strategy %q; valid: sleep, spin", ErrInvalidConfiguration, name)
	}
}

// TickHook is the external per-tick update. A returned error halts the schedule.
type TickHook func(ctx context.Context, step uint64) error

// Scheduler repeatedly drives a Clock at its configured rate:
// BeginTick, hook, EndTick, observers, then wait for the deadline.
// Ticks never overlap and late ticks are neither compensated nor skipped.
type Scheduler struct {
	clock    *Clock
	strategy WaitStrategy
	hook     TickHook
	sleep    func(ctx context.Context, d time.Duration)

	mu        sync.Mutex
	stopCh    chan struct{} // closed by Stop, replaced when a run ends
	stopped   bool
	observers []func(Snapshot)
	err       error

	running     atomic.Bool
	tickStarted atomic.Int64 // unix nanos of the in-flight tick, 0 when idle
	firstOnce   sync.Once
	firstCh     chan struct{}
}

// NewScheduler creates a scheduler for clock. A nil hook performs no update.
func NewScheduler(clock *Clock, strategy WaitStrategy, hook TickHook) (*Scheduler, error) {
	if clock == nil {
		return nil, fmt.Errorf("%w: nil clock", ErrInvalidConfiguration)
	}
	if strategy != WaitSleep && strategy != WaitSpin {
		return nil, fmt.Errorf("%w: unknown wait strategy %q", ErrInvalidConfiguration, strategy)
	}
	if hook == nil {
		hook = func(context.Context, uint64) error { return nil }
	}
	return &Scheduler{
		clock:    clock,
		strategy: strategy,
		hook:     hook,
		sleep:    sleepContext,
		stopCh:   make(chan struct{}),
		firstCh:  make(chan struct{}),
	}, nil
}

// Clock returns the driven clock.
func (s *Scheduler) Clock() *Clock {
	return s.clock
}

// Strategy returns the configured wait strategy.
func (s *Scheduler) Strategy() WaitStrategy {
	return s.strategy
}

// Observe registers fn to receive every published snapshot. Observers run on
// the scheduler goroutine before the wait, so they must be quick.
func (s *Scheduler) Observe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Run ticks until Stop is called or ctx is cancelled, which both take effect
// at the next tick boundary. It returns an error wrapping ErrHookFailed when
// the hook fails. Run may be called again after it returns; the step count
// continues.
func (s *Scheduler) Run(ctx context.Context) error {
	return s.run(ctx, 0)
}

// RunTicks runs exactly n ticks unless stopped earlier. n must be > 0.
func (s *Scheduler) RunTicks(ctx context.Context, n uint64) error {
	if n == 0 {
		return fmt.Errorf("%w: tick count must be positive", ErrInvalidConfiguration)
	}
	return s.run(ctx, n)
}

// Stop requests the loop to return at the next tick boundary. The request is
// latched: a Stop issued before Run, or while Run is starting, ends that run
// before its first tick. The latch clears when the stopped run returns, so a
// later Run starts fresh.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.stopCh)
	}
}

// FirstTickDone reports whether at least one tick has completed.
func (s *Scheduler) FirstTickDone() bool {
	return s.clock.HasCompletedFirstTick()
}

// WaitFirstTick blocks until the first tick completed or ctx is done.
func (s *Scheduler) WaitFirstTick(ctx context.Context) error {
	select {
	case <-s.firstCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the error that halted the most recent run, if any.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Stalled reports whether the in-flight tick has been running for longer than
// threshold. No timeout is enforced on the hook; this lets a driver notice a
// hanging update.
func (s *Scheduler) Stalled(threshold time.Duration) bool {
	started := s.tickStarted.Load()
	if started == 0 {
		return false
	}
	return s.clock.now().UnixNano()-started > int64(threshold)
}

func (s *Scheduler) run(ctx context.Context, limit uint64) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	stopCh := s.stopCh
	s.err = nil
	observers := append([]func(Snapshot){}, s.observers...)
	s.mu.Unlock()
	defer s.clearStop()

	// a Stop interrupts a pending wait as well as the loop check
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	logrus.Infof("Starting tick scheduler: %.2f ticks/s, strategy=%s", s.clock.cfg.TicksPerSecond, s.strategy)

	var done uint64
	for limit == 0 || done < limit {
		if stopRequested(stopCh) || ctx.Err() != nil {
			logrus.Infof("Tick scheduler stopped at step %d", s.clock.step)
			return nil
		}

		s.tickStarted.Store(s.clock.now().UnixNano())
		s.clock.BeginTick()
		step := s.clock.step
		if err := s.hook(ctx, step); err != nil {
			s.tickStarted.Store(0)
			err = fmt.Errorf("%w at step %d: %w", ErrHookFailed, step, err)
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			logrus.Errorf("Tick scheduler halted: %v", err)
			return err
		}
		deadline := s.clock.EndTick()
		s.tickStarted.Store(0)
		s.firstOnce.Do(func() { close(s.firstCh) })

		if len(observers) > 0 {
			snap := s.clock.Snapshot()
			for _, fn := range observers {
				fn(snap)
			}
		}

		done++
		s.wait(ctx, deadline)
	}
	return nil
}

// clearStop re-arms Stop after a run that consumed it.
func (s *Scheduler) clearStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		s.stopped = false
		s.stopCh = make(chan struct{})
	}
}

func stopRequested(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (s *Scheduler) wait(ctx context.Context, deadline time.Time) {
	switch s.strategy {
	case WaitSleep:
		// Only block while the deadline is still ahead; a late tick starts
		// the next one immediately.
		remaining := deadline.Sub(s.clock.now())
		if remaining <= 0 {
			return
		}
		s.sleep(ctx, remaining)
	case WaitSpin:
		for s.clock.now().Before(deadline) {
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
