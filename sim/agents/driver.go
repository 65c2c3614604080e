package agents

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/envsim/envsim/sim"
	"github.com/envsim/envsim/sim/surface"
)

// Config sizes the agent population and its behaviour.
type Config struct {
	Mobile       int           `yaml:"mobile"`        // number of wandering agents
	Static       int           `yaml:"static"`        // number of fixed landmarks
	Interval     time.Duration `yaml:"interval"`      // pause between an agent's moves
	StepLength   float64       `yaml:"step_length"`   // max displacement per move on each axis
	SearchRadius float64       `yaml:"search_radius"` // neighbour query radius after each move
	Extent       float64       `yaml:"extent"`        // initial placements fall inside [0, Extent)²
	Seed         int64         `yaml:"seed"`
}

// DefaultConfig returns a small population suited to a demo run.
func DefaultConfig() Config {
	return Config{
		Mobile:       8,
		Static:       4,
		Interval:     100 * time.Millisecond,
		StepLength:   2,
		SearchRadius: 10,
		Extent:       100,
		Seed:         42,
	}
}

func (c Config) Validate() error {
	if c.Mobile < 0 || c.Static < 0 {
		return fmt.Errorf("%w: agent counts must be non-negative, got mobile=%d static=%d",
			sim.ErrInvalidConfiguration, c.Mobile, c.Static)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: agent interval must be positive, got %v", sim.ErrInvalidConfiguration, c.Interval)
	}
	for name, v := range map[string]float64{
		"step_length":   c.StepLength,
		"search_radius": c.SearchRadius,
		"extent":        c.Extent,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s must be a finite non-negative number, got %f", sim.ErrInvalidConfiguration, name, v)
		}
	}
	return nil
}

// Stats counts what the driver's agents did.
type Stats struct {
	Moves     uint64 `json:"moves"`
	Queries   uint64 `json:"queries"`
	Neighbors uint64 `json:"neighbors"` // neighbours seen across all queries, self excluded
}

// TickSource gates the driver on the environment clock.
type TickSource interface {
	WaitFirstTick(ctx context.Context) error
}

// Driver runs one goroutine per mobile agent against a shared index.
type Driver struct {
	cfg    Config
	index  surface.Index[string]
	wander *Wanderer

	moves     atomic.Uint64
	queries   atomic.Uint64
	neighbors atomic.Uint64
}

// NewDriver creates a driver for the given index.
func NewDriver(cfg Config, index surface.Index[string]) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("creating agent driver: %w", err)
	}
	return &Driver{
		cfg:    cfg,
		index:  index,
		wander: NewWanderer(cfg.Seed, cfg.StepLength),
	}, nil
}

func MobileID(i int) string { return fmt.Sprintf("mobile-%d", i) }
func StaticID(i int) string { return fmt.Sprintf("static-%d", i) }

// Run waits for the first tick, registers the population and moves every
// mobile agent until ctx is done or an index operation fails. Registered
// agents are removed before Run returns. The first index error is returned;
// cancellation is not an error.
func (d *Driver) Run(ctx context.Context, ticks TickSource) error {
	if err := ticks.WaitFirstTick(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	var registered []string
	defer func() {
		for _, id := range registered {
			d.index.Remove(id)
		}
		logrus.Infof("Agent driver removed %d agents", len(registered))
	}()

	for i := 0; i < d.cfg.Static; i++ {
		id := StaticID(i)
		if _, err := d.index.Register(id, surface.Static, d.wander.Placement(d.cfg.Mobile+i, d.cfg.Extent), nil); err != nil {
			return fmt.Errorf("agent driver: %w", err)
		}
		registered = append(registered, id)
	}
	for i := 0; i < d.cfg.Mobile; i++ {
		id := MobileID(i)
		if _, err := d.index.Register(id, surface.Mobile, d.wander.Placement(i, d.cfg.Extent), nil); err != nil {
			return fmt.Errorf("agent driver: %w", err)
		}
		registered = append(registered, id)
	}
	logrus.Infof("Agent driver registered %d mobile and %d static agents", d.cfg.Mobile, d.cfg.Static)

	if d.cfg.Mobile == 0 {
		// landmarks stay registered until the run ends
		<-ctx.Done()
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for i := 0; i < d.cfg.Mobile; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := d.wanderLoop(ctx, i); err != nil {
				errOnce.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(i)
	}
	wg.Wait()
	return firstErr
}

func (d *Driver) wanderLoop(ctx context.Context, i int) error {
	id := MobileID(i)
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for t := uint64(0); ; t++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		pos, err := d.index.Move(id, d.wander.Step(i, t))
		if err != nil {
			return fmt.Errorf("agent %s: %w", id, err)
		}
		d.moves.Add(1)

		found, err := d.index.FindWithinRadius(pos, d.cfg.SearchRadius, surface.Both)
		if err != nil {
			return fmt.Errorf("agent %s: %w", id, err)
		}
		d.queries.Add(1)
		for _, n := range found {
			if n.ID != id {
				d.neighbors.Add(1)
			}
		}
	}
}

// Stats returns the counters accumulated so far.
func (d *Driver) Stats() Stats {
	return Stats{
		Moves:     d.moves.Load(),
		Queries:   d.queries.Load(),
		Neighbors: d.neighbors.Load(),
	}
}
