package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/envsim/envsim/sim"
	"github.com/envsim/envsim/sim/agents"
	"github.com/envsim/envsim/sim/observe"
	"github.com/envsim/envsim/sim/store"
	"github.com/envsim/envsim/sim/surface"
	"github.com/envsim/envsim/sim/trace"
)

// environment wires one run: clock, scheduler, spatial index and the optional
// agent driver, observer endpoint, trace and recorder.
type environment struct {
	cfg      Config
	strategy sim.WaitStrategy
	clock    *sim.Clock
	sched    *sim.Scheduler
	index    surface.Index[string]
	tiled    *surface.TiledSurface[string] // nil for the flat index
	trace    *trace.SimulationTrace
	driver   *agents.Driver
	hub      *observe.Hub

	reportEvery time.Duration
	started     time.Time
	observeAddr string
	finalAgents []surface.Neighbor[string]
}

func newEnvironment(cfg Config) (*environment, error) {
	strategy, err := sim.ParseWaitStrategy(cfg.Clock.WaitStrategy)
	if err != nil {
		return nil, err
	}
	clock, err := sim.NewClockWithLogger(cfg.clockConfig(), logrus.WithField("component", "clock"))
	if err != nil {
		return nil, err
	}
	sched, err := sim.NewScheduler(clock, strategy, nil)
	if err != nil {
		return nil, err
	}
	e := &environment{
		cfg:         cfg,
		strategy:    strategy,
		clock:       clock,
		sched:       sched,
		reportEvery: time.Second,
		trace: trace.NewSimulationTrace(trace.TraceConfig{
			Level: trace.TraceLevel(cfg.Record.TraceLevel),
			Every: cfg.Record.TraceEvery,
		}),
	}

	if strings.EqualFold(cfg.Surface.Kind, "flat") {
		e.index = surface.NewSurface[string]()
	} else {
		tiled, err := surface.NewTiledSurface[string](cfg.tiledConfig())
		if err != nil {
			return nil, err
		}
		e.index, e.tiled = tiled, tiled
	}

	if cfg.Agents.Enabled {
		if e.driver, err = agents.NewDriver(cfg.Agents.Config, e.index); err != nil {
			return nil, err
		}
	}
	if cfg.Observe.Addr != "" {
		e.hub = observe.NewHub()
	}

	sched.Observe(func(s sim.Snapshot) {
		e.trace.RecordTick(trace.TickRecord{
			Step:      s.Step,
			FPS:       s.FPS,
			Runtime:   s.RuntimeSeconds,
			Simulated: s.SimulatedSeconds,
		})
	})
	return e, nil
}

// frame builds the observer view of the environment.
func (e *environment) frame() observe.Frame {
	f := observe.NewFrame(e.clock.Snapshot(), e.index.Agents())
	if e.tiled != nil && e.cfg.Observe.Tiles {
		f.Tiles = e.tiled.Tiles()
	}
	return f
}

// serveAgents lists agents ordered by id, optionally filtered by ?kind=.
func (e *environment) serveAgents(w http.ResponseWriter, r *http.Request) {
	all := e.index.Agents()
	if name := r.URL.Query().Get("kind"); name != "" {
		kind, err := surface.ParseKind(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		kept := all[:0]
		for _, a := range all {
			if a.Kind == kind {
				kept = append(kept, a)
			}
		}
		all = kept
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(observe.NewFrame(e.clock.Snapshot(), all).Agents)
}

// serveObservers starts the observer HTTP endpoint and returns a shutdown func.
func (e *environment) serveObservers(ctx context.Context, wg *sync.WaitGroup) (func(), error) {
	ln, err := net.Listen("tcp", e.cfg.Observe.Addr)
	if err != nil {
		return nil, fmt.Errorf("observer listen: %w", err)
	}
	e.observeAddr = ln.Addr().String()

	mux := http.NewServeMux()
	mux.Handle("/ws", e.hub)
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(e.clock.Snapshot())
	})
	mux.HandleFunc("/agents", e.serveAgents)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	wg.Add(3)
	go func() {
		defer wg.Done()
		e.hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		e.hub.Poll(ctx, e.cfg.Observe.Interval, e.frame)
	}()
	go func() {
		defer wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("Observer server failed: %v", err)
		}
	}()
	logrus.Infof("Observers can connect to ws://%s/ws", e.observeAddr)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}, nil
}

// run drives the environment until ctx is done or the schedule halts, then
// writes the requested records. Status lines go to out once per reportEvery.
func (e *environment) run(ctx context.Context, out io.Writer) error {
	e.started = time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	shutdown := func() {}
	if e.hub != nil {
		var err error
		if shutdown, err = e.serveObservers(ctx, &wg); err != nil {
			return err
		}
	}

	schedDone := make(chan error, 1)
	go func() { schedDone <- e.sched.Run(ctx) }()

	var driverDone chan error
	if e.driver != nil {
		driverDone = make(chan error, 1)
		go func() { driverDone <- e.driver.Run(ctx, e.sched) }()
	}

	var schedErr, driverErr error
	schedFinished := false
	ticker := time.NewTicker(e.reportEvery)
	stalled := false
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case schedErr = <-schedDone:
			schedFinished = true
			break loop
		case driverErr = <-driverDone:
			driverDone = nil
			if driverErr != nil {
				logrus.Errorf("Agent driver stopped: %v", driverErr)
				break loop
			}
		case <-ticker.C:
			s := e.clock.Snapshot()
			fmt.Fprintf(out, "runtime: %.3f, simulated: %.3f, fps: %.2f, step: %d\n",
				s.RuntimeSeconds, s.SimulatedSeconds, s.FPS, s.Step)
			if threshold := e.cfg.Clock.StallThreshold; threshold > 0 {
				if now := e.sched.Stalled(threshold); now != stalled {
					stalled = now
					if stalled {
						logrus.Warnf("Tick %d has been running for more than %v", s.Step+1, threshold)
					}
				}
			}
		}
	}
	ticker.Stop()
	// the driver removes its agents on exit, so take the final layout first
	e.finalAgents = e.index.Agents()
	cancel()

	if !schedFinished {
		schedErr = <-schedDone
	}
	if driverDone != nil {
		driverErr = <-driverDone
	}
	shutdown()
	wg.Wait()

	if err := e.finish(out); err != nil {
		return err
	}
	return errors.Join(schedErr, driverErr)
}

// finish prints the run summary and writes the trace file and run record.
func (e *environment) finish(out io.Writer) error {
	summary := trace.Summarize(e.trace)
	s := e.clock.Snapshot()
	fmt.Fprintf(out, "=== Environment Summary ===\nsteps: %d\nruntime: %.3f\nsimulated: %.3f\n",
		s.Step, s.RuntimeSeconds, s.SimulatedSeconds)
	if e.trace.Enabled() {
		fmt.Fprintf(out, "traced ticks: %d\nmean fps: %.2f\nmax fps: %.2f\nmean tick interval: %.4f (stddev %.4f)\n",
			summary.TotalTicks, summary.MeanFPS, summary.MaxFPS, summary.MeanTickInterval, summary.TickIntervalStdDev)
	}
	if e.driver != nil {
		st := e.driver.Stats()
		fmt.Fprintf(out, "agent moves: %d\nagent queries: %d\nneighbours seen: %d\n", st.Moves, st.Queries, st.Neighbors)
	}

	if path := e.cfg.Record.TraceFile; path != "" {
		if err := trace.ExportFile(path, e.trace); err != nil {
			return fmt.Errorf("exporting trace: %w", err)
		}
		logrus.Infof("Wrote %d tick records to %s", len(e.trace.Ticks), path)
	}

	if path := e.cfg.Record.Database; path != "" {
		db, err := store.Open(path)
		if err != nil {
			return fmt.Errorf("opening run database: %w", err)
		}
		defer db.Close()

		run := store.RunRecord{
			StartedUnixMs:  e.started.UnixMilli(),
			TicksPerSecond: e.cfg.Clock.TicksPerSecond,
			SimSpeed:       e.cfg.Clock.SimSpeed,
			Strategy:       string(e.strategy),
			Index:          strings.ToLower(e.cfg.Surface.Kind),
		}
		run.ApplySummary(summary)
		if run.TotalTicks == 0 {
			// untraced runs still record where the clock stopped
			run.FinalStep = int64(s.Step)
			run.FinalRuntime = s.RuntimeSeconds
			run.FinalSimulated = s.SimulatedSeconds
		}
		var rows []store.AgentRow
		for _, a := range e.finalAgents {
			rows = append(rows, store.AgentRow{AgentID: a.ID, Kind: a.Kind.String(), X: a.Position.X, Y: a.Position.Y})
		}
		id, err := db.SaveRun(run, e.trace.Ticks, rows)
		if err != nil {
			return fmt.Errorf("recording run: %w", err)
		}
		fmt.Fprintf(out, "recorded run: %d\n", id)
	}
	return nil
}
