// Package sim provides the fixed-rate simulation clock that drives envsim.
//
// # Reading Guide
//
//   - clock.go: wall-clock and simulated-time bookkeeping, published snapshots
//   - scheduler.go: the tick loop and its two wait strategies (sleep, spin)
//   - fps.go, status.go: windowed tick-rate estimate and the throttled status line
//   - errors.go: error taxonomy shared with the sub-packages
//
// # Time bases
//
// Runtime is wall-clock seconds since the first tick began. Simulated time
// advances at SimSpeed/TicksPerSecond times the wall-clock rate:
//
//	simulated = runtime * (SimSpeed / TicksPerSecond)
//
// # Architecture
//
// Sub-packages build on the clock:
//   - sim/surface/: spatial indices (flat and tile-partitioned) over agent positions
//   - sim/agents/: a reference driver that moves agents and queries neighbours
//   - sim/trace/: per-tick snapshot recording and summaries
//   - sim/observe/: WebSocket streaming of snapshots to observers
//   - sim/store/: SQLite recording of finished runs
//
// The clock's counters are owned by the scheduler goroutine. Other goroutines
// read immutable Snapshot values, which are swapped in atomically.
package sim
