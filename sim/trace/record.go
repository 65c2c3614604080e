// Package trace records per-tick clock readings for post-run analysis.
// It has no dependencies on sim/ and stores pure data types.
package trace

// TickRecord captures the clock reading published at the end of one tick.
type TickRecord struct {
	Step      uint64  `json:"step" db:"step"`
	FPS       float64 `json:"fps" db:"fps"`
	Runtime   float64 `json:"runtime" db:"runtime"`     // wall-clock seconds since the first tick
	Simulated float64 `json:"simulated" db:"simulated"` // runtime scaled by simSpeed / ticksPerSecond
}
