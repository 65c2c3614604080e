package trace

import "gonum.org/v1/gonum/stat"

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalTicks     int
	FinalStep      uint64
	FinalRuntime   float64
	FinalSimulated float64
	MeanFPS        float64
	MaxFPS         float64
	FPSWindows     int // distinct FPS readings; the estimator only changes once per window

	// Wall-clock spacing between consecutive recorded ticks, in seconds.
	MeanTickInterval   float64
	TickIntervalStdDev float64
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{}
	if st == nil || len(st.Ticks) == 0 {
		return summary
	}

	summary.TotalTicks = len(st.Ticks)
	last := st.Ticks[len(st.Ticks)-1]
	summary.FinalStep = last.Step
	summary.FinalRuntime = last.Runtime
	summary.FinalSimulated = last.Simulated

	// A reading repeats until the next window closes, so count each change once.
	var readings []float64
	prev := 0.0
	for _, t := range st.Ticks {
		if t.FPS == 0 || t.FPS == prev {
			continue
		}
		prev = t.FPS
		readings = append(readings, t.FPS)
		if t.FPS > summary.MaxFPS {
			summary.MaxFPS = t.FPS
		}
	}
	summary.FPSWindows = len(readings)
	if len(readings) > 0 {
		summary.MeanFPS = stat.Mean(readings, nil)
	}

	intervals := make([]float64, 0, len(st.Ticks))
	for i := 1; i < len(st.Ticks); i++ {
		intervals = append(intervals, st.Ticks[i].Runtime-st.Ticks[i-1].Runtime)
	}
	switch len(intervals) {
	case 0:
	case 1:
		summary.MeanTickInterval = intervals[0]
	default:
		summary.MeanTickInterval, summary.TickIntervalStdDev = stat.MeanStdDev(intervals, nil)
	}

	return summary
}
