package sim

import "time"

// fpsCounter estimates the tick rate over fixed wall-clock windows.
//
// The rate is recomputed only once a whole window has passed; between
// recomputations get returns the previous value unchanged. Readers see a
// stale but stable number for most of each window.
type fpsCounter struct {
	window      time.Duration
	windowStart time.Time
	frames      int64
	lastFPS     float64
	started     bool
}

func newFPSCounter(window time.Duration) *fpsCounter {
	return &fpsCounter{window: window}
}

// sample records one tick observed at now.
func (f *fpsCounter) sample(now time.Time) {
	if !f.started {
		// the first tick only opens the window
		f.started = true
		f.windowStart = now
		return
	}
	f.frames++
	elapsed := now.Sub(f.windowStart)
	if elapsed > f.window {
		f.lastFPS = float64(f.frames) / elapsed.Seconds()
		f.frames = 0
		f.windowStart = now
	}
}

func (f *fpsCounter) get() float64 {
	return f.lastFPS
}
