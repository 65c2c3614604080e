package sim

import (
	"context"
	"sync"
	"time"
)

// fakeTime is a manually driven time source. Every Now call additionally
// advances the clock by autoStep, which lets spin waits terminate.
type fakeTime struct {
	mu       sync.Mutex
	t        time.Time
	autoStep time.Duration
	sleeps   []time.Duration
}

func newFakeTime(autoStep time.Duration) *fakeTime {
	return &fakeTime{t: time.Unix(1_700_000_000, 0), autoStep: autoStep}
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.t
	f.t = f.t.Add(f.autoStep)
	return now
}

func (f *fakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func (f *fakeTime) Sleep(_ context.Context, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	f.t = f.t.Add(d)
}

func (f *fakeTime) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}
