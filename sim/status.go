// Implements the throttled status reporter used by the clock.
// Values are merged every tick and emitted as one log line at most once per interval.

package sim

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// StatusReporter accumulates named values and flushes them as a single log
// line when at least Interval has passed since the previous flush. Later values
// for a key overwrite earlier ones inside the same window, so a flush always
// carries the most recent value of every field.
//
// Thread-safety: NOT thread-safe. Owned by the scheduler goroutine.
type StatusReporter struct {
	Prefix   string
	Interval time.Duration

	logger    logrus.FieldLogger
	now       func() time.Time
	lastFlush time.Time
	keys      []string // first-insertion order
	values    map[string]any
}

// NewStatusReporter creates a reporter that logs through logger.
// A nil logger falls back to the logrus standard logger.
func NewStatusReporter(prefix string, interval time.Duration, logger logrus.FieldLogger) *StatusReporter {
	return newStatusReporter(prefix, interval, logger, time.Now)
}

func newStatusReporter(prefix string, interval time.Duration, logger logrus.FieldLogger, now func() time.Time) *StatusReporter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &StatusReporter{
		Prefix:    prefix,
		Interval:  interval,
		logger:    logger,
		now:       now,
		lastFlush: now(),
		values:    make(map[string]any),
	}
}

// Add merges key into the accumulator.
func (r *StatusReporter) Add(key string, value any) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Pending returns the number of accumulated keys.
func (r *StatusReporter) Pending() int {
	return len(r.keys)
}

// TryFlush emits the accumulated values if the interval has elapsed.
// It returns the emitted line and true on flush, or "" and false otherwise.
func (r *StatusReporter) TryFlush() (string, bool) {
	now := r.now()
	if now.Sub(r.lastFlush) < r.Interval {
		return "", false
	}
	line := r.format()
	r.logger.Info(line)
	r.lastFlush = now
	r.keys = r.keys[:0]
	clear(r.values)
	return line, true
}

func (r *StatusReporter) format() string {
	var sb strings.Builder
	sb.WriteString(r.Prefix)
	for _, k := range r.keys {
		fmt.Fprintf(&sb, " -%s: %v", k, r.values[k])
	}
	return sb.String()
}
