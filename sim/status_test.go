package sim

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusReporter_TryFlush_BeforeInterval_KeepsValues(t *testing.T) {
	ft := newFakeTime(0)
	logger, hook := test.NewNullLogger()
	r := newStatusReporter("env", 900*time.Millisecond, logger, ft.Now)

	r.Add("step", 1)
	ft.Advance(899 * time.Millisecond)
	line, ok := r.TryFlush()

	assert.False(t, ok)
	assert.Empty(t, line)
	assert.Equal(t, 1, r.Pending())
	assert.Empty(t, hook.AllEntries())
}

func TestStatusReporter_TryFlush_EmitsFormattedLineAndClears(t *testing.T) {
	// GIVEN accumulated values in the documented order
	ft := newFakeTime(0)
	logger, hook := test.NewNullLogger()
	r := newStatusReporter("Global Environment", 900*time.Millisecond, logger, ft.Now)
	r.Add("runtime", 1.5)
	r.Add("simulatedSec", 3.0)
	r.Add("step", uint64(7))
	r.Add("fps", 60.25)

	// WHEN the interval has elapsed
	ft.Advance(900 * time.Millisecond)
	line, ok := r.TryFlush()

	// THEN exactly one line with every key is logged
	require.True(t, ok)
	assert.Equal(t, "Global Environment -runtime: 1.5 -simulatedSec: 3 -step: 7 -fps: 60.25", line)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, line, hook.LastEntry().Message)
	// AND the accumulator is empty afterwards
	assert.Equal(t, 0, r.Pending())
}

func TestStatusReporter_Add_LaterValueOverwritesKeepsOrder(t *testing.T) {
	ft := newFakeTime(0)
	logger, _ := test.NewNullLogger()
	r := newStatusReporter("p", time.Second, logger, ft.Now)

	r.Add("step", 1)
	r.Add("fps", 0.0)
	r.Add("step", 2)
	r.Add("step", 3)

	ft.Advance(time.Second)
	line, ok := r.TryFlush()
	require.True(t, ok)
	assert.Equal(t, "p -step: 3 -fps: 0", line)
}

func TestStatusReporter_IntervalRestartsAtFlush(t *testing.T) {
	ft := newFakeTime(0)
	logger, hook := test.NewNullLogger()
	r := newStatusReporter("p", time.Second, logger, ft.Now)

	ft.Advance(1500 * time.Millisecond)
	r.Add("a", 1)
	_, ok := r.TryFlush()
	require.True(t, ok)

	// 600ms after the flush is not enough even though 2.1s passed since construction
	ft.Advance(600 * time.Millisecond)
	r.Add("a", 2)
	_, ok = r.TryFlush()
	assert.False(t, ok)

	ft.Advance(400 * time.Millisecond)
	_, ok = r.TryFlush()
	assert.True(t, ok)
	assert.Len(t, hook.AllEntries(), 2)
}

func TestNewStatusReporter_NilLogger_UsesStandardLogger(t *testing.T) {
	r := NewStatusReporter("p", time.Hour, nil)
	assert.NotNil(t, r.logger)
	_, ok := r.TryFlush()
	assert.False(t, ok)
}
