package trace

import (
	"testing"
)

func TestSimulationTrace_RecordTick_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for ticks
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelTicks})

	// WHEN a tick record is recorded
	st.RecordTick(TickRecord{Step: 1, FPS: 0, Runtime: 0, Simulated: 0})

	// THEN the trace contains one record with correct data
	if len(st.Ticks) != 1 {
		t.Fatalf("expected 1 tick, got %d", len(st.Ticks))
	}
	if st.Ticks[0].Step != 1 {
		t.Errorf("expected step 1, got %d", st.Ticks[0].Step)
	}
}

func TestSimulationTrace_LevelNone_RecordsNothing(t *testing.T) {
	for _, level := range []TraceLevel{TraceLevelNone, ""} {
		st := NewSimulationTrace(TraceConfig{Level: level})
		st.RecordTick(TickRecord{Step: 1})
		if len(st.Ticks) != 0 {
			t.Errorf("level %q: expected no records, got %d", level, len(st.Ticks))
		}
	}

	// a nil trace is a valid disabled trace
	var st *SimulationTrace
	st.RecordTick(TickRecord{Step: 1})
}

func TestSimulationTrace_Every_KeepsMultiples(t *testing.T) {
	// GIVEN a trace sampling every 5th tick
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelTicks, Every: 5})

	// WHEN 12 ticks are recorded
	for step := uint64(1); step <= 12; step++ {
		st.RecordTick(TickRecord{Step: step})
	}

	// THEN steps 5 and 10 are kept, in order
	if len(st.Ticks) != 2 || st.Ticks[0].Step != 5 || st.Ticks[1].Step != 10 {
		t.Errorf("unexpected sampled ticks: %+v", st.Ticks)
	}
}

func TestIsValidTraceLevel_ValidLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"none", true},
		{"ticks", true},
		{"", true}, // empty defaults to none
		{"decisions", false},
		{"foobar", false},
		{"NONE", false}, // case-sensitive
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := IsValidTraceLevel(tt.level); got != tt.valid {
				t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.valid)
			}
		})
	}
}
