package telemetry

import (
	"math"
	"testing"
	"time"

	"github.com/pthm-cable/duskfall/components"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestMeanStd(t *testing.T) {
	mean, std := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(mean-5) > 1e-9 {
		t.Errorf("mean = %v, want 5", mean)
	}
	if math.Abs(std-2) > 1e-9 {
		t.Errorf("std = %v, want 2", std)
	}

	if m, s := MeanStd(nil); m != 0 || s != 0 {
		t.Error("empty slice should return zeros")
	}
	if m, s := MeanStd([]float64{3}); m != 3 || s != 0 {
		t.Errorf("single value = (%v, %v), want (3, 0)", m, s)
	}
}

// TestCollectorFlush verifies window counters, path stats, and reset.
func TestCollectorFlush(t *testing.T) {
	c := NewCollector(1.0, 0.125)
	if c.WindowDurationTicks() != 8 {
		t.Fatalf("WindowDurationTicks = %d, want 8", c.WindowDurationTicks())
	}

	c.Record(Event{Type: EventKill})
	c.Record(Event{Type: EventKill})
	c.Record(Event{Type: EventPathFound})
	c.Record(Event{Type: EventPathFound})
	c.Record(Event{Type: EventPathFound})
	c.Record(Event{Type: EventPathFailed})
	c.RecordSearch(4, 10, 100*time.Microsecond, false)
	c.RecordSearch(8, 20, 300*time.Microsecond, false)
	c.RecordSearch(0, 99, 200*time.Microsecond, true)
	c.RecordStaleDropped(2)

	if c.ShouldFlush(7) {
		t.Error("should not flush before the window ends")
	}
	if !c.ShouldFlush(8) {
		t.Error("should flush at the window end")
	}

	var census Census
	census.Phase = components.PhaseNight
	census.Alive[components.RoleMafia] = 2
	stats := c.Flush(8, census)

	if stats.Kills != 2 {
		t.Errorf("Kills = %d, want 2", stats.Kills)
	}
	if stats.PathFailRate != 0.25 {
		t.Errorf("PathFailRate = %v, want 0.25", stats.PathFailRate)
	}
	if stats.PathLenMean != 6 {
		t.Errorf("PathLenMean = %v, want 6", stats.PathLenMean)
	}
	if stats.SearchLatencyUS != 200 {
		t.Errorf("SearchLatencyUS = %v, want 200", stats.SearchLatencyUS)
	}
	if stats.StaleDropped != 2 {
		t.Errorf("StaleDropped = %d, want 2", stats.StaleDropped)
	}
	if stats.Phase != "NIGHT" || stats.Mafia != 2 {
		t.Errorf("census not copied: phase=%s mafia=%d", stats.Phase, stats.Mafia)
	}

	next := c.Flush(16, Census{})
	if next.Kills != 0 || next.PathsFound != 0 || next.PathLenMean != 0 {
		t.Error("counters should reset after flush")
	}
	if next.WindowStartTick != 8 {
		t.Errorf("WindowStartTick = %d, want 8", next.WindowStartTick)
	}
}

func TestEventTypeString(t *testing.T) {
	if EventDoorBreak.String() != "door_break" {
		t.Errorf("EventDoorBreak = %q", EventDoorBreak.String())
	}
	if EventType(200).String() != "unknown" {
		t.Error("out of range type should be unknown")
	}
}
