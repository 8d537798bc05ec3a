package systems

import (
	"testing"
	"time"
)

type fakeClock struct{ now time.Duration }

func (c *fakeClock) Now() time.Duration { return c.now }

// TestNoiseLifetime verifies an event is visible until its duration elapses.
func TestNoiseLifetime(t *testing.T) {
	clock := &fakeClock{}
	bus := NewNoiseBus(clock.Now)
	bus.Emit(NoiseEvent{X: 100, Y: 100, Radius: 50, Kind: NoiseGunshot, Duration: time.Second})

	if len(bus.QueryInZLevel(0)) != 1 {
		t.Fatal("event should be present at t=0")
	}

	clock.now = time.Second
	bus.Tick()
	if len(bus.QueryInZLevel(0)) != 1 {
		t.Error("event should be present exactly at its duration")
	}

	clock.now = time.Second + time.Millisecond
	if len(bus.QueryInZLevel(0)) != 0 {
		t.Error("expired event must not be returned even before Tick")
	}
	bus.Tick()
	if bus.Len() != 0 {
		t.Errorf("Tick should prune expired events, %d remain", bus.Len())
	}
}

// TestNoiseWithinOverTime checks a 60-unit proximity query against a
// 1000ms event at its midpoint and after expiry.
func TestNoiseWithinOverTime(t *testing.T) {
	clock := &fakeClock{}
	bus := NewNoiseBus(clock.Now)
	bus.Emit(NoiseEvent{X: 100, Y: 100, Radius: 50, Kind: NoiseScream, Duration: 1000 * time.Millisecond})

	clock.now = 500 * time.Millisecond
	bus.Tick()
	if len(bus.Within(130, 140, 0, 60)) != 1 {
		t.Error("expected noise within 60 units at t=500ms")
	}

	clock.now = 1500 * time.Millisecond
	bus.Tick()
	if len(bus.Within(130, 140, 0, 60)) != 0 {
		t.Error("expected no noise at t=1500ms")
	}
}

// TestNoiseZLevelFilter verifies queries never return events from another z-level.
func TestNoiseZLevelFilter(t *testing.T) {
	clock := &fakeClock{}
	bus := NewNoiseBus(clock.Now)
	for _, radius := range []float32{1, 50, 10000} {
		bus.Emit(NoiseEvent{Z: 0, Radius: radius, Duration: time.Second})
		bus.Emit(NoiseEvent{Z: 1, Radius: radius, Duration: time.Second})
	}

	for z := 0; z < 3; z++ {
		for _, e := range bus.QueryInZLevel(z) {
			if e.Z != z {
				t.Errorf("QueryInZLevel(%d) returned event on z=%d", z, e.Z)
			}
		}
		for _, e := range bus.Within(0, 0, z, 1e6) {
			if e.Z != z {
				t.Errorf("Within(z=%d) returned event on z=%d", z, e.Z)
			}
		}
	}
	if got := len(bus.QueryInZLevel(2)); got != 0 {
		t.Errorf("expected no events on z=2, got %d", got)
	}
}

// TestNoiseAudible verifies the radius test used by listeners.
func TestNoiseAudible(t *testing.T) {
	e := NoiseEvent{X: 0, Y: 0, Z: 0, Radius: 10}
	tests := []struct {
		name string
		x, y float32
		z    int
		want bool
	}{
		{"inside", 3, 4, 0, true},
		{"on edge", 10, 0, 0, true},
		{"outside", 11, 0, 0, false},
		{"other floor", 0, 0, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Audible(tt.x, tt.y, tt.z); got != tt.want {
				t.Errorf("Audible = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestNoiseKindSuspicious verifies which kinds prompt investigation.
func TestNoiseKindSuspicious(t *testing.T) {
	suspicious := map[NoiseKind]bool{NoiseBreak: true, NoiseLockpick: true, NoiseScream: true, NoiseGunshot: true}
	for k := NoiseKind(0); k < NumNoiseKinds; k++ {
		if k.Suspicious() != suspicious[k] {
			t.Errorf("%s.Suspicious() = %v", k, k.Suspicious())
		}
	}
}
