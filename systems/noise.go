package systems

import (
	"time"

	"github.com/pthm-cable/duskfall/components"
)

// NoiseKind tags what produced a noise.
type NoiseKind uint8

const (
	NoiseFootstep NoiseKind = iota
	NoiseDoor
	NoiseBreak
	NoiseLockpick
	NoiseScream
	NoiseGunshot
	NoiseSiren
	NoiseWork
	NumNoiseKinds
)

var noiseKindNames = [NumNoiseKinds]string{
	"footstep", "door", "break", "lockpick", "scream", "gunshot", "siren", "work",
}

// String returns the kind's name.
func (k NoiseKind) String() string {
	if k < NumNoiseKinds {
		return noiseKindNames[k]
	}
	return "unknown"
}

// Suspicious reports whether hearing this kind warrants investigation.
func (k NoiseKind) Suspicious() bool {
	switch k {
	case NoiseBreak, NoiseLockpick, NoiseScream, NoiseGunshot:
		return true
	}
	return false
}

// NoiseEvent is a transient sound. Events are values; consumers receive copies.
type NoiseEvent struct {
	X, Y       float32
	Z          int
	Radius     float32
	Kind       NoiseKind
	SourceRole components.Role
	Source     components.AgentID // Zero for ambient or global noises
	Created    time.Duration
	Duration   time.Duration
}

// Expired reports whether the event has outlived its duration at now.
func (e NoiseEvent) Expired(now time.Duration) bool {
	return now-e.Created > e.Duration
}

// Audible reports whether a listener at (x, y, z) is inside the event's radius.
func (e NoiseEvent) Audible(x, y float32, z int) bool {
	return e.Z == z && distanceSq(e.X, e.Y, x, y) <= e.Radius*e.Radius
}

// NoiseBus holds the session's live noise events. It belongs to one
// simulation and is only touched by the simulation thread.
type NoiseBus struct {
	clock  func() time.Duration
	events []NoiseEvent
	total  int
}

// NewNoiseBus creates a bus stamping events with the given clock.
func NewNoiseBus(clock func() time.Duration) *NoiseBus {
	return &NoiseBus{clock: clock}
}

// Emit appends an event created now.
func (b *NoiseBus) Emit(e NoiseEvent) {
	e.Created = b.clock()
	b.events = append(b.events, e)
	b.total++
}

// Tick prunes expired events. Called once per simulation step.
func (b *NoiseBus) Tick() {
	now := b.clock()
	kept := b.events[:0]
	for _, e := range b.events {
		if !e.Expired(now) {
			kept = append(kept, e)
		}
	}
	clear(b.events[len(kept):])
	b.events = kept
}

// QueryInZLevel returns copies of the live events on z-level z.
func (b *NoiseBus) QueryInZLevel(z int) []NoiseEvent {
	now := b.clock()
	var out []NoiseEvent
	for _, e := range b.events {
		if e.Z == z && !e.Expired(now) {
			out = append(out, e)
		}
	}
	return out
}

// Within returns live events on z whose origin lies within dist of (x, y).
func (b *NoiseBus) Within(x, y float32, z int, dist float32) []NoiseEvent {
	now := b.clock()
	var out []NoiseEvent
	for _, e := range b.events {
		if e.Z == z && !e.Expired(now) && distanceSq(e.X, e.Y, x, y) <= dist*dist {
			out = append(out, e)
		}
	}
	return out
}

// Snapshot returns copies of all live events.
func (b *NoiseBus) Snapshot() []NoiseEvent {
	now := b.clock()
	out := make([]NoiseEvent, 0, len(b.events))
	for _, e := range b.events {
		if !e.Expired(now) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of stored events, including any not yet pruned.
func (b *NoiseBus) Len() int {
	return len(b.events)
}

// Total returns how many events have been emitted over the session.
func (b *NoiseBus) Total() int {
	return b.total
}
