package game

import (
	"time"

	"github.com/pthm-cable/duskfall/components"
)

// PhaseClock cycles the day phases with configured durations.
// A DAWN entry starts a new day.
type PhaseClock struct {
	durations [components.NumPhases]time.Duration
	phase     components.Phase
	elapsed   time.Duration
	day       int
}

// NewPhaseClock creates a clock starting at the beginning of start on day 1.
func NewPhaseClock(durations [components.NumPhases]time.Duration, start components.Phase) *PhaseClock {
	return &PhaseClock{durations: durations, phase: start, day: 1}
}

// Advance moves the clock forward by dt and reports whether the phase changed.
// A phase with zero duration is passed through without stalling.
func (c *PhaseClock) Advance(dt time.Duration) bool {
	c.elapsed += dt
	changed := false
	for i := 0; i < int(components.NumPhases) && c.elapsed >= c.durations[c.phase]; i++ {
		c.elapsed -= c.durations[c.phase]
		c.enter(c.phase.Next())
		changed = true
	}
	return changed
}

// Sync adopts an authoritative phase and remaining time.
// Reports whether the phase changed.
func (c *PhaseClock) Sync(phase components.Phase, remaining time.Duration) bool {
	changed := phase != c.phase
	if changed {
		c.enter(phase)
	}
	d := c.durations[phase]
	remaining = max(0, min(remaining, d))
	c.elapsed = d - remaining
	return changed
}

func (c *PhaseClock) enter(p components.Phase) {
	if p == components.PhaseDawn && c.phase != components.PhaseDawn {
		c.day++
	}
	c.phase = p
}

// Phase returns the current phase.
func (c *PhaseClock) Phase() components.Phase { return c.phase }

// Remaining returns the time left in the current phase.
func (c *PhaseClock) Remaining() time.Duration {
	return max(0, c.durations[c.phase]-c.elapsed)
}

// Day returns the current day number, starting at 1.
func (c *PhaseClock) Day() int { return c.day }

// IsWorkHours reports whether jobs can be worked now.
func (c *PhaseClock) IsWorkHours() bool { return c.phase.IsWorkHours() }

// IsNightOrDawn reports whether disguises are dropped now.
func (c *PhaseClock) IsNightOrDawn() bool { return c.phase.IsNightOrDawn() }
