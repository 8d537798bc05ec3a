package telemetry

import (
	"time"

	"github.com/pthm-cable/duskfall/components"
)

// Census is the population state sampled at window end.
type Census struct {
	Phase   components.Phase
	Day     int
	Alive   [components.NumRoles]int
	Dead    int
	Hidden  int
	Excited int
	Working int
	Noises  int
}

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int32
	dt                  float32

	// Current window tracking
	windowStartTick int32

	counts       [len(eventNames)]int
	pathLengths  []float64
	pathLatency  []float64 // Microseconds
	expansions   []float64
	staleDropped uint64
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec float64, dt float32) *Collector {
	ticksPerWindow := int32(windowDurationSec / float64(dt))
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// Record counts an event in the current window.
func (c *Collector) Record(e Event) {
	if int(e.Type) < len(c.counts) {
		c.counts[e.Type]++
	}
}

// RecordSearch records a completed search's cost. Failed searches count
// toward latency and expansions but not path length.
func (c *Collector) RecordSearch(length, expansions int, elapsed time.Duration, failed bool) {
	if !failed {
		c.pathLengths = append(c.pathLengths, float64(length))
	}
	c.pathLatency = append(c.pathLatency, float64(elapsed.Microseconds()))
	c.expansions = append(c.expansions, float64(expansions))
}

// RecordStaleDropped adds to the count of discarded late results.
func (c *Collector) RecordStaleDropped(n uint64) {
	c.staleDropped += n
}

// Count returns the number of events of type t in the current window.
func (c *Collector) Count(t EventType) int {
	if int(t) >= len(c.counts) {
		return 0
	}
	return c.counts[t]
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int32, census Census) WindowStats {
	found := c.counts[EventPathFound]
	failed := c.counts[EventPathFailed]
	var failRate float64
	if found+failed > 0 {
		failRate = float64(failed) / float64(found+failed)
	}

	lenMean, lenStd := MeanStd(c.pathLengths)
	latMean, _ := MeanStd(c.pathLatency)
	expMean, _ := MeanStd(c.expansions)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * float64(c.dt),
		Phase:           census.Phase.String(),
		Day:             census.Day,

		Citizens:   census.Alive[components.RoleCitizen],
		Mafia:      census.Alive[components.RoleMafia],
		Police:     census.Alive[components.RolePolice],
		Doctors:    census.Alive[components.RoleDoctor],
		Dead:       census.Dead,
		Hidden:     census.Hidden,
		Excited:    census.Excited,
		Working:    census.Working,
		LiveNoises: census.Noises,

		Attacks:    c.counts[EventAttack],
		Kills:      c.counts[EventKill],
		Stuns:      c.counts[EventStun],
		Heals:      c.counts[EventHeal],
		Sirens:     c.counts[EventSiren],
		Sabotages:  c.counts[EventSabotage],
		DoorsOpen:  c.counts[EventDoorOpen],
		DoorsBroke: c.counts[EventDoorBreak],
		Lockpicks:  c.counts[EventLockpick],
		Purchases:  c.counts[EventPurchase],
		WorkDone:   c.counts[EventWorkDone],
		Stuck:      c.counts[EventStuck],

		PathsFound:       found,
		PathsFailed:      failed,
		PathFailRate:     failRate,
		PathLenMean:      lenMean,
		PathLenStd:       lenStd,
		PathLenP90:       Percentile(sortedCopy(c.pathLengths), 0.90),
		SearchLatencyUS:  latMean,
		SearchLatencyP90: Percentile(sortedCopy(c.pathLatency), 0.90),
		ExpansionsMean:   expMean,
		StaleDropped:     int(c.staleDropped),
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.counts = [len(eventNames)]int{}
	c.pathLengths = c.pathLengths[:0]
	c.pathLatency = c.pathLatency[:0]
	c.expansions = c.expansions[:0]
	c.staleDropped = 0

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
