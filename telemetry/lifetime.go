package telemetry

import (
	"sort"

	"github.com/pthm-cable/duskfall/components"
)

// LifetimeStats tracks per-agent statistics over a session.
type LifetimeStats struct {
	ID        components.AgentID `csv:"id"`
	Name      string             `csv:"name"`
	Role      string             `csv:"role"`
	SpawnTick int32              `csv:"spawn_tick"`
	DeathTick int32              `csv:"death_tick"` // Zero while alive
	KilledBy  uint32             `csv:"killed_by"`

	PathsFound  int     `csv:"paths_found"`
	PathsFailed int     `csv:"paths_failed"`
	Distance    float64 `csv:"distance"` // World units walked
	Stuck       int     `csv:"stuck"`

	Attacks   int `csv:"attacks"`
	Kills     int `csv:"kills"`
	Heals     int `csv:"heals"`
	WorkDone  int `csv:"work_done"`
	Purchases int `csv:"purchases"`
	Doors     int `csv:"doors"`
}

// LifetimeTracker manages per-agent lifetime statistics.
type LifetimeTracker struct {
	stats map[components.AgentID]*LifetimeStats
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats: make(map[components.AgentID]*LifetimeStats),
	}
}

// Register creates lifetime stats for a new agent.
func (lt *LifetimeTracker) Register(id components.AgentID, name string, role components.Role, spawnTick int32) {
	lt.stats[id] = &LifetimeStats{
		ID:        id,
		Name:      name,
		Role:      role.String(),
		SpawnTick: spawnTick,
	}
}

// Get returns the lifetime stats for an agent, or nil if not found.
func (lt *LifetimeTracker) Get(id components.AgentID) *LifetimeStats {
	return lt.stats[id]
}

// Remove removes an agent's stats and returns them.
func (lt *LifetimeTracker) Remove(id components.AgentID) *LifetimeStats {
	stats := lt.stats[id]
	delete(lt.stats, id)
	return stats
}

// Record attributes an event to the agents it involves.
func (lt *LifetimeTracker) Record(e Event) {
	s := lt.stats[e.Agent]
	if e.Type == EventKill {
		if v := lt.stats[e.Target]; v != nil {
			v.DeathTick = e.Tick
			v.KilledBy = uint32(e.Agent)
		}
	}
	if s == nil {
		return
	}
	switch e.Type {
	case EventPathFound:
		s.PathsFound++
	case EventPathFailed:
		s.PathsFailed++
	case EventStuck:
		s.Stuck++
	case EventAttack, EventStun:
		s.Attacks++
	case EventKill:
		s.Attacks++
		s.Kills++
	case EventHeal:
		s.Heals++
	case EventWorkDone:
		s.WorkDone++
	case EventPurchase:
		s.Purchases++
	case EventDoorOpen, EventDoorBreak, EventLockpick:
		s.Doors++
	}
}

// AddDistance accumulates distance walked.
func (lt *LifetimeTracker) AddDistance(id components.AgentID, d float32) {
	if s := lt.stats[id]; s != nil {
		s.Distance += float64(d)
	}
}

// All returns every tracked record ordered by id.
func (lt *LifetimeTracker) All() []LifetimeStats {
	out := make([]LifetimeStats, 0, len(lt.stats))
	for _, s := range lt.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of tracked agents.
func (lt *LifetimeTracker) Count() int {
	return len(lt.stats)
}
