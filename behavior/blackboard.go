package behavior

import (
	"sort"
	"time"

	"github.com/pthm-cable/duskfall/components"
	"github.com/pthm-cable/duskfall/config"
	"github.com/pthm-cable/duskfall/systems"
)

// AgentSnapshot is an agent's observable state at tick start.
type AgentSnapshot struct {
	ID        components.AgentID
	Role      components.Role
	Disguise  components.Role
	X, Y      float32
	Z         int
	HP        float32
	Alive     bool
	Hiding    components.Hiding
	Crouching bool
}

// ApparentRole returns the role observers see during phase.
// Mafia show their disguise except during NIGHT and DAWN.
func (s AgentSnapshot) ApparentRole(phase components.Phase) components.Role {
	if s.Role == components.RoleMafia && !phase.IsNightOrDawn() {
		return s.Disguise
	}
	return s.Role
}

// VillainLook reports whether the agent visibly reads as a villain during phase.
func (s AgentSnapshot) VillainLook(phase components.Phase) bool {
	return s.ApparentRole(phase) == components.RoleMafia
}

// Blackboard is the read-only world snapshot shared by every tree
// evaluation in one tick. It is assembled before any agent updates.
type Blackboard struct {
	Now      time.Duration
	Phase    components.Phase
	Frozen   bool
	Blackout bool

	Noises    []systems.NoiseEvent
	Grid      *systems.TileGrid
	Sight     *systems.Visibility
	Spatial   *systems.SpatialIndex
	Landmarks *components.Landmarks
	Cfg       *config.Config

	agents []AgentSnapshot
	byID   map[components.AgentID]int
}

// SetAgents installs the tick-start agent snapshots, ordered by id.
func (b *Blackboard) SetAgents(snaps []AgentSnapshot) {
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	b.agents = snaps
	b.byID = make(map[components.AgentID]int, len(snaps))
	for i, s := range snaps {
		b.byID[s.ID] = i
	}
}

// Agents returns every snapshot ordered by id.
func (b *Blackboard) Agents() []AgentSnapshot {
	return b.agents
}

// Agent returns the snapshot for id.
func (b *Blackboard) Agent(id components.AgentID) (AgentSnapshot, bool) {
	i, ok := b.byID[id]
	if !ok {
		return AgentSnapshot{}, false
	}
	return b.agents[i], true
}

// VisionRange returns the current sight distance, reduced during a blackout.
func (b *Blackboard) VisionRange() float32 {
	d := float32(b.Cfg.Vision.MaxDistance)
	if b.Blackout {
		d *= float32(b.Cfg.Vision.BlackoutFactor)
	}
	return d
}

// VisionRangeFor returns the sight distance for one agent. A charged
// flashlight restores full range during a blackout.
func (b *Blackboard) VisionRangeFor(a components.Agent) float32 {
	if b.Blackout && a.Status.Battery > 0 {
		return float32(b.Cfg.Vision.MaxDistance)
	}
	return b.VisionRange()
}

// SnapshotOf captures an agent's observable state.
func SnapshotOf(a components.Agent) AgentSnapshot {
	return AgentSnapshot{
		ID:        a.Identity.ID,
		Role:      a.Identity.Role,
		Disguise:  a.Identity.Disguise,
		X:         a.Transform.X,
		Y:         a.Transform.Y,
		Z:         a.Transform.Z,
		HP:        a.Vitals.HP,
		Alive:     a.Vitals.Alive,
		Hiding:    a.Status.Hiding,
		Crouching: a.Status.Crouching,
	}
}
