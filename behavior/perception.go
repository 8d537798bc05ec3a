package behavior

import (
	"sort"

	"github.com/pthm-cable/duskfall/components"
	"github.com/pthm-cable/duskfall/systems"
)

// Sighting is a visible agent and its distance from the observer.
type Sighting struct {
	AgentSnapshot
	Dist float32
}

// Perception is what one agent sees and hears this tick.
type Perception struct {
	Visible []Sighting           // Nearest first, ties by id
	Heard   []systems.NoiseEvent // Audible events from other sources
}

// passiveHideReveal is how close, in tiles, a passively hidden agent can be spotted.
const passiveHideReveal = 1.5

// Perceive computes what agent sees and hears against the blackboard.
// Visible agents are alive, on the same z-level, not actively hidden,
// within vision range, and in line of sight.
func Perceive(agent components.Agent, b *Blackboard) *Perception {
	self := agent.Identity.ID
	t := agent.Transform
	vision := b.VisionRangeFor(agent)
	reveal := passiveHideReveal * b.Grid.TileSize()

	p := &Perception{}
	consider := func(s AgentSnapshot) {
		if s.ID == self || !s.Alive || s.Z != t.Z || s.Hiding == components.HidingActive {
			return
		}
		d := systems.Distance(t.X, t.Y, s.X, s.Y)
		if d > vision {
			return
		}
		if s.Hiding == components.HidingPassive && d > reveal {
			return
		}
		if !b.Sight.HasLineOfSightWithin(t.X, t.Y, t.Z, s.X, s.Y, s.Z, vision) {
			return
		}
		p.Visible = append(p.Visible, Sighting{AgentSnapshot: s, Dist: d})
	}

	if b.Spatial != nil && b.Spatial.Contains(self) {
		for id := range b.Spatial.QueryNearby(self, vision) {
			if s, ok := b.Agent(id); ok {
				consider(s)
			}
		}
	} else {
		for _, s := range b.Agents() {
			consider(s)
		}
	}

	sort.Slice(p.Visible, func(i, j int) bool {
		if p.Visible[i].Dist != p.Visible[j].Dist {
			return p.Visible[i].Dist < p.Visible[j].Dist
		}
		return p.Visible[i].ID < p.Visible[j].ID
	})

	for _, e := range b.Noises {
		if e.Source != self && e.Audible(t.X, t.Y, t.Z) {
			p.Heard = append(p.Heard, e)
		}
	}
	return p
}

// Sees reports whether id is in the visible set.
func (p *Perception) Sees(id components.AgentID) (Sighting, bool) {
	for _, s := range p.Visible {
		if s.ID == id {
			return s, true
		}
	}
	return Sighting{}, false
}
