package behavior

import (
	"math/rand"

	"github.com/pthm-cable/duskfall/components"
)

// Item is something an agent can buy at the shop.
type Item uint8

const (
	ItemKey Item = iota
	ItemAmmo
	ItemLockpick
)

// String returns the item name.
func (i Item) String() string {
	switch i {
	case ItemKey:
		return "key"
	case ItemAmmo:
		return "ammo"
	case ItemLockpick:
		return "lockpick"
	}
	return "unknown"
}

// Actuator is how actions affect the world beyond the agent's own components.
// The simulation's agent controller implements it.
type Actuator interface {
	// SetDestination asks to travel to a cell. Repeat calls for the current
	// destination are no-ops; re-targeting an active path is throttled.
	SetDestination(c components.Cell)
	// ClearPath stops the agent.
	ClearPath()
	Attack(target components.AgentID) bool
	Heal(target components.AgentID) bool
	Buy(item Item) bool
	StartWork() bool
	Hide() bool
}

// Context is what one tree evaluation sees.
type Context struct {
	Agent components.Agent
	Board *Blackboard
	Act   Actuator
	Rand  *rand.Rand

	// Branch is the root child that produced the result.
	Branch string

	perception *Perception
}

// NewContext creates an evaluation context for one agent.
func NewContext(agent components.Agent, board *Blackboard, act Actuator, rng *rand.Rand) *Context {
	return &Context{Agent: agent, Board: board, Act: act, Rand: rng}
}

// Perception returns what the agent currently sees and hears, computed on first use.
func (c *Context) Perception() *Perception {
	if c.perception == nil {
		c.perception = Perceive(c.Agent, c.Board)
	}
	return c.perception
}

// SetPerception installs a perception computed ahead of time against the same blackboard.
func (c *Context) SetPerception(p *Perception) {
	c.perception = p
}

// Cell returns the cell the agent stands in.
func (c *Context) Cell() components.Cell {
	t := c.Agent.Transform
	return c.Board.Grid.WorldToCell(t.X, t.Y, t.Z)
}

func (c *Context) trace(n Node) {
	c.Branch = n.Name()
}
