package game

import (
	"log/slog"
	"math/rand"

	"github.com/pthm-cable/duskfall/behavior"
	"github.com/pthm-cable/duskfall/components"
	"github.com/pthm-cable/duskfall/systems"
	"github.com/pthm-cable/duskfall/telemetry"
)

// Controller drives one agent: timers, path collection, decisions, and
// movement. It implements behavior.Actuator for the agent's tree.
type Controller struct {
	sim  *Simulation
	id   components.AgentID
	tree behavior.Node
	rng  *rand.Rand

	countdown int    // Ticks until the next tree evaluation
	branch    string // Last branch taken

	// Valid only during Update
	agent components.Agent
}

func newController(s *Simulation, id components.AgentID, role components.Role, seed int64) *Controller {
	return &Controller{
		sim:       s,
		id:        id,
		tree:      behavior.Build(role),
		rng:       agentRand(seed, id),
		countdown: int(id) % s.cfg.Sim.AIInterval,
	}
}

// due reports whether the next Update evaluates the tree.
func (c *Controller) due() bool {
	return c.countdown <= 1
}

// Update advances the agent by one tick and returns any command its tree issued.
// p may carry a perception computed ahead of time from the same blackboard.
func (c *Controller) Update(a components.Agent, board *behavior.Blackboard, p *behavior.Perception) behavior.Command {
	c.agent = a
	defer func() { c.agent = components.Agent{} }()

	now := c.sim.now
	if !a.Vitals.Alive {
		return ""
	}
	if board.Frozen || a.Status.Stunned(now) || a.Status.Frozen(now) {
		return ""
	}
	if !a.Identity.Master {
		c.interpolate()
		return ""
	}

	c.collectPath()
	if a.Nav.Pending && !a.Nav.Mailbox.Requesting() {
		c.request()
	}

	var cmd behavior.Command
	if !a.Status.Lockpicking {
		cmd = c.think(board, p)
	}
	c.move()

	// Drained after deciding so perception matches the tick-start snapshot.
	if board.Blackout && a.Status.Battery > 0 {
		drain := float32(c.sim.cfg.Vision.FlashlightDrain) * c.sim.cfg.Derived.DT32
		a.Status.Battery = max(0, a.Status.Battery-drain)
	}
	return cmd
}

// interpolate eases a mirrored agent toward its network target.
func (c *Controller) interpolate() {
	t := c.agent.Transform
	if !t.HasTarget {
		return
	}
	k := min(1, float32(c.sim.cfg.Sim.InterpRate)*c.sim.cfg.Derived.DT32)
	t.X += (t.TargetX - t.X) * k
	t.Y += (t.TargetY - t.Y) * k
	t.Z = t.TargetZ
	t.FacingX, t.FacingY = t.TargetFacingX, t.TargetFacingY
}

// collectPath installs a finished search result, if one arrived.
func (c *Controller) collectPath() {
	a := c.agent
	nav := a.Nav
	r := nav.Mailbox.Take()
	if r == nil {
		return
	}

	s := c.sim
	s.record(telemetry.NewPathEvent(s.tick, c.id, a.Identity.Role, r.Goal, len(r.Waypoints), r.Failed))
	s.collector.RecordSearch(len(r.Waypoints), r.Expansions, r.Elapsed, r.Failed)

	if r.Failed {
		nav.Waypoints = nil
		nav.HasDest = false
		nav.Failed = true
		nav.FailedDest = r.Goal
		nav.FailedAt = s.now
		slog.Debug("path failed", "agent", c.id, "goal", r.Goal, "expansions", r.Expansions)
		return
	}
	nav.Waypoints = r.Waypoints
	if nav.FailedDest == r.Goal {
		nav.Failed = false
	}
	a.Status.StuckTicks = 0
}

// request submits the pending destination to the planner. The request
// stays pending while another search for this agent is in flight.
func (c *Controller) request() {
	a := c.agent
	start := c.sim.grid.WorldToCell(a.Transform.X, a.Transform.Y, a.Transform.Z)
	if c.sim.planner.RequestPath(a.Nav.Mailbox, start, a.Nav.Dest) {
		a.Nav.Pending = false
	}
}

func (c *Controller) think(board *behavior.Blackboard, p *behavior.Perception) behavior.Command {
	c.countdown--
	if c.countdown > 0 {
		return ""
	}
	c.countdown = c.sim.cfg.Sim.AIInterval

	a := c.agent
	a.Memory.ChaseTarget = 0
	a.Status.Fleeing = false

	ctx := behavior.NewContext(a, board, c, c.rng)
	if p != nil {
		ctx.SetPerception(p)
	}
	res := c.tree.Tick(ctx)

	if ctx.Branch != c.branch {
		slog.Debug("branch", "agent", c.id, "role", a.Identity.Role.String(), "from", c.branch, "to", ctx.Branch)
		c.branch = ctx.Branch
	}
	a.Status.Crouching = a.Identity.Role == components.RoleMafia &&
		board.Phase.IsNight() && a.Memory.ChaseTarget == 0

	if res.Status == behavior.StatusCommand {
		return res.Command
	}
	return ""
}

// SetDestination asks the planner for a path to dest.
func (c *Controller) SetDestination(dest components.Cell) {
	a := c.agent
	nav := a.Nav
	now := c.sim.now
	active := nav.Active()

	if active && nav.HasDest && nav.Dest == dest {
		return
	}
	if active && now-nav.LastRequest < c.sim.cfg.Derived.RequestCooldown {
		return
	}

	a.Status.Hiding = components.HidingNone
	if a.Status.Working {
		c.sim.minigame.Cancel(c.id)
	}

	nav.Mailbox.Invalidate()
	nav.Dest = dest
	nav.HasDest = true
	nav.Waypoints = nil
	nav.Pending = true
	nav.LastRequest = now
	a.Status.StuckTicks = 0
	c.request()
}

// ClearPath stops the agent and discards any search in flight.
func (c *Controller) ClearPath() {
	nav := c.agent.Nav
	nav.Mailbox.Invalidate()
	nav.Waypoints = nil
	nav.Pending = false
	nav.HasDest = false
}

// target resolves another live agent within reach.
func (c *Controller) target(id components.AgentID, reach float64) (components.Agent, bool) {
	t, ok := c.sim.Agent(id)
	if !ok || !t.Vitals.Alive || t.Transform.Z != c.agent.Transform.Z {
		return components.Agent{}, false
	}
	slack := c.sim.grid.TileSize() / 2
	d := systems.Distance(c.agent.Transform.X, c.agent.Transform.Y, t.Transform.X, t.Transform.Y)
	if d > float32(reach)+slack {
		return components.Agent{}, false
	}
	return t, true
}

// Attack strikes target. Mafia kill outright; police shoot while they have
// ammo and stun otherwise.
func (c *Controller) Attack(id components.AgentID) bool {
	s := c.sim
	a := c.agent
	ai := s.cfg.AI

	switch a.Identity.Role {
	case components.RoleMafia:
		t, ok := c.target(id, ai.KillRange)
		if !ok {
			return false
		}
		dmg := t.Vitals.HP
		c.kill(t)
		s.emitNoise(a, systems.NoiseScream, s.cfg.Noise.Scream)
		s.record(telemetry.NewAttackEvent(s.tick, c.id, a.Identity.Role, id, dmg, true))
		return true

	case components.RolePolice:
		t, ok := c.target(id, ai.AttackRange)
		if !ok {
			return false
		}
		if a.Inventory.Ammo <= 0 {
			t.Status.StunnedUntil = s.now + s.cfg.Derived.StunDuration
			t.Nav.Waypoints = nil
			s.record(telemetry.Event{Type: telemetry.EventStun, Tick: s.tick, Agent: c.id, Role: a.Identity.Role, Target: id})
			return true
		}
		a.Inventory.Ammo--
		dmg := float32(ai.AttackDamage)
		t.Vitals.HP -= dmg
		dead := t.Vitals.HP <= 0
		if dead {
			c.kill(t)
		}
		s.emitNoise(a, systems.NoiseGunshot, s.cfg.Noise.Gunshot)
		s.record(telemetry.NewAttackEvent(s.tick, c.id, a.Identity.Role, id, dmg, dead))
		return true
	}
	return false
}

func (c *Controller) kill(t components.Agent) {
	t.Vitals.HP = 0
	t.Vitals.Alive = false
	t.Nav.Waypoints = nil
	t.Nav.Mailbox.Invalidate()
	t.Status.Working = false
	c.sim.minigame.Cancel(t.Identity.ID)
	slog.Info("agent killed", "agent", t.Identity.ID, "by", c.id, "tick", c.sim.tick)
}

// Heal restores a wounded agent up to starting health.
func (c *Controller) Heal(id components.AgentID) bool {
	s := c.sim
	t, ok := c.target(id, s.cfg.AI.HealRange)
	if !ok {
		return false
	}
	full := float32(s.cfg.Population.StartingHP)
	if t.Vitals.HP >= full {
		return false
	}
	amount := min(float32(s.cfg.AI.HealAmount), full-t.Vitals.HP)
	t.Vitals.HP += amount
	s.record(telemetry.Event{
		Type: telemetry.EventHeal, Tick: s.tick, Agent: c.id,
		Role: c.agent.Identity.Role, Target: id, Amount: float64(amount),
	})
	return true
}

// Buy purchases one item if the agent can afford it.
func (c *Controller) Buy(item behavior.Item) bool {
	s := c.sim
	inv := c.agent.Inventory
	shop := s.cfg.Shop

	var price int
	var slot *int
	switch item {
	case behavior.ItemKey:
		price, slot = shop.KeyPrice, &inv.Keys
	case behavior.ItemAmmo:
		price, slot = shop.AmmoPrice, &inv.Ammo
	case behavior.ItemLockpick:
		price, slot = shop.LockpickPrice, &inv.Lockpicks
	default:
		return false
	}
	if inv.Money < price {
		return false
	}
	inv.Money -= price
	*slot++
	s.record(telemetry.Event{
		Type: telemetry.EventPurchase, Tick: s.tick, Agent: c.id,
		Role: c.agent.Identity.Role, Amount: float64(price), Detail: item.String(),
	})
	return true
}

// StartWork hands the agent to the work minigame.
func (c *Controller) StartWork() bool {
	s := c.sim
	id := c.id
	a := c.agent
	if a.Status.Working {
		return false
	}

	finish := func(success bool) {
		w, ok := s.Agent(id)
		if !ok {
			return
		}
		w.Status.Working = false
		if !success || !w.Vitals.Alive {
			return
		}
		w.Status.WorkDone++
		w.Inventory.Money += s.cfg.AI.WorkPay
		s.emitNoise(w, systems.NoiseWork, s.cfg.Noise.Work)
		s.record(telemetry.Event{
			Type: telemetry.EventWorkDone, Tick: s.tick, Agent: id,
			Role: w.Identity.Role, Amount: float64(s.cfg.AI.WorkPay),
		})
	}
	started := s.minigame.Start(id, MinigameWork, Callbacks{
		OnSuccess: func() { finish(true) },
		OnFail:    func() { finish(false) },
	})
	if !started {
		return false
	}
	a.Status.Working = true
	c.ClearPath()
	return true
}

// Hide conceals the agent in the object at its cell, if it offers cover.
func (c *Controller) Hide() bool {
	a := c.agent
	cell := c.sim.grid.WorldToCell(a.Transform.X, a.Transform.Y, a.Transform.Z)
	h := c.sim.grid.HidingAt(cell.X, cell.Y, cell.Z)
	if h == components.HidingNone {
		return false
	}
	a.Status.Hiding = h
	c.ClearPath()
	return true
}
