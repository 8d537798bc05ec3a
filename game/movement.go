package game

import (
	"log/slog"
	"math"

	"github.com/pthm-cable/duskfall/components"
	"github.com/pthm-cable/duskfall/systems"
	"github.com/pthm-cable/duskfall/telemetry"
)

// move advances the agent one step along its waypoints. Doors on the path
// are handled in place of the step that would walk into them.
func (c *Controller) move() {
	s := c.sim
	a := c.agent
	st := a.Status
	nav := a.Nav

	if st.Lockpicking {
		if s.now < st.LockpickUntil {
			return
		}
		st.Lockpicking = false
		c.openDoor(st.LockpickCell, systems.TileDoorOpen, telemetry.EventDoorOpen)
		return
	}
	if st.Hiding != components.HidingNone || st.Working || len(nav.Waypoints) == 0 {
		return
	}

	next := nav.Waypoints[0]
	if door, _, ok := s.grid.DoorAt(next.X, next.Y, next.Z); ok && door.BlocksMovement() {
		c.handleDoor(next, door)
		return
	}
	if len(nav.Waypoints) == 1 && s.grid.CheckCollision(next.X, next.Y, next.Z) {
		// Goal is furniture or a counter; standing next to it is arrival.
		nav.Waypoints = nil
		return
	}

	t := a.Transform
	tx, ty := s.grid.CellCenter(next)
	dx, dy := tx-t.X, ty-t.Y
	dist := float32(math.Hypot(float64(dx), float64(dy)))
	step := c.speed() * s.cfg.Derived.DT32

	if dist <= float32(s.cfg.Pathfinding.WaypointTolerance) || step >= dist {
		c.advance(tx, ty, next.Z, dist)
		nav.Waypoints = nav.Waypoints[1:]
		return
	}

	nx := t.X + dx/dist*step
	ny := t.Y + dy/dist*step
	here := s.grid.WorldToCell(t.X, t.Y, t.Z)
	cell := s.grid.WorldToCell(nx, ny, t.Z)
	if cell != here && cell != next && s.grid.CheckCollision(cell.X, cell.Y, cell.Z) {
		c.blocked(cell)
		return
	}
	c.advance(nx, ny, t.Z, step)
}

// advance places the agent and accounts for the distance walked.
func (c *Controller) advance(x, y float32, z int, walked float32) {
	s := c.sim
	a := c.agent
	t := a.Transform
	if walked > 0 {
		t.FacingX, t.FacingY = (x-t.X)/walked, (y-t.Y)/walked
	}
	t.X, t.Y, t.Z = x, y, z
	a.Status.StuckTicks = 0
	s.lifetime.AddDistance(c.id, walked)

	if c.running() && s.now-a.Status.LastFootstep >= s.cfg.Derived.FootstepPeriod {
		a.Status.LastFootstep = s.now
		s.emitNoise(a, systems.NoiseFootstep, s.cfg.Noise.Footstep)
	}
}

// blocked counts a failed step and gives up on the path once the agent has
// been stuck too long. The destination is then treated as failed so the
// next evaluation picks something else.
func (c *Controller) blocked(cell components.Cell) {
	s := c.sim
	a := c.agent
	a.Status.StuckTicks++
	if a.Status.StuckTicks < s.cfg.Sim.StuckTicks {
		return
	}

	nav := a.Nav
	slog.Debug("agent stuck", "agent", c.id, "cell", cell, "dest", nav.Dest)
	nav.Failed = true
	nav.FailedDest = nav.Dest
	nav.FailedAt = s.now
	nav.Waypoints = nil
	nav.HasDest = false
	a.Status.StuckTicks = 0
	s.record(telemetry.Event{Type: telemetry.EventStuck, Tick: s.tick, Agent: c.id, Role: a.Identity.Role, Cell: cell})
}

// handleDoor interacts with a closed or locked door the path runs through.
func (c *Controller) handleDoor(cell components.Cell, door systems.TileID) {
	s := c.sim
	a := c.agent

	switch door.Def().Door {
	case systems.DoorClosed:
		c.openDoor(cell, systems.TileDoorOpen, telemetry.EventDoorOpen)

	case systems.DoorLocked:
		switch {
		case a.Identity.Role == components.RoleMafia && s.clock.Phase().IsNight():
			c.openDoor(cell, systems.TileDoorBroken, telemetry.EventDoorBreak)
		case a.Inventory.Keys > 0:
			a.Inventory.Keys--
			c.openDoor(cell, systems.TileDoorOpen, telemetry.EventDoorOpen)
		default:
			c.startLockpick(cell)
		}
	}
}

// startLockpick begins the timed unlock. A lockpick set halves the time.
func (c *Controller) startLockpick(cell components.Cell) {
	s := c.sim
	a := c.agent
	d := s.cfg.Derived.LockpickDuration
	if a.Inventory.Lockpicks > 0 {
		d /= 2
	}
	a.Status.Lockpicking = true
	a.Status.LockpickCell = cell
	a.Status.LockpickUntil = s.now + d
	s.emitNoise(a, systems.NoiseLockpick, s.cfg.Noise.Lockpick)
	s.record(telemetry.NewDoorEvent(telemetry.EventLockpick, s.tick, c.id, a.Identity.Role, cell))
}

// openDoor replaces the door at cell with to, keeping its rotation.
func (c *Controller) openDoor(cell components.Cell, to systems.TileID, ev telemetry.EventType) {
	s := c.sim
	a := c.agent
	door, layer, ok := s.grid.DoorAt(cell.X, cell.Y, cell.Z)
	if ok && door != to {
		rot := s.grid.Rotation(cell.X, cell.Y, cell.Z, layer)
		s.grid.SetTile(cell.X, cell.Y, cell.Z, to, rot, layer)
	}

	noise, spec := systems.NoiseDoor, s.cfg.Noise.Door
	if to == systems.TileDoorBroken {
		noise, spec = systems.NoiseBreak, s.cfg.Noise.Break
	}
	s.emitNoise(a, noise, spec)
	s.record(telemetry.NewDoorEvent(ev, s.tick, c.id, a.Identity.Role, cell))
}

// running reports whether the agent moves at run speed.
func (c *Controller) running() bool {
	return c.agent.Memory.ChaseTarget != 0 || c.agent.Status.Fleeing
}

// speed resolves the agent's movement speed in world units per second.
func (c *Controller) speed() float32 {
	m := c.sim.cfg.Movement
	a := c.agent

	var v float64
	switch {
	case c.running():
		v = m.RunSpeed
		if a.Status.Excited(c.sim.now) {
			v *= m.ExcitedMultiplier
		}
	case a.Status.Crouching:
		v = m.CrouchSpeed
	default:
		v = m.WalkSpeed
	}
	if a.Identity.Role == components.RolePolice {
		v *= m.PoliceMultiplier
	}
	return float32(v)
}
