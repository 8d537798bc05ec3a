package behavior

import (
	"math"

	"github.com/pthm-cable/duskfall/components"
	"github.com/pthm-cable/duskfall/systems"
)

// goTo moves the agent toward c. Success once the agent stands on c (or next
// to it when c itself blocks), Failure if a recent search toward c failed,
// Running otherwise.
func goTo(ctx *Context, c components.Cell) Result {
	a := ctx.Agent
	here := ctx.Cell()
	if here == c {
		return Success
	}
	if here.Z == c.Z && manhattan(here, c) == 1 && ctx.Board.Grid.CheckCollision(c.X, c.Y, c.Z) && !a.Nav.Active() {
		return Success
	}
	if a.Nav.RecentlyFailed(c, ctx.Board.Now, ctx.Board.Cfg.Derived.FailureBackoff) {
		return Failure
	}
	ctx.Act.SetDestination(c)
	return Running
}

func manhattan(a, b components.Cell) int {
	dx, dy := a.X-b.X, a.Y-b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// nearestCell returns the candidate closest to from by Manhattan distance
// on the same z-level, within maxDist. Ties keep the earlier candidate.
func nearestCell(from components.Cell, candidates []components.Cell, maxDist int) (components.Cell, bool) {
	best, bestD := components.Cell{}, -1
	for _, c := range candidates {
		if c.Z != from.Z {
			continue
		}
		d := manhattan(from, c)
		if d > maxDist {
			continue
		}
		if bestD < 0 || d < bestD {
			best, bestD = c, d
		}
	}
	return best, bestD >= 0
}

// startle raises the excited emotion when a loud noise is heard. It always
// fails so the selector moves on.
func startle(ctx *Context) Result {
	for _, e := range ctx.Perception().Heard {
		switch e.Kind {
		case systems.NoiseGunshot, systems.NoiseScream, systems.NoiseSiren, systems.NoiseBreak:
			excite(ctx)
			return Failure
		}
	}
	return Failure
}

func excite(ctx *Context) {
	until := ctx.Board.Now + ctx.Board.Cfg.Derived.ExcitedDuration
	if until > ctx.Agent.Status.ExcitedUntil {
		ctx.Agent.Status.ExcitedUntil = until
	}
}

// observe updates police suspicion. Witnessing the source of a suspicious
// noise raises suspicion of that agent; all scores decay. Always fails.
func observe(ctx *Context) Result {
	mem := ctx.Agent.Memory
	cfg := ctx.Board.Cfg
	if mem.Suspicion == nil {
		mem.Suspicion = make(map[components.AgentID]float32)
	}

	decay := float32(cfg.AI.SuspicionDecay * cfg.Sim.DT * float64(cfg.Sim.AIInterval))
	for id, v := range mem.Suspicion {
		if v -= decay; v <= 0 {
			delete(mem.Suspicion, id)
		} else {
			mem.Suspicion[id] = v
		}
	}

	p := ctx.Perception()
	for _, e := range p.Heard {
		if !e.Kind.Suspicious() || e.Source == 0 {
			continue
		}
		if _, ok := p.Sees(e.Source); ok {
			mem.Suspicion[e.Source] += float32(cfg.AI.SuspicionGain)
		}
	}
	return Failure
}

// chase pursues the nearest suspect: siren when too far and a charge
// remains, attack when in range, otherwise run at them.
func chase(ctx *Context) Result {
	s, ok := suspectInView(ctx)
	if !ok {
		return Failure
	}
	a := ctx.Agent
	ai := ctx.Board.Cfg.AI
	target := ctx.Board.Grid.WorldToCell(s.X, s.Y, s.Z)

	a.Memory.ChaseTarget = s.ID
	a.Memory.LastSeen = target
	a.Memory.HasLastSeen = true
	excite(ctx)

	if s.Dist > float32(ai.SirenDistance) && a.Status.SirenCharges > 0 {
		a.Status.SirenCharges--
		return Issue(CmdTriggerSiren)
	}
	if s.Dist <= float32(ai.AttackRange) {
		if ctx.Act.Attack(s.ID) {
			return Success
		}
		return Running
	}
	return goTo(ctx, target)
}

func investigateLastSeen(ctx *Context) Result {
	mem := ctx.Agent.Memory
	r := goTo(ctx, mem.LastSeen)
	if r.Status != StatusRunning {
		mem.HasLastSeen = false
	}
	return r
}

func investigateNoise(ctx *Context) Result {
	mem := ctx.Agent.Memory
	if c, ok := suspiciousNoise(ctx); ok {
		mem.Investigate = c
		mem.HasInvestigate = true
	}
	r := goTo(ctx, mem.Investigate)
	if r.Status != StatusRunning {
		mem.HasInvestigate = false
	}
	return r
}

func patrol(ctx *Context) Result {
	points := ctx.Board.Landmarks.PatrolPoints
	if len(points) == 0 {
		return wander(ctx)
	}
	mem := ctx.Agent.Memory
	r := goTo(ctx, points[mem.PatrolIndex%len(points)])
	if r.Status != StatusRunning {
		mem.PatrolIndex++
		return Running
	}
	return r
}

// wander walks to random open cells near the agent.
func wander(ctx *Context) Result {
	mem := ctx.Agent.Memory
	if mem.HasWander {
		r := goTo(ctx, mem.Wander)
		if r.Status == StatusRunning {
			return r
		}
		mem.HasWander = false
		if r.Status == StatusFailure {
			return Failure
		}
	}

	here := ctx.Cell()
	radius := ctx.Board.Cfg.AI.WanderRadius
	grid := ctx.Board.Grid
	for try := 0; try < 8; try++ {
		c := components.Cell{
			X: here.X + ctx.Rand.Intn(2*radius+1) - radius,
			Y: here.Y + ctx.Rand.Intn(2*radius+1) - radius,
			Z: here.Z,
		}
		if c != here && !grid.CheckCollision(c.X, c.Y, c.Z) {
			mem.Wander = c
			mem.HasWander = true
			return goTo(ctx, c)
		}
	}
	return Failure
}

func kill(ctx *Context) Result {
	v, ok := victimInView(ctx)
	if !ok {
		return Failure
	}
	a := ctx.Agent
	a.Memory.ChaseTarget = v.ID
	if v.Dist <= float32(ctx.Board.Cfg.AI.KillRange) {
		if ctx.Act.Attack(v.ID) {
			return Success
		}
		return Failure
	}
	return goTo(ctx, ctx.Board.Grid.WorldToCell(v.X, v.Y, v.Z))
}

func sabotage(ctx *Context) Result {
	a := ctx.Agent
	a.Vitals.AP -= float32(ctx.Board.Cfg.AI.SabotageCost)
	a.Status.SabotagedNight = true
	return Issue(CmdSabotageLights)
}

// fleeOrHide hides in a nearby spot if one is close, otherwise runs directly
// away from the nearest threat.
func fleeOrHide(ctx *Context) Result {
	a := ctx.Agent
	if a.Status.Hiding != components.HidingNone {
		return Success
	}
	if ctx.Act.Hide() {
		return Success
	}

	here := ctx.Cell()
	dist := ctx.Board.Cfg.AI.FleeDistance
	if spot, ok := nearestCell(here, ctx.Board.Landmarks.HidingSpots, dist); ok {
		r := goTo(ctx, spot)
		if r.Status == StatusSuccess {
			ctx.Act.Hide()
			return Success
		}
		if r.Status == StatusRunning {
			a.Status.Fleeing = true
			return r
		}
	}

	threat, ok := threatInView(ctx)
	if !ok {
		return Failure
	}
	dx := a.Transform.X - threat.X
	dy := a.Transform.Y - threat.Y
	n := float32(math.Hypot(float64(dx), float64(dy)))
	if n < 1e-3 {
		dx, dy, n = 1, 0, 1
	}
	tile := ctx.Board.Grid.TileSize()
	step := float32(dist) * tile
	tx := a.Transform.X + dx/n*step
	ty := a.Transform.Y + dy/n*step
	goal := clampCell(ctx.Board.Grid, ctx.Board.Grid.WorldToCell(tx, ty, here.Z))

	a.Status.Fleeing = true
	return goTo(ctx, goal)
}

func clampCell(g *systems.TileGrid, c components.Cell) components.Cell {
	c.X = max(0, min(c.X, g.Width()-1))
	c.Y = max(0, min(c.Y, g.Height()-1))
	return c
}

func heal(ctx *Context) Result {
	w, ok := woundedInView(ctx)
	if !ok {
		return Failure
	}
	if w.Dist <= float32(ctx.Board.Cfg.AI.HealRange) {
		if ctx.Act.Heal(w.ID) {
			return Success
		}
		return Failure
	}
	return goTo(ctx, ctx.Board.Grid.WorldToCell(w.X, w.Y, w.Z))
}

// shop returns an action that walks to the shop and buys item.
func shop(item Item) func(ctx *Context) Result {
	return func(ctx *Context) Result {
		r := goTo(ctx, ctx.Board.Landmarks.Shop)
		if r.Status != StatusSuccess {
			return r
		}
		if ctx.Act.Buy(item) {
			return Success
		}
		return Failure
	}
}

// workSpot returns the agent's work location, spreading agents across spots by id.
func workSpot(ctx *Context) (components.Cell, bool) {
	if ctx.Board.Landmarks == nil {
		return components.Cell{}, false
	}
	spots := ctx.Board.Landmarks.WorkSpots[ctx.Agent.Identity.SubRole]
	if len(spots) == 0 {
		return components.Cell{}, false
	}
	return spots[int(ctx.Agent.Identity.ID)%len(spots)], true
}

func work(ctx *Context) Result {
	if ctx.Agent.Status.Working {
		return Running
	}
	spot, ok := workSpot(ctx)
	if !ok {
		return Failure
	}
	r := goTo(ctx, spot)
	if r.Status != StatusSuccess {
		return r
	}
	if ctx.Act.StartWork() {
		return Running
	}
	return Failure
}

func goHome(ctx *Context) Result {
	r := goTo(ctx, ctx.Agent.Identity.Home)
	if r.Status == StatusSuccess {
		ctx.Act.Hide()
	}
	return r
}

func idle(ctx *Context) Result {
	ctx.Act.ClearPath()
	return Success
}
