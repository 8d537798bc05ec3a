package behavior

import (
	"github.com/pthm-cable/duskfall/components"
)

// Phase gates

func isNight(ctx *Context) bool {
	return ctx.Board.Phase.IsNight()
}

func isWorkHours(ctx *Context) bool {
	return ctx.Board.Phase.IsWorkHours()
}

// suspectInView returns the nearest visible agent a police officer should chase:
// one showing the villain look, or one whose suspicion crossed the threshold.
func suspectInView(ctx *Context) (Sighting, bool) {
	threshold := float32(ctx.Board.Cfg.AI.SuspicionThreshold)
	for _, s := range ctx.Perception().Visible {
		if s.Role == components.RolePolice {
			continue
		}
		if s.VillainLook(ctx.Board.Phase) || ctx.Agent.Memory.Suspicion[s.ID] >= threshold {
			return s, true
		}
	}
	return Sighting{}, false
}

func seeSuspect(ctx *Context) bool {
	_, ok := suspectInView(ctx)
	return ok
}

// victimInView returns the nearest visible agent a mafioso can attack.
func victimInView(ctx *Context) (Sighting, bool) {
	for _, s := range ctx.Perception().Visible {
		if s.Role != components.RoleMafia && s.Role != components.RoleSpectator {
			return s, true
		}
	}
	return Sighting{}, false
}

func seeVictim(ctx *Context) bool {
	_, ok := victimInView(ctx)
	return ok
}

// threatInView returns the nearest visible agent within danger distance.
// Citizens cannot tell roles apart at a glance, so anyone close counts.
func threatInView(ctx *Context) (Sighting, bool) {
	limit := float32(ctx.Board.Cfg.AI.DangerDistance)
	for _, s := range ctx.Perception().Visible {
		if s.Role == components.RoleSpectator {
			continue
		}
		if s.Dist <= limit {
			return s, true
		}
	}
	return Sighting{}, false
}

func dangerNearby(ctx *Context) bool {
	_, ok := threatInView(ctx)
	return ok
}

// woundedInView returns the nearest visible living agent below full health.
func woundedInView(ctx *Context) (Sighting, bool) {
	maxHP := float32(ctx.Board.Cfg.Population.StartingHP)
	for _, s := range ctx.Perception().Visible {
		if s.HP < maxHP {
			return s, true
		}
	}
	return Sighting{}, false
}

func seeWounded(ctx *Context) bool {
	_, ok := woundedInView(ctx)
	return ok
}

func canSabotage(ctx *Context) bool {
	a := ctx.Agent
	return !a.Status.SabotagedNight && !ctx.Board.Blackout &&
		a.Vitals.AP >= float32(ctx.Board.Cfg.AI.SabotageCost)
}

func underQuota(ctx *Context) bool {
	a := ctx.Agent
	if a.Status.WorkDone >= ctx.Board.Cfg.AI.WorkQuota {
		return false
	}
	_, ok := workSpot(ctx)
	return ok
}

func hasLastSeen(ctx *Context) bool {
	return ctx.Agent.Memory.HasLastSeen
}

// suspiciousNoise returns the most recent audible suspicious noise.
func suspiciousNoise(ctx *Context) (components.Cell, bool) {
	heard := ctx.Perception().Heard
	for i := len(heard) - 1; i >= 0; i-- {
		if heard[i].Kind.Suspicious() {
			return ctx.Board.Grid.WorldToCell(heard[i].X, heard[i].Y, heard[i].Z), true
		}
	}
	return components.Cell{}, false
}

func heardSomething(ctx *Context) bool {
	if ctx.Agent.Memory.HasInvestigate {
		return true
	}
	_, ok := suspiciousNoise(ctx)
	return ok
}

// needsItem returns a condition true when the agent has none of item,
// can afford it, and the shop is open (not NIGHT).
func needsItem(item Item) func(ctx *Context) bool {
	return func(ctx *Context) bool {
		if ctx.Board.Phase.IsNight() || ctx.Board.Landmarks == nil {
			return false
		}
		inv := ctx.Agent.Inventory
		shop := ctx.Board.Cfg.Shop
		switch item {
		case ItemKey:
			return inv.Keys == 0 && inv.Money >= shop.KeyPrice
		case ItemAmmo:
			return inv.Ammo == 0 && inv.Money >= shop.AmmoPrice
		case ItemLockpick:
			return inv.Lockpicks == 0 && inv.Money >= shop.LockpickPrice
		}
		return false
	}
}
