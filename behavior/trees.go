package behavior

import (
	"fmt"

	"github.com/pthm-cable/duskfall/components"
)

// Branch names reported through Context.Branch.
const (
	BranchObserve         = "observe"
	BranchStartle         = "startle"
	BranchShop            = "shop"
	BranchChase           = "chase"
	BranchInvestigateSeen = "investigate_last_seen"
	BranchInvestigate     = "investigate_noise"
	BranchPatrol          = "patrol"
	BranchKill            = "kill"
	BranchSabotage        = "sabotage"
	BranchFakeWork        = "fake_work"
	BranchFlee            = "flee"
	BranchHeal            = "heal"
	BranchWork            = "work"
	BranchGoHome          = "go_home"
	BranchWander          = "wander"
	BranchIdle            = "idle"
)

// Build returns the decision tree for role. Trees are stateless and may be
// shared by every agent of the role.
func Build(role components.Role) Node {
	switch role {
	case components.RolePolice:
		return policeTree()
	case components.RoleMafia:
		return mafiaTree()
	case components.RoleCitizen:
		return civilianTree("citizen", false)
	case components.RoleDoctor:
		return civilianTree("doctor", true)
	case components.RoleSpectator:
		return NewAction(BranchIdle, idle)
	}
	panic(fmt.Sprintf("behavior: no tree for role %d", role))
}

func policeTree() Node {
	return NewSelector("police",
		NewAction(BranchStartle, startle),
		NewAction(BranchObserve, observe),
		NewSequence(BranchShop,
			NewCondition("needs_ammo", needsItem(ItemAmmo)),
			NewAction("buy_ammo", shop(ItemAmmo)),
		),
		NewSequence(BranchChase,
			NewCondition("see_suspect", seeSuspect),
			NewAction("chase_and_attack", chase),
		),
		NewSequence(BranchInvestigateSeen,
			NewCondition("has_last_seen", hasLastSeen),
			NewAction("go_last_seen", investigateLastSeen),
		),
		NewSequence(BranchInvestigate,
			NewCondition("heard_noise", heardSomething),
			NewAction("go_noise", investigateNoise),
		),
		NewAction(BranchPatrol, patrol),
	)
}

func mafiaTree() Node {
	return NewSelector("mafia",
		NewAction(BranchStartle, startle),
		NewSequence(BranchKill,
			NewCondition("is_night", isNight),
			NewCondition("see_victim", seeVictim),
			NewAction("stalk_and_kill", kill),
		),
		NewSequence(BranchSabotage,
			NewCondition("is_night", isNight),
			NewCondition("can_sabotage", canSabotage),
			NewAction("cut_lights", sabotage),
		),
		NewSequence(BranchShop,
			NewCondition("needs_lockpick", needsItem(ItemLockpick)),
			NewAction("buy_lockpick", shop(ItemLockpick)),
		),
		NewAction(BranchFakeWork, wander),
	)
}

func civilianTree(name string, doctor bool) Node {
	branches := []Node{
		NewAction(BranchStartle, startle),
		NewSequence(BranchFlee,
			NewCondition("is_night", isNight),
			NewCondition("danger_nearby", dangerNearby),
			NewAction("flee_or_hide", fleeOrHide),
		),
	}
	if doctor {
		branches = append(branches, NewSequence(BranchHeal,
			NewCondition("see_wounded", seeWounded),
			NewAction("treat", heal),
		))
	}
	branches = append(branches,
		NewSequence(BranchShop,
			NewCondition("needs_key", needsItem(ItemKey)),
			NewAction("buy_key", shop(ItemKey)),
		),
		NewSequence(BranchWork,
			NewCondition("is_work_hours", isWorkHours),
			NewCondition("under_quota", underQuota),
			NewAction("do_work", work),
		),
		NewSequence(BranchGoHome,
			NewCondition("is_night", isNight),
			NewAction("walk_home", goHome),
		),
		NewAction(BranchWander, wander),
	)
	return NewSelector(name, branches...)
}
