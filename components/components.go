// Package components defines ECS components for the simulation.
package components

import "time"

// AgentID identifies an agent for the lifetime of a session. Zero means "none".
type AgentID uint32

// Cell is a discrete tile coordinate on a z-level.
type Cell struct {
	X, Y, Z int
}

// Role is an agent's gameplay role.
type Role uint8

const (
	RoleCitizen Role = iota
	RoleMafia
	RolePolice
	RoleDoctor
	RoleSpectator
	NumRoles
)

// SubRole is a citizen's job. Zero means no job.
type SubRole uint8

const (
	SubRoleNone SubRole = iota
	SubRoleFarmer
	SubRoleMiner
	SubRoleFisher
)

// Phase is a segment of the day-night cycle.
type Phase uint8

const (
	PhaseDawn Phase = iota
	PhaseMorning
	PhaseNoon
	PhaseAfternoon
	PhaseEvening
	PhaseNight
	NumPhases
)

// Next returns the phase that follows p, wrapping NIGHT to DAWN.
func (p Phase) Next() Phase {
	return (p + 1) % NumPhases
}

// IsNight reports whether p is NIGHT.
func (p Phase) IsNight() bool { return p == PhaseNight }

// IsNightOrDawn reports whether disguises are dropped in p.
func (p Phase) IsNightOrDawn() bool { return p == PhaseNight || p == PhaseDawn }

// IsWorkHours reports whether jobs can be worked in p.
func (p Phase) IsWorkHours() bool {
	return p == PhaseMorning || p == PhaseNoon || p == PhaseAfternoon
}

// Hiding describes how concealed an agent is.
type Hiding uint8

const (
	HidingNone    Hiding = iota
	HidingPassive        // In a bush or behind a crate; visible up close
	HidingActive         // Under a bed; invisible
)

// Identity holds who an agent is.
type Identity struct {
	ID       AgentID
	Name     string
	Role     Role
	Disguise Role // Role shown to observers outside NIGHT/DAWN
	SubRole  SubRole
	Master   bool // This process runs the agent's AI
	Home     Cell
}

// Transform holds position, elevation, and facing.
// Target fields hold the latest network-provided state for non-master agents.
type Transform struct {
	X, Y             float32
	Z                int
	FacingX, FacingY float32

	TargetX, TargetY             float32
	TargetZ                      int
	TargetFacingX, TargetFacingY float32
	HasTarget                    bool
}

// Vitals holds health and stamina.
type Vitals struct {
	HP    float32
	AP    float32
	Alive bool
}

// Status holds timers and transient state flags.
type Status struct {
	StunnedUntil time.Duration
	FrozenUntil  time.Duration
	Battery      float32
	Hiding       Hiding
	ExcitedUntil time.Duration
	Crouching    bool
	Fleeing      bool
	Working      bool

	Lockpicking   bool
	LockpickUntil time.Duration
	LockpickCell  Cell

	WorkDone       int  // Minigames completed since DAWN
	SabotagedNight bool // Lights already cut this night
	SirenCharges   int
	StuckTicks     int
	LastFootstep   time.Duration
}

// Stunned reports whether the stun timer is still running at now.
func (s *Status) Stunned(now time.Duration) bool { return now < s.StunnedUntil }

// Frozen reports whether the freeze timer is still running at now.
func (s *Status) Frozen(now time.Duration) bool { return now < s.FrozenUntil }

// Excited reports whether the excited emotion is active at now.
func (s *Status) Excited(now time.Duration) bool { return now < s.ExcitedUntil }

// Navigation holds the active path and the planner mailbox.
type Navigation struct {
	Waypoints   []Cell
	Mailbox     *Mailbox // Heap allocated so workers never hold component storage
	Dest        Cell
	HasDest     bool
	Pending     bool // Dest set but the planner has not accepted a request yet
	LastRequest time.Duration

	// Last destination whose search failed
	Failed     bool
	FailedDest Cell
	FailedAt   time.Duration
}

// Active reports whether the agent is following a path or waiting for one.
func (n *Navigation) Active() bool {
	return len(n.Waypoints) > 0 || n.Pending || (n.Mailbox != nil && n.Mailbox.Requesting())
}

// RecentlyFailed reports whether a search toward c failed within backoff of now.
func (n *Navigation) RecentlyFailed(c Cell, now, backoff time.Duration) bool {
	return n.Failed && n.FailedDest == c && now-n.FailedAt < backoff
}

// Memory holds what an agent remembers between evaluations.
// Cross references are ids resolved through the simulation each use.
type Memory struct {
	ChaseTarget    AgentID
	LastSeen       Cell
	HasLastSeen    bool
	Investigate    Cell
	HasInvestigate bool
	Suspicion      map[AgentID]float32
	PatrolIndex    int
	Wander         Cell
	HasWander      bool
}

// Inventory holds money and items.
type Inventory struct {
	Money     int
	Keys      int
	Ammo      int
	Lockpicks int
}

// Agent is a per-tick view over one agent's components.
// Pointers reference ECS storage and are invalid after any structural change to the world.
type Agent struct {
	Identity  *Identity
	Transform *Transform
	Vitals    *Vitals
	Status    *Status
	Nav       *Navigation
	Memory    *Memory
	Inventory *Inventory
}

// ID returns the agent's id.
func (a Agent) ID() AgentID { return a.Identity.ID }

// Landmarks holds named map locations used by the decision layer.
type Landmarks struct {
	Homes        []Cell
	Shop         Cell
	WorkSpots    map[SubRole][]Cell
	PatrolPoints []Cell
	HidingSpots  []Cell
	Spawns       []Cell
}
