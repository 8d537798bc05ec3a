// Package telemetry provides session health tracking, incident bookmarks, and CSV output.
package telemetry

import "github.com/pthm-cable/duskfall/components"

// EventType identifies telemetry events.
type EventType uint8

const (
	EventPathFound EventType = iota
	EventPathFailed
	EventAttack
	EventKill
	EventStun
	EventHeal
	EventSiren
	EventSabotage
	EventDoorOpen
	EventDoorBreak
	EventLockpick
	EventPurchase
	EventWorkDone
	EventStuck
	EventPhase
)

var eventNames = [...]string{
	EventPathFound:  "path_found",
	EventPathFailed: "path_failed",
	EventAttack:     "attack",
	EventKill:       "kill",
	EventStun:       "stun",
	EventHeal:       "heal",
	EventSiren:      "siren",
	EventSabotage:   "sabotage",
	EventDoorOpen:   "door_open",
	EventDoorBreak:  "door_break",
	EventLockpick:   "lockpick",
	EventPurchase:   "purchase",
	EventWorkDone:   "work_done",
	EventStuck:      "stuck",
	EventPhase:      "phase",
}

// String returns the event name.
func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// Event represents a single telemetry event.
type Event struct {
	Type  EventType
	Tick  int32
	Agent components.AgentID
	Role  components.Role

	// Optional fields depending on event type
	Target components.AgentID // attack, kill, heal
	Cell   components.Cell    // doors, path goals
	Amount float64            // path length, damage, price
	Detail string             // item name, phase name
}

// NewPathEvent creates a path completion event.
func NewPathEvent(tick int32, agent components.AgentID, role components.Role, goal components.Cell, length int, failed bool) Event {
	t := EventPathFound
	if failed {
		t = EventPathFailed
	}
	return Event{Type: t, Tick: tick, Agent: agent, Role: role, Cell: goal, Amount: float64(length)}
}

// NewAttackEvent creates an attack event. kill reports whether the target died.
func NewAttackEvent(tick int32, attacker components.AgentID, role components.Role, target components.AgentID, damage float32, kill bool) Event {
	t := EventAttack
	if kill {
		t = EventKill
	}
	return Event{Type: t, Tick: tick, Agent: attacker, Role: role, Target: target, Amount: float64(damage)}
}

// NewDoorEvent creates a door interaction event.
func NewDoorEvent(t EventType, tick int32, agent components.AgentID, role components.Role, cell components.Cell) Event {
	return Event{Type: t, Tick: tick, Agent: agent, Role: role, Cell: cell}
}

// NewPhaseEvent creates a phase change event.
func NewPhaseEvent(tick int32, phase components.Phase, day int) Event {
	return Event{Type: EventPhase, Tick: tick, Detail: phase.String(), Amount: float64(day)}
}
