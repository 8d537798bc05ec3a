package game

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/duskfall/components"
)

// SyncKind identifies a network sync event.
type SyncKind string

const (
	SyncAgent  SyncKind = "agent"  // Position and facing of a mirrored agent
	SyncPhase  SyncKind = "phase"  // Authoritative phase and time remaining
	SyncFreeze SyncKind = "freeze" // Meeting or vote freeze toggled
)

// SyncEvent is one update delivered by the network layer.
type SyncEvent struct {
	Kind SyncKind `json:"kind"`

	Agent   components.AgentID `json:"agent,omitempty"`
	X       float32            `json:"x,omitempty"`
	Y       float32            `json:"y,omitempty"`
	Z       int                `json:"z,omitempty"`
	FacingX float32            `json:"facing_x,omitempty"`
	FacingY float32            `json:"facing_y,omitempty"`
	Dead    bool               `json:"dead,omitempty"`

	Phase       string `json:"phase,omitempty"`
	RemainingMS int64  `json:"remaining_ms,omitempty"`

	Frozen bool `json:"frozen,omitempty"`
}

// QueueSync queues an event for the next step. Safe for concurrent use.
func (s *Simulation) QueueSync(ev SyncEvent) {
	s.inboxMu.Lock()
	s.inbox = append(s.inbox, ev)
	s.inboxMu.Unlock()
}

// drainSync applies every queued event in arrival order.
func (s *Simulation) drainSync() {
	s.inboxMu.Lock()
	events := s.inbox
	s.inbox = nil
	s.inboxMu.Unlock()

	for _, ev := range events {
		s.applySync(ev)
	}
}

func (s *Simulation) applySync(ev SyncEvent) {
	switch ev.Kind {
	case SyncAgent:
		a, ok := s.Agent(ev.Agent)
		if !ok {
			slog.Debug("sync for unknown agent", "agent", ev.Agent)
			return
		}
		if a.Identity.Master {
			return
		}
		t := a.Transform
		t.TargetX, t.TargetY, t.TargetZ = ev.X, ev.Y, ev.Z
		t.TargetFacingX, t.TargetFacingY = ev.FacingX, ev.FacingY
		t.HasTarget = true
		if ev.Dead {
			a.Vitals.Alive = false
			a.Vitals.HP = 0
		}

	case SyncPhase:
		phase, err := components.ParsePhase(ev.Phase)
		if err != nil {
			slog.Warn("bad phase sync", "error", err)
			return
		}
		if s.clock.Sync(phase, time.Duration(ev.RemainingMS)*time.Millisecond) {
			s.onPhaseChange()
		}

	case SyncFreeze:
		s.frozen = ev.Frozen

	default:
		slog.Warn("unknown sync event", "kind", string(ev.Kind))
	}
}

// SyncState returns the events describing this process's authoritative
// state: the phase clock and every master agent, in creation order.
func (s *Simulation) SyncState() []SyncEvent {
	out := []SyncEvent{{
		Kind:        SyncPhase,
		Phase:       s.clock.Phase().String(),
		RemainingMS: s.clock.Remaining().Milliseconds(),
	}}
	for _, id := range s.order {
		a, ok := s.Agent(id)
		if !ok || !a.Identity.Master {
			continue
		}
		t := a.Transform
		out = append(out, SyncEvent{
			Kind:    SyncAgent,
			Agent:   id,
			X:       t.X,
			Y:       t.Y,
			Z:       t.Z,
			FacingX: t.FacingX,
			FacingY: t.FacingY,
			Dead:    !a.Vitals.Alive,
		})
	}
	return out
}
