package game

import (
	"sort"
	"time"

	"github.com/pthm-cable/duskfall/components"
)

// MinigameWork is the job minigame started by the work action.
const MinigameWork = "work"

// Callbacks receive a minigame's outcome. Either may be nil.
type Callbacks struct {
	OnSuccess func()
	OnFail    func()
}

// Minigame runs interactive tasks on behalf of agents and reports back.
type Minigame interface {
	// Start begins kind for agent. Returns false if the agent is already playing.
	Start(agent components.AgentID, kind string, cb Callbacks) bool
	// Cancel ends the agent's game as a failure.
	Cancel(agent components.AgentID)
	// Tick resolves games that finished by now.
	Tick(now time.Duration)
}

type timedGame struct {
	kind  string
	until time.Duration
	cb    Callbacks
}

// TimedMinigame resolves every game as a success after a fixed duration.
// It stands in for interactive minigames when agents are AI driven.
type TimedMinigame struct {
	duration time.Duration
	clock    func() time.Duration
	active   map[components.AgentID]timedGame
}

// NewTimedMinigame creates a minigame lasting d on the given clock.
func NewTimedMinigame(d time.Duration, clock func() time.Duration) *TimedMinigame {
	return &TimedMinigame{
		duration: d,
		clock:    clock,
		active:   make(map[components.AgentID]timedGame),
	}
}

func (m *TimedMinigame) Start(agent components.AgentID, kind string, cb Callbacks) bool {
	if _, ok := m.active[agent]; ok {
		return false
	}
	m.active[agent] = timedGame{kind: kind, until: m.clock() + m.duration, cb: cb}
	return true
}

func (m *TimedMinigame) Cancel(agent components.AgentID) {
	g, ok := m.active[agent]
	if !ok {
		return
	}
	delete(m.active, agent)
	if g.cb.OnFail != nil {
		g.cb.OnFail()
	}
}

// Tick resolves finished games in agent id order.
func (m *TimedMinigame) Tick(now time.Duration) {
	var done []components.AgentID
	for id, g := range m.active {
		if now >= g.until {
			done = append(done, id)
		}
	}
	sort.Slice(done, func(i, j int) bool { return done[i] < done[j] })
	for _, id := range done {
		g := m.active[id]
		delete(m.active, id)
		if g.cb.OnSuccess != nil {
			g.cb.OnSuccess()
		}
	}
}

// Active returns the number of games in progress.
func (m *TimedMinigame) Active() int {
	return len(m.active)
}
