package game

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/duskfall/behavior"
	"github.com/pthm-cable/duskfall/components"
	"github.com/pthm-cable/duskfall/config"
	"github.com/pthm-cable/duskfall/systems"
	"github.com/pthm-cable/duskfall/telemetry"
)

// Options configures a simulation session.
type Options struct {
	Seed       int64
	Grid       *systems.TileGrid // Required
	Landmarks  *components.Landmarks
	Minigame   Minigame // Defaults to a TimedMinigame
	StartPhase components.Phase

	Output      *telemetry.OutputManager
	LogStats    bool
	SnapshotDir string
	Journal     bool // Keep events for DrainEvents

	// Lockstep waits for every path search before a step returns.
	// Results then always arrive on the following tick.
	Lockstep bool

	OnStats func(telemetry.WindowStats)
	OnPhase func(phase components.Phase, day int)
}

// AgentSpec describes an agent to spawn.
type AgentSpec struct {
	Name     string
	Role     components.Role
	Disguise components.Role
	SubRole  components.SubRole
	Cell     components.Cell
	Home     components.Cell
	Remote   bool // Mirrored from the network; no local AI
}

type pendingCommand struct {
	agent components.AgentID
	cmd   behavior.Command
}

// Simulation is one game session: the agent arena plus the world services
// every agent shares. It is driven from a single goroutine; only path
// workers and QueueSync run concurrently with it.
type Simulation struct {
	cfg       *config.Config
	SessionID uuid.UUID
	seed      int64

	world  *ecs.World
	mapper *ecs.Map7[
		components.Identity,
		components.Transform,
		components.Vitals,
		components.Status,
		components.Navigation,
		components.Memory,
		components.Inventory,
	]
	filter *ecs.Filter7[
		components.Identity,
		components.Transform,
		components.Vitals,
		components.Status,
		components.Navigation,
		components.Memory,
		components.Inventory,
	]

	// Agents by id; order holds ids in creation order
	entities    map[components.AgentID]ecs.Entity
	controllers map[components.AgentID]*Controller
	order       []components.AgentID
	nextID      components.AgentID

	grid      *systems.TileGrid
	sight     *systems.Visibility
	spatial   *systems.SpatialIndex
	noise     *systems.NoiseBus
	planner   *systems.PathPlanner
	clock     *PhaseClock
	landmarks *components.Landmarks
	minigame  Minigame
	board     *behavior.Blackboard
	parallel  *perceptionPool

	now      time.Duration
	tick     int32
	frozen   bool
	blackout bool

	inboxMu sync.Mutex
	inbox   []SyncEvent

	commands []pendingCommand
	journal  []telemetry.Event
	keepLog  bool
	lockstep bool

	// Telemetry
	collector      *telemetry.Collector
	perf           *telemetry.PerfCollector
	lifetime       *telemetry.LifetimeTracker
	bookmarks      *telemetry.BookmarkDetector
	output         *telemetry.OutputManager
	logStats       bool
	snapshotDir    string
	droppedSeen    uint64
	droppedRetired uint64
	onStats        func(telemetry.WindowStats)
	onPhase        func(components.Phase, int)
}

// New creates a session over opts.Grid. It panics if the grid is missing.
func New(cfg *config.Config, opts Options) *Simulation {
	if opts.Grid == nil {
		panic("game: simulation requires a tile grid")
	}
	landmarks := opts.Landmarks
	if landmarks == nil {
		landmarks = &components.Landmarks{}
	}

	world := ecs.NewWorld()
	s := &Simulation{
		cfg:       cfg,
		SessionID: uuid.New(),
		seed:      opts.Seed,
		world:     world,
		mapper: ecs.NewMap7[
			components.Identity,
			components.Transform,
			components.Vitals,
			components.Status,
			components.Navigation,
			components.Memory,
			components.Inventory,
		](world),
		filter: ecs.NewFilter7[
			components.Identity,
			components.Transform,
			components.Vitals,
			components.Status,
			components.Navigation,
			components.Memory,
			components.Inventory,
		](world),
		entities:    make(map[components.AgentID]ecs.Entity),
		controllers: make(map[components.AgentID]*Controller),
		nextID:      1,

		grid:      opts.Grid,
		sight:     systems.NewVisibility(opts.Grid, float32(cfg.Vision.MaxDistance)),
		spatial:   systems.NewSpatialIndex(float32(cfg.World.SpatialCellSize)),
		planner:   systems.NewPathPlanner(opts.Grid, cfg.Pathfinding.MaxExpansions),
		clock:     NewPhaseClock(cfg.Derived.PhaseDurations, opts.StartPhase),
		landmarks: landmarks,
		parallel:  newPerceptionPool(),

		keepLog:  opts.Journal,
		lockstep: opts.Lockstep,

		collector:   telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Derived.DT32),
		perf:        telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		lifetime:    telemetry.NewLifetimeTracker(),
		bookmarks:   telemetry.NewBookmarkDetector(10),
		output:      opts.Output,
		logStats:    opts.LogStats,
		snapshotDir: opts.SnapshotDir,
		onStats:     opts.OnStats,
		onPhase:     opts.OnPhase,
	}
	s.noise = systems.NewNoiseBus(s.Now)

	s.minigame = opts.Minigame
	if s.minigame == nil {
		s.minigame = NewTimedMinigame(cfg.Derived.WorkDuration, s.Now)
	}

	if err := s.output.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config", "error", err)
	}

	slog.Info("session started",
		"session", s.SessionID.String(),
		"seed", opts.Seed,
		"grid", fmt.Sprintf("%dx%d", opts.Grid.Width(), opts.Grid.Height()),
		"phase", opts.StartPhase.String(),
	)
	return s
}

// Spawn creates an agent standing at the center of spec.Cell and returns its id.
func (s *Simulation) Spawn(spec AgentSpec) components.AgentID {
	cfg := s.cfg
	id := s.nextID
	s.nextID++

	disguise := spec.Disguise
	if spec.Role != components.RoleMafia {
		disguise = spec.Role
	}
	x, y := s.grid.CellCenter(spec.Cell)

	ident := components.Identity{
		ID:       id,
		Name:     spec.Name,
		Role:     spec.Role,
		Disguise: disguise,
		SubRole:  spec.SubRole,
		Master:   !spec.Remote,
		Home:     spec.Home,
	}
	tr := components.Transform{X: x, Y: y, Z: spec.Cell.Z, FacingX: 1}
	vit := components.Vitals{
		HP:    float32(cfg.Population.StartingHP),
		AP:    float32(cfg.Population.StartingAP),
		Alive: true,
	}
	st := components.Status{Battery: float32(cfg.Population.StartingBattery)}
	if spec.Role == components.RolePolice {
		st.SirenCharges = cfg.AI.SirenCharges
	}
	nav := components.Navigation{Mailbox: components.NewMailbox()}
	mem := components.Memory{Suspicion: make(map[components.AgentID]float32)}
	inv := components.Inventory{Money: cfg.Population.StartingMoney}

	s.entities[id] = s.mapper.NewEntity(&ident, &tr, &vit, &st, &nav, &mem, &inv)
	s.order = append(s.order, id)
	s.spatial.Add(id, x, y)
	s.lifetime.Register(id, spec.Name, spec.Role, s.tick)

	s.controllers[id] = newController(s, id, spec.Role, s.seed)
	return id
}

// Agent returns a view over an agent's components. The view is invalid
// after the next Spawn or Despawn.
func (s *Simulation) Agent(id components.AgentID) (components.Agent, bool) {
	e, ok := s.entities[id]
	if !ok || !s.world.Alive(e) {
		return components.Agent{}, false
	}
	ident, tr, vit, st, nav, mem, inv := s.mapper.Get(e)
	return components.Agent{
		Identity:  ident,
		Transform: tr,
		Vitals:    vit,
		Status:    st,
		Nav:       nav,
		Memory:    mem,
		Inventory: inv,
	}, true
}

// Despawn removes an agent from the session.
func (s *Simulation) Despawn(id components.AgentID) {
	e, ok := s.entities[id]
	if !ok {
		return
	}
	if a, ok := s.Agent(id); ok {
		a.Nav.Mailbox.Invalidate()
		s.droppedRetired += a.Nav.Mailbox.Dropped()
	}
	s.minigame.Cancel(id)
	s.spatial.Remove(id)
	s.world.RemoveEntity(e)
	delete(s.entities, id)
	delete(s.controllers, id)
	for i, other := range s.order {
		if other == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Step advances the session by one tick.
func (s *Simulation) Step() {
	cfg := s.cfg
	s.perf.StartTick()

	s.perf.StartPhase(telemetry.PhaseSync)
	s.drainSync()

	s.perf.StartPhase(telemetry.PhaseClock)
	s.now += cfg.Derived.DT
	if !s.frozen && s.clock.Advance(cfg.Derived.DT) {
		s.onPhaseChange()
	}
	s.noise.Tick()
	s.minigame.Tick(s.now)

	s.perf.StartPhase(telemetry.PhaseBlackboard)
	s.buildBlackboard()
	perceptions := s.precomputePerception()

	s.perf.StartPhase(telemetry.PhaseAgents)
	s.commands = s.commands[:0]
	for _, id := range s.order {
		a, ok := s.Agent(id)
		if !ok {
			continue
		}
		if cmd := s.controllers[id].Update(a, s.board, perceptions[id]); cmd != "" {
			s.commands = append(s.commands, pendingCommand{agent: id, cmd: cmd})
		}
	}

	s.perf.StartPhase(telemetry.PhaseSpatial)
	s.updateSpatial()

	s.perf.StartPhase(telemetry.PhaseCommands)
	for _, pc := range s.commands {
		s.applyCommand(pc)
	}

	if s.lockstep {
		s.planner.Wait()
	}
	s.tick++

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	s.flushTelemetry()

	s.perf.EndTick()
}

// buildBlackboard snapshots every agent before any of them updates.
func (s *Simulation) buildBlackboard() {
	s.board = &behavior.Blackboard{
		Now:       s.now,
		Phase:     s.clock.Phase(),
		Frozen:    s.frozen,
		Blackout:  s.blackout,
		Noises:    s.noise.Snapshot(),
		Grid:      s.grid,
		Sight:     s.sight,
		Spatial:   s.spatial,
		Landmarks: s.landmarks,
		Cfg:       s.cfg,
	}

	snaps := make([]behavior.AgentSnapshot, 0, len(s.order))
	query := s.filter.Query()
	for query.Next() {
		ident, tr, vit, st, nav, mem, inv := query.Get()
		snaps = append(snaps, behavior.SnapshotOf(components.Agent{
			Identity: ident, Transform: tr, Vitals: vit, Status: st,
			Nav: nav, Memory: mem, Inventory: inv,
		}))
	}
	s.board.SetAgents(snaps)
}

// updateSpatial moves live agents in the index and drops the dead.
func (s *Simulation) updateSpatial() {
	for _, id := range s.order {
		a, ok := s.Agent(id)
		if !ok {
			continue
		}
		if !a.Vitals.Alive {
			s.spatial.Remove(id)
			continue
		}
		s.spatial.Update(id, a.Transform.X, a.Transform.Y)
	}
}

func (s *Simulation) applyCommand(pc pendingCommand) {
	a, ok := s.Agent(pc.agent)
	if !ok {
		return
	}
	switch pc.cmd {
	case behavior.CmdTriggerSiren:
		s.emitNoise(a, systems.NoiseSiren, s.cfg.Noise.Siren)
		until := s.now + s.cfg.Derived.ExcitedDuration
		for _, id := range s.order {
			other, ok := s.Agent(id)
			if ok && other.Vitals.Alive && other.Status.ExcitedUntil < until {
				other.Status.ExcitedUntil = until
			}
		}
		s.record(telemetry.Event{Type: telemetry.EventSiren, Tick: s.tick, Agent: pc.agent, Role: a.Identity.Role})
		slog.Info("siren", "agent", pc.agent, "tick", s.tick)

	case behavior.CmdSabotageLights:
		s.blackout = true
		s.record(telemetry.Event{Type: telemetry.EventSabotage, Tick: s.tick, Agent: pc.agent, Role: a.Identity.Role})
		slog.Info("lights cut", "agent", pc.agent, "tick", s.tick)

	default:
		slog.Warn("unknown command", "agent", pc.agent, "command", string(pc.cmd))
	}
}

// onPhaseChange applies the effects of entering the clock's current phase.
func (s *Simulation) onPhaseChange() {
	phase := s.clock.Phase()
	s.blackout = false

	for _, id := range s.order {
		a, ok := s.Agent(id)
		if !ok {
			continue
		}
		switch phase {
		case components.PhaseNight:
			a.Status.SabotagedNight = false
		case components.PhaseDawn:
			a.Status.WorkDone = 0
		}
	}

	s.record(telemetry.NewPhaseEvent(s.tick, phase, s.clock.Day()))
	slog.Info("phase", "phase", phase.String(), "day", s.clock.Day(), "tick", s.tick)
	if s.onPhase != nil {
		s.onPhase(phase, s.clock.Day())
	}
}

// emitNoise emits a noise of kind at the agent's position.
func (s *Simulation) emitNoise(a components.Agent, kind systems.NoiseKind, spec config.NoiseSpec) {
	s.noise.Emit(systems.NoiseEvent{
		X:          a.Transform.X,
		Y:          a.Transform.Y,
		Z:          a.Transform.Z,
		Radius:     float32(spec.Radius),
		Kind:       kind,
		SourceRole: a.Identity.Role,
		Source:     a.Identity.ID,
		Duration:   spec.NoiseDuration(),
	})
}

// record routes an event to telemetry and the journal.
func (s *Simulation) record(e telemetry.Event) {
	s.collector.Record(e)
	s.lifetime.Record(e)
	if s.keepLog {
		s.journal = append(s.journal, e)
	}
}

// DrainEvents returns the journaled events since the last call.
func (s *Simulation) DrainEvents() []telemetry.Event {
	out := s.journal
	s.journal = nil
	return out
}

// SetFrozen freezes or releases every agent and the phase clock.
func (s *Simulation) SetFrozen(frozen bool) {
	s.frozen = frozen
}

// Now returns the simulation time.
func (s *Simulation) Now() time.Duration { return s.now }

// Tick returns the number of completed steps.
func (s *Simulation) Tick() int32 { return s.tick }

// Phase returns the current day phase.
func (s *Simulation) Phase() components.Phase { return s.clock.Phase() }

// Clock returns the phase clock.
func (s *Simulation) Clock() *PhaseClock { return s.clock }

// Blackout reports whether the lights are out.
func (s *Simulation) Blackout() bool { return s.blackout }

// Frozen reports whether the session is frozen.
func (s *Simulation) Frozen() bool { return s.frozen }

// Grid returns the session's tile grid.
func (s *Simulation) Grid() *systems.TileGrid { return s.grid }

// Noise returns the session's noise bus.
func (s *Simulation) Noise() *systems.NoiseBus { return s.noise }

// Planner returns the session's path planner.
func (s *Simulation) Planner() *systems.PathPlanner { return s.planner }

// Lifetime returns the per-agent ledger.
func (s *Simulation) Lifetime() *telemetry.LifetimeTracker { return s.lifetime }

// AgentIDs returns every agent id in creation order.
func (s *Simulation) AgentIDs() []components.AgentID {
	return append([]components.AgentID(nil), s.order...)
}

// Branch returns the decision branch an agent last took.
func (s *Simulation) Branch(id components.AgentID) string {
	if c := s.controllers[id]; c != nil {
		return c.branch
	}
	return ""
}

// Close waits for outstanding searches, stops the worker pool, and writes
// the per-agent ledger.
func (s *Simulation) Close() error {
	s.planner.Wait()
	s.parallel.stopWorkers()
	if err := s.output.WriteAgents(s.lifetime); err != nil {
		return fmt.Errorf("writing agent ledger: %w", err)
	}
	slog.Info("session closed", "session", s.SessionID.String(), "tick", s.tick)
	return nil
}

// agentRand returns the decision random source for one agent. Each agent
// gets its own stream so evaluation order never changes another's draws.
func agentRand(seed int64, id components.AgentID) *rand.Rand {
	return rand.New(rand.NewSource(seed + int64(id)*7919))
}
