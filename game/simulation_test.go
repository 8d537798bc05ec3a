package game

import (
	"testing"

	"github.com/pthm-cable/duskfall/behavior"
	"github.com/pthm-cable/duskfall/components"
	"github.com/pthm-cable/duskfall/config"
	"github.com/pthm-cable/duskfall/systems"
	"github.com/pthm-cable/duskfall/telemetry"
)

// newTestSim creates a lockstep session whose trees evaluate once, on the
// first step, so tests can steer agents directly afterwards.
func newTestSim(t *testing.T, grid *systems.TileGrid, opts Options, tweak func(cfg *config.Config)) *Simulation {
	t.Helper()
	cfg := config.Default()
	cfg.Sim.AIInterval = 1_000_000
	if tweak != nil {
		tweak(cfg)
	}
	opts.Grid = grid
	opts.Lockstep = true
	s := New(cfg, opts)
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

// withController runs fn with the agent's controller bound as it is during Update.
func withController(s *Simulation, id components.AgentID, fn func(c *Controller)) {
	c := s.controllers[id]
	a, _ := s.Agent(id)
	c.agent = a
	fn(c)
	c.agent = components.Agent{}
}

// route replaces the agent's path with one to dest and waits for the search.
func route(s *Simulation, id components.AgentID, dest components.Cell) {
	withController(s, id, func(c *Controller) {
		c.ClearPath()
		c.SetDestination(dest)
	})
	s.planner.Wait()
}

// stepUntil steps at most n times until cond holds.
func stepUntil(s *Simulation, n int, cond func() bool) bool {
	for i := 0; i < n; i++ {
		if cond() {
			return true
		}
		s.Step()
	}
	return cond()
}

func mustAgent(t *testing.T, s *Simulation, id components.AgentID) components.Agent {
	t.Helper()
	a, ok := s.Agent(id)
	if !ok {
		t.Fatalf("agent %d missing", id)
	}
	return a
}

func cellOf(s *Simulation, a components.Agent) components.Cell {
	return s.grid.WorldToCell(a.Transform.X, a.Transform.Y, a.Transform.Z)
}

// doorGrid is a 12x3 corridor split by a wall at x=6 with door in its middle.
func doorGrid(door systems.TileID) *systems.TileGrid {
	g := systems.NewTileGrid(12, 3, 1, 32)
	for y := 0; y < 3; y++ {
		g.SetTile(6, y, 0, systems.TileWallBrick, 0, systems.LayerWall)
	}
	g.SetTile(6, 1, 0, door, 2, systems.LayerWall)
	return g
}

var (
	doorCell = components.Cell{X: 6, Y: 1}
	farSide  = components.Cell{X: 9, Y: 1}
)

// TestSpawnDefaults verifies spawned agents get ids, config stats, and an index entry.
func TestSpawnDefaults(t *testing.T) {
	s := newTestSim(t, systems.NewTileGrid(10, 10, 1, 32), Options{}, nil)
	cop := s.Spawn(AgentSpec{Name: "Ray", Role: components.RolePolice, Disguise: components.RoleMafia, Cell: components.Cell{X: 3, Y: 4}})
	boss := s.Spawn(AgentSpec{Name: "Sal", Role: components.RoleMafia, Disguise: components.RoleCitizen})

	if cop != 1 || boss != 2 {
		t.Fatalf("ids = %d, %d; want 1, 2", cop, boss)
	}
	a := mustAgent(t, s, cop)
	if a.Identity.Disguise != components.RolePolice {
		t.Errorf("non-mafia disguise = %s, want own role", a.Identity.Disguise)
	}
	if a.Status.SirenCharges != s.cfg.AI.SirenCharges {
		t.Errorf("SirenCharges = %d", a.Status.SirenCharges)
	}
	if got := cellOf(s, a); got != (components.Cell{X: 3, Y: 4}) {
		t.Errorf("cell = %+v", got)
	}
	if !a.Identity.Master || !a.Vitals.Alive || a.Vitals.HP != float32(s.cfg.Population.StartingHP) {
		t.Errorf("unexpected vitals %+v master=%v", *a.Vitals, a.Identity.Master)
	}
	if mustAgent(t, s, boss).Identity.Disguise != components.RoleCitizen {
		t.Error("mafia disguise not kept")
	}
	if !s.spatial.Contains(cop) || s.lifetime.Count() != 2 {
		t.Error("spawn not indexed")
	}
}

// TestDespawn verifies removal from every lookup.
func TestDespawn(t *testing.T) {
	s := newTestSim(t, systems.NewTileGrid(10, 10, 1, 32), Options{}, nil)
	a := s.Spawn(AgentSpec{Role: components.RoleCitizen})
	b := s.Spawn(AgentSpec{Role: components.RoleCitizen})

	s.Despawn(a)
	s.Despawn(a)

	if _, ok := s.Agent(a); ok {
		t.Error("despawned agent still resolves")
	}
	if ids := s.AgentIDs(); len(ids) != 1 || ids[0] != b {
		t.Errorf("AgentIDs = %v", ids)
	}
	if s.spatial.Contains(a) {
		t.Error("despawned agent still indexed")
	}
	s.Step()
}

// TestNewWithoutGridPanics verifies a missing grid is a programming error.
func TestNewWithoutGridPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	New(config.Default(), Options{})
}

// TestLockedDoorLockpicking verifies an agent without a key picks the lock,
// keeps its path, and walks on once the unlock time has passed.
func TestLockedDoorLockpicking(t *testing.T) {
	s := newTestSim(t, doorGrid(systems.TileDoorLocked), Options{StartPhase: components.PhaseMorning}, nil)
	id := s.Spawn(AgentSpec{Name: "Vera", Role: components.RoleCitizen, Cell: components.Cell{X: 2, Y: 1}})
	s.Step()
	route(s, id, farSide)

	picking := func() bool { return mustAgent(t, s, id).Status.Lockpicking }
	if !stepUntil(s, 300, picking) {
		t.Fatal("agent never started lockpicking")
	}

	a := mustAgent(t, s, id)
	if len(a.Nav.Waypoints) == 0 || a.Nav.Waypoints[0] != doorCell {
		t.Fatalf("path abandoned: %v", a.Nav.Waypoints)
	}
	if a.Inventory.Keys != 0 {
		t.Errorf("Keys = %d", a.Inventory.Keys)
	}
	if got := a.Status.LockpickUntil - s.Now(); got > s.cfg.Derived.LockpickDuration {
		t.Errorf("unlock in %v, want at most %v", got, s.cfg.Derived.LockpickDuration)
	}

	x, y := a.Transform.X, a.Transform.Y
	until := a.Status.LockpickUntil
	for s.Now()+s.cfg.Derived.DT < until {
		s.Step()
		a = mustAgent(t, s, id)
		if !a.Status.Lockpicking {
			t.Fatalf("lockpicking ended early at %v, want %v", s.Now(), until)
		}
		if a.Transform.X != x || a.Transform.Y != y {
			t.Fatal("agent moved while lockpicking")
		}
	}

	open := func() bool { return s.grid.GetTile(6, 1, 0, systems.LayerWall) == systems.TileDoorOpen }
	if !stepUntil(s, 5, open) {
		t.Fatal("door not opened after the unlock time")
	}
	if s.grid.Rotation(6, 1, 0, systems.LayerWall) != 2 {
		t.Error("door rotation lost")
	}

	arrived := func() bool { return cellOf(s, mustAgent(t, s, id)) == farSide }
	if !stepUntil(s, 300, arrived) {
		t.Fatalf("agent did not resume, at %+v", cellOf(s, mustAgent(t, s, id)))
	}
	if got := s.lifetime.Get(id).Doors; got != 2 {
		t.Errorf("door interactions = %d, want lockpick and open", got)
	}
}

// TestLockedDoorKey verifies a key opens a locked door immediately.
func TestLockedDoorKey(t *testing.T) {
	s := newTestSim(t, doorGrid(systems.TileDoorLocked), Options{StartPhase: components.PhaseMorning}, nil)
	id := s.Spawn(AgentSpec{Role: components.RoleCitizen, Cell: components.Cell{X: 2, Y: 1}})
	s.Step()
	mustAgent(t, s, id).Inventory.Keys = 1
	route(s, id, farSide)

	arrived := func() bool { return cellOf(s, mustAgent(t, s, id)) == farSide }
	if !stepUntil(s, 400, arrived) {
		t.Fatal("agent did not cross the door")
	}
	a := mustAgent(t, s, id)
	if a.Inventory.Keys != 0 {
		t.Errorf("key not consumed: %d", a.Inventory.Keys)
	}
	if a.Status.Lockpicking {
		t.Error("agent lockpicked despite a key")
	}
	if s.grid.GetTile(6, 1, 0, systems.LayerWall) != systems.TileDoorOpen {
		t.Error("door not open")
	}
}

// TestMafiaBreaksDoorAtNight verifies the destructive entry replaces the unlock flow.
func TestMafiaBreaksDoorAtNight(t *testing.T) {
	s := newTestSim(t, doorGrid(systems.TileDoorLocked), Options{StartPhase: components.PhaseNight}, nil)
	id := s.Spawn(AgentSpec{Role: components.RoleMafia, Disguise: components.RoleCitizen, Cell: components.Cell{X: 2, Y: 1}})
	s.Step()
	route(s, id, farSide)

	broken := func() bool { return s.grid.GetTile(6, 1, 0, systems.LayerWall) == systems.TileDoorBroken }
	if !stepUntil(s, 400, broken) {
		t.Fatal("door never broken")
	}
	if mustAgent(t, s, id).Status.Lockpicking {
		t.Error("mafia queued a lockpick at night")
	}

	heard := false
	for _, e := range s.noise.Snapshot() {
		if e.Kind == systems.NoiseBreak && e.Source == id {
			heard = true
		}
	}
	if !heard {
		t.Error("no break noise")
	}

	arrived := func() bool { return cellOf(s, mustAgent(t, s, id)) == farSide }
	if !stepUntil(s, 400, arrived) {
		t.Fatal("mafia did not pass the broken door")
	}
}

// TestClosedDoorOpens verifies a closed door is opened with a door noise.
func TestClosedDoorOpens(t *testing.T) {
	s := newTestSim(t, doorGrid(systems.TileDoorClosed), Options{StartPhase: components.PhaseMorning}, nil)
	id := s.Spawn(AgentSpec{Role: components.RoleDoctor, Cell: components.Cell{X: 4, Y: 1}})
	s.Step()
	route(s, id, farSide)

	open := func() bool { return s.grid.GetTile(6, 1, 0, systems.LayerWall) == systems.TileDoorOpen }
	if !stepUntil(s, 200, open) {
		t.Fatal("door never opened")
	}
	if got := s.lifetime.Get(id).Doors; got != 1 {
		t.Errorf("Doors = %d, want 1", got)
	}
}

// TestSetDestinationSingleRequest verifies repeated requests spawn one search.
func TestSetDestinationSingleRequest(t *testing.T) {
	s := newTestSim(t, systems.NewTileGrid(20, 20, 1, 32), Options{}, nil)
	id := s.Spawn(AgentSpec{Role: components.RoleCitizen, Cell: components.Cell{X: 1, Y: 1}})
	s.Step()
	s.planner.Wait()
	before := s.planner.Spawned()

	withController(s, id, func(c *Controller) {
		c.ClearPath()
		c.SetDestination(components.Cell{X: 15, Y: 15})
		c.SetDestination(components.Cell{X: 15, Y: 15})
		c.SetDestination(components.Cell{X: 10, Y: 3})
	})
	s.planner.Wait()

	if got := s.planner.Spawned() - before; got != 1 {
		t.Errorf("spawned %d searches, want 1", got)
	}
	if got := mustAgent(t, s, id).Nav.Dest; got != (components.Cell{X: 15, Y: 15}) {
		t.Errorf("Dest = %+v, want the first destination", got)
	}
}

// TestSetDestinationClearsHiding verifies moving out of a hiding spot.
func TestSetDestinationClearsHiding(t *testing.T) {
	g := systems.NewTileGrid(10, 10, 1, 32)
	g.SetTile(2, 2, 0, systems.TileBush, 0, systems.LayerObject)
	s := newTestSim(t, g, Options{}, nil)
	id := s.Spawn(AgentSpec{Role: components.RoleCitizen, Cell: components.Cell{X: 2, Y: 2}})

	var hid bool
	withController(s, id, func(c *Controller) { hid = c.Hide() })
	if !hid || mustAgent(t, s, id).Status.Hiding != components.HidingPassive {
		t.Fatal("bush did not hide the agent")
	}

	route(s, id, components.Cell{X: 8, Y: 8})
	if mustAgent(t, s, id).Status.Hiding != components.HidingNone {
		t.Error("hiding not cleared by a new destination")
	}
}

// TestFailedPathRecorded verifies an unreachable destination is marked failed.
func TestFailedPathRecorded(t *testing.T) {
	g := systems.NewTileGrid(11, 11, 1, 32)
	for x := 0; x < 11; x++ {
		g.SetTile(x, 10-x, 0, systems.TileWallBrick, 0, systems.LayerWall)
	}
	s := newTestSim(t, g, Options{}, nil)
	id := s.Spawn(AgentSpec{Role: components.RoleCitizen})
	s.Step()
	goal := components.Cell{X: 10, Y: 10}
	route(s, id, goal)
	s.Step()

	a := mustAgent(t, s, id)
	if !a.Nav.RecentlyFailed(goal, s.Now(), s.cfg.Derived.FailureBackoff) {
		t.Errorf("failure not recorded: %+v", *a.Nav)
	}
	if a.Nav.Active() {
		t.Error("navigation still active after failure")
	}
	if s.lifetime.Get(id).PathsFailed != 1 {
		t.Errorf("PathsFailed = %d", s.lifetime.Get(id).PathsFailed)
	}
}

// TestStunnedAgentIsInert verifies stunned agents neither move nor collect paths.
func TestStunnedAgentIsInert(t *testing.T) {
	s := newTestSim(t, systems.NewTileGrid(20, 20, 1, 32), Options{}, nil)
	id := s.Spawn(AgentSpec{Role: components.RoleCitizen, Cell: components.Cell{X: 1, Y: 1}})
	s.Step()
	route(s, id, components.Cell{X: 10, Y: 1})

	a := mustAgent(t, s, id)
	a.Status.StunnedUntil = s.Now() + s.cfg.Derived.StunDuration
	x := a.Transform.X
	for i := 0; i < 30; i++ {
		s.Step()
	}
	a = mustAgent(t, s, id)
	if a.Transform.X != x {
		t.Error("stunned agent moved")
	}
	if len(a.Nav.Waypoints) != 0 {
		t.Error("stunned agent collected its path")
	}

	moved := func() bool { return mustAgent(t, s, id).Transform.X > x }
	if !stepUntil(s, 200, moved) {
		t.Error("agent did not move after the stun wore off")
	}
}

// TestFrozenSessionIsInert verifies a freeze sync stops agents and the clock.
func TestFrozenSessionIsInert(t *testing.T) {
	s := newTestSim(t, systems.NewTileGrid(20, 20, 1, 32), Options{StartPhase: components.PhaseNoon}, nil)
	id := s.Spawn(AgentSpec{Role: components.RoleCitizen, Cell: components.Cell{X: 1, Y: 1}})
	s.Step()
	route(s, id, components.Cell{X: 10, Y: 1})

	s.QueueSync(SyncEvent{Kind: SyncFreeze, Frozen: true})
	s.Step()
	if !s.Frozen() {
		t.Fatal("freeze not applied")
	}
	x := mustAgent(t, s, id).Transform.X
	remaining := s.Clock().Remaining()
	for i := 0; i < 20; i++ {
		s.Step()
	}
	if mustAgent(t, s, id).Transform.X != x {
		t.Error("agent moved while frozen")
	}
	if s.Clock().Remaining() != remaining {
		t.Error("clock advanced while frozen")
	}

	s.QueueSync(SyncEvent{Kind: SyncFreeze, Frozen: false})
	moved := func() bool { return mustAgent(t, s, id).Transform.X > x }
	if !stepUntil(s, 100, moved) {
		t.Error("agent did not resume after the freeze")
	}
}

// TestRemoteInterpolation verifies mirrored agents ease toward network state.
func TestRemoteInterpolation(t *testing.T) {
	s := newTestSim(t, systems.NewTileGrid(20, 20, 1, 32), Options{}, nil)
	remote := s.Spawn(AgentSpec{Role: components.RoleCitizen, Cell: components.Cell{X: 1, Y: 1}, Remote: true})
	local := s.Spawn(AgentSpec{Role: components.RoleCitizen, Cell: components.Cell{X: 5, Y: 5}})

	start := mustAgent(t, s, remote).Transform.X
	target := start + 100
	s.QueueSync(SyncEvent{Kind: SyncAgent, Agent: remote, X: target, Y: mustAgent(t, s, remote).Transform.Y, FacingY: 1})
	s.QueueSync(SyncEvent{Kind: SyncAgent, Agent: local, X: 0, Y: 0})
	s.QueueSync(SyncEvent{Kind: SyncAgent, Agent: 99, X: 0, Y: 0})
	s.Step()

	x := mustAgent(t, s, remote).Transform.X
	if x <= start || x >= target {
		t.Errorf("after one step x = %v, want strictly between %v and %v", x, start, target)
	}
	if mustAgent(t, s, local).Transform.HasTarget {
		t.Error("master agent accepted a network target")
	}

	for i := 0; i < 60; i++ {
		s.Step()
	}
	a := mustAgent(t, s, remote)
	if d := target - a.Transform.X; d > 0.5 || d < -0.5 {
		t.Errorf("x = %v, want close to %v", a.Transform.X, target)
	}
	if a.Transform.FacingY != 1 {
		t.Error("facing not mirrored")
	}
}

// TestPhaseSync verifies a phase sync drives phase effects.
func TestPhaseSync(t *testing.T) {
	var phases []components.Phase
	s := newTestSim(t, systems.NewTileGrid(10, 10, 1, 32), Options{
		StartPhase: components.PhaseEvening,
		OnPhase:    func(p components.Phase, day int) { phases = append(phases, p) },
	}, nil)
	id := s.Spawn(AgentSpec{Role: components.RoleCitizen})
	a := mustAgent(t, s, id)
	a.Status.SabotagedNight = true

	s.applyCommand(pendingCommand{agent: id, cmd: behavior.CmdSabotageLights})
	if !s.Blackout() {
		t.Fatal("sabotage did not cut the lights")
	}

	s.QueueSync(SyncEvent{Kind: SyncPhase, Phase: "night", RemainingMS: 5000})
	s.QueueSync(SyncEvent{Kind: SyncPhase, Phase: "bogus"})
	s.Step()

	if s.Phase() != components.PhaseNight {
		t.Fatalf("Phase = %s", s.Phase())
	}
	if s.Blackout() {
		t.Error("blackout survived the phase change")
	}
	if mustAgent(t, s, id).Status.SabotagedNight {
		t.Error("sabotage flag not reset at NIGHT")
	}
	if len(phases) != 1 || phases[0] != components.PhaseNight {
		t.Errorf("OnPhase calls = %v", phases)
	}
}

// TestDawnResetsWork verifies the work quota resets each day.
func TestDawnResetsWork(t *testing.T) {
	s := newTestSim(t, systems.NewTileGrid(10, 10, 1, 32), Options{StartPhase: components.PhaseNight}, nil)
	id := s.Spawn(AgentSpec{Role: components.RoleCitizen})
	mustAgent(t, s, id).Status.WorkDone = 3

	s.QueueSync(SyncEvent{Kind: SyncPhase, Phase: "DAWN", RemainingMS: 1000})
	s.Step()
	if got := mustAgent(t, s, id).Status.WorkDone; got != 0 {
		t.Errorf("WorkDone = %d after DAWN", got)
	}
	if s.Clock().Day() != 2 {
		t.Errorf("Day = %d", s.Clock().Day())
	}
}

// TestSirenCommand verifies the siren excites everyone and is heard map-wide.
func TestSirenCommand(t *testing.T) {
	s := newTestSim(t, systems.NewTileGrid(40, 40, 1, 32), Options{Journal: true}, nil)
	cop := s.Spawn(AgentSpec{Role: components.RolePolice, Cell: components.Cell{X: 1, Y: 1}})
	far := s.Spawn(AgentSpec{Role: components.RoleCitizen, Cell: components.Cell{X: 38, Y: 38}})

	s.applyCommand(pendingCommand{agent: cop, cmd: behavior.CmdTriggerSiren})

	if !mustAgent(t, s, far).Status.Excited(s.Now()) {
		t.Error("distant citizen not excited")
	}
	var siren *systems.NoiseEvent
	for _, e := range s.noise.Snapshot() {
		if e.Kind == systems.NoiseSiren {
			siren = &e
		}
	}
	if siren == nil {
		t.Fatal("no siren noise")
	}
	fa := mustAgent(t, s, far)
	if !siren.Audible(fa.Transform.X, fa.Transform.Y, fa.Transform.Z) {
		t.Error("siren not audible across the map")
	}

	events := s.DrainEvents()
	if len(events) != 1 || events[0].Type != telemetry.EventSiren || events[0].Agent != cop {
		t.Errorf("journal = %+v", events)
	}
	if len(s.DrainEvents()) != 0 {
		t.Error("journal not cleared")
	}
}

// TestTelemetryWindow verifies window stats are produced with a census.
func TestTelemetryWindow(t *testing.T) {
	var got []telemetry.WindowStats
	s := newTestSim(t, systems.NewTileGrid(10, 10, 1, 32), Options{
		StartPhase: components.PhaseMorning,
		OnStats:    func(w telemetry.WindowStats) { got = append(got, w) },
	}, func(cfg *config.Config) {
		cfg.Telemetry.StatsWindow = 0.5
	})
	s.Spawn(AgentSpec{Role: components.RoleCitizen, Cell: components.Cell{X: 1, Y: 1}})
	s.Spawn(AgentSpec{Role: components.RoleMafia, Disguise: components.RoleCitizen, Cell: components.Cell{X: 8, Y: 8}})
	dead := s.Spawn(AgentSpec{Role: components.RolePolice, Cell: components.Cell{X: 5, Y: 5}})
	mustAgent(t, s, dead).Vitals.Alive = false

	for i := 0; i < 40; i++ {
		s.Step()
	}
	if len(got) == 0 {
		t.Fatal("no window flushed")
	}
	w := got[0]
	if w.Citizens != 1 || w.Mafia != 1 || w.Police != 0 || w.Dead != 1 {
		t.Errorf("census = %+v", w)
	}
	if w.Phase != "MORNING" || w.Day != 1 {
		t.Errorf("phase = %s day %d", w.Phase, w.Day)
	}
}

// TestSnapshot verifies the session snapshot lists agents in id order.
func TestSnapshot(t *testing.T) {
	s := newTestSim(t, systems.NewTileGrid(10, 10, 1, 32), Options{Seed: 7, StartPhase: components.PhaseNoon}, nil)
	s.Spawn(AgentSpec{Name: "A", Role: components.RoleMafia, Disguise: components.RoleDoctor})
	s.Spawn(AgentSpec{Name: "B", Role: components.RoleCitizen, SubRole: components.SubRoleFisher, Remote: true})
	s.Step()

	snap := s.Snapshot()
	if snap.Seed != 7 || snap.Tick != 1 || snap.Phase != "NOON" || snap.SessionID != s.SessionID.String() {
		t.Errorf("header = %+v", snap)
	}
	if len(snap.Agents) != 2 || snap.Agents[0].Name != "A" || snap.Agents[1].Name != "B" {
		t.Fatalf("agents = %+v", snap.Agents)
	}
	if snap.Agents[0].Disguise != "DOCTOR" || snap.Agents[1].SubRole != "FISHER" || snap.Agents[1].Master {
		t.Errorf("agent fields = %+v", snap.Agents)
	}
}

// TestSyncState verifies only authoritative agents are published.
func TestSyncState(t *testing.T) {
	s := newTestSim(t, systems.NewTileGrid(10, 10, 1, 32), Options{StartPhase: components.PhaseAfternoon}, nil)
	master := s.Spawn(AgentSpec{Role: components.RoleCitizen, Cell: components.Cell{X: 2, Y: 3}})
	s.Spawn(AgentSpec{Role: components.RoleCitizen, Remote: true})

	events := s.SyncState()
	if len(events) != 2 {
		t.Fatalf("got %d events, want phase plus one agent", len(events))
	}
	if events[0].Kind != SyncPhase || events[0].Phase != "AFTERNOON" || events[0].RemainingMS <= 0 {
		t.Errorf("phase event = %+v", events[0])
	}
	a := mustAgent(t, s, master)
	if events[1].Agent != master || events[1].X != a.Transform.X || events[1].Y != a.Transform.Y {
		t.Errorf("agent event = %+v", events[1])
	}
}
