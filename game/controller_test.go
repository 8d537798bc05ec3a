package game

import (
	"testing"

	"github.com/pthm-cable/duskfall/behavior"
	"github.com/pthm-cable/duskfall/components"
	"github.com/pthm-cable/duskfall/config"
	"github.com/pthm-cable/duskfall/systems"
	"github.com/pthm-cable/duskfall/telemetry"
)

func openSim(t *testing.T, opts Options, tweak func(cfg *config.Config)) *Simulation {
	t.Helper()
	return newTestSim(t, systems.NewTileGrid(30, 30, 1, 32), opts, tweak)
}

// TestMafiaAttack verifies mafia kill within reach and scream.
func TestMafiaAttack(t *testing.T) {
	s := openSim(t, Options{StartPhase: components.PhaseNight, Journal: true}, nil)
	boss := s.Spawn(AgentSpec{Role: components.RoleMafia, Cell: components.Cell{X: 2, Y: 2}})
	near := s.Spawn(AgentSpec{Role: components.RoleCitizen, Cell: components.Cell{X: 3, Y: 2}})
	far := s.Spawn(AgentSpec{Role: components.RoleCitizen, Cell: components.Cell{X: 6, Y: 2}})

	var hitFar, hitNear bool
	withController(s, boss, func(c *Controller) {
		hitFar = c.Attack(far)
		hitNear = c.Attack(near)
	})
	if hitFar {
		t.Error("attack landed out of reach")
	}
	if !hitNear {
		t.Fatal("attack within reach missed")
	}

	v := mustAgent(t, s, near)
	if v.Vitals.Alive || v.Vitals.HP != 0 {
		t.Errorf("victim vitals = %+v", *v.Vitals)
	}
	screamed := false
	for _, e := range s.noise.Snapshot() {
		screamed = screamed || (e.Kind == systems.NoiseScream && e.Source == boss)
	}
	if !screamed {
		t.Error("no scream")
	}
	events := s.DrainEvents()
	if len(events) != 1 || events[0].Type != telemetry.EventKill || events[0].Target != near {
		t.Errorf("events = %+v", events)
	}
	if s.lifetime.Get(near).KilledBy != uint32(boss) {
		t.Error("death not attributed")
	}

	var again bool
	withController(s, boss, func(c *Controller) { again = c.Attack(near) })
	if again {
		t.Error("dead agents cannot be attacked")
	}

	s.Step()
	if s.spatial.Contains(near) {
		t.Error("dead agent still in the spatial index")
	}
}

// TestPoliceAttack verifies shooting spends ammo and stuns once it runs out.
func TestPoliceAttack(t *testing.T) {
	s := openSim(t, Options{}, nil)
	cop := s.Spawn(AgentSpec{Role: components.RolePolice, Cell: components.Cell{X: 2, Y: 2}})
	suspect := s.Spawn(AgentSpec{Role: components.RoleMafia, Cell: components.Cell{X: 3, Y: 2}})
	mustAgent(t, s, cop).Inventory.Ammo = 1

	withController(s, cop, func(c *Controller) {
		if !c.Attack(suspect) {
			t.Fatal("shot missed")
		}
	})
	a := mustAgent(t, s, suspect)
	if want := float32(s.cfg.Population.StartingHP - s.cfg.AI.AttackDamage); a.Vitals.HP != want {
		t.Errorf("HP = %v, want %v", a.Vitals.HP, want)
	}
	if mustAgent(t, s, cop).Inventory.Ammo != 0 {
		t.Error("ammo not spent")
	}

	withController(s, cop, func(c *Controller) {
		if !c.Attack(suspect) {
			t.Fatal("stun missed")
		}
	})
	a = mustAgent(t, s, suspect)
	if !a.Status.Stunned(s.Now()) || !a.Vitals.Alive {
		t.Errorf("want stunned and alive, got %+v", *a.Status)
	}
}

// TestDoctorHeal verifies healing caps at starting health.
func TestDoctorHeal(t *testing.T) {
	tests := []struct {
		name   string
		hp     float32
		ok     bool
		wantHP float32
	}{
		{"wounded", 40, true, 65},
		{"nearly full", 90, true, 100},
		{"full", 100, false, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openSim(t, Options{}, nil)
			doc := s.Spawn(AgentSpec{Role: components.RoleDoctor, Cell: components.Cell{X: 2, Y: 2}})
			patient := s.Spawn(AgentSpec{Role: components.RoleCitizen, Cell: components.Cell{X: 2, Y: 3}})
			mustAgent(t, s, patient).Vitals.HP = tt.hp

			var ok bool
			withController(s, doc, func(c *Controller) { ok = c.Heal(patient) })
			if ok != tt.ok {
				t.Errorf("Heal = %v, want %v", ok, tt.ok)
			}
			if got := mustAgent(t, s, patient).Vitals.HP; got != tt.wantHP {
				t.Errorf("HP = %v, want %v", got, tt.wantHP)
			}
		})
	}
}

// TestBuy verifies prices are charged and items stocked.
func TestBuy(t *testing.T) {
	s := openSim(t, Options{Journal: true}, nil)
	id := s.Spawn(AgentSpec{Role: components.RolePolice})
	inv := mustAgent(t, s, id).Inventory
	inv.Money = s.cfg.Shop.AmmoPrice + s.cfg.Shop.KeyPrice

	withController(s, id, func(c *Controller) {
		if !c.Buy(behavior.ItemAmmo) || !c.Buy(behavior.ItemKey) {
			t.Fatal("affordable purchase refused")
		}
		if c.Buy(behavior.ItemLockpick) {
			t.Error("purchase without money accepted")
		}
	})
	if inv.Money != 0 || inv.Ammo != 1 || inv.Keys != 1 || inv.Lockpicks != 0 {
		t.Errorf("inventory = %+v", *inv)
	}
	events := s.DrainEvents()
	if len(events) != 2 || events[0].Detail != "ammo" || events[1].Detail != "key" {
		t.Errorf("events = %+v", events)
	}
}

// TestWorkMinigame verifies work pays out once the minigame completes.
func TestWorkMinigame(t *testing.T) {
	s := openSim(t, Options{StartPhase: components.PhaseMorning}, nil)
	id := s.Spawn(AgentSpec{Role: components.RoleCitizen, SubRole: components.SubRoleFarmer})
	money := mustAgent(t, s, id).Inventory.Money
	s.controllers[id].countdown = 1 << 30

	withController(s, id, func(c *Controller) {
		if !c.StartWork() {
			t.Fatal("StartWork refused")
		}
		if c.StartWork() {
			t.Error("second StartWork accepted")
		}
	})
	if !mustAgent(t, s, id).Status.Working {
		t.Fatal("not working")
	}

	done := func() bool { return mustAgent(t, s, id).Status.WorkDone == 1 }
	if !stepUntil(s, 200, done) {
		t.Fatal("work never completed")
	}
	a := mustAgent(t, s, id)
	if a.Status.Working {
		t.Error("still working after completion")
	}
	if a.Inventory.Money != money+s.cfg.AI.WorkPay {
		t.Errorf("Money = %d, want %d", a.Inventory.Money, money+s.cfg.AI.WorkPay)
	}
}

// TestLeavingWorkCancels verifies a new destination abandons the minigame.
func TestLeavingWorkCancels(t *testing.T) {
	s := openSim(t, Options{StartPhase: components.PhaseMorning}, nil)
	id := s.Spawn(AgentSpec{Role: components.RoleCitizen, SubRole: components.SubRoleMiner})

	withController(s, id, func(c *Controller) { c.StartWork() })
	route(s, id, components.Cell{X: 10, Y: 10})

	if mustAgent(t, s, id).Status.Working {
		t.Error("still working after leaving")
	}
	if s.minigame.(*TimedMinigame).Active() != 0 {
		t.Error("minigame still running")
	}
	for i := 0; i < 200; i++ {
		s.Step()
	}
	if got := mustAgent(t, s, id).Status.WorkDone; got != 0 {
		t.Errorf("WorkDone = %d after cancel", got)
	}
}

// TestParallelPerceptionMatches verifies pooled perception equals the inline result.
func TestParallelPerceptionMatches(t *testing.T) {
	s := openSim(t, Options{}, func(cfg *config.Config) {
		cfg.Sim.AIInterval = 1
	})
	for i := 0; i < parallelThreshold+6; i++ {
		s.Spawn(AgentSpec{Role: components.Role(i % 4), Cell: components.Cell{X: i % 10 * 2, Y: i / 10 * 3}})
	}
	s.grid.SetTile(5, 5, 0, systems.TileWallBrick, 0, systems.LayerWall)

	s.buildBlackboard()
	got := s.precomputePerception()
	if len(got) != len(s.order) {
		t.Fatalf("precomputed %d perceptions, want %d", len(got), len(s.order))
	}
	for _, id := range s.order {
		a := mustAgent(t, s, id)
		want := behavior.Perceive(a, s.board)
		p := got[id]
		if len(p.Visible) != len(want.Visible) {
			t.Fatalf("agent %d sees %d, want %d", id, len(p.Visible), len(want.Visible))
		}
		for i := range want.Visible {
			if p.Visible[i].ID != want.Visible[i].ID {
				t.Errorf("agent %d sighting %d = %d, want %d", id, i, p.Visible[i].ID, want.Visible[i].ID)
			}
		}
	}
}

// TestLockstepDeterminism verifies equal seeds replay identically.
func TestLockstepDeterminism(t *testing.T) {
	run := func() *telemetry.Snapshot {
		landmarks := &components.Landmarks{
			Shop:         components.Cell{X: 15, Y: 15},
			Homes:        []components.Cell{{X: 2, Y: 2}, {X: 27, Y: 2}, {X: 2, Y: 27}},
			PatrolPoints: []components.Cell{{X: 5, Y: 5}, {X: 25, Y: 25}},
			WorkSpots:    map[components.SubRole][]components.Cell{components.SubRoleFarmer: {{X: 20, Y: 8}}},
		}
		s := openSim(t, Options{Seed: 42, Landmarks: landmarks, StartPhase: components.PhaseAfternoon}, func(cfg *config.Config) {
			cfg.Sim.AIInterval = 6
		})
		specs := []AgentSpec{
			{Role: components.RoleCitizen, SubRole: components.SubRoleFarmer, Cell: components.Cell{X: 2, Y: 2}, Home: landmarks.Homes[0]},
			{Role: components.RoleCitizen, Cell: components.Cell{X: 27, Y: 2}, Home: landmarks.Homes[1]},
			{Role: components.RoleMafia, Disguise: components.RoleCitizen, Cell: components.Cell{X: 2, Y: 27}, Home: landmarks.Homes[2]},
			{Role: components.RolePolice, Cell: components.Cell{X: 15, Y: 15}},
			{Role: components.RoleDoctor, Cell: components.Cell{X: 10, Y: 20}},
		}
		for _, spec := range specs {
			s.Spawn(spec)
		}
		for i := 0; i < 600; i++ {
			s.Step()
		}
		return s.Snapshot()
	}

	a, b := run(), run()
	if a.Phase != b.Phase || a.Tick != b.Tick {
		t.Fatalf("clock diverged: %s/%d vs %s/%d", a.Phase, a.Tick, b.Phase, b.Tick)
	}
	for i := range a.Agents {
		x, y := a.Agents[i], b.Agents[i]
		if x.X != y.X || x.Y != y.Y || x.Alive != y.Alive || x.Money != y.Money {
			t.Errorf("agent %d diverged: %+v vs %+v", x.ID, x, y)
		}
	}
}
