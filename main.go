package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pthm-cable/duskfall/components"
	"github.com/pthm-cable/duskfall/config"
	"github.com/pthm-cable/duskfall/game"
	"github.com/pthm-cable/duskfall/mapgen"
	"github.com/pthm-cable/duskfall/netsync"
	"github.com/pthm-cable/duskfall/persistence"
	"github.com/pthm-cable/duskfall/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for bookmark snapshot files")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	dbPath := flag.String("db", "", "SQLite file for session snapshots and the event journal")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	relayURL := flag.String("relay", "", "Relay websocket URL, e.g. ws://localhost:8420/sync")
	peerID := flag.String("peer-id", "", "Peer id on the relay (empty = session id)")
	mirror := flag.Bool("mirror", false, "Spawn every agent as a network mirror with no local AI")
	syncEvery := flag.Int("sync-every", 3, "Ticks between state broadcasts to the relay")
	realtime := flag.Bool("realtime", false, "Pace ticks to wall-clock time")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *statsWindow > 0 {
		cfg.Telemetry.StatsWindow = *statsWindow
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	if err := run(cfg, runOptions{
		seed:        rngSeed,
		maxTicks:    *maxTicks,
		logStats:    *logStats,
		snapshotDir: *snapshotDir,
		outputDir:   *outputDir,
		dbPath:      *dbPath,
		relayURL:    *relayURL,
		peerID:      *peerID,
		mirror:      *mirror,
		syncEvery:   max(1, *syncEvery),
		realtime:    *realtime,
	}); err != nil {
		slog.Error("session failed", "error", err)
		os.Exit(1)
	}
}

type runOptions struct {
	seed        int64
	maxTicks    int
	logStats    bool
	snapshotDir string
	outputDir   string
	dbPath      string
	relayURL    string
	peerID      string
	mirror      bool
	syncEvery   int
	realtime    bool
}

// journalEvery is how many ticks of events are batched per journal write.
const journalEvery = 120

func run(cfg *config.Config, ro runOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	output, err := telemetry.NewOutputManager(ro.outputDir)
	if err != nil {
		return err
	}
	defer output.Close()

	var store *persistence.Store
	if ro.dbPath != "" {
		store, err = persistence.Open(ro.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	town := mapgen.Generate(cfg, ro.seed)

	var sim *game.Simulation
	saveSnapshot := func() {
		if store == nil {
			return
		}
		if _, err := store.SaveSnapshot(sim.Snapshot()); err != nil {
			slog.Error("failed to store snapshot", "error", err)
		}
	}

	sim = game.New(cfg, game.Options{
		Seed:        ro.seed,
		Grid:        town.Grid,
		Landmarks:   &town.Landmarks,
		StartPhase:  components.PhaseMorning,
		Output:      output,
		LogStats:    ro.logStats,
		SnapshotDir: ro.snapshotDir,
		Journal:     store != nil,
		OnPhase: func(components.Phase, int) {
			saveSnapshot()
		},
	})
	session := sim.SessionID.String()

	if store != nil {
		if err := store.BeginSession(session, ro.seed); err != nil {
			return err
		}
	}

	populate(sim, cfg, town, ro.mirror)

	var client *netsync.Client
	if ro.relayURL != "" {
		id := ro.peerID
		if id == "" {
			id = session
		}
		client, err = netsync.Dial(ctx, ro.relayURL, id, sim, time.Duration(cfg.Relay.WriteTimeout*float64(time.Second)))
		if err != nil {
			return err
		}
		defer client.Close()
		go func() {
			if err := client.Run(ctx); err != nil {
				slog.Error("relay connection lost", "error", err)
			}
		}()
	}

	slog.Info("starting headless session",
		"session", session,
		"seed", ro.seed,
		"agents", len(sim.AgentIDs()),
		"max_ticks", ro.maxTicks,
		"relay", ro.relayURL != "",
	)

	var pace <-chan time.Time
	if ro.realtime {
		ticker := time.NewTicker(cfg.Derived.DT)
		defer ticker.Stop()
		pace = ticker.C
	}

	flushJournal := func() {
		if store == nil {
			return
		}
		if err := store.AppendEvents(session, sim.DrainEvents()); err != nil {
			slog.Error("failed to journal events", "error", err)
		}
	}

loop:
	for {
		select {
		case <-ctx.Done():
			slog.Info("interrupted", "tick", sim.Tick())
			break loop
		default:
		}

		sim.Step()
		tick := int(sim.Tick())

		if client != nil && tick%ro.syncEvery == 0 {
			if err := client.Send(sim.SyncState()); err != nil {
				slog.Warn("failed to publish state", "error", err)
			}
		}
		if tick%journalEvery == 0 {
			flushJournal()
		}
		if ro.maxTicks > 0 && tick >= ro.maxTicks {
			slog.Info("max ticks reached", "tick", tick)
			break
		}
		if pace != nil {
			select {
			case <-pace:
			case <-ctx.Done():
			}
		}
	}

	flushJournal()
	saveSnapshot()
	return sim.Close()
}

// populate spawns the configured cast on the town's spawn points.
func populate(sim *game.Simulation, cfg *config.Config, town *mapgen.Town, mirror bool) {
	lm := town.Landmarks
	jobs := []components.SubRole{components.SubRoleFarmer, components.SubRoleMiner, components.SubRoleFisher}
	pop := cfg.Population
	cast := []struct {
		role  components.Role
		count int
	}{
		{components.RoleCitizen, pop.Citizens},
		{components.RoleMafia, pop.Mafia},
		{components.RolePolice, pop.Police},
		{components.RoleDoctor, pop.Doctors},
	}

	n := 0
	for _, c := range cast {
		for i := 0; i < c.count; i++ {
			spec := game.AgentSpec{
				Name:     fmt.Sprintf("%s-%d", c.role, i+1),
				Role:     c.role,
				Disguise: components.RoleCitizen,
				Remote:   mirror,
			}
			if c.role == components.RoleCitizen {
				spec.SubRole = jobs[i%len(jobs)]
			}
			if len(lm.Spawns) > 0 {
				spec.Cell = lm.Spawns[n%len(lm.Spawns)]
			}
			if len(lm.Homes) > 0 {
				spec.Home = lm.Homes[n%len(lm.Homes)]
			}
			sim.Spawn(spec)
			n++
		}
	}
}
