package game

import (
	"log/slog"
	"sort"

	"github.com/pthm-cable/duskfall/components"
	"github.com/pthm-cable/duskfall/telemetry"
)

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (s *Simulation) flushTelemetry() {
	if !s.collector.ShouldFlush(s.tick) {
		return
	}

	// Stale results discarded since the last window
	dropped := s.staleDropped()
	s.collector.RecordStaleDropped(dropped - s.droppedSeen)
	s.droppedSeen = dropped

	stats := s.collector.Flush(s.tick, s.census())
	perfStats := s.perf.Stats()

	if s.onStats != nil {
		s.onStats(stats)
	}

	if s.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := s.output.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if err := s.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		slog.Error("failed to write perf", "error", err)
	}

	for _, bm := range s.bookmarks.Check(stats) {
		if s.logStats {
			bm.LogBookmark()
		}
		if err := s.output.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
		if s.snapshotDir != "" {
			s.saveSnapshot(&bm)
		}
	}
}

// census samples the population at window end.
func (s *Simulation) census() telemetry.Census {
	c := telemetry.Census{
		Phase:  s.clock.Phase(),
		Day:    s.clock.Day(),
		Noises: s.noise.Len(),
	}

	query := s.filter.Query()
	for query.Next() {
		ident, _, vit, st, _, _, _ := query.Get()
		if !vit.Alive {
			c.Dead++
			continue
		}
		if int(ident.Role) < len(c.Alive) {
			c.Alive[ident.Role]++
		}
		if st.Hiding != components.HidingNone {
			c.Hidden++
		}
		if st.Excited(s.now) {
			c.Excited++
		}
		if st.Working {
			c.Working++
		}
	}
	return c
}

// staleDropped totals discarded path results across every mailbox,
// including agents that have been despawned.
func (s *Simulation) staleDropped() uint64 {
	total := s.droppedRetired
	query := s.filter.Query()
	for query.Next() {
		_, _, _, _, nav, _, _ := query.Get()
		if nav.Mailbox != nil {
			total += nav.Mailbox.Dropped()
		}
	}
	return total
}

// saveSnapshot creates and saves a snapshot to disk.
func (s *Simulation) saveSnapshot(bookmark *telemetry.Bookmark) {
	snapshot := s.Snapshot()
	snapshot.Bookmark = bookmark

	path, err := telemetry.SaveSnapshot(snapshot, s.snapshotDir)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}

	slog.Info("snapshot saved", "path", path, "tick", s.tick)
}

// Snapshot builds a snapshot of the session, agents ordered by id.
func (s *Simulation) Snapshot() *telemetry.Snapshot {
	snapshot := &telemetry.Snapshot{
		Version:     telemetry.SnapshotVersion,
		SessionID:   s.SessionID.String(),
		Seed:        s.seed,
		Tick:        s.tick,
		Phase:       s.clock.Phase().String(),
		Day:         s.clock.Day(),
		RemainingMS: s.clock.Remaining().Milliseconds(),
		Blackout:    s.blackout,
		Frozen:      s.frozen,
		SimTimeSec:  s.now.Seconds(),
	}

	query := s.filter.Query()
	for query.Next() {
		ident, tr, vit, st, _, _, inv := query.Get()
		snapshot.Agents = append(snapshot.Agents, telemetry.AgentState{
			ID:        uint32(ident.ID),
			Name:      ident.Name,
			Role:      ident.Role.String(),
			Disguise:  ident.Disguise.String(),
			SubRole:   ident.SubRole.String(),
			Master:    ident.Master,
			X:         tr.X,
			Y:         tr.Y,
			Z:         tr.Z,
			FacingX:   tr.FacingX,
			FacingY:   tr.FacingY,
			HP:        vit.HP,
			AP:        vit.AP,
			Alive:     vit.Alive,
			Hiding:    st.Hiding.String(),
			Money:     inv.Money,
			Keys:      inv.Keys,
			Ammo:      inv.Ammo,
			Lockpicks: inv.Lockpicks,
		})
	}
	sort.Slice(snapshot.Agents, func(i, j int) bool {
		return snapshot.Agents[i].ID < snapshot.Agents[j].ID
	})
	return snapshot
}
