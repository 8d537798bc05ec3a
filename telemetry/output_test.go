package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/duskfall/components"
	"github.com/pthm-cable/duskfall/config"
)

// TestOutputManagerWritesHeaderOnce verifies appended CSV rows share one header.
func TestOutputManagerWritesHeaderOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}

	for i := int32(1); i <= 3; i++ {
		if err := om.WriteTelemetry(WindowStats{WindowEndTick: i * 100, Phase: "NOON", Kills: int(i)}); err != nil {
			t.Fatalf("WriteTelemetry: %v", err)
		}
	}
	if err := om.WritePerf(PerfStats{}, 300); err != nil {
		t.Fatalf("WritePerf: %v", err)
	}
	if err := om.WriteBookmark(Bookmark{Type: BookmarkKillSpree, Tick: 300, Description: "x"}); err != nil {
		t.Fatalf("WriteBookmark: %v", err)
	}
	if err := om.WriteConfig(config.Default()); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatalf("read telemetry.csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("telemetry.csv has %d lines, want 4", len(lines))
	}
	if !strings.HasPrefix(lines[0], "window_end,sim_time,phase") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if strings.Count(string(data), "window_end") != 1 {
		t.Error("header written more than once")
	}

	for _, name := range []string{"perf.csv", "bookmarks.csv", "config.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
}

// TestOutputManagerDisabled verifies an empty dir disables output.
func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v; want nil, nil", om, err)
	}
	if err := om.WriteTelemetry(WindowStats{}); err != nil {
		t.Errorf("nil manager write: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("nil manager close: %v", err)
	}
}

// TestWriteAgents verifies the lifetime ledger is exported in id order.
func TestWriteAgents(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}
	defer om.Close()

	lt := NewLifetimeTracker()
	lt.Register(2, "Vera", components.RoleCitizen, 0)
	lt.Register(1, "Sal", components.RoleMafia, 0)
	lt.Record(Event{Type: EventKill, Tick: 50, Agent: 1, Target: 2})
	lt.Record(Event{Type: EventPathFound, Agent: 1})
	lt.AddDistance(1, 64)

	if got := lt.Get(1); got.Kills != 1 || got.PathsFound != 1 || got.Distance != 64 {
		t.Errorf("ledger for 1 = %+v", got)
	}
	if got := lt.Get(2); got.DeathTick != 50 || got.KilledBy != 1 {
		t.Errorf("ledger for 2 = %+v", got)
	}

	if err := om.WriteAgents(lt); err != nil {
		t.Fatalf("WriteAgents: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "agents.csv"))
	if err != nil {
		t.Fatalf("read agents.csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("agents.csv has %d lines, want 3", len(lines))
	}
	if !strings.HasPrefix(lines[1], "1,Sal,MAFIA") {
		t.Errorf("first row = %q, want Sal first", lines[1])
	}
}
