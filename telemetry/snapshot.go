package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the observable session state at one tick.
type Snapshot struct {
	Version   int    `json:"version"`
	SessionID string `json:"session_id"`
	Seed      int64  `json:"seed"`

	Tick        int32   `json:"tick"`
	Phase       string  `json:"phase"`
	Day         int     `json:"day"`
	RemainingMS int64   `json:"remaining_ms"`
	Blackout    bool    `json:"blackout"`
	Frozen      bool    `json:"frozen"`
	SimTimeSec  float64 `json:"sim_time"`

	Agents []AgentState `json:"agents"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// AgentState holds one agent's persisted state.
type AgentState struct {
	ID       uint32 `json:"id" db:"agent_id"`
	Name     string `json:"name" db:"name"`
	Role     string `json:"role" db:"role"`
	Disguise string `json:"disguise" db:"disguise"`
	SubRole  string `json:"sub_role" db:"sub_role"`
	Master   bool   `json:"master" db:"master"`

	X       float32 `json:"x" db:"x"`
	Y       float32 `json:"y" db:"y"`
	Z       int     `json:"z" db:"z"`
	FacingX float32 `json:"facing_x" db:"facing_x"`
	FacingY float32 `json:"facing_y" db:"facing_y"`

	HP     float32 `json:"hp" db:"hp"`
	AP     float32 `json:"ap" db:"ap"`
	Alive  bool    `json:"alive" db:"alive"`
	Hiding string  `json:"hiding" db:"hiding"`

	Money     int `json:"money" db:"money"`
	Keys      int `json:"keys" db:"keys"`
	Ammo      int `json:"ammo" db:"ammo"`
	Lockpicks int `json:"lockpicks" db:"lockpicks"`
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	// Build filename
	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	name += ".json"

	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}
