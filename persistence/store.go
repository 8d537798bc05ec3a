// Package persistence provides SQLite-based session storage: periodic
// snapshots of every agent and an append-only event journal.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/duskfall/telemetry"
)

// ErrNoSnapshot is returned when a session has no saved snapshot.
var ErrNoSnapshot = errors.New("no snapshot")

// Store wraps a SQLite connection for session persistence.
type Store struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		started_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		phase TEXT NOT NULL,
		day INTEGER NOT NULL,
		remaining_ms INTEGER NOT NULL,
		blackout INTEGER NOT NULL,
		frozen INTEGER NOT NULL,
		sim_time REAL NOT NULL,
		saved_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_states (
		snapshot_id INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		disguise TEXT NOT NULL,
		sub_role TEXT NOT NULL,
		master INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		z INTEGER NOT NULL,
		facing_x REAL NOT NULL,
		facing_y REAL NOT NULL,
		hp REAL NOT NULL,
		ap REAL NOT NULL,
		alive INTEGER NOT NULL,
		hiding TEXT NOT NULL,
		money INTEGER NOT NULL,
		keys INTEGER NOT NULL,
		ammo INTEGER NOT NULL,
		lockpicks INTEGER NOT NULL,
		PRIMARY KEY (snapshot_id, agent_id)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		type TEXT NOT NULL,
		agent INTEGER NOT NULL,
		role TEXT NOT NULL,
		target INTEGER NOT NULL,
		cell_x INTEGER NOT NULL,
		cell_y INTEGER NOT NULL,
		cell_z INTEGER NOT NULL,
		amount REAL NOT NULL,
		detail TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_session ON snapshots(session_id, tick);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, tick);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// BeginSession records a session's seed. Re-registering a session is a no-op.
func (s *Store) BeginSession(sessionID string, seed int64) error {
	_, err := s.conn.Exec(
		"INSERT OR IGNORE INTO sessions (session_id, seed, started_at) VALUES (?, ?, ?)",
		sessionID, seed, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("begin session %s: %w", sessionID, err)
	}
	return nil
}

// snapshotRow is the snapshots table without its agents.
type snapshotRow struct {
	ID          int64   `db:"id"`
	SessionID   string  `db:"session_id"`
	Version     int     `db:"version"`
	Tick        int32   `db:"tick"`
	Phase       string  `db:"phase"`
	Day         int     `db:"day"`
	RemainingMS int64   `db:"remaining_ms"`
	Blackout    bool    `db:"blackout"`
	Frozen      bool    `db:"frozen"`
	SimTimeSec  float64 `db:"sim_time"`
	SavedAt     string  `db:"saved_at"`
}

type agentRow struct {
	SnapshotID int64 `db:"snapshot_id"`
	telemetry.AgentState
}

// SaveSnapshot writes a snapshot and its agents in one transaction and
// returns the snapshot's row id.
func (s *Store) SaveSnapshot(snap *telemetry.Snapshot) (int64, error) {
	tx, err := s.conn.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.NamedExec(`INSERT INTO snapshots
		(session_id, version, tick, phase, day, remaining_ms, blackout, frozen, sim_time, saved_at)
		VALUES (:session_id, :version, :tick, :phase, :day, :remaining_ms, :blackout, :frozen, :sim_time, :saved_at)`,
		snapshotRow{
			SessionID:   snap.SessionID,
			Version:     snap.Version,
			Tick:        snap.Tick,
			Phase:       snap.Phase,
			Day:         snap.Day,
			RemainingMS: snap.RemainingMS,
			Blackout:    snap.Blackout,
			Frozen:      snap.Frozen,
			SimTimeSec:  snap.SimTimeSec,
			SavedAt:     time.Now().UTC().Format(time.RFC3339),
		})
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, a := range snap.Agents {
		_, err := tx.NamedExec(`INSERT INTO agent_states
			(snapshot_id, agent_id, name, role, disguise, sub_role, master,
			 x, y, z, facing_x, facing_y, hp, ap, alive, hiding,
			 money, keys, ammo, lockpicks)
			VALUES (:snapshot_id, :agent_id, :name, :role, :disguise, :sub_role, :master,
			 :x, :y, :z, :facing_x, :facing_y, :hp, :ap, :alive, :hiding,
			 :money, :keys, :ammo, :lockpicks)`,
			agentRow{SnapshotID: id, AgentState: a})
		if err != nil {
			return 0, fmt.Errorf("insert agent %d: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	slog.Debug("snapshot stored", "session", snap.SessionID, "tick", snap.Tick, "agents", len(snap.Agents))
	return id, nil
}

// LatestSnapshot loads the most recent snapshot of a session.
// Returns ErrNoSnapshot if none was saved.
func (s *Store) LatestSnapshot(sessionID string) (*telemetry.Snapshot, error) {
	var row snapshotRow
	err := s.conn.Get(&row,
		"SELECT * FROM snapshots WHERE session_id = ? ORDER BY tick DESC, id DESC LIMIT 1",
		sessionID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNoSnapshot)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	snap := &telemetry.Snapshot{
		Version:     row.Version,
		SessionID:   row.SessionID,
		Tick:        row.Tick,
		Phase:       row.Phase,
		Day:         row.Day,
		RemainingMS: row.RemainingMS,
		Blackout:    row.Blackout,
		Frozen:      row.Frozen,
		SimTimeSec:  row.SimTimeSec,
	}
	if err := s.conn.Get(&snap.Seed, "SELECT seed FROM sessions WHERE session_id = ?", sessionID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var rows []agentRow
	if err := s.conn.Select(&rows,
		"SELECT * FROM agent_states WHERE snapshot_id = ? ORDER BY agent_id",
		row.ID,
	); err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}
	snap.Agents = make([]telemetry.AgentState, len(rows))
	for i, r := range rows {
		snap.Agents[i] = r.AgentState
	}
	return snap, nil
}

// EventRecord is one journaled event.
type EventRecord struct {
	Tick   int32   `db:"tick"`
	Type   string  `db:"type"`
	Agent  uint32  `db:"agent"`
	Role   string  `db:"role"`
	Target uint32  `db:"target"`
	CellX  int     `db:"cell_x"`
	CellY  int     `db:"cell_y"`
	CellZ  int     `db:"cell_z"`
	Amount float64 `db:"amount"`
	Detail string  `db:"detail"`
}

// AppendEvents appends events to a session's journal.
func (s *Store) AppendEvents(sessionID string, events []telemetry.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO events
		(session_id, tick, type, agent, role, target, cell_x, cell_y, cell_z, amount, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		_, err := stmt.Exec(
			sessionID, e.Tick, e.Type.String(), uint32(e.Agent), e.Role.String(), uint32(e.Target),
			e.Cell.X, e.Cell.Y, e.Cell.Z, e.Amount, e.Detail,
		)
		if err != nil {
			return fmt.Errorf("insert event at tick %d: %w", e.Tick, err)
		}
	}

	return tx.Commit()
}

// RecentEvents returns a session's most recent events, newest first.
func (s *Store) RecentEvents(sessionID string, limit int) ([]EventRecord, error) {
	var events []EventRecord
	err := s.conn.Select(&events,
		`SELECT tick, type, agent, role, target, cell_x, cell_y, cell_z, amount, detail
		 FROM events WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, limit,
	)
	return events, err
}

// EventCounts returns how many events of each type a session journaled.
func (s *Store) EventCounts(sessionID string) (map[string]int, error) {
	var rows []struct {
		Type  string `db:"type"`
		Count int    `db:"n"`
	}
	err := s.conn.Select(&rows,
		"SELECT type, COUNT(*) AS n FROM events WHERE session_id = ? GROUP BY type",
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Type] = r.Count
	}
	return out, nil
}
