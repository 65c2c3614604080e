// Package store records finished runs in SQLite for later analysis. Nothing
// in it is ever loaded back into a live simulation.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/envsim/envsim/sim"
	"github.com/envsim/envsim/sim/trace"
)

// RunRecord is the summary row of one run.
type RunRecord struct {
	ID             int64   `db:"id"`
	UUID           string  `db:"uuid"`
	StartedUnixMs  int64   `db:"started_unix_ms"`
	TicksPerSecond float64 `db:"ticks_per_second"`
	SimSpeed       float64 `db:"sim_speed"`
	Strategy       string  `db:"strategy"`
	Index          string  `db:"index_kind"`
	TotalTicks     int64   `db:"total_ticks"`
	FinalStep      int64   `db:"final_step"`
	FinalRuntime   float64 `db:"final_runtime"`
	FinalSimulated float64 `db:"final_simulated"`
	MeanFPS        float64 `db:"mean_fps"`
	MaxFPS         float64 `db:"max_fps"`
}

// ApplySummary copies the trace summary into the record.
func (r *RunRecord) ApplySummary(s *trace.TraceSummary) {
	r.TotalTicks = int64(s.TotalTicks)
	r.FinalStep = int64(s.FinalStep)
	r.FinalRuntime = s.FinalRuntime
	r.FinalSimulated = s.FinalSimulated
	r.MeanFPS = s.MeanFPS
	r.MaxFPS = s.MaxFPS
}

// AgentRow is an agent's final position in a run.
type AgentRow struct {
	RunID   int64   `db:"run_id"`
	AgentID string  `db:"agent_id"`
	Kind    string  `db:"kind"`
	X       float64 `db:"x"`
	Y       float64 `db:"y"`
}

// DB wraps a SQLite connection for run recording.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		started_unix_ms INTEGER NOT NULL,
		ticks_per_second REAL NOT NULL,
		sim_speed REAL NOT NULL,
		strategy TEXT NOT NULL,
		index_kind TEXT NOT NULL,
		total_ticks INTEGER NOT NULL,
		final_step INTEGER NOT NULL,
		final_runtime REAL NOT NULL,
		final_simulated REAL NOT NULL,
		mean_fps REAL NOT NULL,
		max_fps REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ticks (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		step INTEGER NOT NULL,
		fps REAL NOT NULL,
		runtime REAL NOT NULL,
		simulated REAL NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE TABLE IF NOT EXISTS agents (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		agent_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		PRIMARY KEY (run_id, agent_id)
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun writes the run, its tick trace and final agent positions in one
// transaction and returns the new run id. An empty UUID is generated.
func (db *DB) SaveRun(run RunRecord, ticks []trace.TickRecord, agents []AgentRow) (int64, error) {
	if run.UUID == "" {
		run.UUID = uuid.NewString()
	}
	tx, err := db.conn.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.NamedExec(`INSERT INTO runs
		(uuid, started_unix_ms, ticks_per_second, sim_speed, strategy, index_kind,
		 total_ticks, final_step, final_runtime, final_simulated, mean_fps, max_fps)
		VALUES (:uuid, :started_unix_ms, :ticks_per_second, :sim_speed, :strategy, :index_kind,
		 :total_ticks, :final_step, :final_runtime, :final_simulated, :mean_fps, :max_fps)`, run)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	tickStmt, err := tx.Preparex(`INSERT INTO ticks (run_id, step, fps, runtime, simulated) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer tickStmt.Close()
	for _, t := range ticks {
		if _, err := tickStmt.Exec(id, int64(t.Step), t.FPS, t.Runtime, t.Simulated); err != nil {
			return 0, fmt.Errorf("insert tick %d: %w", t.Step, err)
		}
	}

	agentStmt, err := tx.Preparex(`INSERT INTO agents (run_id, agent_id, kind, x, y) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer agentStmt.Close()
	for _, a := range agents {
		if _, err := agentStmt.Exec(id, a.AgentID, a.Kind, a.X, a.Y); err != nil {
			return 0, fmt.Errorf("insert agent %s: %w", a.AgentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	logrus.Infof("Recorded run %d (%s): %d ticks, %d agents", id, run.UUID, len(ticks), len(agents))
	return id, nil
}

// LoadRun returns the run with the given id.
func (db *DB) LoadRun(id int64) (*RunRecord, error) {
	var run RunRecord
	err := db.conn.Get(&run, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, sim.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns every recorded run, newest first.
func (db *DB) ListRuns() ([]RunRecord, error) {
	var runs []RunRecord
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY id DESC")
	return runs, err
}

// LoadTicks returns the tick trace of a run in step order.
func (db *DB) LoadTicks(runID int64) ([]trace.TickRecord, error) {
	var ticks []trace.TickRecord
	err := db.conn.Select(&ticks,
		"SELECT step, fps, runtime, simulated FROM ticks WHERE run_id = ? ORDER BY step",
		runID,
	)
	return ticks, err
}

// LoadAgents returns the final agent positions of a run, ordered by agent id.
func (db *DB) LoadAgents(runID int64) ([]AgentRow, error) {
	var agents []AgentRow
	err := db.conn.Select(&agents,
		"SELECT run_id, agent_id, kind, x, y FROM agents WHERE run_id = ? ORDER BY agent_id",
		runID,
	)
	return agents, err
}
