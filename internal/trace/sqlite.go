package trace

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tickrtos/internal/sched"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id         TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		tick_hz    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		run_id   TEXT NOT NULL REFERENCES runs(id),
		seq      INTEGER NOT NULL,
		tick     INTEGER NOT NULL,
		kind     TEXT NOT NULL,
		task_id  INTEGER NOT NULL,
		name     TEXT NOT NULL,
		priority INTEGER NOT NULL,
		wake     INTEGER,
		error    TEXT,
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_task ON events(run_id, task_id)`,
}

// SQLiteSink stores events in a SQLite database, one run per sink.
type SQLiteSink struct {
	db     *sql.DB
	runID  string
	seq    int64
	logger *slog.Logger
}

// OpenSQLite opens (or creates) a trace database at dbPath and registers a
// new run. Use ":memory:" for an in-memory database.
func OpenSQLite(ctx context.Context, dbPath string, tickHz int, logger *slog.Logger) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// A :memory: database lives on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate trace db: %w", err)
		}
	}

	runID := "run_" + uuid.New().String()
	if _, err := db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, tick_hz) VALUES (?, ?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339Nano), tickHz); err != nil {
		db.Close()
		return nil, fmt.Errorf("insert run: %w", err)
	}

	return &SQLiteSink{
		db:     db,
		runID:  runID,
		logger: logger.With("component", "trace", "run_id", runID),
	}, nil
}

// RunID identifies the run this sink records.
func (s *SQLiteSink) RunID() string { return s.runID }

func (s *SQLiteSink) Record(ev sched.StatusEvent) error {
	s.seq++
	var wake sql.NullInt64
	if ev.Kind == sched.StatusSleep {
		wake = sql.NullInt64{Int64: int64(ev.Wake), Valid: true}
	}
	var errText sql.NullString
	if ev.Err != nil {
		errText = sql.NullString{String: ev.Err.Error(), Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO events (run_id, seq, tick, kind, task_id, name, priority, wake, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, s.seq, int64(ev.Tick), ev.Kind.String(), int64(ev.TaskID), ev.Name, ev.Priority, wake, errText)
	if err != nil {
		return fmt.Errorf("insert event %d: %w", s.seq, err)
	}
	return nil
}

// CountByKind returns how many events of each kind the run recorded.
func (s *SQLiteSink) CountByKind(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM events WHERE run_id = ? GROUP BY kind`, s.runID)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	s.logger.Debug("closing trace db", "events", s.seq)
	return s.db.Close()
}
