// Package history persists a per-session summary of every connection the
// client opens, backed by SQLite.
package history

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Record is one finished (or still open) session.
type Record struct {
	ID              int64
	StartedAt       time.Time
	EndedAt         time.Time
	Address         string
	Hosted          bool
	Reason          string
	UpdatesAbsorbed uint64
	Duplicates      uint64
	FinalFrame      uint64
}

// Store writes session records to a SQLite file. A single connection is used
// since the tick loop is the only writer.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	logger zerolog.Logger
}

func Open(path string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		logger.Warn().Err(err).Msg("failed to enable WAL mode")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history database ping: %w", err)
	}

	s := &Store{db: db, logger: logger.With().Str("component", "history").Logger()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info().Str("path", path).Msg("history database opened")
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at       INTEGER NOT NULL,
	ended_at         INTEGER NOT NULL DEFAULT 0,
	address          TEXT NOT NULL,
	hosted           INTEGER NOT NULL DEFAULT 0,
	reason           TEXT NOT NULL DEFAULT '',
	updates_absorbed INTEGER NOT NULL DEFAULT 0,
	duplicates       INTEGER NOT NULL DEFAULT 0,
	final_frame      INTEGER NOT NULL DEFAULT 0
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate history schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Begin records the start of a session and returns its row id.
func (s *Store) Begin(startedAt time.Time, address string, hosted bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		`INSERT INTO sessions (started_at, address, hosted) VALUES (?, ?, ?)`,
		startedAt.Unix(), address, hosted,
	)
	if err != nil {
		return 0, fmt.Errorf("record session start: %w", err)
	}
	return res.LastInsertId()
}

// Finish closes out a session row with its outcome and counters.
func (s *Store) Finish(id int64, endedAt time.Time, reason string, absorbed, duplicates, finalFrame uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ?, reason = ?, updates_absorbed = ?, duplicates = ?, final_frame = ? WHERE id = ?`,
		endedAt.Unix(), reason, absorbed, duplicates, finalFrame, id,
	)
	if err != nil {
		return fmt.Errorf("record session end: %w", err)
	}
	return nil
}

// Recent returns the newest sessions, most recent first.
func (s *Store) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, started_at, ended_at, address, hosted, reason, updates_absorbed, duplicates, final_frame
		 FROM sessions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var started, ended int64
		if err := rows.Scan(&r.ID, &started, &ended, &r.Address, &r.Hosted, &r.Reason,
			&r.UpdatesAbsorbed, &r.Duplicates, &r.FinalFrame); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		r.StartedAt = time.Unix(started, 0)
		if ended != 0 {
			r.EndedAt = time.Unix(ended, 0)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Render writes the newest sessions as a table.
func (s *Store) Render(w io.Writer, limit int) error {
	records, err := s.Recent(limit)
	if err != nil {
		return err
	}

	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"ID", "Started", "Duration", "Address", "Role", "Reason", "Absorbed", "Dupes", "Frame"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, r := range records {
		duration := "-"
		if !r.EndedAt.IsZero() {
			duration = r.EndedAt.Sub(r.StartedAt).Truncate(time.Second).String()
		}
		role := "joiner"
		if r.Hosted {
			role = "host"
		}
		reason := r.Reason
		if reason == "" {
			reason = "open"
		}
		tw.Append([]string{
			fmt.Sprintf("%d", r.ID),
			r.StartedAt.Format("2006-01-02 15:04:05"),
			duration,
			r.Address,
			role,
			reason,
			fmt.Sprintf("%d", r.UpdatesAbsorbed),
			fmt.Sprintf("%d", r.Duplicates),
			fmt.Sprintf("%d", r.FinalFrame),
		})
	}
	tw.Render()
	return nil
}
