// Package statedb persists the bot's update offset and finished task records
// in a local SQLite file.
package statedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion tracks the current database schema version.
const SchemaVersion = 1

// StateDB is safe for concurrent use within one process. WAL mode and the
// busy timeout let a second process (the probe command) read alongside.
type StateDB struct {
	db *sql.DB
}

type TaskRecord struct {
	ID         string
	Kind       string
	ChatID     int64
	Source     string
	State      string
	Total      int
	Succeeded  int
	Failed     int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Open creates or opens a SQLite database at dbPath.
func Open(dbPath string) (*StateDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("statedb: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("statedb: open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("statedb: %s: %w", pragma, err)
		}
	}
	return &StateDB{db: db}, nil
}

// Close checkpoints WAL and closes the database.
func (s *StateDB) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func (s *StateDB) Migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statedb: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("statedb: create metadata: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS update_offsets (
			bot_id     INTEGER PRIMARY KEY,
			next_offset INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("statedb: create update_offsets: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			chat_id     INTEGER NOT NULL,
			source      TEXT NOT NULL,
			state       TEXT NOT NULL,
			total       INTEGER NOT NULL DEFAULT 0,
			succeeded   INTEGER NOT NULL DEFAULT 0,
			failed      INTEGER NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT '',
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("statedb: create tasks: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`,
		strconv.Itoa(SchemaVersion),
	); err != nil {
		return fmt.Errorf("statedb: set schema version: %w", err)
	}
	return tx.Commit()
}

// LoadOffset returns the next getUpdates offset stored for botID, or 0.
func (s *StateDB) LoadOffset(ctx context.Context, botID int64) (int64, error) {
	var offset int64
	err := s.db.QueryRowContext(ctx,
		"SELECT next_offset FROM update_offsets WHERE bot_id = ?", botID,
	).Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("statedb: load offset: %w", err)
	}
	return offset, nil
}

// SaveOffset stores offset for botID. Offsets never move backwards.
func (s *StateDB) SaveOffset(ctx context.Context, botID, offset int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO update_offsets (bot_id, next_offset, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(bot_id) DO UPDATE SET
			next_offset = MAX(next_offset, excluded.next_offset),
			updated_at = excluded.updated_at
	`, botID, offset, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("statedb: save offset: %w", err)
	}
	return nil
}

func (s *StateDB) RecordTask(ctx context.Context, rec TaskRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO tasks
			(id, kind, chat_id, source, state, total, succeeded, failed, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Kind, rec.ChatID, rec.Source, rec.State, rec.Total, rec.Succeeded, rec.Failed,
		rec.Error, rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("statedb: record task: %w", err)
	}
	return nil
}

// RecentTasks returns up to limit task records, newest first.
func (s *StateDB) RecentTasks(ctx context.Context, limit int) ([]TaskRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, chat_id, source, state, total, succeeded, failed, error, started_at, finished_at
		FROM tasks ORDER BY finished_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("statedb: recent tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		var rec TaskRecord
		var started, finished int64
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.ChatID, &rec.Source, &rec.State,
			&rec.Total, &rec.Succeeded, &rec.Failed, &rec.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("statedb: scan task: %w", err)
		}
		rec.StartedAt = time.UnixMilli(started)
		rec.FinishedAt = time.UnixMilli(finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetMeta reads a metadata value, or "" when key is absent.
func (s *StateDB) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}
