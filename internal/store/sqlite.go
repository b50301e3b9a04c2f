// Package store persists per-room configuration in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/dkeye/agentvoice/internal/domain"
)

// SQLiteStore implements core.ConfigStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. Parent
// directories are created if needed. ":memory:" keeps everything in RAM.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers without SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	log.Info().Str("module", "store").Str("path", path).Msg("SQLite store initialized")
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS room_configs (
			name TEXT PRIMARY KEY,
			voice TEXT NOT NULL DEFAULT '',
			exaggeration REAL NOT NULL DEFAULT 0,
			cfg_weight REAL NOT NULL DEFAULT 0,
			machine TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		)`)
	return err
}

// Load returns the stored record for name; found is false when none exists.
func (s *SQLiteStore) Load(ctx context.Context, name domain.RoomName) (domain.RoomConfig, bool, error) {
	var cfg domain.RoomConfig
	err := s.db.QueryRowContext(ctx,
		`SELECT voice, exaggeration, cfg_weight, machine, path FROM room_configs WHERE name = ?`,
		string(name),
	).Scan(&cfg.Voice, &cfg.Exaggeration, &cfg.CFGWeight, &cfg.Machine, &cfg.Path)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RoomConfig{}, false, nil
	}
	if err != nil {
		return domain.RoomConfig{}, false, fmt.Errorf("loading room %q: %w", name, err)
	}
	return cfg, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, name domain.RoomName, cfg domain.RoomConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO room_configs (name, voice, exaggeration, cfg_weight, machine, path, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			voice = excluded.voice,
			exaggeration = excluded.exaggeration,
			cfg_weight = excluded.cfg_weight,
			machine = excluded.machine,
			path = excluded.path,
			updated_at = excluded.updated_at`,
		string(name), cfg.Voice, cfg.Exaggeration, cfg.CFGWeight, cfg.Machine, cfg.Path,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving room %q: %w", name, err)
	}
	return nil
}

// List returns every stored room name in name order.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.RoomName, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM room_configs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}
	defer rows.Close()
	var out []domain.RoomName
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		out = append(out, domain.RoomName(name))
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
