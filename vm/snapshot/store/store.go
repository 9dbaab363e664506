// Package store persists heap snapshots in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/snek/vm/snapshot"
)

// ErrNotFound indicates the requested snapshot doesn't exist.
var ErrNotFound = errors.New("snapshot not found")

// Entry summarizes a stored snapshot without decoding it.
type Entry struct {
	ID      string
	Label   string
	Taken   time.Time
	Objects int
	Frames  int
	Size    int
}

// Store handles SQLite storage for snapshots.
type Store struct {
	db   *sql.DB
	path string
	log  commonlog.Logger
}

// Open opens (creating if needed) the snapshot database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS snapshots (
		id      TEXT PRIMARY KEY,
		label   TEXT NOT NULL,
		taken   INTEGER NOT NULL,
		objects INTEGER NOT NULL,
		frames  INTEGER NOT NULL,
		data    BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, path: path, log: commonlog.GetLogger("snek.store")}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores snap, replacing any snapshot with the same ID.
func (s *Store) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	data, err := snapshot.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", snap.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (id, label, taken, objects, frames, data)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Label, snap.TakenUnix, len(snap.Objects), len(snap.Frames), data)
	if err != nil {
		return fmt.Errorf("saving snapshot %s: %w", snap.ID, err)
	}
	s.log.Debugf("saved snapshot %s (%d objects, %d bytes)", snap.ID, len(snap.Objects), len(data))
	return nil
}

// Load retrieves and decodes the snapshot with the given ID.
func (s *Store) Load(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", id, err)
	}
	return snapshot.Unmarshal(data)
}

// List returns every stored snapshot, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, taken, objects, frames, length(data)
		 FROM snapshots ORDER BY taken DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e     Entry
			taken int64
		)
		if err := rows.Scan(&e.ID, &e.Label, &taken, &e.Objects, &e.Frames, &e.Size); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		e.Taken = time.Unix(0, taken)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	return entries, nil
}

// Delete removes the snapshot with the given ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}
