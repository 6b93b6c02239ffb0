package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore keeps entries in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite %s: %w", path, err)
	}
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS embeddings (
			key        TEXT PRIMARY KEY,
			vector     BLOB NOT NULL,
			created_at INTEGER NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("cache: init schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, key string) (Entry, bool, error) {
	var (
		blob    []byte
		created int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT vector, created_at FROM embeddings WHERE key = ?`, key).Scan(&blob, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache: sqlite load: %w", err)
	}
	var vec []float32
	if err := json.Unmarshal(blob, &vec); err != nil {
		return Entry{}, false, fmt.Errorf("cache: sqlite decode %s: %w", key, err)
	}
	return Entry{Vector: vec, CreatedAt: time.Unix(0, created).UTC()}, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, key string, e Entry) error {
	blob, err := json.Marshal(e.Vector)
	if err != nil {
		return fmt.Errorf("cache: sqlite encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embeddings (key, vector, created_at) VALUES (?, ?, ?)`,
		key, blob, e.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("cache: sqlite save: %w", err)
	}
	return nil
}

// Prune deletes entries created before cutoff and returns how many were removed.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("cache: sqlite prune: %w", err)
	}
	return res.RowsAffected()
}
