// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides tune persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/machinefolk/composer-gateway/internal/tune"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tunes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			rnn_model_name TEXT NOT NULL,
			temp REAL NOT NULL,
			seed INTEGER NOT NULL,
			meter TEXT NOT NULL,
			key TEXT NOT NULL,
			prime_tokens TEXT NOT NULL,
			requested DATETIME NOT NULL,
			rnn_started DATETIME,
			rnn_finished DATETIME,
			abc TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_tunes_requested
			ON tunes(requested);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// CreateTune inserts a new tune record and assigns its ID.
func (s *SQLiteStore) CreateTune(ctx context.Context, t *tune.Tune) error {
	if t.Requested.IsZero() {
		t.Requested = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tunes (rnn_model_name, temp, seed, meter, key, prime_tokens, requested, abc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ModelName, t.Temp, t.Seed, t.Meter, t.Key, t.PrimeTokens, t.Requested, t.ABC,
	)
	if err != nil {
		return fmt.Errorf("inserting tune: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading tune id: %w", err)
	}
	t.ID = id
	return nil
}

// GetTune retrieves a tune by ID.
func (s *SQLiteStore) GetTune(ctx context.Context, id int64) (*tune.Tune, error) {
	var t tune.Tune
	var started, finished sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, rnn_model_name, temp, seed, meter, key, prime_tokens, requested, rnn_started, rnn_finished, abc
		FROM tunes WHERE id = ?`, id,
	).Scan(&t.ID, &t.ModelName, &t.Temp, &t.Seed, &t.Meter, &t.Key, &t.PrimeTokens,
		&t.Requested, &started, &finished, &t.ABC)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying tune: %w", err)
	}
	if started.Valid {
		t.RNNStarted = &started.Time
	}
	if finished.Valid {
		t.RNNFinished = &finished.Time
	}
	return &t, nil
}

// CountTunes returns the total number of tune records.
func (s *SQLiteStore) CountTunes(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tunes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tunes: %w", err)
	}
	return n, nil
}

// MarkStarted records the generation start timestamp.
func (s *SQLiteStore) MarkStarted(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tunes SET rnn_started = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("marking started: %w", err)
	}
	return requireRow(res)
}

// UpdateABC replaces the accumulated ABC text of an unfinished tune.
func (s *SQLiteStore) UpdateABC(ctx context.Context, id int64, abc string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tunes SET abc = ?
		WHERE id = ? AND rnn_finished IS NULL AND length(?) >= length(abc)`,
		abc, id, abc)
	if err != nil {
		return fmt.Errorf("updating abc: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, getErr := s.GetTune(ctx, id); getErr != nil {
			return getErr
		}
		return ErrFinished
	}
	return nil
}

// MarkFinished records the final ABC and the finish timestamp.
func (s *SQLiteStore) MarkFinished(ctx context.Context, id int64, abc string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tunes SET abc = ?, rnn_finished = ?
		WHERE id = ? AND rnn_finished IS NULL`,
		abc, at, id)
	if err != nil {
		return fmt.Errorf("marking finished: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, getErr := s.GetTune(ctx, id); getErr != nil {
			return getErr
		}
		return ErrFinished
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// requireRow converts a zero-row update into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
