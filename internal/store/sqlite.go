// Package store holds the persistence collaborators: the Postgres event
// store for the analytics stream and the SQLite state store for estimator
// snapshots.
package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "pair_trader/pkg/errors"
)

// SQLiteStateStore persists the latest estimator snapshot so a restart
// resumes the filter instead of re-warming it.
type SQLiteStateStore struct {
	db *sql.DB
}

func NewSQLiteStateStore(dbPath string) (*SQLiteStateStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable WAL mode for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS estimator_state (
		id INTEGER PRIMARY KEY,
		data BLOB NOT NULL,
		checksum BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStateStore{db: db}, nil
}

// SaveState writes the snapshot blob with a checksum in one transaction.
func (s *SQLiteStateStore) SaveState(ctx context.Context, data []byte) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	checksum := sha256.Sum256(data)
	query := `INSERT OR REPLACE INTO estimator_state (id, data, checksum, updated_at) VALUES (1, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, data, checksum[:], time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to write state to db: %w", err)
	}

	return tx.Commit()
}

// LoadState returns the stored snapshot blob, or nil when none exists.
// A checksum mismatch is reported rather than returning corrupt state.
func (s *SQLiteStateStore) LoadState(ctx context.Context) ([]byte, error) {
	query := `SELECT data, checksum FROM estimator_state WHERE id = 1`
	var data []byte
	var storedChecksum []byte
	err := s.db.QueryRowContext(ctx, query).Scan(&data, &storedChecksum)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state from db: %w", err)
	}

	computedChecksum := sha256.Sum256(data)
	if !bytes.Equal(storedChecksum, computedChecksum[:]) {
		return nil, fmt.Errorf("%w: data corruption detected", apperrors.ErrChecksumMismatch)
	}

	return data, nil
}

func (s *SQLiteStateStore) Close() error {
	return s.db.Close()
}
