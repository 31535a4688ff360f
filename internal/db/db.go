// Package db provides the local entity store for ironlog.
//
// The store is an embedded SQLite database (ncruces/go-sqlite3) holding one
// table per syncable entity plus a small key/value table for sync
// bookkeeping. It never talks to the network.
//
// Architecture:
//   - Database file: ~/.ironlog/ironlog.db
//   - WAL mode: concurrent readers during writes
//   - Single connection: one write transaction at a time, so a sync merge
//     and a user edit can never interleave partial writes
//   - Schema: sessions, exercise_sets, readiness_logs, weight_logs,
//     recommendations, app_settings, sync_state
//
// Every domain mutation increments version, refreshes updated_at and marks
// the row dirty. Rows are soft-deleted (deleted_at) so tombstones replicate;
// domain reads filter them out while the sync layer still sees them.
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/ironlog/ironlog/internal/schema"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a row does not exist (or is a tombstone, for
// domain reads).
var ErrNotFound = errors.New("not found")

// MutationHook is called after a domain mutation commits.
type MutationHook func(table schema.Table)

// DB wraps the SQLite connection and the typed repositories.
type DB struct {
	conn *sql.DB
	path string

	// Now returns the current instant. Tests replace it for determinism.
	Now func() time.Time

	Sessions        *Repository[schema.Session, *schema.Session]
	ExerciseSets    *Repository[schema.ExerciseSet, *schema.ExerciseSet]
	ReadinessLogs   *Repository[schema.ReadinessLog, *schema.ReadinessLog]
	WeightLogs      *Repository[schema.WeightLog, *schema.WeightLog]
	Recommendations *Repository[schema.Recommendation, *schema.Recommendation]
	AppSettings     *Repository[schema.AppSetting, *schema.AppSetting]

	hookMu sync.RWMutex
	hook   MutationHook
}

// Open creates a new database connection at the specified path.
//
// If the database doesn't exist it is created; call InitSchema before use.
// The caller MUST call Close() when done.
//
// Example:
//
//	store, err := db.Open("~/.ironlog/ironlog.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite has a single writer; one connection serializes transactions.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{
		conn: conn,
		path: path,
		Now:  time.Now,

		Sessions:        newRepository(sessionsTable),
		ExerciseSets:    newRepository(exerciseSetsTable),
		ReadinessLogs:   newRepository(readinessLogsTable),
		WeightLogs:      newRepository(weightLogsTable),
		Recommendations: newRepository(recommendationsTable),
		AppSettings:     newRepository(appSettingsTable),
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// This is idempotent - safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// SetMutationHook registers fn to be called after every committed domain
// mutation. Pass nil to clear it.
func (db *DB) SetMutationHook(fn MutationHook) {
	db.hookMu.Lock()
	defer db.hookMu.Unlock()
	db.hook = fn
}

func (db *DB) notifyMutation(table schema.Table) {
	db.hookMu.RLock()
	fn := db.hook
	db.hookMu.RUnlock()
	if fn != nil {
		fn(table)
	}
}

// now returns the store clock normalized to UTC milliseconds.
func (db *DB) now() time.Time {
	return schema.Normalize(db.Now())
}

// WriteTx runs fn inside a write transaction. The transaction commits when
// fn returns nil and rolls back otherwise.
func (db *DB) WriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReadTx runs fn inside a transaction so every read observes the same
// snapshot. The transaction is always rolled back.
func (db *DB) ReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(tx)
}

// Syncables returns the repositories in schema.AllTables order.
func (db *DB) Syncables() []Syncable {
	return []Syncable{
		db.Sessions,
		db.ExerciseSets,
		db.ReadinessLogs,
		db.WeightLogs,
		db.Recommendations,
		db.AppSettings,
	}
}

// Syncable returns the repository for table.
func (db *DB) Syncable(table schema.Table) (Syncable, error) {
	for _, s := range db.Syncables() {
		if s.Table() == table {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown table %q", table)
}
