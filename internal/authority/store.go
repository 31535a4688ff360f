// Package authority is a reference implementation of the remote side of
// sync: it stores pushed rows per owner and serves them back by
// server_updated_at. It backs integration tests and local development.
package authority

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ironlog/ironlog/internal/schema"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

const storeSchema = `
CREATE TABLE IF NOT EXISTS rows (
	owner TEXT NOT NULL,
	tbl TEXT NOT NULL,
	id TEXT NOT NULL,
	version INTEGER NOT NULL,
	server_updated_at TEXT NOT NULL,
	deleted INTEGER NOT NULL DEFAULT 0,
	body TEXT NOT NULL,
	PRIMARY KEY (owner, tbl, id)
);
CREATE INDEX IF NOT EXISTS idx_rows_owner_sua ON rows(owner, server_updated_at);
`

// Store holds the authoritative copy of every owner's rows.
type Store struct {
	db  *sql.DB
	now func() time.Time

	// Serializes push and pull so a pull's server time is never older
	// than a row it did not return.
	mu   sync.Mutex
	last time.Time
}

// OpenStore opens (and migrates) a store at dsn, for example
// "file:authority.db" or "file::memory:".
func OpenStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open authority store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize authority schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetClock replaces the time source. Call it before serving requests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// WithTx runs fn in a transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// tick returns a strictly increasing millisecond instant. Caller holds s.mu.
func (s *Store) tick() time.Time {
	t := schema.Normalize(s.now())
	if !t.After(s.last) {
		t = s.last.Add(time.Millisecond)
	}
	s.last = t
	return t
}

// rowHeader is the part of a pushed row the store reads.
type rowHeader struct {
	ID        string  `json:"id"`
	Version   int64   `json:"version"`
	DeletedAt *string `json:"deleted_at"`
}

// PushResult lists what a push accepted.
type PushResult struct {
	ServerTime time.Time
	SyncedIDs  map[schema.Table][]string
}

// Push stores every row whose version is at least the stored version and
// stamps it with one server time. Stale rows are left out of SyncedIDs.
func (s *Store) Push(ctx context.Context, owner string, payload map[schema.Table][]json.RawMessage) (PushResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := PushResult{ServerTime: s.tick(), SyncedIDs: make(map[schema.Table][]string)}
	stamp := result.ServerTime.Format(timeLayout)

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range schema.AllTables {
			rows, ok := payload[table]
			if !ok {
				continue
			}
			accepted := []string{}
			for _, raw := range rows {
				id, ok, err := s.storeRow(ctx, tx, owner, table, raw, stamp)
				if err != nil {
					return err
				}
				if ok {
					accepted = append(accepted, id)
				}
			}
			result.SyncedIDs[table] = accepted
		}
		return nil
	})
	if err != nil {
		return PushResult{}, err
	}
	return result, nil
}

func (s *Store) storeRow(ctx context.Context, tx *sql.Tx, owner string, table schema.Table, raw json.RawMessage, stamp string) (string, bool, error) {
	var header rowHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return "", false, fmt.Errorf("invalid %s row: %w", table, err)
	}
	if header.ID == "" {
		return "", false, fmt.Errorf("%s row without id", table)
	}

	var stored int64
	err := tx.QueryRowContext(ctx,
		"SELECT version FROM rows WHERE owner = ? AND tbl = ? AND id = ?",
		owner, string(table), header.ID).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return "", false, fmt.Errorf("failed to read stored version: %w", err)
	case header.Version < stored:
		return header.ID, false, nil
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", false, fmt.Errorf("invalid %s row: %w", table, err)
	}
	body["owner_user_id"] = owner
	body["server_updated_at"] = stamp
	delete(body, "is_dirty")
	delete(body, "last_synced_at")
	encoded, err := json.Marshal(body)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode row: %w", err)
	}

	deleted := header.DeletedAt != nil && *header.DeletedAt != ""
	_, err = tx.ExecContext(ctx, `
		INSERT INTO rows (owner, tbl, id, version, server_updated_at, deleted, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, tbl, id) DO UPDATE SET
			version = excluded.version,
			server_updated_at = excluded.server_updated_at,
			deleted = excluded.deleted,
			body = excluded.body
	`, owner, string(table), header.ID, header.Version, stamp, deleted, string(encoded))
	if err != nil {
		return "", false, fmt.Errorf("failed to store %s row: %w", table, err)
	}
	return header.ID, true, nil
}

// PullResult carries rows changed after the requested instant.
type PullResult struct {
	ServerTime time.Time
	Rows       map[schema.Table][]json.RawMessage
}

// Pull returns owner's rows with server_updated_at after since, tombstones
// included, in server order.
func (s *Store) Pull(ctx context.Context, owner string, since time.Time) (PullResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := PullResult{ServerTime: s.tick(), Rows: make(map[schema.Table][]json.RawMessage)}
	for _, table := range schema.AllTables {
		result.Rows[table] = []json.RawMessage{}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tbl, body FROM rows
		WHERE owner = ? AND server_updated_at > ?
		ORDER BY server_updated_at, tbl, id
	`, owner, schema.Normalize(since).Format(timeLayout))
	if err != nil {
		return PullResult{}, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tbl, body string
		if err := rows.Scan(&tbl, &body); err != nil {
			return PullResult{}, fmt.Errorf("failed to scan row: %w", err)
		}
		table, err := schema.ParseTable(tbl)
		if err != nil {
			return PullResult{}, err
		}
		result.Rows[table] = append(result.Rows[table], json.RawMessage(body))
	}
	if err := rows.Err(); err != nil {
		return PullResult{}, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

// Count returns how many rows owner has in table, tombstones included.
func (s *Store) Count(ctx context.Context, owner string, table schema.Table) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM rows WHERE owner = ? AND tbl = ?", owner, string(table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}
