package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Sync state keys.
const (
	StateCursor      = "cursor"
	StateLastSyncAt  = "last_sync_at"
	StateLastError   = "last_error"
	StateRetryCount  = "retry_count"
	StateNextRetryAt = "next_retry_at"
)

// CursorEpoch is the cursor before the first successful pull.
var CursorEpoch = time.Unix(0, 0).UTC()

// SyncState is the decoded sync bookkeeping.
type SyncState struct {
	Cursor      time.Time
	LastSyncAt  *time.Time
	LastError   string
	RetryCount  int
	NextRetryAt *time.Time
}

// GetSyncState returns the value stored under key, or "" when unset.
func (db *DB) GetSyncState(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, "SELECT value FROM sync_state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read sync state %s: %w", key, err)
	}
	return value, nil
}

// SetSyncState stores value under key.
func (db *DB) SetSyncState(ctx context.Context, key, value string) error {
	return db.SetSyncStates(ctx, map[string]string{key: value})
}

// SetSyncStates stores every key/value pair in one transaction.
func (db *DB) SetSyncStates(ctx context.Context, values map[string]string) error {
	return db.WriteTx(ctx, func(tx *sql.Tx) error {
		for key, value := range values {
			_, err := tx.ExecContext(ctx, `
			INSERT INTO sync_state (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
			if err != nil {
				return fmt.Errorf("failed to write sync state %s: %w", key, err)
			}
		}
		return nil
	})
}

// Cursor returns the pull watermark, CursorEpoch when no pull has completed.
func (db *DB) Cursor(ctx context.Context) (time.Time, error) {
	value, err := db.GetSyncState(ctx, StateCursor)
	if err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return CursorEpoch, nil
	}
	return parseTime(value)
}

// SetCursor persists the pull watermark.
func (db *DB) SetCursor(ctx context.Context, t time.Time) error {
	return db.SetSyncState(ctx, StateCursor, formatTime(t))
}

// LoadSyncState reads and decodes every sync state key.
func (db *DB) LoadSyncState(ctx context.Context) (SyncState, error) {
	state := SyncState{Cursor: CursorEpoch}

	rows, err := db.conn.QueryContext(ctx, "SELECT key, value FROM sync_state")
	if err != nil {
		return state, fmt.Errorf("failed to read sync state: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return state, fmt.Errorf("failed to scan sync state: %w", err)
		}
		if value == "" {
			continue
		}
		switch key {
		case StateCursor:
			if state.Cursor, err = parseTime(value); err != nil {
				return state, err
			}
		case StateLastSyncAt:
			t, err := parseTime(value)
			if err != nil {
				return state, err
			}
			state.LastSyncAt = &t
		case StateLastError:
			state.LastError = value
		case StateRetryCount:
			if state.RetryCount, err = strconv.Atoi(value); err != nil {
				return state, fmt.Errorf("invalid retry_count %q: %w", value, err)
			}
		case StateNextRetryAt:
			t, err := parseTime(value)
			if err != nil {
				return state, err
			}
			state.NextRetryAt = &t
		}
	}
	if err := rows.Err(); err != nil {
		return state, fmt.Errorf("error iterating sync state: %w", err)
	}
	return state, nil
}

// FormatTime renders t in the store's timestamp layout, for sync state
// values.
func FormatTime(t time.Time) string {
	return formatTime(t)
}
