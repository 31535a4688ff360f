package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/ironlog/ironlog/internal/schema"
)

// Domain reads. Every query here excludes tombstones; the sync layer reads
// through Syncable instead.

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// GetByID returns the live row with id from table.
func (db *DB) GetByID(ctx context.Context, table schema.Table, id string) (schema.Entity, error) {
	repo, err := db.Syncable(table)
	if err != nil {
		return nil, err
	}
	e, err := repo.Get(ctx, db.conn, id)
	if err != nil {
		return nil, err
	}
	if e.Meta().IsDeleted() {
		return nil, fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return e, nil
}

// SessionsByDateRange returns live sessions with from <= date <= to, oldest
// first.
func (db *DB) SessionsByDateRange(ctx context.Context, from, to string) ([]*schema.Session, error) {
	return db.Sessions.Select(ctx, db.conn,
		"date >= ? AND date <= ? AND deleted_at IS NULL ORDER BY date, created_at", from, to)
}

// SetsForSession returns the live sets of a session in exercise, then set,
// order.
func (db *DB) SetsForSession(ctx context.Context, sessionID string) ([]*schema.ExerciseSet, error) {
	return db.ExerciseSets.Select(ctx, db.conn,
		"session_id = ? AND deleted_at IS NULL ORDER BY exercise_order, set_order", sessionID)
}

// LastSessionByWorkoutType returns the most recent live session of a
// workout type.
func (db *DB) LastSessionByWorkoutType(ctx context.Context, workoutType string) (*schema.Session, error) {
	sessions, err := db.Sessions.Select(ctx, db.conn,
		"workout_type = ? AND deleted_at IS NULL ORDER BY date DESC, created_at DESC LIMIT 1", workoutType)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("last %s session: %w", workoutType, ErrNotFound)
	}
	return sessions[0], nil
}

// RecommendationsByStatus returns live recommendations with status, newest
// date first.
func (db *DB) RecommendationsByStatus(ctx context.Context, status string) ([]*schema.Recommendation, error) {
	return db.Recommendations.Select(ctx, db.conn,
		"status = ? AND deleted_at IS NULL ORDER BY date DESC, created_at DESC", status)
}

// ReadinessByDate returns the live readiness log for date.
func (db *DB) ReadinessByDate(ctx context.Context, date string) (*schema.ReadinessLog, error) {
	logs, err := db.ReadinessLogs.Select(ctx, db.conn,
		"date = ? AND deleted_at IS NULL ORDER BY created_at LIMIT 1", date)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, fmt.Errorf("readiness %s: %w", date, ErrNotFound)
	}
	return logs[0], nil
}

// WeightLogsByDateRange returns live weight logs with from <= date <= to,
// oldest first.
func (db *DB) WeightLogsByDateRange(ctx context.Context, from, to string) ([]*schema.WeightLog, error) {
	return db.WeightLogs.Select(ctx, db.conn,
		"date >= ? AND date <= ? AND deleted_at IS NULL ORDER BY date", from, to)
}

// Setting returns the live value stored under key.
func (db *DB) Setting(ctx context.Context, key string) (string, error) {
	settings, err := db.AppSettings.Select(ctx, db.conn,
		"key = ? AND deleted_at IS NULL ORDER BY created_at LIMIT 1", key)
	if err != nil {
		return "", err
	}
	if len(settings) == 0 {
		return "", fmt.Errorf("setting %s: %w", key, ErrNotFound)
	}
	return settings[0].Value, nil
}
