package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ironlog/ironlog/internal/schema"
)

// mutate runs fn in a write transaction stamped with one instant and fires
// the mutation hook after commit.
func (db *DB) mutate(ctx context.Context, table schema.Table, fn func(tx *sql.Tx, now time.Time) error) error {
	now := db.now()
	if err := db.WriteTx(ctx, func(tx *sql.Tx) error { return fn(tx, now) }); err != nil {
		return err
	}
	db.notifyMutation(table)
	return nil
}

func validated(e schema.Entity) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid %s: %w", e.Table(), err)
	}
	return nil
}

// InsertSession stores a new session. The id is generated when empty.
func (db *DB) InsertSession(ctx context.Context, s *schema.Session) error {
	return db.mutate(ctx, schema.TableSessions, func(tx *sql.Tx, now time.Time) error {
		s.Init(now)
		if err := validated(s); err != nil {
			return err
		}
		return db.Sessions.Upsert(ctx, tx, s)
	})
}

// UpdateSession applies fn to the live session with id and saves it as a
// new version.
func (db *DB) UpdateSession(ctx context.Context, id string, fn func(*schema.Session)) (*schema.Session, error) {
	var updated *schema.Session
	err := db.mutate(ctx, schema.TableSessions, func(tx *sql.Tx, now time.Time) error {
		s, err := db.Sessions.FindLive(ctx, tx, id)
		if err != nil {
			return err
		}
		fn(s)
		s.ID = id
		s.Touch(now)
		if err := validated(s); err != nil {
			return err
		}
		updated = s
		return db.Sessions.Upsert(ctx, tx, s)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SaveSessionWithSets stores a session and its sets in one transaction.
//
// When s.ID names an existing live session, that session is updated and its
// previous sets are tombstoned before the new sets are inserted. Each set
// inherits the session's id, date, split and workout type; RIR is derived
// from RPE when not given.
func (db *DB) SaveSessionWithSets(ctx context.Context, s *schema.Session, sets []*schema.ExerciseSet) error {
	return db.mutate(ctx, schema.TableSessions, func(tx *sql.Tx, now time.Time) error {
		existing := false
		if s.ID != "" {
			prev, err := db.Sessions.FindLive(ctx, tx, s.ID)
			if err == nil {
				existing = true
				s.SyncMetadata = prev.SyncMetadata
			} else if !isNotFound(err) {
				return err
			}
		}

		if existing {
			s.Touch(now)
			if err := db.tombstoneSets(ctx, tx, s.ID, now); err != nil {
				return err
			}
		} else {
			s.Init(now)
		}
		if err := validated(s); err != nil {
			return err
		}
		if err := db.Sessions.Upsert(ctx, tx, s); err != nil {
			return err
		}

		for _, set := range sets {
			set.ID = ""
			set.SessionID = s.ID
			set.Date = s.Date
			set.SplitType = s.SplitType
			set.WorkoutType = s.WorkoutType
			if set.RPE != nil && set.RIR == nil {
				rir := schema.DeriveRIR(*set.RPE)
				set.RIR = &rir
			}
			set.Init(now)
			if err := validated(set); err != nil {
				return err
			}
			if err := db.ExerciseSets.Upsert(ctx, tx, set); err != nil {
				return err
			}
		}
		return nil
	})
}

// SoftDeleteSession tombstones a session together with its live sets.
func (db *DB) SoftDeleteSession(ctx context.Context, id string) error {
	return db.mutate(ctx, schema.TableSessions, func(tx *sql.Tx, now time.Time) error {
		s, err := db.Sessions.FindLive(ctx, tx, id)
		if err != nil {
			return err
		}
		s.MarkDeleted(now)
		if err := db.Sessions.Upsert(ctx, tx, s); err != nil {
			return err
		}
		return db.tombstoneSets(ctx, tx, id, now)
	})
}

func (db *DB) tombstoneSets(ctx context.Context, tx *sql.Tx, sessionID string, now time.Time) error {
	sets, err := db.ExerciseSets.Select(ctx, tx, "session_id = ? AND deleted_at IS NULL", sessionID)
	if err != nil {
		return err
	}
	for _, set := range sets {
		set.MarkDeleted(now)
		if err := db.ExerciseSets.Upsert(ctx, tx, set); err != nil {
			return err
		}
	}
	return nil
}

// SaveReadiness stores the readiness log for r.Date, updating the existing
// live row for that date in place. The readiness score is recomputed from
// the inputs.
func (db *DB) SaveReadiness(ctx context.Context, r *schema.ReadinessLog) (*schema.ReadinessLog, error) {
	var saved *schema.ReadinessLog
	err := db.mutate(ctx, schema.TableReadinessLogs, func(tx *sql.Tx, now time.Time) error {
		r.ReadinessScore = schema.ReadinessScore(r.SleepHours, r.SleepQuality, r.Stress, r.Pain)

		matches, err := db.ReadinessLogs.Select(ctx, tx, "date = ? AND deleted_at IS NULL ORDER BY created_at LIMIT 1", r.Date)
		if err != nil {
			return err
		}
		if len(matches) == 1 {
			r.SyncMetadata = matches[0].SyncMetadata
			r.Touch(now)
		} else {
			r.Init(now)
		}
		if err := validated(r); err != nil {
			return err
		}
		saved = r
		return db.ReadinessLogs.Upsert(ctx, tx, r)
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// SaveWeight stores the weight log for w.Date, updating the existing live
// row for that date in place.
func (db *DB) SaveWeight(ctx context.Context, w *schema.WeightLog) (*schema.WeightLog, error) {
	var saved *schema.WeightLog
	err := db.mutate(ctx, schema.TableWeightLogs, func(tx *sql.Tx, now time.Time) error {
		matches, err := db.WeightLogs.Select(ctx, tx, "date = ? AND deleted_at IS NULL ORDER BY created_at LIMIT 1", w.Date)
		if err != nil {
			return err
		}
		if len(matches) == 1 {
			w.SyncMetadata = matches[0].SyncMetadata
			w.Touch(now)
		} else {
			w.Init(now)
		}
		if err := validated(w); err != nil {
			return err
		}
		saved = w
		return db.WeightLogs.Upsert(ctx, tx, w)
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// SetSetting stores value under key, updating the live row in place.
// Writing the value already stored is a no-op.
func (db *DB) SetSetting(ctx context.Context, key, value string) (*schema.AppSetting, error) {
	var saved *schema.AppSetting
	changed := false
	err := db.WriteTx(ctx, func(tx *sql.Tx) error {
		now := db.now()
		matches, err := db.AppSettings.Select(ctx, tx, "key = ? AND deleted_at IS NULL ORDER BY created_at LIMIT 1", key)
		if err != nil {
			return err
		}

		setting := &schema.AppSetting{Key: key, Value: value}
		if len(matches) == 1 {
			if matches[0].Value == value {
				saved = matches[0]
				return nil
			}
			setting.SyncMetadata = matches[0].SyncMetadata
			setting.Touch(now)
		} else {
			setting.Init(now)
		}
		if err := validated(setting); err != nil {
			return err
		}
		saved = setting
		changed = true
		return db.AppSettings.Upsert(ctx, tx, setting)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		db.notifyMutation(schema.TableAppSettings)
	}
	return saved, nil
}

// AddRecommendationIfMissing inserts r unless a live recommendation with the
// same date, kind and workout type already exists. Reports whether r was
// inserted.
func (db *DB) AddRecommendationIfMissing(ctx context.Context, r *schema.Recommendation) (bool, error) {
	added := false
	err := db.WriteTx(ctx, func(tx *sql.Tx) error {
		matches, err := db.Recommendations.Select(ctx, tx,
			"date = ? AND kind = ? AND workout_type IS ? AND deleted_at IS NULL LIMIT 1",
			r.Date, r.Kind, stringToNull(r.WorkoutType))
		if err != nil {
			return err
		}
		if len(matches) > 0 {
			return nil
		}

		r.SetDefaults()
		r.Init(db.now())
		if err := validated(r); err != nil {
			return err
		}
		added = true
		return db.Recommendations.Upsert(ctx, tx, r)
	})
	if err != nil {
		return false, err
	}
	if added {
		db.notifyMutation(schema.TableRecommendations)
	}
	return added, nil
}

// UpdateRecommendationStatus moves a live recommendation to status.
func (db *DB) UpdateRecommendationStatus(ctx context.Context, id, status string) error {
	if !schema.ValidRecommendationStatus(status) {
		return fmt.Errorf("unknown recommendation status %q", status)
	}
	return db.mutate(ctx, schema.TableRecommendations, func(tx *sql.Tx, now time.Time) error {
		r, err := db.Recommendations.FindLive(ctx, tx, id)
		if err != nil {
			return err
		}
		r.Status = status
		r.Touch(now)
		return db.Recommendations.Upsert(ctx, tx, r)
	})
}

// SoftDelete tombstones the live row with id in table.
func (db *DB) SoftDelete(ctx context.Context, table schema.Table, id string) error {
	if table == schema.TableSessions {
		return db.SoftDeleteSession(ctx, id)
	}

	repo, err := db.Syncable(table)
	if err != nil {
		return err
	}
	return db.mutate(ctx, table, func(tx *sql.Tx, now time.Time) error {
		e, err := repo.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if e.Meta().IsDeleted() {
			return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
		}
		e.Meta().MarkDeleted(now)
		return repo.Put(ctx, tx, e)
	})
}
