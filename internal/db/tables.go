package db

import "github.com/ironlog/ironlog/internal/schema"

var sessionsTable = tableDef[schema.Session]{
	table:   schema.TableSessions,
	columns: []string{"date", "split_type", "workout_type", "workout_label", "duration_min", "notes"},
	values: func(s *schema.Session) []any {
		return []any{s.Date, s.SplitType, s.WorkoutType, s.WorkoutLabel, s.DurationMin, s.Notes}
	},
	targets: func(s *schema.Session) []any {
		return []any{&s.Date, &s.SplitType, &s.WorkoutType, &s.WorkoutLabel, &s.DurationMin, &s.Notes}
	},
}

var exerciseSetsTable = tableDef[schema.ExerciseSet]{
	table: schema.TableExerciseSets,
	columns: []string{
		"session_id", "date", "split_type", "workout_type", "exercise_id", "exercise_name",
		"exercise_order", "set_order", "weight_kg", "reps", "rpe", "rir", "technique",
	},
	values: func(e *schema.ExerciseSet) []any {
		return []any{
			e.SessionID, e.Date, e.SplitType, e.WorkoutType, stringToNull(e.ExerciseID), e.ExerciseName,
			e.ExerciseOrder, e.SetOrder, e.WeightKg, e.Reps, floatToNull(e.RPE), floatToNull(e.RIR), stringToNull(e.Technique),
		}
	},
	targets: func(e *schema.ExerciseSet) []any {
		return []any{
			&e.SessionID, &e.Date, &e.SplitType, &e.WorkoutType, nullStringCol{&e.ExerciseID}, &e.ExerciseName,
			&e.ExerciseOrder, &e.SetOrder, &e.WeightKg, &e.Reps, nullFloatCol{&e.RPE}, nullFloatCol{&e.RIR}, nullStringCol{&e.Technique},
		}
	},
}

var readinessLogsTable = tableDef[schema.ReadinessLog]{
	table:   schema.TableReadinessLogs,
	columns: []string{"date", "sleep_hours", "sleep_quality", "stress", "pain", "readiness_score", "notes"},
	values: func(r *schema.ReadinessLog) []any {
		return []any{r.Date, r.SleepHours, r.SleepQuality, r.Stress, r.Pain, r.ReadinessScore, r.Notes}
	},
	targets: func(r *schema.ReadinessLog) []any {
		return []any{&r.Date, &r.SleepHours, &r.SleepQuality, &r.Stress, &r.Pain, &r.ReadinessScore, &r.Notes}
	},
}

var weightLogsTable = tableDef[schema.WeightLog]{
	table:   schema.TableWeightLogs,
	columns: []string{"date", "weight_kg", "notes"},
	values: func(w *schema.WeightLog) []any {
		return []any{w.Date, w.WeightKg, w.Notes}
	},
	targets: func(w *schema.WeightLog) []any {
		return []any{&w.Date, &w.WeightKg, &w.Notes}
	},
}

var recommendationsTable = tableDef[schema.Recommendation]{
	table:   schema.TableRecommendations,
	columns: []string{"date", "split_type", "workout_type", "kind", "status", "message", "reason"},
	values: func(r *schema.Recommendation) []any {
		return []any{r.Date, stringToNull(r.SplitType), stringToNull(r.WorkoutType), r.Kind, r.Status, r.Message, r.Reason}
	},
	targets: func(r *schema.Recommendation) []any {
		return []any{&r.Date, nullStringCol{&r.SplitType}, nullStringCol{&r.WorkoutType}, &r.Kind, &r.Status, &r.Message, &r.Reason}
	},
}

var appSettingsTable = tableDef[schema.AppSetting]{
	table:   schema.TableAppSettings,
	columns: []string{"key", "value"},
	values: func(a *schema.AppSetting) []any {
		return []any{a.Key, a.Value}
	},
	targets: func(a *schema.AppSetting) []any {
		return []any{&a.Key, &a.Value}
	},
}
