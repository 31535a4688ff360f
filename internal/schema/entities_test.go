package schema

import (
	"testing"
	"time"
)

func newMeta() SyncMetadata {
	var m SyncMetadata
	m.Init(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	return m
}

func ptr[T any](v T) *T { return &v }

func TestSessionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Session)
		wantErr bool
	}{
		{"valid", func(*Session) {}, false},
		{"missing id", func(s *Session) { s.ID = "" }, true},
		{"bad date", func(s *Session) { s.Date = "01/02/2024" }, true},
		{"unknown split", func(s *Session) { s.SplitType = "bro" }, true},
		{"workout outside split", func(s *Session) { s.WorkoutType = "upper-a" }, true},
		{"upper-lower split", func(s *Session) { s.SplitType = SplitUpperLower; s.WorkoutType = "lower-b" }, false},
		{"negative duration", func(s *Session) { s.DurationMin = -1 }, true},
		{"zero version", func(s *Session) { s.Version = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{
				SyncMetadata: newMeta(),
				Date:         "2024-01-01",
				SplitType:    SplitPPL,
				WorkoutType:  "push",
				WorkoutLabel: "Push A",
				DurationMin:  60,
			}
			tt.mutate(s)
			if err := s.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExerciseSetValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ExerciseSet)
		wantErr bool
	}{
		{"valid", func(*ExerciseSet) {}, false},
		{"missing session", func(e *ExerciseSet) { e.SessionID = "" }, true},
		{"missing exercise", func(e *ExerciseSet) { e.ExerciseName = "" }, true},
		{"negative reps", func(e *ExerciseSet) { e.Reps = -2 }, true},
		{"rpe too high", func(e *ExerciseSet) { e.RPE = ptr(11.0) }, true},
		{"rpe ok", func(e *ExerciseSet) { e.RPE = ptr(8.5) }, false},
		{"unknown technique", func(e *ExerciseSet) { e.Technique = ptr("cheat-reps") }, true},
		{"known technique", func(e *ExerciseSet) { e.Technique = ptr("rest-pause") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &ExerciseSet{
				SyncMetadata: newMeta(),
				SessionID:    "S1",
				Date:         "2024-01-01",
				SplitType:    SplitPPL,
				WorkoutType:  "pull",
				ExerciseName: "Barbell Row",
				SetOrder:     1,
				WeightKg:     60,
				Reps:         8,
			}
			tt.mutate(e)
			if err := e.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadinessLogValidate(t *testing.T) {
	r := &ReadinessLog{SyncMetadata: newMeta(), Date: "2024-01-01", SleepHours: 7, SleepQuality: 4, Stress: 2, Pain: 1}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	r.Stress = 6
	if err := r.Validate(); err == nil {
		t.Error("expected stress out of range error")
	}
}

func TestRecommendationDefaultsAndValidate(t *testing.T) {
	r := &Recommendation{SyncMetadata: newMeta(), Date: "2024-01-01", Kind: "increase-load"}
	r.SetDefaults()
	if r.Status != RecommendationPending {
		t.Fatalf("Status = %q, want pending", r.Status)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	r.Status = "archived"
	if err := r.Validate(); err == nil {
		t.Error("expected unknown status error")
	}
}

func TestWeightAndSettingValidate(t *testing.T) {
	if err := (&WeightLog{SyncMetadata: newMeta(), Date: "2024-01-01"}).Validate(); err == nil {
		t.Error("expected weight_kg error")
	}
	if err := (&AppSetting{SyncMetadata: newMeta()}).Validate(); err == nil {
		t.Error("expected key error")
	}
}

func TestParseTable(t *testing.T) {
	tests := []struct {
		in      string
		want    Table
		wantErr bool
	}{
		{"sessions", TableSessions, false},
		{"exercise_sets", TableExerciseSets, false},
		{"exerciseSets", TableExerciseSets, false},
		{"appSettings", TableAppSettings, false},
		{"workouts", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTable(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseTable(%q) = %q, %v; want %q (err %v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestDerived(t *testing.T) {
	if got := DeriveRIR(8); got != 2 {
		t.Errorf("DeriveRIR(8) = %v, want 2", got)
	}
	if got := DeriveRIR(10.5); got != 0 {
		t.Errorf("DeriveRIR(10.5) = %v, want 0", got)
	}
	// 8h sleep, quality 5, stress 1, pain 1 is a perfect day.
	if got := ReadinessScore(8, 5, 1, 1); got != 100 {
		t.Errorf("ReadinessScore(best) = %d, want 100", got)
	}
	if got := ReadinessScore(8, 5, 5, 5); got != 64 {
		t.Errorf("ReadinessScore(stressed) = %d, want 64", got)
	}
}
