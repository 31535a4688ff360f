package schema

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used by dated entities.
const DateLayout = "2006-01-02"

// Split types.
const (
	SplitPPL        = "ppl"
	SplitUpperLower = "upper-lower"
)

// Recommendation statuses.
const (
	RecommendationPending  = "pending"
	RecommendationAccepted = "accepted"
	RecommendationIgnored  = "ignored"
)

var (
	splitTypes = map[string][]string{
		SplitPPL:        {"push", "pull", "leg"},
		SplitUpperLower: {"upper-a", "upper-b", "lower-a", "lower-b"},
	}
	techniques          = []string{"dropset", "rest-pause", "superset", "myo-reps"}
	recommendationKinds = []string{"increase-load", "increase-reps", "reduce-intensity", "consider-deload"}
	recommendationStats = []string{RecommendationPending, RecommendationAccepted, RecommendationIgnored}
)

// Session is one workout occurrence.
type Session struct {
	SyncMetadata

	Date         string `json:"date"`
	SplitType    string `json:"split_type"`
	WorkoutType  string `json:"workout_type"`
	WorkoutLabel string `json:"workout_label"`
	DurationMin  int    `json:"duration_min"`
	Notes        string `json:"notes"`
}

func (s *Session) Meta() *SyncMetadata { return &s.SyncMetadata }
func (s *Session) Table() Table        { return TableSessions }

// Validate checks if the Session has valid field values.
func (s *Session) Validate() error {
	if err := s.ValidateMeta(); err != nil {
		return err
	}
	if err := ValidateDate(s.Date); err != nil {
		return err
	}
	if err := validateWorkout(s.SplitType, s.WorkoutType); err != nil {
		return err
	}
	if s.DurationMin < 0 {
		return fmt.Errorf("duration_min must not be negative (got %d)", s.DurationMin)
	}
	return nil
}

// ExerciseSet is one logged set, owned by a Session through SessionID.
type ExerciseSet struct {
	SyncMetadata

	SessionID     string   `json:"session_id"`
	Date          string   `json:"date"`
	SplitType     string   `json:"split_type"`
	WorkoutType   string   `json:"workout_type"`
	ExerciseID    *string  `json:"exercise_id"`
	ExerciseName  string   `json:"exercise_name"`
	ExerciseOrder int      `json:"exercise_order"`
	SetOrder      int      `json:"set_order"`
	WeightKg      float64  `json:"weight_kg"`
	Reps          int      `json:"reps"`
	RPE           *float64 `json:"rpe"`
	RIR           *float64 `json:"rir"`
	Technique     *string  `json:"technique"`
}

func (e *ExerciseSet) Meta() *SyncMetadata { return &e.SyncMetadata }
func (e *ExerciseSet) Table() Table        { return TableExerciseSets }

// Validate checks if the ExerciseSet has valid field values.
func (e *ExerciseSet) Validate() error {
	if err := e.ValidateMeta(); err != nil {
		return err
	}
	if e.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if e.ExerciseName == "" {
		return fmt.Errorf("exercise_name is required")
	}
	if err := ValidateDate(e.Date); err != nil {
		return err
	}
	if err := validateWorkout(e.SplitType, e.WorkoutType); err != nil {
		return err
	}
	if e.Reps < 0 {
		return fmt.Errorf("reps must not be negative (got %d)", e.Reps)
	}
	if e.WeightKg < 0 {
		return fmt.Errorf("weight_kg must not be negative (got %v)", e.WeightKg)
	}
	if e.RPE != nil && (*e.RPE < 1 || *e.RPE > 10) {
		return fmt.Errorf("rpe must be between 1 and 10 (got %v)", *e.RPE)
	}
	if e.Technique != nil && !contains(techniques, *e.Technique) {
		return fmt.Errorf("unknown technique %q", *e.Technique)
	}
	return nil
}

// ReadinessLog records pre-workout readiness inputs. One live row per date.
type ReadinessLog struct {
	SyncMetadata

	Date           string  `json:"date"`
	SleepHours     float64 `json:"sleep_hours"`
	SleepQuality   int     `json:"sleep_quality"`
	Stress         int     `json:"stress"`
	Pain           int     `json:"pain"`
	ReadinessScore int     `json:"readiness_score"`
	Notes          string  `json:"notes"`
}

func (r *ReadinessLog) Meta() *SyncMetadata { return &r.SyncMetadata }
func (r *ReadinessLog) Table() Table        { return TableReadinessLogs }

// Validate checks if the ReadinessLog has valid field values.
func (r *ReadinessLog) Validate() error {
	if err := r.ValidateMeta(); err != nil {
		return err
	}
	if err := ValidateDate(r.Date); err != nil {
		return err
	}
	if r.SleepHours < 0 || r.SleepHours > 24 {
		return fmt.Errorf("sleep_hours must be between 0 and 24 (got %v)", r.SleepHours)
	}
	for name, v := range map[string]int{"sleep_quality": r.SleepQuality, "stress": r.Stress, "pain": r.Pain} {
		if v < 1 || v > 5 {
			return fmt.Errorf("%s must be between 1 and 5 (got %d)", name, v)
		}
	}
	return nil
}

// WeightLog records body weight. One live row per date.
type WeightLog struct {
	SyncMetadata

	Date     string  `json:"date"`
	WeightKg float64 `json:"weight_kg"`
	Notes    string  `json:"notes"`
}

func (w *WeightLog) Meta() *SyncMetadata { return &w.SyncMetadata }
func (w *WeightLog) Table() Table        { return TableWeightLogs }

// Validate checks if the WeightLog has valid field values.
func (w *WeightLog) Validate() error {
	if err := w.ValidateMeta(); err != nil {
		return err
	}
	if err := ValidateDate(w.Date); err != nil {
		return err
	}
	if w.WeightKg <= 0 {
		return fmt.Errorf("weight_kg must be positive (got %v)", w.WeightKg)
	}
	return nil
}

// Recommendation is a date-scoped training suggestion.
type Recommendation struct {
	SyncMetadata

	Date        string  `json:"date"`
	SplitType   *string `json:"split_type"`
	WorkoutType *string `json:"workout_type"`
	Kind        string  `json:"kind"`
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Reason      string  `json:"reason"`
}

func (r *Recommendation) Meta() *SyncMetadata { return &r.SyncMetadata }
func (r *Recommendation) Table() Table        { return TableRecommendations }

// Validate checks if the Recommendation has valid field values.
func (r *Recommendation) Validate() error {
	if err := r.ValidateMeta(); err != nil {
		return err
	}
	if err := ValidateDate(r.Date); err != nil {
		return err
	}
	if !contains(recommendationKinds, r.Kind) {
		return fmt.Errorf("unknown recommendation kind %q", r.Kind)
	}
	if !ValidRecommendationStatus(r.Status) {
		return fmt.Errorf("unknown recommendation status %q", r.Status)
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (r *Recommendation) SetDefaults() {
	if r.Status == "" {
		r.Status = RecommendationPending
	}
}

// AppSetting is a key/value preference. One live row per key.
type AppSetting struct {
	SyncMetadata

	Key   string `json:"key"`
	Value string `json:"value"`
}

func (a *AppSetting) Meta() *SyncMetadata { return &a.SyncMetadata }
func (a *AppSetting) Table() Table        { return TableAppSettings }

// Validate checks if the AppSetting has valid field values.
func (a *AppSetting) Validate() error {
	if err := a.ValidateMeta(); err != nil {
		return err
	}
	if a.Key == "" {
		return fmt.Errorf("key is required")
	}
	return nil
}

// ValidateDate checks a calendar date in DateLayout.
func ValidateDate(date string) error {
	if date == "" {
		return fmt.Errorf("date is required")
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: %w", date, err)
	}
	return nil
}

// ValidRecommendationStatus reports whether status is a known status.
func ValidRecommendationStatus(status string) bool {
	return contains(recommendationStats, status)
}

func validateWorkout(split, workout string) error {
	workouts, ok := splitTypes[split]
	if !ok {
		return fmt.Errorf("unknown split_type %q", split)
	}
	if !contains(workouts, workout) {
		return fmt.Errorf("workout_type %q does not belong to split %q", workout, split)
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
