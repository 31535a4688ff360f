// Package migrate imports workout logs exported by the first version of
// the app, which kept one JSON document per session with its exercises
// inlined.
package migrate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ironlog/ironlog/internal/db"
	"github.com/ironlog/ironlog/internal/schema"
)

// LegacyExercise is one exercise line of a legacy log: a number of
// identical sets.
type LegacyExercise struct {
	Name   string  `json:"name"`
	Sets   int     `json:"sets"`
	Reps   int     `json:"reps"`
	Weight float64 `json:"weight"`
}

// LegacyLog is one line of the legacy JSONL export.
type LegacyLog struct {
	ID           *int             `json:"id,omitempty"`
	WorkoutType  string           `json:"workoutType"`
	WorkoutLabel string           `json:"workoutLabel"`
	Date         string           `json:"date"`
	DurationMin  int              `json:"durationMin"`
	Notes        string           `json:"notes"`
	Exercises    []LegacyExercise `json:"exercises"`
	CreatedAt    string           `json:"createdAt"`
}

// ImportOptions contains configuration for an import
type ImportOptions struct {
	FromJSONL string // Input JSONL file path
	DryRun    bool   // Validate without writing
	Backup    bool   // Copy the input next to itself first
}

// ImportResult contains statistics about the import
type ImportResult struct {
	SessionsImported  int
	SetsImported      int
	SkippedDuplicates int
	LinesSkipped      int
	BackupCreated     string
	Errors            []string
}

// ReadJSONL parses a legacy export. Blank lines are ignored; malformed lines
// are reported in errs and skipped.
func ReadJSONL(path string) (logs []LegacyLog, errs []string, err error) {
	// #nosec G304 - controlled path from CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open JSONL file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var log LegacyLog
		if err := json.Unmarshal([]byte(line), &log); err != nil {
			errs = append(errs, fmt.Sprintf("line %d: invalid JSON: %v", lineNum, err))
			continue
		}
		logs = append(logs, log)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read JSONL file: %w", err)
	}
	return logs, errs, nil
}

// ToSession converts a legacy log into a ppl session and one set row per
// set of each exercise. Metadata is left for the store to initialize.
func ToSession(log LegacyLog) (*schema.Session, []*schema.ExerciseSet) {
	session := &schema.Session{
		Date:         strings.TrimSpace(log.Date),
		SplitType:    schema.SplitPPL,
		WorkoutType:  strings.TrimSpace(log.WorkoutType),
		WorkoutLabel: strings.TrimSpace(log.WorkoutLabel),
		DurationMin:  log.DurationMin,
		Notes:        log.Notes,
	}

	var sets []*schema.ExerciseSet
	for i, ex := range log.Exercises {
		for n := 1; n <= ex.Sets; n++ {
			sets = append(sets, &schema.ExerciseSet{
				ExerciseName:  strings.TrimSpace(ex.Name),
				ExerciseOrder: i + 1,
				SetOrder:      n,
				WeightKg:      ex.Weight,
				Reps:          ex.Reps,
			})
		}
	}
	return session, sets
}

// validate runs entity validation on throwaway copies, the way the store
// would after initializing metadata.
func validate(session *schema.Session, sets []*schema.ExerciseSet, now time.Time) error {
	s := *session
	s.Init(now)
	if err := s.Validate(); err != nil {
		return err
	}
	for _, set := range sets {
		c := *set
		c.SessionID = s.ID
		c.Date = s.Date
		c.SplitType = s.SplitType
		c.WorkoutType = s.WorkoutType
		c.Init(now)
		if err := c.Validate(); err != nil {
			return fmt.Errorf("set %d of %q: %w", c.SetOrder, c.ExerciseName, err)
		}
	}
	return nil
}

// isDuplicate reports whether a live session with the same date, workout
// and label exists, so re-running an import is harmless.
func isDuplicate(ctx context.Context, database *db.DB, session *schema.Session) (bool, error) {
	existing, err := database.SessionsByDateRange(ctx, session.Date, session.Date)
	if err != nil {
		return false, err
	}
	for _, e := range existing {
		if e.WorkoutType == session.WorkoutType && e.WorkoutLabel == session.WorkoutLabel {
			return true, nil
		}
	}
	return false, nil
}

// Import writes every valid legacy log as new dirty rows, one transaction
// per log, so the next sync pushes them.
func Import(ctx context.Context, database *db.DB, opts ImportOptions) (*ImportResult, error) {
	result := &ImportResult{}

	if _, err := os.Stat(opts.FromJSONL); err != nil {
		return nil, fmt.Errorf("input file does not exist: %w", err)
	}

	if opts.Backup && !opts.DryRun {
		backupPath := opts.FromJSONL + ".backup." + time.Now().Format("20060102-150405")
		input, err := os.ReadFile(opts.FromJSONL)
		if err != nil {
			return nil, fmt.Errorf("failed to read input for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return nil, fmt.Errorf("failed to create backup: %w", err)
		}
		result.BackupCreated = backupPath
	}

	logs, lineErrs, err := ReadJSONL(opts.FromJSONL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSONL: %w", err)
	}
	result.Errors = append(result.Errors, lineErrs...)
	result.LinesSkipped += len(lineErrs)

	for i, log := range logs {
		session, sets := ToSession(log)
		label := fmt.Sprintf("log %d (%s %s)", i+1, session.Date, session.WorkoutType)

		if err := validate(session, sets, time.Now()); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", label, err))
			result.LinesSkipped++
			continue
		}

		dup, err := isDuplicate(ctx, database, session)
		if err != nil {
			return result, fmt.Errorf("failed to check for duplicates: %w", err)
		}
		if dup {
			result.SkippedDuplicates++
			continue
		}

		if !opts.DryRun {
			if err := database.SaveSessionWithSets(ctx, session, sets); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", label, err))
				result.LinesSkipped++
				continue
			}
		}
		result.SessionsImported++
		result.SetsImported += len(sets)
	}

	return result, nil
}
