package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironlog/ironlog/internal/db"
	"github.com/ironlog/ironlog/internal/schema"
	"github.com/ironlog/ironlog/internal/ui"
)

var logCmd = &cobra.Command{
	Use:     "log",
	GroupID: "log",
	Short:   "Record workouts, readiness and body weight",
	Long: `Record entries in the local database. Every entry is marked for sync
and pushed by the next sync cycle.

Dates accept YYYY-MM-DD or natural language such as "yesterday" or
"last monday".`,
}

var logSessionCmd = &cobra.Command{
	Use:   "session <workout-type>",
	Short: "Log a workout session with its sets",
	Long: `Log a workout session. Each --set is NAME:WEIGHTxREPS[@RPE]; repeat the
flag once per set.

Examples:
  ironlog log session push --label "Push Day" --duration 55 \
    --set "Bench Press:80x8@8" --set "Bench Press:80x7@9"
  ironlog log session upper-a --split upper-lower --date yesterday`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		split, _ := cmd.Flags().GetString("split")
		label, _ := cmd.Flags().GetString("label")
		duration, _ := cmd.Flags().GetInt("duration")
		notes, _ := cmd.Flags().GetString("notes")
		rawSets, _ := cmd.Flags().GetStringArray("set")

		date, err := dateFlag(cmd)
		if err != nil {
			return err
		}
		specs := make([]setSpec, 0, len(rawSets))
		for _, raw := range rawSets {
			spec, err := parseSetSpec(raw)
			if err != nil {
				return err
			}
			specs = append(specs, spec)
		}
		if label == "" {
			label = args[0]
		}

		session := &schema.Session{
			Date:         date,
			SplitType:    split,
			WorkoutType:  args[0],
			WorkoutLabel: label,
			DurationMin:  duration,
			Notes:        notes,
		}
		sets := buildSets(specs)

		return withStore(func(ctx context.Context, database *db.DB) error {
			if err := database.SaveSessionWithSets(ctx, session, sets); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}
			fmt.Printf("%s Logged %s session on %s (%d sets)\n", ui.RenderPass("✓"), session.WorkoutType, session.Date, len(sets))
			fmt.Printf("   ID: %s\n", session.ID)
			return nil
		})
	},
}

var logReadinessCmd = &cobra.Command{
	Use:   "readiness",
	Short: "Log pre-workout readiness",
	Long: `Log sleep, stress and pain for a date. Logging the same date again
updates that day's entry. The readiness score is computed from the inputs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sleep, _ := cmd.Flags().GetFloat64("sleep")
		quality, _ := cmd.Flags().GetInt("quality")
		stress, _ := cmd.Flags().GetInt("stress")
		pain, _ := cmd.Flags().GetInt("pain")
		notes, _ := cmd.Flags().GetString("notes")

		date, err := dateFlag(cmd)
		if err != nil {
			return err
		}

		return withStore(func(ctx context.Context, database *db.DB) error {
			saved, err := database.SaveReadiness(ctx, &schema.ReadinessLog{
				Date:         date,
				SleepHours:   sleep,
				SleepQuality: quality,
				Stress:       stress,
				Pain:         pain,
				Notes:        notes,
			})
			if err != nil {
				return fmt.Errorf("failed to save readiness: %w", err)
			}
			fmt.Printf("%s Readiness for %s: %d/100\n", ui.RenderPass("✓"), saved.Date, saved.ReadinessScore)
			return nil
		})
	},
}

var logWeightCmd = &cobra.Command{
	Use:   "weight <kg>",
	Short: "Log body weight",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var kg float64
		if _, err := fmt.Sscanf(args[0], "%g", &kg); err != nil {
			return fmt.Errorf("invalid weight %q: %w", args[0], err)
		}
		notes, _ := cmd.Flags().GetString("notes")

		date, err := dateFlag(cmd)
		if err != nil {
			return err
		}

		return withStore(func(ctx context.Context, database *db.DB) error {
			saved, err := database.SaveWeight(ctx, &schema.WeightLog{Date: date, WeightKg: kg, Notes: notes})
			if err != nil {
				return fmt.Errorf("failed to save weight: %w", err)
			}
			fmt.Printf("%s Weight for %s: %.1f kg\n", ui.RenderPass("✓"), saved.Date, saved.WeightKg)
			return nil
		})
	},
}

var logDeleteCmd = &cobra.Command{
	Use:   "delete <table> <id>",
	Short: "Delete an entry",
	Long: `Delete an entry by id. Deleting a session also deletes its sets. The
deletion is synced to other devices.

Tables: sessions, exercise_sets, readiness_logs, weight_logs,
recommendations, app_settings`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := schema.ParseTable(args[0])
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, database *db.DB) error {
			if table == schema.TableSessions {
				err = database.SoftDeleteSession(ctx, args[1])
			} else {
				err = database.SoftDelete(ctx, table, args[1])
			}
			if err != nil {
				return fmt.Errorf("failed to delete: %w", err)
			}
			fmt.Printf("%s Deleted %s %s\n", ui.RenderPass("✓"), table, args[1])
			return nil
		})
	},
}

func dateFlag(cmd *cobra.Command) (string, error) {
	raw, _ := cmd.Flags().GetString("date")
	return parseDate(raw, time.Now())
}

// withStore opens the local database, runs fn and reports the number of
// changes waiting for sync.
func withStore(fn func(ctx context.Context, database *db.DB) error) error {
	database, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	if err := fn(ctx, database); err != nil {
		return err
	}
	if pending, err := database.DirtyCount(ctx); err == nil {
		fmt.Printf("   %s\n", ui.RenderMuted(fmt.Sprintf("%d changes pending sync", pending)))
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{logSessionCmd, logReadinessCmd, logWeightCmd} {
		c.Flags().String("date", "", "Date (YYYY-MM-DD or natural language, default today)")
		c.Flags().String("notes", "", "Notes")
		logCmd.AddCommand(c)
	}

	logSessionCmd.Flags().String("split", schema.SplitPPL, "Split type (ppl|upper-lower)")
	logSessionCmd.Flags().String("label", "", "Workout label (default: workout type)")
	logSessionCmd.Flags().Int("duration", 0, "Duration in minutes")
	logSessionCmd.Flags().StringArray("set", nil, "Set as NAME:WEIGHTxREPS[@RPE] (repeatable)")

	logReadinessCmd.Flags().Float64("sleep", 8, "Hours slept")
	logReadinessCmd.Flags().Int("quality", 3, "Sleep quality (1-5)")
	logReadinessCmd.Flags().Int("stress", 3, "Stress (1-5)")
	logReadinessCmd.Flags().Int("pain", 1, "Pain (1-5)")

	logCmd.AddCommand(logDeleteCmd)
	rootCmd.AddCommand(logCmd)
}
