package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironlog/ironlog/internal/migrate"
	"github.com/ironlog/ironlog/internal/ui"
)

var importCmd = &cobra.Command{
	Use:     "import <file.jsonl>",
	GroupID: "setup",
	Short:   "Import session logs exported by the first app version",
	Long: `Import a JSONL export of v1 session logs. Each line becomes a ppl
session plus one set row per set of each exercise. Imported rows are new
local changes and are pushed by the next sync.

Logs that match an existing session (same date, workout and label) are
skipped, so importing the same file twice is harmless.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		backup, _ := cmd.Flags().GetBool("backup")

		database, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		result, err := migrate.Import(context.Background(), database, migrate.ImportOptions{
			FromJSONL: args[0],
			DryRun:    dryRun,
			Backup:    backup,
		})
		if err != nil {
			return err
		}

		verb := "Imported"
		if dryRun {
			verb = "Would import"
		}
		fmt.Printf("%s %s %d sessions (%d sets)\n", ui.RenderPass("✓"), verb, result.SessionsImported, result.SetsImported)
		if result.SkippedDuplicates > 0 {
			fmt.Printf("   Skipped %d already imported\n", result.SkippedDuplicates)
		}
		if result.BackupCreated != "" {
			fmt.Printf("   Backup: %s\n", result.BackupCreated)
		}
		if result.LinesSkipped > 0 {
			fmt.Fprintf(os.Stderr, "%s Skipped %d invalid entries:\n", ui.RenderWarn("⚠"), result.LinesSkipped)
			for _, e := range result.Errors {
				fmt.Fprintf(os.Stderr, "   %s\n", e)
			}
		}
		return nil
	},
}

func init() {
	importCmd.Flags().Bool("dry-run", false, "Validate without writing")
	importCmd.Flags().Bool("backup", false, "Copy the input file before importing")
	rootCmd.AddCommand(importCmd)
}
