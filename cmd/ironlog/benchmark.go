package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironlog/ironlog/internal/loadtest"
)

var benchmarkCmd = &cobra.Command{
	Use:     "benchmark",
	GroupID: "advanced",
	Short:   "Load-test sync with simulated devices",
	Long: `Run a sync load test against an in-process authority.

Several simulated devices share one account. Each logs sessions with sets,
edits some of them and syncs every few sessions, all concurrently. The
command reports push and pull latency and checks that every device holds
the same rows afterwards.

Examples:
  # Default: 4 devices, 25 sessions each
  ironlog benchmark

  # 10 devices with compressed requests
  ironlog benchmark --devices 10 --compress

  # Output the result as JSON
  ironlog benchmark --json`,
	RunE: runBenchmark,
}

func init() {
	defaults := loadtest.DefaultConfig()
	benchmarkCmd.Flags().Int("devices", defaults.Devices, "Number of concurrent devices")
	benchmarkCmd.Flags().Int("sessions", defaults.SessionsPerDevice, "Sessions logged per device")
	benchmarkCmd.Flags().Int("sets", defaults.SetsPerSession, "Sets per session")
	benchmarkCmd.Flags().Int("sync-every", defaults.SyncEvery, "Sessions between syncs")
	benchmarkCmd.Flags().Bool("compress", false, "Compress request bodies")
	benchmarkCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(benchmarkCmd)
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	devices, _ := cmd.Flags().GetInt("devices")
	sessions, _ := cmd.Flags().GetInt("sessions")
	sets, _ := cmd.Flags().GetInt("sets")
	syncEvery, _ := cmd.Flags().GetInt("sync-every")
	compress, _ := cmd.Flags().GetBool("compress")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if devices <= 0 {
		return fmt.Errorf("--devices must be positive")
	}
	if sessions <= 0 {
		return fmt.Errorf("--sessions must be positive")
	}
	if sets < 0 {
		return fmt.Errorf("--sets must not be negative")
	}

	config := loadtest.Config{
		Devices:           devices,
		SessionsPerDevice: sessions,
		SetsPerSession:    sets,
		SyncEvery:         syncEvery,
		Compress:          compress,
	}

	if !jsonOutput {
		fmt.Println("Running sync load test...")
		fmt.Printf("Configuration: %d devices, %d sessions/device, %d sets/session\n", devices, sessions, sets)
	}

	result, err := loadtest.Run(context.Background(), config)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		loadtest.PrintResult(os.Stdout, result)
	}

	// Non-zero exit for CI when devices disagree.
	if !result.Converged {
		return fmt.Errorf("devices did not converge")
	}
	return nil
}
