package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironlog/ironlog/internal/scheduler"
	ironsync "github.com/ironlog/ironlog/internal/sync"
	"github.com/ironlog/ironlog/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Push local changes and pull remote changes once",
	Long: `Run one sync cycle against the configured authority:

  1. Push every dirty row from the local database
  2. Pull rows changed on the authority since the last cursor
  3. Merge them by version, then server time

A cycle started less than scheduler.min_gap after the previous one is
skipped unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		eng, err := openEngine(cfg, sink)
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("%s Syncing with %s...\n", ui.RenderAccent("🔄"), cfg.Remote.BaseURL)
		start := time.Now()

		outcome, err := eng.sched.SyncNow(ctx, scheduler.TriggerManual, force)
		if err != nil {
			return fmt.Errorf("sync failed (%s): %w", ironsync.ErrorKind(err), err)
		}
		if outcome.Skipped != nil {
			fmt.Printf("%s Sync skipped: %s\n", ui.RenderWarn("⚠"), skipReason(outcome.Skipped))
			return nil
		}

		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Pushed: %d (%d accepted)\n", outcome.Push.Pushed, outcome.Push.Accepted)
		fmt.Printf("   Pulled: %d (%d applied, %d skipped)\n", outcome.Pull.Pulled, outcome.Pull.Applied, outcome.Pull.Skipped)
		return nil
	},
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ironsync.ErrNoIdentity):
		return "not signed in (run 'ironlog login')"
	case errors.Is(err, ironsync.ErrOffline):
		return "offline"
	case errors.Is(err, scheduler.ErrThrottled):
		return "last sync was too recent (use --force)"
	default:
		return err.Error()
	}
}

func init() {
	syncCmd.Flags().Bool("force", false, "Ignore the minimum gap between syncs")
	rootCmd.AddCommand(syncCmd)
}
