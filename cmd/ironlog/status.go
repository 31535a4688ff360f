package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ironlog/ironlog/internal/identity"
	"github.com/ironlog/ironlog/internal/remote"
	"github.com/ironlog/ironlog/internal/status"
	"github.com/ironlog/ironlog/internal/storageprobe"
	"github.com/ironlog/ironlog/internal/ui"
)

// statusReport is the machine-readable form of `ironlog status`.
type statusReport struct {
	status.Status `yaml:",inline"`

	Account  string `json:"account,omitempty" yaml:"account,omitempty"`
	Database string `json:"database" yaml:"database"`
	Remote   string `json:"remote,omitempty" yaml:"remote,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show sync status",
	Long: `Display the persisted sync state of the local database:

  - Last successful sync and the last error
  - Number of local changes waiting to be pushed
  - Retry count and next retry time after failures
  - Whether the authority is reachable
  - Whether the database lives on persistent storage`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		database, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		ctx := context.Background()
		state, err := database.LoadSyncState(ctx)
		if err != nil {
			return err
		}
		pending, err := database.DirtyCount(ctx)
		if err != nil {
			return err
		}

		report := statusReport{
			Status: status.Status{
				LastSyncAt:     state.LastSyncAt,
				SyncError:      state.LastError,
				PendingChanges: pending,
				RetryCount:     state.RetryCount,
				NextRetryAt:    state.NextRetryAt,
				Storage:        storageprobe.Check(cfg.Store.Path),
			},
			Database: cfg.Store.Path,
			Remote:   cfg.Remote.BaseURL,
		}

		if ident, err := identity.NewFileProvider(cfg.Identity.TokenPath, &identity.Config{Logger: sink.Logger("identity")}); err == nil {
			report.Account, _ = ident.Current(ctx)
		}

		if cfg.Remote.BaseURL != "" {
			probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			client := remote.New(remote.Config{BaseURL: cfg.Remote.BaseURL, Logger: sink.Logger("remote")})
			report.IsOnline = client.Health(probeCtx) == nil
			cancel()
		}

		switch format {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(report)
		case "text":
			fmt.Println()
			fmt.Print(ui.FormatStatus(report.Status, time.Now()))
			if report.Account != "" {
				fmt.Printf("\n  Signed in as %s\n", report.Account)
			} else {
				fmt.Printf("\n  %s\n", ui.RenderWarn("Not signed in (run 'ironlog login')"))
			}
			fmt.Printf("  Database: %s\n\n", report.Database)
			return nil
		default:
			return fmt.Errorf("invalid format %q: must be one of text, json, yaml", format)
		}
	},
}

func init() {
	statusCmd.Flags().String("format", "text", "Output format (text|json|yaml)")
	rootCmd.AddCommand(statusCmd)
}
