// Command ironlog is the local-first workout log and its sync engine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironlog/ironlog/internal/config"
	"github.com/ironlog/ironlog/internal/logging"
	"github.com/ironlog/ironlog/internal/ui"
)

// skipConfigLoad marks commands that must run without a readable config
// file.
const skipConfigLoad = "ironlog/skip-config-load"

var (
	configPath string
	noColor    bool

	cfg  *config.Config
	sink *logging.Sink
)

var rootCmd = &cobra.Command{
	Use:   "ironlog",
	Short: "Local-first workout log with background sync",
	Long: `ironlog keeps your workout log in a local SQLite database and syncs it
with an authority server whenever a connection and a signed-in account are
available.

Configuration is read from ironlog.toml in $IRONLOG_HOME (default ~/.ironlog)
and can be overridden with IRONLOG_<SECTION>_<KEY> environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			ui.SetColor(false)
		}
		if cmd.Annotations[skipConfigLoad] != "" {
			home, err := config.Home()
			if err != nil {
				return err
			}
			cfg = config.Default(home)
			sink = logging.NewSink(os.Stderr)
			return nil
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		s, err := logging.Open(logging.Config{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		})
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		sink = s
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if sink != nil {
			_ = sink.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $IRONLOG_HOME/ironlog.toml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "log", Title: "Logging workouts:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
		&cobra.Group{ID: "advanced", Title: "Advanced:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
