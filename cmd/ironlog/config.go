package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ironlog/ironlog/internal/config"
	"github.com/ironlog/ironlog/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Manage the ironlog configuration",
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a default ironlog.toml",
	Annotations: map[string]string{skipConfigLoad: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		remoteURL, _ := cmd.Flags().GetString("remote")

		path := configPath
		if path == "" {
			path = filepath.Join(cfg.Home, config.FileName)
		}

		defaults := config.Default(cfg.Home)
		defaults.Remote.BaseURL = remoteURL
		if err := config.Write(path, defaults, force); err != nil {
			return err
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)
		if remoteURL == "" {
			fmt.Printf("   Set remote.base_url before syncing\n")
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.File != "" {
			fmt.Printf("# %s\n", cfg.File)
		} else {
			fmt.Printf("# no config file, using defaults\n")
		}
		return config.Encode(os.Stdout, cfg)
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
	configInitCmd.Flags().String("remote", "", "Authority base URL")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
