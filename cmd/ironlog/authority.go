package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ironlog/ironlog/internal/authority"
)

var authorityCmd = &cobra.Command{
	Use:     "authority",
	GroupID: "advanced",
	Short:   "Run a reference sync authority",
}

var authorityServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the sync RPC endpoints",
	Long: `Serve /rpc/sync_push, /rpc/sync_pull and /health backed by a SQLite
database. Rows are partitioned by the bearer token's subject.

Set authority.secret (or IRONLOG_AUTHORITY_SECRET) to verify HS256 tokens.
Without a secret any unexpired token with a subject is accepted, which is
only suitable for local development.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if !cmd.Flags().Changed("addr") {
			addr = cfg.Authority.Addr
		}
		logger := sink.Logger("authority")

		store, err := authority.OpenStore(cfg.Authority.DSN)
		if err != nil {
			return fmt.Errorf("failed to open authority store: %w", err)
		}
		defer store.Close()

		if cfg.Authority.Secret == "" {
			logger.Println("Warning: no secret configured, token signatures are not verified")
		}

		gin.SetMode(gin.ReleaseMode)
		acfg := authority.DefaultConfig()
		acfg.Secret = cfg.Authority.Secret
		if len(cfg.Authority.AllowOrigins) > 0 {
			acfg.AllowOrigins = cfg.Authority.AllowOrigins
		}
		acfg.Logger = logger
		router := authority.NewRouter(store, acfg)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("Authority listening on %s\n", addr)
		fmt.Println("\nPress Ctrl+C to stop...")
		return authority.Serve(ctx, addr, router, logger)
	},
}

func init() {
	authorityServeCmd.Flags().String("addr", "", "Listen address (default from config)")
	authorityCmd.AddCommand(authorityServeCmd)
	rootCmd.AddCommand(authorityCmd)
}
