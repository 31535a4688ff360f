package main

import (
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "advanced",
	Short:   "Run the sync daemon with the real-time WebSocket dashboard",
	Long: `Run the sync daemon and serve its status over WebSocket.

WebSocket messages include:
- status: sync status snapshot, sent on connect and on every change
- pull_applied: a pull merged rows from the authority
- sync_result: outcome of a sync started with POST /sync

HTTP endpoints:
  GET  /health                 liveness and client count
  POST /sync                   run a sync now
  POST /visibility?visible=..  mark the app visible or hidden

Example usage:
  ironlog dashboard                # Start on the configured port (7420)
  ironlog dashboard --port 9000    # Start on custom port`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = cfg.Dashboard.Port
		}
		return runDaemon(true, port)
	},
}

func init() {
	dashboardCmd.Flags().IntP("port", "p", 0, "Port to listen on (default from config)")
	rootCmd.AddCommand(dashboardCmd)
}
