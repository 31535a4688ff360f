package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironlog/ironlog/internal/connectivity"
	"github.com/ironlog/ironlog/internal/dashboard"
	"github.com/ironlog/ironlog/internal/scheduler"
	"github.com/ironlog/ironlog/internal/status"
	"github.com/ironlog/ironlog/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the background sync engine (foreground)",
	Long: `Run the sync scheduler in the foreground until interrupted.

The daemon will:
  1. Sync shortly after startup, or resume a pending retry
  2. Sync a few seconds after every local change
  3. Sync when connectivity returns or the account changes
  4. Poll the authority on an adaptive interval while visible
  5. Back off after failures and retry automatically

Send SIGUSR1 to mark the app visible and SIGUSR2 to mark it hidden.
With --dashboard, status is streamed over WebSocket at /ws.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		withDashboard, _ := cmd.Flags().GetBool("dashboard")
		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = cfg.Dashboard.Port
		}
		return runDaemon(withDashboard, port)
	},
}

// httpProbe checks reachability with a HEAD request.
func httpProbe(url string) connectivity.Probe {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("probe returned %s", resp.Status)
		}
		return nil
	}
}

func runDaemon(withDashboard bool, port int) error {
	logger := sink.Logger("daemon")

	eng, err := openEngine(cfg, sink)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Identity
	if err := eng.identity.Start(); err != nil {
		return fmt.Errorf("failed to watch token file: %w", err)
	}
	unsubIdentity := eng.identity.OnChange(func(userID string) {
		if userID == "" {
			logger.Println("Signed out")
		} else {
			logger.Printf("Signed in as %s", userID)
		}
		eng.sched.OnIdentityChange()
	})
	defer unsubIdentity()

	// Connectivity
	probe := connectivity.Probe(eng.remote.Health)
	if cfg.Connectivity.ProbeURL != "" {
		probe = httpProbe(cfg.Connectivity.ProbeURL)
	}
	connCfg := connectivity.DefaultConfig()
	connCfg.Interval = cfg.Connectivity.ProbeInterval
	connCfg.Logger = sink.Logger("connectivity")
	monitor, err := connectivity.New(probe, connCfg)
	if err != nil {
		return err
	}
	unsubOnline := monitor.OnChange(eng.sched.SetOnline)
	defer unsubOnline()
	eng.sched.SetOnline(monitor.Check(ctx))

	// Visibility
	visibility := connectivity.NewVisibility(true)
	unsubVisible := visibility.OnChange(eng.sched.SetVisible)
	defer unsubVisible()
	stopSignals := watchVisibilitySignals(visibility, logger)
	defer stopSignals()

	unsubEvents := eng.events.Subscribe(func(ev status.Event) {
		if ev.Type == status.EventPullApplied {
			logger.Printf("Pulled %d changed rows", ev.ChangedRows)
		}
	})
	defer unsubEvents()

	// Dashboard
	if withDashboard {
		server := dashboard.NewServer(&dashboard.Config{
			Host: cfg.Dashboard.Host,
			Port: port,
			Sync: func(ctx context.Context) (scheduler.Outcome, error) {
				return eng.sched.SyncNow(ctx, scheduler.TriggerManual, true)
			},
			SetVisible: visibility.Set,
			Logger:     sink.Logger("dashboard"),
		})
		handler := dashboard.NewHandler(server, sink.Logger("dashboard"))
		detach := handler.Attach(eng.status, eng.events)
		defer detach()

		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}
		defer func() {
			if err := server.Stop(); err != nil {
				logger.Printf("Error stopping dashboard: %v", err)
			}
		}()

		fmt.Printf("   Dashboard: http://%s\n", server.GetAddr())
		fmt.Printf("   WebSocket: ws://%s/ws\n", server.GetAddr())
	}

	monitor.Start()
	defer monitor.Stop()

	if err := eng.sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	fmt.Printf("%s Sync daemon running\n", ui.RenderAccent("🚀"))
	fmt.Printf("   Database: %s\n", cfg.Store.Path)
	fmt.Printf("   Remote: %s\n", cfg.Remote.BaseURL)
	fmt.Printf("\nPress Ctrl+C to stop\n\n")

	<-ctx.Done()
	fmt.Println("\nShutting down...")
	return nil
}

func init() {
	daemonCmd.Flags().Bool("dashboard", false, "Serve the status dashboard")
	daemonCmd.Flags().IntP("port", "p", 0, "Dashboard port (default from config)")
	rootCmd.AddCommand(daemonCmd)
}
