package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ironlog/ironlog/internal/config"
	"github.com/ironlog/ironlog/internal/db"
	"github.com/ironlog/ironlog/internal/identity"
	"github.com/ironlog/ironlog/internal/logging"
	"github.com/ironlog/ironlog/internal/remote"
	"github.com/ironlog/ironlog/internal/scheduler"
	"github.com/ironlog/ironlog/internal/status"
	"github.com/ironlog/ironlog/internal/storageprobe"
	ironsync "github.com/ironlog/ironlog/internal/sync"
)

// engine is the wired sync stack shared by the sync, daemon and log
// commands.
type engine struct {
	db       *db.DB
	identity *identity.FileProvider
	remote   *remote.Client
	status   *status.Publisher
	events   *status.Events
	sched    *scheduler.Scheduler
}

// openStore opens and migrates the local database.
func openStore(cfg *config.Config) (*db.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	database, err := db.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.InitSchema(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return database, nil
}

func schedulerConfig(cfg *config.Config, sink *logging.Sink) *scheduler.Config {
	sc := scheduler.DefaultConfig()
	sc.MutationDebounce = cfg.Scheduler.MutationDebounce
	sc.PromptDelay = cfg.Scheduler.PromptDelay
	sc.MinGap = cfg.Scheduler.MinGap
	sc.AdaptiveIntervals = cfg.Scheduler.AdaptiveIntervals
	sc.RetrySteps = cfg.Scheduler.RetrySteps
	sc.Logger = sink.Logger("scheduler")
	return sc
}

// openEngine wires store, identity, transport, syncer and scheduler. The
// scheduler is not started.
func openEngine(cfg *config.Config, sink *logging.Sink) (*engine, error) {
	if cfg.Remote.BaseURL == "" {
		return nil, fmt.Errorf("remote.base_url is not configured (set it in %s or IRONLOG_REMOTE_BASE_URL)", config.FileName)
	}

	database, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	ident, err := identity.NewFileProvider(cfg.Identity.TokenPath, &identity.Config{
		Now:    time.Now,
		Logger: sink.Logger("identity"),
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	client := remote.New(remote.Config{
		BaseURL:  cfg.Remote.BaseURL,
		Timeout:  cfg.Remote.Timeout,
		Compress: cfg.Remote.Compress,
		Token:    ident.Token,
		Logger:   sink.Logger("remote"),
	})

	events := status.NewEvents()
	syncer := ironsync.New(database, client, ident, ironsync.Config{
		Logger:        sink.Logger("sync"),
		AckPolicy:     ironsync.AckStrict,
		OnPullApplied: events.PullApplied,
		Now:           time.Now,
	})

	pub := status.NewPublisher(status.Status{
		IsOnline: true,
		Storage:  storageprobe.Check(cfg.Store.Path),
	})

	sched, err := scheduler.New(scheduler.Deps{
		DB:       database,
		Syncer:   syncer,
		Identity: ident,
		Status:   pub,
	}, schedulerConfig(cfg, sink))
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	database.SetMutationHook(sched.NotifyMutation)

	return &engine{
		db:       database,
		identity: ident,
		remote:   client,
		status:   pub,
		events:   events,
		sched:    sched,
	}, nil
}

func (e *engine) Close() error {
	_ = e.sched.Stop()
	_ = e.identity.Stop()
	return e.db.Close()
}
