// Package loadtest simulates several devices of one account logging
// workouts and syncing concurrently against an in-process authority.
//
// It measures push and pull latency and verifies that every device ends up
// with the same rows once the load stops.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/ironlog/ironlog/internal/authority"
	"github.com/ironlog/ironlog/internal/db"
	"github.com/ironlog/ironlog/internal/identity"
	"github.com/ironlog/ironlog/internal/remote"
	"github.com/ironlog/ironlog/internal/schema"
	ironsync "github.com/ironlog/ironlog/internal/sync"
)

// Config defines the parameters for a load test run.
type Config struct {
	// Devices is the number of concurrent devices sharing the account
	Devices int

	// SessionsPerDevice is how many sessions each device logs
	SessionsPerDevice int

	// SetsPerSession is the number of sets logged with each session
	SetsPerSession int

	// SyncEvery is the number of sessions a device logs between syncs
	SyncEvery int

	// Compress request bodies
	Compress bool

	// Dir holds the device databases (default: a temporary directory that
	// is removed afterwards)
	Dir string `json:"-"`

	// Logger for component output (default: discarded)
	Logger *log.Logger `json:"-"`
}

// DefaultConfig returns a load test configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Devices:           4,
		SessionsPerDevice: 25,
		SetsPerSession:    6,
		SyncEvery:         5,
	}
}

// LatencyStats captures round-trip statistics.
type LatencyStats struct {
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration // Median
	P95   time.Duration
	P99   time.Duration
	Count int
}

// Result captures all metrics from a run.
type Result struct {
	Config Config

	Push LatencyStats
	Pull LatencyStats

	RowsPushed int
	RowsPulled int

	// ExpectedRows is the number of live rows every device should hold.
	ExpectedRows int

	// Converged is true when every device holds ExpectedRows live rows,
	// none of them dirty, and the authority agrees.
	Converged bool

	Errors        int
	TotalDuration time.Duration
	Memory        MemoryStats
}

type device struct {
	name   string
	db     *db.DB
	syncer ironsync.Syncer
}

// Run executes the load test.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Devices < 1 || cfg.SessionsPerDevice < 1 {
		return nil, fmt.Errorf("devices and sessions per device must be positive")
	}
	if cfg.SyncEvery < 1 {
		cfg.SyncEvery = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.Dir == "" {
		dir, err := os.MkdirTemp("", "ironlog-loadtest-")
		if err != nil {
			return nil, fmt.Errorf("failed to create work directory: %w", err)
		}
		defer os.RemoveAll(dir)
		cfg.Dir = dir
	}

	store, err := authority.OpenStore("file::memory:")
	if err != nil {
		return nil, err
	}
	defer store.Close()

	acfg := authority.DefaultConfig()
	acfg.Logger = cfg.Logger
	server := httptest.NewServer(authority.NewRouter(store, acfg))
	defer server.Close()

	const owner = "loadtest"
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"sub": owner,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	ident := identity.Static{UserID: owner, AccessToken: token}

	devices := make([]*device, 0, cfg.Devices)
	defer func() {
		for _, d := range devices {
			_ = d.db.Close()
		}
	}()
	for i := 0; i < cfg.Devices; i++ {
		d, err := openDevice(cfg, i, server.URL, ident)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}

	result := &Result{
		Config:       cfg,
		ExpectedRows: cfg.Devices * cfg.SessionsPerDevice * (1 + cfg.SetsPerSession),
	}
	before := ReadMemoryStats()
	start := time.Now()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		pushTime []time.Duration
		pullTime []time.Duration
	)
	for i, d := range devices {
		wg.Add(1)
		go func(idx int, d *device) {
			defer wg.Done()
			pushes, pulls, pushed, pulled, errs := d.work(ctx, cfg, idx)

			mu.Lock()
			defer mu.Unlock()
			pushTime = append(pushTime, pushes...)
			pullTime = append(pullTime, pulls...)
			result.RowsPushed += pushed
			result.RowsPulled += pulled
			result.Errors += errs
		}(i, d)
	}
	wg.Wait()

	// Two quiet rounds: the first drains every device, the second lets
	// early devices see what later ones pushed.
	for round := 0; round < 2; round++ {
		for _, d := range devices {
			if _, err := d.syncer.Push(ctx); err != nil {
				return nil, fmt.Errorf("%s: final push failed: %w", d.name, err)
			}
			if _, err := d.syncer.Pull(ctx); err != nil {
				return nil, fmt.Errorf("%s: final pull failed: %w", d.name, err)
			}
		}
	}

	result.TotalDuration = time.Since(start)
	result.Memory = CompareMemoryStats(before, ReadMemoryStats())
	result.Push = ComputeStats(pushTime)
	result.Pull = ComputeStats(pullTime)

	converged, err := verify(ctx, devices, store, owner, result.ExpectedRows)
	if err != nil {
		return nil, err
	}
	result.Converged = converged
	return result, nil
}

func openDevice(cfg Config, idx int, baseURL string, ident identity.Static) (*device, error) {
	name := fmt.Sprintf("device-%d", idx+1)
	database, err := db.Open(filepath.Join(cfg.Dir, name+".db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	if err := database.InitSchema(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize %s: %w", name, err)
	}

	client := remote.New(remote.Config{
		BaseURL:  baseURL,
		Timeout:  30 * time.Second,
		Compress: cfg.Compress,
		Token:    ident.Token,
		Logger:   cfg.Logger,
	})
	syncer := ironsync.New(database, client, ident, ironsync.Config{
		Logger:    cfg.Logger,
		AckPolicy: ironsync.AckStrict,
		Now:       time.Now,
	})
	return &device{name: name, db: database, syncer: syncer}, nil
}

var (
	workouts  = []string{"push", "pull", "leg"}
	exercises = map[string][]string{
		"push": {"Bench Press", "Overhead Press", "Dips"},
		"pull": {"Deadlift", "Barbell Row", "Pull-up"},
		"leg":  {"Squat", "Leg Press", "Romanian Deadlift"},
	}
)

// work logs the device's sessions, syncing every cfg.SyncEvery sessions.
func (d *device) work(ctx context.Context, cfg Config, idx int) (pushes, pulls []time.Duration, pushed, pulled, errs int) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < cfg.SessionsPerDevice; i++ {
		workout := workouts[i%len(workouts)]
		session := &schema.Session{
			Date:         base.AddDate(0, 0, i).Format(schema.DateLayout),
			SplitType:    schema.SplitPPL,
			WorkoutType:  workout,
			WorkoutLabel: fmt.Sprintf("%s %d", d.name, i+1),
			DurationMin:  45 + i%30,
		}
		sets := make([]*schema.ExerciseSet, 0, cfg.SetsPerSession)
		for s := 0; s < cfg.SetsPerSession; s++ {
			names := exercises[workout]
			sets = append(sets, &schema.ExerciseSet{
				ExerciseName:  names[s%len(names)],
				ExerciseOrder: s%len(names) + 1,
				SetOrder:      s/len(names) + 1,
				WeightKg:      float64(40 + 5*idx + s),
				Reps:          8,
			})
		}
		if err := d.db.SaveSessionWithSets(ctx, session, sets); err != nil {
			errs++
			continue
		}
		if i%3 == 0 {
			if _, err := d.db.UpdateSession(ctx, session.ID, func(s *schema.Session) {
				s.Notes = "edited"
			}); err != nil {
				errs++
			}
		}

		if (i+1)%cfg.SyncEvery != 0 {
			continue
		}

		start := time.Now()
		pr, err := d.syncer.Push(ctx)
		if err != nil {
			errs++
			continue
		}
		pushes = append(pushes, time.Since(start))
		pushed += pr.Accepted

		start = time.Now()
		pl, err := d.syncer.Pull(ctx)
		if err != nil {
			errs++
			continue
		}
		pulls = append(pulls, time.Since(start))
		pulled += pl.Pulled
	}
	return pushes, pulls, pushed, pulled, errs
}

func verify(ctx context.Context, devices []*device, store *authority.Store, owner string, expected int) (bool, error) {
	remoteRows := 0
	for _, table := range []schema.Table{schema.TableSessions, schema.TableExerciseSets} {
		n, err := store.Count(ctx, owner, table)
		if err != nil {
			return false, err
		}
		remoteRows += n
	}
	if remoteRows != expected {
		return false, nil
	}

	for _, d := range devices {
		dirty, err := d.db.DirtyCount(ctx)
		if err != nil {
			return false, err
		}
		var sessions, sets int
		raw := d.db.RawDB()
		if err := raw.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE deleted_at IS NULL").Scan(&sessions); err != nil {
			return false, fmt.Errorf("failed to count sessions: %w", err)
		}
		if err := raw.QueryRowContext(ctx, "SELECT COUNT(*) FROM exercise_sets WHERE deleted_at IS NULL").Scan(&sets); err != nil {
			return false, fmt.Errorf("failed to count sets: %w", err)
		}
		if dirty != 0 || sessions+sets != expected {
			return false, nil
		}
	}
	return true, nil
}

// ComputeStats calculates statistics from raw durations.
func ComputeStats(durations []time.Duration) LatencyStats {
	if len(durations) == 0 {
		return LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return LatencyStats{
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  sum / time.Duration(len(sorted)),
		P50:   sorted[len(sorted)*50/100],
		P95:   sorted[len(sorted)*95/100],
		P99:   sorted[len(sorted)*99/100],
		Count: len(sorted),
	}
}
