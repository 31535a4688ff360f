// Package scheduler decides when sync cycles run.
//
// The scheduler owns the single in-flight cycle, the debounced request
// timer, the adaptive idle poll and the failure backoff. A cycle is
// push, then pull, then bookkeeping. Its results are persisted in the
// sync_state table and published through a status.Publisher.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ironlog/ironlog/internal/db"
	"github.com/ironlog/ironlog/internal/schema"
	"github.com/ironlog/ironlog/internal/status"
	ironsync "github.com/ironlog/ironlog/internal/sync"
)

// ErrThrottled marks a request that arrived within MinGap of the previous
// cycle start. A retry timer is armed for the remainder of the gap.
var ErrThrottled = errors.New("sync throttled")

// Outcome describes what a SyncNow call observed.
type Outcome struct {
	// Trigger that started the cycle. A joined call reports the trigger of
	// the cycle it joined.
	Trigger Trigger

	// Skipped is ironsync.ErrOffline, ironsync.ErrNoIdentity or
	// ErrThrottled when no cycle body ran.
	Skipped error

	// Shared is true when the result came from a cycle started by another
	// caller.
	Shared bool

	Push ironsync.PushResult
	Pull ironsync.PullResult
}

// Ran reports whether push and pull both completed.
func (o Outcome) Ran() bool {
	return o.Skipped == nil && !o.Pull.ServerTime.IsZero()
}

// Deps are the collaborators a Scheduler drives.
type Deps struct {
	DB       *db.DB
	Syncer   ironsync.Syncer
	Identity ironsync.Identity
	Status   *status.Publisher
}

// Scheduler runs sync cycles on demand and on timers.
type Scheduler struct {
	db       *db.DB
	syncer   ironsync.Syncer
	identity ironsync.Identity
	status   *status.Publisher
	config   *Config
	clock    Clock

	group singleflight.Group

	mu            sync.Mutex
	running       bool
	cycle         uint64
	joined        int
	lastStart     time.Time
	online        bool
	visible       bool
	adaptiveIndex int
	scheduled     Timer
	adaptive      Timer
	stopped       bool
	release       func() bool

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a scheduler. It starts online and visible.
func New(deps Deps, config *Config) (*Scheduler, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if deps.Syncer == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if deps.Identity == nil {
		return nil, fmt.Errorf("identity cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Clock == nil {
		config.Clock = RealClock{}
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	pub := deps.Status
	if pub == nil {
		pub = status.NewPublisher(status.Status{IsOnline: true})
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		db:       deps.DB,
		syncer:   deps.Syncer,
		identity: deps.Identity,
		status:   pub,
		config:   config,
		clock:    config.Clock,
		online:   true,
		visible:  true,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Status returns the publisher the scheduler reports to.
func (s *Scheduler) Status() *status.Publisher {
	return s.status
}

// Start loads persisted sync state into the status and arms the first
// cycle: a pending retry from a previous run when next_retry_at is still in
// the future, otherwise a startup request. It does not block. The
// scheduler stops when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.config.Logger.Println("Starting scheduler")

	state, err := s.db.LoadSyncState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sync state: %w", err)
	}
	pending, err := s.db.DirtyCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count pending changes: %w", err)
	}

	s.mu.Lock()
	online := s.online
	s.mu.Unlock()

	s.status.Update(func(st *status.Status) {
		st.IsOnline = online
		st.LastSyncAt = state.LastSyncAt
		st.SyncError = state.LastError
		st.RetryCount = state.RetryCount
		st.NextRetryAt = state.NextRetryAt
		st.PendingChanges = pending
	})

	now := s.clock.Now()
	if state.NextRetryAt != nil && state.NextRetryAt.After(now) {
		delay := state.NextRetryAt.Sub(now)
		s.config.Logger.Printf("Resuming retry #%d in %s", state.RetryCount, delay)
		s.mu.Lock()
		s.armScheduledLocked(delay, TriggerRetry)
		s.mu.Unlock()
	} else {
		s.Request(TriggerStartup)
	}

	release := context.AfterFunc(ctx, func() {
		s.config.Logger.Println("Shutdown signal received")
		s.Stop()
	})
	s.mu.Lock()
	s.release = release
	s.mu.Unlock()
	return nil
}

// Stop cancels timers and the running cycle, and waits for timer-started
// cycles to return. It is safe to call more than once.
func (s *Scheduler) Stop() error {
	s.stopOnce.Do(func() {
		s.config.Logger.Println("Stopping scheduler")

		s.mu.Lock()
		s.stopped = true
		stopTimer(&s.scheduled)
		stopTimer(&s.adaptive)
		release := s.release
		s.mu.Unlock()

		if release != nil {
			release()
		}

		s.cancel()
		s.wg.Wait()

		s.config.Logger.Println("Scheduler stopped")
	})
	return nil
}

// Request schedules a cycle after the trigger's delay: MutationDebounce for
// a mutation, PromptDelay otherwise. A new request replaces any pending
// request or retry timer.
func (s *Scheduler) Request(trigger Trigger) {
	delay := s.config.PromptDelay
	if trigger == TriggerMutation {
		delay = s.config.MutationDebounce
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armScheduledLocked(delay, trigger)
}

// NotifyMutation refreshes the pending count and requests a debounced
// cycle. It matches db.MutationHook.
func (s *Scheduler) NotifyMutation(table schema.Table) {
	s.refreshPending(s.ctx)
	s.Request(TriggerMutation)
}

// SetOnline records a connectivity transition. Going online requests a
// cycle.
func (s *Scheduler) SetOnline(online bool) {
	s.mu.Lock()
	changed := s.online != online
	s.online = online
	s.mu.Unlock()

	s.status.Update(func(st *status.Status) { st.IsOnline = online })
	if online && changed {
		s.Request(TriggerOnline)
	}
}

// SetVisible records a foreground transition. Becoming visible requests a
// cycle and arms the adaptive poll; going hidden cancels the poll.
func (s *Scheduler) SetVisible(visible bool) {
	s.mu.Lock()
	s.visible = visible
	if !visible {
		stopTimer(&s.adaptive)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.Request(TriggerVisibility)
	s.armAdaptive()
}

// OnIdentityChange requests a cycle when an account becomes available.
func (s *Scheduler) OnIdentityChange() {
	if _, ok := s.identity.Current(s.ctx); ok {
		s.Request(TriggerAuth)
		return
	}
	s.status.Update(func(st *status.Status) { st.SyncError = "" })
}

// SyncNow runs a cycle, or joins the one already in flight.
//
// Unless force is set, a request within MinGap of the previous cycle start
// does not run; it arms a retry timer for the rest of the gap and returns
// an Outcome with Skipped set to ErrThrottled. A failed cycle returns its
// error after recording it and arming the backoff timer. Cancelling ctx
// abandons the wait but not the cycle.
func (s *Scheduler) SyncNow(ctx context.Context, trigger Trigger, force bool) (Outcome, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return Outcome{Trigger: trigger}, fmt.Errorf("scheduler stopped")
	}
	if s.running {
		s.joined++
		s.config.Logger.Printf("Sync requested (%s) while a cycle is running; joining it", trigger)
	} else {
		now := s.clock.Now()
		elapsed := now.Sub(s.lastStart)
		if !force && !s.lastStart.IsZero() && elapsed < s.config.MinGap {
			delay := max(s.config.ThrottleFloor, s.config.MinGap-elapsed)
			s.armScheduledLocked(delay, TriggerRetry)
			s.mu.Unlock()
			return Outcome{Trigger: trigger, Skipped: ErrThrottled}, nil
		}
		s.running = true
		s.cycle++
	}
	key := strconv.FormatUint(s.cycle, 10)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.runCycle(trigger)
	})
	s.mu.Unlock()

	select {
	case res := <-ch:
		out, _ := res.Val.(Outcome)
		out.Shared = res.Shared
		return out, res.Err
	case <-ctx.Done():
		return Outcome{Trigger: trigger}, ctx.Err()
	}
}

// runCycle is the body shared by every caller of one cycle.
func (s *Scheduler) runCycle(trigger Trigger) (Outcome, error) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx := s.ctx
	out := Outcome{Trigger: trigger}

	s.mu.Lock()
	online := s.online
	s.mu.Unlock()
	if !online {
		s.status.Update(func(st *status.Status) { st.IsOnline = false })
		out.Skipped = ironsync.ErrOffline
		return out, nil
	}
	if _, ok := s.identity.Current(ctx); !ok {
		s.status.Update(func(st *status.Status) { st.SyncError = "" })
		out.Skipped = ironsync.ErrNoIdentity
		return out, nil
	}

	s.mu.Lock()
	s.lastStart = s.clock.Now()
	s.mu.Unlock()

	s.config.Logger.Printf("Sync started (%s)", trigger)
	s.status.Update(func(st *status.Status) {
		st.IsSyncing = true
		st.IsOnline = true
		st.SyncError = ""
	})
	defer s.finish(ctx)

	var err error
	if out.Push, err = s.syncer.Push(ctx); err != nil {
		return out, s.recordFailure(ctx, fmt.Errorf("push failed: %w", err))
	}
	if out.Pull, err = s.syncer.Pull(ctx); err != nil {
		return out, s.recordFailure(ctx, fmt.Errorf("pull failed: %w", err))
	}
	if err := s.recordSuccess(ctx, out); err != nil {
		return out, s.recordFailure(ctx, err)
	}

	s.config.Logger.Printf("Sync complete: pushed %d (accepted %d), pulled %d (applied %d)",
		out.Push.Pushed, out.Push.Accepted, out.Pull.Pulled, out.Pull.Applied)
	return out, nil
}

// recordSuccess persists the bookkeeping of a clean cycle, resets the
// backoff and picks the next adaptive tier.
func (s *Scheduler) recordSuccess(ctx context.Context, out Outcome) error {
	pending, err := s.db.DirtyCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count pending changes: %w", err)
	}

	lastSyncAt := s.clock.Now().UTC()
	switch {
	case !out.Pull.ServerTime.IsZero():
		lastSyncAt = out.Pull.ServerTime
	case !out.Push.ServerTime.IsZero():
		lastSyncAt = out.Push.ServerTime
	}

	err = s.db.SetSyncStates(ctx, map[string]string{
		db.StateLastSyncAt:  db.FormatTime(lastSyncAt),
		db.StateLastError:   "",
		db.StateNextRetryAt: "",
		db.StateRetryCount:  "0",
	})
	if err != nil {
		return fmt.Errorf("failed to persist sync state: %w", err)
	}

	s.status.Update(func(st *status.Status) {
		st.LastSyncAt = &lastSyncAt
		st.SyncError = ""
		st.PendingChanges = pending
		st.RetryCount = 0
		st.NextRetryAt = nil
	})

	s.mu.Lock()
	if pending > 0 || out.Pull.Pulled > 0 {
		s.adaptiveIndex = 0
	} else if s.adaptiveIndex < len(s.config.AdaptiveIntervals)-1 {
		s.adaptiveIndex++
	}
	s.mu.Unlock()

	s.armAdaptive()
	return nil
}

// recordFailure bumps the persisted retry count, arms the backoff timer and
// returns cause.
func (s *Scheduler) recordFailure(ctx context.Context, cause error) error {
	retryCount := 1
	if state, err := s.db.LoadSyncState(ctx); err != nil {
		s.config.Logger.Printf("Warning: failed to read retry count: %v", err)
	} else {
		retryCount = state.RetryCount + 1
	}

	delay := s.config.Backoff(retryCount)
	nextRetryAt := s.clock.Now().Add(delay).UTC()

	err := s.db.SetSyncStates(ctx, map[string]string{
		db.StateRetryCount:  strconv.Itoa(retryCount),
		db.StateLastError:   cause.Error(),
		db.StateNextRetryAt: db.FormatTime(nextRetryAt),
	})
	if err != nil {
		s.config.Logger.Printf("Warning: failed to persist sync failure: %v", err)
	}

	s.config.Logger.Printf("Sync failed (retry #%d in %s): %v", retryCount, delay, cause)
	s.status.Update(func(st *status.Status) {
		st.SyncError = cause.Error()
		st.RetryCount = retryCount
		st.NextRetryAt = &nextRetryAt
	})

	s.mu.Lock()
	s.armScheduledLocked(delay, TriggerRetry)
	s.mu.Unlock()
	return cause
}

// finish re-reads persisted state so the status reflects what is stored,
// whatever path the cycle took.
func (s *Scheduler) finish(ctx context.Context) {
	state, err := s.db.LoadSyncState(ctx)
	if err != nil {
		s.config.Logger.Printf("Warning: failed to reload sync state: %v", err)
	}
	pending, perr := s.db.DirtyCount(ctx)
	if perr != nil {
		s.config.Logger.Printf("Warning: failed to count pending changes: %v", perr)
	}

	s.status.Update(func(st *status.Status) {
		st.IsSyncing = false
		if err == nil {
			st.LastSyncAt = state.LastSyncAt
			st.SyncError = state.LastError
			st.RetryCount = state.RetryCount
			st.NextRetryAt = state.NextRetryAt
		}
		if perr == nil {
			st.PendingChanges = pending
		}
	})
}

func (s *Scheduler) refreshPending(ctx context.Context) {
	pending, err := s.db.DirtyCount(ctx)
	if err != nil {
		s.config.Logger.Printf("Warning: failed to count pending changes: %v", err)
		return
	}
	s.status.Update(func(st *status.Status) { st.PendingChanges = pending })
}

// armScheduledLocked replaces the request/retry timer. Caller holds s.mu.
func (s *Scheduler) armScheduledLocked(delay time.Duration, trigger Trigger) {
	if s.stopped {
		return
	}
	stopTimer(&s.scheduled)
	s.scheduled = s.clock.AfterFunc(delay, func() { s.fire(trigger) })
}

// armAdaptive replaces the idle poll timer while visible.
func (s *Scheduler) armAdaptive() {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopTimer(&s.adaptive)
	if s.stopped || !s.visible {
		return
	}
	delay := s.config.AdaptiveInterval(s.adaptiveIndex)
	s.adaptive = s.clock.AfterFunc(delay, func() { s.fire(TriggerAdaptive) })
}

// fire runs a timer-started cycle in the background.
func (s *Scheduler) fire(trigger Trigger) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if _, err := s.SyncNow(s.ctx, trigger, false); err != nil && s.ctx.Err() == nil {
			s.config.Logger.Printf("Scheduled sync (%s) failed: %v", trigger, err)
		}
	}()
}

func stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
