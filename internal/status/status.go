// Package status publishes the sync engine's observable state.
//
// Publisher holds the latest Status. Subscribers receive the current
// snapshot on subscribe and then every transition; delivery is "latest state
// wins", with no queue of intermediate states. Events carries one-off
// notifications such as pull-applied.
package status

import (
	"sync"
	"time"
)

// Storage describes whether the local database survives restarts.
type Storage struct {
	Checked   bool   `json:"checked" yaml:"checked"`
	Persisted *bool  `json:"persisted" yaml:"persisted"`
	Platform  string `json:"platform" yaml:"platform"`
	Detail    string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Status is a snapshot of the sync engine.
type Status struct {
	IsSyncing      bool       `json:"is_syncing" yaml:"is_syncing"`
	IsOnline       bool       `json:"is_online" yaml:"is_online"`
	LastSyncAt     *time.Time `json:"last_sync_at" yaml:"last_sync_at"`
	SyncError      string     `json:"sync_error,omitempty" yaml:"sync_error,omitempty"`
	PendingChanges int        `json:"pending_changes" yaml:"pending_changes"`
	RetryCount     int        `json:"retry_count" yaml:"retry_count"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty" yaml:"next_retry_at,omitempty"`
	Storage        Storage    `json:"storage" yaml:"storage"`
}

// Publisher fans the latest Status out to subscribers.
type Publisher struct {
	mu      sync.Mutex
	current Status
	nextID  int
	subs    map[int]func(Status)

	// Serializes delivery so subscribers observe transitions in order.
	deliver sync.Mutex
}

// NewPublisher creates a publisher starting from initial.
func NewPublisher(initial Status) *Publisher {
	return &Publisher{current: initial, subs: make(map[int]func(Status))}
}

// Snapshot returns the current status.
func (p *Publisher) Snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Subscribe registers fn, calls it with the current status, and returns a
// function that removes the subscription.
func (p *Publisher) Subscribe(fn func(Status)) (unsubscribe func()) {
	p.deliver.Lock()
	defer p.deliver.Unlock()

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	current := p.current
	p.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

// Update applies fn to the status and notifies subscribers when anything
// changed. Subscribers must not call Update.
func (p *Publisher) Update(fn func(*Status)) {
	p.deliver.Lock()
	defer p.deliver.Unlock()

	p.mu.Lock()
	before := p.current
	fn(&p.current)
	after := p.current
	subs := make([]func(Status), 0, len(p.subs))
	for _, sub := range p.subs {
		subs = append(subs, sub)
	}
	p.mu.Unlock()

	if equal(before, after) {
		return
	}
	for _, sub := range subs {
		sub(after)
	}
}

func equal(a, b Status) bool {
	return a.IsSyncing == b.IsSyncing &&
		a.IsOnline == b.IsOnline &&
		timeEqual(a.LastSyncAt, b.LastSyncAt) &&
		a.SyncError == b.SyncError &&
		a.PendingChanges == b.PendingChanges &&
		a.RetryCount == b.RetryCount &&
		timeEqual(a.NextRetryAt, b.NextRetryAt) &&
		a.Storage.Checked == b.Storage.Checked &&
		boolEqual(a.Storage.Persisted, b.Storage.Persisted) &&
		a.Storage.Platform == b.Storage.Platform &&
		a.Storage.Detail == b.Storage.Detail
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func boolEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
