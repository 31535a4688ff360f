// Package connectivity tracks whether the authority is reachable and
// whether the app is in the foreground.
package connectivity

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Probe checks reachability. A nil error means online.
type Probe func(ctx context.Context) error

// Config holds configuration for the monitor.
type Config struct {
	// Interval between probes
	Interval time.Duration

	// Timeout bounds each probe
	Timeout time.Duration

	// Logger for connectivity transitions
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval: 15 * time.Second,
		Timeout:  5 * time.Second,
		Logger:   log.New(os.Stderr, "[connectivity] ", log.LstdFlags),
	}
}

// Monitor polls a Probe and reports online/offline transitions.
type Monitor struct {
	probe  Probe
	config *Config

	mu        sync.Mutex
	online    bool
	listeners map[int]func(online bool)
	nextID    int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a monitor. It assumes online until the first probe says
// otherwise.
func New(probe Probe, config *Config) (*Monitor, error) {
	if probe == nil {
		return nil, fmt.Errorf("probe cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		probe:     probe,
		config:    config,
		online:    true,
		listeners: make(map[int]func(bool)),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Online reports the last observed state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange registers fn for transitions.
func (m *Monitor) OnChange(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// Check runs the probe once and records the result.
func (m *Monitor) Check(ctx context.Context) bool {
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	err := m.probe(ctx)
	online := err == nil
	if !online {
		m.config.Logger.Printf("Probe failed: %v", err)
	}
	m.Set(online)
	return online
}

// Set records a state observed elsewhere. Listeners run only on change.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	listeners := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	if !changed {
		return
	}
	if online {
		m.config.Logger.Println("Online")
	} else {
		m.config.Logger.Println("Offline")
	}
	for _, fn := range listeners {
		fn(online)
	}
}

// Start probes immediately and then every Interval until Stop.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.Check(m.ctx)

		ticker := time.NewTicker(m.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.Check(m.ctx)
			}
		}
	}()
}

// Stop ends polling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}
