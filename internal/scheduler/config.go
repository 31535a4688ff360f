package scheduler

import (
	"log"
	"os"
	"time"
)

// Trigger names the reason a sync was requested.
type Trigger string

const (
	TriggerStartup    Trigger = "startup"
	TriggerMutation   Trigger = "mutation"
	TriggerOnline     Trigger = "online"
	TriggerVisibility Trigger = "visibility"
	TriggerAuth       Trigger = "auth"
	TriggerAdaptive   Trigger = "adaptive"
	TriggerRetry      Trigger = "retry"
	TriggerManual     Trigger = "manual"
)

// Config holds configuration for the scheduler.
type Config struct {
	// MutationDebounce delays a sync after a local write so bursts of edits
	// share one round-trip.
	MutationDebounce time.Duration

	// PromptDelay is the delay for every other requested trigger.
	PromptDelay time.Duration

	// MinGap is the minimum time between cycle starts unless forced.
	MinGap time.Duration

	// ThrottleFloor is the shortest re-arm delay for a throttled request.
	ThrottleFloor time.Duration

	// AdaptiveIntervals are the idle poll tiers, fastest first.
	AdaptiveIntervals []time.Duration

	// RetrySteps is the backoff table, indexed by retry count and capped
	// at the last entry.
	RetrySteps []time.Duration

	// Clock drives timers (default: RealClock)
	Clock Clock

	// Logger for scheduler activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MutationDebounce: 5 * time.Second,
		PromptDelay:      500 * time.Millisecond,
		MinGap:           10 * time.Second,
		ThrottleFloor:    250 * time.Millisecond,
		AdaptiveIntervals: []time.Duration{
			60 * time.Second,
			300 * time.Second,
			900 * time.Second,
		},
		RetrySteps: []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			15 * time.Second,
			30 * time.Second,
			60 * time.Second,
			120 * time.Second,
			300 * time.Second,
		},
		Clock:  RealClock{},
		Logger: log.New(os.Stderr, "[scheduler] ", log.LstdFlags),
	}
}

// Backoff returns the retry delay after retryCount consecutive failures.
func (c *Config) Backoff(retryCount int) time.Duration {
	if len(c.RetrySteps) == 0 {
		return time.Minute
	}
	if retryCount < 0 {
		retryCount = 0
	}
	return c.RetrySteps[min(retryCount, len(c.RetrySteps)-1)]
}

// AdaptiveInterval returns the idle poll delay for tier index.
func (c *Config) AdaptiveInterval(index int) time.Duration {
	if len(c.AdaptiveIntervals) == 0 {
		return time.Minute
	}
	return c.AdaptiveIntervals[min(max(index, 0), len(c.AdaptiveIntervals)-1)]
}
