package loadtest

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestRun_Converges(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping load test in short mode")
	}

	cfg := Config{
		Devices:           3,
		SessionsPerDevice: 6,
		SetsPerSession:    4,
		SyncEvery:         2,
		Dir:               t.TempDir(),
	}
	result, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Errors != 0 {
		t.Errorf("expected no errors, got %d", result.Errors)
	}
	if result.ExpectedRows != 3*6*5 {
		t.Errorf("expected 90 rows, got %d", result.ExpectedRows)
	}
	if !result.Converged {
		t.Error("devices did not converge")
	}
	if result.Push.Count != 3*3 || result.Pull.Count != 3*3 {
		t.Errorf("expected 9 push and pull round-trips, got %d and %d", result.Push.Count, result.Pull.Count)
	}
}

func TestRun_Compressed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping load test in short mode")
	}

	result, err := Run(context.Background(), Config{
		Devices:           2,
		SessionsPerDevice: 3,
		SetsPerSession:    2,
		SyncEvery:         3,
		Compress:          true,
		Dir:               t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Converged {
		t.Error("devices did not converge with compression")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	if _, err := Run(context.Background(), Config{}); err == nil {
		t.Error("expected error for zero devices")
	}
}

func TestComputeStats(t *testing.T) {
	durations := make([]time.Duration, 0, 100)
	for i := 100; i >= 1; i-- {
		durations = append(durations, time.Duration(i)*time.Millisecond)
	}

	stats := ComputeStats(durations)
	if stats.Min != time.Millisecond || stats.Max != 100*time.Millisecond {
		t.Errorf("unexpected min/max %v/%v", stats.Min, stats.Max)
	}
	if stats.P50 != 51*time.Millisecond {
		t.Errorf("expected P50 51ms, got %v", stats.P50)
	}
	if stats.P99 != 100*time.Millisecond {
		t.Errorf("expected P99 100ms, got %v", stats.P99)
	}
	if stats.Mean != 50500*time.Microsecond {
		t.Errorf("expected mean 50.5ms, got %v", stats.Mean)
	}
	if (ComputeStats(nil) != LatencyStats{}) {
		t.Error("empty input should give zero stats")
	}
}

func TestFormat(t *testing.T) {
	if got := FormatBytes(1536); got != "1.5 KB" {
		t.Errorf("FormatBytes(1536) = %s", got)
	}
	if got := FormatDuration(1500 * time.Microsecond); got != "1.50ms" {
		t.Errorf("FormatDuration(1.5ms) = %s", got)
	}

	var buf bytes.Buffer
	PrintResult(&buf, &Result{Config: DefaultConfig(), Converged: true})
	if !strings.Contains(buf.String(), "Converged:         true") {
		t.Errorf("report missing convergence line:\n%s", buf.String())
	}
}
