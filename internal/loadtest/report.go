package loadtest

import (
	"fmt"
	"io"
	"runtime"
	"time"
)

// MemoryStats captures heap usage around a run.
type MemoryStats struct {
	BeforeBytes uint64
	AfterBytes  uint64
	SysBytes    uint64
}

// ReadMemoryStats returns current memory usage.
func ReadMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{BeforeBytes: m.Alloc, AfterBytes: m.Alloc, SysBytes: m.Sys}
}

// CompareMemoryStats combines the before and after samples.
func CompareMemoryStats(before, after MemoryStats) MemoryStats {
	return MemoryStats{
		BeforeBytes: before.BeforeBytes,
		AfterBytes:  after.AfterBytes,
		SysBytes:    after.SysBytes,
	}
}

// FormatBytes formats bytes into a human-readable string.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats a duration into a human-readable string.
func FormatDuration(d time.Duration) string {
	if d < time.Microsecond {
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1000.0)
	}
	if d < time.Second {
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000.0)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func printLatency(w io.Writer, title string, s LatencyStats) {
	fmt.Fprintf(w, "%s (%d round-trips):\n", title, s.Count)
	fmt.Fprintf(w, "  Min:       %s\n", FormatDuration(s.Min))
	fmt.Fprintf(w, "  P50:       %s\n", FormatDuration(s.P50))
	fmt.Fprintf(w, "  Mean:      %s\n", FormatDuration(s.Mean))
	fmt.Fprintf(w, "  P95:       %s\n", FormatDuration(s.P95))
	fmt.Fprintf(w, "  P99:       %s\n", FormatDuration(s.P99))
	fmt.Fprintf(w, "  Max:       %s\n", FormatDuration(s.Max))
	fmt.Fprintf(w, "\n")
}

// PrintResult writes a formatted report.
func PrintResult(w io.Writer, r *Result) {
	fmt.Fprintf(w, "\n=== Sync Load Test ===\n\n")

	fmt.Fprintf(w, "Configuration:\n")
	fmt.Fprintf(w, "  Devices:             %d\n", r.Config.Devices)
	fmt.Fprintf(w, "  Sessions per Device: %d\n", r.Config.SessionsPerDevice)
	fmt.Fprintf(w, "  Sets per Session:    %d\n", r.Config.SetsPerSession)
	fmt.Fprintf(w, "  Sync Every:          %d sessions\n", r.Config.SyncEvery)
	fmt.Fprintf(w, "  Compression:         %v\n", r.Config.Compress)
	fmt.Fprintf(w, "\n")

	printLatency(w, "Push", r.Push)
	printLatency(w, "Pull", r.Pull)

	fmt.Fprintf(w, "Rows:\n")
	fmt.Fprintf(w, "  Pushed:            %d\n", r.RowsPushed)
	fmt.Fprintf(w, "  Pulled:            %d\n", r.RowsPulled)
	fmt.Fprintf(w, "  Expected:          %d per device\n", r.ExpectedRows)
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "Resources:\n")
	fmt.Fprintf(w, "  Memory Before:     %s\n", FormatBytes(r.Memory.BeforeBytes))
	fmt.Fprintf(w, "  Memory After:      %s\n", FormatBytes(r.Memory.AfterBytes))
	fmt.Fprintf(w, "  Memory Sys:        %s\n", FormatBytes(r.Memory.SysBytes))
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "Overall:\n")
	fmt.Fprintf(w, "  Total Duration:    %s\n", FormatDuration(r.TotalDuration))
	fmt.Fprintf(w, "  Errors:            %d\n", r.Errors)
	fmt.Fprintf(w, "  Converged:         %v\n", r.Converged)
	fmt.Fprintf(w, "\n")
}
