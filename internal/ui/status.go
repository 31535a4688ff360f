package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/ironlog/ironlog/internal/status"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

// FormatStatus renders a status snapshot for `ironlog status`.
func FormatStatus(st status.Status, now time.Time) string {
	var b strings.Builder

	line := func(label, value string) {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", label+":")), value)
	}

	fmt.Fprintf(&b, "%s\n\n", labelStyle.Render("Sync status"))

	if st.IsSyncing {
		line("State", RenderAccent("syncing"))
	} else {
		line("State", "idle")
	}

	if st.IsOnline {
		line("Network", RenderPass("online"))
	} else {
		line("Network", RenderWarn("offline"))
	}

	if st.LastSyncAt == nil {
		line("Last sync", RenderMuted("never"))
	} else {
		line("Last sync", fmt.Sprintf("%s %s",
			st.LastSyncAt.UTC().Format(timeLayout),
			RenderMuted("("+Ago(now.Sub(*st.LastSyncAt))+")")))
	}

	switch st.PendingChanges {
	case 0:
		line("Pending", RenderPass("up to date"))
	case 1:
		line("Pending", RenderWarn("1 change"))
	default:
		line("Pending", RenderWarn(fmt.Sprintf("%d changes", st.PendingChanges)))
	}

	if st.SyncError != "" {
		line("Error", RenderFail(st.SyncError))
	}
	if st.RetryCount > 0 {
		retry := fmt.Sprintf("%d", st.RetryCount)
		if st.NextRetryAt != nil {
			retry += " " + RenderMuted("(next in "+Until(st.NextRetryAt.Sub(now))+")")
		}
		line("Retries", retry)
	}

	line("Storage", storageLine(st.Storage))
	return b.String()
}

func storageLine(s status.Storage) string {
	switch {
	case !s.Checked || s.Persisted == nil:
		return RenderMuted("unknown")
	case *s.Persisted:
		return RenderPass("persistent") + " " + RenderMuted("("+s.Platform+")")
	default:
		detail := s.Platform
		if s.Detail != "" {
			detail += ", " + s.Detail
		}
		return RenderWarn("not persistent") + " " + RenderMuted("("+detail+")")
	}
}

// Ago formats an elapsed duration coarsely, e.g. "3m ago".
func Ago(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}
	return compact(d) + " ago"
}

// Until formats a remaining duration, e.g. "8s".
func Until(d time.Duration) string {
	if d < time.Second {
		return "now"
	}
	return compact(d)
}

func compact(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	}
}
