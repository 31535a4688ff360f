package sync

import (
	"testing"
	"time"

	"github.com/ironlog/ironlog/internal/schema"
)

func at(hour int) time.Time {
	return time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC)
}

func tp(t time.Time) *time.Time { return &t }

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		local    *schema.SyncMetadata
		incoming *schema.SyncMetadata
		want     Decision
	}{
		{
			name:     "no local row",
			local:    nil,
			incoming: &schema.SyncMetadata{Version: 1, UpdatedAt: at(9)},
			want:     TakeIncoming,
		},
		{
			name:     "later server time wins over higher version",
			local:    &schema.SyncMetadata{Version: 3, UpdatedAt: at(8), ServerUpdatedAt: tp(at(10))},
			incoming: &schema.SyncMetadata{Version: 2, UpdatedAt: at(8), ServerUpdatedAt: tp(at(11))},
			want:     TakeIncoming,
		},
		{
			name:     "older incoming server time loses",
			local:    &schema.SyncMetadata{Version: 1, UpdatedAt: at(10), ServerUpdatedAt: tp(at(11))},
			incoming: &schema.SyncMetadata{Version: 1, UpdatedAt: at(10), ServerUpdatedAt: tp(at(9))},
			want:     KeepLocal,
		},
		{
			name:     "falls back to updated_at without server time",
			local:    &schema.SyncMetadata{Version: 5, UpdatedAt: at(12)},
			incoming: &schema.SyncMetadata{Version: 1, UpdatedAt: at(9), ServerUpdatedAt: tp(at(11))},
			want:     KeepLocal,
		},
		{
			name:     "tie on time, higher version wins",
			local:    &schema.SyncMetadata{Version: 2, UpdatedAt: at(8), ServerUpdatedAt: tp(at(10))},
			incoming: &schema.SyncMetadata{Version: 3, UpdatedAt: at(8), ServerUpdatedAt: tp(at(10))},
			want:     TakeIncoming,
		},
		{
			name:     "tie on time and version, later updated_at wins",
			local:    &schema.SyncMetadata{Version: 2, UpdatedAt: at(9), ServerUpdatedAt: tp(at(10))},
			incoming: &schema.SyncMetadata{Version: 2, UpdatedAt: at(8), ServerUpdatedAt: tp(at(10))},
			want:     KeepLocal,
		},
		{
			name:     "full tie",
			local:    &schema.SyncMetadata{Version: 2, UpdatedAt: at(9), ServerUpdatedAt: tp(at(10))},
			incoming: &schema.SyncMetadata{Version: 2, UpdatedAt: at(9), ServerUpdatedAt: tp(at(10))},
			want:     Identical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.local, tt.incoming); got != tt.want {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}

// The winner must not depend on which copy is local.
func TestResolve_OrderIndependent(t *testing.T) {
	a := &schema.SyncMetadata{Version: 3, UpdatedAt: at(8), ServerUpdatedAt: tp(at(10))}
	b := &schema.SyncMetadata{Version: 2, UpdatedAt: at(8), ServerUpdatedAt: tp(at(11))}

	if got := Resolve(a, b); got != TakeIncoming {
		t.Errorf("Resolve(a, b) = %v, want take-incoming", got)
	}
	if got := Resolve(b, a); got != KeepLocal {
		t.Errorf("Resolve(b, a) = %v, want keep-local", got)
	}
}
