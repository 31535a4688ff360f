package schema

import (
	"fmt"
	"time"
)

// SyncMetadata is embedded in every syncable entity.
type SyncMetadata struct {
	ID              string     `json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at"`
	Version         int64      `json:"version"`
	OwnerUserID     string     `json:"owner_user_id,omitempty"`
	ServerUpdatedAt *time.Time `json:"server_updated_at,omitempty"`

	// Local bookkeeping, never sent over the wire.
	IsDirty      bool       `json:"-"`
	LastSyncedAt *time.Time `json:"-"`
}

// Entity is implemented by every syncable row type.
type Entity interface {
	Meta() *SyncMetadata
	Table() Table
	Validate() error
}

// IsDeleted reports whether the row is a tombstone.
func (m *SyncMetadata) IsDeleted() bool {
	return m.DeletedAt != nil
}

// AuthoritativeTime returns ServerUpdatedAt, falling back to UpdatedAt for
// rows the authority has not stamped yet.
func (m *SyncMetadata) AuthoritativeTime() time.Time {
	if m.ServerUpdatedAt != nil {
		return *m.ServerUpdatedAt
	}
	return m.UpdatedAt
}

// Touch records a local mutation at now: version +1, updated_at refreshed,
// row marked dirty.
func (m *SyncMetadata) Touch(now time.Time) {
	m.UpdatedAt = Normalize(now)
	m.Version++
	m.IsDirty = true
}

// Init prepares metadata for a brand new row. The id is generated when
// empty; the row starts at version 1 and dirty.
func (m *SyncMetadata) Init(now time.Time) {
	now = Normalize(now)
	if m.ID == "" {
		m.ID = NewID()
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	m.DeletedAt = nil
	m.Version = 1
	m.ServerUpdatedAt = nil
	m.LastSyncedAt = nil
	m.IsDirty = true
}

// MarkDeleted soft-deletes the row as a local mutation.
func (m *SyncMetadata) MarkDeleted(now time.Time) {
	now = Normalize(now)
	m.DeletedAt = &now
	m.Touch(now)
}

// NormalizeTimes truncates every timestamp to UTC milliseconds.
func (m *SyncMetadata) NormalizeTimes() {
	m.CreatedAt = Normalize(m.CreatedAt)
	m.UpdatedAt = Normalize(m.UpdatedAt)
	m.DeletedAt = NormalizePtr(m.DeletedAt)
	m.ServerUpdatedAt = NormalizePtr(m.ServerUpdatedAt)
	m.LastSyncedAt = NormalizePtr(m.LastSyncedAt)
}

// ValidateMeta checks the fields every entity requires.
func (m *SyncMetadata) ValidateMeta() error {
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	if m.Version < 1 {
		return fmt.Errorf("version must be positive (got %d)", m.Version)
	}
	if m.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if m.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// Normalize converts t to UTC with millisecond precision.
func Normalize(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Millisecond)
}

// NormalizePtr is Normalize for optional timestamps.
func NormalizePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := Normalize(*t)
	return &n
}
