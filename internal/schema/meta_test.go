package schema

import (
	"testing"
	"time"
)

func TestSyncMetadataInit(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 123456789, time.FixedZone("BRT", -3*3600))

	var m SyncMetadata
	m.Init(now)

	if m.ID == "" {
		t.Fatal("expected generated id")
	}
	if m.Version != 1 {
		t.Errorf("Version = %d, want 1", m.Version)
	}
	if !m.IsDirty {
		t.Error("new row should be dirty")
	}
	want := time.Date(2024, 1, 1, 13, 0, 0, 123000000, time.UTC)
	if !m.CreatedAt.Equal(want) || m.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt = %v, want %v in UTC", m.CreatedAt, want)
	}
	if !m.UpdatedAt.Equal(m.CreatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", m.UpdatedAt, m.CreatedAt)
	}
}

func TestSyncMetadataInitKeepsID(t *testing.T) {
	m := SyncMetadata{ID: "fixed"}
	m.Init(time.Now())
	if m.ID != "fixed" {
		t.Errorf("ID = %q, want fixed", m.ID)
	}
}

func TestSyncMetadataTouchIncrementsByOne(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	var m SyncMetadata
	m.Init(start)
	m.IsDirty = false

	for i := 1; i <= 5; i++ {
		before := m.Version
		m.Touch(start.Add(time.Duration(i) * time.Minute))
		if m.Version != before+1 {
			t.Fatalf("mutation %d: version %d -> %d, want +1", i, before, m.Version)
		}
		if !m.IsDirty {
			t.Fatalf("mutation %d: row not dirty", i)
		}
	}
	if want := start.Add(5 * time.Minute); !m.UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %v, want %v", m.UpdatedAt, want)
	}
}

func TestSyncMetadataMarkDeleted(t *testing.T) {
	now := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	var m SyncMetadata
	m.Init(now)
	m.MarkDeleted(now.Add(time.Hour))

	if !m.IsDeleted() {
		t.Fatal("expected tombstone")
	}
	if m.Version != 2 {
		t.Errorf("Version = %d, want 2", m.Version)
	}
	if !m.DeletedAt.Equal(now.Add(time.Hour)) {
		t.Errorf("DeletedAt = %v", m.DeletedAt)
	}
}

func TestAuthoritativeTime(t *testing.T) {
	updated := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	server := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)

	m := SyncMetadata{UpdatedAt: updated}
	if got := m.AuthoritativeTime(); !got.Equal(updated) {
		t.Errorf("without server time = %v, want %v", got, updated)
	}

	m.ServerUpdatedAt = &server
	if got := m.AuthoritativeTime(); !got.Equal(server) {
		t.Errorf("with server time = %v, want %v", got, server)
	}
}

func TestNewIDIsSortable(t *testing.T) {
	first := NewID()
	time.Sleep(2 * time.Millisecond)
	second := NewID()

	if first == second {
		t.Fatal("ids must be unique")
	}
	if first > second {
		t.Errorf("ids not time-sortable: %s > %s", first, second)
	}
}
