package status

import (
	"testing"
	"time"
)

func TestSubscribe_DeliversCurrentSnapshot(t *testing.T) {
	p := NewPublisher(Status{IsOnline: true, PendingChanges: 3})

	var got []Status
	unsubscribe := p.Subscribe(func(s Status) { got = append(got, s) })
	defer unsubscribe()

	if len(got) != 1 {
		t.Fatalf("got %d deliveries on subscribe, want 1", len(got))
	}
	if !got[0].IsOnline || got[0].PendingChanges != 3 {
		t.Errorf("initial snapshot = %+v", got[0])
	}
}

func TestUpdate_NotifiesTransitionsOnly(t *testing.T) {
	p := NewPublisher(Status{})

	var got []Status
	p.Subscribe(func(s Status) { got = append(got, s) })

	p.Update(func(s *Status) { s.IsSyncing = true })
	p.Update(func(s *Status) { s.IsSyncing = true }) // no change
	now := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	p.Update(func(s *Status) {
		s.IsSyncing = false
		s.LastSyncAt = &now
	})
	same := now
	p.Update(func(s *Status) { s.LastSyncAt = &same }) // equal instant, new pointer

	if len(got) != 3 {
		t.Fatalf("got %d deliveries, want 3: %+v", len(got), got)
	}
	if !got[1].IsSyncing {
		t.Error("second delivery should be syncing")
	}
	if got[2].IsSyncing || got[2].LastSyncAt == nil {
		t.Errorf("final delivery = %+v", got[2])
	}
	if snap := p.Snapshot(); snap.LastSyncAt == nil || !snap.LastSyncAt.Equal(now) {
		t.Errorf("Snapshot() = %+v", snap)
	}
}

func TestUnsubscribe(t *testing.T) {
	p := NewPublisher(Status{})

	calls := 0
	unsubscribe := p.Subscribe(func(Status) { calls++ })
	unsubscribe()
	unsubscribe() // idempotent

	p.Update(func(s *Status) { s.PendingChanges = 1 })
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (only the subscribe delivery)", calls)
	}
}

func TestEvents(t *testing.T) {
	e := NewEvents()

	var got []Event
	unsubscribe := e.Subscribe(func(ev Event) { got = append(got, ev) })

	e.PullApplied(4)
	unsubscribe()
	e.PullApplied(1)

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Type != EventPullApplied || got[0].ChangedRows != 4 {
		t.Errorf("event = %+v", got[0])
	}
}
