package status

import "sync"

// EventType names a sync event.
type EventType string

// EventPullApplied fires after a pull merged rows into the store.
const EventPullApplied EventType = "pull-applied"

// Event is a one-off notification.
type Event struct {
	Type EventType `json:"type"`
	// ChangedRows is the number of rows received by the pull.
	ChangedRows int `json:"changed_rows"`
}

// Events is a listener set for Event.
type Events struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// NewEvents creates an empty listener set.
func NewEvents() *Events {
	return &Events{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function that removes it.
func (e *Events) Subscribe(fn func(Event)) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}
}

// Emit delivers ev to every listener.
func (e *Events) Emit(ev Event) {
	e.mu.Lock()
	subs := make([]func(Event), 0, len(e.subs))
	for _, sub := range e.subs {
		subs = append(subs, sub)
	}
	e.mu.Unlock()

	for _, sub := range subs {
		sub(ev)
	}
}

// PullApplied emits a pull-applied event for n rows.
func (e *Events) PullApplied(n int) {
	e.Emit(Event{Type: EventPullApplied, ChangedRows: n})
}
