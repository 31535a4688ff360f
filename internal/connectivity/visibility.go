package connectivity

import "sync"

// Visibility is the foreground state of the app. A headless daemon starts
// visible; a UI or signal handler flips it.
type Visibility struct {
	mu        sync.Mutex
	visible   bool
	listeners map[int]func(visible bool)
	nextID    int
}

// NewVisibility creates a visibility state.
func NewVisibility(visible bool) *Visibility {
	return &Visibility{visible: visible, listeners: make(map[int]func(bool))}
}

// Visible reports the current state.
func (v *Visibility) Visible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

// Set updates the state and notifies listeners on change.
func (v *Visibility) Set(visible bool) {
	v.mu.Lock()
	if v.visible == visible {
		v.mu.Unlock()
		return
	}
	v.visible = visible
	listeners := make([]func(bool), 0, len(v.listeners))
	for _, fn := range v.listeners {
		listeners = append(listeners, fn)
	}
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(visible)
	}
}

// OnChange registers fn for transitions.
func (v *Visibility) OnChange(fn func(visible bool)) (unsubscribe func()) {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.listeners, id)
			v.mu.Unlock()
		})
	}
}
