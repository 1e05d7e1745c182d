package service

import "sync"

// Hub is an in-process change feed keyed by owner. Writers call Notify
// after a successful write; each watcher of that owner is woken once.
// Notifications that arrive while a watcher is still busy coalesce into
// one wake-up, so watchers always re-read the latest state.
type Hub struct {
	mu       sync.Mutex
	watchers map[string]map[chan struct{}]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{watchers: make(map[string]map[chan struct{}]struct{})}
}

// Watch registers a watcher for owner. The returned channel receives a
// value after every Notify(owner); cancel unregisters it.
func (h *Hub) Watch(owner string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	set, ok := h.watchers[owner]
	if !ok {
		set = make(map[chan struct{}]struct{})
		h.watchers[owner] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(set, ch)
			if len(h.watchers[owner]) == 0 {
				delete(h.watchers, owner)
			}
		})
	}
}

// Notify wakes every watcher of owner.
func (h *Hub) Notify(owner string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watchers[owner] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watchers returns the number of watchers of owner.
func (h *Hub) Watchers(owner string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[owner])
}
