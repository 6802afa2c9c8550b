// Package selection owns the currently selected video and notifies listeners
// when it changes.
package selection

import (
	"sync"

	"github.com/kikiluvv/trimplayer/internal/catalog"
)

// Listener receives the new selection. A nil video means the selection was cleared.
type Listener func(video *catalog.VideoRef)

// Source is the single owner of the current selection. It is safe for concurrent use.
type Source struct {
	mu        sync.Mutex
	current   *catalog.VideoRef
	listeners map[int]Listener
	nextID    int
}

// New creates an empty selection source
func New() *Source {
	return &Source{
		listeners: make(map[int]Listener),
	}
}

// Set replaces the selection and notifies listeners. Reselecting the current
// video notifies again so listeners can reload it.
func (s *Source) Set(video catalog.VideoRef) {
	s.mu.Lock()
	v := video
	s.current = &v
	listeners := s.snapshot()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(&v)
	}
}

// Clear drops the selection and notifies listeners
func (s *Source) Clear() {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	s.current = nil
	listeners := s.snapshot()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(nil)
	}
}

// Current returns a copy of the selection
func (s *Source) Current() (catalog.VideoRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return catalog.VideoRef{}, false
	}
	return *s.current, true
}

// IsSelected reports whether videoID is the current selection
func (s *Source) IsSelected(videoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current != nil && s.current.VideoID == videoID
}

// Subscribe registers fn for selection changes. Listeners run on the goroutine
// that changed the selection, outside the lock. The returned func unsubscribes.
func (s *Source) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// snapshot returns listeners in subscription order. Caller holds mu.
func (s *Source) snapshot() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}
