// Package dedupe coalesces duplicate refresh work. An account with a
// refresh already queued or running is suppressed until that refresh
// finishes, so repeated requests cannot fill the queue with identical
// tasks.
package dedupe

import "sync"

const defaultCapacity = 50000

// Set tracks accounts with a refresh in flight.
type Set struct {
	mu       sync.Mutex
	inflight map[string]struct{}
	capacity int
}

// New returns an empty set.
func New(opts ...Option) *Set {
	s := &Set{
		capacity: defaultCapacity,
		inflight: make(map[string]struct{}),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Begin marks username as in flight. It reports false when a refresh
// for the username is already tracked and true when newly recorded.
// At capacity new usernames are admitted untracked, trading duplicate
// suppression for enqueue availability.
func (s *Set) Begin(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inflight[username]; ok {
		return false
	}
	if s.capacity > 0 && len(s.inflight) >= s.capacity {
		return true
	}
	s.inflight[username] = struct{}{}
	return true
}

// End clears username so the next refresh for it can queue. Ending a
// username that was never begun is a no-op.
func (s *Set) End(username string) {
	s.mu.Lock()
	delete(s.inflight, username)
	s.mu.Unlock()
}

// Reset drops every tracked username.
func (s *Set) Reset() {
	s.mu.Lock()
	s.inflight = make(map[string]struct{})
	s.mu.Unlock()
}

// Len returns the number of tracked usernames.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}
