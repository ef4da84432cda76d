// Package dedupe coalesces duplicate refresh work.
package dedupe

// Option applies a configuration option to the Set.
type Option func(*Set)

// WithCapacity bounds the number of tracked usernames. Zero or negative
// means unbounded.
func WithCapacity(n int) Option {
	return func(s *Set) {
		s.capacity = n
	}
}
