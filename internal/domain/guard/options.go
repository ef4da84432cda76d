package guard

import "time"

// Option applies a configuration option to the guard.
type Option func(*keyedGuard)

// WithWaitTimeout bounds how long Acquire waits for a held key.
// Zero or negative waits until the caller's context ends.
func WithWaitTimeout(d time.Duration) Option {
	return func(g *keyedGuard) {
		g.waitTimeout = d
	}
}

// WithHoldTimeout bounds how long a lease may be held before the
// watchdog force-releases the key. Zero or negative disables the
// watchdog.
func WithHoldTimeout(d time.Duration) Option {
	return func(g *keyedGuard) {
		g.holdTimeout = d
	}
}
