// Package guard provides per-key mutual exclusion for aggregation runs.
// Each key owns an independent lock, so runs for different users never
// contend; entries are created lazily with an atomic check-and-set on
// the arena and are never deleted while the process lives.
package guard

import (
	"context"
	"sync"
	"time"

	"github.com/example/wanistats/pkg/logger"
	"github.com/example/wanistats/pkg/metrics"
)

// Default guard configuration.
const (
	defaultWaitTimeout = 30 * time.Second
	defaultHoldTimeout = 5 * time.Minute
)

// Guard serializes runs per key while independent keys proceed in
// parallel.
type Guard interface {
	// Acquire blocks until the key is free, the configured wait timeout
	// elapses (ErrTimeout), or ctx is done. A caller that gives up
	// leaves the wait queue without side effects.
	Acquire(ctx context.Context, key string) (*Lease, error)

	// TryAcquire takes the key without waiting, returning ErrBusy while
	// another lease holds it.
	TryAcquire(key string) (*Lease, error)

	// Holders returns the number of keys currently held.
	Holders() int

	// Size returns the number of keys the arena has ever seen.
	Size() int
}

// entry is the lock state of a single key. The semaphore channel holds
// the key's token: a successful send acquires, draining releases. The
// generation counter advances on every acquire and release so a stale
// lease (already released, or force-released by the watchdog) can never
// release somebody else's hold.
type entry struct {
	mu  sync.Mutex
	gen uint64
	sem chan struct{}
}

// Lease is an acquired hold on one key. Release is idempotent and must
// run on every exit path of the guarded region.
type Lease struct {
	guard    *keyedGuard
	entry    *entry
	key      string
	gen      uint64
	watchdog *time.Timer
}

// Release gives the key back. Releasing twice, or releasing after the
// hold watchdog already forced the key open, is a no-op.
func (l *Lease) Release() {
	if l.watchdog != nil {
		l.watchdog.Stop()
	}
	l.guard.release(l.entry, l.gen)
}

// Key returns the key this lease holds.
func (l *Lease) Key() string { return l.key }

// keyedGuard implements Guard with a mutex-protected arena of per-key
// entries.
type keyedGuard struct {
	mu      sync.Mutex
	entries map[string]*entry

	waitTimeout time.Duration
	holdTimeout time.Duration
}

// New creates a guard with the supplied options.
func New(opts ...Option) Guard {
	g := &keyedGuard{
		entries:     make(map[string]*entry),
		waitTimeout: defaultWaitTimeout,
		holdTimeout: defaultHoldTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire waits for the key in queued mode.
func (g *keyedGuard) Acquire(ctx context.Context, key string) (*Lease, error) {
	ent := g.entry(key)
	start := time.Now()

	var timeout <-chan time.Time
	if g.waitTimeout > 0 {
		timer := time.NewTimer(g.waitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case ent.sem <- struct{}{}:
		metrics.RecordGuardWait(time.Since(start))
		return g.lease(ent, key), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		metrics.RecordGuardTimeout()
		return nil, ErrTimeout
	}
}

// TryAcquire takes the key in rejecting mode.
func (g *keyedGuard) TryAcquire(key string) (*Lease, error) {
	ent := g.entry(key)
	select {
	case ent.sem <- struct{}{}:
		return g.lease(ent, key), nil
	default:
		metrics.RecordGuardBusy()
		return nil, ErrBusy
	}
}

func (g *keyedGuard) Holders() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	held := 0
	for _, ent := range g.entries {
		if len(ent.sem) > 0 {
			held++
		}
	}
	return held
}

func (g *keyedGuard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// entry returns the lock entry for key, creating it atomically on
// first use.
func (g *keyedGuard) entry(key string) *entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	ent, ok := g.entries[key]
	if !ok {
		ent = &entry{sem: make(chan struct{}, 1)}
		g.entries[key] = ent
	}
	return ent
}

// lease stamps a fresh generation on the just-acquired entry and arms
// the hold watchdog.
func (g *keyedGuard) lease(ent *entry, key string) *Lease {
	ent.mu.Lock()
	ent.gen++
	gen := ent.gen
	ent.mu.Unlock()

	l := &Lease{guard: g, entry: ent, key: key, gen: gen}
	if g.holdTimeout > 0 {
		l.watchdog = time.AfterFunc(g.holdTimeout, func() {
			if g.release(ent, gen) {
				metrics.RecordGuardForceRelease()
				logger.Get().Warn(context.Background(), "guard hold timeout exceeded, force-releasing key",
					logger.String("key", key),
					logger.Duration("holdTimeout", g.holdTimeout))
			}
		})
	}
	return l
}

// release drains the key's token when gen still names the current
// hold. It reports whether this call performed the release.
func (g *keyedGuard) release(ent *entry, gen uint64) bool {
	ent.mu.Lock()
	defer ent.mu.Unlock()
	if ent.gen != gen {
		return false
	}
	ent.gen++
	select {
	case <-ent.sem:
	default:
	}
	return true
}
