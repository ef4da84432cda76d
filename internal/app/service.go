// Package app provides the statistics service that implements the
// dependencies required by the HTTP API.
package app

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/wanistats/internal/adapters/mq/queue"
	"github.com/example/wanistats/internal/adapters/mq/worker"
	"github.com/example/wanistats/internal/adapters/repository"
	"github.com/example/wanistats/internal/adapters/wanikani"
	"github.com/example/wanistats/internal/domain/dedupe"
	"github.com/example/wanistats/internal/domain/guard"
	"github.com/example/wanistats/internal/pipeline"
	"github.com/example/wanistats/pkg/logger"
	"github.com/example/wanistats/pkg/metrics"
)

const (
	defaultDBPath          = "wanistats.db"
	defaultQueueSize       = 1024
	defaultSyncWindow      = 10 * time.Minute
	defaultRetention       = 7 * 24 * time.Hour
	defaultJanitorInterval = time.Hour
	janitorOpTimeout       = time.Minute
)

// Service wires the record store, refresh queue, worker pool and report
// pipeline behind one facade.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	runGuard guard.Guard
	queue    queue.Queue
	pool     *worker.Pool
	reports  *pipeline.Orchestrator
	pending  *dedupe.Set

	// Result cache
	cacheMu sync.RWMutex
	cache   map[string]cacheEntry

	// Configuration
	dbPath          string
	workerCount     int
	queueSize       int
	syncWindow      time.Duration
	retention       time.Duration
	janitorInterval time.Duration
	guardWait       time.Duration
	guardHold       time.Duration
	clients         ClientFactory

	// State
	started  bool
	ownStore bool
	janitor  *gocron.Scheduler

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a record store instead of opening one on Start.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithQueue injects a task queue instead of the default in-memory one.
func WithQueue(q queue.Queue) Option {
	return func(s *Service) {
		if q != nil {
			s.queue = q
		}
	}
}

// WithDBPath sets the sqlite database path.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithWorkerCount sets the number of refresh workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the refresh queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithSyncWindow sets how long synced records are considered current.
// Cached reports expire on the same window.
func WithSyncWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.syncWindow = d
		}
	}
}

// WithRetention sets how long an account may go unsynced before the
// janitor purges it.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithJanitorInterval sets how often the janitor runs.
func WithJanitorInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.janitorInterval = d
		}
	}
}

// WithGuardTimeouts sets the per-user run guard's wait and hold limits.
func WithGuardTimeouts(wait, hold time.Duration) Option {
	return func(s *Service) {
		if wait > 0 {
			s.guardWait = wait
		}
		if hold > 0 {
			s.guardHold = hold
		}
	}
}

// WithClientFactory replaces how API clients are built per key.
func WithClientFactory(f ClientFactory) Option {
	return func(s *Service) {
		if f != nil {
			s.clients = f
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dbPath:          defaultDBPath,
		workerCount:     runtime.NumCPU() * 2, // Default to 2x CPU cores
		queueSize:       defaultQueueSize,
		syncWindow:      defaultSyncWindow,
		retention:       defaultRetention,
		janitorInterval: defaultJanitorInterval,
		cache:           make(map[string]cacheEntry),
		pending:         dedupe.New(),
		logger:          nil, // Will be replaced when service starts
	}
	s.clients = func(apiKey string) Client { return wanikani.New(apiKey) }

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting statistics service...")

	if s.store == nil {
		store, err := repository.New(ctx, s.dbPath)
		if err != nil {
			return fmt.Errorf("open record store: %w", err)
		}
		s.store = store
		s.ownStore = true
	}
	if s.runGuard == nil {
		var opts []guard.Option
		if s.guardWait > 0 {
			opts = append(opts, guard.WithWaitTimeout(s.guardWait))
		}
		if s.guardHold > 0 {
			opts = append(opts, guard.WithHoldTimeout(s.guardHold))
		}
		s.runGuard = guard.New(opts...)
	}
	if s.queue == nil {
		s.queue = queue.NewInMemoryQueue(
			queue.WithCapacity(s.queueSize),
			queue.WithBufferSize(s.queueSize),
		)
	}
	s.reports = pipeline.New(s.store, s.runGuard)

	// The service itself is the refresher the workers call back into.
	s.pool = worker.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(ctx)

	if err := s.startJanitor(); err != nil {
		return fmt.Errorf("start janitor: %w", err)
	}

	s.started = true
	s.logger.Info(ctx, "statistics service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("syncWindow", s.syncWindow),
		logger.Duration("retention", s.retention),
	)

	return nil
}

// Stop gracefully shuts down the service. Queued refreshes are drained
// before the workers exit.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(ctx, "stopping statistics service...")

	if s.janitor != nil {
		s.janitor.Stop()
	}

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "record store close failed", logger.Error(err))
		}
	}

	// The queue is closed by the pool shutdown and the store above; a
	// later Start rebuilds both. Pending entries for refreshes the
	// shutdown abandoned must not outlive them.
	s.queue = nil
	s.pool = nil
	s.reports = nil
	s.pending.Reset()
	if s.ownStore {
		s.store = nil
		s.ownStore = false
	}

	s.started = false
	s.logger.Info(ctx, "statistics service stopped")
}

// startJanitor schedules the retention purge.
func (s *Service) startJanitor() error {
	s.janitor = gocron.NewScheduler(time.UTC)
	if _, err := s.janitor.Every(s.janitorInterval).Do(s.purgeStale); err != nil {
		return err
	}
	s.janitor.StartAsync()
	return nil
}

// purgeStale drops accounts that have not synced within the retention
// window, then prunes the report cache.
func (s *Service) purgeStale() {
	ctx, cancel := context.WithTimeout(context.Background(), janitorOpTimeout)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.retention)
	purged, err := s.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error(ctx, "retention purge failed", logger.Error(err))
		return
	}

	if purged > 0 {
		metrics.RecordRecordsPurged(purged)
		s.logger.Info(ctx, "stale accounts purged",
			logger.Int64("accounts", purged),
			logger.Duration("retention", s.retention),
		)
		// A purged user may still hold a fresh cache entry; drop them all.
		s.cacheMu.Lock()
		s.cache = make(map[string]cacheEntry)
		s.cacheMu.Unlock()
	} else {
		s.pruneCache()
	}

	if count, err := s.store.CountAccounts(ctx); err == nil {
		metrics.UpdateTrackedAccounts(count)
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["pendingRefreshes"] = s.pending.Len()
		metrics.UpdateQueueSize(queueLen)

		if count, err := s.store.CountAccounts(ctx); err == nil {
			stats["trackedAccounts"] = count
			metrics.UpdateTrackedAccounts(count)
		}
	}

	return stats
}
