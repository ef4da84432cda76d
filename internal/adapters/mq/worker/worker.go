// Package worker defines worker contracts for asynchronous account refreshes.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/wanistats/internal/adapters/mq/queue"
	"github.com/example/wanistats/pkg/logger"
	"github.com/example/wanistats/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	metricsUpdateInterval   = 5 * time.Second
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Task abstracts what workers read off the queue.
// Using the queue.Task type for consistency.
type Task = queue.Task

// Refresher syncs one account from the upstream API and recomputes its
// report. Implementations must be safe for concurrent use.
type Refresher interface {
	Refresh(ctx context.Context, task Task) error
}

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Task
}

// Worker processes refresh tasks using the provided Refresher.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	// It will finish the task in flight before stopping.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing refresh tasks.
type InMemoryWorker struct {
	queue     Queue
	refresher Refresher
	name      string
	active    *atomic.Int64 // shared busy-worker counter, set by the pool

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, refresher Refresher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		refresher: refresher,
		name:      "worker", // default name
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"), // will be updated by options
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	// Set up logger with worker name if not already set
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	taskChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task, ok := <-taskChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			if err := w.processTask(ctx, task); err != nil {
				w.logger.Error(ctx, "error processing task", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	// Signal shutdown
	close(w.shutdown)

	// Wait for worker to finish or context to timeout
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processTask handles a single refresh task.
func (w *InMemoryWorker) processTask(ctx context.Context, task Task) error {
	if w.active != nil {
		w.active.Add(1)
		defer w.active.Add(-1)
	}

	start := time.Now()
	defer func() {
		metrics.RecordTaskDuration(time.Since(start))
	}()

	if err := w.refresher.Refresh(ctx, task); err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("refresh %s: %w", task.Username, err)
	}

	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	refresher Refresher

	// Shutdown control
	shutdown chan struct{}
	stopOnce sync.Once

	// Metrics tracking
	active atomic.Int64

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, queue Queue, refresher Refresher) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:   make([]*InMemoryWorker, workerCount),
		queue:     queue,
		refresher: refresher,
		shutdown:  make(chan struct{}),
		logger:    logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			refresher,
			WithName("worker-"+strconv.Itoa(i)),
		)
		pool.workers[i].active = &pool.active
	}

	// Initialize worker metrics
	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActive(0)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}

	// Start metrics updater
	go p.startMetricsUpdater(ctx)
}

// startMetricsUpdater starts a background goroutine that updates worker metrics.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

// updateMetrics updates worker-related metrics.
func (p *Pool) updateMetrics() {
	metrics.UpdateWorkerCount(len(p.workers))
	metrics.UpdateWorkerActive(int(p.active.Load()))
}

// signalStop interrupts every worker and stops the metrics updater.
// Tasks still queued are abandoned.
func (p *Pool) signalStop() {
	p.stopOnce.Do(func() {
		close(p.shutdown)
		for _, worker := range p.workers {
			close(worker.shutdown)
		}
	})
}

// Stop stops all workers without draining the queue.
func (p *Pool) Stop() {
	p.signalStop()

	// Wait for all workers to finish
	for _, worker := range p.workers {
		select {
		case <-worker.done:
			// Worker finished
		case <-time.After(workerShutdownTimeout):
			// Worker timeout
		}
	}
}

// Shutdown drains the queue and gracefully shuts down the entire pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	// Close the queue so workers exit once the backlog is drained
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	// Wait for all workers to finish or context to timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	// Workers are done; stop the metrics updater too
	p.signalStop()

	return nil
}
