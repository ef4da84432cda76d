package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/wanistats/internal/adapters/mq/queue"
	"github.com/example/wanistats/internal/adapters/repository"
	"github.com/example/wanistats/internal/domain/model"
	"github.com/example/wanistats/internal/pipeline"
	"github.com/example/wanistats/pkg/logger"
	"github.com/example/wanistats/pkg/metrics"
)

// Client is the slice of the WaniKani API the refresh workflow
// consumes. One client is bound to one api key.
type Client interface {
	User(ctx context.Context) (model.Account, error)
	LevelProgressions(ctx context.Context) ([]model.LevelProgression, error)
	Assignments(ctx context.Context) ([]model.Assignment, error)
	Subjects(ctx context.Context) ([]model.Subject, error)
	SRSStages(ctx context.Context) ([]model.Stage, error)
	Reviews(ctx context.Context) ([]model.Review, error)
}

// ClientFactory builds a client for one api key.
type ClientFactory func(apiKey string) Client

// Identify resolves the account an api key belongs to. It performs a
// single user fetch and does not touch the store.
func (s *Service) Identify(ctx context.Context, apiKey string) (model.Account, error) {
	account, err := s.clients(apiKey).User(ctx)
	if err != nil {
		return model.Account{}, fmt.Errorf("identify key: %w", err)
	}
	return account, nil
}

// EnqueueRefresh queues an asynchronous refresh for the account.
// Returns ErrQueueFull when the queue is at capacity and
// ErrAlreadyQueued when a refresh for the account is already in flight.
func (s *Service) EnqueueRefresh(ctx context.Context, username, apiKey string) (uuid.UUID, error) {
	s.mu.RLock()
	started := s.started
	q := s.queue
	pending := s.pending
	s.mu.RUnlock()

	if !started || q == nil {
		return uuid.Nil, fmt.Errorf("service not started")
	}
	if username == "" {
		return uuid.Nil, fmt.Errorf("empty username")
	}

	if !pending.Begin(username) {
		metrics.RecordRefreshCoalesced()
		return uuid.Nil, fmt.Errorf("enqueue refresh for %s: %w", username, ErrAlreadyQueued)
	}

	task := queue.NewTask(username, apiKey)
	if !q.Enqueue(ctx, task) {
		pending.End(username)
		if q.IsClosed() {
			return uuid.Nil, fmt.Errorf("enqueue refresh for %s: %w", username, queue.ErrClosed)
		}
		return uuid.Nil, fmt.Errorf("enqueue refresh for %s: %w", username, ErrQueueFull)
	}

	s.logger.Info(ctx, "refresh queued",
		logger.String("username", username),
		logger.String("task", task.ID.String()),
	)

	return task.ID, nil
}

// Refresh is the worker callback. It syncs the account's records from
// the API when they are stale, then recomputes and caches the report.
// Records synced within the sync window are considered current and the
// report is rebuilt from the store alone.
func (s *Service) Refresh(ctx context.Context, task queue.Task) error {
	defer s.pending.End(task.Username)

	start := time.Now()
	client := s.clients(task.APIKey)

	account, err := client.User(ctx)
	if err != nil {
		metrics.RecordSyncFailure()
		return fmt.Errorf("fetch user: %w", err)
	}
	username := account.Username
	if username == "" {
		metrics.RecordSyncFailure()
		return errors.New("upstream returned an empty username")
	}

	stored, err := s.store.Account(ctx, username)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		metrics.RecordSyncFailure()
		return fmt.Errorf("load account %s: %w", username, err)
	}
	firstSync := err != nil || stored.SyncedAt.IsZero()

	if err := s.store.UpsertAccount(ctx, account); err != nil {
		metrics.RecordSyncFailure()
		return fmt.Errorf("upsert account %s: %w", username, err)
	}

	if !firstSync && time.Since(stored.SyncedAt) < s.syncWindow {
		metrics.RecordSyncSkipped()
		s.logger.Info(ctx, "records current, fetch skipped",
			logger.String("username", username),
			logger.Duration("age", time.Since(stored.SyncedAt)),
		)
	} else {
		if err := s.syncRecords(ctx, client, username, firstSync); err != nil {
			metrics.RecordSyncFailure()
			return err
		}
		if err := s.store.TouchSynced(ctx, username, time.Now().UTC()); err != nil {
			metrics.RecordSyncFailure()
			return fmt.Errorf("mark %s synced: %w", username, err)
		}
		metrics.RecordSyncCompleted()
		metrics.RecordSyncDuration(time.Since(start))
	}

	report, err := s.reports.Compute(ctx, username)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoData) {
			s.logger.Info(ctx, "no records yet, report skipped",
				logger.String("username", username),
			)
			return nil
		}
		return fmt.Errorf("compute report for %s: %w", username, err)
	}
	s.cacheReport(username, report)

	s.logger.Info(ctx, "refresh finished",
		logger.String("username", username),
		logger.String("task", task.ID.String()),
		logger.Duration("elapsed", time.Since(start)),
	)

	return nil
}

// syncRecords pulls the account's records and the shared reference
// catalogues into the store. Subjects and stages change rarely and are
// fetched on the first sync only.
func (s *Service) syncRecords(ctx context.Context, client Client, username string, firstSync bool) error {
	if firstSync {
		subjects, err := client.Subjects(ctx)
		if err != nil {
			return fmt.Errorf("fetch subjects: %w", err)
		}
		if err := s.store.UpsertSubjects(ctx, subjects); err != nil {
			return fmt.Errorf("store subjects: %w", err)
		}

		stages, err := client.SRSStages(ctx)
		if err != nil {
			return fmt.Errorf("fetch srs stages: %w", err)
		}
		if err := s.store.UpsertStages(ctx, stages); err != nil {
			return fmt.Errorf("store srs stages: %w", err)
		}

		s.logger.Info(ctx, "reference catalogues stored",
			logger.Int("subjects", len(subjects)),
			logger.Int("stages", len(stages)),
		)
	}

	progressions, err := client.LevelProgressions(ctx)
	if err != nil {
		return fmt.Errorf("fetch level progressions: %w", err)
	}
	if err := s.store.UpsertProgressions(ctx, username, progressions); err != nil {
		return fmt.Errorf("store level progressions: %w", err)
	}
	metrics.RecordRecordsSynced("level_progressions", len(progressions))

	assignments, err := client.Assignments(ctx)
	if err != nil {
		return fmt.Errorf("fetch assignments: %w", err)
	}
	if err := s.store.UpsertAssignments(ctx, username, assignments); err != nil {
		return fmt.Errorf("store assignments: %w", err)
	}
	metrics.RecordRecordsSynced("assignments", len(assignments))

	reviews, err := client.Reviews(ctx)
	if err != nil {
		return fmt.Errorf("fetch reviews: %w", err)
	}
	if err := s.store.UpsertReviews(ctx, username, reviews); err != nil {
		return fmt.Errorf("store reviews: %w", err)
	}
	metrics.RecordRecordsSynced("reviews", len(reviews))

	s.logger.Info(ctx, "records synced",
		logger.String("username", username),
		logger.Int("progressions", len(progressions)),
		logger.Int("assignments", len(assignments)),
		logger.Int("reviews", len(reviews)),
	)

	return nil
}
