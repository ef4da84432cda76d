// Package pipeline orchestrates report computation: guard the user,
// read the stored records, aggregate them and select extrema.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/example/wanistats/internal/domain/extrema"
	"github.com/example/wanistats/internal/domain/guard"
	"github.com/example/wanistats/internal/domain/model"
	"github.com/example/wanistats/internal/domain/stats"
	"github.com/example/wanistats/internal/domain/types"
	"github.com/example/wanistats/pkg/logger"
	"github.com/example/wanistats/pkg/metrics"
)

// Record kind labels for malformed-record accounting.
const (
	kindProgression = "level_progression"
	kindAssignment  = "assignment"
)

// Section names used in partial-failure reports.
const (
	sectionProgressions = "level_progressions"
	sectionAssignments  = "assignments"
	sectionReviews      = "reviews"
)

// Store is the read-only slice of the record store the orchestrator
// needs. The repository's SQLite store satisfies it.
type Store interface {
	Account(ctx context.Context, username string) (model.Account, error)
	ListProgressions(ctx context.Context, username string) ([]model.LevelProgression, error)
	ListAssignments(ctx context.Context, username string) ([]model.Assignment, error)
	ListReviews(ctx context.Context, username string) ([]model.Review, error)
}

// Guard serializes runs per username.
type Guard interface {
	Acquire(ctx context.Context, key string) (*guard.Lease, error)
}

// Orchestrator computes one user's complete report.
type Orchestrator struct {
	store Store
	guard Guard

	logger logger.Logger
}

// New creates an orchestrator over the given store and guard.
func New(store Store, g Guard) *Orchestrator {
	return &Orchestrator{
		store:  store,
		guard:  g,
		logger: logger.Get().Named("pipeline"),
	}
}

// Compute builds the statistics report for username. Concurrent calls
// for the same user are serialized by the guard; calls for different
// users proceed in parallel. A read failure for one record type only
// loses that section (noted in Report.Partial); when every read fails
// the run returns ErrStoreUnavailable, and when every collection is
// empty it returns ErrNoData.
func (o *Orchestrator) Compute(ctx context.Context, username string) (*types.Report, error) {
	lease, err := o.guard.Acquire(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("acquire run guard for %s: %w", username, err)
	}
	defer lease.Release()

	start := time.Now()
	defer func() { metrics.RecordReportDuration(time.Since(start)) }()

	account, err := o.store.Account(ctx, username)
	if err != nil {
		metrics.RecordReportFailure()
		return nil, fmt.Errorf("load account %s: %w", username, err)
	}

	report := &types.Report{
		User: types.UserInfo{
			Username:  account.Username,
			Level:     account.Level,
			StartedAt: account.StartedAt,
		},
	}

	progs, progsErr := o.store.ListProgressions(ctx, username)
	if progsErr != nil {
		o.noteSectionFailure(ctx, report, sectionProgressions, progsErr)
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordReportFailure()
		return nil, err
	}

	assigns, assignsErr := o.store.ListAssignments(ctx, username)
	if assignsErr != nil {
		o.noteSectionFailure(ctx, report, sectionAssignments, assignsErr)
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordReportFailure()
		return nil, err
	}

	reviews, reviewsErr := o.store.ListReviews(ctx, username)
	if reviewsErr != nil {
		o.noteSectionFailure(ctx, report, sectionReviews, reviewsErr)
	}

	if progsErr != nil && assignsErr != nil && reviewsErr != nil {
		metrics.RecordReportFailure()
		return nil, ErrStoreUnavailable
	}
	if progsErr == nil && assignsErr == nil && reviewsErr == nil &&
		len(progs)+len(assigns)+len(reviews) == 0 {
		return nil, ErrNoData
	}

	if progsErr == nil {
		malformed := 0
		for _, p := range progs {
			if p.Malformed() {
				malformed++
			}
		}
		o.reportMalformed(ctx, username, kindProgression, malformed)

		sec := stats.Progressions(progs)
		sec.Aggregates.Lowest, sec.Aggregates.Highest = extrema.Progressions(progs)
		report.LevelProgressions = &sec
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordReportFailure()
		return nil, err
	}

	if assignsErr == nil {
		malformed := 0
		for _, a := range assigns {
			if a.Malformed() {
				malformed++
			}
		}
		o.reportMalformed(ctx, username, kindAssignment, malformed)

		sec := stats.Assignments(assigns)
		sec.Aggregates.Lowest, sec.Aggregates.Highest = extrema.Assignments(assigns)
		report.Assignments = &sec
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordReportFailure()
		return nil, err
	}

	if reviewsErr == nil {
		sec := stats.Reviews(reviews)
		sec.Aggregates.Highest = extrema.Reviews(reviews)
		report.Reviews = &sec
	}

	report.ComputedAt = time.Now().UTC()
	metrics.RecordReportComputed()
	o.logger.Info(ctx, "report computed",
		logger.String("username", username),
		logger.Int("progressions", len(progs)),
		logger.Int("assignments", len(assigns)),
		logger.Int("reviews", len(reviews)),
		logger.Int("failedSections", len(report.Partial)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// noteSectionFailure marks one record type as unavailable in the report
// while the remaining sections still compute.
func (o *Orchestrator) noteSectionFailure(ctx context.Context, r *types.Report, section string, err error) {
	metrics.RecordSectionFailure(section)
	o.logger.Error(ctx, "section read failed",
		logger.String("section", section),
		logger.Error(err),
	)
	r.Partial = append(r.Partial, types.SectionError{Section: section, Reason: err.Error()})
}

// reportMalformed logs records with inverted timestamps once per run.
// Such records stay in the totals but never contribute durations.
func (o *Orchestrator) reportMalformed(ctx context.Context, username, kind string, count int) {
	if count == 0 {
		return
	}
	metrics.RecordMalformedRecords(kind, count)
	o.logger.Warn(ctx, "malformed records excluded from duration aggregates",
		logger.String("username", username),
		logger.String("kind", kind),
		logger.Int("count", count),
	)
}
