// Package repository defines the record store interface and errors.
package repository

import (
	"context"
	"time"

	"github.com/example/wanistats/internal/domain/model"
)

// Store provides read/write access to synced WaniKani records.
// The sync worker is the only writer; the pipeline reads through the
// same interface.
type Store interface {
	// UpsertAccount inserts or updates a user's account row. The last
	// sync timestamp is preserved on update; use TouchSynced to move it.
	UpsertAccount(ctx context.Context, account model.Account) error

	// Account returns the stored account row.
	// Returns ErrNotFound if the username is unknown.
	Account(ctx context.Context, username string) (model.Account, error)

	// UpsertSubjects and UpsertStages replace reference data shared by
	// all users.
	UpsertSubjects(ctx context.Context, subjects []model.Subject) error
	UpsertStages(ctx context.Context, stages []model.Stage) error

	// Per-user record batches. Existing rows with the same id are
	// replaced.
	UpsertProgressions(ctx context.Context, username string, records []model.LevelProgression) error
	UpsertAssignments(ctx context.Context, username string, records []model.Assignment) error
	UpsertReviews(ctx context.Context, username string, records []model.Review) error

	// ListProgressions returns a user's level progressions ordered by id.
	ListProgressions(ctx context.Context, username string) ([]model.LevelProgression, error)

	// ListAssignments returns a user's assignments denormalized with
	// subject and stage attributes, ordered by id.
	ListAssignments(ctx context.Context, username string) ([]model.Assignment, error)

	// ListReviews returns a user's reviews denormalized with subject and
	// starting-stage attributes, ordered by id.
	ListReviews(ctx context.Context, username string) ([]model.Review, error)

	// TouchSynced records the time of the last successful upstream sync.
	TouchSynced(ctx context.Context, username string, t time.Time) error

	// CountAccounts returns the number of tracked accounts.
	CountAccounts(ctx context.Context) (int, error)

	// PurgeOlderThan removes all records of accounts whose last sync
	// precedes the cutoff. Returns the number of purged accounts.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases the underlying database handle. Operations on a
	// closed store return ErrClosed.
	Close() error
}
