package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the pure-Go sqlite driver

	"github.com/example/wanistats/internal/domain/model"
	"github.com/example/wanistats/pkg/logger"
	"github.com/example/wanistats/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultBusyTimeout = 5 * time.Second
	defaultJournalMode = "WAL"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    username TEXT PRIMARY KEY,
    level INTEGER NOT NULL DEFAULT 1,
    started_at DATETIME,
    synced_at DATETIME
);

CREATE TABLE IF NOT EXISTS subjects (
    id INTEGER PRIMARY KEY,
    level INTEGER NOT NULL,
    type TEXT NOT NULL,
    characters TEXT NOT NULL DEFAULT '',
    image_url TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS stages (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS level_progressions (
    id INTEGER PRIMARY KEY,
    username TEXT NOT NULL REFERENCES accounts(username),
    level INTEGER NOT NULL,
    started_at DATETIME,
    passed_at DATETIME,
    completed_at DATETIME,
    abandoned_at DATETIME
);

CREATE TABLE IF NOT EXISTS assignments (
    id INTEGER PRIMARY KEY,
    username TEXT NOT NULL REFERENCES accounts(username),
    subject_id INTEGER NOT NULL REFERENCES subjects(id),
    stage_id INTEGER NOT NULL REFERENCES stages(id),
    started_at DATETIME,
    passed_at DATETIME,
    burned_at DATETIME
);

CREATE TABLE IF NOT EXISTS reviews (
    id INTEGER PRIMARY KEY,
    username TEXT NOT NULL REFERENCES accounts(username),
    subject_id INTEGER NOT NULL REFERENCES subjects(id),
    starting_stage_id INTEGER NOT NULL REFERENCES stages(id),
    ending_stage_id INTEGER NOT NULL,
    incorrect_meaning INTEGER NOT NULL DEFAULT 0,
    incorrect_reading INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_progressions_username ON level_progressions(username);
CREATE INDEX IF NOT EXISTS idx_assignments_username ON assignments(username);
CREATE INDEX IF NOT EXISTS idx_reviews_username ON reviews(username);
CREATE INDEX IF NOT EXISTS idx_accounts_synced ON accounts(synced_at);
`

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db          *sqlx.DB
	busyTimeout time.Duration
	journalMode string

	mu     sync.RWMutex
	closed bool

	logger logger.Logger
}

// New opens (or creates) the database at path and ensures the schema.
func New(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		busyTimeout: defaultBusyTimeout,
		journalMode: defaultJournalMode,
		logger:      logger.Get().Named("store"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(%s)&_pragma=foreign_keys(1)",
		path, s.busyTimeout.Milliseconds(), s.journalMode)
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	// SQLite allows a single writer; one connection sidesteps lock errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s.db = db
	s.logger.Info(ctx, "record store ready",
		logger.String("path", path),
		logger.String("journalMode", s.journalMode),
	)
	return s, nil
}

// Row types mirror the table layout; conversion to the domain model
// happens at the edges.
type accountRow struct {
	Username  string       `db:"username"`
	Level     int          `db:"level"`
	StartedAt sql.NullTime `db:"started_at"`
	SyncedAt  sql.NullTime `db:"synced_at"`
}

type progressionRow struct {
	ID          int64        `db:"id"`
	Level       int          `db:"level"`
	StartedAt   sql.NullTime `db:"started_at"`
	PassedAt    sql.NullTime `db:"passed_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
	AbandonedAt sql.NullTime `db:"abandoned_at"`
}

type assignmentRow struct {
	ID         int64        `db:"id"`
	SubjectID  int64        `db:"subject_id"`
	Characters string       `db:"characters"`
	ImageURL   string       `db:"image_url"`
	Type       string       `db:"type"`
	Level      int          `db:"level"`
	StageID    int          `db:"stage_id"`
	StageName  string       `db:"stage_name"`
	StartedAt  sql.NullTime `db:"started_at"`
	PassedAt   sql.NullTime `db:"passed_at"`
	BurnedAt   sql.NullTime `db:"burned_at"`
}

type reviewRow struct {
	ID                int64        `db:"id"`
	SubjectID         int64        `db:"subject_id"`
	Characters        string       `db:"characters"`
	ImageURL          string       `db:"image_url"`
	Type              string       `db:"type"`
	Level             int          `db:"level"`
	StartingStageID   int          `db:"starting_stage_id"`
	StartingStageName string       `db:"starting_stage_name"`
	EndingStageID     int          `db:"ending_stage_id"`
	IncorrectMeaning  int          `db:"incorrect_meaning"`
	IncorrectReading  int          `db:"incorrect_reading"`
	CreatedAt         sql.NullTime `db:"created_at"`
}

// UpsertAccount inserts or updates an account row, preserving synced_at.
func (s *SQLiteStore) UpsertAccount(ctx context.Context, account model.Account) error {
	if err := s.guard(); err != nil {
		return err
	}
	start := time.Now()
	defer func() { metrics.RecordStoreWriteLatency(time.Since(start)) }()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (username, level, started_at, synced_at)
		VALUES (?, ?, ?, NULL)
		ON CONFLICT(username) DO UPDATE SET
			level = excluded.level,
			started_at = excluded.started_at`,
		account.Username, account.Level, nullTime(account.StartedAt))
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("upsert account %s: %w", account.Username, err)
	}
	return nil
}

// Account returns the stored account row for a username.
func (s *SQLiteStore) Account(ctx context.Context, username string) (model.Account, error) {
	if err := s.guard(); err != nil {
		return model.Account{}, err
	}
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency(time.Since(start)) }()

	var row accountRow
	err := s.db.GetContext(ctx, &row,
		`SELECT username, level, started_at, synced_at FROM accounts WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreError()
		return model.Account{}, fmt.Errorf("load account %s: %w", username, err)
	}

	return model.Account{
		Username:  row.Username,
		Level:     row.Level,
		StartedAt: timeValue(row.StartedAt),
		SyncedAt:  timeValue(row.SyncedAt),
	}, nil
}

// UpsertSubjects replaces subject reference rows in one transaction.
func (s *SQLiteStore) UpsertSubjects(ctx context.Context, subjects []model.Subject) error {
	if err := s.guard(); err != nil {
		return err
	}
	if len(subjects) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { metrics.RecordStoreWriteLatency(time.Since(start)) }()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx,
			`INSERT OR REPLACE INTO subjects (id, level, type, characters, image_url) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, sub := range subjects {
			if _, err := stmt.ExecContext(ctx, sub.ID, sub.Level, sub.Type, sub.Characters, sub.ImageURL); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert %d subjects: %w", len(subjects), err)
	}
	return nil
}

// UpsertStages replaces SRS stage reference rows in one transaction.
func (s *SQLiteStore) UpsertStages(ctx context.Context, stages []model.Stage) error {
	if err := s.guard(); err != nil {
		return err
	}
	if len(stages) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { metrics.RecordStoreWriteLatency(time.Since(start)) }()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx,
			`INSERT OR REPLACE INTO stages (id, name) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, st := range stages {
			if _, err := stmt.ExecContext(ctx, st.ID, st.Name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert %d stages: %w", len(stages), err)
	}
	return nil
}

// UpsertProgressions replaces a user's level progression rows.
func (s *SQLiteStore) UpsertProgressions(ctx context.Context, username string, records []model.LevelProgression) error {
	if err := s.guard(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { metrics.RecordStoreWriteLatency(time.Since(start)) }()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, `
			INSERT OR REPLACE INTO level_progressions
				(id, username, level, started_at, passed_at, completed_at, abandoned_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, rec := range records {
			_, err := stmt.ExecContext(ctx, rec.ID, username, rec.Level,
				nullTimePtr(rec.StartedAt), nullTimePtr(rec.PassedAt),
				nullTimePtr(rec.CompletedAt), nullTimePtr(rec.AbandonedAt))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert %d progressions for %s: %w", len(records), username, err)
	}
	return nil
}

// UpsertAssignments replaces a user's assignment rows. Only the
// normalized columns are stored; subject and stage attributes are
// joined back on read.
func (s *SQLiteStore) UpsertAssignments(ctx context.Context, username string, records []model.Assignment) error {
	if err := s.guard(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { metrics.RecordStoreWriteLatency(time.Since(start)) }()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, `
			INSERT OR REPLACE INTO assignments
				(id, username, subject_id, stage_id, started_at, passed_at, burned_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, rec := range records {
			_, err := stmt.ExecContext(ctx, rec.ID, username, rec.SubjectID, rec.StageID,
				nullTimePtr(rec.StartedAt), nullTimePtr(rec.PassedAt), nullTimePtr(rec.BurnedAt))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert %d assignments for %s: %w", len(records), username, err)
	}
	return nil
}

// UpsertReviews replaces a user's review rows.
func (s *SQLiteStore) UpsertReviews(ctx context.Context, username string, records []model.Review) error {
	if err := s.guard(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { metrics.RecordStoreWriteLatency(time.Since(start)) }()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, `
			INSERT OR REPLACE INTO reviews
				(id, username, subject_id, starting_stage_id, ending_stage_id,
				 incorrect_meaning, incorrect_reading, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, rec := range records {
			_, err := stmt.ExecContext(ctx, rec.ID, username, rec.SubjectID,
				rec.StartingStageID, rec.EndingStageID,
				rec.IncorrectMeaning, rec.IncorrectReading, nullTime(rec.CreatedAt))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert %d reviews for %s: %w", len(records), username, err)
	}
	return nil
}

// ListProgressions returns a user's level progressions ordered by id.
func (s *SQLiteStore) ListProgressions(ctx context.Context, username string) ([]model.LevelProgression, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency(time.Since(start)) }()

	var rows []progressionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, level, started_at, passed_at, completed_at, abandoned_at
		FROM level_progressions
		WHERE username = ?
		ORDER BY id`, username)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("list progressions for %s: %w", username, err)
	}

	records := make([]model.LevelProgression, len(rows))
	for i, row := range rows {
		records[i] = model.LevelProgression{
			ID:          row.ID,
			Level:       row.Level,
			StartedAt:   timePtr(row.StartedAt),
			PassedAt:    timePtr(row.PassedAt),
			CompletedAt: timePtr(row.CompletedAt),
			AbandonedAt: timePtr(row.AbandonedAt),
		}
	}
	return records, nil
}

// ListAssignments returns a user's assignments joined with subject and
// stage attributes, ordered by id.
func (s *SQLiteStore) ListAssignments(ctx context.Context, username string) ([]model.Assignment, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency(time.Since(start)) }()

	var rows []assignmentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id, a.subject_id, s.characters, s.image_url, s.type, s.level,
		       a.stage_id, g.name AS stage_name,
		       a.started_at, a.passed_at, a.burned_at
		FROM assignments a
		JOIN subjects s ON s.id = a.subject_id
		JOIN stages g ON g.id = a.stage_id
		WHERE a.username = ?
		ORDER BY a.id`, username)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("list assignments for %s: %w", username, err)
	}

	records := make([]model.Assignment, len(rows))
	for i, row := range rows {
		records[i] = model.Assignment{
			ID:         row.ID,
			SubjectID:  row.SubjectID,
			Characters: row.Characters,
			ImageURL:   row.ImageURL,
			Type:       row.Type,
			Level:      row.Level,
			StageID:    row.StageID,
			StageName:  row.StageName,
			StartedAt:  timePtr(row.StartedAt),
			PassedAt:   timePtr(row.PassedAt),
			BurnedAt:   timePtr(row.BurnedAt),
		}
	}
	return records, nil
}

// ListReviews returns a user's reviews joined with subject and
// starting-stage attributes, ordered by id.
func (s *SQLiteStore) ListReviews(ctx context.Context, username string) ([]model.Review, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency(time.Since(start)) }()

	var rows []reviewRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT r.id, r.subject_id, s.characters, s.image_url, s.type, s.level,
		       r.starting_stage_id, g.name AS starting_stage_name,
		       r.ending_stage_id, r.incorrect_meaning, r.incorrect_reading, r.created_at
		FROM reviews r
		JOIN subjects s ON s.id = r.subject_id
		JOIN stages g ON g.id = r.starting_stage_id
		WHERE r.username = ?
		ORDER BY r.id`, username)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("list reviews for %s: %w", username, err)
	}

	records := make([]model.Review, len(rows))
	for i, row := range rows {
		records[i] = model.Review{
			ID:                row.ID,
			SubjectID:         row.SubjectID,
			Characters:        row.Characters,
			ImageURL:          row.ImageURL,
			Type:              row.Type,
			Level:             row.Level,
			StartingStageID:   row.StartingStageID,
			StartingStageName: row.StartingStageName,
			EndingStageID:     row.EndingStageID,
			IncorrectMeaning:  row.IncorrectMeaning,
			IncorrectReading:  row.IncorrectReading,
			CreatedAt:         timeValue(row.CreatedAt),
		}
	}
	return records, nil
}

// TouchSynced records the time of the last successful upstream sync.
func (s *SQLiteStore) TouchSynced(ctx context.Context, username string, t time.Time) error {
	if err := s.guard(); err != nil {
		return err
	}
	start := time.Now()
	defer func() { metrics.RecordStoreWriteLatency(time.Since(start)) }()

	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET synced_at = ? WHERE username = ?`, nullTime(t), username)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("touch synced for %s: %w", username, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch synced for %s: %w", username, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountAccounts returns the number of tracked accounts.
func (s *SQLiteStore) CountAccounts(ctx context.Context) (int, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency(time.Since(start)) }()

	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM accounts`); err != nil {
		metrics.RecordStoreError()
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return count, nil
}

// PurgeOlderThan removes all records of accounts whose last sync
// precedes the cutoff. Accounts that never completed a sync are kept.
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	start := time.Now()
	defer func() { metrics.RecordStoreWriteLatency(time.Since(start)) }()

	stale := `SELECT username FROM accounts WHERE synced_at < ?`
	var purged int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"reviews", "assignments", "level_progressions"} {
			q := fmt.Sprintf(`DELETE FROM %s WHERE username IN (%s)`, table, stale)
			if _, err := tx.ExecContext(ctx, q, nullTime(cutoff)); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE synced_at < ?`, nullTime(cutoff))
		if err != nil {
			return err
		}
		purged, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("purge accounts older than %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return purged, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// guard rejects operations on a closed store.
func (s *SQLiteStore) guard() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		metrics.RecordStoreError()
		return err
	}
	if err := tx.Commit(); err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Stored times are normalized to UTC at second precision so the TEXT
// encoding orders chronologically.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC().Truncate(time.Second), Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return nullTime(*t)
}

func timeValue(n sql.NullTime) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return n.Time
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
