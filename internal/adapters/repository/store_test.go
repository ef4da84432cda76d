package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/wanistats/internal/domain/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func timeAt(hour int) *time.Time {
	t := time.Date(2024, 3, 1, hour, 0, 0, 0, time.UTC)
	return &t
}

func seedReferenceData(t *testing.T, s *SQLiteStore) {
	t.Helper()
	ctx := context.Background()

	subjects := []model.Subject{
		{ID: 1, Level: 1, Type: model.TypeRadical, Characters: "一"},
		{ID: 2, Level: 1, Type: model.TypeKanji, Characters: "一"},
		{ID: 3, Level: 2, Type: model.TypeVocabulary, Characters: "一つ"},
		{ID: 4, Level: 2, Type: model.TypeRadical, Characters: "", ImageURL: "https://cdn.example.com/radical-4.png"},
	}
	if err := s.UpsertSubjects(ctx, subjects); err != nil {
		t.Fatalf("upsert subjects: %v", err)
	}

	stages := []model.Stage{
		{ID: 1, Name: "Apprentice I"},
		{ID: 2, Name: "Apprentice II"},
		{ID: 5, Name: "Guru I"},
		{ID: 9, Name: "Burned"},
	}
	if err := s.UpsertStages(ctx, stages); err != nil {
		t.Fatalf("upsert stages: %v", err)
	}
}

func TestSQLiteStore_Accounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Unknown accounts report ErrNotFound
	if _, err := s.Account(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	started := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	acc := model.Account{Username: "koichi", Level: 7, StartedAt: started}
	if err := s.UpsertAccount(ctx, acc); err != nil {
		t.Fatalf("upsert account: %v", err)
	}

	got, err := s.Account(ctx, "koichi")
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if got.Username != "koichi" || got.Level != 7 {
		t.Errorf("expected koichi at level 7, got %s at level %d", got.Username, got.Level)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("expected started_at %v, got %v", started, got.StartedAt)
	}
	if !got.SyncedAt.IsZero() {
		t.Errorf("expected zero synced_at before first sync, got %v", got.SyncedAt)
	}

	// Re-upserting must keep the sync timestamp
	synced := time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)
	if err := s.TouchSynced(ctx, "koichi", synced); err != nil {
		t.Fatalf("touch synced: %v", err)
	}
	acc.Level = 8
	if err := s.UpsertAccount(ctx, acc); err != nil {
		t.Fatalf("re-upsert account: %v", err)
	}
	got, err = s.Account(ctx, "koichi")
	if err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if got.Level != 8 {
		t.Errorf("expected level 8 after update, got %d", got.Level)
	}
	if !got.SyncedAt.Equal(synced) {
		t.Errorf("expected synced_at %v preserved, got %v", synced, got.SyncedAt)
	}

	if err := s.TouchSynced(ctx, "ghost", synced); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound touching unknown account, got %v", err)
	}

	n, err := s.CountAccounts(ctx)
	if err != nil {
		t.Fatalf("count accounts: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 account, got %d", n)
	}
}

func TestSQLiteStore_Progressions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertAccount(ctx, model.Account{Username: "koichi", Level: 3}); err != nil {
		t.Fatalf("upsert account: %v", err)
	}

	// Inserted out of order; listing must come back ordered by id
	records := []model.LevelProgression{
		{ID: 3, Level: 3, StartedAt: timeAt(12)},
		{ID: 1, Level: 1, StartedAt: timeAt(8), PassedAt: timeAt(10), CompletedAt: timeAt(11)},
		{ID: 2, Level: 2, StartedAt: timeAt(10), PassedAt: timeAt(12)},
	}
	if err := s.UpsertProgressions(ctx, "koichi", records); err != nil {
		t.Fatalf("upsert progressions: %v", err)
	}

	listed, err := s.ListProgressions(ctx, "koichi")
	if err != nil {
		t.Fatalf("list progressions: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 progressions, got %d", len(listed))
	}
	for i, rec := range listed {
		if rec.ID != int64(i+1) {
			t.Errorf("expected id %d at position %d, got %d", i+1, i, rec.ID)
		}
	}
	if listed[0].CompletedAt == nil || !listed[0].CompletedAt.Equal(*timeAt(11)) {
		t.Errorf("expected completed_at %v, got %v", timeAt(11), listed[0].CompletedAt)
	}
	if listed[2].PassedAt != nil {
		t.Errorf("expected nil passed_at for unpassed level, got %v", listed[2].PassedAt)
	}

	// Replaying the same ids must replace, not duplicate
	records[0].PassedAt = timeAt(14)
	if err := s.UpsertProgressions(ctx, "koichi", records[:1]); err != nil {
		t.Fatalf("re-upsert progression: %v", err)
	}
	listed, err = s.ListProgressions(ctx, "koichi")
	if err != nil {
		t.Fatalf("relist progressions: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 progressions after replay, got %d", len(listed))
	}
	if listed[2].PassedAt == nil || !listed[2].PassedAt.Equal(*timeAt(14)) {
		t.Errorf("expected updated passed_at %v, got %v", timeAt(14), listed[2].PassedAt)
	}

	// Listing an unknown user yields no rows, not an error
	listed, err = s.ListProgressions(ctx, "ghost")
	if err != nil {
		t.Fatalf("list for unknown user: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("expected no progressions for unknown user, got %d", len(listed))
	}
}

func TestSQLiteStore_Assignments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertAccount(ctx, model.Account{Username: "koichi", Level: 2}); err != nil {
		t.Fatalf("upsert account: %v", err)
	}
	seedReferenceData(t, s)

	records := []model.Assignment{
		{ID: 10, SubjectID: 1, StageID: 5, StartedAt: timeAt(8), PassedAt: timeAt(9)},
		{ID: 11, SubjectID: 3, StageID: 1, StartedAt: timeAt(9)},
		{ID: 12, SubjectID: 4, StageID: 9, StartedAt: timeAt(8), PassedAt: timeAt(9), BurnedAt: timeAt(15)},
	}
	if err := s.UpsertAssignments(ctx, "koichi", records); err != nil {
		t.Fatalf("upsert assignments: %v", err)
	}

	listed, err := s.ListAssignments(ctx, "koichi")
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(listed))
	}

	// Subject and stage attributes come from the joins
	first := listed[0]
	if first.Characters != "一" || first.Type != model.TypeRadical || first.Level != 1 {
		t.Errorf("expected joined radical subject, got %+v", first)
	}
	if first.StageName != "Guru I" {
		t.Errorf("expected stage Guru I, got %q", first.StageName)
	}
	if listed[1].Type != model.TypeVocabulary || listed[1].StageName != "Apprentice I" {
		t.Errorf("expected vocabulary at Apprentice I, got %+v", listed[1])
	}

	// Image-only subjects carry their URL
	third := listed[2]
	if third.Characters != "" || third.ImageURL != "https://cdn.example.com/radical-4.png" {
		t.Errorf("expected image-only subject, got %+v", third)
	}
	if third.BurnedAt == nil || !third.BurnedAt.Equal(*timeAt(15)) {
		t.Errorf("expected burned_at %v, got %v", timeAt(15), third.BurnedAt)
	}

	// Stage moves overwrite the existing row
	records[1].StageID = 2
	if err := s.UpsertAssignments(ctx, "koichi", records[1:2]); err != nil {
		t.Fatalf("re-upsert assignment: %v", err)
	}
	listed, err = s.ListAssignments(ctx, "koichi")
	if err != nil {
		t.Fatalf("relist assignments: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 assignments after replay, got %d", len(listed))
	}
	if listed[1].StageName != "Apprentice II" {
		t.Errorf("expected stage Apprentice II after move, got %q", listed[1].StageName)
	}
}

func TestSQLiteStore_Reviews(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertAccount(ctx, model.Account{Username: "koichi", Level: 2}); err != nil {
		t.Fatalf("upsert account: %v", err)
	}
	seedReferenceData(t, s)

	created := time.Date(2024, 3, 1, 16, 45, 0, 0, time.UTC)
	records := []model.Review{
		{ID: 20, SubjectID: 2, StartingStageID: 1, EndingStageID: 2, CreatedAt: created},
		{ID: 21, SubjectID: 3, StartingStageID: 2, EndingStageID: 1, IncorrectMeaning: 1, IncorrectReading: 2, CreatedAt: created.Add(time.Minute)},
	}
	if err := s.UpsertReviews(ctx, "koichi", records); err != nil {
		t.Fatalf("upsert reviews: %v", err)
	}

	listed, err := s.ListReviews(ctx, "koichi")
	if err != nil {
		t.Fatalf("list reviews: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(listed))
	}

	first := listed[0]
	if first.Characters != "一" || first.Type != model.TypeKanji {
		t.Errorf("expected joined kanji subject, got %+v", first)
	}
	if first.StartingStageName != "Apprentice I" {
		t.Errorf("expected starting stage Apprentice I, got %q", first.StartingStageName)
	}
	if !first.CreatedAt.Equal(created) {
		t.Errorf("expected created_at %v, got %v", created, first.CreatedAt)
	}

	second := listed[1]
	if second.IncorrectMeaning != 1 || second.IncorrectReading != 2 {
		t.Errorf("expected incorrect counts 1/2, got %d/%d", second.IncorrectMeaning, second.IncorrectReading)
	}
	if second.StageChange() != -1 {
		t.Errorf("expected stage change -1, got %d", second.StageChange())
	}
}

func TestSQLiteStore_Purge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedReferenceData(t, s)

	for _, username := range []string{"stale", "fresh", "pending"} {
		if err := s.UpsertAccount(ctx, model.Account{Username: username, Level: 1}); err != nil {
			t.Fatalf("upsert account %s: %v", username, err)
		}
	}

	reviews := []model.Review{
		{ID: 30, SubjectID: 1, StartingStageID: 1, EndingStageID: 2, CreatedAt: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
	}
	if err := s.UpsertReviews(ctx, "stale", reviews); err != nil {
		t.Fatalf("upsert reviews: %v", err)
	}
	if err := s.UpsertAssignments(ctx, "stale", []model.Assignment{{ID: 31, SubjectID: 1, StageID: 1}}); err != nil {
		t.Fatalf("upsert assignments: %v", err)
	}
	if err := s.UpsertProgressions(ctx, "stale", []model.LevelProgression{{ID: 32, Level: 1}}); err != nil {
		t.Fatalf("upsert progressions: %v", err)
	}

	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := s.TouchSynced(ctx, "stale", cutoff.Add(-time.Hour)); err != nil {
		t.Fatalf("touch stale: %v", err)
	}
	if err := s.TouchSynced(ctx, "fresh", cutoff.Add(time.Hour)); err != nil {
		t.Fatalf("touch fresh: %v", err)
	}
	// "pending" never synced and must survive the purge

	purged, err := s.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 account purged, got %d", purged)
	}

	if _, err := s.Account(ctx, "stale"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected stale account removed, got %v", err)
	}
	for _, username := range []string{"fresh", "pending"} {
		if _, err := s.Account(ctx, username); err != nil {
			t.Errorf("expected account %s to survive, got %v", username, err)
		}
	}

	listed, err := s.ListReviews(ctx, "stale")
	if err != nil {
		t.Fatalf("list reviews after purge: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("expected stale reviews removed, got %d", len(listed))
	}

	n, err := s.CountAccounts(ctx)
	if err != nil {
		t.Fatalf("count accounts: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 accounts after purge, got %d", n)
	}
}

func TestSQLiteStore_Options(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, filepath.Join(t.TempDir(), "tuned.db"),
		WithBusyTimeout(250*time.Millisecond),
		WithJournalMode("DELETE"),
	)
	if err != nil {
		t.Fatalf("open store with options: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	var mode string
	if err := s.db.GetContext(ctx, &mode, "PRAGMA journal_mode"); err != nil {
		t.Fatalf("read journal mode: %v", err)
	}
	if mode != "delete" {
		t.Errorf("expected journal mode delete, got %q", mode)
	}

	if err := s.UpsertAccount(ctx, model.Account{Username: "koichi", Level: 1}); err != nil {
		t.Fatalf("upsert account: %v", err)
	}
	if _, err := s.Account(ctx, "koichi"); err != nil {
		t.Errorf("expected account readable, got %v", err)
	}
}

func TestSQLiteStore_Close(t *testing.T) {
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := s.UpsertAccount(ctx, model.Account{Username: "koichi", Level: 1}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed on write, got %v", err)
	}
	if _, err := s.Account(ctx, "koichi"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed on read, got %v", err)
	}
	if _, err := s.PurgeOlderThan(ctx, time.Now()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed on purge, got %v", err)
	}

	// Closing twice is a no-op
	if err := s.Close(); err != nil {
		t.Errorf("expected second close to succeed, got %v", err)
	}
}
