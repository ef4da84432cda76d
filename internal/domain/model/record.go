// Package model contains the domain records the pipeline aggregates.
package model

import "time"

// Subject types as reported by the WaniKani API.
const (
	TypeRadical    = "radical"
	TypeKanji      = "kanji"
	TypeVocabulary = "vocabulary"
)

// Account is the locally stored profile of a WaniKani user.
type Account struct {
	Username  string    // WaniKani username, unique
	Level     int       // current level, 1..60
	StartedAt time.Time // when the subscription started
	SyncedAt  time.Time // last successful API sync
}

// Subject is reference data shared by assignments and reviews.
type Subject struct {
	ID         int64
	Level      int
	Type       string // radical | kanji | vocabulary
	Characters string // display string; radicals may be image-only
	ImageURL   string // set when Characters is empty
}

// Stage names one SRS stage, e.g. 1 -> "Apprentice I".
type Stage struct {
	ID   int
	Name string
}

// LevelProgression tracks a user's journey through one level.
// Timestamps are optional; a level may be unpassed or incomplete.
type LevelProgression struct {
	ID          int64
	Level       int
	StartedAt   *time.Time
	PassedAt    *time.Time
	CompletedAt *time.Time
	AbandonedAt *time.Time
}

// PassDuration returns the seconds from starting the level to passing
// it, when both timestamps are present and ordered.
func (p LevelProgression) PassDuration() (float64, bool) {
	return secondsBetween(p.StartedAt, p.PassedAt)
}

// CompleteDuration returns the seconds from starting the level to
// completing it, when both timestamps are present and ordered.
func (p LevelProgression) CompleteDuration() (float64, bool) {
	return secondsBetween(p.StartedAt, p.CompletedAt)
}

// Malformed reports whether any timestamp pair is inverted. Such
// records still count in totals but never contribute durations.
func (p LevelProgression) Malformed() bool {
	return inverted(p.StartedAt, p.PassedAt) || inverted(p.StartedAt, p.CompletedAt)
}

// Assignment is the learning state of one subject for one user,
// denormalized with its subject and stage attributes.
type Assignment struct {
	ID         int64
	SubjectID  int64
	Characters string
	ImageURL   string // set when the subject is image-only
	Type       string // radical | kanji | vocabulary
	Level      int
	StageID    int
	StageName  string
	StartedAt  *time.Time
	PassedAt   *time.Time
	BurnedAt   *time.Time // burned is the completed milestone
}

// PassDuration returns the seconds from starting the subject to
// passing it, when both timestamps are present and ordered.
func (a Assignment) PassDuration() (float64, bool) {
	return secondsBetween(a.StartedAt, a.PassedAt)
}

// CompleteDuration returns the seconds from starting the subject to
// burning it, when both timestamps are present and ordered.
func (a Assignment) CompleteDuration() (float64, bool) {
	return secondsBetween(a.StartedAt, a.BurnedAt)
}

// Malformed reports whether any timestamp pair is inverted.
func (a Assignment) Malformed() bool {
	return inverted(a.StartedAt, a.PassedAt) || inverted(a.StartedAt, a.BurnedAt)
}

// Review is one recorded review session for a subject, denormalized
// with its subject and starting-stage attributes.
type Review struct {
	ID                int64
	SubjectID         int64
	Characters        string
	ImageURL          string
	Type              string
	Level             int
	StartingStageID   int
	StartingStageName string
	EndingStageID     int
	IncorrectMeaning  int // incorrect meaning answers, >= 0
	IncorrectReading  int // incorrect reading answers, >= 0
	CreatedAt         time.Time
}

// StageChange returns the SRS stage delta of the review. Negative
// values mean the subject dropped stages.
func (r Review) StageChange() int {
	return r.EndingStageID - r.StartingStageID
}

// secondsBetween returns the elapsed seconds between two optional
// timestamps. Absent or inverted pairs report ok=false so callers can
// exclude them from duration aggregates.
func secondsBetween(from, to *time.Time) (float64, bool) {
	if from == nil || to == nil {
		return 0, false
	}
	d := to.Sub(*from)
	if d < 0 {
		return 0, false
	}
	return d.Seconds(), true
}

func inverted(from, to *time.Time) bool {
	return from != nil && to != nil && to.Before(*from)
}
