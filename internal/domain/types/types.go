// Package types contains the report types shared across the application.
// Every nested level of the report is an explicit struct so producers
// and consumers agree on the shape at compile time.
package types

import "time"

// UserInfo heads a report with the account the statistics belong to.
type UserInfo struct {
	Username  string    `json:"username"`
	Level     int       `json:"level"`
	StartedAt time.Time `json:"started_at"`
}

// Completion counts records by milestone. Counts are cumulative: a
// completed record counts as passed and started, a passed record as
// started.
type Completion struct {
	Started   int `json:"started"`
	Passed    int `json:"passed"`
	Completed int `json:"completed"`
}

// StageCount is one SRS stage bucket; listings are ordered by stage id
// ascending.
type StageCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// LevelCount is one level bucket; listings are ordered by level ascending.
type LevelCount struct {
	Level int `json:"level"`
	Count int `json:"count"`
}

// TypeCount is one subject-type bucket; listings are ordered by type name.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// TypeAccuracy is the answer accuracy for one subject type, in percent.
type TypeAccuracy struct {
	Type     string  `json:"type"`
	Accuracy float64 `json:"accuracy"`
}

// DurationSummary carries one central-tendency measure per duration
// metric, in seconds. Nil marks an undefined value (no qualifying
// records), which is distinct from zero.
type DurationSummary struct {
	PassDuration     *float64 `json:"pass_duration"`
	CompleteDuration *float64 `json:"complete_duration"`
}

// ReviewSummary carries one central-tendency measure per review metric.
type ReviewSummary struct {
	IncorrectMeanings *float64 `json:"incorrect_meanings"`
	IncorrectReadings *float64 `json:"incorrect_readings"`
	SRSStageChange    *float64 `json:"srs_stage_change"`
}

// ExtremaEntry is one ranked record in a lowest/highest listing. A
// progression entry identifies itself by level; assignment and review
// entries carry their subject attributes.
type ExtremaEntry struct {
	Level      int     `json:"level,omitempty"`
	Type       string  `json:"type,omitempty"`
	Characters string  `json:"characters,omitempty"`
	ImageURL   string  `json:"image_url,omitempty"`
	Value      float64 `json:"value"`
}

// DurationExtrema holds the ranked listings per duration metric. Each
// entry's value is its own metric: complete-duration entries carry
// complete durations, never the pass duration of the same record.
type DurationExtrema struct {
	PassDuration     []ExtremaEntry `json:"pass_duration"`
	CompleteDuration []ExtremaEntry `json:"complete_duration"`
}

// ReviewExtrema holds the ranked listings per review metric, summed per
// subject.
type ReviewExtrema struct {
	IncorrectMeaningAnswers []ExtremaEntry `json:"incorrect_meaning_answers"`
	IncorrectReadingAnswers []ExtremaEntry `json:"incorrect_reading_answers"`
}

// LevelDuration is one row of the per-level duration listing, ordered
// by level ascending.
type LevelDuration struct {
	Level            int      `json:"level"`
	PassDuration     *float64 `json:"pass_duration"`
	CompleteDuration *float64 `json:"complete_duration"`
}

// ProgressionTotals summarizes level progression counts.
type ProgressionTotals struct {
	Total      int        `json:"total"`
	Completion Completion `json:"completion"`
}

// DurationAggregates is the aggregate block shared by the progression
// and assignment sections.
type DurationAggregates struct {
	Averages DurationSummary `json:"averages"`
	Medians  DurationSummary `json:"medians"`
	Lowest   DurationExtrema `json:"lowest"`
	Highest  DurationExtrema `json:"highest"`
}

// ProgressionSection is the level-progression part of a report.
type ProgressionSection struct {
	Totals     ProgressionTotals  `json:"totals"`
	Levels     []LevelDuration    `json:"levels"`
	Aggregates DurationAggregates `json:"aggregates"`
}

// AssignmentTotals summarizes assignment counts by milestone, stage,
// level and type.
type AssignmentTotals struct {
	Total      int          `json:"total"`
	Completion Completion   `json:"completion"`
	Stage      []StageCount `json:"stage"`
	Level      []LevelCount `json:"level"`
	Type       []TypeCount  `json:"type"`
}

// AssignmentSection is the assignment part of a report.
type AssignmentSection struct {
	Totals     AssignmentTotals   `json:"totals"`
	Aggregates DurationAggregates `json:"aggregates"`
}

// AccuracyTotals lists answer accuracy per subject type. Reading covers
// kanji and vocabulary only; radicals have no readings.
type AccuracyTotals struct {
	Meaning []TypeAccuracy `json:"meaning"`
	Reading []TypeAccuracy `json:"reading"`
}

// ReviewTotals summarizes review counts by starting stage, level and
// type, plus per-type accuracy.
type ReviewTotals struct {
	Total    int            `json:"total"`
	Stage    []StageCount   `json:"stage"`
	Level    []LevelCount   `json:"level"`
	Type     []TypeCount    `json:"type"`
	Accuracy AccuracyTotals `json:"accuracy"`
}

// ReviewAggregates is the aggregate block of the review section. Only
// the highest extrema are published; the lowest are uniformly zero.
type ReviewAggregates struct {
	Averages ReviewSummary `json:"averages"`
	Medians  ReviewSummary `json:"medians"`
	Highest  ReviewExtrema `json:"highest"`
}

// ReviewSection is the review part of a report.
type ReviewSection struct {
	Totals     ReviewTotals     `json:"totals"`
	Aggregates ReviewAggregates `json:"aggregates"`
}

// SectionError records a record type whose statistics could not be
// computed. The remaining sections of the report are still valid.
type SectionError struct {
	Section string `json:"section"`
	Reason  string `json:"reason"`
}

// Report is the complete statistics snapshot for one user. Sections are
// nil when their source records could not be read; Partial explains
// which ones and why.
type Report struct {
	User              UserInfo            `json:"user"`
	LevelProgressions *ProgressionSection `json:"level_progressions"`
	Assignments       *AssignmentSection  `json:"assignments"`
	Reviews           *ReviewSection      `json:"reviews"`
	Partial           []SectionError      `json:"partial,omitempty"`
	ComputedAt        time.Time           `json:"computed_at"`
}
