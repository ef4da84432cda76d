package simulate

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/example/wanistats/internal/domain/extrema"
	"github.com/example/wanistats/internal/domain/model"
	"github.com/example/wanistats/internal/domain/stats"
	"github.com/example/wanistats/internal/domain/types"
)

type failFunc func(format string, args ...interface{})

// verifyReport checks a computed report against the records it was
// derived from. Expected sections are rebuilt with the same aggregation
// code over the same record order the store reports, so a difference
// points at the pipeline, the store roundtrip or the cache. Structural
// invariants are checked separately so a defect shared by both sides
// still surfaces.
func verifyReport(username string, d *dataset, r *types.Report) []string {
	var violations []string
	fail := func(format string, args ...interface{}) {
		violations = append(violations, fmt.Sprintf("%s: %s", username, fmt.Sprintf(format, args...)))
	}

	if r == nil {
		fail("report missing")
		return violations
	}
	if r.User.Username != username {
		fail("report belongs to %q", r.User.Username)
	}
	if r.User.Level != d.account.Level {
		fail("level %d, seeded %d", r.User.Level, d.account.Level)
	}
	if len(r.Partial) > 0 {
		fail("report partial: %+v", r.Partial)
	}

	verifyProgressions(fail, d, r.LevelProgressions)
	verifyAssignments(fail, d, r.Assignments)
	verifyReviews(fail, d, r.Reviews)
	return violations
}

func verifyProgressions(fail failFunc, d *dataset, sec *types.ProgressionSection) {
	if sec == nil {
		fail("progression section missing")
		return
	}
	want := stats.Progressions(d.progressions)
	want.Aggregates.Lowest, want.Aggregates.Highest = extrema.Progressions(d.progressions)

	if sec.Totals.Total != len(d.progressions) {
		fail("progression total %d, seeded %d", sec.Totals.Total, len(d.progressions))
	}
	checkCumulative(fail, "progressions", sec.Totals.Completion, sec.Totals.Total)
	if !sort.SliceIsSorted(sec.Levels, func(i, j int) bool { return sec.Levels[i].Level < sec.Levels[j].Level }) {
		fail("progression levels not ordered by level")
	}
	checkExtrema(fail, "progression pass", sec.Aggregates.Lowest.PassDuration, sec.Aggregates.Highest.PassDuration)
	checkExtrema(fail, "progression complete", sec.Aggregates.Lowest.CompleteDuration, sec.Aggregates.Highest.CompleteDuration)

	if !reflect.DeepEqual(sec.Totals, want.Totals) {
		fail("progression totals diverge: got %+v, want %+v", sec.Totals, want.Totals)
	}
	if !reflect.DeepEqual(sec.Levels, want.Levels) {
		fail("progression level listing diverges from source records")
	}
	if !reflect.DeepEqual(sec.Aggregates, want.Aggregates) {
		fail("progression aggregates diverge from source records")
	}
}

func verifyAssignments(fail failFunc, d *dataset, sec *types.AssignmentSection) {
	if sec == nil {
		fail("assignment section missing")
		return
	}
	recs := d.joinedAssignments()
	want := stats.Assignments(recs)
	want.Aggregates.Lowest, want.Aggregates.Highest = extrema.Assignments(recs)

	if sec.Totals.Total != len(d.assignments) {
		fail("assignment total %d, seeded %d", sec.Totals.Total, len(d.assignments))
	}
	checkCumulative(fail, "assignments", sec.Totals.Completion, sec.Totals.Total)
	checkBucketSums(fail, "assignment", sec.Totals.Stage, sec.Totals.Level, sec.Totals.Type, sec.Totals.Total)
	checkExtrema(fail, "assignment pass", sec.Aggregates.Lowest.PassDuration, sec.Aggregates.Highest.PassDuration)
	checkExtrema(fail, "assignment complete", sec.Aggregates.Lowest.CompleteDuration, sec.Aggregates.Highest.CompleteDuration)

	if !reflect.DeepEqual(sec.Totals, want.Totals) {
		fail("assignment totals diverge: got %+v, want %+v", sec.Totals, want.Totals)
	}
	if !reflect.DeepEqual(sec.Aggregates, want.Aggregates) {
		fail("assignment aggregates diverge from source records")
	}
}

func verifyReviews(fail failFunc, d *dataset, sec *types.ReviewSection) {
	if sec == nil {
		fail("review section missing")
		return
	}
	recs := d.joinedReviews()
	want := stats.Reviews(recs)
	want.Aggregates.Highest = extrema.Reviews(recs)

	if sec.Totals.Total != len(d.reviews) {
		fail("review total %d, seeded %d", sec.Totals.Total, len(d.reviews))
	}
	checkBucketSums(fail, "review", sec.Totals.Stage, sec.Totals.Level, sec.Totals.Type, sec.Totals.Total)
	for _, acc := range sec.Totals.Accuracy.Meaning {
		if acc.Accuracy < 0 || acc.Accuracy > 100 {
			fail("review meaning accuracy for %s out of range: %.1f", acc.Type, acc.Accuracy)
		}
	}
	for _, acc := range sec.Totals.Accuracy.Reading {
		if acc.Accuracy < 0 || acc.Accuracy > 100 {
			fail("review reading accuracy for %s out of range: %.1f", acc.Type, acc.Accuracy)
		}
		if acc.Type == model.TypeRadical {
			fail("reading accuracy published for radicals")
		}
	}
	checkExtrema(fail, "review meaning", nil, sec.Aggregates.Highest.IncorrectMeaningAnswers)
	checkExtrema(fail, "review reading", nil, sec.Aggregates.Highest.IncorrectReadingAnswers)

	if !reflect.DeepEqual(sec.Totals, want.Totals) {
		fail("review totals diverge: got %+v, want %+v", sec.Totals, want.Totals)
	}
	if !reflect.DeepEqual(sec.Aggregates, want.Aggregates) {
		fail("review aggregates diverge from source records")
	}
}

// checkCumulative verifies milestone counts nest: completed within
// passed within started within total.
func checkCumulative(fail failFunc, section string, c types.Completion, total int) {
	if c.Completed > c.Passed || c.Passed > c.Started || c.Started > total {
		fail("%s completion not cumulative: %+v of %d", section, c, total)
	}
}

// checkBucketSums verifies every grouped listing partitions the total.
func checkBucketSums(fail failFunc, section string, stages []types.StageCount, levels []types.LevelCount, typs []types.TypeCount, total int) {
	sum := 0
	for _, b := range stages {
		sum += b.Count
	}
	if sum != total {
		fail("%s stage buckets sum to %d of %d", section, sum, total)
	}
	sum = 0
	for _, b := range levels {
		sum += b.Count
	}
	if sum != total {
		fail("%s level buckets sum to %d of %d", section, sum, total)
	}
	sum = 0
	for _, b := range typs {
		sum += b.Count
	}
	if sum != total {
		fail("%s type buckets sum to %d of %d", section, sum, total)
	}
}

// checkExtrema verifies listing size and ordering: lowest ascending,
// highest descending, at most three entries each.
func checkExtrema(fail failFunc, label string, lowest, highest []types.ExtremaEntry) {
	if len(lowest) > 3 || len(highest) > 3 {
		fail("%s extrema exceed three entries", label)
	}
	for i := 1; i < len(lowest); i++ {
		if lowest[i].Value < lowest[i-1].Value {
			fail("%s lowest extrema not ascending", label)
		}
	}
	for i := 1; i < len(highest); i++ {
		if highest[i].Value > highest[i-1].Value {
			fail("%s highest extrema not descending", label)
		}
	}
}

// joinedAssignments resolves subject attributes and stage names the way
// the store's read queries do.
func (d *dataset) joinedAssignments() []model.Assignment {
	out := make([]model.Assignment, len(d.assignments))
	for i, a := range d.assignments {
		s := d.subjectByID[a.SubjectID]
		a.Characters, a.ImageURL = s.Characters, s.ImageURL
		a.Type, a.Level = s.Type, s.Level
		a.StageName = stageName(a.StageID)
		out[i] = a
	}
	return out
}

func (d *dataset) joinedReviews() []model.Review {
	out := make([]model.Review, len(d.reviews))
	for i, r := range d.reviews {
		s := d.subjectByID[r.SubjectID]
		r.Characters, r.ImageURL = s.Characters, s.ImageURL
		r.Type, r.Level = s.Type, s.Level
		r.StartingStageName = stageName(r.StartingStageID)
		out[i] = r
	}
	return out
}

func stageName(id int) string {
	for _, s := range stageLadder {
		if s.ID == id {
			return s.Name
		}
	}
	return ""
}
