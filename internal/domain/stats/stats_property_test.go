package stats_test

import (
	"testing"
	"time"

	model "github.com/example/wanistats/internal/domain/model"
	stats "github.com/example/wanistats/internal/domain/stats"
	types "github.com/example/wanistats/internal/domain/types"
	"pgregory.net/rapid"
)

var stageNames = []string{
	"Initiate",
	"Apprentice I", "Apprentice II", "Apprentice III", "Apprentice IV",
	"Guru I", "Guru II",
	"Master", "Enlightened", "Burned",
}

func drawAssignment(rt *rapid.T, i int) model.Assignment {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := model.Assignment{
		SubjectID: int64(i + 1),
		Type:      rapid.SampledFrom([]string{model.TypeRadical, model.TypeKanji, model.TypeVocabulary}).Draw(rt, "type"),
		Level:     rapid.IntRange(1, 60).Draw(rt, "level"),
		StageID:   rapid.IntRange(0, 9).Draw(rt, "stage"),
	}
	a.StageName = stageNames[a.StageID]
	if rapid.Bool().Draw(rt, "started") {
		started := base
		a.StartedAt = &started
		if rapid.Bool().Draw(rt, "passed") {
			passed := base.Add(time.Duration(rapid.IntRange(1, 1000000).Draw(rt, "passSecs")) * time.Second)
			a.PassedAt = &passed
			if rapid.Bool().Draw(rt, "burned") {
				burned := passed.Add(time.Duration(rapid.IntRange(0, 1000000).Draw(rt, "burnSecs")) * time.Second)
				a.BurnedAt = &burned
			}
		}
	}
	return a
}

func TestAssignmentBucketsSumToTotal(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 200).Draw(rt, "n")
		recs := make([]model.Assignment, n)
		for i := range recs {
			recs[i] = drawAssignment(rt, i)
		}

		sec := stats.Assignments(recs)
		if sec.Totals.Total != n {
			rt.Fatalf("total = %d, want %d", sec.Totals.Total, n)
		}

		for name, buckets := range map[string]int{
			"level": sumLevelCounts(sec.Totals.Level),
			"type":  sumTypeCounts(sec.Totals.Type),
			"stage": sumStageCounts(sec.Totals.Stage),
		} {
			if buckets != n {
				rt.Fatalf("%s buckets sum to %d, want %d", name, buckets, n)
			}
		}

		c := sec.Totals.Completion
		if c.Completed > c.Passed || c.Passed > c.Started || c.Started > n {
			rt.Fatalf("completion counts not cumulative: %+v with total %d", c, n)
		}
	})
}

func TestDurationSummariesWithinBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 100).Draw(rt, "n")
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		recs := make([]model.LevelProgression, n)
		minSecs, maxSecs := float64(0), float64(0)
		for i := range recs {
			secs := rapid.IntRange(1, 10000000).Draw(rt, "secs")
			passed := base.Add(time.Duration(secs) * time.Second)
			recs[i] = model.LevelProgression{Level: i + 1, StartedAt: &base, PassedAt: &passed}

			s := float64(secs)
			if i == 0 || s < minSecs {
				minSecs = s
			}
			if i == 0 || s > maxSecs {
				maxSecs = s
			}
		}

		sec := stats.Progressions(recs)
		avg := sec.Aggregates.Averages.PassDuration
		med := sec.Aggregates.Medians.PassDuration
		if avg == nil || med == nil {
			rt.Fatalf("summaries undefined for %d records", n)
		}
		if *avg < minSecs || *avg > maxSecs {
			rt.Fatalf("average %f outside [%f, %f]", *avg, minSecs, maxSecs)
		}
		if *med < minSecs || *med > maxSecs {
			rt.Fatalf("median %f outside [%f, %f]", *med, minSecs, maxSecs)
		}
	})
}

func TestAccuracyAlwaysInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		incorrect := rapid.IntRange(0, 10000).Draw(rt, "incorrect")
		total := rapid.IntRange(0, 5000).Draw(rt, "total")

		acc := stats.Accuracy(incorrect, total)
		if acc < 0 || acc > 100 {
			rt.Fatalf("accuracy %f outside [0, 100] for %d/%d", acc, incorrect, total)
		}
		if total == 0 && acc != 0 {
			rt.Fatalf("zero denominator must yield 0, got %f", acc)
		}
	})
}

func TestReviewBucketsSumToTotal(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 200).Draw(rt, "n")
		recs := make([]model.Review, n)
		for i := range recs {
			stage := rapid.IntRange(0, 8).Draw(rt, "startStage")
			recs[i] = model.Review{
				SubjectID:         int64(rapid.IntRange(1, 40).Draw(rt, "subject")),
				Type:              rapid.SampledFrom([]string{model.TypeRadical, model.TypeKanji, model.TypeVocabulary}).Draw(rt, "type"),
				Level:             rapid.IntRange(1, 60).Draw(rt, "level"),
				StartingStageID:   stage,
				StartingStageName: stageNames[stage],
				EndingStageID:     rapid.IntRange(0, 9).Draw(rt, "endStage"),
				IncorrectMeaning:  rapid.IntRange(0, 5).Draw(rt, "meaning"),
				IncorrectReading:  rapid.IntRange(0, 5).Draw(rt, "reading"),
			}
		}

		sec := stats.Reviews(recs)
		if sec.Totals.Total != n {
			rt.Fatalf("total = %d, want %d", sec.Totals.Total, n)
		}
		if got := sumStageCounts(sec.Totals.Stage); got != n {
			rt.Fatalf("stage buckets sum to %d, want %d", got, n)
		}
		if got := sumLevelCounts(sec.Totals.Level); got != n {
			rt.Fatalf("level buckets sum to %d, want %d", got, n)
		}
		if got := sumTypeCounts(sec.Totals.Type); got != n {
			rt.Fatalf("type buckets sum to %d, want %d", got, n)
		}

		for _, acc := range append(sec.Totals.Accuracy.Meaning, sec.Totals.Accuracy.Reading...) {
			if acc.Accuracy < 0 || acc.Accuracy > 100 {
				rt.Fatalf("accuracy %f for %s outside [0, 100]", acc.Accuracy, acc.Type)
			}
		}
	})
}

func sumLevelCounts(buckets []types.LevelCount) int {
	sum := 0
	for _, b := range buckets {
		sum += b.Count
	}
	return sum
}

func sumTypeCounts(buckets []types.TypeCount) int {
	sum := 0
	for _, b := range buckets {
		sum += b.Count
	}
	return sum
}

func sumStageCounts(buckets []types.StageCount) int {
	sum := 0
	for _, b := range buckets {
		sum += b.Count
	}
	return sum
}
