// Package stats computes totals and central-tendency aggregates from
// record collections. All functions are pure: no I/O, no clock, and a
// deterministic result for identical input.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/example/wanistats/internal/domain/model"
	"github.com/example/wanistats/internal/domain/types"
)

// Progressions aggregates level progression records into the totals,
// per-level listing and central-tendency block of a report section.
// Extrema are selected separately.
func Progressions(recs []model.LevelProgression) types.ProgressionSection {
	var sec types.ProgressionSection
	sec.Totals.Total = len(recs)

	var passes, completes []float64
	levels := make([]types.LevelDuration, 0, len(recs))
	for _, p := range recs {
		countCompletion(&sec.Totals.Completion, p.StartedAt, p.PassedAt, p.CompletedAt)

		row := types.LevelDuration{Level: p.Level}
		if v, ok := p.PassDuration(); ok {
			passes = append(passes, v)
			row.PassDuration = ptr(v)
		}
		if v, ok := p.CompleteDuration(); ok {
			completes = append(completes, v)
			row.CompleteDuration = ptr(v)
		}
		levels = append(levels, row)
	}
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Level < levels[j].Level })
	sec.Levels = levels

	sec.Aggregates.Averages = durationSummary(mean, passes, completes)
	sec.Aggregates.Medians = durationSummary(median, passes, completes)
	return sec
}

// Assignments aggregates assignment records into totals grouped by
// completion milestone, SRS stage, level and subject type, plus the
// central-tendency block.
func Assignments(recs []model.Assignment) types.AssignmentSection {
	var sec types.AssignmentSection
	sec.Totals.Total = len(recs)

	stageCounts := map[stageKey]int{}
	levelCounts := map[int]int{}
	typeCounts := map[string]int{}

	var passes, completes []float64
	for _, a := range recs {
		countCompletion(&sec.Totals.Completion, a.StartedAt, a.PassedAt, a.BurnedAt)
		stageCounts[stageKey{a.StageID, a.StageName}]++
		levelCounts[a.Level]++
		typeCounts[a.Type]++
		if v, ok := a.PassDuration(); ok {
			passes = append(passes, v)
		}
		if v, ok := a.CompleteDuration(); ok {
			completes = append(completes, v)
		}
	}

	sec.Totals.Stage = sortedStageCounts(stageCounts)
	sec.Totals.Level = sortedLevelCounts(levelCounts)
	sec.Totals.Type = sortedTypeCounts(typeCounts)

	sec.Aggregates.Averages = durationSummary(mean, passes, completes)
	sec.Aggregates.Medians = durationSummary(median, passes, completes)
	return sec
}

// Reviews aggregates review records into totals grouped by starting
// stage, level and subject type, per-type accuracy, and the
// central-tendency block over the always-present review metrics.
func Reviews(recs []model.Review) types.ReviewSection {
	var sec types.ReviewSection
	sec.Totals.Total = len(recs)

	stageCounts := map[stageKey]int{}
	levelCounts := map[int]int{}
	typeCounts := map[string]int{}
	meaningIncorrect := map[string]int{}
	readingIncorrect := map[string]int{}

	meanings := make([]float64, 0, len(recs))
	readings := make([]float64, 0, len(recs))
	changes := make([]float64, 0, len(recs))

	for _, r := range recs {
		stageCounts[stageKey{r.StartingStageID, r.StartingStageName}]++
		levelCounts[r.Level]++
		typeCounts[r.Type]++
		meaningIncorrect[r.Type] += r.IncorrectMeaning
		readingIncorrect[r.Type] += r.IncorrectReading

		meanings = append(meanings, float64(r.IncorrectMeaning))
		readings = append(readings, float64(r.IncorrectReading))
		changes = append(changes, float64(r.StageChange()))
	}

	sec.Totals.Stage = sortedStageCounts(stageCounts)
	sec.Totals.Level = sortedLevelCounts(levelCounts)
	sec.Totals.Type = sortedTypeCounts(typeCounts)
	sec.Totals.Accuracy = types.AccuracyTotals{
		Meaning: accuracies(typeCounts, meaningIncorrect, false),
		Reading: accuracies(typeCounts, readingIncorrect, true),
	}

	sec.Aggregates.Averages = reviewSummary(mean, meanings, readings, changes)
	sec.Aggregates.Medians = reviewSummary(median, meanings, readings, changes)
	return sec
}

// Accuracy returns the answer accuracy percentage for a review subset:
// 100 x (1 - incorrect/total), clamped to [0, 100] and rounded to one
// decimal place. A zero denominator yields 0 rather than a division
// error.
func Accuracy(incorrect, total int) float64 {
	if total == 0 {
		return 0
	}
	acc := 100 * (1 - float64(incorrect)/float64(total))
	if acc < 0 {
		acc = 0
	}
	if acc > 100 {
		acc = 100
	}
	return math.Round(acc*10) / 10
}

// countCompletion adds one record's milestones to the cumulative
// completion counts: completed implies passed implies started.
func countCompletion(c *types.Completion, started, passed, completed *time.Time) {
	done := completed != nil
	pass := done || passed != nil
	start := pass || started != nil
	if done {
		c.Completed++
	}
	if pass {
		c.Passed++
	}
	if start {
		c.Started++
	}
}

type stageKey struct {
	id   int
	name string
}

func sortedStageCounts(counts map[stageKey]int) []types.StageCount {
	keys := make([]stageKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].id < keys[j].id })
	out := make([]types.StageCount, len(keys))
	for i, k := range keys {
		out[i] = types.StageCount{Name: k.name, Count: counts[k]}
	}
	return out
}

func sortedLevelCounts(counts map[int]int) []types.LevelCount {
	levels := make([]int, 0, len(counts))
	for l := range counts {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	out := make([]types.LevelCount, len(levels))
	for i, l := range levels {
		out[i] = types.LevelCount{Level: l, Count: counts[l]}
	}
	return out
}

func sortedTypeCounts(counts map[string]int) []types.TypeCount {
	names := make([]string, 0, len(counts))
	for t := range counts {
		names = append(names, t)
	}
	sort.Strings(names)
	out := make([]types.TypeCount, len(names))
	for i, t := range names {
		out[i] = types.TypeCount{Type: t, Count: counts[t]}
	}
	return out
}

func accuracies(totals, incorrect map[string]int, excludeRadicals bool) []types.TypeAccuracy {
	out := make([]types.TypeAccuracy, 0, len(totals))
	for typ, total := range totals {
		if excludeRadicals && typ == model.TypeRadical {
			continue
		}
		out = append(out, types.TypeAccuracy{Type: typ, Accuracy: Accuracy(incorrect[typ], total)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

type measure func([]float64) (float64, bool)

// mean returns the arithmetic mean, reporting ok=false on empty input.
func mean(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals)), true
}

// median returns the order-statistic median: the middle element of the
// ascending ordering, or the mean of the two middle elements for even
// counts.
func median(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

func durationSummary(m measure, passes, completes []float64) types.DurationSummary {
	return types.DurationSummary{
		PassDuration:     measured(m, passes),
		CompleteDuration: measured(m, completes),
	}
}

func reviewSummary(m measure, meanings, readings, changes []float64) types.ReviewSummary {
	return types.ReviewSummary{
		IncorrectMeanings: measured(m, meanings),
		IncorrectReadings: measured(m, readings),
		SRSStageChange:    measured(m, changes),
	}
}

func measured(m measure, vals []float64) *float64 {
	if v, ok := m(vals); ok {
		return &v
	}
	return nil
}

func ptr(v float64) *float64 { return &v }
