// Package extrema selects the top lowest and highest records per
// metric for the ranked listings of a report.
package extrema

import (
	"sort"

	"github.com/example/wanistats/internal/domain/model"
	"github.com/example/wanistats/internal/domain/types"
)

// keep is the fixed number of entries per listing.
const keep = 3

// Lowest returns up to three entries with the smallest values, ordered
// ascending. The sort is stable: ties keep first-seen input order, so
// identical input always yields identical output.
func Lowest(entries []types.ExtremaEntry) []types.ExtremaEntry {
	return top(entries, func(a, b types.ExtremaEntry) bool { return a.Value < b.Value })
}

// Highest returns up to three entries with the largest values, ordered
// descending, with the same stable tie handling as Lowest.
func Highest(entries []types.ExtremaEntry) []types.ExtremaEntry {
	return top(entries, func(a, b types.ExtremaEntry) bool { return a.Value > b.Value })
}

func top(entries []types.ExtremaEntry, less func(a, b types.ExtremaEntry) bool) []types.ExtremaEntry {
	sorted := make([]types.ExtremaEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
	if len(sorted) > keep {
		sorted = sorted[:keep]
	}
	return sorted
}

// Progressions builds the lowest and highest duration listings for
// level progressions. Entries identify themselves by level; only
// records with the metric present participate.
func Progressions(recs []model.LevelProgression) (lowest, highest types.DurationExtrema) {
	passes := make([]types.ExtremaEntry, 0, len(recs))
	completes := make([]types.ExtremaEntry, 0, len(recs))
	for _, p := range recs {
		if v, ok := p.PassDuration(); ok {
			passes = append(passes, types.ExtremaEntry{Level: p.Level, Value: v})
		}
		if v, ok := p.CompleteDuration(); ok {
			completes = append(completes, types.ExtremaEntry{Level: p.Level, Value: v})
		}
	}
	lowest = types.DurationExtrema{PassDuration: Lowest(passes), CompleteDuration: Lowest(completes)}
	highest = types.DurationExtrema{PassDuration: Highest(passes), CompleteDuration: Highest(completes)}
	return lowest, highest
}

// Assignments builds the lowest and highest duration listings for
// assignments. Entries carry their subject attributes, and each metric
// list carries that metric's own values.
func Assignments(recs []model.Assignment) (lowest, highest types.DurationExtrema) {
	passes := make([]types.ExtremaEntry, 0, len(recs))
	completes := make([]types.ExtremaEntry, 0, len(recs))
	for _, a := range recs {
		if v, ok := a.PassDuration(); ok {
			passes = append(passes, subjectEntry(a.Type, a.Characters, a.ImageURL, a.Level, v))
		}
		if v, ok := a.CompleteDuration(); ok {
			completes = append(completes, subjectEntry(a.Type, a.Characters, a.ImageURL, a.Level, v))
		}
	}
	lowest = types.DurationExtrema{PassDuration: Lowest(passes), CompleteDuration: Lowest(completes)}
	highest = types.DurationExtrema{PassDuration: Highest(passes), CompleteDuration: Highest(completes)}
	return lowest, highest
}

// Reviews builds the highest listings of summed incorrect answers per
// subject. Reviews are grouped by subject before selection so a
// subject reviewed many times ranks by its accumulated mistakes. Only
// the highest side is published; the lowest is uniformly zero.
func Reviews(recs []model.Review) types.ReviewExtrema {
	type subject struct {
		typ        string
		characters string
		imageURL   string
		level      int
		meaning    int
		reading    int
	}

	bySubject := map[int64]*subject{}
	order := make([]int64, 0, len(recs))
	for _, r := range recs {
		s, ok := bySubject[r.SubjectID]
		if !ok {
			s = &subject{typ: r.Type, characters: r.Characters, imageURL: r.ImageURL, level: r.Level}
			bySubject[r.SubjectID] = s
			order = append(order, r.SubjectID)
		}
		s.meaning += r.IncorrectMeaning
		s.reading += r.IncorrectReading
	}

	meanings := make([]types.ExtremaEntry, 0, len(order))
	readings := make([]types.ExtremaEntry, 0, len(order))
	for _, id := range order {
		s := bySubject[id]
		meanings = append(meanings, subjectEntry(s.typ, s.characters, s.imageURL, s.level, float64(s.meaning)))
		readings = append(readings, subjectEntry(s.typ, s.characters, s.imageURL, s.level, float64(s.reading)))
	}

	return types.ReviewExtrema{
		IncorrectMeaningAnswers: Highest(meanings),
		IncorrectReadingAnswers: Highest(readings),
	}
}

func subjectEntry(typ, characters, imageURL string, level int, value float64) types.ExtremaEntry {
	return types.ExtremaEntry{
		Type:       typ,
		Characters: characters,
		ImageURL:   imageURL,
		Level:      level,
		Value:      value,
	}
}
