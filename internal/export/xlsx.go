// Package export renders statistics reports as xlsx workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/wanistats/internal/domain/types"
	"github.com/example/wanistats/pkg/metrics"
)

// Sheet names, in workbook order.
const (
	sheetOverview     = "Overview"
	sheetProgressions = "Progressions"
	sheetAssignments  = "Assignments"
	sheetReviews      = "Reviews"
)

// Book is a rendered workbook ready to be streamed.
type Book struct {
	file *excelize.File
}

// Workbook renders a report into a four-sheet workbook. Sections the
// report does not carry render as a single note row; the overview
// sheet lists the reasons.
func Workbook(r *types.Report) (*Book, error) {
	if r == nil {
		return nil, fmt.Errorf("nil report")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetOverview); err != nil {
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}
	for _, name := range []string{sheetProgressions, sheetAssignments, sheetReviews} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	sheets := []struct {
		name   string
		render func(w *sheetWriter)
	}{
		{sheetOverview, func(w *sheetWriter) { writeOverview(w, r) }},
		{sheetProgressions, func(w *sheetWriter) { writeProgressions(w, r.LevelProgressions) }},
		{sheetAssignments, func(w *sheetWriter) { writeAssignments(w, r.Assignments) }},
		{sheetReviews, func(w *sheetWriter) { writeReviews(w, r.Reviews) }},
	}
	for _, s := range sheets {
		w := &sheetWriter{file: f, sheet: s.name, style: style}
		s.render(w)
		if w.err != nil {
			return nil, fmt.Errorf("render sheet %s: %w", s.name, w.err)
		}
	}

	if idx, err := f.GetSheetIndex(sheetOverview); err == nil {
		f.SetActiveSheet(idx)
	}

	return &Book{file: f}, nil
}

// Write streams the workbook to w.
func (b *Book) Write(w io.Writer) error {
	if err := b.file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	metrics.RecordExportGenerated()
	return nil
}

// Filename names a download after its user and report date.
func Filename(username string, at time.Time) string {
	return fmt.Sprintf("wanikani-stats-%s-%s.xlsx", username, at.UTC().Format("20060102"))
}

// sheetWriter appends rows to one sheet top to bottom, keeping the
// first error it hits.
type sheetWriter struct {
	file  *excelize.File
	sheet string
	style int
	row   int
	err   error
}

// write appends one row.
func (w *sheetWriter) write(cells ...interface{}) {
	if w.err != nil {
		return
	}
	w.row++
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.file.SetSheetRow(w.sheet, cell, &cells)
}

// header appends one row and bolds it.
func (w *sheetWriter) header(cells ...interface{}) {
	w.write(cells...)
	if w.err != nil || len(cells) == 0 {
		return
	}
	first, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		w.err = err
		return
	}
	last, err := excelize.CoordinatesToCellName(len(cells), w.row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.file.SetCellStyle(w.sheet, first, last, w.style)
}

// skip leaves a blank row.
func (w *sheetWriter) skip() {
	w.row++
}

func writeOverview(w *sheetWriter, r *types.Report) {
	w.header("WaniKani statistics")
	w.write("Username", r.User.Username)
	w.write("Level", r.User.Level)
	if !r.User.StartedAt.IsZero() {
		w.write("Started", r.User.StartedAt.UTC().Format(time.RFC3339))
	}
	w.write("Computed", r.ComputedAt.UTC().Format(time.RFC3339))
	w.skip()

	w.header("Section", "Records")
	if r.LevelProgressions != nil {
		w.write("Level progressions", r.LevelProgressions.Totals.Total)
	} else {
		w.write("Level progressions", "unavailable")
	}
	if r.Assignments != nil {
		w.write("Assignments", r.Assignments.Totals.Total)
	} else {
		w.write("Assignments", "unavailable")
	}
	if r.Reviews != nil {
		w.write("Reviews", r.Reviews.Totals.Total)
	} else {
		w.write("Reviews", "unavailable")
	}

	if len(r.Partial) > 0 {
		w.skip()
		w.header("Unavailable section", "Reason")
		for _, p := range r.Partial {
			w.write(p.Section, p.Reason)
		}
	}
}

func writeProgressions(w *sheetWriter, s *types.ProgressionSection) {
	if s == nil {
		w.write("No level progression statistics.")
		return
	}

	w.header("Total", "Started", "Passed", "Completed")
	w.write(s.Totals.Total, s.Totals.Completion.Started, s.Totals.Completion.Passed, s.Totals.Completion.Completed)
	w.skip()

	w.header("Level", "Pass duration (s)", "Complete duration (s)")
	for _, l := range s.Levels {
		w.write(l.Level, num(l.PassDuration), num(l.CompleteDuration))
	}
	w.skip()

	writeDurationAggregates(w, s.Aggregates)
	w.skip()

	w.header("Listing", "Level", "Seconds")
	writeLevelExtrema(w, "Lowest pass duration", s.Aggregates.Lowest.PassDuration)
	writeLevelExtrema(w, "Highest pass duration", s.Aggregates.Highest.PassDuration)
	writeLevelExtrema(w, "Lowest complete duration", s.Aggregates.Lowest.CompleteDuration)
	writeLevelExtrema(w, "Highest complete duration", s.Aggregates.Highest.CompleteDuration)
}

func writeAssignments(w *sheetWriter, s *types.AssignmentSection) {
	if s == nil {
		w.write("No assignment statistics.")
		return
	}

	w.header("Total", "Started", "Passed", "Burned")
	w.write(s.Totals.Total, s.Totals.Completion.Started, s.Totals.Completion.Passed, s.Totals.Completion.Completed)
	w.skip()

	w.header("Stage", "Count")
	for _, c := range s.Totals.Stage {
		w.write(c.Name, c.Count)
	}
	w.skip()

	w.header("Level", "Count")
	for _, c := range s.Totals.Level {
		w.write(c.Level, c.Count)
	}
	w.skip()

	w.header("Type", "Count")
	for _, c := range s.Totals.Type {
		w.write(c.Type, c.Count)
	}
	w.skip()

	writeDurationAggregates(w, s.Aggregates)
	w.skip()

	w.header("Listing", "Subject", "Type", "Seconds")
	writeSubjectExtrema(w, "Lowest pass duration", s.Aggregates.Lowest.PassDuration)
	writeSubjectExtrema(w, "Highest pass duration", s.Aggregates.Highest.PassDuration)
	writeSubjectExtrema(w, "Lowest complete duration", s.Aggregates.Lowest.CompleteDuration)
	writeSubjectExtrema(w, "Highest complete duration", s.Aggregates.Highest.CompleteDuration)
}

func writeReviews(w *sheetWriter, s *types.ReviewSection) {
	if s == nil {
		w.write("No review statistics.")
		return
	}

	w.header("Total reviews")
	w.write(s.Totals.Total)
	w.skip()

	w.header("Starting stage", "Count")
	for _, c := range s.Totals.Stage {
		w.write(c.Name, c.Count)
	}
	w.skip()

	w.header("Level", "Count")
	for _, c := range s.Totals.Level {
		w.write(c.Level, c.Count)
	}
	w.skip()

	w.header("Type", "Count")
	for _, c := range s.Totals.Type {
		w.write(c.Type, c.Count)
	}
	w.skip()

	w.header("Type", "Meaning accuracy (%)")
	for _, a := range s.Totals.Accuracy.Meaning {
		w.write(a.Type, a.Accuracy)
	}
	w.skip()

	w.header("Type", "Reading accuracy (%)")
	for _, a := range s.Totals.Accuracy.Reading {
		w.write(a.Type, a.Accuracy)
	}
	w.skip()

	w.header("Metric", "Average", "Median")
	w.write("Incorrect meaning answers", num(s.Aggregates.Averages.IncorrectMeanings), num(s.Aggregates.Medians.IncorrectMeanings))
	w.write("Incorrect reading answers", num(s.Aggregates.Averages.IncorrectReadings), num(s.Aggregates.Medians.IncorrectReadings))
	w.write("SRS stage change", num(s.Aggregates.Averages.SRSStageChange), num(s.Aggregates.Medians.SRSStageChange))
	w.skip()

	w.header("Listing", "Subject", "Type", "Answers")
	writeSubjectExtrema(w, "Most incorrect meanings", s.Aggregates.Highest.IncorrectMeaningAnswers)
	writeSubjectExtrema(w, "Most incorrect readings", s.Aggregates.Highest.IncorrectReadingAnswers)
}

func writeDurationAggregates(w *sheetWriter, a types.DurationAggregates) {
	w.header("Metric", "Average (s)", "Median (s)")
	w.write("Pass duration", num(a.Averages.PassDuration), num(a.Medians.PassDuration))
	w.write("Complete duration", num(a.Averages.CompleteDuration), num(a.Medians.CompleteDuration))
}

func writeLevelExtrema(w *sheetWriter, label string, entries []types.ExtremaEntry) {
	for _, e := range entries {
		w.write(label, e.Level, e.Value)
	}
}

func writeSubjectExtrema(w *sheetWriter, label string, entries []types.ExtremaEntry) {
	for _, e := range entries {
		w.write(label, subjectLabel(e), e.Type, e.Value)
	}
}

// subjectLabel prefers glyphs and falls back to the image rendition.
func subjectLabel(e types.ExtremaEntry) string {
	if e.Characters != "" {
		return e.Characters
	}
	return e.ImageURL
}

// num renders an optional metric; an undefined value stays an empty cell.
func num(p *float64) interface{} {
	if p == nil {
		return ""
	}
	return *p
}
