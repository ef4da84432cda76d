package types_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	types "github.com/example/wanistats/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDurationSummaryJSON(t *testing.T) {
	Convey("Given a duration summary", t, func() {
		Convey("When no records qualified", func() {
			data, err := json.Marshal(types.DurationSummary{})

			Convey("Then undefined values encode as null, not zero", func() {
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, `{"pass_duration":null,"complete_duration":null}`)
			})
		})

		Convey("When only the pass duration is defined", func() {
			v := 4200.0
			data, err := json.Marshal(types.DurationSummary{PassDuration: &v})

			Convey("Then the defined metric keeps its numeric value", func() {
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, `"pass_duration":4200`)
				So(string(data), ShouldContainSubstring, `"complete_duration":null`)
			})
		})
	})
}

func TestExtremaEntryJSON(t *testing.T) {
	Convey("Given extrema entries", t, func() {
		Convey("When the entry identifies a progression", func() {
			data, err := json.Marshal(types.ExtremaEntry{Level: 12, Value: 86400})

			Convey("Then subject fields are omitted", func() {
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, `{"level":12,"value":86400}`)
			})
		})

		Convey("When the entry identifies a subject", func() {
			data, err := json.Marshal(types.ExtremaEntry{
				Type:       "kanji",
				Characters: "魚",
				Level:      3,
				Value:      7,
			})

			Convey("Then the subject attributes are present", func() {
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, `"type":"kanji"`)
				So(string(data), ShouldContainSubstring, `"characters":"魚"`)
				So(string(data), ShouldNotContainSubstring, `"image_url"`)
			})
		})
	})
}

func TestReportJSON(t *testing.T) {
	Convey("Given a report", t, func() {
		avg := 20.0
		report := types.Report{
			User: types.UserInfo{Username: "koichi", Level: 9, StartedAt: time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)},
			Assignments: &types.AssignmentSection{
				Totals: types.AssignmentTotals{
					Total:      5,
					Completion: types.Completion{Started: 5, Passed: 4, Completed: 3},
					Stage:      []types.StageCount{{Name: "Apprentice I", Count: 2}, {Name: "Burned", Count: 3}},
					Level:      []types.LevelCount{{Level: 1, Count: 5}},
					Type:       []types.TypeCount{{Type: "kanji", Count: 5}},
				},
				Aggregates: types.DurationAggregates{
					Averages: types.DurationSummary{PassDuration: &avg},
				},
			},
			ComputedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		}

		Convey("When marshaled", func() {
			data, err := json.Marshal(report)
			So(err, ShouldBeNil)
			body := string(data)

			Convey("Then the section keys match the published contract", func() {
				So(body, ShouldContainSubstring, `"level_progressions":null`)
				So(body, ShouldContainSubstring, `"assignments":{`)
				So(body, ShouldContainSubstring, `"completion":{"started":5,"passed":4,"completed":3}`)
				So(body, ShouldContainSubstring, `"stage":[{"name":"Apprentice I","count":2}`)
			})

			Convey("And the partial list is omitted when every section computed", func() {
				So(body, ShouldNotContainSubstring, `"partial"`)
			})

			Convey("And completion counts are cumulative", func() {
				c := report.Assignments.Totals.Completion
				So(c.Completed, ShouldBeLessThanOrEqualTo, c.Passed)
				So(c.Passed, ShouldBeLessThanOrEqualTo, c.Started)
			})
		})

		Convey("When a section failed to compute", func() {
			report.Reviews = nil
			report.Partial = []types.SectionError{{Section: "reviews", Reason: "store read failed"}}
			data, err := json.Marshal(report)
			So(err, ShouldBeNil)

			Convey("Then the failure is reported alongside the valid sections", func() {
				So(strings.Contains(string(data), `"partial":[{"section":"reviews"`), ShouldBeTrue)
				So(strings.Contains(string(data), `"assignments":{`), ShouldBeTrue)
			})
		})
	})
}
