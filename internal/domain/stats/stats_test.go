package stats_test

import (
	"testing"
	"time"

	model "github.com/example/wanistats/internal/domain/model"
	stats "github.com/example/wanistats/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func after(base *time.Time, d time.Duration) *time.Time {
	t := base.Add(d)
	return &t
}

func TestProgressions(t *testing.T) {
	Convey("Given level progression records", t, func() {
		start := ts("2024-01-01T00:00:00Z")
		recs := []model.LevelProgression{
			{Level: 1, StartedAt: start, PassedAt: after(start, 10*time.Second), CompletedAt: after(start, 40*time.Second)},
			{Level: 2, StartedAt: start, PassedAt: after(start, 20*time.Second)},
			{Level: 3, StartedAt: start},
		}

		Convey("When aggregated", func() {
			sec := stats.Progressions(recs)

			Convey("Then totals count every record", func() {
				So(sec.Totals.Total, ShouldEqual, 3)
			})

			Convey("And completion counts are cumulative", func() {
				So(sec.Totals.Completion.Started, ShouldEqual, 3)
				So(sec.Totals.Completion.Passed, ShouldEqual, 2)
				So(sec.Totals.Completion.Completed, ShouldEqual, 1)
			})

			Convey("And averages cover only records with the duration present", func() {
				So(sec.Aggregates.Averages.PassDuration, ShouldNotBeNil)
				So(*sec.Aggregates.Averages.PassDuration, ShouldEqual, 15)
				So(sec.Aggregates.Averages.CompleteDuration, ShouldNotBeNil)
				So(*sec.Aggregates.Averages.CompleteDuration, ShouldEqual, 40)
			})

			Convey("And medians use the order-statistic definition", func() {
				So(*sec.Aggregates.Medians.PassDuration, ShouldEqual, 15)
				So(*sec.Aggregates.Medians.CompleteDuration, ShouldEqual, 40)
			})

			Convey("And the per-level listing is ordered by level ascending", func() {
				So(len(sec.Levels), ShouldEqual, 3)
				So(sec.Levels[0].Level, ShouldEqual, 1)
				So(sec.Levels[2].Level, ShouldEqual, 3)
				So(sec.Levels[2].PassDuration, ShouldBeNil)
			})
		})

		Convey("When the input is empty", func() {
			sec := stats.Progressions(nil)

			Convey("Then totals are zero and aggregates undefined", func() {
				So(sec.Totals.Total, ShouldEqual, 0)
				So(sec.Totals.Completion.Started, ShouldEqual, 0)
				So(sec.Aggregates.Averages.PassDuration, ShouldBeNil)
				So(sec.Aggregates.Medians.CompleteDuration, ShouldBeNil)
				So(sec.Levels, ShouldBeEmpty)
			})
		})

		Convey("When a record has inverted timestamps", func() {
			bad := []model.LevelProgression{
				{Level: 1, StartedAt: ts("2024-02-01T00:00:00Z"), PassedAt: ts("2024-01-01T00:00:00Z")},
				{Level: 2, StartedAt: start, PassedAt: after(start, 30*time.Second)},
			}
			sec := stats.Progressions(bad)

			Convey("Then it counts in totals but never contributes a duration", func() {
				So(sec.Totals.Total, ShouldEqual, 2)
				So(*sec.Aggregates.Averages.PassDuration, ShouldEqual, 30)
			})
		})
	})
}

func TestAssignments(t *testing.T) {
	Convey("Given five assignments where three completed in 10, 20 and 30 seconds", t, func() {
		start := ts("2024-03-01T00:00:00Z")
		recs := []model.Assignment{
			{SubjectID: 1, Type: model.TypeKanji, Level: 1, StageID: 9, StageName: "Burned",
				StartedAt: start, PassedAt: after(start, 10*time.Second), BurnedAt: after(start, 10*time.Second)},
			{SubjectID: 2, Type: model.TypeKanji, Level: 1, StageID: 9, StageName: "Burned",
				StartedAt: start, PassedAt: after(start, 20*time.Second), BurnedAt: after(start, 20*time.Second)},
			{SubjectID: 3, Type: model.TypeVocabulary, Level: 2, StageID: 9, StageName: "Burned",
				StartedAt: start, PassedAt: after(start, 30*time.Second), BurnedAt: after(start, 30*time.Second)},
			{SubjectID: 4, Type: model.TypeRadical, Level: 1, StageID: 1, StageName: "Apprentice I", StartedAt: start},
			{SubjectID: 5, Type: model.TypeKanji, Level: 2, StageID: 1, StageName: "Apprentice I", StartedAt: start},
		}

		Convey("When aggregated", func() {
			sec := stats.Assignments(recs)

			Convey("Then the average and median pass duration are 20", func() {
				So(*sec.Aggregates.Averages.PassDuration, ShouldEqual, 20)
				So(*sec.Aggregates.Medians.PassDuration, ShouldEqual, 20)
			})

			Convey("And exactly the three burned records count as completed", func() {
				So(sec.Totals.Completion.Completed, ShouldEqual, 3)
				So(sec.Totals.Completion.Passed, ShouldEqual, 3)
				So(sec.Totals.Completion.Started, ShouldEqual, 5)
			})

			Convey("And stage buckets are ordered by stage id", func() {
				So(len(sec.Totals.Stage), ShouldEqual, 2)
				So(sec.Totals.Stage[0].Name, ShouldEqual, "Apprentice I")
				So(sec.Totals.Stage[0].Count, ShouldEqual, 2)
				So(sec.Totals.Stage[1].Name, ShouldEqual, "Burned")
				So(sec.Totals.Stage[1].Count, ShouldEqual, 3)
			})

			Convey("And level buckets are ordered ascending and sum to the total", func() {
				So(len(sec.Totals.Level), ShouldEqual, 2)
				So(sec.Totals.Level[0].Level, ShouldEqual, 1)
				So(sec.Totals.Level[0].Count+sec.Totals.Level[1].Count, ShouldEqual, sec.Totals.Total)
			})

			Convey("And type buckets are ordered by name", func() {
				So(len(sec.Totals.Type), ShouldEqual, 3)
				So(sec.Totals.Type[0].Type, ShouldEqual, "kanji")
				So(sec.Totals.Type[1].Type, ShouldEqual, "radical")
				So(sec.Totals.Type[2].Type, ShouldEqual, "vocabulary")
			})
		})
	})
}

func TestReviews(t *testing.T) {
	Convey("Given ten kanji reviews with one incorrect meaning answer in total", t, func() {
		recs := make([]model.Review, 0, 10)
		for i := 0; i < 10; i++ {
			r := model.Review{
				SubjectID:         int64(100 + i),
				Characters:        "字",
				Type:              model.TypeKanji,
				Level:             3,
				StartingStageID:   2,
				StartingStageName: "Apprentice II",
				EndingStageID:     3,
			}
			if i == 0 {
				r.IncorrectMeaning = 1
				r.EndingStageID = 1
			}
			recs = append(recs, r)
		}

		Convey("When aggregated", func() {
			sec := stats.Reviews(recs)

			Convey("Then meaning accuracy for kanji is 90", func() {
				So(len(sec.Totals.Accuracy.Meaning), ShouldEqual, 1)
				So(sec.Totals.Accuracy.Meaning[0].Type, ShouldEqual, "kanji")
				So(sec.Totals.Accuracy.Meaning[0].Accuracy, ShouldEqual, 90)
			})

			Convey("And reading accuracy is perfect", func() {
				So(sec.Totals.Accuracy.Reading[0].Accuracy, ShouldEqual, 100)
			})

			Convey("And review metric summaries are present", func() {
				So(*sec.Aggregates.Averages.IncorrectMeanings, ShouldEqual, 0.1)
				So(*sec.Aggregates.Medians.IncorrectMeanings, ShouldEqual, 0)
				So(sec.Aggregates.Averages.SRSStageChange, ShouldNotBeNil)
			})

			Convey("And stage buckets use the starting stage", func() {
				So(len(sec.Totals.Stage), ShouldEqual, 1)
				So(sec.Totals.Stage[0].Name, ShouldEqual, "Apprentice II")
				So(sec.Totals.Stage[0].Count, ShouldEqual, 10)
			})
		})
	})

	Convey("Given reviews spanning radicals and kanji", t, func() {
		recs := []model.Review{
			{SubjectID: 1, Type: model.TypeRadical, Level: 1, StartingStageID: 1, StartingStageName: "Apprentice I", EndingStageID: 2},
			{SubjectID: 2, Type: model.TypeKanji, Level: 1, StartingStageID: 1, StartingStageName: "Apprentice I", EndingStageID: 2, IncorrectReading: 1},
		}

		Convey("When aggregated", func() {
			sec := stats.Reviews(recs)

			Convey("Then reading accuracy has no radical bucket", func() {
				So(len(sec.Totals.Accuracy.Reading), ShouldEqual, 1)
				So(sec.Totals.Accuracy.Reading[0].Type, ShouldEqual, "kanji")
			})

			Convey("And meaning accuracy covers every type", func() {
				So(len(sec.Totals.Accuracy.Meaning), ShouldEqual, 2)
			})
		})
	})

	Convey("Given an empty review collection", t, func() {
		sec := stats.Reviews(nil)

		Convey("Then totals are zero, groupings empty, aggregates undefined", func() {
			So(sec.Totals.Total, ShouldEqual, 0)
			So(sec.Totals.Stage, ShouldBeEmpty)
			So(sec.Totals.Accuracy.Meaning, ShouldBeEmpty)
			So(sec.Aggregates.Averages.IncorrectMeanings, ShouldBeNil)
			So(sec.Aggregates.Medians.SRSStageChange, ShouldBeNil)
		})
	})
}

func TestAccuracy(t *testing.T) {
	Convey("Given the accuracy formula", t, func() {
		Convey("When the denominator is zero", func() {
			So(stats.Accuracy(0, 0), ShouldEqual, 0)
			So(stats.Accuracy(5, 0), ShouldEqual, 0)
		})

		Convey("When one of ten answers was incorrect", func() {
			So(stats.Accuracy(1, 10), ShouldEqual, 90)
		})

		Convey("When answers were retried more often than reviews exist", func() {
			So(stats.Accuracy(15, 10), ShouldEqual, 0)
		})

		Convey("When rounding applies", func() {
			So(stats.Accuracy(1, 3), ShouldEqual, 66.7)
			So(stats.Accuracy(2, 3), ShouldEqual, 33.3)
		})

		Convey("When nothing was incorrect", func() {
			So(stats.Accuracy(0, 7), ShouldEqual, 100)
		})
	})
}

func TestMedianDefinition(t *testing.T) {
	Convey("Given collections with even and odd counts", t, func() {
		start := ts("2024-01-01T00:00:00Z")
		mk := func(durations ...time.Duration) []model.LevelProgression {
			recs := make([]model.LevelProgression, len(durations))
			for i, d := range durations {
				recs[i] = model.LevelProgression{Level: i + 1, StartedAt: start, PassedAt: after(start, d)}
			}
			return recs
		}

		Convey("When the count is odd the middle element wins", func() {
			sec := stats.Progressions(mk(30*time.Second, 10*time.Second, 20*time.Second))
			So(*sec.Aggregates.Medians.PassDuration, ShouldEqual, 20)
		})

		Convey("When the count is even the two middles are averaged", func() {
			sec := stats.Progressions(mk(40*time.Second, 10*time.Second, 20*time.Second, 30*time.Second))
			So(*sec.Aggregates.Medians.PassDuration, ShouldEqual, 25)
		})
	})
}
