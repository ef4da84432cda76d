package model_test

import (
	"testing"
	"time"

	model "github.com/example/wanistats/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestLevelProgressionDurations(t *testing.T) {
	convey.Convey("Given a level progression", t, func() {
		convey.Convey("When all timestamps are present", func() {
			p := model.LevelProgression{
				Level:       4,
				StartedAt:   ts("2024-01-01T00:00:00Z"),
				PassedAt:    ts("2024-01-11T00:00:00Z"),
				CompletedAt: ts("2024-01-21T00:00:00Z"),
			}

			convey.Convey("Then both durations are derived in seconds", func() {
				pass, ok := p.PassDuration()
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(pass, convey.ShouldEqual, 10*24*3600)

				complete, ok := p.CompleteDuration()
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(complete, convey.ShouldEqual, 20*24*3600)
				convey.So(p.Malformed(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the level is unpassed", func() {
			p := model.LevelProgression{
				Level:     5,
				StartedAt: ts("2024-01-01T00:00:00Z"),
			}

			convey.Convey("Then no durations are derived", func() {
				_, ok := p.PassDuration()
				convey.So(ok, convey.ShouldBeFalse)
				_, ok = p.CompleteDuration()
				convey.So(ok, convey.ShouldBeFalse)
				convey.So(p.Malformed(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the timestamps are inverted", func() {
			p := model.LevelProgression{
				Level:     6,
				StartedAt: ts("2024-02-01T00:00:00Z"),
				PassedAt:  ts("2024-01-01T00:00:00Z"),
			}

			convey.Convey("Then the record is malformed and yields no duration", func() {
				_, ok := p.PassDuration()
				convey.So(ok, convey.ShouldBeFalse)
				convey.So(p.Malformed(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestAssignmentDurations(t *testing.T) {
	convey.Convey("Given an assignment", t, func() {
		convey.Convey("When the subject was burned", func() {
			a := model.Assignment{
				SubjectID:  42,
				Characters: "水",
				Type:       model.TypeKanji,
				Level:      1,
				StartedAt:  ts("2024-01-01T00:00:00Z"),
				PassedAt:   ts("2024-01-03T00:00:00Z"),
				BurnedAt:   ts("2024-05-01T00:00:00Z"),
			}

			convey.Convey("Then complete duration runs to the burn timestamp", func() {
				pass, ok := a.PassDuration()
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(pass, convey.ShouldEqual, 2*24*3600)

				complete, ok := a.CompleteDuration()
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(complete, convey.ShouldBeGreaterThan, pass)
			})
		})

		convey.Convey("When the assignment was never started", func() {
			a := model.Assignment{SubjectID: 7, Type: model.TypeRadical}

			convey.Convey("Then it carries no durations", func() {
				_, ok := a.PassDuration()
				convey.So(ok, convey.ShouldBeFalse)
				_, ok = a.CompleteDuration()
				convey.So(ok, convey.ShouldBeFalse)
			})
		})
	})
}

func TestReviewStageChange(t *testing.T) {
	convey.Convey("Given review records", t, func() {
		convey.Convey("When the subject advanced a stage", func() {
			r := model.Review{StartingStageID: 2, EndingStageID: 3}
			convey.So(r.StageChange(), convey.ShouldEqual, 1)
		})

		convey.Convey("When the subject dropped stages", func() {
			r := model.Review{StartingStageID: 5, EndingStageID: 2, IncorrectMeaning: 3}
			convey.So(r.StageChange(), convey.ShouldEqual, -3)
		})

		convey.Convey("When the stage did not move", func() {
			r := model.Review{StartingStageID: 4, EndingStageID: 4}
			convey.So(r.StageChange(), convey.ShouldEqual, 0)
		})
	})
}
