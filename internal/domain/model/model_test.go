package model_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	model "github.com/okian/watchlog/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestCyclePolicy(t *testing.T) {
	convey.Convey("Given the cycle numbering policy", t, func() {
		convey.Convey("When a watch has cycles [3,1,4]", func() {
			cycles := []int{3, 1, 4}

			convey.Convey("Then the default cycle is the highest", func() {
				convey.So(model.DefaultCycle(cycles), convey.ShouldEqual, 4)
			})
			convey.Convey("Then the next cycle is one past the highest", func() {
				convey.So(model.NextCycle(cycles), convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When a watch has no cycles", func() {
			convey.Convey("Then both default and next converge on 0", func() {
				convey.So(model.DefaultCycle(nil), convey.ShouldEqual, 0)
				convey.So(model.NextCycle([]int{}), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a watch has cycles [0,2]", func() {
			convey.So(model.NextCycle([]int{0, 2}), convey.ShouldEqual, 3)
		})

		convey.Convey("When cycle sets are merged", func() {
			merged := model.MergeCycles([]int{2, 0}, []int{3, 2})

			convey.Convey("Then the union is sorted without duplicates", func() {
				convey.So(merged, convey.ShouldResemble, []int{0, 2, 3})
			})
		})
	})
}

func TestMeasurementJSON(t *testing.T) {
	convey.Convey("Given a backend measurement payload", t, func() {
		payload := `[{"log_id": 7, "datetime": "2024-03-01 08:15:00", "measure": 1.5, "difference": null},
			{"log_id": "8", "datetime": "2024-03-02T08:15:00", "measure": 2.0, "difference": 0.5}]`

		convey.Convey("When it is decoded", func() {
			var ms []model.Measurement
			err := json.Unmarshal([]byte(payload), &ms)

			convey.Convey("Then ids, times and differences are preserved", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ms, convey.ShouldHaveLength, 2)
				convey.So(ms[0].ID, convey.ShouldEqual, model.ID("7"))
				convey.So(ms[0].Difference, convey.ShouldBeNil)
				convey.So(ms[0].Datetime.Time, convey.ShouldEqual, time.Date(2024, 3, 1, 8, 15, 0, 0, time.UTC))
				convey.So(ms[1].ID, convey.ShouldEqual, model.ID("8"))
				convey.So(*ms[1].Difference, convey.ShouldEqual, 0.5)
				convey.So(ms[1].Datetime.String(), convey.ShouldEqual, "2024-03-02 08:15:00")
			})
		})

		convey.Convey("When a measurement is encoded", func() {
			m := model.Measurement{ID: "12", Datetime: model.NewTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 999, time.UTC)), Measure: 3}
			data, err := json.Marshal(m)

			convey.Convey("Then it uses the wire format", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(data), convey.ShouldEqual,
					`{"log_id":12,"datetime":"2024-01-02 03:04:05","measure":3,"difference":null}`)
			})
		})

		convey.Convey("When ids are encoded and decoded again", func() {
			for _, tc := range []struct {
				id   model.ID
				wire string
			}{
				{"007", `"007"`},
				{"+5", `"+5"`},
				{"-0", `"-0"`},
				{"abc", `"abc"`},
				{"12", `12`},
				{"-3", `-3`},
			} {
				data, err := json.Marshal(model.Watch{ID: tc.id, Name: "w"})
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(data), convey.ShouldStartWith, `{"id":`+tc.wire+`,`)

				var back model.Watch
				convey.So(json.Unmarshal(data, &back), convey.ShouldBeNil)
				convey.So(back.ID, convey.ShouldEqual, tc.id)
			}
		})

		convey.Convey("When the timestamp is malformed", func() {
			_, err := model.ParseTimestamp("yesterday")
			convey.So(err, convey.ShouldWrap, model.ErrInvalidTimestamp)
		})
	})
}

func TestStats(t *testing.T) {
	convey.Convey("Given stats with an unavailable value", t, func() {
		var s model.Stats
		err := json.Unmarshal([]byte(`{"average": "N/A", "deviation": "N/A", "delta": 0}`), &s)

		convey.Convey("Then it decodes to NaN and renders as N/A", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(math.IsNaN(s[model.StatAverage]), convey.ShouldBeTrue)
			convey.So(s.Format(model.StatAverage), convey.ShouldEqual, "N/A")
			convey.So(s.Format(model.StatDelta), convey.ShouldEqual, "0.00")
			convey.So(s.Keys(), convey.ShouldResemble, []string{"average", "deviation", "delta"})
		})

		convey.Convey("Then it encodes NaN back as N/A", func() {
			data, err := json.Marshal(s)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(data), convey.ShouldContainSubstring, `"average":"N/A"`)
		})
	})
}

func TestSelection(t *testing.T) {
	convey.Convey("Given the zero selection", t, func() {
		var s model.Selection

		convey.Convey("Then it is empty", func() {
			convey.So(s.Empty(), convey.ShouldBeTrue)
			convey.So(s.WatchID(), convey.ShouldEqual, model.ID(""))
		})

		convey.Convey("When a watch and cycle are set", func() {
			s = model.Selection{Watch: &model.Watch{ID: "1"}, Cycle: model.Cycle(0)}
			convey.So(s.Empty(), convey.ShouldBeFalse)
			convey.So(s.Cycle.Valid, convey.ShouldBeTrue)
		})
	})
}
