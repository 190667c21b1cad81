package service_test

import (
	"errors"
	"testing"

	service "github.com/okian/watchlog/internal/app"
	"github.com/okian/watchlog/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestPipeline_Measurements(t *testing.T) {
	convey.Convey("Given a session with (1, 0) selected", t, func() {
		backend := newFakeBackend(model.Watch{ID: "1", Name: "w", Cycles: []int{0}})
		backend.seed("1", 0, 4.2)
		s := startSession(t, backend)
		ctx, cancel := testContext()
		defer cancel()

		convey.So(s.SelectWatchByID(ctx, "1"), convey.ShouldBeNil)
		convey.So(s.Settle(ctx), convey.ShouldBeNil)
		logsBefore := backend.count("ListMeasurements:1/0")
		statsBefore := backend.count("Stats:1/0")

		convey.Convey("When a measurement is created", func() {
			err := s.Pipeline().CreateMeasurement(ctx, "1", 0, model.Timestamp{}, " 5.5 ")
			convey.So(err, convey.ShouldBeNil)
			convey.So(s.Settle(ctx), convey.ShouldBeNil)

			convey.Convey("Then the list and stats are fetched exactly once each", func() {
				convey.So(backend.count("ListMeasurements:1/0")-logsBefore, convey.ShouldEqual, 1)
				convey.So(backend.count("Stats:1/0")-statsBefore, convey.ShouldEqual, 1)
			})

			convey.Convey("Then both reflect the new measurement", func() {
				logs := s.Measurements().Snapshot()
				convey.So(logs.Data, convey.ShouldHaveLength, 2)
				convey.So(logs.Data[1].Measure, convey.ShouldEqual, 5.5)
				convey.So(logs.Data[1].Datetime.IsZero(), convey.ShouldBeFalse)
				convey.So(s.Stats().Snapshot().Data[model.StatAverage], convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When a measurement for a pair that is not shown is created", func() {
			err := s.Pipeline().CreateMeasurement(ctx, "1", 9, model.Timestamp{}, "1")
			convey.So(err, convey.ShouldBeNil)
			convey.So(s.Settle(ctx), convey.ShouldBeNil)

			convey.Convey("Then the shown pair is not refetched", func() {
				convey.So(backend.count("ListMeasurements:1/0"), convey.ShouldEqual, logsBefore)
				convey.So(backend.count("ListMeasurements:1/9"), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a measurement is deleted", func() {
			id := s.Measurements().Snapshot().Data[0].ID
			convey.So(s.Pipeline().DeleteMeasurement(ctx, id, "1", 0), convey.ShouldBeNil)
			convey.So(s.Settle(ctx), convey.ShouldBeNil)

			convey.Convey("Then the same cascade runs", func() {
				convey.So(backend.count("ListMeasurements:1/0")-logsBefore, convey.ShouldEqual, 1)
				convey.So(backend.count("Stats:1/0")-statsBefore, convey.ShouldEqual, 1)
				convey.So(s.Measurements().Snapshot().Data, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the backend rejects a write", func() {
			backend.failWith("CreateMeasurement", errBackendDown)
			err := s.Pipeline().CreateMeasurement(ctx, "1", 0, model.Timestamp{}, "3")
			convey.So(s.Settle(ctx), convey.ShouldBeNil)

			convey.Convey("Then the error is returned and nothing is refetched", func() {
				convey.So(errors.Is(err, errBackendDown), convey.ShouldBeTrue)
				convey.So(backend.count("ListMeasurements:1/0"), convey.ShouldEqual, logsBefore)
			})
		})
	})
}

func TestPipeline_Validation(t *testing.T) {
	convey.Convey("Given a started session", t, func() {
		backend := newFakeBackend(model.Watch{ID: "1", Name: "w", Cycles: []int{0}})
		s := startSession(t, backend)
		ctx, cancel := testContext()
		defer cancel()
		before := backend.total()

		cases := []struct {
			name  string
			run   func() error
			field string
		}{
			{"non-numeric value", func() error {
				return s.Pipeline().CreateMeasurement(ctx, "1", 0, model.Timestamp{}, "abc")
			}, "measure"},
			{"empty value", func() error {
				return s.Pipeline().CreateMeasurement(ctx, "1", 0, model.Timestamp{}, "")
			}, "measure"},
			{"NaN value", func() error {
				return s.Pipeline().CreateMeasurement(ctx, "1", 0, model.Timestamp{}, "NaN")
			}, "measure"},
			{"infinite value", func() error {
				return s.Pipeline().CreateMeasurement(ctx, "1", 0, model.Timestamp{}, "+Inf")
			}, "measure"},
			{"no watch", func() error {
				return s.Pipeline().CreateMeasurement(ctx, "", 0, model.Timestamp{}, "1")
			}, "watch"},
			{"negative cycle", func() error {
				return s.Pipeline().CreateMeasurement(ctx, "1", -1, model.Timestamp{}, "1")
			}, "cycle"},
			{"blank watch name", func() error {
				_, err := s.Pipeline().CreateWatch(ctx, "   ")
				return err
			}, "name"},
			{"measurement without id", func() error {
				return s.Pipeline().DeleteMeasurement(ctx, "", "1", 0)
			}, "id"},
		}

		for _, tc := range cases {
			convey.Convey("When the input has a "+tc.name, func() {
				err := tc.run()

				convey.Convey("Then a validation error is returned without any backend call", func() {
					convey.So(errors.Is(err, service.ErrValidation), convey.ShouldBeTrue)
					var verr *service.ValidationError
					convey.So(errors.As(err, &verr), convey.ShouldBeTrue)
					convey.So(verr.Field, convey.ShouldEqual, tc.field)
					convey.So(backend.total(), convey.ShouldEqual, before)
				})
			})
		}
	})
}

func TestPipeline_Watches(t *testing.T) {
	convey.Convey("Given a session with a selected watch", t, func() {
		backend := newFakeBackend(
			model.Watch{ID: "1", Name: "keep", Cycles: []int{0}},
			model.Watch{ID: "2", Name: "drop", Cycles: []int{1}},
		)
		backend.seed("2", 1, 7)
		s := startSession(t, backend)
		ctx, cancel := testContext()
		defer cancel()

		convey.So(s.SelectWatchByID(ctx, "2"), convey.ShouldBeNil)
		convey.So(s.Settle(ctx), convey.ShouldBeNil)

		convey.Convey("When the selected watch is deleted", func() {
			sel, err := s.Current(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(s.Pipeline().DeleteWatch(ctx, *sel.Watch), convey.ShouldBeNil)
			convey.So(s.Settle(ctx), convey.ShouldBeNil)

			convey.Convey("Then the selection is cleared and dependent views emptied", func() {
				sel, err := s.Current(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(sel.Watch, convey.ShouldBeNil)
				convey.So(sel.Cycle, convey.ShouldResemble, model.NoCycle)
				convey.So(s.Measurements().Snapshot().HasData, convey.ShouldBeFalse)
				convey.So(s.Stats().Snapshot().HasData, convey.ShouldBeFalse)
			})

			convey.Convey("Then the watch list is refetched without it", func() {
				snap := s.Watches().Snapshot()
				convey.So(snap.Key.Version, convey.ShouldEqual, 2)
				convey.So(snap.Data, convey.ShouldHaveLength, 1)
				convey.So(snap.Data[0].Name, convey.ShouldEqual, "keep")
			})
		})

		convey.Convey("When another watch is deleted", func() {
			convey.So(s.Pipeline().DeleteWatch(ctx, model.Watch{ID: "1"}), convey.ShouldBeNil)
			convey.So(s.Settle(ctx), convey.ShouldBeNil)

			convey.Convey("Then the selection is kept", func() {
				sel, _ := s.Current(ctx)
				convey.So(sel.Watch.ID, convey.ShouldEqual, model.ID("2"))
				convey.So(sel.Cycle, convey.ShouldResemble, model.Cycle(1))
			})
		})

		convey.Convey("When a watch is created", func() {
			w, err := s.Pipeline().CreateWatch(ctx, "new")
			convey.So(err, convey.ShouldBeNil)
			convey.So(s.Settle(ctx), convey.ShouldBeNil)

			convey.Convey("Then it appears in the list but is not selected", func() {
				convey.So(s.Watches().Snapshot().Data, convey.ShouldHaveLength, 3)
				sel, _ := s.Current(ctx)
				convey.So(sel.Watch.ID, convey.ShouldNotEqual, w.ID)
			})
		})

		convey.Convey("When deleting fails on the backend", func() {
			backend.failWith("DeleteWatch", errBackendDown)
			err := s.Pipeline().DeleteWatch(ctx, model.Watch{ID: "2"})

			convey.Convey("Then the selection is untouched", func() {
				convey.So(errors.Is(err, errBackendDown), convey.ShouldBeTrue)
				sel, _ := s.Current(ctx)
				convey.So(sel.Watch.ID, convey.ShouldEqual, model.ID("2"))
			})
		})
	})
}

func TestPipeline_CreateCycle(t *testing.T) {
	convey.Convey("Given a watch with cycles 0 and 2", t, func() {
		backend := newFakeBackend(model.Watch{ID: "1", Name: "w", Cycles: []int{0, 2}})
		s := startSession(t, backend)
		ctx, cancel := testContext()
		defer cancel()

		convey.Convey("When a cycle is created without a selected watch", func() {
			_, err := s.Pipeline().CreateCycle(ctx)

			convey.Convey("Then it is refused", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(backend.total(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the watch is selected and a cycle created", func() {
			convey.So(s.SelectWatchByID(ctx, "1"), convey.ShouldBeNil)
			convey.So(s.Settle(ctx), convey.ShouldBeNil)
			cycle, err := s.Pipeline().CreateCycle(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(s.Settle(ctx), convey.ShouldBeNil)

			convey.Convey("Then cycle 3 is created and selected", func() {
				convey.So(cycle, convey.ShouldEqual, 3)
				sel, _ := s.Current(ctx)
				convey.So(sel.Cycle, convey.ShouldResemble, model.Cycle(3))
				convey.So(sel.Watch.Cycles, convey.ShouldResemble, []int{0, 2, 3})
				convey.So(s.Cycles().Snapshot().Data, convey.ShouldResemble, []int{0, 2, 3})
				convey.So(s.Measurements().Snapshot().Key.Cycle, convey.ShouldEqual, 3)
			})

			convey.Convey("Then it survives a refetch of the watch list", func() {
				convey.So(s.Refresh(ctx), convey.ShouldBeNil)
				convey.So(s.Settle(ctx), convey.ShouldBeNil)
				sel, _ := s.Current(ctx)
				convey.So(sel.Watch.Cycles, convey.ShouldResemble, []int{0, 2, 3})
				convey.So(sel.Cycle, convey.ShouldResemble, model.Cycle(3))
				convey.So(s.Watches().Snapshot().Data[0].Cycles, convey.ShouldResemble, []int{0, 2, 3})
			})

			convey.Convey("Then a second creation yields cycle 4", func() {
				next, err := s.Pipeline().CreateCycle(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(next, convey.ShouldEqual, 4)
			})
		})
	})
}
