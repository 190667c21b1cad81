package api_test

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/watchlog/internal/adapters/http/api"
	"github.com/okian/watchlog/internal/adapters/http/client"
	"github.com/okian/watchlog/internal/adapters/repository"
	"github.com/okian/watchlog/internal/domain/model"
	"github.com/okian/watchlog/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// TestClientContract drives the server through the real HTTP client.
func TestClientContract(t *testing.T) {
	convey.Convey("Given the client talking to a live server", t, func() {
		server := api.NewServer(repository.NewMemoryStore(), api.WithLogger(logger.Discard()))
		mux := http.NewServeMux()
		server.Register(context.Background(), mux)
		ts := httptest.NewServer(server.Handler(mux))
		defer ts.Close()

		c := client.New(ts.URL, client.WithLogger(logger.Discard()))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		w, err := c.CreateWatch(ctx, "Seamaster")
		convey.So(err, convey.ShouldBeNil)
		convey.So(w.ID, convey.ShouldEqual, model.ID("1"))

		convey.Convey("When measurements are logged and read back", func() {
			base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
			convey.So(c.CreateMeasurement(ctx, w.ID, 0, model.NewTimestamp(base), 1.0), convey.ShouldBeNil)
			convey.So(c.CreateMeasurement(ctx, w.ID, 0, model.NewTimestamp(base.Add(24*time.Hour)), 3.0), convey.ShouldBeNil)

			logs, err := c.ListMeasurements(ctx, w.ID, 0)
			convey.So(err, convey.ShouldBeNil)
			stats, err := c.Stats(ctx, w.ID, 0)
			convey.So(err, convey.ShouldBeNil)
			watches, err := c.ListWatches(ctx)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the wire format round-trips", func() {
				convey.So(logs, convey.ShouldHaveLength, 2)
				convey.So(logs[0].Datetime.Time.Equal(base), convey.ShouldBeTrue)
				convey.So(logs[0].Difference, convey.ShouldBeNil)
				convey.So(*logs[1].Difference, convey.ShouldEqual, 2.0)
				convey.So(stats[model.StatAverage], convey.ShouldEqual, 2.0)
				convey.So(watches[0].Cycles, convey.ShouldResemble, []int{0})
			})
		})

		convey.Convey("When stats of an empty cycle are read", func() {
			stats, err := c.Stats(ctx, w.ID, 5)

			convey.Convey("Then N/A decodes to NaN", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(math.IsNaN(stats[model.StatAverage]), convey.ShouldBeTrue)
				convey.So(stats.Format(model.StatAverage), convey.ShouldEqual, "N/A")
			})
		})

		convey.Convey("When an unknown measurement is deleted", func() {
			err := c.DeleteMeasurement(ctx, "99")

			convey.Convey("Then a bad-request transport error carries the server message", func() {
				convey.So(errors.Is(err, client.ErrBadRequest), convey.ShouldBeTrue)
				var terr *client.TransportError
				convey.So(errors.As(err, &terr), convey.ShouldBeTrue)
				convey.So(terr.Message, convey.ShouldEqual, "Log not found.")
				convey.So(terr.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
			})
		})

		convey.Convey("When an unknown watch is deleted", func() {
			err := c.DeleteWatch(ctx, "42")

			convey.Convey("Then it maps to not found", func() {
				convey.So(errors.Is(err, client.ErrNotFound), convey.ShouldBeTrue)
			})
		})
	})
}
