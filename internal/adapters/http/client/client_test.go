package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/watchlog/internal/domain/model"
	"github.com/okian/watchlog/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type recorded struct {
	method, path, requestID, contentType string
	body                                 []byte
}

type callLog struct {
	mu    sync.Mutex
	calls []recorded
}

func (l *callLog) at(i int) recorded {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[i]
}

func newTestServer(handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *callLog) {
	calls := &callLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls.mu.Lock()
		calls.calls = append(calls.calls, recorded{
			method:      r.Method,
			path:        r.URL.Path,
			requestID:   r.Header.Get(requestIDHeader),
			contentType: r.Header.Get("Content-Type"),
			body:        body,
		})
		calls.mu.Unlock()
		handler(w, r)
	}))
	return srv, calls
}

func TestClientReads(t *testing.T) {
	Convey("Given a backend serving watches, measurements and stats", t, func() {
		srv, calls := newTestServer(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/watchlist":
				_, _ = io.WriteString(w, `[{"id": 1, "name": "seiko", "cycles": [0, 2]}, {"id": 2, "name": "omega", "cycles": null}]`)
			case "/measurements/1/2":
				_, _ = io.WriteString(w, `[{"log_id": 5, "datetime": "2024-01-01 10:00:00", "measure": 1.2, "difference": null}]`)
			case "/stats/1/2":
				_, _ = io.WriteString(w, `{"average": 0.25, "deviation": "N/A", "delta": 0}`)
			default:
				http.NotFound(w, r)
			}
		})
		defer srv.Close()
		c := New(srv.URL+"/", WithRequestIDs(func() string { return "req-1" }))
		ctx := context.Background()

		Convey("When the watch list is fetched", func() {
			watches, err := c.ListWatches(ctx)

			Convey("Then ids and cycles decode and nil cycles become empty", func() {
				So(err, ShouldBeNil)
				So(watches, ShouldHaveLength, 2)
				So(watches[0].ID, ShouldEqual, model.ID("1"))
				So(watches[0].Cycles, ShouldResemble, []int{0, 2})
				So(watches[1].Cycles, ShouldResemble, []int{})
				So(calls.at(0).requestID, ShouldEqual, "req-1")
				So(calls.at(0).method, ShouldEqual, http.MethodGet)
			})
		})

		Convey("When a cycle's measurements are fetched", func() {
			ms, err := c.ListMeasurements(ctx, "1", 2)

			Convey("Then the path is scoped to watch and cycle", func() {
				So(err, ShouldBeNil)
				So(calls.at(0).path, ShouldEqual, "/measurements/1/2")
				So(ms, ShouldHaveLength, 1)
				So(ms[0].Difference, ShouldBeNil)
			})
		})

		Convey("When stats are fetched", func() {
			s, err := c.Stats(ctx, "1", 2)

			Convey("Then unavailable values render as N/A", func() {
				So(err, ShouldBeNil)
				So(s.Format(model.StatAverage), ShouldEqual, "0.25")
				So(s.Format(model.StatDeviation), ShouldEqual, "N/A")
			})
		})

		Convey("When an unknown path is requested", func() {
			_, err := c.ListMeasurements(ctx, "9", 0)

			Convey("Then a not-found transport error is returned", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				var te *TransportError
				So(errors.As(err, &te), ShouldBeTrue)
				So(te.StatusCode, ShouldEqual, http.StatusNotFound)
				So(te.RequestID, ShouldEqual, "req-1")
			})
		})
	})
}

func TestClientWrites(t *testing.T) {
	Convey("Given a backend accepting writes", t, func() {
		srv, calls := newTestServer(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodPost && r.URL.Path == "/watchlist":
				w.WriteHeader(http.StatusCreated)
				_, _ = io.WriteString(w, `{"id": 3, "name": "casio", "cycles": []}`)
			case r.Method == http.MethodPost:
				_, _ = io.WriteString(w, `{"status": "ok"}`)
			case r.Method == http.MethodDelete && r.URL.Path == "/measurements/404":
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"detail": "Log not found."}`)
			default:
				_, _ = io.WriteString(w, `{"status": "ok"}`)
			}
		})
		defer srv.Close()
		c := New(srv.URL)
		ctx := context.Background()

		Convey("When a watch is created", func() {
			w, err := c.CreateWatch(ctx, "casio")

			Convey("Then the name is posted as JSON", func() {
				So(err, ShouldBeNil)
				So(w.ID, ShouldEqual, model.ID("3"))
				So(calls.at(0).contentType, ShouldEqual, "application/json")
				So(string(calls.at(0).body), ShouldEqual, `{"name":"casio"}`)
				So(calls.at(0).requestID, ShouldNotBeBlank)
			})
		})

		Convey("When a measurement is created", func() {
			at := model.NewTimestamp(time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC))
			err := c.CreateMeasurement(ctx, "3", 1, at, -0.5)

			Convey("Then the wire format is used", func() {
				So(err, ShouldBeNil)
				So(calls.at(0).path, ShouldEqual, "/measurements/3/1")
				var got map[string]any
				So(json.Unmarshal(calls.at(0).body, &got), ShouldBeNil)
				So(got["datetime"], ShouldEqual, "2024-02-03 04:05:06")
				So(got["measure"], ShouldEqual, -0.5)
			})
		})

		Convey("When deletes are issued", func() {
			So(c.DeleteWatch(ctx, "3"), ShouldBeNil)
			So(c.DeleteMeasurement(ctx, "7"), ShouldBeNil)

			Convey("Then they target the id paths", func() {
				So(calls.at(0).method, ShouldEqual, http.MethodDelete)
				So(calls.at(0).path, ShouldEqual, "/watchlist/3")
				So(calls.at(1).path, ShouldEqual, "/measurements/7")
			})
		})

		Convey("When the backend rejects a delete", func() {
			err := c.DeleteMeasurement(ctx, "404")

			Convey("Then the detail message is surfaced", func() {
				So(errors.Is(err, ErrBadRequest), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "Log not found.")
			})
		})
	})
}

func TestClientTransportFailures(t *testing.T) {
	Convey("Given a backend that is down", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		base := srv.URL
		srv.Close()
		c := New(base)

		Convey("When a request is made", func() {
			_, err := c.ListWatches(context.Background())

			Convey("Then it fails once as unavailable", func() {
				So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
				var te *TransportError
				So(errors.As(err, &te), ShouldBeTrue)
				So(te.StatusCode, ShouldEqual, 0)
			})
		})
	})

	Convey("Given a backend that fails every request", t, func() {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.Error(w, "boom", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		Convey("When a request is made", func() {
			_, err := New(srv.URL).Stats(context.Background(), "1", 0)

			Convey("Then it is not retried", func() {
				So(errors.Is(err, ErrServer), ShouldBeTrue)
				So(int(hits.Load()), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a backend returning garbage", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `not json`)
		}))
		defer srv.Close()

		_, err := New(srv.URL).ListWatches(context.Background())
		So(errors.Is(err, ErrDecode), ShouldBeTrue)
	})

	Convey("Given a slow backend and a short timeout", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		_, err := New(srv.URL, WithTimeout(20*time.Millisecond)).ListWatches(context.Background())
		So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
	})
}
