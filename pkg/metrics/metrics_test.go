package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When a manager is created with custom options", func() {
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("client"),
				WithMetricPrefix("pre"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.fetchIssued.WithLabelValues("stats").Inc()

			Convey("Then metrics are registered under the configured names", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(strings.Join(names, ","), ShouldContainSubstring, "test_client_pre_fetch_issued_total")
			})
		})
	})
}

func TestRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When fetch outcomes are recorded", func() {
			before := testutil.ToFloat64(globalManager.fetchSuperseded.WithLabelValues("measurements"))
			RecordFetchIssued("measurements")
			RecordFetchSuperseded("measurements")
			RecordFetchLatency("measurements", 12)

			Convey("Then the superseded counter moves", func() {
				after := testutil.ToFloat64(globalManager.fetchSuperseded.WithLabelValues("measurements"))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When recording is disabled", func() {
			SetEnabled(false)
			defer SetEnabled(true)
			before := testutil.ToFloat64(globalManager.mutations.WithLabelValues("create_watch", "ok"))
			RecordMutation("create_watch", "ok")

			Convey("Then nothing is counted", func() {
				So(testutil.ToFloat64(globalManager.mutations.WithLabelValues("create_watch", "ok")), ShouldEqual, before)
			})
		})

		Convey("When every helper is called", func() {
			So(func() {
				RecordFetchApplied("stats")
				RecordFetchFailed("stats")
				RecordValidationRejected("create_measurement")
				RecordSelectionChange("watch")
				RecordReportDropped()
				UpdateQueueCapacity(64)
				UpdateQueueSize(1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(0.1)
				RecordLoopTaskLatency(0.2)
				RecordLoopTaskPanic()
				RecordBackendRequest("/watchlist", "GET", "200", 3)
				RecordHTTPRequest("/watchlist", "GET", "200")
				RecordHTTPRequestDuration("/watchlist", "GET", "200", 3)
				UpdateRepositoryWatches(2)
				UpdateRepositoryMeasurements(10)
				RecordRepositoryQueryLatency("list_watches", 1)
				RecordErrorByComponent("client", "timeout")
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
