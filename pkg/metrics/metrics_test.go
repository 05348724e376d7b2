package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("history"),
				WithLatencyBuckets([]float64{1, 5, 10}),
				WithMetricsEnabled(true),
				WithRefreshInterval(5*time.Second),
				WithConstLabel("store_backend", "sqlite"),
				WithConstLabel("", "ignored"),
				WithPrometheusRegistry(registry),
			)
			manager.RecordRosterRanked(4)

			Convey("Then metric names carry namespace and subsystem", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var found bool
				for _, f := range families {
					if f.GetName() != "test_namespace_history_rosters_ranked_total" {
						continue
					}
					found = true
					labels := f.GetMetric()[0].GetLabel()
					So(labels, ShouldHaveLength, 1)
					So(labels[0].GetName(), ShouldEqual, "store_backend")
					So(labels[0].GetValue(), ShouldEqual, "sqlite")
				}
				So(found, ShouldBeTrue)
				So(manager.RefreshInterval(), ShouldEqual, 5*time.Second)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(WithPrometheusRegistry(registry))

		Convey("When recording ranking metrics", func() {
			m.RecordRosterRanked(3)
			m.RecordRosterRanked(7)
			m.RecordValidationFailure("Maths")

			Convey("Then counters and gauges reflect the calls", func() {
				So(testutil.ToFloat64(m.rostersRanked), ShouldEqual, 2)
				So(testutil.ToFloat64(m.rosterSize), ShouldEqual, 7)
				So(testutil.ToFloat64(m.validationFailures.WithLabelValues("Maths")), ShouldEqual, 1)
			})
		})

		Convey("When recording store metrics", func() {
			m.RecordStoreOperation("save", OutcomeSuccess, 12)
			m.RecordStoreOperation("save", OutcomeUnavailable, 40)
			m.RecordStoreRetry("save")
			m.UpdateSnapshotDates(5)

			Convey("Then they are labelled by op and outcome", func() {
				So(testutil.ToFloat64(m.storeOperations.WithLabelValues("save", OutcomeSuccess)), ShouldEqual, 1)
				So(testutil.ToFloat64(m.storeOperations.WithLabelValues("save", OutcomeUnavailable)), ShouldEqual, 1)
				So(testutil.ToFloat64(m.storeRetries.WithLabelValues("save")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.snapshotDates), ShouldEqual, 5)
				So(testutil.CollectAndCount(m.storeLatency), ShouldEqual, 1)
			})
		})

		Convey("When recording HTTP metrics", func() {
			m.RecordHTTPRequest("/roster", "POST", "200")
			m.RecordHTTPRequestDuration("/roster", "POST", "200", 3)
			m.RecordErrorByEndpoint("/roster", "POST", "invalid_record")
			m.RecordErrorByType("invalid_record", "warning")

			Convey("Then the exposition contains them", func() {
				expected := `
# HELP marksense_http_requests_total Total number of HTTP requests by endpoint and method
# TYPE marksense_http_requests_total counter
marksense_http_requests_total{endpoint="/roster",method="POST",status_code="200"} 1
`
				So(testutil.CollectAndCompare(m.httpRequests, strings.NewReader(expected)), ShouldBeNil)
				So(testutil.ToFloat64(m.errorRateByEndpoint.WithLabelValues("/roster", "POST", "invalid_record")), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a disabled manager", t, func() {
		m := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()), WithMetricsEnabled(false))

		Convey("When recording", func() {
			m.RecordRosterRanked(9)
			m.RecordStoreRetry("load")

			Convey("Then nothing is observed", func() {
				So(m.Enabled(), ShouldBeFalse)
				So(testutil.ToFloat64(m.rostersRanked), ShouldEqual, 0)
				So(testutil.ToFloat64(m.storeRetries.WithLabelValues("load")), ShouldEqual, 0)
			})
		})
	})
}

func TestGlobalHelpers(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When using package helpers", func() {
			So(func() {
				RecordRosterRanked(2)
				RecordValidationFailure("Name")
				RecordStoreOperation("load_by_date", OutcomeNotFound, 1)
				RecordStoreRetry("load_by_date")
				UpdateSnapshotDates(1)
				RecordHTTPRequest("/healthz", "GET", "200")
				RecordHTTPRequestDuration("/healthz", "GET", "200", 0)
				RecordErrorByEndpoint("/snapshots/latest", "GET", "not_found")
				RecordErrorByType("not_found", "warning")
			}, ShouldNotPanic)

			Convey("Then the custom registry gathers without error", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				So(families, ShouldNotBeEmpty)
			})
		})
	})
}

func TestRuntimeCollectors(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		Convey("When registering runtime collectors twice", func() {
			So(func() {
				RegisterRuntimeCollectors()
				RegisterRuntimeCollectors()
			}, ShouldNotPanic)

			Convey("Then go runtime families are gathered", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if strings.HasPrefix(f.GetName(), "go_") {
						found = true
						break
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("Then the global refresh interval has a default", func() {
			So(RefreshInterval(), ShouldBeGreaterThan, 0)
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given a reconfigured global manager", t, func() {
		previous := GetRegistry()
		Configure(WithRefreshInterval(3*time.Second), WithConstLabel("store_backend", "memory"))

		Convey("When recording through the package helpers", func() {
			RecordRosterRanked(6)

			Convey("Then a fresh registry carries the labelled series", func() {
				So(GetRegistry(), ShouldNotPointTo, previous)
				So(RefreshInterval(), ShouldEqual, 3*time.Second)
				expected := `
# HELP marksense_roster_size Number of students in the current session roster
# TYPE marksense_roster_size gauge
marksense_roster_size{store_backend="memory"} 6
`
				So(testutil.GatherAndCompare(GetRegistry(), strings.NewReader(expected), "marksense_roster_size"), ShouldBeNil)
			})

			Convey("Then runtime collectors can be registered again", func() {
				So(RegisterRuntimeCollectors, ShouldNotPanic)
			})
		})
	})
}
