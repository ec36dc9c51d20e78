// Package metrics holds the Prometheus collectors for profile submission,
// storage and outbound lookups.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes.
const (
	OutcomeSubmitted = "submitted"
	OutcomeInvalid   = "invalid"
	OutcomeBusy      = "busy"
	OutcomeFailed    = "failed"
)

var lookupBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	ProfilesAppended   prometheus.Counter
	StorageCorruptRead prometheus.Counter
	FormSubmissions    *prometheus.CounterVec
	EmailChecks        *prometheus.CounterVec
	EmailCheckDuration prometheus.Histogram
	DirectoryFetches   *prometheus.CounterVec
	FormsActive        prometheus.Gauge
}

// New registers all collectors on a fresh registry, plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ProfilesAppended: f.NewCounter(prometheus.CounterOpts{
			Name: "hive_profiles_appended_total",
			Help: "Total number of profiles appended to the collection",
		}),
		StorageCorruptRead: f.NewCounter(prometheus.CounterOpts{
			Name: "hive_profile_store_corrupt_reads_total",
			Help: "Reads that found an unparseable collection and treated it as empty",
		}),
		FormSubmissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hive_form_submissions_total",
			Help: "Form submissions by outcome",
		}, []string{"outcome"}),
		EmailChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hive_email_checks_total",
			Help: "Email deliverability lookups by verdict",
		}, []string{"verdict"}),
		EmailCheckDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hive_email_check_duration_seconds",
			Help:    "Duration of email deliverability lookups",
			Buckets: lookupBuckets,
		}),
		DirectoryFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hive_directory_fetches_total",
			Help: "Remote user directory listings by result",
		}, []string{"result"}),
		FormsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "hive_forms_active",
			Help: "Open form sessions",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// IncProfilesAppended records a successful append.
func (m *Metrics) IncProfilesAppended() {
	if m == nil {
		return
	}
	m.ProfilesAppended.Inc()
}

// IncStorageCorruptRead records a collection that failed to decode.
func (m *Metrics) IncStorageCorruptRead() {
	if m == nil {
		return
	}
	m.StorageCorruptRead.Inc()
}

// IncFormSubmission records one submit attempt with its outcome.
func (m *Metrics) IncFormSubmission(outcome string) {
	if m == nil {
		return
	}
	m.FormSubmissions.WithLabelValues(outcome).Inc()
}

// ObserveEmailCheck records a deliverability lookup. Call with time.Now() taken before the lookup.
func (m *Metrics) ObserveEmailCheck(verdict string, start time.Time) {
	if m == nil {
		return
	}
	m.EmailChecks.WithLabelValues(verdict).Inc()
	m.EmailCheckDuration.Observe(time.Since(start).Seconds())
}

// IncDirectoryFetch records a remote directory listing ("ok" or "error").
func (m *Metrics) IncDirectoryFetch(result string) {
	if m == nil {
		return
	}
	m.DirectoryFetches.WithLabelValues(result).Inc()
}

// SetFormsActive reports the number of open form sessions.
func (m *Metrics) SetFormsActive(n int) {
	if m == nil {
		return
	}
	m.FormsActive.Set(float64(n))
}
