// Package metrics exposes Prometheus metrics for update checks.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/koltyakov/siren/internal/domain"
)

// Metrics holds the check metrics and the registry they are registered on.
type Metrics struct {
	registry *prometheus.Registry

	ChecksTotal       *prometheus.CounterVec
	CheckDuration     prometheus.Histogram
	VerdictsTotal     *prometheus.CounterVec
	FetchErrorsTotal  *prometheus.CounterVec
	HistoryErrorTotal prometheus.Counter
	LastCheckTime     prometheus.Gauge
	PublishedVersion  *prometheus.GaugeVec
}

// New creates the metrics on a private registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ChecksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siren_checks_total",
				Help: "Total number of update checks by outcome",
			},
			[]string{"outcome"},
		),
		CheckDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "siren_check_duration_seconds",
				Help:    "Duration of update checks including the store lookup",
				Buckets: prometheus.DefBuckets,
			},
		),
		VerdictsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siren_verdicts_total",
				Help: "Total number of verdicts by alert type and reason",
			},
			[]string{"alert", "reason"},
		),
		FetchErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siren_fetch_errors_total",
				Help: "Total number of failed store lookups by cause",
			},
			[]string{"cause"},
		),
		HistoryErrorTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "siren_history_errors_total",
				Help: "Total number of failed history reads or writes",
			},
		),
		LastCheckTime: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "siren_last_check_timestamp_seconds",
				Help: "Unix time of the last completed check",
			},
		),
		PublishedVersion: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "siren_published_version_info",
				Help: "Store version seen by the last successful lookup",
			},
			[]string{"version"},
		),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveVerdict records a completed check that produced v.
func (m *Metrics) ObserveVerdict(v domain.Verdict, took time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues("verdict").Inc()
	m.VerdictsTotal.WithLabelValues(string(v.Alert), string(v.Reason)).Inc()
	m.CheckDuration.Observe(took.Seconds())
	m.LastCheckTime.Set(float64(at.Unix()))
	if pv := v.PublishedVersion(); pv != "" {
		m.PublishedVersion.Reset()
		m.PublishedVersion.WithLabelValues(pv).Set(1)
	}
}

// ObserveFetchError records a check that stopped at the store lookup.
func (m *Metrics) ObserveFetchError(err error, took time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues("error").Inc()
	m.FetchErrorsTotal.WithLabelValues(Cause(err)).Inc()
	m.CheckDuration.Observe(took.Seconds())
	m.LastCheckTime.Set(float64(at.Unix()))
}

// ObserveHistoryError records a failed history read or write.
func (m *Metrics) ObserveHistoryError() {
	if m == nil {
		return
	}
	m.HistoryErrorTotal.Inc()
}

// Cause maps a check error to a low-cardinality label value.
func Cause(err error) string {
	return domain.ErrorCode(err)
}
