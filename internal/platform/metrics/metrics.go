package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the playout server.
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry                *prometheus.Registry
	requestsTotal           prometheus.Counter
	errorsTotal             prometheus.Counter
	ingestionsTotal         prometheus.Counter
	transcodeFailuresTotal  *prometheus.CounterVec
	derivedFailuresTotal    *prometheus.CounterVec
	transcodeDuration       prometheus.Histogram
	channelTransitionsTotal *prometheus.CounterVec
	channelsOnAir           prometheus.Gauge
	scheduleEntries         prometheus.Gauge
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playout_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playout_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		ingestionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playout_media_ingested_total",
			Help: "Total number of media assets committed to the catalog",
		}),
		transcodeFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playout_transcode_failures_total",
			Help: "Ingestions aborted by the transcoder, by reason",
		}, []string{"reason"}),
		derivedFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playout_derived_artifact_failures_total",
			Help: "Non-fatal duration probe or thumbnail failures",
		}, []string{"artifact"}),
		transcodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "playout_transcode_duration_seconds",
			Help:    "Wall time of successful transcodes",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		channelTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playout_channel_transitions_total",
			Help: "Channel start/stop commands applied",
		}, []string{"transition"}),
		channelsOnAir: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "playout_channels_on_air",
			Help: "Number of channels currently on air",
		}),
		scheduleEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "playout_schedule_entries",
			Help: "Number of schedule entries stored",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.ingestionsTotal,
		m.transcodeFailuresTotal,
		m.derivedFailuresTotal,
		m.transcodeDuration,
		m.channelTransitionsTotal,
		m.channelsOnAir,
		m.scheduleEntries,
	)
	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// IncIngested counts a committed ingestion.
func (m *Metrics) IncIngested() {
	if m == nil {
		return
	}
	m.ingestionsTotal.Inc()
}

// IncTranscodeFailure counts an aborted ingestion; reason is "error" or "timeout".
func (m *Metrics) IncTranscodeFailure(reason string) {
	if m == nil {
		return
	}
	m.transcodeFailuresTotal.WithLabelValues(reason).Inc()
}

// IncDerivedFailure counts a failed "duration" or "thumbnail" computation.
func (m *Metrics) IncDerivedFailure(artifact string) {
	if m == nil {
		return
	}
	m.derivedFailuresTotal.WithLabelValues(artifact).Inc()
}

// ObserveTranscode records the duration of a successful transcode.
func (m *Metrics) ObserveTranscode(d time.Duration) {
	if m == nil {
		return
	}
	m.transcodeDuration.Observe(d.Seconds())
}

// IncTransition counts a "start" or "stop" transition.
func (m *Metrics) IncTransition(transition string) {
	if m == nil {
		return
	}
	m.channelTransitionsTotal.WithLabelValues(transition).Inc()
}

// SetChannelsOnAir sets the on-air gauge.
func (m *Metrics) SetChannelsOnAir(n int) {
	if m == nil {
		return
	}
	m.channelsOnAir.Set(float64(n))
}

// SetScheduleEntries sets the schedule size gauge.
func (m *Metrics) SetScheduleEntries(n int) {
	if m == nil {
		return
	}
	m.scheduleEntries.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
