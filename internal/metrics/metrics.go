// Package metrics provides Prometheus-based metrics for the bot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records bot activity. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry            *prometheus.Registry
	eventsTotal         *prometheus.CounterVec
	estimatesTotal      *prometheus.CounterVec
	completionDuration  *prometheus.HistogramVec
	acquisitionsTotal   *prometheus.CounterVec
	acquisitionDuration *prometheus.HistogramVec
	deliveredBytes      *prometheus.CounterVec
	downloadsFinished   *prometheus.CounterVec
}

// NewRecorder creates a recorder backed by its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_events_total",
				Help: "Inbound chat events by kind",
			},
			[]string{"kind"},
		),
		estimatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_estimates_total",
				Help: "Estimate requests by outcome",
			},
			[]string{"outcome", "revision"},
		),
		completionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bot_completion_duration_seconds",
				Help:    "Duration of completion requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		acquisitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_acquisitions_total",
				Help: "Media acquisitions by backend, format and outcome",
			},
			[]string{"backend", "format", "outcome"},
		),
		acquisitionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bot_acquisition_duration_seconds",
				Help:    "Duration of media acquisitions in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"backend", "format"},
		),
		deliveredBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_delivered_bytes_total",
				Help: "Bytes uploaded to users by format",
			},
			[]string{"format"},
		),
		downloadsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_download_flows_total",
				Help: "Download flows that ended, by final state",
			},
			[]string{"state"},
		),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.eventsTotal,
		r.estimatesTotal,
		r.completionDuration,
		r.acquisitionsTotal,
		r.acquisitionDuration,
		r.deliveredBytes,
		r.downloadsFinished,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// IncEvent counts an inbound event.
func (r *Recorder) IncEvent(kind string) {
	if r == nil {
		return
	}
	r.eventsTotal.WithLabelValues(kind).Inc()
}

// ObserveEstimate counts an estimate outcome ("ok", "completion_error", "render_error", "send_error").
func (r *Recorder) ObserveEstimate(outcome string, revision bool) {
	if r == nil {
		return
	}
	rev := "false"
	if revision {
		rev = "true"
	}
	r.estimatesTotal.WithLabelValues(outcome, rev).Inc()
}

// ObserveCompletion records completion latency.
func (r *Recorder) ObserveCompletion(model string, d time.Duration) {
	if r == nil {
		return
	}
	r.completionDuration.WithLabelValues(model).Observe(d.Seconds())
}

// ObserveAcquisition records one acquisition attempt.
func (r *Recorder) ObserveAcquisition(backend, format, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.acquisitionsTotal.WithLabelValues(backend, format, outcome).Inc()
	r.acquisitionDuration.WithLabelValues(backend, format).Observe(d.Seconds())
}

// AddDelivered counts uploaded bytes.
func (r *Recorder) AddDelivered(format string, size int64) {
	if r == nil {
		return
	}
	r.deliveredBytes.WithLabelValues(format).Add(float64(size))
}

// ObserveDownloadFinished counts a download flow that reached a final state.
func (r *Recorder) ObserveDownloadFinished(state string) {
	if r == nil {
		return
	}
	r.downloadsFinished.WithLabelValues(state).Inc()
}
