// Package metrics exposes the instrumentation sink on Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements the Metrics port on a Prometheus registry.
type Recorder struct {
	handlerDuration    *prometheus.HistogramVec
	analysisDuration   *prometheus.HistogramVec
	suggestionsServed  *prometheus.CounterVec
	notificationsSent  *prometheus.CounterVec
	chatStreamDuration *prometheus.HistogramVec
}

// NewRecorder registers the collectors on the given registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		handlerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nutrisnap",
			Name:      "handler_duration_seconds",
			Help:      "Command and query handler latency by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler", "outcome"}),
		analysisDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nutrisnap",
			Name:      "meal_analysis_duration_seconds",
			Help:      "End to end meal analysis latency by strategy and outcome.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 90},
		}, []string{"strategy", "outcome"}),
		suggestionsServed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nutrisnap",
			Name:      "suggestions_served_total",
			Help:      "Suggestions served by source (model or fallback).",
		}, []string{"source"}),
		notificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nutrisnap",
			Name:      "notifications_dispatched_total",
			Help:      "Notification deliveries by category and outcome.",
		}, []string{"category", "outcome"}),
		chatStreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nutrisnap",
			Name:      "chat_stream_duration_seconds",
			Help:      "Chat stream duration by outcome.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
	}
}

func (r *Recorder) HandlerExecuted(name, outcome string, duration time.Duration) {
	r.handlerDuration.WithLabelValues(name, outcome).Observe(duration.Seconds())
}

func (r *Recorder) AnalysisFinished(strategy, outcome string, duration time.Duration) {
	r.analysisDuration.WithLabelValues(strategy, outcome).Observe(duration.Seconds())
}

func (r *Recorder) SuggestionServed(source string) {
	r.suggestionsServed.WithLabelValues(source).Inc()
}

func (r *Recorder) NotificationDispatched(category, outcome string) {
	r.notificationsSent.WithLabelValues(category, outcome).Inc()
}

func (r *Recorder) ChatStreamFinished(outcome string, duration time.Duration) {
	r.chatStreamDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}
