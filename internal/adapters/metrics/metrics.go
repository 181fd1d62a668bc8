package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of the service. Each instance owns its
// registry so tests can build as many as they need.
type Metrics struct {
	registry        *prometheus.Registry
	submissions     *prometheus.CounterVec
	summaries       *prometheus.CounterVec
	feedEvents      *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classvote",
			Name:      "submissions_total",
			Help:      "Submissions stored, by vote type.",
		}, []string{"vote_type"}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classvote",
			Name:      "summaries_total",
			Help:      "AI summaries requested, by outcome.",
		}, []string{"outcome"}),
		feedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classvote",
			Name:      "feed_events_total",
			Help:      "Change feed events applied to the mirror, by collection.",
		}, []string{"collection"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "classvote",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.submissions,
		m.summaries,
		m.feedEvents,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) SubmissionStored(voteType string) {
	m.submissions.WithLabelValues(voteType).Inc()
}

func (m *Metrics) SummaryDone(outcome string) {
	m.summaries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) FeedEvent(collection string) {
	m.feedEvents.WithLabelValues(collection).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records latency per chi route pattern, so ids in paths do not
// explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.requestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}
