package metrics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_uploads_total",
		Help: "Portfolio uploads by outcome.",
	}, []string{"outcome"})

	dispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_dispatch_total",
		Help: "Analysis webhook dispatches by outcome.",
	}, []string{"outcome"})

	resultsWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "results_writes_total",
		Help: "Results document writes by source.",
	}, []string{"source"})

	resultsSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "results_subscribers",
		Help: "Open results subscriptions.",
	})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		uploadsTotal,
		dispatchTotal,
		resultsWritesTotal,
		resultsSubscribers,
		requestDuration,
	)
}

// Upload outcomes.
const (
	OutcomeStored   = "stored"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Dispatch outcomes.
const (
	DispatchSent    = "sent"
	DispatchSkipped = "skipped"
	DispatchFailed  = "failed"
)

// IncUpload counts an upload attempt.
func IncUpload(outcome string) {
	uploadsTotal.WithLabelValues(outcome).Inc()
}

// IncDispatch counts a webhook dispatch attempt.
func IncDispatch(outcome string) {
	dispatchTotal.WithLabelValues(outcome).Inc()
}

// IncResultsWrite counts a results document write. source is "ingest" or "simulate".
func IncResultsWrite(source string) {
	resultsWritesTotal.WithLabelValues(source).Inc()
}

// SubscriberOpened tracks a new results subscription.
func SubscriberOpened() { resultsSubscribers.Inc() }

// SubscriberClosed tracks a closed results subscription.
func SubscriberClosed() { resultsSubscribers.Dec() }

// ObserveRequest records one HTTP request.
func ObserveRequest(method, route, status string, seconds float64) {
	requestDuration.WithLabelValues(method, route, status).Observe(seconds)
}

// Registry exposes the private registry for tests and extra collectors.
func Registry() *prometheus.Registry {
	return registry
}

// HTTPHandler exposes metrics in Prometheus text format.
func HTTPHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// Handler is HTTPHandler for gin routers.
func Handler() gin.HandlerFunc {
	return gin.WrapH(HTTPHandler())
}
