package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	served    *prometheus.CounterVec
	ingested  *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	throttled prometheus.Counter
}

// newMetrics registers on a private registry so several servers (tests) can
// coexist in one process.
func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "secwatch_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "secwatch_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		served: f.NewCounterVec(prometheus.CounterOpts{
			Name: "secwatch_records_served_total",
			Help: "Records returned by collection endpoints.",
		}, []string{"kind"}),
		ingested: f.NewCounterVec(prometheus.CounterOpts{
			Name: "secwatch_records_ingested_total",
			Help: "Records stored through POST /ingest.",
		}, []string{"kind"}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "secwatch_records_skipped_total",
			Help: "Ingested records dropped for lacking a timestamp.",
		}, []string{"kind"}),
		throttled: f.NewCounter(prometheus.CounterOpts{
			Name: "secwatch_http_throttled_total",
			Help: "Requests rejected by the rate limiter.",
		}),
	}
}
