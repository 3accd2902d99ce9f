package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviewtool", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reviewtool", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	SourceRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviewtool", Name: "source_requests_total", Help: "Outbound source page fetches."},
		[]string{"source", "status"},
	)
	SourceLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reviewtool", Name: "source_request_duration_seconds",
			Help:    "Outbound source fetch duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	Records = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviewtool", Name: "records_total", Help: "Records by pipeline outcome."},
		[]string{"stage", "outcome"}, // stage: scrape|import|transform; outcome: ok|skipped|duplicate|failed
	)
	CheckpointEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviewtool", Name: "checkpoint_events_total", Help: "Checkpoint store hits/misses/sets/clears."},
		[]string{"store", "event"},
	)
)

// Serve starts the standalone metrics endpoint when addr is set, exposing
// the collectors registered in reg.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, SourceRequests, SourceLatency, Records, CheckpointEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveSource(source string, status int, dur time.Duration) {
	SourceRequests.WithLabelValues(source, strconv.Itoa(status)).Inc()
	SourceLatency.WithLabelValues(source).Observe(dur.Seconds())
}

func ObserveRecords(stage, outcome string, n int) {
	if n > 0 {
		Records.WithLabelValues(stage, outcome).Add(float64(n))
	}
}

func ObserveCheckpoint(store, event string) { // event: hit|miss|set|clear
	CheckpointEvents.WithLabelValues(store, event).Inc()
}
