// Package metrics provides Prometheus metrics for the agent loop
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agentloop/internal/logger"
)

// Registry holds every agentloop collector. It is separate from the default
// registry so tests and embedders get a clean set.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	TurnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentloop_turns_total",
			Help: "Total number of agent turns by outcome",
		},
		[]string{"outcome"},
	)

	IterationsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "agentloop_iterations_total",
			Help: "Total number of Think/Act/Observe iterations",
		},
	)

	ToolCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentloop_tool_calls_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"},
	)

	ToolCacheHitsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "agentloop_tool_cache_hits_total",
			Help: "Tool executions served from the result cache",
		},
	)

	LLMRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentloop_llm_request_duration_seconds",
			Help:    "Duration of completion requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	BatchQueriesInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentloop_batch_queries_in_flight",
			Help: "Number of batch queries currently being processed",
		},
	)
)

// ObserveLLM records a completion request duration.
func ObserveLLM(start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	LLMRequestDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
