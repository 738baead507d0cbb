// Package telemetry carries the tracing and metrics surface for the research
// service. Spans go through the global OpenTelemetry tracer provider; counters
// are Prometheus collectors served on /metrics.
package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/saptiva-ai/alethia-deepresearch"

// StartSpan opens a span named name on the service tracer. The returned
// context carries the span; callers must End it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

var (
	// RunsTotal counts finished research runs by kind and outcome.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aletheia_runs_total",
		Help: "Finished research runs by kind and status.",
	}, []string{"kind", "status"})

	// IterationsTotal counts completed deep-research iterations.
	IterationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aletheia_iterations_total",
		Help: "Completed deep research iterations.",
	})

	// EvidenceTotal counts evidence candidates by disposition: accepted,
	// duplicate, or guarded (rejected at ingest).
	EvidenceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aletheia_evidence_total",
		Help: "Evidence candidates by ingest disposition.",
	}, []string{"disposition"})

	// SearchFailuresTotal counts sub-query searches that failed and were
	// isolated.
	SearchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aletheia_search_failures_total",
		Help: "Sub-query searches that failed.",
	})
)

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
