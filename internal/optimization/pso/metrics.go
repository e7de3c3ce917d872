package pso

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/copyleftdev/swarmopt/internal/optimization"
)

var tracer = otel.Tracer("swarmopt.pso")

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarmopt_runs_total",
		Help: "Finished optimization runs by variant and final state",
	}, []string{"variant", "state"})

	iterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarmopt_iterations_total",
		Help: "Completed swarm iterations by variant",
	}, []string{"variant"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swarmopt_run_duration_seconds",
		Help:    "Wall time of one Optimize call",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"variant"})

	activeRuns = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "swarmopt_active_runs",
		Help: "Optimize calls currently in progress",
	}, []string{"variant"})
)

func startRunSpan(ctx context.Context, variant string, particles, dimensions, iters int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pso.Optimize",
		trace.WithAttributes(
			attribute.String("pso.variant", variant),
			attribute.Int("pso.particles", particles),
			attribute.Int("pso.dimensions", dimensions),
			attribute.Int("pso.iters", iters),
		),
	)
}

func endRunSpan(span trace.Span, res *optimization.OptimizationResult, err error) {
	if res != nil {
		span.SetAttributes(
			attribute.Int("pso.iterations", res.Iterations),
			attribute.String("pso.state", res.State.String()),
		)
		if res.BestSolution != nil {
			span.SetAttributes(attribute.Float64("pso.best_cost", res.BestSolution.Value))
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
