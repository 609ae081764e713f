package observer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// StartRetrieval opens a span covering one retrieval pipeline run. The
// returned finish function records duration, surviving hit count, and
// whether the quality gate discarded the evidence.
func (inst *Instruments) StartRetrieval(ctx context.Context, route string) (context.Context, func(hits int, gated bool)) {
	ctx, span := inst.Tracer.Start(ctx, "retrieval.pipeline", trace.WithAttributes(
		AttrRoute.String(route),
	))
	start := time.Now()

	return ctx, func(hits int, gated bool) {
		defer span.End()
		durationMs := float64(time.Since(start).Milliseconds())

		span.SetAttributes(
			AttrRetrievalHits.Int(hits),
			AttrRetrievalGated.Bool(gated),
		)

		inst.RetrievalRequests.Add(ctx, 1, metric.WithAttributes(
			AttrRoute.String(route),
			attribute.Bool("gated", gated),
		))
		inst.RetrievalDuration.Record(ctx, durationMs, metric.WithAttributes(
			AttrRoute.String(route),
		))
		inst.RetrievalHits.Record(ctx, int64(hits), metric.WithAttributes(
			AttrRoute.String(route),
		))
	}
}
