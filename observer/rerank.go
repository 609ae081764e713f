package observer

import (
	"context"
	"time"

	paperbase "github.com/dqviet/paperbase"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedReranker wraps a paperbase.RerankProvider with OTEL
// instrumentation.
type ObservedReranker struct {
	inner paperbase.RerankProvider
	inst  *Instruments
	model string
}

// WrapReranker returns an instrumented reranker.
func WrapReranker(inner paperbase.RerankProvider, model string, inst *Instruments) *ObservedReranker {
	return &ObservedReranker{inner: inner, inst: inst, model: model}
}

func (o *ObservedReranker) Name() string { return o.inner.Name() }

func (o *ObservedReranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "rerank.score", trace.WithAttributes(
		AttrLLMModel.String(o.model),
		AttrLLMProvider.String(o.inner.Name()),
		AttrRerankPassages.Int(len(passages)),
	))
	defer span.End()
	start := time.Now()

	scores, err := o.inner.Score(ctx, query, passages)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	o.inst.RerankRequests.Add(ctx, 1, metric.WithAttributes(
		AttrLLMModel.String(o.model),
		AttrLLMProvider.String(o.inner.Name()),
		attribute.String("status", status),
	))
	o.inst.RerankDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrLLMModel.String(o.model),
		AttrLLMProvider.String(o.inner.Name()),
	))

	return scores, err
}

// Compile-time interface check.
var _ paperbase.RerankProvider = (*ObservedReranker)(nil)
