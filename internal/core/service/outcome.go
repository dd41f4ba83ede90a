package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-reservation/internal/core/domain"
	"github.com/rl1809/inventory-reservation/internal/observability"
)

// outcomeOf maps an operation result to a low-cardinality metric label.
// Business outcomes are expected and are not span errors.
func outcomeOf(err error) (outcome string, expected bool) {
	switch {
	case err == nil:
		return "success", true
	case errors.Is(err, domain.ErrValidation):
		return "invalid", true
	case errors.Is(err, domain.ErrNotFound):
		return "not_found", true
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock", true
	case errors.Is(err, domain.ErrWouldGoNegative):
		return "would_go_negative", true
	case errors.Is(err, domain.ErrPaymentUnavailable):
		return "payment_unavailable", true
	case errors.Is(err, domain.ErrDuplicateTransaction):
		return "duplicate", true
	default:
		return "error", false
	}
}

// finish closes the span and records metrics and the completion log line for
// one orchestrator call.
func finish(ctx context.Context, o options, span trace.Span, op string, start time.Time, err error, fields ...zap.Field) {
	outcome, expected := outcomeOf(err)
	latency := time.Since(start)

	span.SetAttributes(attribute.String("outcome", outcome))
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, outcome)
	case !expected:
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.End()

	o.metrics.Operations.WithLabelValues(op, outcome).Inc()
	o.metrics.OperationDuration.WithLabelValues(op).Observe(latency.Seconds())

	fields = append(fields,
		zap.String("operation", op),
		zap.String("outcome", outcome),
		zap.Duration("latency", latency),
	)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	log := observability.LoggerFrom(ctx, o.log)
	switch {
	case err == nil:
		log.Info(op+"_done", fields...)
	case expected:
		log.Info(op+"_rejected", append(fields, zap.Error(err))...)
	default:
		log.Error(op+"_failed", append(fields, zap.Error(err))...)
	}
}

// publish emits ev after the key's lock has been released. Failures are logged
// and never change the operation's result.
func publish(ctx context.Context, o options, ev domain.StockEvent) {
	if o.events == nil {
		return
	}
	if err := o.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		observability.LoggerFrom(ctx, o.log).Warn("stock_event_publish_failed",
			zap.String("type", string(ev.Type)),
			zap.String("product_id", ev.ProductID),
			zap.String("location_id", ev.LocationID),
			zap.Error(err),
		)
	}
}
