package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mak100186/push-delivered-queue/subscriber"
)

// tracerName is the instrumentation scope name for queue tracing.
const tracerName = "github.com/mak100186/push-delivered-queue"

// Tracing returns middleware that wraps each delivery attempt in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a
// pass-through with zero overhead.
//
// Span attributes include: queue.message.id, queue.subscriber.id,
// queue.delivery.attempt. An errored or nacked attempt sets the span
// status to codes.Error.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided
// tracer. This variant allows injecting a specific TracerProvider for
// testing or when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, d *Delivery, next Handler) (subscriber.DeliveryResult, error) {
		ctx, span := tracer.Start(ctx, "queue.message.deliver",
			trace.WithAttributes(
				attribute.String("queue.message.id", d.Envelope.ID.String()),
				attribute.String("queue.subscriber.id", d.Subscriber.String()),
				attribute.Int("queue.delivery.attempt", d.Attempt),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		res, err := next(ctx)
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case res != subscriber.Ack:
			span.SetStatus(codes.Error, "nack")
		default:
			span.SetStatus(codes.Ok, "")
		}

		return res, err
	}
}
