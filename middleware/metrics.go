package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mak100186/push-delivered-queue/subscriber"
)

// meterName is the instrumentation scope name for queue metrics.
const meterName = "github.com/mak100186/push-delivered-queue"

// Metrics returns middleware that records per-attempt delivery metrics
// using the global OTel MeterProvider. If no MeterProvider is
// configured, noop instruments are used and this middleware becomes a
// pass-through.
//
// Instruments:
//   - queue.delivery.duration (Float64Histogram): attempt time in
//     seconds, with attributes: subscriber_id, status ("ack", "nack" or
//     "error")
//   - queue.delivery.attempts (Int64Counter): total attempts, with
//     attributes: subscriber_id, status ("ack", "nack" or "error")
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"queue.delivery.duration",
		metric.WithDescription("Duration of a delivery attempt in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	attempts, aErr := meter.Int64Counter(
		"queue.delivery.attempts",
		metric.WithDescription("Total number of delivery attempts"),
		metric.WithUnit("{attempt}"),
	)
	_ = aErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, d *Delivery, next Handler) (subscriber.DeliveryResult, error) {
		start := time.Now()
		res, err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ack"
		switch {
		case err != nil:
			status = "error"
		case res != subscriber.Ack:
			status = "nack"
		}

		attrs := metric.WithAttributes(
			attribute.String("subscriber_id", d.Subscriber.String()),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		attempts.Add(ctx, 1, attrs)

		return res, err
	}
}
