// Package observability provides an extension that records queue-wide
// lifecycle metrics through OpenTelemetry instruments.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/mak100186/push-delivered-queue/ext"
	"github.com/mak100186/push-delivered-queue/id"
	"github.com/mak100186/push-delivered-queue/message"
)

// meterName is the instrumentation scope name for the metrics extension.
const meterName = "github.com/mak100186/push-delivered-queue/observability"

// Compile-time interface checks.
var (
	_ ext.Extension           = (*MetricsExtension)(nil)
	_ ext.MessageEnqueued     = (*MetricsExtension)(nil)
	_ ext.DeliveryAcked       = (*MetricsExtension)(nil)
	_ ext.DeliveryRetrying    = (*MetricsExtension)(nil)
	_ ext.MessageDropped      = (*MetricsExtension)(nil)
	_ ext.MessageDeadLettered = (*MetricsExtension)(nil)
	_ ext.DeadLetterReplayed  = (*MetricsExtension)(nil)
	_ ext.StoreTrimmed        = (*MetricsExtension)(nil)
	_ ext.SubscriberAdded     = (*MetricsExtension)(nil)
	_ ext.SubscriberRemoved   = (*MetricsExtension)(nil)
)

// MetricsExtension counts queue lifecycle events. Register it with the
// queue to track enqueue rates, ack counts, retry counts, drops, dead
// letter traffic, replay outcomes, prune volume, and subscriber churn.
type MetricsExtension struct {
	enqueued     metric.Int64Counter
	acked        metric.Int64Counter
	retried      metric.Int64Counter
	dropped      metric.Int64Counter
	deadLettered metric.Int64Counter
	replayed     metric.Int64Counter
	trimmed      metric.Int64Counter
	subscribed   metric.Int64Counter
	unsubscribed metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. Without a configured provider the instruments are
// noops.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. Use this variant to inject a specific MeterProvider.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}

	// On instrument-creation errors the OTel API returns noop
	// instruments, so the extension degrades gracefully.
	m.enqueued, _ = meter.Int64Counter("queue.message.enqueued",
		metric.WithDescription("Messages appended to the buffer"),
		metric.WithUnit("{message}"))
	m.acked, _ = meter.Int64Counter("queue.delivery.acked",
		metric.WithDescription("Deliveries acknowledged by subscribers"),
		metric.WithUnit("{delivery}"))
	m.retried, _ = meter.Int64Counter("queue.delivery.retried",
		metric.WithDescription("Delivery retries scheduled"),
		metric.WithUnit("{retry}"))
	m.dropped, _ = meter.Int64Counter("queue.message.dropped",
		metric.WithDescription("Messages committed past without acknowledgment"),
		metric.WithUnit("{message}"))
	m.deadLettered, _ = meter.Int64Counter("queue.message.dead_lettered",
		metric.WithDescription("Messages quarantined in dead letter lists"),
		metric.WithUnit("{message}"))
	m.replayed, _ = meter.Int64Counter("queue.dead_letter.replayed",
		metric.WithDescription("Dead letter replay attempts"),
		metric.WithUnit("{replay}"))
	m.trimmed, _ = meter.Int64Counter("queue.store.trimmed",
		metric.WithDescription("Envelopes removed by the TTL pruner"),
		metric.WithUnit("{message}"))
	m.subscribed, _ = meter.Int64Counter("queue.subscriber.added",
		metric.WithDescription("Subscribers added"),
		metric.WithUnit("{subscriber}"))
	m.unsubscribed, _ = meter.Int64Counter("queue.subscriber.removed",
		metric.WithDescription("Subscribers removed"),
		metric.WithUnit("{subscriber}"))

	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnMessageEnqueued implements ext.MessageEnqueued.
func (m *MetricsExtension) OnMessageEnqueued(ctx context.Context, _ *message.Envelope) error {
	m.enqueued.Add(ctx, 1)
	return nil
}

// OnDeliveryAcked implements ext.DeliveryAcked.
func (m *MetricsExtension) OnDeliveryAcked(ctx context.Context, _ *message.Envelope, _ id.SubscriberID, _ time.Duration) error {
	m.acked.Add(ctx, 1)
	return nil
}

// OnDeliveryRetrying implements ext.DeliveryRetrying.
func (m *MetricsExtension) OnDeliveryRetrying(ctx context.Context, _ *message.Envelope, _ id.SubscriberID, _ int, _ time.Duration) error {
	m.retried.Add(ctx, 1)
	return nil
}

// OnMessageDropped implements ext.MessageDropped.
func (m *MetricsExtension) OnMessageDropped(ctx context.Context, _ *message.Envelope, _ id.SubscriberID, _ error) error {
	m.dropped.Add(ctx, 1)
	return nil
}

// OnMessageDeadLettered implements ext.MessageDeadLettered.
func (m *MetricsExtension) OnMessageDeadLettered(ctx context.Context, _ *message.Envelope, _ id.SubscriberID, _ error) error {
	m.deadLettered.Add(ctx, 1)
	return nil
}

// OnDeadLetterReplayed implements ext.DeadLetterReplayed.
func (m *MetricsExtension) OnDeadLetterReplayed(ctx context.Context, _ *message.Envelope, _ id.SubscriberID, _ bool) error {
	m.replayed.Add(ctx, 1)
	return nil
}

// OnStoreTrimmed implements ext.StoreTrimmed.
func (m *MetricsExtension) OnStoreTrimmed(ctx context.Context, removed int) error {
	m.trimmed.Add(ctx, int64(removed))
	return nil
}

// OnSubscriberAdded implements ext.SubscriberAdded.
func (m *MetricsExtension) OnSubscriberAdded(ctx context.Context, _ id.SubscriberID) error {
	m.subscribed.Add(ctx, 1)
	return nil
}

// OnSubscriberRemoved implements ext.SubscriberRemoved.
func (m *MetricsExtension) OnSubscriberRemoved(ctx context.Context, _ id.SubscriberID) error {
	m.unsubscribed.Add(ctx, 1)
	return nil
}
