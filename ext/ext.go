// Package ext defines the extension system for the queue.
// Extensions are notified of lifecycle events (message enqueued,
// delivery acked, envelope dead-lettered, etc.) and can react to them —
// logging, metrics, tracing, auditing.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/mak100186/push-delivered-queue/id"
	"github.com/mak100186/push-delivered-queue/message"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Message lifecycle hooks
// ──────────────────────────────────────────────────

// MessageEnqueued is called after an envelope is appended to the buffer.
type MessageEnqueued interface {
	OnMessageEnqueued(ctx context.Context, env *message.Envelope) error
}

// DeliveryAcked is called when a subscriber acknowledges an envelope.
type DeliveryAcked interface {
	OnDeliveryAcked(ctx context.Context, env *message.Envelope, sub id.SubscriberID, elapsed time.Duration) error
}

// DeliveryRetrying is called when a delivery attempt fails and a retry
// is scheduled.
type DeliveryRetrying interface {
	OnDeliveryRetrying(ctx context.Context, env *message.Envelope, sub id.SubscriberID, attempt int, delay time.Duration) error
}

// MessageDropped is called when a subscriber commits past an envelope
// it never acknowledged (failure behavior Commit, or a failure handler
// that errored).
type MessageDropped interface {
	OnMessageDropped(ctx context.Context, env *message.Envelope, sub id.SubscriberID, lastErr error) error
}

// MessageDeadLettered is called when an envelope is quarantined in a
// subscriber's dead letter list.
type MessageDeadLettered interface {
	OnMessageDeadLettered(ctx context.Context, env *message.Envelope, sub id.SubscriberID, lastErr error) error
}

// DeadLetterReplayed is called after a dead letter replay attempt.
type DeadLetterReplayed interface {
	OnDeadLetterReplayed(ctx context.Context, env *message.Envelope, sub id.SubscriberID, acked bool) error
}

// ──────────────────────────────────────────────────
// Store and subscriber lifecycle hooks
// ──────────────────────────────────────────────────

// StoreTrimmed is called when the TTL pruner removes expired envelopes.
type StoreTrimmed interface {
	OnStoreTrimmed(ctx context.Context, removed int) error
}

// SubscriberAdded is called after a subscriber joins the queue.
type SubscriberAdded interface {
	OnSubscriberAdded(ctx context.Context, sub id.SubscriberID) error
}

// SubscriberRemoved is called after a subscriber leaves the queue.
type SubscriberRemoved interface {
	OnSubscriberRemoved(ctx context.Context, sub id.SubscriberID) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
