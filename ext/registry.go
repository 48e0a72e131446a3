package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/mak100186/push-delivered-queue/id"
	"github.com/mak100186/push-delivered-queue/message"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type messageEnqueuedEntry struct {
	name string
	hook MessageEnqueued
}

type deliveryAckedEntry struct {
	name string
	hook DeliveryAcked
}

type deliveryRetryingEntry struct {
	name string
	hook DeliveryRetrying
}

type messageDroppedEntry struct {
	name string
	hook MessageDropped
}

type messageDeadLetteredEntry struct {
	name string
	hook MessageDeadLettered
}

type deadLetterReplayedEntry struct {
	name string
	hook DeadLetterReplayed
}

type storeTrimmedEntry struct {
	name string
	hook StoreTrimmed
}

type subscriberAddedEntry struct {
	name string
	hook SubscriberAdded
}

type subscriberRemovedEntry struct {
	name string
	hook SubscriberRemoved
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
// Registration happens before the queue starts; emits may come from any
// dispatch loop.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	messageEnqueued     []messageEnqueuedEntry
	deliveryAcked       []deliveryAckedEntry
	deliveryRetrying    []deliveryRetryingEntry
	messageDropped      []messageDroppedEntry
	messageDeadLettered []messageDeadLetteredEntry
	deadLetterReplayed  []deadLetterReplayedEntry
	storeTrimmed        []storeTrimmedEntry
	subscriberAdded     []subscriberAddedEntry
	subscriberRemoved   []subscriberRemovedEntry
	shutdown            []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(MessageEnqueued); ok {
		r.messageEnqueued = append(r.messageEnqueued, messageEnqueuedEntry{name, h})
	}
	if h, ok := e.(DeliveryAcked); ok {
		r.deliveryAcked = append(r.deliveryAcked, deliveryAckedEntry{name, h})
	}
	if h, ok := e.(DeliveryRetrying); ok {
		r.deliveryRetrying = append(r.deliveryRetrying, deliveryRetryingEntry{name, h})
	}
	if h, ok := e.(MessageDropped); ok {
		r.messageDropped = append(r.messageDropped, messageDroppedEntry{name, h})
	}
	if h, ok := e.(MessageDeadLettered); ok {
		r.messageDeadLettered = append(r.messageDeadLettered, messageDeadLetteredEntry{name, h})
	}
	if h, ok := e.(DeadLetterReplayed); ok {
		r.deadLetterReplayed = append(r.deadLetterReplayed, deadLetterReplayedEntry{name, h})
	}
	if h, ok := e.(StoreTrimmed); ok {
		r.storeTrimmed = append(r.storeTrimmed, storeTrimmedEntry{name, h})
	}
	if h, ok := e.(SubscriberAdded); ok {
		r.subscriberAdded = append(r.subscriberAdded, subscriberAddedEntry{name, h})
	}
	if h, ok := e.(SubscriberRemoved); ok {
		r.subscriberRemoved = append(r.subscriberRemoved, subscriberRemovedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns the registered extensions in registration order.
func (r *Registry) Extensions() []Extension {
	return r.extensions
}

// logHookErr logs a hook error without propagating it. Extension
// failures never affect dispatch.
func (r *Registry) logHookErr(hook, name string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", name),
		slog.String("error", err.Error()),
	)
}

// EmitMessageEnqueued notifies MessageEnqueued hooks.
func (r *Registry) EmitMessageEnqueued(ctx context.Context, env *message.Envelope) {
	for _, e := range r.messageEnqueued {
		if err := e.hook.OnMessageEnqueued(ctx, env); err != nil {
			r.logHookErr("message_enqueued", e.name, err)
		}
	}
}

// EmitDeliveryAcked notifies DeliveryAcked hooks.
func (r *Registry) EmitDeliveryAcked(ctx context.Context, env *message.Envelope, sub id.SubscriberID, elapsed time.Duration) {
	for _, e := range r.deliveryAcked {
		if err := e.hook.OnDeliveryAcked(ctx, env, sub, elapsed); err != nil {
			r.logHookErr("delivery_acked", e.name, err)
		}
	}
}

// EmitDeliveryRetrying notifies DeliveryRetrying hooks.
func (r *Registry) EmitDeliveryRetrying(ctx context.Context, env *message.Envelope, sub id.SubscriberID, attempt int, delay time.Duration) {
	for _, e := range r.deliveryRetrying {
		if err := e.hook.OnDeliveryRetrying(ctx, env, sub, attempt, delay); err != nil {
			r.logHookErr("delivery_retrying", e.name, err)
		}
	}
}

// EmitMessageDropped notifies MessageDropped hooks.
func (r *Registry) EmitMessageDropped(ctx context.Context, env *message.Envelope, sub id.SubscriberID, lastErr error) {
	for _, e := range r.messageDropped {
		if err := e.hook.OnMessageDropped(ctx, env, sub, lastErr); err != nil {
			r.logHookErr("message_dropped", e.name, err)
		}
	}
}

// EmitMessageDeadLettered notifies MessageDeadLettered hooks.
func (r *Registry) EmitMessageDeadLettered(ctx context.Context, env *message.Envelope, sub id.SubscriberID, lastErr error) {
	for _, e := range r.messageDeadLettered {
		if err := e.hook.OnMessageDeadLettered(ctx, env, sub, lastErr); err != nil {
			r.logHookErr("message_dead_lettered", e.name, err)
		}
	}
}

// EmitDeadLetterReplayed notifies DeadLetterReplayed hooks.
func (r *Registry) EmitDeadLetterReplayed(ctx context.Context, env *message.Envelope, sub id.SubscriberID, acked bool) {
	for _, e := range r.deadLetterReplayed {
		if err := e.hook.OnDeadLetterReplayed(ctx, env, sub, acked); err != nil {
			r.logHookErr("dead_letter_replayed", e.name, err)
		}
	}
}

// EmitStoreTrimmed notifies StoreTrimmed hooks.
func (r *Registry) EmitStoreTrimmed(ctx context.Context, removed int) {
	for _, e := range r.storeTrimmed {
		if err := e.hook.OnStoreTrimmed(ctx, removed); err != nil {
			r.logHookErr("store_trimmed", e.name, err)
		}
	}
}

// EmitSubscriberAdded notifies SubscriberAdded hooks.
func (r *Registry) EmitSubscriberAdded(ctx context.Context, sub id.SubscriberID) {
	for _, e := range r.subscriberAdded {
		if err := e.hook.OnSubscriberAdded(ctx, sub); err != nil {
			r.logHookErr("subscriber_added", e.name, err)
		}
	}
}

// EmitSubscriberRemoved notifies SubscriberRemoved hooks.
func (r *Registry) EmitSubscriberRemoved(ctx context.Context, sub id.SubscriberID) {
	for _, e := range r.subscriberRemoved {
		if err := e.hook.OnSubscriberRemoved(ctx, sub); err != nil {
			r.logHookErr("subscriber_removed", e.name, err)
		}
	}
}

// EmitShutdown notifies Shutdown hooks.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookErr("shutdown", e.name, err)
		}
	}
}
