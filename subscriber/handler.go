// Package subscriber defines the subscriber capability set — the handler
// contract every subscriber provides — and the Cursor, the per-subscriber
// consumption state in the shared buffer.
package subscriber

import (
	"context"

	"github.com/mak100186/push-delivered-queue/id"
	"github.com/mak100186/push-delivered-queue/message"
)

// DeliveryResult is the outcome of a single delivery attempt.
type DeliveryResult int

const (
	// Nack requests retry, and eventually the fallback path once the
	// retry budget is exhausted. Returning an error from a handler is
	// equivalent to Nack.
	Nack DeliveryResult = iota

	// Ack marks the envelope as handled; the cursor commits past it.
	Ack
)

// String returns a human-readable name for the result.
func (r DeliveryResult) String() string {
	switch r {
	case Ack:
		return "ack"
	case Nack:
		return "nack"
	default:
		return "unknown"
	}
}

// FailureBehavior is the post-failure choice a subscriber makes after
// all delivery attempts for an envelope have been exhausted.
type FailureBehavior int

const (
	// Commit advances the cursor past the envelope without quarantine.
	Commit FailureBehavior = iota

	// AddToDLQ quarantines the envelope in the subscriber's dead letter
	// list, then advances the cursor.
	AddToDLQ

	// RetryOnceThenCommit makes one more best-effort delivery attempt,
	// discards its result, then advances the cursor.
	RetryOnceThenCommit

	// RetryOnceThenDLQ makes one more best-effort delivery attempt,
	// discards its result, quarantines the envelope, then advances.
	RetryOnceThenDLQ

	// Block keeps the cursor in place; the dispatch loop re-offers the
	// same envelope and the whole retry cycle repeats.
	Block
)

// String returns a human-readable name for the behavior.
func (b FailureBehavior) String() string {
	switch b {
	case Commit:
		return "commit"
	case AddToDLQ:
		return "add_to_dlq"
	case RetryOnceThenCommit:
		return "retry_once_then_commit"
	case RetryOnceThenDLQ:
		return "retry_once_then_dlq"
	case Block:
		return "block"
	default:
		return "unknown"
	}
}

// Handler is the capability set a subscriber provides: receive a
// message, choose what happens after delivery fails, and process dead
// letters.
//
// OnMessageReceive must be safe to invoke many times for the same
// envelope. Returning a non-nil error is equivalent to Nack; the error
// is captured and surfaced to OnMessageFailed as the last error.
//
// OnMessageFailed is called only after the retry budget is exhausted.
// Returning a non-nil error (or panicking) is treated as Commit so a
// buggy failure handler cannot halt the subscriber.
//
// OnDeadLetter is reserved for dead-letter sweepers; the dispatch loop
// does not invoke it.
type Handler interface {
	OnMessageReceive(ctx context.Context, env *message.Envelope, sub id.SubscriberID) (DeliveryResult, error)
	OnMessageFailed(ctx context.Context, env *message.Envelope, sub id.SubscriberID, lastErr error) (FailureBehavior, error)
	OnDeadLetter(ctx context.Context, env *message.Envelope, sub id.SubscriberID) (DeliveryResult, error)
}

// HandlerFuncs adapts plain functions to the Handler capability set.
// Nil fields fall back to defaults: Receive Acks, Failed quarantines
// (AddToDLQ), DeadLetter Acks.
type HandlerFuncs struct {
	Receive    func(ctx context.Context, env *message.Envelope, sub id.SubscriberID) (DeliveryResult, error)
	Failed     func(ctx context.Context, env *message.Envelope, sub id.SubscriberID, lastErr error) (FailureBehavior, error)
	DeadLetter func(ctx context.Context, env *message.Envelope, sub id.SubscriberID) (DeliveryResult, error)
}

var _ Handler = HandlerFuncs{}

// OnMessageReceive implements Handler.
func (h HandlerFuncs) OnMessageReceive(ctx context.Context, env *message.Envelope, sub id.SubscriberID) (DeliveryResult, error) {
	if h.Receive == nil {
		return Ack, nil
	}
	return h.Receive(ctx, env, sub)
}

// OnMessageFailed implements Handler.
func (h HandlerFuncs) OnMessageFailed(ctx context.Context, env *message.Envelope, sub id.SubscriberID, lastErr error) (FailureBehavior, error) {
	if h.Failed == nil {
		return AddToDLQ, nil
	}
	return h.Failed(ctx, env, sub, lastErr)
}

// OnDeadLetter implements Handler.
func (h HandlerFuncs) OnDeadLetter(ctx context.Context, env *message.Envelope, sub id.SubscriberID) (DeliveryResult, error) {
	if h.DeadLetter == nil {
		return Ack, nil
	}
	return h.DeadLetter(ctx, env, sub)
}

// ReceiveFunc adapts a bare receive function to the Handler capability
// set. Failed deliveries are quarantined and dead letters are Acked.
type ReceiveFunc func(ctx context.Context, env *message.Envelope, sub id.SubscriberID) (DeliveryResult, error)

var _ Handler = ReceiveFunc(nil)

// OnMessageReceive implements Handler.
func (f ReceiveFunc) OnMessageReceive(ctx context.Context, env *message.Envelope, sub id.SubscriberID) (DeliveryResult, error) {
	return f(ctx, env, sub)
}

// OnMessageFailed implements Handler by quarantining the envelope.
func (f ReceiveFunc) OnMessageFailed(_ context.Context, _ *message.Envelope, _ id.SubscriberID, _ error) (FailureBehavior, error) {
	return AddToDLQ, nil
}

// OnDeadLetter implements Handler by acknowledging the envelope.
func (f ReceiveFunc) OnDeadLetter(_ context.Context, _ *message.Envelope, _ id.SubscriberID) (DeliveryResult, error) {
	return Ack, nil
}
