// Package middleware provides composable middleware for delivery
// attempts. Middleware wraps each OnMessageReceive invocation
// synchronously and can modify execution (recover from panics, log,
// record metrics, add tracing, etc.).
package middleware

import (
	"context"

	"github.com/mak100186/push-delivered-queue/id"
	"github.com/mak100186/push-delivered-queue/message"
	"github.com/mak100186/push-delivered-queue/subscriber"
)

// Delivery describes one delivery attempt of an envelope to a
// subscriber. Attempt is 1-indexed; attempt 1 is the initial delivery.
type Delivery struct {
	Envelope   *message.Envelope
	Subscriber id.SubscriberID
	Attempt    int
}

// Handler is the terminal function that invokes the subscriber's
// receive handler. A non-nil error is equivalent to Nack.
type Handler func(ctx context.Context) (subscriber.DeliveryResult, error)

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the delivery being attempted, and
// the next handler to call. Middleware MUST call next to continue the
// chain (unless short-circuiting).
type Middleware func(ctx context.Context, d *Delivery, next Handler) (subscriber.DeliveryResult, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, metrics) executes as:
//
//	logging → recover → metrics → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, d *Delivery, next Handler) (subscriber.DeliveryResult, error) {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) (subscriber.DeliveryResult, error) {
				return mw(ctx, d, prev)
			}
		}
		return h(ctx)
	}
}
