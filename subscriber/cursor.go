package subscriber

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/mak100186/push-delivered-queue/dlq"
	"github.com/mak100186/push-delivered-queue/id"
)

// Cursor is a subscriber's consumption state: its position in the
// shared buffer, its commit flag, its handler, its dead letter list,
// and its cancellation signal.
//
// Index and Committed are guarded by the store lock; all reads and
// writes go through store.Log methods. Index is the 0-based offset of
// the next envelope to deliver; Index == store size means caught up.
// Committed is false while a delivery is in flight and becomes true
// again when the cursor advances.
type Cursor struct {
	ID      id.SubscriberID
	Handler Handler

	Index     int
	Committed bool

	// DLQ carries its own lock: the dispatch loop appends on failure
	// while replay operations read and remove.
	DLQ *dlq.List

	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc
}

// Option configures a Cursor at subscribe time.
type Option func(*Cursor)

// WithRateLimit caps sustained deliveries to this subscriber at
// perSecond envelopes per second with the given burst (token bucket).
// A burst below 1 is raised to 1.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Cursor) {
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// New creates a cursor for the given handler with a fresh subscriber
// ID. The cursor's cancellation signal is derived from parent, so
// cancelling parent (queue shutdown) also cancels the cursor.
//
// A fresh cursor starts at the head of the buffer with Committed true:
// it has no delivery in flight and will consume every envelope
// currently buffered.
func New(parent context.Context, h Handler, opts ...Option) *Cursor {
	ctx, cancel := context.WithCancel(parent)
	c := &Cursor{
		ID:        id.NewSubscriberID(),
		Handler:   h,
		Committed: true,
		DLQ:       dlq.NewList(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Context returns the cursor's cancellation context. Handler
// invocations and retry delays observe it.
func (c *Cursor) Context() context.Context { return c.ctx }

// Done returns the cursor's cancellation channel.
func (c *Cursor) Done() <-chan struct{} { return c.ctx.Done() }

// Cancel signals the cursor's dispatch loop and any in-flight handler
// to stop. It releases the derived context; the queue invokes it on
// Unsubscribe. Queue shutdown cancels the parent context instead, which
// cancels the cursor as well.
func (c *Cursor) Cancel() { c.cancel() }

// WaitRate blocks until the subscriber's rate limiter permits the next
// delivery, or ctx is cancelled. It is a no-op without a rate limit.
func (c *Cursor) WaitRate(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
