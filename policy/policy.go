// Package policy implements the retry/fallback engine that wraps every
// delivery: bounded retries on Nack or error, then the subscriber's
// failure handler chooses what happens to the envelope.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mak100186/push-delivered-queue/backoff"
	"github.com/mak100186/push-delivered-queue/ext"
	"github.com/mak100186/push-delivered-queue/message"
	"github.com/mak100186/push-delivered-queue/middleware"
	"github.com/mak100186/push-delivered-queue/subscriber"
)

// Decision is the engine's verdict on an envelope after the full
// delivery cycle. Advance false means the cursor stays in place and
// the dispatch loop re-offers the same envelope (Block, or
// cancellation mid-cycle).
type Decision struct {
	Advance      bool
	DeadLettered bool
}

// Engine runs a single envelope through the delivery attempt cycle:
// at most (1 + retryCount) calls to OnMessageReceive through the
// middleware chain, then the fallback path.
type Engine struct {
	retryCount int
	bo         backoff.Strategy
	mw         middleware.Middleware
	exts       *ext.Registry
	logger     *slog.Logger
}

// NewEngine creates an Engine with the given retry budget, backoff
// strategy, extension registry, and middleware chain.
func NewEngine(
	retryCount int,
	bo backoff.Strategy,
	exts *ext.Registry,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Engine {
	return &Engine{
		retryCount: retryCount,
		bo:         bo,
		mw:         middleware.Chain(mws...),
		exts:       exts,
		logger:     logger,
	}
}

// Deliver runs the full delivery cycle for one envelope.
//
// Each attempt observes one of: Ack (commit immediately), Nack, or an
// error (equivalent to Nack). Between attempts the engine waits the
// backoff delay, observing the cursor's cancellation. Once attempts
// are exhausted the subscriber's failure handler picks a
// FailureBehavior; an error or panic from the failure handler is
// treated as Commit so a buggy failure handler cannot halt the
// subscriber.
func (e *Engine) Deliver(ctx context.Context, env *message.Envelope, cur *subscriber.Cursor) Decision {
	start := time.Now()

	var lastErr error
	maxAttempts := 1 + e.retryCount

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := e.attempt(ctx, env, cur, attempt)
		if err == nil && res == subscriber.Ack {
			e.exts.EmitDeliveryAcked(ctx, env, cur.ID, time.Since(start))
			return Decision{Advance: true}
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		delay := e.bo.Delay(attempt)
		e.exts.EmitDeliveryRetrying(ctx, env, cur.ID, attempt, delay)

		select {
		case <-ctx.Done():
			return Decision{}
		case <-time.After(delay):
		}
	}

	if ctx.Err() != nil {
		return Decision{}
	}

	return e.fallback(ctx, env, cur, lastErr, maxAttempts)
}

// fallback runs the post-exhaustion path: ask the failure handler for
// a behavior and apply it.
func (e *Engine) fallback(ctx context.Context, env *message.Envelope, cur *subscriber.Cursor, lastErr error, attempts int) Decision {
	behavior, fbErr := e.invokeFailureHandler(ctx, env, cur, lastErr)
	if fbErr != nil {
		e.logger.Warn("failure handler errored, committing",
			slog.String("message_id", env.ID.String()),
			slog.String("subscriber_id", cur.ID.String()),
			slog.String("error", fbErr.Error()),
		)
		behavior = subscriber.Commit
	}

	switch behavior {
	case subscriber.AddToDLQ:
		cur.DLQ.Push(env)
		e.exts.EmitMessageDeadLettered(ctx, env, cur.ID, lastErr)
		return Decision{Advance: true, DeadLettered: true}

	case subscriber.RetryOnceThenCommit:
		// One more best-effort attempt; its result is discarded.
		_, _ = e.attempt(ctx, env, cur, attempts+1)
		e.exts.EmitMessageDropped(ctx, env, cur.ID, lastErr)
		return Decision{Advance: true}

	case subscriber.RetryOnceThenDLQ:
		_, _ = e.attempt(ctx, env, cur, attempts+1)
		cur.DLQ.Push(env)
		e.exts.EmitMessageDeadLettered(ctx, env, cur.ID, lastErr)
		return Decision{Advance: true, DeadLettered: true}

	case subscriber.Block:
		e.logger.Debug("subscriber blocked on message",
			slog.String("message_id", env.ID.String()),
			slog.String("subscriber_id", cur.ID.String()),
		)
		return Decision{}

	case subscriber.Commit:
		e.exts.EmitMessageDropped(ctx, env, cur.ID, lastErr)
		return Decision{Advance: true}

	default:
		// Unknown behavior values commit, mirroring the buggy-handler rule.
		e.exts.EmitMessageDropped(ctx, env, cur.ID, lastErr)
		return Decision{Advance: true}
	}
}

// ReplayDeadLetter makes a single delivery attempt for a quarantined
// envelope. On Ack the entry is removed from the cursor's dead letter
// list and the method returns true. On Nack or error the failure
// handler is invoked to mirror the normal failure surface, but the
// entry stays quarantined and the cursor is untouched.
func (e *Engine) ReplayDeadLetter(ctx context.Context, env *message.Envelope, cur *subscriber.Cursor) bool {
	res, err := e.attempt(ctx, env, cur, 1)
	if err == nil && res == subscriber.Ack {
		cur.DLQ.Remove(env.ID)
		e.exts.EmitDeadLetterReplayed(ctx, env, cur.ID, true)
		return true
	}

	if _, fbErr := e.invokeFailureHandler(ctx, env, cur, err); fbErr != nil {
		e.logger.Warn("failure handler errored during dead letter replay",
			slog.String("message_id", env.ID.String()),
			slog.String("subscriber_id", cur.ID.String()),
			slog.String("error", fbErr.Error()),
		)
	}
	e.exts.EmitDeadLetterReplayed(ctx, env, cur.ID, false)
	return false
}

// attempt invokes OnMessageReceive once through the middleware chain.
func (e *Engine) attempt(ctx context.Context, env *message.Envelope, cur *subscriber.Cursor, attempt int) (subscriber.DeliveryResult, error) {
	d := &middleware.Delivery{
		Envelope:   env,
		Subscriber: cur.ID,
		Attempt:    attempt,
	}
	return e.mw(ctx, d, func(ctx context.Context) (subscriber.DeliveryResult, error) {
		return cur.Handler.OnMessageReceive(ctx, env, cur.ID)
	})
}

// invokeFailureHandler calls OnMessageFailed, converting a panic into
// an error so the caller can apply the treat-as-Commit rule.
func (e *Engine) invokeFailureHandler(ctx context.Context, env *message.Envelope, cur *subscriber.Cursor, lastErr error) (behavior subscriber.FailureBehavior, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in failure handler for message %s: %v", env.ID, r)
		}
	}()
	return cur.Handler.OnMessageFailed(ctx, env, cur.ID, lastErr)
}
