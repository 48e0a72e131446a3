package policy

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mak100186/push-delivered-queue/backoff"
	"github.com/mak100186/push-delivered-queue/ext"
	"github.com/mak100186/push-delivered-queue/id"
	"github.com/mak100186/push-delivered-queue/message"
	"github.com/mak100186/push-delivered-queue/subscriber"
)

const testRetries = 3

// countingHandler counts receive and failure invocations.
type countingHandler struct {
	receives int32
	failures int32

	receive func(attempt int32) (subscriber.DeliveryResult, error)
	failed  func() (subscriber.FailureBehavior, error)
}

func (h *countingHandler) OnMessageReceive(_ context.Context, _ *message.Envelope, _ id.SubscriberID) (subscriber.DeliveryResult, error) {
	n := atomic.AddInt32(&h.receives, 1)
	return h.receive(n)
}

func (h *countingHandler) OnMessageFailed(_ context.Context, _ *message.Envelope, _ id.SubscriberID, _ error) (subscriber.FailureBehavior, error) {
	atomic.AddInt32(&h.failures, 1)
	return h.failed()
}

func (h *countingHandler) OnDeadLetter(_ context.Context, _ *message.Envelope, _ id.SubscriberID) (subscriber.DeliveryResult, error) {
	return subscriber.Ack, nil
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(
		testRetries,
		backoff.NewConstant(time.Millisecond),
		ext.NewRegistry(slog.Default()),
		slog.Default(),
	)
}

func newCursor(h subscriber.Handler) *subscriber.Cursor {
	return subscriber.New(context.Background(), h)
}

func alwaysNack(int32) (subscriber.DeliveryResult, error) { return subscriber.Nack, nil }

func TestDeliverAckFirstAttempt(t *testing.T) {
	t.Parallel()

	h := &countingHandler{
		receive: func(int32) (subscriber.DeliveryResult, error) { return subscriber.Ack, nil },
		failed:  func() (subscriber.FailureBehavior, error) { return subscriber.Commit, nil },
	}
	cur := newCursor(h)

	dec := newEngine(t).Deliver(context.Background(), message.New("m"), cur)
	if !dec.Advance || dec.DeadLettered {
		t.Fatalf("decision = %+v, want advance without dead letter", dec)
	}
	if h.receives != 1 || h.failures != 0 {
		t.Fatalf("calls = (%d, %d), want (1, 0)", h.receives, h.failures)
	}
}

func TestDeliverAckAfterRetries(t *testing.T) {
	t.Parallel()

	h := &countingHandler{
		receive: func(n int32) (subscriber.DeliveryResult, error) {
			if n < 3 {
				return subscriber.Nack, nil
			}
			return subscriber.Ack, nil
		},
		failed: func() (subscriber.FailureBehavior, error) { return subscriber.Commit, nil },
	}
	cur := newCursor(h)

	dec := newEngine(t).Deliver(context.Background(), message.New("m"), cur)
	if !dec.Advance {
		t.Fatalf("decision = %+v, want advance", dec)
	}
	if h.receives != 3 || h.failures != 0 {
		t.Fatalf("calls = (%d, %d), want (3, 0)", h.receives, h.failures)
	}
}

func TestDeliverErrorEquivalentToNack(t *testing.T) {
	t.Parallel()

	h := &countingHandler{
		receive: func(int32) (subscriber.DeliveryResult, error) {
			return subscriber.Ack, errors.New("boom")
		},
		failed: func() (subscriber.FailureBehavior, error) { return subscriber.Commit, nil },
	}
	cur := newCursor(h)

	dec := newEngine(t).Deliver(context.Background(), message.New("m"), cur)
	if !dec.Advance {
		t.Fatalf("decision = %+v, want advance via Commit", dec)
	}
	if h.receives != 1+testRetries {
		t.Fatalf("receives = %d, want %d", h.receives, 1+testRetries)
	}
	if h.failures != 1 {
		t.Fatalf("failures = %d, want 1", h.failures)
	}
}

func TestDeliverFailureBehaviors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		behavior     subscriber.FailureBehavior
		wantAdvance  bool
		wantDLQ      bool
		wantReceives int32
	}{
		{"commit", subscriber.Commit, true, false, 1 + testRetries},
		{"add to dlq", subscriber.AddToDLQ, true, true, 1 + testRetries},
		{"retry once then commit", subscriber.RetryOnceThenCommit, true, false, 1 + testRetries + 1},
		{"retry once then dlq", subscriber.RetryOnceThenDLQ, true, true, 1 + testRetries + 1},
		{"block", subscriber.Block, false, false, 1 + testRetries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := &countingHandler{
				receive: alwaysNack,
				failed:  func() (subscriber.FailureBehavior, error) { return tt.behavior, nil },
			}
			cur := newCursor(h)
			env := message.New("m")

			dec := newEngine(t).Deliver(context.Background(), env, cur)
			if dec.Advance != tt.wantAdvance || dec.DeadLettered != tt.wantDLQ {
				t.Fatalf("decision = %+v, want advance=%v dlq=%v", dec, tt.wantAdvance, tt.wantDLQ)
			}
			if h.receives != tt.wantReceives {
				t.Fatalf("receives = %d, want %d", h.receives, tt.wantReceives)
			}
			if h.failures != 1 {
				t.Fatalf("failures = %d, want 1", h.failures)
			}

			if tt.wantDLQ {
				if cur.DLQ.Get(env.ID) == nil {
					t.Fatal("envelope missing from DLQ")
				}
			} else if cur.DLQ.Len() != 0 {
				t.Fatalf("DLQ len = %d, want 0", cur.DLQ.Len())
			}
		})
	}
}

func TestDeliverFailureHandlerErrorCommits(t *testing.T) {
	t.Parallel()

	h := &countingHandler{
		receive: alwaysNack,
		failed: func() (subscriber.FailureBehavior, error) {
			return subscriber.Block, errors.New("failure handler broken")
		},
	}
	cur := newCursor(h)

	dec := newEngine(t).Deliver(context.Background(), message.New("m"), cur)
	if !dec.Advance || dec.DeadLettered {
		t.Fatalf("decision = %+v, want plain advance (treat as Commit)", dec)
	}
	if cur.DLQ.Len() != 0 {
		t.Fatalf("DLQ len = %d, want 0", cur.DLQ.Len())
	}
}

func TestDeliverFailureHandlerPanicCommits(t *testing.T) {
	t.Parallel()

	h := &countingHandler{
		receive: alwaysNack,
		failed:  func() (subscriber.FailureBehavior, error) { panic("kaboom") },
	}
	cur := newCursor(h)

	dec := newEngine(t).Deliver(context.Background(), message.New("m"), cur)
	if !dec.Advance || dec.DeadLettered {
		t.Fatalf("decision = %+v, want plain advance (treat as Commit)", dec)
	}
}

func TestDeliverCancelledDuringRetryDelay(t *testing.T) {
	t.Parallel()

	eng := NewEngine(
		testRetries,
		backoff.NewConstant(10*time.Second),
		ext.NewRegistry(slog.Default()),
		slog.Default(),
	)

	h := &countingHandler{
		receive: alwaysNack,
		failed:  func() (subscriber.FailureBehavior, error) { return subscriber.Commit, nil },
	}
	cur := newCursor(h)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	dec := eng.Deliver(ctx, message.New("m"), cur)
	if dec.Advance {
		t.Fatalf("decision = %+v, want no advance on cancellation", dec)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Deliver did not observe cancellation promptly (%v)", elapsed)
	}
	if h.failures != 0 {
		t.Fatalf("failure handler ran %d times after cancellation, want 0", h.failures)
	}
}

func TestReplayDeadLetterAckRemovesEntry(t *testing.T) {
	t.Parallel()

	h := &countingHandler{
		receive: func(int32) (subscriber.DeliveryResult, error) { return subscriber.Ack, nil },
		failed:  func() (subscriber.FailureBehavior, error) { return subscriber.Commit, nil },
	}
	cur := newCursor(h)
	env := message.New("m")
	cur.DLQ.Push(env)

	if !newEngine(t).ReplayDeadLetter(context.Background(), env, cur) {
		t.Fatal("ReplayDeadLetter = false, want true")
	}
	if cur.DLQ.Len() != 0 {
		t.Fatalf("DLQ len = %d, want 0", cur.DLQ.Len())
	}
	if h.receives != 1 {
		t.Fatalf("receives = %d, want 1", h.receives)
	}
}

func TestReplayDeadLetterNackKeepsEntry(t *testing.T) {
	t.Parallel()

	h := &countingHandler{
		receive: alwaysNack,
		failed:  func() (subscriber.FailureBehavior, error) { return subscriber.Commit, nil },
	}
	cur := newCursor(h)
	env := message.New("m")
	cur.DLQ.Push(env)

	if newEngine(t).ReplayDeadLetter(context.Background(), env, cur) {
		t.Fatal("ReplayDeadLetter = true, want false")
	}
	if cur.DLQ.Len() != 1 {
		t.Fatalf("DLQ len = %d, want 1 (entry must remain)", cur.DLQ.Len())
	}
	// The failure surface is mirrored on replay failure.
	if h.failures != 1 {
		t.Fatalf("failures = %d, want 1", h.failures)
	}
	// A single replay attempt, no retry cycle.
	if h.receives != 1 {
		t.Fatalf("receives = %d, want 1", h.receives)
	}
}
