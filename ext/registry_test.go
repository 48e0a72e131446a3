package ext

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mak100186/push-delivered-queue/id"
	"github.com/mak100186/push-delivered-queue/message"
)

// recorder implements every hook and counts invocations.
type recorder struct {
	enqueued     int
	acked        int
	retrying     int
	dropped      int
	deadLettered int
	replayed     int
	trimmed      int
	added        int
	removed      int
	shutdown     int

	err error
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnMessageEnqueued(context.Context, *message.Envelope) error {
	r.enqueued++
	return r.err
}

func (r *recorder) OnDeliveryAcked(context.Context, *message.Envelope, id.SubscriberID, time.Duration) error {
	r.acked++
	return r.err
}

func (r *recorder) OnDeliveryRetrying(context.Context, *message.Envelope, id.SubscriberID, int, time.Duration) error {
	r.retrying++
	return r.err
}

func (r *recorder) OnMessageDropped(context.Context, *message.Envelope, id.SubscriberID, error) error {
	r.dropped++
	return r.err
}

func (r *recorder) OnMessageDeadLettered(context.Context, *message.Envelope, id.SubscriberID, error) error {
	r.deadLettered++
	return r.err
}

func (r *recorder) OnDeadLetterReplayed(context.Context, *message.Envelope, id.SubscriberID, bool) error {
	r.replayed++
	return r.err
}

func (r *recorder) OnStoreTrimmed(context.Context, int) error {
	r.trimmed++
	return r.err
}

func (r *recorder) OnSubscriberAdded(context.Context, id.SubscriberID) error {
	r.added++
	return r.err
}

func (r *recorder) OnSubscriberRemoved(context.Context, id.SubscriberID) error {
	r.removed++
	return r.err
}

func (r *recorder) OnShutdown(context.Context) error {
	r.shutdown++
	return r.err
}

// ackOnly implements a single hook to verify type caching.
type ackOnly struct {
	acked int
}

func (a *ackOnly) Name() string { return "ack-only" }

func (a *ackOnly) OnDeliveryAcked(context.Context, *message.Envelope, id.SubscriberID, time.Duration) error {
	a.acked++
	return nil
}

func emitAll(r *Registry) {
	ctx := context.Background()
	env := message.New("m")
	sub := id.NewSubscriberID()

	r.EmitMessageEnqueued(ctx, env)
	r.EmitDeliveryAcked(ctx, env, sub, time.Millisecond)
	r.EmitDeliveryRetrying(ctx, env, sub, 1, time.Millisecond)
	r.EmitMessageDropped(ctx, env, sub, nil)
	r.EmitMessageDeadLettered(ctx, env, sub, errors.New("boom"))
	r.EmitDeadLetterReplayed(ctx, env, sub, true)
	r.EmitStoreTrimmed(ctx, 3)
	r.EmitSubscriberAdded(ctx, sub)
	r.EmitSubscriberRemoved(ctx, sub)
	r.EmitShutdown(ctx)
}

func TestRegistryDispatchesAllHooks(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	reg := NewRegistry(slog.Default())
	reg.Register(rec)

	emitAll(reg)

	counts := map[string]int{
		"enqueued":     rec.enqueued,
		"acked":        rec.acked,
		"retrying":     rec.retrying,
		"dropped":      rec.dropped,
		"deadLettered": rec.deadLettered,
		"replayed":     rec.replayed,
		"trimmed":      rec.trimmed,
		"added":        rec.added,
		"removed":      rec.removed,
		"shutdown":     rec.shutdown,
	}
	for hook, n := range counts {
		if n != 1 {
			t.Fatalf("hook %s fired %d times, want 1", hook, n)
		}
	}
}

func TestRegistryTypeCaching(t *testing.T) {
	t.Parallel()

	a := &ackOnly{}
	reg := NewRegistry(slog.Default())
	reg.Register(a)

	emitAll(reg)

	if a.acked != 1 {
		t.Fatalf("acked = %d, want 1", a.acked)
	}
	if got := len(reg.Extensions()); got != 1 {
		t.Fatalf("Extensions() len = %d, want 1", got)
	}
}

func TestRegistryAbsorbsHookErrors(t *testing.T) {
	t.Parallel()

	rec := &recorder{err: errors.New("hook failure")}
	reg := NewRegistry(slog.Default())
	reg.Register(rec)

	// Must not panic or propagate.
	emitAll(reg)

	if rec.enqueued != 1 {
		t.Fatalf("enqueued = %d, want 1", rec.enqueued)
	}
}
