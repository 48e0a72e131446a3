package pdq

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mak100186/push-delivered-queue/backoff"
	"github.com/mak100186/push-delivered-queue/ext"
	"github.com/mak100186/push-delivered-queue/id"
	"github.com/mak100186/push-delivered-queue/middleware"
	"github.com/mak100186/push-delivered-queue/policy"
	"github.com/mak100186/push-delivered-queue/store"
	"github.com/mak100186/push-delivered-queue/subscriber"
)

// instrumentationName is the OTel scope for the queue's default
// middleware stack.
const instrumentationName = "github.com/mak100186/push-delivered-queue"

// Queue is the in-process, push-based message queue: a shared
// time-bounded buffer fanned out to independently-progressing
// subscribers.
//
// Create one with New. All methods are safe for concurrent use.
type Queue struct {
	cfg    Config
	logger *slog.Logger

	log    *store.Log
	engine *policy.Engine
	exts   *ext.Registry

	// Option state, consumed during New.
	bo             backoff.Strategy
	extList        []ext.Extension
	extraMws       []middleware.Middleware
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	pruneInterval  time.Duration
	idleWait       time.Duration

	rootCtx    context.Context
	rootCancel context.CancelFunc

	// Subscriber registry.
	mu   sync.RWMutex
	subs map[string]*subscriber.Cursor

	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool
}

// New creates a Queue from the given configuration and starts the TTL
// pruner. A nil configuration is rejected; zero-valued fields fall
// back to the documented defaults before validation.
func New(cfg *Config, opts ...Option) (*Queue, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	c := *cfg
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	q := &Queue{
		cfg:           c,
		logger:        slog.Default(),
		log:           store.NewLog(),
		subs:          make(map[string]*subscriber.Cursor),
		pruneInterval: 100 * time.Millisecond,
		idleWait:      100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(q)
	}

	if q.bo == nil {
		q.bo = backoff.NewConstant(c.DelayBetweenRetries)
	}

	q.exts = ext.NewRegistry(q.logger)
	for _, e := range q.extList {
		q.exts.Register(e)
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw middleware.Middleware
	if q.tracerProvider != nil {
		tracingMw = middleware.TracingWithTracer(q.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = middleware.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw middleware.Middleware
	if q.meterProvider != nil {
		metricsMw = middleware.MetricsWithMeter(q.meterProvider.Meter(instrumentationName))
	} else {
		metricsMw = middleware.Metrics()
	}

	// Default middleware stack: recover → tracing → metrics → logging.
	mws := []middleware.Middleware{
		middleware.Recover(q.logger),
		tracingMw,
		metricsMw,
		middleware.Logging(q.logger),
	}
	mws = append(mws, q.extraMws...)

	q.engine = policy.NewEngine(c.RetryCount, q.bo, q.exts, q.logger, mws...)

	q.rootCtx, q.rootCancel = context.WithCancel(context.Background())
	q.wg.Add(1)
	go q.pruneLoop()

	return q, nil
}

// Config returns a copy of the queue's configuration.
func (q *Queue) Config() Config { return q.cfg }

// ──────────────────────────────────────────────────
// Producer surface
// ──────────────────────────────────────────────────

// Enqueue appends a payload to the buffer and returns its message ID.
// The payload may be empty. Enqueue never fails.
func (q *Queue) Enqueue(payload string) id.MessageID {
	env := q.log.Append(payload)
	q.exts.EmitMessageEnqueued(q.rootCtx, env)
	q.logger.Debug("message enqueued",
		slog.String("message_id", env.ID.String()),
	)
	return env.ID
}

// ChangeMessagePayload replaces the payload of a buffered message in
// place, preserving its ID and creation time. Subscribers that have
// already passed the message do not see the change; subscribers that
// have not reached it will. Unknown IDs are a logged no-op.
func (q *Queue) ChangeMessagePayload(msgID id.MessageID, payload string) {
	if !q.log.EditPayload(msgID, payload) {
		q.logger.Warn("change payload skipped",
			slog.String("message_id", msgID.String()),
			slog.String("error", ErrMessageNotFound.Error()),
		)
	}
}

// ──────────────────────────────────────────────────
// Subscriber lifecycle
// ──────────────────────────────────────────────────

// Subscribe registers a handler, starts its dispatch loop at the head
// of the buffer, and returns the new subscriber's ID.
func (q *Queue) Subscribe(h subscriber.Handler, opts ...subscriber.Option) (id.SubscriberID, error) {
	if h == nil {
		return id.Nil, ErrNilHandler
	}
	if q.closed.Load() {
		return id.Nil, ErrQueueClosed
	}

	cur := subscriber.New(q.rootCtx, h, opts...)

	q.mu.Lock()
	q.subs[cur.ID.String()] = cur
	q.mu.Unlock()

	q.wg.Add(1)
	go q.dispatchLoop(cur)

	q.exts.EmitSubscriberAdded(q.rootCtx, cur.ID)
	q.logger.Info("subscriber added", slog.String("subscriber_id", cur.ID.String()))

	return cur.ID, nil
}

// Unsubscribe cancels the subscriber's dispatch loop and removes it
// from the registry. Unknown IDs are a logged no-op. Other subscribers
// are unaffected.
func (q *Queue) Unsubscribe(subID id.SubscriberID) {
	q.mu.Lock()
	cur, ok := q.subs[subID.String()]
	if ok {
		delete(q.subs, subID.String())
	}
	q.mu.Unlock()

	if !ok {
		q.logger.Warn("unsubscribe skipped",
			slog.String("subscriber_id", subID.String()),
			slog.String("error", ErrSubscriberNotFound.Error()),
		)
		return
	}

	cur.Cancel()
	q.exts.EmitSubscriberRemoved(q.rootCtx, subID)
	q.logger.Info("subscriber removed", slog.String("subscriber_id", subID.String()))
}

// cursor returns the live cursor for the given subscriber ID, or nil.
func (q *Queue) cursor(subID id.SubscriberID) *subscriber.Cursor {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.subs[subID.String()]
}

// cursors returns a snapshot of all live cursors.
func (q *Queue) cursors() []*subscriber.Cursor {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]*subscriber.Cursor, 0, len(q.subs))
	for _, cur := range q.subs {
		out = append(out, cur)
	}
	return out
}

// ──────────────────────────────────────────────────
// Replay operations
// ──────────────────────────────────────────────────

// ReplayFromDlq re-delivers a single quarantined message to its
// subscriber. On Ack the entry leaves the dead letter list; on Nack or
// error it stays and the failure handler is invoked to mirror the
// normal failure surface. Unknown subscriber or message IDs are a
// logged no-op.
func (q *Queue) ReplayFromDlq(ctx context.Context, subID id.SubscriberID, msgID id.MessageID) {
	cur := q.cursor(subID)
	if cur == nil {
		q.logger.Warn("dlq replay skipped",
			slog.String("subscriber_id", subID.String()),
			slog.String("error", ErrSubscriberNotFound.Error()),
		)
		return
	}

	env := cur.DLQ.Get(msgID)
	if env == nil {
		q.logger.Warn("dlq replay skipped: message not in dead letter list",
			slog.String("subscriber_id", subID.String()),
			slog.String("message_id", msgID.String()),
			slog.String("error", ErrMessageNotFound.Error()),
		)
		return
	}

	q.engine.ReplayDeadLetter(ctx, env, cur)
}

// ReplayAllDlqMessages re-delivers every quarantined message of one
// subscriber in insertion order. Entries are removed on Ack; the
// iteration works on a snapshot so removals never skip entries.
func (q *Queue) ReplayAllDlqMessages(ctx context.Context, subID id.SubscriberID) {
	cur := q.cursor(subID)
	if cur == nil {
		q.logger.Warn("dlq replay skipped",
			slog.String("subscriber_id", subID.String()),
			slog.String("error", ErrSubscriberNotFound.Error()),
		)
		return
	}

	for _, env := range cur.DLQ.Snapshot() {
		if ctx.Err() != nil {
			return
		}
		q.engine.ReplayDeadLetter(ctx, env, cur)
	}
}

// ReplayAllDlqSubscribers fans ReplayAllDlqMessages out to every live
// subscriber, fire-and-forget. Per-subscriber failures are logged by
// the replay path, never surfaced.
func (q *Queue) ReplayAllDlqSubscribers(ctx context.Context) {
	for _, cur := range q.cursors() {
		go func() {
			for _, env := range cur.DLQ.Snapshot() {
				if ctx.Err() != nil {
					return
				}
				q.engine.ReplayDeadLetter(ctx, env, cur)
			}
		}()
	}
}

// ReplayFrom rewinds a subscriber's cursor to an earlier buffer
// position so the dispatch loop re-delivers from there. It is
// permitted only when the subscriber is idle at the tail (committed
// and caught up); otherwise, and for unknown IDs, it is a logged
// no-op.
func (q *Queue) ReplayFrom(subID id.SubscriberID, msgID id.MessageID) {
	cur := q.cursor(subID)
	if cur == nil {
		q.logger.Warn("replay from skipped",
			slog.String("subscriber_id", subID.String()),
			slog.String("error", ErrSubscriberNotFound.Error()),
		)
		return
	}

	if err := q.log.Rewind(cur, msgID); err != nil {
		q.logger.Warn("replay from: rewind rejected",
			slog.String("subscriber_id", subID.String()),
			slog.String("message_id", msgID.String()),
			slog.String("reason", err.Error()),
		)
		return
	}

	q.logger.Info("cursor rewound",
		slog.String("subscriber_id", subID.String()),
		slog.String("message_id", msgID.String()),
	)
}

// ──────────────────────────────────────────────────
// Shutdown
// ──────────────────────────────────────────────────

// Close cancels the pruner and every dispatch loop, then waits for
// them to finish or for ctx to expire. In-flight handlers observe
// cancellation at their next suspension point. Close is idempotent;
// subsequent calls return immediately.
func (q *Queue) Close(ctx context.Context) error {
	q.closeOnce.Do(func() {
		q.closed.Store(true)
		q.logger.Info("queue closing")

		q.rootCancel()

		done := make(chan struct{})
		go func() {
			q.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			q.logger.Info("queue closed")
		case <-ctx.Done():
			q.logger.Warn("queue close timed out waiting for dispatch loops")
		}

		q.exts.EmitShutdown(ctx)
	})
	return nil
}

// ──────────────────────────────────────────────────
// Background loops
// ──────────────────────────────────────────────────

// dispatchLoop is run by one goroutine per subscriber. It reads the
// next envelope at the cursor, delivers it through the policy engine,
// and commits on advance. A blocked envelope is re-offered after a
// brief pause.
func (q *Queue) dispatchLoop(cur *subscriber.Cursor) {
	defer q.wg.Done()

	for {
		select {
		case <-cur.Done():
			return
		default:
		}

		if !q.log.HasNext(cur) {
			if !q.idle(cur) {
				return
			}
			continue
		}

		if err := cur.WaitRate(cur.Context()); err != nil {
			return
		}

		env := q.log.ReadNext(cur)
		if env == nil {
			continue
		}

		dec := q.engine.Deliver(cur.Context(), env, cur)
		if dec.Advance {
			q.log.Advance(cur, env.ID)
			continue
		}

		if cur.Context().Err() != nil {
			return
		}

		// Blocked: the same envelope is re-offered next iteration.
		if !q.idle(cur) {
			return
		}
	}
}

// idle waits the idle interval. It reports false when the cursor was
// cancelled while waiting.
func (q *Queue) idle(cur *subscriber.Cursor) bool {
	select {
	case <-cur.Done():
		return false
	case <-time.After(q.idleWait):
		return true
	}
}

// pruneLoop trims expired envelopes on a fixed interval until the
// queue is closed.
func (q *Queue) pruneLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.rootCtx.Done():
			return
		case <-ticker.C:
			q.pruneOnce()
		}
	}
}

// pruneOnce removes head envelopes older than TTL and shifts every
// cursor in the same critical section. Internal panics are logged and
// the loop continues.
func (q *Queue) pruneOnce() {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("pruner error", slog.Any("panic", r))
		}
	}()

	cutoff := time.Now().UTC().Add(-q.cfg.TTL)
	removed := q.log.TrimExpired(cutoff, q.cursors())
	if removed > 0 {
		q.exts.EmitStoreTrimmed(q.rootCtx, removed)
		q.logger.Debug("trimmed expired messages", slog.Int("removed", removed))
	}
}
