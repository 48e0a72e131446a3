package pdq

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mak100186/push-delivered-queue/backoff"
	"github.com/mak100186/push-delivered-queue/ext"
	"github.com/mak100186/push-delivered-queue/middleware"
)

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the structured logger for the queue.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = l
	}
}

// WithBackoff sets the delay strategy between delivery retries.
// If not set, a constant delay of Config.DelayBetweenRetries is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(q *Queue) {
		q.bo = b
	}
}

// WithExtension registers an extension with the queue.
func WithExtension(e ext.Extension) Option {
	return func(q *Queue) {
		q.extList = append(q.extList, e)
	}
}

// WithMiddleware appends middleware to the delivery chain, after the
// default stack (recover, tracing, metrics, logging).
func WithMiddleware(m middleware.Middleware) Option {
	return func(q *Queue) {
		q.extraMws = append(q.extraMws, m)
	}
}

// WithPruneInterval sets how often the TTL pruner scans the buffer.
// The default is 100ms; the interval is not observable to clients
// beyond prune latency.
func WithPruneInterval(d time.Duration) Option {
	return func(q *Queue) {
		q.pruneInterval = d
	}
}

// WithIdleWait sets how long a dispatch loop sleeps when its cursor is
// caught up (and between re-offers of a blocked message). The default
// is 100ms.
func WithIdleWait(d time.Duration) Option {
	return func(q *Queue) {
		q.idleWait = d
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the queue.
// When set, the tracing middleware uses this provider instead of the
// global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(q *Queue) {
		q.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the queue.
// When set, the metrics middleware uses this provider instead of the
// global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(q *Queue) {
		q.meterProvider = mp
	}
}
