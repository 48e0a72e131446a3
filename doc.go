// Package pdq provides an in-process, push-based, multi-subscriber
// message queue. Producers append opaque string payloads to a shared,
// time-bounded buffer; each subscriber has an independent cursor and
// receives every message in enqueue order through its handler, with
// bounded retries, per-subscriber dead letter quarantine, payload
// editing, and replay.
//
// # Quick Start
//
//	q, err := pdq.New(&pdq.Config{
//	    TTL:                 5 * time.Minute,
//	    RetryCount:          3,
//	    DelayBetweenRetries: 100 * time.Millisecond,
//	})
//	if err != nil { ... }
//	defer q.Close(context.Background())
//
//	subID, _ := q.Subscribe(subscriber.ReceiveFunc(handle))
//	msgID := q.Enqueue("hello")
//
// # Architecture
//
// The shared buffer lives in the store package behind a single lock
// that serializes appends, reads, payload edits, TTL trims, and all
// cursor-index arithmetic. One dispatch goroutine per subscriber reads
// the next envelope at its cursor and delivers it through the policy
// engine, which wraps every attempt in the middleware chain (panic
// recovery, tracing, metrics, logging) and applies the retry/fallback
// contract. A background pruner trims expired envelopes and shifts
// cursors in the same critical section.
//
// Extensions (the ext package) observe lifecycle events; the
// observability package ships an OpenTelemetry metrics extension.
package pdq
