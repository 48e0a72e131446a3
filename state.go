package pdq

import (
	"time"

	"github.com/mak100186/push-delivered-queue/id"
	"github.com/mak100186/push-delivered-queue/message"
)

// State is a diagnostic snapshot of the queue: the buffered messages,
// each subscriber's cursor, and the configured TTL.
type State struct {
	TTL         time.Duration      `json:"ttl"`
	Messages    []message.Envelope `json:"messages"`
	Subscribers []SubscriberState  `json:"subscribers"`
}

// SubscriberState describes one subscriber's cursor at snapshot time.
type SubscriberState struct {
	ID          id.SubscriberID    `json:"id"`
	Index       int                `json:"index"`
	Committed   bool               `json:"committed"`
	Pending     int                `json:"pending"`
	DeadLetters []message.Envelope `json:"dead_letters"`
}

// GetState returns a snapshot for diagnostics. The buffer is captured
// atomically under the store lock; per-subscriber positions are read
// individually and may be slightly stale relative to each other, which
// is acceptable for inspection.
func (q *Queue) GetState() State {
	st := State{
		TTL:      q.cfg.TTL,
		Messages: q.log.Snapshot(),
	}

	for _, cur := range q.cursors() {
		index, committed, pending := q.log.CursorView(cur)

		dead := cur.DLQ.Snapshot()
		letters := make([]message.Envelope, len(dead))
		for i, e := range dead {
			letters[i] = *e
		}

		st.Subscribers = append(st.Subscribers, SubscriberState{
			ID:          cur.ID,
			Index:       index,
			Committed:   committed,
			Pending:     pending,
			DeadLetters: letters,
		})
	}

	return st
}
