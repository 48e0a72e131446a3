// Package message defines the Envelope, the unit held by the queue's
// shared buffer: an opaque payload plus its immutable identity and
// creation timestamp.
package message

import (
	"time"

	"github.com/mak100186/push-delivered-queue/id"
)

// Envelope wraps a payload with its identity and creation time.
// ID and CreatedAt are immutable after construction; Payload may be
// edited in place through the store while the envelope is buffered.
type Envelope struct {
	ID        id.MessageID `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Payload   string       `json:"payload"`
}

// New creates an envelope with a fresh message ID and the current wall
// clock time. The payload may be empty.
func New(payload string) *Envelope {
	return &Envelope{
		ID:        id.NewMessageID(),
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
}

// Clone returns a copy of the envelope. The store hands out clones so
// that in-flight deliveries never race with payload edits.
func (e *Envelope) Clone() *Envelope {
	cp := *e
	return &cp
}

// ExpiredBefore reports whether the envelope was created before the
// given cutoff.
func (e *Envelope) ExpiredBefore(cutoff time.Time) bool {
	return e.CreatedAt.Before(cutoff)
}
