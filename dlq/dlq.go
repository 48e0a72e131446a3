// Package dlq provides the per-subscriber dead letter list: envelopes
// that exhausted their delivery attempts and were quarantined by the
// subscriber's failure handler.
package dlq

import (
	"sync"

	"github.com/mak100186/push-delivered-queue/id"
	"github.com/mak100186/push-delivered-queue/message"
)

// List is an insertion-ordered dead letter list owned by a single
// subscriber. The dispatch loop appends on failure and replay
// operations read and remove concurrently, so the list carries its
// own lock.
type List struct {
	mu      sync.Mutex
	entries []*message.Envelope
}

// NewList returns an empty dead letter list.
func NewList() *List {
	return &List{}
}

// Push appends an envelope to the tail of the list.
func (l *List) Push(env *message.Envelope) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, env)
}

// Get returns the entry with the given message ID, or nil if absent.
func (l *List) Get(msgID id.MessageID) *message.Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.ID == msgID {
			return e
		}
	}
	return nil
}

// Remove deletes the entry with the given message ID. It reports
// whether an entry was removed.
func (l *List) Remove(msgID id.MessageID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		if e.ID == msgID {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns the current entries in insertion order. Replay
// iterates the snapshot and removes from the live list on Ack, so
// concurrent mutation during iteration never invalidates positions.
func (l *List) Snapshot() []*message.Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*message.Envelope, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of quarantined envelopes.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}
