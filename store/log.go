// Package store holds the shared buffer: an append-ordered log of
// envelopes plus the single mutual-exclusion discipline that makes
// appends, reads, payload edits, TTL trims, and cursor-index
// arithmetic atomic with respect to each other.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/mak100186/push-delivered-queue/id"
	"github.com/mak100186/push-delivered-queue/message"
	"github.com/mak100186/push-delivered-queue/subscriber"
)

var (
	// ErrNotCaughtUp is returned by Rewind when the cursor still has
	// more than one undelivered envelope ahead of it.
	ErrNotCaughtUp = errors.New("store: cursor not caught up")

	// ErrInFlight is returned by Rewind when the cursor has an
	// uncommitted delivery in progress.
	ErrInFlight = errors.New("store: delivery in flight")

	// ErrMessageNotFound is returned when a message ID is not in the log.
	ErrMessageNotFound = errors.New("store: message not found")
)

// Log is the ordered sequence of envelopes shared by all subscribers:
// append-only at the tail, head-trimmed by the TTL pruner. All cursor
// Index/Committed access goes through Log methods so position reads,
// commits, and prune-driven shifts serialize on one lock.
type Log struct {
	mu      sync.Mutex
	entries []*message.Envelope
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append creates an envelope with a fresh ID and the current wall
// clock, appends it at the tail, and returns a copy. Append never fails.
func (l *Log) Append(payload string) *message.Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()

	env := message.New(payload)
	l.entries = append(l.entries, env)
	return env.Clone()
}

// Len returns the current logical size of the log.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}

// ReadAt returns a copy of the envelope at the given logical index, or
// nil if index is out of range.
func (l *Log) ReadAt(index int) *message.Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || index >= len(l.entries) {
		return nil
	}
	return l.entries[index].Clone()
}

// HasNext reports whether an envelope is available at the cursor's
// position.
func (l *Log) HasNext(c *subscriber.Cursor) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return c.Index < len(l.entries)
}

// ReadNext returns a copy of the envelope at the cursor's position and
// marks the cursor uncommitted (delivery in flight), or returns nil if
// the cursor is caught up. The position read and the copy are one
// atomic step with respect to pruning and payload edits; the in-flight
// delivery, including its retries, sees the payload as of this read.
func (l *Log) ReadNext(c *subscriber.Cursor) *message.Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c.Index >= len(l.entries) {
		return nil
	}
	c.Committed = false
	return l.entries[c.Index].Clone()
}

// Advance commits the cursor past the delivered envelope. The index
// only moves when the envelope at the cursor's position is still the
// delivered one: if the pruner removed it mid-delivery the cursor
// already points at the next undelivered envelope and must not skip it.
func (l *Log) Advance(c *subscriber.Cursor, delivered id.MessageID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c.Index < len(l.entries) && l.entries[c.Index].ID == delivered {
		c.Index++
	}
	c.Committed = true
}

// TrimExpired removes envelopes from the head whose creation time is
// before cutoff, stopping at the first unexpired envelope, and shifts
// every given cursor's index down by the removed count (floor 0) in the
// same critical section. It returns the number removed.
func (l *Log) TrimExpired(cutoff time.Time, cursors []*subscriber.Cursor) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := 0
	for k < len(l.entries) && l.entries[k].ExpiredBefore(cutoff) {
		k++
	}
	if k == 0 {
		return 0
	}

	// Nil the trimmed slots so the envelopes are released to the GC
	// despite the reslice keeping the backing array.
	for i := range k {
		l.entries[i] = nil
	}
	l.entries = l.entries[k:]

	for _, c := range cursors {
		c.Index -= k
		if c.Index < 0 {
			c.Index = 0
		}
	}

	return k
}

// FindIndexByID returns the logical index of the envelope with the
// given ID. Linear scan; used only by replay.
func (l *Log) FindIndexByID(msgID id.MessageID) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.findIndexLocked(msgID)
}

func (l *Log) findIndexLocked(msgID id.MessageID) (int, bool) {
	for i, e := range l.entries {
		if e.ID == msgID {
			return i, true
		}
	}
	return 0, false
}

// EditPayload replaces the payload of the buffered envelope with the
// given ID, preserving its identity and creation time. It reports
// whether the envelope was found. Subscribers that have not yet read
// the envelope will see the new payload.
func (l *Log) EditPayload(msgID id.MessageID, payload string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.findIndexLocked(msgID)
	if !ok {
		return false
	}
	l.entries[i].Payload = payload
	return true
}

// Rewind moves the cursor back to the buffered envelope with the given
// ID so the dispatch loop re-delivers from that position. It is
// permitted only when the subscriber is idle at the tail: committed,
// with at most one undelivered envelope remaining.
func (l *Log) Rewind(c *subscriber.Cursor, msgID id.MessageID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !c.Committed {
		return ErrInFlight
	}
	if c.Index+1 < len(l.entries) {
		return ErrNotCaughtUp
	}

	pos, ok := l.findIndexLocked(msgID)
	if !ok {
		return ErrMessageNotFound
	}

	c.Index = pos
	c.Committed = false
	return nil
}

// Snapshot returns a shallow copy of the current log in store order.
func (l *Log) Snapshot() []message.Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]message.Envelope, len(l.entries))
	for i, e := range l.entries {
		out[i] = *e
	}
	return out
}

// CursorView returns the cursor's index, commit flag, and pending
// envelope count under the store lock.
func (l *Log) CursorView(c *subscriber.Cursor) (index int, committed bool, pending int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pending = len(l.entries) - c.Index
	if pending < 0 {
		pending = 0
	}
	return c.Index, c.Committed, pending
}
