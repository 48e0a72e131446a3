package dlq

import (
	"testing"

	"github.com/mak100186/push-delivered-queue/id"
	"github.com/mak100186/push-delivered-queue/message"
)

func TestPushGetRemove(t *testing.T) {
	t.Parallel()

	l := NewList()
	m1 := message.New("first")
	m2 := message.New("second")

	l.Push(m1)
	l.Push(m2)

	if got := l.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}
	if got := l.Get(m1.ID); got == nil || got.Payload != "first" {
		t.Fatalf("Get(m1) = %v", got)
	}
	if got := l.Get(id.NewMessageID()); got != nil {
		t.Fatalf("Get(unknown) = %v, want nil", got)
	}

	if !l.Remove(m1.ID) {
		t.Fatal("Remove(m1) = false")
	}
	if l.Remove(m1.ID) {
		t.Fatal("second Remove(m1) = true")
	}
	if got := l.Len(); got != 1 {
		t.Fatalf("Len after remove = %d, want 1", got)
	}
}

func TestSnapshotPreservesInsertionOrder(t *testing.T) {
	t.Parallel()

	l := NewList()
	payloads := []string{"a", "b", "c"}
	for _, p := range payloads {
		l.Push(message.New(p))
	}

	snap := l.Snapshot()
	if len(snap) != len(payloads) {
		t.Fatalf("snapshot len = %d, want %d", len(snap), len(payloads))
	}
	for i, e := range snap {
		if e.Payload != payloads[i] {
			t.Fatalf("snapshot[%d] = %q, want %q", i, e.Payload, payloads[i])
		}
	}
}

func TestSnapshotIsStableUnderRemoval(t *testing.T) {
	t.Parallel()

	l := NewList()
	for _, p := range []string{"a", "b", "c"} {
		l.Push(message.New(p))
	}

	snap := l.Snapshot()
	for _, e := range snap {
		if !l.Remove(e.ID) {
			t.Fatalf("Remove(%s) = false during snapshot iteration", e.ID)
		}
	}
	if l.Len() != 0 {
		t.Fatalf("Len after removing all = %d, want 0", l.Len())
	}
}
