package finishq

import (
	"testing"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
)

func TestQueueDrainAllFIFOOrder(t *testing.T) {
	q := New(32)
	ops := []*opcore.Op{opcore.NewOp(), opcore.NewOp(), opcore.NewOp()}
	for _, op := range ops {
		q.Push(op)
	}
	if q.Empty() {
		t.Fatal("expected queue to be non-empty after Push")
	}

	drained := q.DrainAll()
	if len(drained) != 3 {
		t.Fatalf("DrainAll() returned %d ops, want 3", len(drained))
	}
	for i, op := range drained {
		if op != ops[i] {
			t.Fatalf("DrainAll()[%d] out of push order", i)
		}
	}
	if !q.Empty() {
		t.Fatal("expected queue empty after DrainAll")
	}
}

func TestQueueDrainAllEmpty(t *testing.T) {
	q := New(32)
	if drained := q.DrainAll(); drained != nil {
		t.Fatalf("DrainAll() on empty queue = %v, want nil", drained)
	}
}

func TestQueueReserveSynchronousBound(t *testing.T) {
	q := New(2)
	if !q.ReserveSynchronous() {
		t.Fatal("expected first reservation to succeed")
	}
	if !q.ReserveSynchronous() {
		t.Fatal("expected second reservation to succeed")
	}
	if q.ReserveSynchronous() {
		t.Fatal("expected third reservation to fail once the bound is reached")
	}
}

func TestQueueResetSynchronous(t *testing.T) {
	q := New(1)
	if !q.ReserveSynchronous() {
		t.Fatal("expected reservation to succeed")
	}
	if q.ReserveSynchronous() {
		t.Fatal("expected reservation to fail once exhausted")
	}
	q.ResetSynchronous()
	if !q.ReserveSynchronous() {
		t.Fatal("expected reservation to succeed again after reset")
	}
}
