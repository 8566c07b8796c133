package opcore

import "testing"

func TestOpQueueFIFO(t *testing.T) {
	var q opQueue
	ops := []*Op{NewOp(), NewOp(), NewOp()}
	for _, op := range ops {
		q.PushBack(op)
	}
	for i, want := range ops {
		got := q.PopFront()
		if got != want {
			t.Fatalf("PopFront() at i=%d returned wrong op", i)
		}
	}
	if !q.Empty() {
		t.Fatal("expected queue to be empty after draining")
	}
	if q.PopFront() != nil {
		t.Fatal("PopFront() on an empty queue must return nil")
	}
}

func TestOpQueueFront(t *testing.T) {
	var q opQueue
	if q.Front() != nil {
		t.Fatal("Front() on an empty queue must return nil")
	}
	op := NewOp()
	q.PushBack(op)
	if q.Front() != op {
		t.Fatal("Front() should return the head without removing it")
	}
	if q.Empty() {
		t.Fatal("queue should not report empty after PushBack")
	}
}

func TestOpQueueDrainAll(t *testing.T) {
	var q opQueue
	ops := []*Op{NewOp(), NewOp(), NewOp()}
	for _, op := range ops {
		q.PushBack(op)
	}
	drained := q.DrainAll()
	if len(drained) != 3 {
		t.Fatalf("DrainAll() returned %d ops, want 3", len(drained))
	}
	for i, op := range drained {
		if op != ops[i] {
			t.Fatalf("DrainAll()[%d] out of submission order", i)
		}
	}
	if !q.Empty() {
		t.Fatal("expected queue empty after DrainAll")
	}
}

func TestOpQueueRemoveFromMiddlePreservesOrder(t *testing.T) {
	var q opQueue
	a, b, c := NewOp(), NewOp(), NewOp()
	q.PushBack(a)
	q.PushBack(b)
	q.PushBack(c)

	if !q.Remove(b) {
		t.Fatal("Remove(b) = false, want true")
	}
	got := q.DrainAll()
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("DrainAll() after removing the middle op = %v, want a,c", got)
	}
}

func TestOpQueueRemoveHeadAndTail(t *testing.T) {
	var q opQueue
	a, b := NewOp(), NewOp()
	q.PushBack(a)
	q.PushBack(b)

	if !q.Remove(a) {
		t.Fatal("Remove(head) = false, want true")
	}
	if q.Front() != b {
		t.Fatal("Front() after removing the head should be the remaining op")
	}
	if !q.Remove(b) {
		t.Fatal("Remove(tail) = false, want true")
	}
	if !q.Empty() {
		t.Fatal("queue should be empty after removing both ops")
	}
}

func TestOpQueueRemoveNotPresentReportsFalse(t *testing.T) {
	var q opQueue
	q.PushBack(NewOp())
	if q.Remove(NewOp()) {
		t.Fatal("Remove() of an op never pushed should report false")
	}
}
