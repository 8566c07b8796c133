package opcore

import (
	"sync"
	"testing"
)

func TestAnnounceQueueFIFOOrder(t *testing.T) {
	var q announceQueue
	ops := []*Op{NewOp(), NewOp(), NewOp()}
	for _, op := range ops {
		q.Push(op, ActionStart)
	}

	drained := q.DrainAll()
	if len(drained) != 3 {
		t.Fatalf("DrainAll() returned %d ops, want 3", len(drained))
	}
	for i, op := range drained {
		if op != ops[i] {
			t.Fatalf("DrainAll()[%d] out of push order", i)
		}
		if op.PendingAction != ActionStart {
			t.Fatalf("DrainAll()[%d].PendingAction = %v, want ActionStart", i, op.PendingAction)
		}
	}
}

func TestAnnounceQueueDrainEmpty(t *testing.T) {
	var q announceQueue
	if drained := q.DrainAll(); drained != nil {
		t.Fatalf("DrainAll() on an empty queue = %v, want nil", drained)
	}
}

func TestAnnounceQueueConcurrentPush(t *testing.T) {
	var q announceQueue
	const n = 500

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Push(NewOp(), ActionFinish)
		}()
	}
	wg.Wait()

	if drained := q.DrainAll(); len(drained) != n {
		t.Fatalf("DrainAll() returned %d ops, want %d", len(drained), n)
	}
}
