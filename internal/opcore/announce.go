package opcore

import (
	"runtime"
	"sync/atomic"
)

// announceQueue is the per-object "deferred actions" inbox from
// spec.md §3.1: a lock-protected MPSC list that submissions landing
// while another thread already owns the combiner deposit their
// (op, action) pair into. spec.md §5 calls for "a single word
// spinlock, held for O(1)", so this uses a bare CAS spin rather than
// sync.Mutex — the critical section is two pointer writes.
type announceQueue struct {
	locked atomic.Bool
	head   *Op
}

func (q *announceQueue) lock() {
	for !q.locked.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (q *announceQueue) unlock() {
	q.locked.Store(false)
}

// Push deposits op with the given pending action. It may be called
// from any thread, concurrently with Push and DrainAll.
func (q *announceQueue) Push(op *Op, action Action) {
	op.PendingAction = action
	q.lock()
	op.AnnounceNext = q.head
	q.head = op
	q.unlock()
}

// DrainAll detaches every announced op and returns them in the order
// they were pushed (oldest first), since Push prepends and would
// otherwise yield last-in-first-out order.
func (q *announceQueue) DrainAll() []*Op {
	q.lock()
	head := q.head
	q.head = nil
	q.unlock()

	var reversed []*Op
	for op := head; op != nil; {
		next := op.AnnounceNext
		op.AnnounceNext = nil
		reversed = append(reversed, op)
		op = next
	}
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	return reversed
}
