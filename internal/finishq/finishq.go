// Package finishq implements the thread-local finished-operation list
// from spec.md §4.5: a plain singly-linked list of ops whose combiner
// phase has already run their executor to a terminal status, deferred
// here so the user callback runs outside the combiner's call stack —
// a callback that submits new work can never recurse into the
// combiner that is finishing it.
//
// There is one Queue per loop thread, plus one call-scoped Queue that
// the facade creates on the submitting goroutine for each outermost
// submission call. Go has no addressable OS thread-local storage, so
// "thread-local" here means: each loop goroutine (pinned to its OS
// thread via runtime.LockOSThread by internal/looppool) owns and only
// ever touches its own Queue value.
package finishq

import "github.com/eXtremal-ik7/asyncio-go/internal/opcore"

// Queue is one loop thread's finished-operation list plus its bounded
// synchronous-finish counter (spec.md §4.4 step 3b).
type Queue struct {
	head            *opcore.Op
	syncFinished    int
	maxSyncFinished int
}

// New creates a queue whose synchronous-finish budget per loop
// iteration is maxSyncFinished (spec.md §4.4's
// MAX_SYNCHRONOUS_FINISHED_OPERATION, default 32).
func New(maxSyncFinished int) *Queue {
	return &Queue{maxSyncFinished: maxSyncFinished}
}

// Push head-inserts a finished op. It reuses the op's QueueNext link:
// per spec.md §3.2, an op is exactly once either in its object's exec
// queue or in the finished queue, never both, so the field is never
// contended between the two uses.
func (q *Queue) Push(op *opcore.Op) {
	op.QueueNext = q.head
	q.head = op
}

// Empty reports whether the queue currently holds any ops.
func (q *Queue) Empty() bool {
	return q.head == nil
}

// DrainAll detaches every queued op and returns them in the order
// they were pushed (Push prepends, so the raw list is newest-first;
// this reverses it back to FIFO for deterministic finisher order).
func (q *Queue) DrainAll() []*opcore.Op {
	var reversed []*opcore.Op
	for op := q.head; op != nil; {
		next := op.QueueNext
		op.QueueNext = nil
		reversed = append(reversed, op)
		op = next
	}
	q.head = nil
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	return reversed
}

// ReserveSynchronous reports whether the calling fast path may still
// resolve an op synchronously without invoking a callback (spec.md
// §4.4 step 3b), consuming one unit of this iteration's budget if so.
func (q *Queue) ReserveSynchronous() bool {
	if q.syncFinished >= q.maxSyncFinished {
		return false
	}
	q.syncFinished++
	return true
}

// ResetSynchronous clears the synchronous-finish counter; called at
// the top of each loop iteration, before the queue is drained.
func (q *Queue) ResetSynchronous() {
	q.syncFinished = 0
}
