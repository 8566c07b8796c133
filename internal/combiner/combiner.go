// Package combiner is the heart of the runtime (spec.md §4.2): a
// lock-free serializer that enforces the single-writer invariant on an
// I/O object's queues and reactor registration, using the object's tag
// word as both an operation counter and a status-bit reservoir.
//
// Whichever goroutine's PushOperation or PushCounter call observes the
// tag transition from zero becomes the combiner owner for that object
// and runs the loop below to completion on its own stack; every other
// caller either appends to the announcement queue (PushOperation) or
// simply contributes bits the current owner will observe (PushCounter).
// The decision of whether a read fails as Disconnected on EOF with
// zero available bytes is made by the reactor backend before it calls
// PushCounter with FlagError — the combiner itself treats the flag as
// unconditional "finish every queued op as Disconnected" (see
// DESIGN.md).
package combiner

import (
	"github.com/eXtremal-ik7/asyncio-go/internal/finishq"
	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/eXtremal-ik7/asyncio-go/internal/tagptr"
)

// PushOperation is the submission path (spec.md §4.2). It atomically
// fetch-adds 1 to obj's op-count. If the prior value was 0, the caller
// becomes the combiner owner and runs the loop with (op, action) as
// its initial input; otherwise the pair is appended to the object's
// announcement queue for the running owner to pick up.
func PushOperation(obj *opcore.Object, op *opcore.Op, action opcore.Action, fq *finishq.Queue) {
	prior := obj.Tag().PushOperation()
	if prior != 0 {
		obj.Announce().Push(op, action)
		return
	}
	run(obj, op, action, fq)
}

// PushCounter is the reactor path (spec.md §4.2). It fetch-adds the
// given readiness/error/delete/cancel-all bits into obj's tag. If the
// prior tag was 0, the caller becomes the combiner owner with no
// explicit initial operation.
func PushCounter(obj *opcore.Object, bits uint64, fq *finishq.Queue) {
	prior := obj.Tag().PushCounter(bits)
	if prior != 0 {
		return
	}
	run(obj, nil, 0, fq)
}

// run is the combiner loop. It executes entirely on the calling
// goroutine, which holds exclusive ownership of obj's queues and
// reactor registration for as long as the loop runs (spec.md §3.1
// invariant: "at most one thread is inside the combiner for a given
// object at any time").
func run(obj *opcore.Object, initialOp *opcore.Op, initialAction opcore.Action, fq *finishq.Queue) {
	first := true

	for {
		snapshot := obj.Tag().Load()
		flags := tagptr.Flags(snapshot)
		opsHandled := uint64(0)

		cancelAllActive := flags&tagptr.FlagCancelAll != 0
		errorActive := flags&tagptr.FlagError != 0

		// Phase A: status bits.
		switch {
		case cancelAllActive:
			cancelQueued(obj.ReadQueue(), fq)
			cancelQueued(obj.WriteQueue(), fq)
		case errorActive:
			disconnectQueued(obj.ReadQueue(), fq)
			disconnectQueued(obj.WriteQueue(), fq)
		}
		// FlagDelete itself is consumed (subtracted) by Phase E every
		// round like any other status bit, so PendingDelete is the
		// combiner's own record that a delete was requested; it survives
		// across however many rounds it takes for the queues to drain and
		// the refcount to reach zero. The destructor runs exactly once
		// those three conditions all hold. An AddRef held past that point
		// parks here every round until the matching Release pushes
		// FlagRefCheck and wakes this gate again.
		if flags&tagptr.FlagDelete != 0 {
			obj.PendingDelete = true
		}
		if obj.PendingDelete && obj.ReadQueue().Empty() && obj.WriteQueue().Empty() && obj.RefCount() == 0 {
			if obj.Destructor != nil {
				obj.Destructor()
			}
			obj.Tag().Exit(flags)
			return
		}

		// Phase B: pending ops — the initial op (first round only) plus
		// whatever has been announced since. A cancel-all in progress
		// turns every one of them into an immediate cancellation rather
		// than a queue append, so no newly submitted op can reach
		// Success until a fresh submission arrives after cancel-all
		// clears (spec.md §8 P3).
		if first && initialOp != nil {
			handleAnnounced(obj, initialOp, initialAction, cancelAllActive, fq)
			opsHandled++
			first = false
		}
		for _, op := range obj.Announce().DrainAll() {
			handleAnnounced(obj, op, op.PendingAction, cancelAllActive, fq)
			opsHandled++
		}

		// Phase C: drive I/O on whichever queue head is runnable.
		driveQueue(obj, obj.ReadQueue(), fq)
		driveQueue(obj, obj.WriteQueue(), fq)

		// Phase D: reactor arming.
		if obj.Base != nil {
			mask := uint32(0)
			if !obj.ReadQueue().Empty() {
				mask |= opcore.MaskRead
			}
			if !obj.WriteQueue().Empty() {
				mask |= opcore.MaskWrite
			}
			if obj.Kind == opcore.KindStreamSocket {
				mask |= opcore.MaskEOF
			}
			obj.Base.Arm(obj, mask)
		}

		// Phase E: exit attempt.
		consumed := opsHandled + flags
		if _, exited := obj.Tag().Exit(consumed); exited {
			return
		}
	}
}

// handleAnnounced applies a single (op, action) pair, or cancels it
// outright if a cancel-all is in effect this round (spec.md §4.2
// Phase B).
func handleAnnounced(obj *opcore.Object, op *opcore.Op, action opcore.Action, cancelAllActive bool, fq *finishq.Queue) {
	if cancelAllActive {
		cancel(op, opcore.StatusCanceled, fq)
		return
	}
	switch action {
	case opcore.ActionStart:
		op.Object = obj
		obj.QueueFor(op).PushBack(op)
	case opcore.ActionFinish:
		finish(op, opcore.StatusSuccess, op.Transferred, fq)
	case opcore.ActionCancel:
		obj.QueueFor(op).Remove(op)
		cancel(op, opcore.StatusCanceled, fq)
	case opcore.ActionTimeout:
		obj.QueueFor(op).Remove(op)
		cancel(op, opcore.StatusTimeout, fq)
	case opcore.ActionContinue:
		// The op is already at its queue's head; Phase C re-executes it.
	}
}

type frontPopper interface {
	Front() *opcore.Op
	PopFront() *opcore.Op
	DrainAll() []*opcore.Op
}

// driveQueue runs the executor of q's head repeatedly until it reports
// Pending or the queue empties (spec.md §4.2 Phase C).
func driveQueue(obj *opcore.Object, q frontPopper, fq *finishq.Queue) {
	for {
		op := q.Front()
		if op == nil {
			return
		}
		outcome := op.Executor.Execute(obj)
		switch outcome.Result {
		case opcore.ResultPending:
			return
		case opcore.ResultSuccess:
			q.PopFront()
			finish(op, opcore.StatusSuccess, outcome.N, fq)
		case opcore.ResultFailure:
			q.PopFront()
			finish(op, outcome.Status, outcome.N, fq)
		}
	}
}

// finish transitions op to status and defers its callback onto fq.
func finish(op *opcore.Op, status opcore.Status, n int, fq *finishq.Queue) {
	if op.TryFinish(op.Generation(), status, n) {
		fq.Push(op)
	}
}

// cancel transitions op to status via the cancellation path and
// defers its callback onto fq.
func cancel(op *opcore.Op, status opcore.Status, fq *finishq.Queue) {
	if op.TryCancel(op.Generation(), status) {
		fq.Push(op)
	}
}

// cancelQueued finishes every op already on q with Canceled, in queue
// order (spec.md §4.2 Phase A, §5 cancellation).
func cancelQueued(q frontPopper, fq *finishq.Queue) {
	for _, op := range q.DrainAll() {
		cancel(op, opcore.StatusCanceled, fq)
	}
}

// disconnectQueued finishes every op already on q with Disconnected
// (spec.md §4.2 Phase A, stream-socket EOF/error semantics).
func disconnectQueued(q frontPopper, fq *finishq.Queue) {
	for _, op := range q.DrainAll() {
		finish(op, opcore.StatusDisconnected, op.Transferred, fq)
	}
}
