//go:build !windows

package ioexec

import (
	"golang.org/x/sys/unix"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/eXtremal-ik7/asyncio-go/internal/pool"
)

// Write drives op.Opcode == opcore.OpWrite: a nonblocking write(2)
// from op.Buffer[op.Transferred:op.Length]. Per spec.md §5, the
// submission path has already copied the caller's bytes into
// op.OwnedBuffer (and pointed op.Buffer at it) unless FlagNoCopy was
// set, in which case op.Buffer aliases the caller's own slice and the
// caller owns its lifetime until completion.
type Write struct {
	Op *opcore.Op
}

func NewWrite(op *opcore.Op) *Write { return &Write{Op: op} }

func (w *Write) Execute(obj *opcore.Object) opcore.Outcome {
	op := w.Op
	n, err := unix.Write(int(obj.Handle), op.Buffer[op.Transferred:op.Length])
	if err != nil {
		if wouldBlock(err) {
			return opcore.Outcome{Result: opcore.ResultPending}
		}
		return opcore.Outcome{Result: opcore.ResultFailure, N: op.Transferred, Status: statusFor(err)}
	}
	op.Transferred += n
	if op.Flags.Has(opcore.FlagWaitAll) && op.Transferred < op.Length {
		return opcore.Outcome{Result: opcore.ResultPending}
	}
	return opcore.Outcome{Result: opcore.ResultSuccess, N: op.Transferred}
}

// Finish and Cancel release the submission-time copy back to the
// arena (spec.md §5's owned scratch buffer), unless FlagNoCopy left
// op.OwnedBuffer nil because the caller's own buffer was used
// directly.
func (w *Write) Finish(opcore.Status) { w.release() }
func (w *Write) Cancel(opcore.Status) { w.release() }

func (w *Write) release() {
	if w.Op.OwnedBuffer != nil {
		pool.PutBuffer(w.Op.OwnedBuffer)
		w.Op.OwnedBuffer = nil
	}
}
