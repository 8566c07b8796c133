//go:build windows

package winexec

import (
	"golang.org/x/sys/windows"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/eXtremal-ik7/asyncio-go/internal/pool"
	"github.com/eXtremal-ik7/asyncio-go/internal/winio"
)

// Write drives op.Opcode == opcore.OpWrite via an overlapped WriteFile,
// the mirror image of Read's two-phase issue/inspect shape.
type Write struct {
	winio.Header
	Op     *opcore.Op
	issued bool
}

func NewWrite(op *opcore.Op) *Write { return &Write{Op: op} }

func (w *Write) Execute(obj *opcore.Object) opcore.Outcome {
	op := w.Op
	if !w.issued {
		return w.issue(obj)
	}
	if !w.Done {
		return opcore.Outcome{Result: opcore.ResultPending}
	}
	w.Done = false

	if w.Err != nil {
		return opcore.Outcome{Result: opcore.ResultFailure, N: op.Transferred, Status: statusFor(w.Err)}
	}
	op.Transferred += int(w.N)
	if op.Flags.Has(opcore.FlagWaitAll) && op.Transferred < op.Length {
		return w.issue(obj)
	}
	return opcore.Outcome{Result: opcore.ResultSuccess, N: op.Transferred}
}

func (w *Write) issue(obj *opcore.Object) opcore.Outcome {
	op := w.Op
	w.issued = true
	w.Err = nil
	w.N = 0
	var n uint32
	err := windows.WriteFile(windows.Handle(obj.Handle), op.Buffer[op.Transferred:op.Length], &n, &w.OV)
	if err != nil && !wouldBlock(err) {
		return opcore.Outcome{Result: opcore.ResultFailure, N: op.Transferred, Status: statusFor(err)}
	}
	return opcore.Outcome{Result: opcore.ResultPending}
}

func (w *Write) Finish(opcore.Status) { w.release() }
func (w *Write) Cancel(opcore.Status) { w.release() }

func (w *Write) release() {
	if w.Op.OwnedBuffer != nil {
		pool.PutBuffer(w.Op.OwnedBuffer)
		w.Op.OwnedBuffer = nil
	}
}
