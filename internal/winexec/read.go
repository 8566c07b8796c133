//go:build windows

package winexec

import (
	"golang.org/x/sys/windows"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/eXtremal-ik7/asyncio-go/internal/winio"
)

// Read drives op.Opcode == opcore.OpRead via an overlapped ReadFile.
// The first Execute call issues the I/O and returns ResultPending
// unconditionally (IOCP always completes asynchronously, never
// synchronously inline, in this implementation); the second call,
// made once the IOCP backend has stashed the completion on Header,
// inspects Header.Err/N and returns the terminal Outcome — the same
// two-phase shape internal/ioexec's Connect uses for the POSIX
// nonblocking-connect handshake.
type Read struct {
	winio.Header
	Op     *opcore.Op
	issued bool
}

func NewRead(op *opcore.Op) *Read { return &Read{Op: op} }

func (r *Read) Execute(obj *opcore.Object) opcore.Outcome {
	op := r.Op
	if !r.issued {
		return r.issue(obj)
	}
	if !r.Done {
		// Phase C drives both queue heads on every wake-up; this one
		// simply has nothing new yet.
		return opcore.Outcome{Result: opcore.ResultPending}
	}
	r.Done = false

	if r.Err != nil {
		return opcore.Outcome{Result: opcore.ResultFailure, N: op.Transferred, Status: statusFor(r.Err)}
	}
	if r.N == 0 {
		return opcore.Outcome{Result: opcore.ResultFailure, N: op.Transferred, Status: opcore.StatusDisconnected}
	}
	op.Transferred += int(r.N)
	if op.Flags.Has(opcore.FlagWaitAll) && op.Transferred < op.Length {
		return r.issue(obj)
	}
	return opcore.Outcome{Result: opcore.ResultSuccess, N: op.Transferred}
}

// issue starts (or restarts, for a WaitAll continuation) one
// overlapped ReadFile call and always reports Pending: this
// implementation never completes a ReadFile synchronously, even when
// Windows could, to keep every result delivered through the single
// IOCP completion path the backend already drains.
func (r *Read) issue(obj *opcore.Object) opcore.Outcome {
	op := r.Op
	r.issued = true
	r.Err = nil
	r.N = 0
	var n uint32
	err := windows.ReadFile(windows.Handle(obj.Handle), op.Buffer[op.Transferred:op.Length], &n, &r.OV)
	if err != nil && !wouldBlock(err) {
		return opcore.Outcome{Result: opcore.ResultFailure, N: op.Transferred, Status: statusFor(err)}
	}
	return opcore.Outcome{Result: opcore.ResultPending}
}

func (r *Read) Finish(opcore.Status) {}
func (r *Read) Cancel(opcore.Status) {}
