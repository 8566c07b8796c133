//go:build !windows

package ioexec

import (
	"golang.org/x/sys/unix"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
)

// Read drives op.Opcode == opcore.OpRead: a nonblocking read(2) into
// op.Buffer[op.Transferred:op.Length]. A zero-byte read is EOF, which
// spec.md §4.8 requires to surface as StatusDisconnected rather than a
// zero-length Success. With FlagWaitAll set, a short read updates
// op.Transferred and returns Pending instead of Success so the
// combiner leaves the op at its queue head for the next readiness
// event (spec.md §4.8: "the executor instead returns Pending after
// updating the partial count").
type Read struct {
	Op *opcore.Op
}

func NewRead(op *opcore.Op) *Read { return &Read{Op: op} }

func (r *Read) Execute(obj *opcore.Object) opcore.Outcome {
	op := r.Op
	n, err := unix.Read(int(obj.Handle), op.Buffer[op.Transferred:op.Length])
	if err != nil {
		if wouldBlock(err) {
			return opcore.Outcome{Result: opcore.ResultPending}
		}
		return opcore.Outcome{Result: opcore.ResultFailure, N: op.Transferred, Status: statusFor(err)}
	}
	if n == 0 {
		return opcore.Outcome{Result: opcore.ResultFailure, N: op.Transferred, Status: opcore.StatusDisconnected}
	}
	op.Transferred += n
	if op.Flags.Has(opcore.FlagWaitAll) && op.Transferred < op.Length {
		return opcore.Outcome{Result: opcore.ResultPending}
	}
	return opcore.Outcome{Result: opcore.ResultSuccess, N: op.Transferred}
}

func (r *Read) Finish(opcore.Status) {}
func (r *Read) Cancel(opcore.Status) {}
