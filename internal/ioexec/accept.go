//go:build !windows

package ioexec

import (
	"golang.org/x/sys/unix"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
)

// Accept drives op.Opcode == opcore.OpAccept: a nonblocking accept4(2)
// on a bound, listening stream socket. On success it stashes the new
// descriptor and the peer's address on the op (AcceptedFD,
// PeerAddress); the facade reads both back out once the op reaches
// StatusSuccess.
type Accept struct {
	Op *opcore.Op
}

func NewAccept(op *opcore.Op) *Accept { return &Accept{Op: op} }

func (a *Accept) Execute(obj *opcore.Object) opcore.Outcome {
	fd, sa, err := unix.Accept4(int(obj.Handle), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if wouldBlock(err) {
			return opcore.Outcome{Result: opcore.ResultPending}
		}
		return opcore.Outcome{Result: opcore.ResultFailure, Status: statusFor(err)}
	}
	a.Op.AcceptedFD = fd
	a.Op.PeerAddress = sockaddrToAddr(sa, "tcp")
	return opcore.Outcome{Result: opcore.ResultSuccess}
}

// Finish does nothing: a.Op.AcceptedFD is only ever set inside a
// successful Execute, whose descriptor is handed to the caller, so a
// Timeout/Canceled finish has no descriptor to close.
func (a *Accept) Finish(status opcore.Status) {}

// Cancel closes a connection that was accepted in the kernel but whose
// op is being canceled before the caller could claim the descriptor —
// this can only happen if a cancel-all races a just-completed accept
// still sitting in the thread-local finished queue, which this
// runtime's InvokeCallback-before-recycle ordering prevents; Cancel
// still closes a nonzero AcceptedFD and clears it, so the descriptor is
// not leaked if that ordering is ever violated.
func (a *Accept) Cancel(status opcore.Status) {
	if a.Op.AcceptedFD != 0 {
		unix.Close(a.Op.AcceptedFD)
		a.Op.AcceptedFD = 0
	}
}
