//go:build !windows

package ioexec

import (
	"golang.org/x/sys/unix"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
)

// ReadMsg drives op.Opcode == opcore.OpReadMsg: a single nonblocking
// recvmsg(2) on a datagram socket. recvmsg (rather than plain
// recvfrom) is used specifically so the MSG_TRUNC return flag can
// distinguish "the whole datagram fit" from "the kernel silently
// dropped the tail" — spec.md §6's read-msg failure mode
// "BufferTooSmall (datagram truncation)" has no other reliable signal
// on Linux.
type ReadMsg struct {
	Op *opcore.Op
}

func NewReadMsg(op *opcore.Op) *ReadMsg { return &ReadMsg{Op: op} }

func (r *ReadMsg) Execute(obj *opcore.Object) opcore.Outcome {
	op := r.Op
	n, _, recvflags, from, err := unix.Recvmsg(int(obj.Handle), op.Buffer[:op.Length], nil, 0)
	if err != nil {
		if wouldBlock(err) {
			return opcore.Outcome{Result: opcore.ResultPending}
		}
		return opcore.Outcome{Result: opcore.ResultFailure, Status: statusFor(err)}
	}
	if recvflags&unix.MSG_TRUNC != 0 {
		return opcore.Outcome{Result: opcore.ResultFailure, Status: opcore.StatusBufferTooSmall}
	}
	op.PeerAddress = sockaddrToAddr(from, "udp")
	op.Transferred = n
	return opcore.Outcome{Result: opcore.ResultSuccess, N: n}
}

func (r *ReadMsg) Finish(opcore.Status) {}
func (r *ReadMsg) Cancel(opcore.Status) {}
