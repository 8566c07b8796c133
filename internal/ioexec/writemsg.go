//go:build !windows

package ioexec

import (
	"golang.org/x/sys/unix"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/eXtremal-ik7/asyncio-go/internal/pool"
)

// WriteMsg drives op.Opcode == opcore.OpWriteMsg: a single nonblocking
// sendto(2) to op.PeerAddress. Datagram writes are never partial at
// the socket layer, so unlike Write there is no WaitAll looping.
type WriteMsg struct {
	Op *opcore.Op
}

func NewWriteMsg(op *opcore.Op) *WriteMsg { return &WriteMsg{Op: op} }

func (w *WriteMsg) Execute(obj *opcore.Object) opcore.Outcome {
	op := w.Op
	sa, err := addrToSockaddr(op.PeerAddress)
	if err != nil {
		return opcore.Outcome{Result: opcore.ResultFailure, Status: opcore.StatusUnknownError}
	}
	if err := unix.Sendto(int(obj.Handle), op.Buffer[:op.Length], 0, sa); err != nil {
		if wouldBlock(err) {
			return opcore.Outcome{Result: opcore.ResultPending}
		}
		return opcore.Outcome{Result: opcore.ResultFailure, Status: statusFor(err)}
	}
	op.Transferred = op.Length
	return opcore.Outcome{Result: opcore.ResultSuccess, N: op.Length}
}

func (w *WriteMsg) Finish(opcore.Status) { w.release() }
func (w *WriteMsg) Cancel(opcore.Status) { w.release() }

func (w *WriteMsg) release() {
	if w.Op.OwnedBuffer != nil {
		pool.PutBuffer(w.Op.OwnedBuffer)
		w.Op.OwnedBuffer = nil
	}
}
