//go:build !windows

package ioexec

import (
	"golang.org/x/sys/unix"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
)

// Connect drives op.Opcode == opcore.OpConnect: a nonblocking
// connect(2) on the object's descriptor to the op's PeerAddress (the
// target supplied by the caller at submission time). The first
// Execute issues the syscall; once the descriptor reports writable, a
// second Execute reads SO_ERROR to learn whether the handshake
// actually succeeded (original_source/src/asyncio/socketPosix.c's
// aioConnect does the same EINPROGRESS-then-getsockopt dance).
type Connect struct {
	Op     *opcore.Op
	issued bool
}

// NewConnect builds the executor for a connect op. It must be
// assigned to op.Executor before the op is submitted.
func NewConnect(op *opcore.Op) *Connect { return &Connect{Op: op} }

func (c *Connect) Execute(obj *opcore.Object) opcore.Outcome {
	fd := int(obj.Handle)
	if !c.issued {
		c.issued = true
		sa, err := addrToSockaddr(c.Op.PeerAddress)
		if err != nil {
			return opcore.Outcome{Result: opcore.ResultFailure, Status: opcore.StatusUnknownError}
		}
		if err := unix.Connect(fd, sa); err != nil {
			if wouldBlock(err) {
				return opcore.Outcome{Result: opcore.ResultPending}
			}
			return opcore.Outcome{Result: opcore.ResultFailure, Status: statusFor(err)}
		}
		return opcore.Outcome{Result: opcore.ResultSuccess}
	}

	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return opcore.Outcome{Result: opcore.ResultFailure, Status: opcore.StatusUnknownError}
	}
	if errno != 0 {
		return opcore.Outcome{Result: opcore.ResultFailure, Status: statusFor(unix.Errno(errno))}
	}
	return opcore.Outcome{Result: opcore.ResultSuccess}
}

func (c *Connect) Finish(opcore.Status) {}
func (c *Connect) Cancel(opcore.Status) {}
