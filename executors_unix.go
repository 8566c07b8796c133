//go:build !windows

package asyncio

import (
	"github.com/eXtremal-ik7/asyncio-go/internal/ioexec"
	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
)

// The facade itself carries no build tag; these thin factory functions
// are its only platform-specific seam, picking internal/ioexec's
// syscall-backed executors on POSIX and internal/winexec's overlapped
// ones (executors_windows.go) on Windows.
func newConnectExecutor(op *opcore.Op) opcore.Executor  { return ioexec.NewConnect(op) }
func newAcceptExecutor(op *opcore.Op) opcore.Executor   { return ioexec.NewAccept(op) }
func newReadExecutor(op *opcore.Op) opcore.Executor     { return ioexec.NewRead(op) }
func newWriteExecutor(op *opcore.Op) opcore.Executor    { return ioexec.NewWrite(op) }
func newReadMsgExecutor(op *opcore.Op) opcore.Executor  { return ioexec.NewReadMsg(op) }
func newWriteMsgExecutor(op *opcore.Op) opcore.Executor { return ioexec.NewWriteMsg(op) }
