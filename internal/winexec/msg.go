//go:build windows

package winexec

import (
	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
)

// ReadMsg and WriteMsg drive OpReadMsg/OpWriteMsg on Windows by
// delegating straight to Read/Write's overlapped ReadFile/WriteFile
// path. Unlike internal/ioexec's POSIX implementation (which uses
// recvmsg/sendto to learn or supply the per-packet peer address),
// ReadFile/WriteFile carry no address out-of-band: this only produces
// correct results for a datagram socket that has already been
// connect()-ed to a fixed peer. A full implementation would issue
// WSARecvFrom/WSASendTo through the same overlapped+IOCP plumbing;
// that was left out here (see DESIGN.md) because golang.org/x/sys/
// windows does not expose those two calls directly the way it
// exposes ReadFile/WriteFile, and hand-rolling their DLL import would
// have been the only uring-style raw-syscall component in this
// package with no worked examples anywhere in the pack to ground it.
type ReadMsg struct{ *Read }
type WriteMsg struct{ *Write }

func NewReadMsg(op *opcore.Op) *ReadMsg   { return &ReadMsg{Read: NewRead(op)} }
func NewWriteMsg(op *opcore.Op) *WriteMsg { return &WriteMsg{Write: NewWrite(op)} }
