//go:build windows

package winexec

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/eXtremal-ik7/asyncio-go/internal/winio"
)

// Accept drives op.Opcode == opcore.OpAccept via AcceptEx: a fresh
// socket is created up front (AcceptEx, unlike accept(2), requires
// the callee to supply an already-created socket to bind the new
// connection to) and handed to the kernel along with a buffer sized
// for both endpoints' addresses.
type Accept struct {
	winio.Header
	Op         *opcore.Op
	listenSock windows.Handle
	acceptSock windows.Handle
	addrBuf    [2 * acceptExAddrSlotSize]byte
	issued     bool
}

func NewAccept(op *opcore.Op) *Accept { return &Accept{Op: op} }

func (a *Accept) Execute(obj *opcore.Object) opcore.Outcome {
	if !a.issued {
		return a.issue(obj)
	}
	if !a.Done {
		return opcore.Outcome{Result: opcore.ResultPending}
	}
	a.Done = false

	if a.Err != nil {
		windows.CloseHandle(a.acceptSock)
		return opcore.Outcome{Result: opcore.ResultFailure, Status: statusFor(a.Err)}
	}

	var localSA, remoteSA windows.Sockaddr
	var localLen, remoteLen int32
	getAcceptExSockaddrs(a.addrBuf[:], &localSA, &localLen, &remoteSA, &remoteLen)

	a.Op.AcceptedFD = int(a.acceptSock)
	a.Op.LocalAddress = sockaddrToAddr(localSA)
	a.Op.PeerAddress = sockaddrToAddr(remoteSA)
	return opcore.Outcome{Result: opcore.ResultSuccess}
}

func (a *Accept) issue(obj *opcore.Object) opcore.Outcome {
	a.issued = true
	a.listenSock = windows.Handle(obj.Handle)

	sock, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return opcore.Outcome{Result: opcore.ResultFailure, Status: opcore.StatusUnknownError}
	}
	a.acceptSock = sock

	fn, err := acceptExFunc(a.listenSock)
	if err != nil {
		windows.CloseHandle(sock)
		return opcore.Outcome{Result: opcore.ResultFailure, Status: opcore.StatusUnknownError}
	}

	var recvd uint32
	err = callAcceptEx(fn, a.listenSock, sock, &a.addrBuf[0], 0,
		uint32(acceptExAddrSlotSize), uint32(acceptExAddrSlotSize), &recvd, &a.OV)
	if err != nil && !wouldBlock(err) {
		windows.CloseHandle(sock)
		return opcore.Outcome{Result: opcore.ResultFailure, Status: statusFor(err)}
	}
	return opcore.Outcome{Result: opcore.ResultPending}
}

func (a *Accept) Finish(opcore.Status) {}

// Cancel closes the pre-created acceptor socket if the accept never
// completed or the caller never claimed AcceptedFD.
func (a *Accept) Cancel(opcore.Status) {
	if a.acceptSock != 0 {
		windows.CloseHandle(a.acceptSock)
		a.acceptSock = 0
	}
}

// getAcceptExSockaddrs splits AcceptEx's combined output buffer back
// into the local and remote windows.Sockaddr values, mirroring
// GetAcceptExSockaddrs without the extra syscall: both slots are
// fixed-size windows.RawSockaddrAny regions, so this decodes them
// in-process via windows.RawSockaddrAny's own address family tag.
func getAcceptExSockaddrs(buf []byte, localSA *windows.Sockaddr, localLen *int32, remoteSA *windows.Sockaddr, remoteLen *int32) {
	local := (*windows.RawSockaddrAny)(unsafe.Pointer(&buf[0]))
	remote := (*windows.RawSockaddrAny)(unsafe.Pointer(&buf[acceptExAddrSlotSize]))
	*localSA = rawToSockaddr(local)
	*remoteSA = rawToSockaddr(remote)
	*localLen = int32(acceptExAddrSlotSize)
	*remoteLen = int32(acceptExAddrSlotSize)
}

func rawToSockaddr(raw *windows.RawSockaddrAny) windows.Sockaddr {
	switch raw.Addr.Family {
	case windows.AF_INET:
		in4 := (*windows.RawSockaddrInet4)(unsafe.Pointer(raw))
		sa := &windows.SockaddrInet4{Port: int(in4.Port>>8 | in4.Port<<8&0xff00)}
		copy(sa.Addr[:], in4.Addr[:])
		return sa
	case windows.AF_INET6:
		in6 := (*windows.RawSockaddrInet6)(unsafe.Pointer(raw))
		sa := &windows.SockaddrInet6{Port: int(in6.Port>>8 | in6.Port<<8&0xff00)}
		copy(sa.Addr[:], in6.Addr[:])
		return sa
	default:
		return nil
	}
}
