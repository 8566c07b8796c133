//go:build windows

package winexec

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/eXtremal-ik7/asyncio-go/internal/winio"
)

// Connect drives op.Opcode == opcore.OpConnect via ConnectEx, which
// unlike connect(2) requires the socket to already be bound (to the
// wildcard address, since the caller never specifies a local address
// for an outbound connect) before it can be used.
type Connect struct {
	winio.Header
	Op     *opcore.Op
	issued bool
}

func NewConnect(op *opcore.Op) *Connect { return &Connect{Op: op} }

func (c *Connect) Execute(obj *opcore.Object) opcore.Outcome {
	if !c.issued {
		return c.issue(obj)
	}
	if !c.Done {
		return opcore.Outcome{Result: opcore.ResultPending}
	}
	c.Done = false

	if c.Err != nil {
		return opcore.Outcome{Result: opcore.ResultFailure, Status: statusFor(c.Err)}
	}
	return opcore.Outcome{Result: opcore.ResultSuccess}
}

func (c *Connect) issue(obj *opcore.Object) opcore.Outcome {
	c.issued = true
	s := windows.Handle(obj.Handle)

	if err := windows.Bind(s, &windows.SockaddrInet4{}); err != nil {
		return opcore.Outcome{Result: opcore.ResultFailure, Status: opcore.StatusUnknownError}
	}

	fn, err := connectExFunc(s)
	if err != nil {
		return opcore.Outcome{Result: opcore.ResultFailure, Status: opcore.StatusUnknownError}
	}

	sa, err := addrToSockaddr(c.Op.PeerAddress)
	if err != nil {
		return opcore.Outcome{Result: opcore.ResultFailure, Status: opcore.StatusUnknownError}
	}
	ptr, saLen := sockaddrPointer(sa)

	var sent uint32
	err = callConnectEx(fn, s, ptr, saLen, nil, 0, &sent, &c.OV)
	if err != nil && !wouldBlock(err) {
		return opcore.Outcome{Result: opcore.ResultFailure, Status: statusFor(err)}
	}
	return opcore.Outcome{Result: opcore.ResultPending}
}

func (c *Connect) Finish(opcore.Status) {}
func (c *Connect) Cancel(opcore.Status) {}

func sockaddrPointer(sa windows.Sockaddr) (unsafe.Pointer, int32) {
	switch s := sa.(type) {
	case *windows.SockaddrInet4:
		raw := sockaddrInet4ToRaw(s)
		return unsafe.Pointer(&raw), int32(unsafe.Sizeof(raw))
	case *windows.SockaddrInet6:
		raw := sockaddrInet6ToRaw(s)
		return unsafe.Pointer(&raw), int32(unsafe.Sizeof(raw))
	default:
		return nil, 0
	}
}

func sockaddrInet4ToRaw(sa *windows.SockaddrInet4) windows.RawSockaddrInet4 {
	raw := windows.RawSockaddrInet4{Family: windows.AF_INET}
	raw.Port = uint16(sa.Port>>8 | sa.Port<<8&0xff00)
	copy(raw.Addr[:], sa.Addr[:])
	return raw
}

func sockaddrInet6ToRaw(sa *windows.SockaddrInet6) windows.RawSockaddrInet6 {
	raw := windows.RawSockaddrInet6{Family: windows.AF_INET6}
	raw.Port = uint16(sa.Port>>8 | sa.Port<<8&0xff00)
	copy(raw.Addr[:], sa.Addr[:])
	return raw
}
