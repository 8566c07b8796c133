//go:build windows

package winexec

import (
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// AcceptEx and ConnectEx are not ordinary Winsock exports; every
// process must fetch their addresses once per socket type via
// WSAIoctl(SIO_GET_EXTENSION_FUNCTION_POINTER), the same dance Go's
// own net package does internally. The two function values are stable
// for the lifetime of the process once resolved, so this package
// resolves each exactly once and shares the pointer across every
// socket (a documented, widely used shortcut — see DESIGN.md).
var (
	acceptExOnce sync.Once
	acceptExAddr uintptr
	acceptExErr  error

	connectExOnce sync.Once
	connectExAddr uintptr
	connectExErr  error
)

var (
	wsaidAcceptEx  = windows.GUID{Data1: 0xb5367df1, Data2: 0xcbac, Data3: 0x11cf, Data4: [8]byte{0x95, 0xca, 0x00, 0x80, 0x5f, 0x48, 0xa1, 0x92}}
	wsaidConnectEx = windows.GUID{Data1: 0x25a207b9, Data2: 0xddf3, Data3: 0x4660, Data4: [8]byte{0x8e, 0xe9, 0x76, 0xe5, 0x8c, 0x74, 0x06, 0x3e}}
)

// sioGetExtensionFunctionPointer is SIO_GET_EXTENSION_FUNCTION_POINTER
// from the Windows SDK's mswsock.h (0xC8000006); golang.org/x/sys/windows
// does not re-export it.
const sioGetExtensionFunctionPointer = 0xC8000006

func loadExtensionFunc(s windows.Handle, guid *windows.GUID) (uintptr, error) {
	var addr uintptr
	var bytesReturned uint32
	err := windows.WSAIoctl(
		s,
		sioGetExtensionFunctionPointer,
		(*byte)(unsafe.Pointer(guid)), uint32(unsafe.Sizeof(*guid)),
		(*byte)(unsafe.Pointer(&addr)), uint32(unsafe.Sizeof(addr)),
		&bytesReturned, nil, 0,
	)
	return addr, err
}

func acceptExFunc(s windows.Handle) (uintptr, error) {
	acceptExOnce.Do(func() { acceptExAddr, acceptExErr = loadExtensionFunc(s, &wsaidAcceptEx) })
	return acceptExAddr, acceptExErr
}

func connectExFunc(s windows.Handle) (uintptr, error) {
	connectExOnce.Do(func() { connectExAddr, connectExErr = loadExtensionFunc(s, &wsaidConnectEx) })
	return connectExAddr, connectExErr
}

// callAcceptEx invokes the AcceptEx function pointer directly via
// Syscall9, matching its native prototype: it accepts one connection
// into acceptSocket (already created, not yet connected) and can
// optionally receive the first block of data plus both addresses into
// buf, which must be sized at least 2*(addrLen+16).
func callAcceptEx(fn uintptr, listenSocket, acceptSocket windows.Handle, buf *byte, recvLen, localAddrLen, remoteAddrLen uint32, bytesReceived *uint32, ov *windows.Overlapped) error {
	r1, _, e1 := syscall.Syscall9(fn,
		9,
		uintptr(listenSocket), uintptr(acceptSocket),
		uintptr(unsafe.Pointer(buf)), uintptr(recvLen),
		uintptr(localAddrLen), uintptr(remoteAddrLen),
		uintptr(unsafe.Pointer(bytesReceived)), uintptr(unsafe.Pointer(ov)),
		0)
	if r1 == 0 {
		return e1
	}
	return nil
}

// callConnectEx invokes the ConnectEx function pointer. The socket
// must already be bound (to INADDR_ANY for a client connect) before
// this is called, which is ConnectEx's one surprising precondition
// relative to plain connect(2).
func callConnectEx(fn uintptr, s windows.Handle, sa unsafe.Pointer, saLen int32, sendBuf *byte, sendLen uint32, bytesSent *uint32, ov *windows.Overlapped) error {
	r1, _, e1 := syscall.Syscall9(fn,
		9,
		uintptr(s), uintptr(sa), uintptr(saLen),
		uintptr(unsafe.Pointer(sendBuf)), uintptr(sendLen),
		uintptr(unsafe.Pointer(bytesSent)), uintptr(unsafe.Pointer(ov)),
		0, 0)
	if r1 == 0 {
		return e1
	}
	return nil
}
