//go:build windows

package winexec

import (
	"net"
	"unsafe"

	"golang.org/x/sys/windows"
)

func addrToSockaddr(addr net.Addr) (windows.Sockaddr, error) {
	var ip net.IP
	var port int
	switch a := addr.(type) {
	case *net.TCPAddr:
		ip, port = a.IP, a.Port
	case *net.UDPAddr:
		ip, port = a.IP, a.Port
	default:
		return nil, windows.WSAEAFNOSUPPORT
	}
	if ip4 := ip.To4(); ip4 != nil {
		sa := &windows.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return sa, nil
	}
	sa := &windows.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	return sa, nil
}

func sockaddrToAddr(sa windows.Sockaddr) net.Addr {
	switch s := sa.(type) {
	case *windows.SockaddrInet4:
		return &net.TCPAddr{IP: append(net.IP(nil), s.Addr[:]...), Port: s.Port}
	case *windows.SockaddrInet6:
		return &net.TCPAddr{IP: append(net.IP(nil), s.Addr[:]...), Port: s.Port}
	default:
		return nil
	}
}

// rawSockaddrInet4Size/rawSockaddrInet6Size are sizeof(SOCKADDR_IN)
// and sizeof(SOCKADDR_IN6), the fixed buffer sizes AcceptEx needs per
// address slot (it requires at least 16 bytes of padding beyond the
// structure itself).
const (
	rawSockaddrInet4Size = 16
	rawSockaddrInet6Size = 28
	acceptExAddrSlotSize = int(unsafe.Sizeof(windows.RawSockaddrAny{}))
)
