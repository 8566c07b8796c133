//go:build !windows

// Package ioexec supplies the Linux executor implementations for the
// six I/O opcodes the combiner drives (spec.md §3.2/§4.8): connect,
// accept, read, write, read-msg, write-msg. Each is a nonblocking
// syscall attempt wrapped in the opcore.Executor three-method vtable
// (spec.md §9's "model as a trait/interface" note), so the combiner
// never knows it is talking to raw file descriptors rather than some
// other transport.
//
// Grounded on original_source/src/asyncio/socketPosix.c's nonblocking
// read/write/recvfrom/sendto/connect/accept4 shape, translated from
// the original's single combined "process" callback per opcode into
// one Go type per opcode implementing opcore.Executor, per spec.md
// §9's vtable-not-inheritance note.
package ioexec

import (
	"net"

	"golang.org/x/sys/unix"
)

// sockaddrToAddr converts a raw kernel sockaddr into a net.Addr, used
// to report a peer address on accept and read-msg.
func sockaddrToAddr(sa unix.Sockaddr, network string) net.Addr {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, s.Addr[:])
		return addrOf(network, ip, s.Port)
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, s.Addr[:])
		return addrOf(network, ip, s.Port)
	default:
		return nil
	}
}

func addrOf(network string, ip net.IP, port int) net.Addr {
	if network == "udp" {
		return &net.UDPAddr{IP: ip, Port: port}
	}
	return &net.TCPAddr{IP: ip, Port: port}
}

// addrToSockaddr converts a net.Addr (TCPAddr or UDPAddr) into the
// kernel sockaddr connect/sendto expect.
func addrToSockaddr(addr net.Addr) (unix.Sockaddr, error) {
	var ip net.IP
	var port int
	switch a := addr.(type) {
	case *net.TCPAddr:
		ip, port = a.IP, a.Port
	case *net.UDPAddr:
		ip, port = a.IP, a.Port
	default:
		return nil, unix.EAFNOSUPPORT
	}
	if v4 := ip.To4(); v4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], v4)
		return sa, nil
	}
	v6 := ip.To16()
	if v6 == nil {
		return nil, unix.EAFNOSUPPORT
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], v6)
	return sa, nil
}
