//go:build unix

// File: uv/sockopt_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw socket access for options and non-blocking writes that the net package
// does not expose.

package uv

import (
	"net"
	"syscall"

	"github.com/momentics/hioload-uv/api"
	"golang.org/x/sys/unix"
)

const (
	optSendBuffer = unix.SO_SNDBUF
	optRecvBuffer = unix.SO_RCVBUF
	optBroadcast  = unix.SO_BROADCAST
	msgTrunc      = unix.MSG_TRUNC
)

// udpControl applies Bind flags to the socket before bind(2).
func udpControl(flags UDPFlags) func(string, string, syscall.RawConn) error {
	if flags == 0 {
		return nil
	}
	return func(network, _ string, c syscall.RawConn) error {
		var serr error
		err := c.Control(func(fd uintptr) {
			if flags&UDPReuseAddr != 0 {
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			}
			if serr == nil && flags&UDPIPv6Only != 0 && network == "udp6" {
				serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1)
			}
		})
		if err != nil {
			return err
		}
		return serr
	}
}

type sockaddr = unix.Sockaddr

// toSockaddr converts a resolved UDP address; nil stays nil.
func toSockaddr(a *net.UDPAddr) sockaddr {
	if a == nil {
		return nil
	}
	if ip4 := a.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: a.Port}
		copy(sa.Addr[:], ip4)
		return sa
	}
	sa := &unix.SockaddrInet6{Port: a.Port}
	copy(sa.Addr[:], a.IP.To16())
	if a.Zone != "" {
		if ifi, err := net.InterfaceByName(a.Zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		}
	}
	return sa
}

func rawConn(c any) (syscall.RawConn, error) {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return nil, api.ENOTSUP
	}
	return sc.SyscallConn()
}

func getSockopt(c any, opt int) (int, error) {
	rc, err := rawConn(c)
	if err != nil {
		return 0, err
	}
	var v int
	var serr error
	if err := rc.Control(func(fd uintptr) {
		v, serr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, opt)
	}); err != nil {
		return 0, err
	}
	return v, serr
}

func setSockopt(c any, opt, value int) error {
	rc, err := rawConn(c)
	if err != nil {
		return err
	}
	var serr error
	if err := rc.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, opt, value)
	}); err != nil {
		return err
	}
	return serr
}

// rawWrite performs a single non-blocking write.
func rawWrite(c any, data []byte) (int, error) {
	rc, err := rawConn(c)
	if err != nil {
		return 0, err
	}
	var n int
	var werr error
	if err := rc.Write(func(fd uintptr) bool {
		n, werr = unix.Write(int(fd), data)
		return true
	}); err != nil {
		return 0, err
	}
	if n < 0 {
		n = 0
	}
	return n, werr
}

// rawSendTo performs a single non-blocking datagram send. A nil address
// sends to the connected peer.
func rawSendTo(c any, data []byte, to sockaddr) (int, error) {
	rc, err := rawConn(c)
	if err != nil {
		return 0, err
	}
	var werr error
	if err := rc.Write(func(fd uintptr) bool {
		if to == nil {
			_, werr = unix.Write(int(fd), data)
		} else {
			werr = unix.Sendto(int(fd), data, 0, to)
		}
		return true
	}); err != nil {
		return 0, err
	}
	if werr != nil {
		return 0, werr
	}
	return len(data), nil
}

// rawConnect connects or, with a nil address, disconnects a datagram socket.
func rawConnect(c any, to sockaddr) error {
	rc, err := rawConn(c)
	if err != nil {
		return err
	}
	var cerr error
	if err := rc.Control(func(fd uintptr) {
		if to == nil {
			cerr = disconnect(int(fd))
			return
		}
		cerr = unix.Connect(int(fd), to)
	}); err != nil {
		return err
	}
	return cerr
}

// sockFd returns the descriptor behind c, valid only while c stays open.
func sockFd(c any) (int, error) {
	rc, err := rawConn(c)
	if err != nil {
		return -1, err
	}
	fd := -1
	if err := rc.Control(func(v uintptr) { fd = int(v) }); err != nil {
		return -1, err
	}
	return fd, nil
}
