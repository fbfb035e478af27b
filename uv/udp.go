// File: uv/udp.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// UDP datagram handle. Sends are serialized on a writer goroutine and
// complete with SendEvent; receives run on a pump while RecvStart is active.

package uv

import (
	"context"
	"net"
	"syscall"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// UDPDataEvent carries one received datagram.
type UDPDataEvent struct {
	Data    []byte
	Sender  Addr
	Partial bool // the datagram was truncated
}

// SendEvent is published when one Send completed.
type SendEvent struct{}

// UDPFlags modify Bind.
type UDPFlags int

const (
	// UDPReuseAddr sets SO_REUSEADDR before binding.
	UDPReuseAddr UDPFlags = 1 << iota
	// UDPIPv6Only disables dual-stack on IPv6 sockets.
	UDPIPv6Only
)

// Membership selects join or leave for multicast groups.
type Membership int

const (
	LeaveGroup Membership = iota
	JoinGroup
)

type udpResult struct {
	data    []byte
	from    *net.UDPAddr
	partial bool
	err     error
}

// UDP is a datagram socket handle.
type UDP struct {
	Handle[UDP]
	conn      *net.UDPConn
	peer      *net.UDPAddr
	receiving bool
	reader    *pump[udpResult]
	stash     []udpResult
	out       *writer
	sendBytes int
	sendCount int
}

// NewUDP creates and initializes a UDP handle.
func NewUDP(l *Loop) (*UDP, error) {
	u := &UDP{}
	u.bind(l, u, UDPHandle)
	u.teardown = u.closeNative
	return initialized(u, u.Init())
}

// Init registers the handle with its loop.
func (u *UDP) Init() error {
	return u.init("udp init", nil)
}

// Bind creates the socket on addr.
func (u *UDP) Bind(addr Addr, flags UDPFlags) error {
	const op = "udp bind"
	if err := u.check(op); err != nil {
		return err
	}
	if u.conn != nil {
		return errCode(op, api.EINVAL)
	}
	a, err := addr.udp()
	if err != nil {
		return errOp(op, err)
	}
	if err := u.open(a, flags); err != nil {
		return errOp(op, err)
	}
	return nil
}

func (u *UDP) open(a *net.UDPAddr, flags UDPFlags) error {
	lc := net.ListenConfig{Control: udpControl(flags)}
	pc, err := lc.ListenPacket(context.Background(), network("udp", a), a.String())
	if err != nil {
		return err
	}
	u.conn = pc.(*net.UDPConn)
	return nil
}

// ensureBound binds to the wildcard address of to's family, as the first
// send or connect on an unbound socket does.
func (u *UDP) ensureBound(to *net.UDPAddr) error {
	if u.conn != nil {
		return nil
	}
	wild := &net.UDPAddr{IP: net.IPv4zero}
	if to != nil && to.IP.To4() == nil {
		wild.IP = net.IPv6unspecified
	}
	return u.open(wild, 0)
}

// Connect associates the socket with a default peer.
func (u *UDP) Connect(addr Addr) error {
	const op = "udp connect"
	if err := u.check(op); err != nil {
		return err
	}
	if u.peer != nil {
		return errCode(op, api.EISCONN)
	}
	a, err := addr.udp()
	if err != nil {
		return errOp(op, err)
	}
	if err := u.ensureBound(a); err != nil {
		return errOp(op, err)
	}
	if err := rawConnect(u.conn, toSockaddr(u.mapped(a))); err != nil {
		return errOp(op, err)
	}
	u.peer = a
	return nil
}

// Disconnect dissolves the association made by Connect.
func (u *UDP) Disconnect() error {
	const op = "udp disconnect"
	if err := u.check(op); err != nil {
		return err
	}
	if u.peer == nil {
		return errCode(op, api.ENOTCONN)
	}
	if err := rawConnect(u.conn, nil); err != nil {
		return errOp(op, err)
	}
	u.peer = nil
	return nil
}

// Send queues one datagram. A zero Addr sends to the connected peer.
func (u *UDP) Send(to Addr, data []byte) error {
	const op = "udp send"
	dst, err := u.destination(op, to)
	if err != nil {
		return err
	}
	req := newStreamReq(u.loop, UDPSendRequest)
	emitter.On[api.ErrorEvent, streamReq](req, func(ev api.ErrorEvent, _ *streamReq) {
		if u.state >= StateClosing {
			ev.Code = api.ECANCELED
		}
		emitter.Publish[api.ErrorEvent, UDP](u, ev)
	})
	req.success = func() { emitter.Publish[SendEvent, UDP](u, SendEvent{}) }
	if err := req.start(op); err != nil {
		return err
	}
	if u.out == nil {
		u.out = newWriter(u.conn)
		go u.out.run(u.loop)
	}
	wop := writeOp{data: data, req: req}
	if dst != nil {
		wop.to = dst
	}
	u.begin()
	u.sendBytes += len(data)
	u.sendCount++
	wop.done = func(err error) {
		u.end()
		u.sendBytes -= len(data)
		u.sendCount--
		req.complete(err)
	}
	u.out.push(wop)
	return nil
}

// TrySend sends one datagram without queueing. It fails with EAGAIN while
// queued sends are pending.
func (u *UDP) TrySend(to Addr, data []byte) (int, error) {
	const op = "udp try send"
	dst, err := u.destination(op, to)
	if err != nil {
		return 0, err
	}
	if u.sendCount > 0 {
		return 0, errCode(op, api.EAGAIN)
	}
	n, err := rawSendTo(u.conn, data, toSockaddr(u.mapped(dst)))
	if err != nil {
		return 0, errOp(op, err)
	}
	return n, nil
}

func (u *UDP) destination(op string, to Addr) (*net.UDPAddr, error) {
	if err := u.check(op); err != nil {
		return nil, err
	}
	if to.IP == "" {
		if u.peer == nil {
			return nil, errCode(op, api.EDESTADDRREQ)
		}
		return nil, nil
	}
	if u.peer != nil {
		return nil, errCode(op, api.EISCONN)
	}
	a, err := to.udp()
	if err != nil {
		return nil, errOp(op, err)
	}
	if err := u.ensureBound(a); err != nil {
		return nil, errOp(op, err)
	}
	return a, nil
}

// mapped turns an IPv4 destination into its v4-mapped form on IPv6 sockets.
func (u *UDP) mapped(a *net.UDPAddr) *net.UDPAddr {
	if a == nil || !u.v6() || a.IP.To4() == nil {
		return a
	}
	return &net.UDPAddr{IP: a.IP.To16(), Port: a.Port}
}

func (u *UDP) v6() bool {
	la, ok := u.conn.LocalAddr().(*net.UDPAddr)
	return ok && la.IP.To4() == nil
}

// RecvStart begins publishing UDPDataEvent.
func (u *UDP) RecvStart() error {
	const op = "udp recv start"
	if err := u.check(op); err != nil {
		return err
	}
	if u.receiving {
		return nil
	}
	if err := u.ensureBound(nil); err != nil {
		return errOp(op, err)
	}
	if u.reader == nil {
		conn := u.conn
		u.reader = newPump(u.loop, u, func() udpResult {
			return readDatagram(conn)
		}, u.onRecv)
	}
	u.receiving = true
	u.setActive(true)
	if len(u.stash) > 0 {
		u.loop.post(u.replay)
		return nil
	}
	u.reader.kick()
	return nil
}

type msgReader interface {
	ReadMsgUDP(b, oob []byte) (n, oobn, flags int, addr *net.UDPAddr, err error)
}

// readDatagram performs one blocking receive. A read interrupted by Close
// reports n as -1.
func readDatagram(c msgReader) udpResult {
	buf := make([]byte, readBufferSize)
	n, _, flags, from, err := c.ReadMsgUDP(buf, nil)
	n = max(n, 0)
	return udpResult{data: buf[:n:n], from: from, partial: flags&msgTrunc != 0, err: err}
}

// RecvStop stops publishing UDPDataEvent.
func (u *UDP) RecvStop() error {
	if err := u.check("udp recv stop"); err != nil {
		return err
	}
	u.receiving = false
	u.setActive(false)
	return nil
}

func (u *UDP) onRecv(r udpResult) {
	if u.state >= StateClosing {
		return
	}
	if !u.receiving {
		u.stash = append(u.stash, r)
		return
	}
	u.emitRecv(r)
	if u.receiving && u.state < StateClosing {
		u.reader.kick()
	}
}

func (u *UDP) replay() {
	for len(u.stash) > 0 && u.receiving && u.state < StateClosing {
		r := u.stash[0]
		u.stash = u.stash[1:]
		u.emitRecv(r)
	}
	if len(u.stash) == 0 && u.receiving && u.state < StateClosing {
		u.reader.kick()
	}
}

func (u *UDP) emitRecv(r udpResult) {
	if r.err != nil {
		u.fail(r.err)
		return
	}
	emitter.Publish[UDPDataEvent, UDP](u, UDPDataEvent{
		Data:    r.data,
		Sender:  AddrFrom(r.from),
		Partial: r.partial,
	})
}

// Sock returns the bound address.
func (u *UDP) Sock() (Addr, error) {
	if u.conn == nil {
		return Addr{}, errCode("udp sock", api.EBADF)
	}
	return AddrFrom(u.conn.LocalAddr()), nil
}

// Peer returns the connected peer.
func (u *UDP) Peer() (Addr, error) {
	if u.peer == nil {
		return Addr{}, errCode("udp peer", api.ENOTCONN)
	}
	return AddrFrom(u.peer), nil
}

// SendQueueSize returns the number of bytes queued for sending.
func (u *UDP) SendQueueSize() int {
	return u.sendBytes
}

// SendQueueCount returns the number of queued sends.
func (u *UDP) SendQueueCount() int {
	return u.sendCount
}

// SetMembership joins or leaves a multicast group on the named interface;
// an empty iface lets the system choose.
func (u *UDP) SetMembership(group, iface string, m Membership) error {
	return u.multicast("udp membership", func(p4 *ipv4.PacketConn, p6 *ipv6.PacketConn) error {
		ip := net.ParseIP(group)
		if ip == nil {
			return api.EINVAL
		}
		ifi, err := lookupInterface(iface)
		if err != nil {
			return err
		}
		g := &net.UDPAddr{IP: ip}
		switch {
		case p4 != nil && m == JoinGroup:
			return p4.JoinGroup(ifi, g)
		case p4 != nil:
			return p4.LeaveGroup(ifi, g)
		case m == JoinGroup:
			return p6.JoinGroup(ifi, g)
		default:
			return p6.LeaveGroup(ifi, g)
		}
	})
}

// SetSourceMembership joins or leaves a source-specific multicast group.
func (u *UDP) SetSourceMembership(group, source, iface string, m Membership) error {
	return u.multicast("udp source membership", func(p4 *ipv4.PacketConn, p6 *ipv6.PacketConn) error {
		g, s := net.ParseIP(group), net.ParseIP(source)
		if g == nil || s == nil {
			return api.EINVAL
		}
		ifi, err := lookupInterface(iface)
		if err != nil {
			return err
		}
		ga, sa := &net.UDPAddr{IP: g}, &net.UDPAddr{IP: s}
		switch {
		case p4 != nil && m == JoinGroup:
			return p4.JoinSourceSpecificGroup(ifi, ga, sa)
		case p4 != nil:
			return p4.LeaveSourceSpecificGroup(ifi, ga, sa)
		case m == JoinGroup:
			return p6.JoinSourceSpecificGroup(ifi, ga, sa)
		default:
			return p6.LeaveSourceSpecificGroup(ifi, ga, sa)
		}
	})
}

// SetMulticastLoop toggles local loopback of multicast datagrams.
func (u *UDP) SetMulticastLoop(on bool) error {
	return u.multicast("udp multicast loop", func(p4 *ipv4.PacketConn, p6 *ipv6.PacketConn) error {
		if p4 != nil {
			return p4.SetMulticastLoopback(on)
		}
		return p6.SetMulticastLoopback(on)
	})
}

// SetMulticastTTL sets the multicast time to live, 1 through 255.
func (u *UDP) SetMulticastTTL(ttl int) error {
	if ttl < 1 || ttl > 255 {
		return errArg("udp multicast ttl", "ttl out of range")
	}
	return u.multicast("udp multicast ttl", func(p4 *ipv4.PacketConn, p6 *ipv6.PacketConn) error {
		if p4 != nil {
			return p4.SetMulticastTTL(ttl)
		}
		return p6.SetMulticastHopLimit(ttl)
	})
}

// SetMulticastInterface selects the outgoing multicast interface by name.
func (u *UDP) SetMulticastInterface(iface string) error {
	return u.multicast("udp multicast interface", func(p4 *ipv4.PacketConn, p6 *ipv6.PacketConn) error {
		ifi, err := lookupInterface(iface)
		if err != nil {
			return err
		}
		if p4 != nil {
			return p4.SetMulticastInterface(ifi)
		}
		return p6.SetMulticastInterface(ifi)
	})
}

// SetTTL sets the unicast time to live, 1 through 255.
func (u *UDP) SetTTL(ttl int) error {
	if ttl < 1 || ttl > 255 {
		return errArg("udp ttl", "ttl out of range")
	}
	return u.multicast("udp ttl", func(p4 *ipv4.PacketConn, p6 *ipv6.PacketConn) error {
		if p4 != nil {
			return p4.SetTTL(ttl)
		}
		return p6.SetHopLimit(ttl)
	})
}

// SetBroadcast toggles SO_BROADCAST.
func (u *UDP) SetBroadcast(on bool) error {
	const op = "udp broadcast"
	if err := u.check(op); err != nil {
		return err
	}
	if u.conn == nil {
		return errCode(op, api.EBADF)
	}
	v := 0
	if on {
		v = 1
	}
	if err := setSockopt(u.conn, optBroadcast, v); err != nil {
		return errOp(op, err)
	}
	return nil
}

// SendBufferSize returns SO_SNDBUF.
func (u *UDP) SendBufferSize() (int, error) {
	if u.conn == nil {
		return 0, errCode("udp send buffer size", api.EBADF)
	}
	v, err := getSockopt(u.conn, optSendBuffer)
	if err != nil {
		return 0, errOp("udp send buffer size", err)
	}
	return v, nil
}

// RecvBufferSize returns SO_RCVBUF.
func (u *UDP) RecvBufferSize() (int, error) {
	if u.conn == nil {
		return 0, errCode("udp recv buffer size", api.EBADF)
	}
	v, err := getSockopt(u.conn, optRecvBuffer)
	if err != nil {
		return 0, errOp("udp recv buffer size", err)
	}
	return v, nil
}

// SetSendBufferSize sets SO_SNDBUF.
func (u *UDP) SetSendBufferSize(n int) error {
	return u.setBuffer("udp set send buffer size", optSendBuffer, n)
}

// SetRecvBufferSize sets SO_RCVBUF.
func (u *UDP) SetRecvBufferSize(n int) error {
	return u.setBuffer("udp set recv buffer size", optRecvBuffer, n)
}

func (u *UDP) setBuffer(op string, opt, n int) error {
	if err := u.check(op); err != nil {
		return err
	}
	if u.conn == nil {
		return errCode(op, api.EBADF)
	}
	if n <= 0 {
		return errArg(op, "buffer size must be positive")
	}
	if err := setSockopt(u.conn, opt, n); err != nil {
		return errOp(op, err)
	}
	return nil
}

// Fd returns the socket descriptor once bound.
func (u *UDP) Fd() (int, error) {
	const op = "udp fileno"
	if err := u.check(op); err != nil {
		return -1, err
	}
	if u.conn == nil {
		return -1, errCode(op, api.EBADF)
	}
	fd, err := sockFd(u.conn)
	if err != nil {
		return -1, errOp(op, err)
	}
	return fd, nil
}

func (u *UDP) multicast(op string, fn func(*ipv4.PacketConn, *ipv6.PacketConn) error) error {
	if err := u.check(op); err != nil {
		return err
	}
	if u.conn == nil {
		return errCode(op, api.EBADF)
	}
	var err error
	if u.v6() {
		err = fn(nil, ipv6.NewPacketConn(u.conn))
	} else {
		err = fn(ipv4.NewPacketConn(u.conn), nil)
	}
	if err != nil {
		return errOp(op, err)
	}
	return nil
}

func (u *UDP) closeNative() {
	u.receiving = false
	if u.conn != nil {
		_ = u.conn.Close()
	}
	if u.reader != nil {
		u.reader.stop()
	}
	if u.out != nil {
		u.out.stop()
	}
	u.stash = nil
}

func lookupInterface(name string) (*net.Interface, error) {
	if name == "" {
		return nil, nil
	}
	if ifi, err := net.InterfaceByName(name); err == nil {
		return ifi, nil
	}
	ip := net.ParseIP(name)
	if ip == nil {
		return nil, syscall.ENODEV
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		addrs, _ := ifaces[i].Addrs()
		for _, a := range addrs {
			if n, ok := a.(*net.IPNet); ok && n.IP.Equal(ip) {
				return &ifaces[i], nil
			}
		}
	}
	return nil, syscall.ENODEV
}
