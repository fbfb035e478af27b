// File: uv/tcp.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TCP streams: servers bind and listen, clients connect, accepted
// connections are handed to a fresh TCP handle through Accept.

package uv

import (
	"context"
	"net"
	"time"

	"github.com/momentics/hioload-uv/api"
)

// TCP is a TCP stream handle.
type TCP struct {
	Stream[TCP]
	local     *net.TCPAddr
	noDelay   *bool
	keepAlive *time.Duration // zero disables
}

// NewTCP creates and initializes a TCP handle.
func NewTCP(l *Loop) (*TCP, error) {
	t := &TCP{}
	t.bindStream(l, t, TCPHandle)
	t.onAttachHook = t.applyOptions
	return initialized(t, t.Init())
}

// Init registers the handle with its loop.
func (t *TCP) Init() error {
	return t.init("tcp init", nil)
}

// Bind records the local address used by Listen and Connect.
func (t *TCP) Bind(addr Addr) error {
	const op = "tcp bind"
	if err := t.check(op); err != nil {
		return err
	}
	if t.conn != nil || t.listening {
		return errCode(op, api.EISCONN)
	}
	a, err := net.ResolveTCPAddr("tcp", addr.String())
	if err != nil {
		return errOp(op, err)
	}
	t.local = a
	return nil
}

// Listen starts accepting connections on the bound address. The kernel
// backlog is the system default; backlog is only validated.
func (t *TCP) Listen(backlog int) error {
	const op = "tcp listen"
	if err := t.check(op); err != nil {
		return err
	}
	if backlog < 0 {
		return errArg(op, "negative backlog")
	}
	if t.listening {
		return nil
	}
	if t.conn != nil {
		return errCode(op, api.EISCONN)
	}
	addr := ":0"
	if t.local != nil {
		addr = t.local.String()
	}
	ln, err := net.Listen(network("tcp", t.local), addr)
	if err != nil {
		return errOp(op, err)
	}
	t.listen(ln)
	t.log.Debug().Str("addr", ln.Addr().String()).Msg("listening")
	return nil
}

// Accept moves the pending connection into client. It fails with EAGAIN
// when no connection is pending.
func (t *TCP) Accept(client *TCP) error {
	return t.accept(&client.Stream)
}

// Connect dials addr. ConnectEvent or ErrorEvent follows.
func (t *TCP) Connect(addr Addr) error {
	const op = "tcp connect"
	if _, err := net.ResolveTCPAddr("tcp", addr.String()); err != nil {
		return errOp(op, err)
	}
	d := net.Dialer{}
	if t.local != nil {
		d.LocalAddr = t.local
	}
	return t.connect(op, func(ctx context.Context) (net.Conn, error) {
		return d.DialContext(ctx, "tcp", addr.String())
	})
}

// NoDelay toggles Nagle's algorithm.
func (t *TCP) NoDelay(on bool) error {
	if err := t.check("tcp nodelay"); err != nil {
		return err
	}
	t.noDelay = &on
	return t.applyErr("tcp nodelay")
}

// KeepAlive toggles TCP keep-alive with the given idle delay.
func (t *TCP) KeepAlive(on bool, delay time.Duration) error {
	if err := t.check("tcp keepalive"); err != nil {
		return err
	}
	if !on {
		delay = 0
	} else if delay <= 0 {
		delay = 15 * time.Second
	}
	t.keepAlive = &delay
	return t.applyErr("tcp keepalive")
}

// Sock returns the local address.
func (t *TCP) Sock() (Addr, error) {
	switch {
	case t.listener != nil:
		return AddrFrom(t.listener.Addr()), nil
	case t.conn != nil:
		return AddrFrom(t.conn.(net.Conn).LocalAddr()), nil
	}
	return Addr{}, errCode("tcp sock", api.ENOTCONN)
}

// Peer returns the remote address.
func (t *TCP) Peer() (Addr, error) {
	if t.conn == nil {
		return Addr{}, errCode("tcp peer", api.ENOTCONN)
	}
	return AddrFrom(t.conn.(net.Conn).RemoteAddr()), nil
}

// CloseReset closes the connection with an RST instead of a FIN.
func (t *TCP) CloseReset() error {
	if err := t.check("tcp close reset"); err != nil {
		return err
	}
	if c, ok := t.conn.(*net.TCPConn); ok {
		if err := c.SetLinger(0); err != nil {
			return errOp("tcp close reset", err)
		}
	}
	t.Close()
	return nil
}

// SendBufferSize returns SO_SNDBUF of the connection.
func (t *TCP) SendBufferSize() (int, error) {
	return t.sockopt("send buffer size", optSendBuffer)
}

// RecvBufferSize returns SO_RCVBUF of the connection.
func (t *TCP) RecvBufferSize() (int, error) {
	return t.sockopt("recv buffer size", optRecvBuffer)
}

// SetSendBufferSize sets SO_SNDBUF of the connection.
func (t *TCP) SetSendBufferSize(n int) error {
	return t.setSockopt("set send buffer size", optSendBuffer, n)
}

// SetRecvBufferSize sets SO_RCVBUF of the connection.
func (t *TCP) SetRecvBufferSize(n int) error {
	return t.setSockopt("set recv buffer size", optRecvBuffer, n)
}

func (t *TCP) sockopt(op string, opt int) (int, error) {
	if err := t.check(op); err != nil {
		return 0, err
	}
	if t.conn == nil {
		return 0, errCode(op, api.ENOTCONN)
	}
	v, err := getSockopt(t.conn, opt)
	if err != nil {
		return 0, errOp(op, err)
	}
	return v, nil
}

func (t *TCP) setSockopt(op string, opt, value int) error {
	if err := t.check(op); err != nil {
		return err
	}
	if t.conn == nil {
		return errCode(op, api.ENOTCONN)
	}
	if value <= 0 {
		return errArg(op, "buffer size must be positive")
	}
	if err := setSockopt(t.conn, opt, value); err != nil {
		return errOp(op, err)
	}
	return nil
}

func (t *TCP) applyOptions() {
	if err := t.applyErr("tcp options"); err != nil {
		t.log.Debug().Err(err).Msg("apply socket options")
	}
}

// applyErr pushes pending options to an established connection.
func (t *TCP) applyErr(op string) error {
	c, ok := t.conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if t.noDelay != nil {
		if err := c.SetNoDelay(*t.noDelay); err != nil {
			return errOp(op, err)
		}
	}
	if t.keepAlive != nil {
		if err := c.SetKeepAlive(*t.keepAlive > 0); err != nil {
			return errOp(op, err)
		}
		if *t.keepAlive > 0 {
			if err := c.SetKeepAlivePeriod(*t.keepAlive); err != nil {
				return errOp(op, err)
			}
		}
	}
	return nil
}

// network narrows "tcp"/"udp" to the family of a bound address.
func network(base string, local net.Addr) string {
	var ip net.IP
	switch a := local.(type) {
	case *net.TCPAddr:
		if a != nil {
			ip = a.IP
		}
	case *net.UDPAddr:
		if a != nil {
			ip = a.IP
		}
	}
	switch {
	case ip == nil:
		return base
	case ip.To4() != nil:
		return base + "4"
	}
	return base + "6"
}
