// File: uv/pipe.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pipe streams over unix domain sockets, or over an already open file such
// as one end of os.Pipe or a child process stdio.

package uv

import (
	"context"
	"net"
	"os"

	"github.com/momentics/hioload-uv/api"
)

// Pipe is a local stream handle.
type Pipe struct {
	Stream[Pipe]
	name string
}

// NewPipe creates and initializes a pipe handle.
func NewPipe(l *Loop) (*Pipe, error) {
	p := &Pipe{}
	p.bindStream(l, p, PipeHandle)
	return initialized(p, p.Init())
}

// Init registers the handle with its loop.
func (p *Pipe) Init() error {
	return p.init("pipe init", nil)
}

// Bind records the socket path used by Listen.
func (p *Pipe) Bind(name string) error {
	const op = "pipe bind"
	if err := p.check(op); err != nil {
		return err
	}
	if name == "" {
		return errArg(op, "empty name")
	}
	if p.conn != nil || p.listening {
		return errCode(op, api.EISCONN)
	}
	p.name = name
	return nil
}

// Listen starts accepting connections on the bound path.
func (p *Pipe) Listen(backlog int) error {
	const op = "pipe listen"
	if err := p.check(op); err != nil {
		return err
	}
	if backlog < 0 {
		return errArg(op, "negative backlog")
	}
	if p.name == "" {
		return errCode(op, api.EINVAL)
	}
	if p.listening {
		return nil
	}
	ln, err := net.Listen("unix", p.name)
	if err != nil {
		return errOp(op, err)
	}
	p.listen(ln)
	return nil
}

// Accept moves the pending connection into client.
func (p *Pipe) Accept(client *Pipe) error {
	return p.accept(&client.Stream)
}

// Connect dials the socket at name.
func (p *Pipe) Connect(name string) error {
	const op = "pipe connect"
	if name == "" {
		return errArg(op, "empty name")
	}
	var d net.Dialer
	err := p.connect(op, func(ctx context.Context) (net.Conn, error) {
		return d.DialContext(ctx, "unix", name)
	})
	if err == nil {
		p.name = name
	}
	return err
}

// Open adopts an open file. The handle owns f from now on.
func (p *Pipe) Open(f *os.File) error {
	const op = "pipe open"
	if err := p.check(op); err != nil {
		return err
	}
	if f == nil {
		return errCode(op, api.EBADF)
	}
	if p.conn != nil || p.listening {
		return errCode(op, api.EISCONN)
	}
	p.attach(f)
	return nil
}

// Sock returns the bound path.
func (p *Pipe) Sock() string {
	return p.name
}

// Peer returns the path of the peer socket, if known.
func (p *Pipe) Peer() string {
	if c, ok := p.conn.(net.Conn); ok && c.RemoteAddr() != nil {
		return c.RemoteAddr().String()
	}
	return ""
}
