// File: uv/poll.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Poll watches a file descriptor for readiness through the loop backend.
// Backends without descriptor polling make Init fail.

package uv

import (
	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
)

// PollEvent reports the readiness observed for the watched descriptor.
type PollEvent struct {
	Flags api.PollFlags
}

// Poll is bound to one descriptor for its whole life.
type Poll struct {
	Handle[Poll]
	fd         int
	flags      api.PollFlags
	registered bool
}

// NewPoll creates and initializes a poll handle for fd. The caller keeps
// ownership of fd and must not close it before the handle is closed.
func NewPoll(l *Loop, fd int) (*Poll, error) {
	p := &Poll{fd: fd}
	p.bind(l, p, PollHandle)
	p.teardown = p.unregister
	return initialized(p, p.Init())
}

// Init registers the descriptor with the backend.
func (p *Poll) Init() error {
	return p.init("poll init", func() error {
		if p.fd < 0 {
			return api.EBADF
		}
		if _, dup := p.loop.polls[p.fd]; dup {
			return api.EEXIST
		}
		if err := p.loop.backend.Register(p.fd, 0); err != nil {
			return err
		}
		p.registered = true
		p.loop.polls[p.fd] = p
		return nil
	})
}

// Fd returns the watched descriptor.
func (p *Poll) Fd() int {
	return p.fd
}

// Start watches for the given readiness flags, replacing previous ones.
func (p *Poll) Start(flags api.PollFlags) error {
	const op = "poll start"
	if err := p.check(op); err != nil {
		return err
	}
	if flags == 0 {
		return errArg(op, "no poll flags")
	}
	if err := p.loop.backend.Modify(p.fd, flags); err != nil {
		return errOp(op, err)
	}
	p.flags = flags
	p.setActive(true)
	return nil
}

// Stop stops watching the descriptor.
func (p *Poll) Stop() error {
	const op = "poll stop"
	if err := p.check(op); err != nil {
		return err
	}
	if err := p.loop.backend.Modify(p.fd, 0); err != nil {
		return errOp(op, err)
	}
	p.flags = 0
	p.setActive(false)
	return nil
}

func (p *Poll) dispatch(flags api.PollFlags) {
	if p.state != StateActive {
		return
	}
	got := flags & (p.flags | api.Disconnect)
	if got == 0 {
		return
	}
	emitter.Publish[PollEvent, Poll](p, PollEvent{Flags: got})
}

func (p *Poll) unregister() {
	if !p.registered {
		return
	}
	p.registered = false
	delete(p.loop.polls, p.fd)
	if err := p.loop.backend.Unregister(p.fd); err != nil {
		p.log.Debug().Err(err).Msg("poll unregister")
	}
}
