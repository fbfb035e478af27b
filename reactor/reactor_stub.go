//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable reactor for platforms without an epoll backend. It supports the
// bounded wait and the wakeup only; fd readiness is reported as unsupported.

package reactor

import (
	"syscall"
	"time"

	"github.com/momentics/hioload-uv/api"
)

type portableReactor struct {
	wake chan struct{}
}

// NewReactor returns the portable reactor.
func NewReactor() (api.Reactor, error) {
	return &portableReactor{wake: make(chan struct{}, 1)}, nil
}

func (r *portableReactor) Register(int, api.PollFlags) error { return syscall.ENOSYS }
func (r *portableReactor) Modify(int, api.PollFlags) error   { return syscall.ENOSYS }
func (r *portableReactor) Unregister(int) error              { return syscall.ENOSYS }

func (r *portableReactor) Wait(timeout time.Duration, _ []api.Event) (int, error) {
	switch {
	case timeout == 0:
		select {
		case <-r.wake:
		default:
		}
	case timeout < 0:
		<-r.wake
	default:
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-r.wake:
		case <-t.C:
		}
	}
	return 0, nil
}

func (r *portableReactor) Wake() error {
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return nil
}

func (r *portableReactor) Descriptor() int { return -1 }

func (r *portableReactor) Close() error { return nil }
