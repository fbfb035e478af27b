//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux epoll(7)-based reactor implementation and factory. An eventfd is kept
// in the interest set so Wake can interrupt a blocked Wait.

package reactor

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/momentics/hioload-uv/api"
	"golang.org/x/sys/unix"
)

// linuxReactor is an epoll-based, level-triggered event reactor.
type linuxReactor struct {
	epfd   int
	wakefd int
	raw    []unix.EpollEvent
}

// NewReactor constructs a new platform-specific Reactor for Linux.
func NewReactor() (api.Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakefd: %w", err)
	}
	return &linuxReactor{epfd: epfd, wakefd: wakefd}, nil
}

func toEpoll(flags api.PollFlags) uint32 {
	var ev uint32
	if flags&api.Readable != 0 {
		ev |= unix.EPOLLIN
	}
	if flags&api.Writable != 0 {
		ev |= unix.EPOLLOUT
	}
	if flags&api.Disconnect != 0 {
		ev |= unix.EPOLLRDHUP
	}
	if flags&api.Prioritized != 0 {
		ev |= unix.EPOLLPRI
	}
	return ev
}

func fromEpoll(ev uint32) api.PollFlags {
	var flags api.PollFlags
	if ev&unix.EPOLLIN != 0 {
		flags |= api.Readable
	}
	if ev&unix.EPOLLOUT != 0 {
		flags |= api.Writable
	}
	if ev&unix.EPOLLRDHUP != 0 {
		flags |= api.Disconnect
	}
	if ev&unix.EPOLLPRI != 0 {
		flags |= api.Prioritized
	}
	// errors surface as readiness so the owner's next syscall reports them
	if ev&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		flags |= api.Readable | api.Writable
	}
	return flags
}

// Register adds fd to the epoll interest set.
func (r *linuxReactor) Register(fd int, flags api.PollFlags) error {
	if fd == r.wakefd {
		return unix.EINVAL
	}
	ev := unix.EpollEvent{Events: toEpoll(flags), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

// Modify replaces the watched flags of fd.
func (r *linuxReactor) Modify(fd int, flags api.PollFlags) error {
	ev := unix.EpollEvent{Events: toEpoll(flags), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

// Unregister removes fd from the epoll interest set.
func (r *linuxReactor) Unregister(fd int) error {
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Wait blocks up to timeout for readiness. Wakeups are consumed internally and
// never reported as events.
func (r *linuxReactor) Wait(timeout time.Duration, events []api.Event) (int, error) {
	ms := -1
	if timeout >= 0 {
		ms = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}
	want := len(events) + 1
	if cap(r.raw) < want {
		r.raw = make([]unix.EpollEvent, want)
	}
	raw := r.raw[:want]

	n, err := unix.EpollWait(r.epfd, raw, ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil // interrupted by signal, normal
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}

	out := 0
	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)
		if fd == r.wakefd {
			r.drainWake()
			continue
		}
		if out == len(events) {
			break
		}
		events[out] = api.Event{Fd: fd, Flags: fromEpoll(raw[i].Events)}
		out++
	}
	return out, nil
}

func (r *linuxReactor) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(r.wakefd, buf[:]); err != nil {
			return
		}
	}
}

// Wake interrupts a blocked Wait. Safe for concurrent use.
func (r *linuxReactor) Wake() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(r.wakefd, buf[:]); err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Descriptor returns the epoll file descriptor.
func (r *linuxReactor) Descriptor() int {
	return r.epfd
}

// Close releases the epoll instance and the wakeup eventfd.
func (r *linuxReactor) Close() error {
	errWake := unix.Close(r.wakefd)
	errEp := unix.Close(r.epfd)
	if errEp != nil {
		return errEp
	}
	return errWake
}
