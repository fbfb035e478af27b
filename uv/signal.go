// File: uv/signal.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Signal delivers process signals on the loop goroutine.

package uv

import (
	"os"
	"os/signal"

	"github.com/momentics/hioload-uv/emitter"
)

// SignalEvent carries the received signal.
type SignalEvent struct {
	Signum os.Signal
}

// Signal watches one signal at a time.
type Signal struct {
	Handle[Signal]
	signum  os.Signal
	oneShot bool
	ch      chan os.Signal
	done    chan struct{}
	gen     uint64
}

// NewSignal creates and initializes a signal handle.
func NewSignal(l *Loop) (*Signal, error) {
	s := &Signal{}
	s.bind(l, s, SignalHandle)
	s.teardown = s.unwatch
	return initialized(s, s.Init())
}

// Init registers the handle with its loop.
func (s *Signal) Init() error {
	return s.init("signal init", nil)
}

// Start watches sig until Stop. Starting again replaces the watched signal.
func (s *Signal) Start(sig os.Signal) error {
	return s.start("signal start", sig, false)
}

// OneShot watches sig and stops after the first delivery.
func (s *Signal) OneShot(sig os.Signal) error {
	return s.start("signal oneshot", sig, true)
}

// Stop stops watching.
func (s *Signal) Stop() error {
	if err := s.check("signal stop"); err != nil {
		return err
	}
	s.unwatch()
	s.setActive(false)
	return nil
}

// Signum returns the watched signal, or nil.
func (s *Signal) Signum() os.Signal {
	return s.signum
}

func (s *Signal) start(op string, sig os.Signal, oneShot bool) error {
	if err := s.check(op); err != nil {
		return err
	}
	if sig == nil {
		return errArg(op, "nil signal")
	}
	s.unwatch()
	s.signum = sig
	s.oneShot = oneShot
	s.gen++
	s.ch = make(chan os.Signal, 1)
	s.done = make(chan struct{})
	signal.Notify(s.ch, sig)
	go s.relay(s.ch, s.done, s.gen)
	s.setActive(true)
	return nil
}

func (s *Signal) relay(ch <-chan os.Signal, done <-chan struct{}, gen uint64) {
	for {
		select {
		case sig := <-ch:
			s.loop.post(func() { s.deliver(gen, sig) })
		case <-done:
			return
		}
	}
}

func (s *Signal) deliver(gen uint64, sig os.Signal) {
	if gen != s.gen || s.state != StateActive {
		return
	}
	if s.oneShot {
		s.unwatch()
		s.setActive(false)
	}
	emitter.Publish[SignalEvent, Signal](s, SignalEvent{Signum: sig})
}

func (s *Signal) unwatch() {
	if s.ch == nil {
		return
	}
	signal.Stop(s.ch)
	close(s.done)
	s.ch, s.done = nil, nil
}
