// File: uv/pump.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// pump performs one blocking call at a time on a helper goroutine. The loop
// asks for the next call with kick and receives the result through the
// completion queue, so a handle that stopped reading never sees a result it
// did not ask for.

package uv

type inflightCounter interface {
	begin()
	end()
}

type pump[R any] struct {
	loop    *Loop
	owner   inflightCounter
	call    func() R
	deliver func(R)

	resume  chan struct{}
	done    chan struct{}
	busy    bool
	started bool
}

func newPump[R any](l *Loop, owner inflightCounter, call func() R, deliver func(R)) *pump[R] {
	return &pump[R]{loop: l, owner: owner, call: call, deliver: deliver}
}

// kick requests one more call unless one is already in flight.
func (p *pump[R]) kick() {
	if p.busy || (p.started && p.done == nil) {
		return
	}
	if !p.started {
		p.started = true
		p.resume = make(chan struct{}, 1)
		p.done = make(chan struct{})
		go p.run(p.resume, p.done)
	}
	p.busy = true
	p.owner.begin()
	p.resume <- struct{}{}
}

// Busy reports whether a call is in flight.
func (p *pump[R]) Busy() bool {
	return p.busy
}

// stop makes the goroutine exit once the call in flight, if any, returns.
func (p *pump[R]) stop() {
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
}

func (p *pump[R]) run(resume <-chan struct{}, done <-chan struct{}) {
	for {
		select {
		case <-resume:
		case <-done:
			select {
			case <-resume:
			default:
				return
			}
		}
		r := p.call()
		p.loop.post(func() {
			p.busy = false
			p.owner.end()
			p.deliver(r)
		})
	}
}
