// File: uv/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One loop pass runs, in order: update time, due timers, queued completions,
// idle, prepare, poll, check, closing handles.

package uv

import (
	"slices"
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
)

// Run drives the loop according to mode. It reports whether work remains:
// true when the loop was stopped or a single pass left live work behind,
// false once drained.
func (l *Loop) Run(mode RunMode) (bool, error) {
	if l.closed {
		return false, errClosed("run")
	}
	if l.running {
		return false, errState("run", "loop is already running")
	}
	l.running = true
	defer func() { l.running = false }()

	alive := l.Alive()
	if !alive {
		l.updateTime()
	}
	for alive && !l.stopFlag {
		l.updateTime()
		l.runTimers()
		ranPending := l.runCompletions() > 0
		l.runHooks(l.idles)
		l.runHooks(l.prepares)

		var timeout time.Duration
		if (mode == RunOnce && !ranPending) || mode == RunDefault {
			timeout = l.backendTimeout()
		}
		l.metrics.Iterations++
		l.poll(timeout)
		l.runHooks(l.checks)
		l.runClosing()

		if mode == RunOnce {
			l.updateTime()
			l.runTimers()
		}
		alive = l.Alive()
		if mode != RunDefault {
			break
		}
	}
	l.stopFlag = false
	return alive, nil
}

func (l *Loop) backendTimeout() time.Duration {
	if l.stopFlag {
		return 0
	}
	if l.activeRefs == 0 && len(l.requests) == 0 && len(l.closing) == 0 {
		return 0
	}
	if len(l.idles) > 0 || l.queue.Len() > 0 || l.closingReady() {
		return 0
	}
	next, ok := l.timers.Next()
	if !ok {
		return -1
	}
	if next <= l.now {
		return 0
	}
	return next - l.now
}

func (l *Loop) closingReady() bool {
	for _, c := range l.closing {
		if c.closeReady() {
			return true
		}
	}
	return false
}

// runTimers fires timers due at the cached time. Timers started from a
// callback with a zero timeout fire on the next pass.
func (l *Loop) runTimers() {
	l.ready = l.ready[:0]
	for e := l.timers.PopDue(l.now); e != nil; e = l.timers.PopDue(l.now) {
		l.ready = append(l.ready, e)
	}
	for i := range l.ready {
		e := l.ready[i]
		l.ready[i] = nil
		if e.Scheduled() {
			continue
		}
		l.invoke(e.Fire)
	}
}

func (l *Loop) runCompletions() int {
	l.completions = l.queue.Drain(l.completions[:0])
	n := len(l.completions)
	for i := range l.completions {
		fn := l.completions[i]
		l.completions[i] = nil
		l.invoke(fn)
	}
	l.metrics.Events += uint64(n)
	return n
}

func (l *Loop) poll(timeout time.Duration) {
	start := l.clock.Now()
	n, err := l.backend.Wait(timeout, l.events)
	if timeout != 0 {
		l.metrics.IdleTime += l.clock.Since(start)
	}
	l.updateTime()
	if err != nil {
		l.log.Error().Err(err).Msg("reactor wait failed")
		l.invoke(func() {
			emitter.Publish[api.ErrorEvent, Loop](l, api.NewErrorEvent(err))
		})
	}
	for i := 0; i < n; i++ {
		ev := l.events[i]
		if p, ok := l.polls[ev.Fd]; ok {
			l.invoke(func() { p.dispatch(ev.Flags) })
		}
	}
	l.metrics.Events += uint64(n)
	l.runCompletions()
}

func (l *Loop) runHooks(list hookList) {
	if len(list) == 0 {
		return
	}
	for _, h := range slices.Clone(list) {
		if h.active {
			l.invoke(h.fire)
		}
	}
}

// runClosing finalizes handles closed before this pass whose helper
// operations have drained. Handles closed by CloseEvent listeners wait for
// the next pass.
func (l *Loop) runClosing() {
	for n := len(l.closing); n > 0; n-- {
		c := l.closing[0]
		l.closing = l.closing[1:]
		if !c.closeReady() {
			l.closing = append(l.closing, c)
			continue
		}
		l.invoke(c.finishClose)
	}
}

// invoke runs a callback that may publish to user listeners.
func (l *Loop) invoke(fn func()) {
	if l.opts.panicHandler == nil {
		fn()
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("listener panic recovered")
			l.opts.panicHandler(r)
		}
	}()
	fn()
}

// hook is an entry of the idle, prepare or check list.
type hook struct {
	fire   func()
	active bool
}

type hookList []*hook

func (hl *hookList) add(h *hook) {
	if h.active {
		return
	}
	h.active = true
	*hl = append(*hl, h)
}

func (hl *hookList) remove(h *hook) {
	if !h.active {
		return
	}
	h.active = false
	*hl = slices.DeleteFunc(*hl, func(x *hook) bool { return x == h })
}
