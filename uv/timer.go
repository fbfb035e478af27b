// File: uv/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Timer fires TimerEvent after a timeout and optionally every repeat
// interval afterwards. Times are measured against the loop's cached clock.

package uv

import (
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
	"github.com/momentics/hioload-uv/internal/concurrency"
)

// TimerEvent is published each time a timer expires.
type TimerEvent struct{}

// Timer is a one-shot or repeating timer handle.
type Timer struct {
	Handle[Timer]
	entry  *concurrency.TimerEntry
	repeat time.Duration
	armed  bool
}

// NewTimer creates and initializes a timer bound to l.
func NewTimer(l *Loop) (*Timer, error) {
	t := newTimer(l)
	return initialized(t, t.Init())
}

func newTimer(l *Loop) *Timer {
	t := &Timer{}
	t.bind(l, t, TimerHandle)
	t.entry = concurrency.NewTimerEntry(t.fire)
	t.teardown = t.disarm
	return t
}

// Init registers the timer with its loop.
func (t *Timer) Init() error {
	return t.init("timer init", nil)
}

// Start arms the timer. A zero repeat makes it one-shot; otherwise it fires
// again every repeat after the first expiry. Restarting an armed timer
// replaces its schedule.
func (t *Timer) Start(timeout, repeat time.Duration) error {
	const op = "timer start"
	if err := t.check(op); err != nil {
		return err
	}
	if timeout < 0 || repeat < 0 {
		return errArg(op, "negative duration")
	}
	t.repeat = repeat
	t.arm(t.loop.now + timeout)
	return nil
}

// Stop disarms the timer.
func (t *Timer) Stop() error {
	if err := t.check("timer stop"); err != nil {
		return err
	}
	t.disarm()
	t.setActive(false)
	return nil
}

// Again restarts a repeating timer using its repeat value as timeout. It
// fails with EINVAL when the timer was never started.
func (t *Timer) Again() error {
	const op = "timer again"
	if err := t.check(op); err != nil {
		return err
	}
	if t.state == StateInitialized {
		return errCode(op, api.EINVAL)
	}
	if t.repeat == 0 {
		t.disarm()
		t.setActive(false)
		return nil
	}
	t.arm(t.loop.now + t.repeat)
	return nil
}

// SetRepeat changes the repeat interval. It applies from the next expiry.
func (t *Timer) SetRepeat(repeat time.Duration) {
	if repeat >= 0 {
		t.repeat = repeat
	}
}

// Repeat returns the repeat interval.
func (t *Timer) Repeat() time.Duration {
	return t.repeat
}

// DueIn returns the time left before the next expiry, or zero when the
// timer is not armed or already due.
func (t *Timer) DueIn() time.Duration {
	if !t.armed || t.entry.Due <= t.loop.now {
		return 0
	}
	return t.entry.Due - t.loop.now
}

func (t *Timer) arm(due time.Duration) {
	t.armed = true
	t.loop.timers.Schedule(t.entry, due)
	t.setActive(true)
}

func (t *Timer) disarm() {
	t.armed = false
	t.loop.timers.Remove(t.entry)
}

func (t *Timer) fire() {
	if !t.armed || t.state != StateActive {
		return
	}
	if t.repeat > 0 {
		t.loop.timers.Schedule(t.entry, t.loop.now+t.repeat)
	} else {
		t.armed = false
		t.setActive(false)
	}
	emitter.Publish[TimerEvent, Timer](t, TimerEvent{})
}
