// File: uv/fspoll.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// FsPoll stats a path on the thread pool at a fixed interval and publishes
// FsPollEvent when the result changes.

package uv

import (
	"os"
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
	"github.com/momentics/hioload-uv/internal/concurrency"
)

// FsPollEvent carries the stat results before and after a change.
type FsPollEvent struct {
	Prev FileInfo
	Curr FileInfo
}

// FsPoll is a stat-polling handle.
type FsPoll struct {
	Handle[FsPoll]
	path     string
	interval time.Duration
	entry    *concurrency.TimerEntry
	gen      uint64

	primed  bool
	prev    FileInfo
	prevErr api.ErrorCode
}

// NewFsPoll creates and initializes an fs poll handle.
func NewFsPoll(l *Loop) (*FsPoll, error) {
	p := &FsPoll{}
	p.bind(l, p, FsPollHandle)
	p.entry = concurrency.NewTimerEntry(p.tick)
	p.teardown = p.halt
	return initialized(p, p.Init())
}

// Init registers the handle with its loop.
func (p *FsPoll) Init() error {
	return p.init("fs poll init", nil)
}

// Start polls path every interval. The first stat only records a baseline.
func (p *FsPoll) Start(path string, interval time.Duration) error {
	const op = "fs poll start"
	if err := p.check(op); err != nil {
		return err
	}
	if path == "" {
		return errArg(op, "empty path")
	}
	if interval <= 0 {
		return errArg(op, "interval must be positive")
	}
	p.halt()
	p.path = path
	p.interval = interval
	p.primed = false
	p.prev = FileInfo{}
	p.prevErr = 0
	p.setActive(true)
	p.tick()
	return nil
}

// Stop stops polling.
func (p *FsPoll) Stop() error {
	if err := p.check("fs poll stop"); err != nil {
		return err
	}
	p.halt()
	p.setActive(false)
	return nil
}

// Path returns the polled path.
func (p *FsPoll) Path() string {
	return p.path
}

func (p *FsPoll) halt() {
	p.gen++
	p.loop.timers.Remove(p.entry)
}

func (p *FsPoll) tick() {
	if p.state != StateActive {
		return
	}
	gen, path := p.gen, p.path
	p.begin()
	_, err := p.loop.pool.Submit(func() {
		fi, err := os.Stat(path)
		p.loop.post(func() {
			p.end()
			p.onStat(gen, fi, err)
		})
	})
	if err != nil {
		p.end()
		p.fail(err)
	}
}

func (p *FsPoll) onStat(gen uint64, fi os.FileInfo, err error) {
	if gen != p.gen || p.state != StateActive {
		return
	}
	p.loop.timers.Schedule(p.entry, p.loop.now+p.interval)
	if err != nil {
		code := api.Translate(err)
		p.prev = FileInfo{}
		p.primed = true
		if code != p.prevErr {
			p.prevErr = code
			p.fail(err)
		}
		return
	}
	curr := fileInfoOf(fi)
	changed := p.primed && (p.prevErr != 0 || !sameStat(p.prev, curr))
	prev := p.prev
	p.prev, p.prevErr, p.primed = curr, 0, true
	if changed {
		emitter.Publish[FsPollEvent, FsPoll](p, FsPollEvent{Prev: prev, Curr: curr})
	}
}

func sameStat(a, b FileInfo) bool {
	return a.Size == b.Size && a.Mode == b.Mode && a.ModTime.Equal(b.ModTime)
}
