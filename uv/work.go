// File: uv/work.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WorkReq runs a task on the loop's thread pool and reports back on the
// loop goroutine.

package uv

import (
	"github.com/momentics/hioload-uv/emitter"
)

// WorkEvent is published after the task returned.
type WorkEvent struct{}

// WorkReq is a thread-pool request. The task must not touch loop resources.
type WorkReq struct {
	Request[WorkReq]
	task func() error
}

// NewWork creates a request for task.
func NewWork(l *Loop, task func() error) *WorkReq {
	w := &WorkReq{task: task}
	w.bind(l, w, WorkRequest)
	return w
}

// Queue submits the task. A task error completes the request with
// ErrorEvent instead of WorkEvent.
func (w *WorkReq) Queue() error {
	const op = "work queue"
	if w.task == nil {
		return errArg(op, "nil task")
	}
	return w.schedule(op, w.task, func() {
		emitter.Publish[WorkEvent, WorkReq](w, WorkEvent{})
	})
}
