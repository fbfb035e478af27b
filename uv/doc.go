// File: uv/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package uv is a resource-safe façade over a single-goroutine reactor.
//
// A Loop owns a reactor backend, a timer queue, a completion queue and the set
// of live resources bound to it. Handles (timers, sockets, pipes, signals,
// processes, polls, file watchers) are long-lived; requests (file system
// operations, DNS lookups, thread-pool work) complete exactly once. Both embed
// an emitter, and every event is published synchronously on the goroutine
// calling Loop.Run:
//
//	loop, _ := uv.New()
//	timer, _ := uv.NewTimer(loop)
//	emitter.On(timer, func(_ uv.TimerEvent, t *uv.Timer) { t.Close() })
//	_ = timer.Start(10*time.Millisecond, 0)
//	_, _ = loop.Run(uv.RunDefault)
//
// Blocking work runs on helper goroutines or the loop's thread pool and is
// handed back through the completion queue. Only Async.Send may be called
// from a goroutine other than the one driving the loop.
//
// Default returns the process-wide loop. It is created on first use and torn
// down by ShutdownDefault; it is the only global lifecycle state in the
// package.
package uv
