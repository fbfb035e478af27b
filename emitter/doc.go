// File: emitter/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package emitter provides the typed publish/subscribe table embedded in every
// loop resource. Listeners are keyed by the static event type, so publishing
// never inspects event values at run time:
//
//	conn := emitter.On(timer, func(ev uv.TimerEvent, t *uv.Timer) { ... })
//	emitter.Erase(timer, conn)
package emitter
