// File: reactor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package reactor provides the native reactor primitive the loop is built on:
// an epoll instance with an eventfd wakeup on Linux, a portable channel based
// backend elsewhere, and the completion queue helper goroutines use to hand
// results back to the goroutine driving the loop.
package reactor
