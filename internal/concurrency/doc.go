// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives backing the loop: a bounded thread pool for blocking
// work with cancellation of not-yet-started tasks, and the timer queue that
// orders loop timers by due time.
package concurrency
