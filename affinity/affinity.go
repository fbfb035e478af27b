// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files guarded by build tags.

package affinity

import (
	"errors"
	"runtime"
)

// ErrUnsupported is returned where thread affinity cannot be set.
var ErrUnsupported = errors.New("affinity: not supported on this platform")

// SetAffinity pins the current OS thread to a logical CPU. The caller must
// hold the thread with runtime.LockOSThread.
func SetAffinity(cpuID int) error {
	if cpuID < 0 {
		return errors.New("affinity: negative cpu")
	}
	return setAffinityPlatform(cpuID)
}

// PinLoopThread locks the calling goroutine to its OS thread and pins that
// thread to cpuID modulo the CPU count. The lock is never released, so the
// thread is discarded when the goroutine exits.
func PinLoopThread(cpuID int) error {
	runtime.LockOSThread()
	return SetAffinity(cpuID % runtime.NumCPU())
}
