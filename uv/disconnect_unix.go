//go:build linux || darwin || freebsd

// File: uv/disconnect_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package uv

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// disconnect dissolves a datagram association by connecting to AF_UNSPEC.
// BSD kernels report EAFNOSUPPORT after disconnecting.
func disconnect(fd int) error {
	sa := unix.RawSockaddr{Family: unix.AF_UNSPEC}
	_, _, errno := unix.Syscall(unix.SYS_CONNECT, uintptr(fd), uintptr(unsafe.Pointer(&sa)), unsafe.Sizeof(sa))
	if errno != 0 && errno != unix.EAFNOSUPPORT {
		return errno
	}
	return nil
}
