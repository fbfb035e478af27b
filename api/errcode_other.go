//go:build !unix

// File: api/errcode_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fallback errno naming for platforms without x/sys/unix.

package api

import "syscall"

var fallbackNames = map[syscall.Errno]string{
	syscall.EACCES:       "EACCES",
	syscall.EADDRINUSE:   "EADDRINUSE",
	syscall.EAGAIN:       "EAGAIN",
	syscall.EALREADY:     "EALREADY",
	syscall.EBADF:        "EBADF",
	syscall.EBUSY:        "EBUSY",
	syscall.ECANCELED:    "ECANCELED",
	syscall.ECONNREFUSED: "ECONNREFUSED",
	syscall.ECONNRESET:   "ECONNRESET",
	syscall.EDESTADDRREQ: "EDESTADDRREQ",
	syscall.EEXIST:       "EEXIST",
	syscall.EINVAL:       "EINVAL",
	syscall.EISCONN:      "EISCONN",
	syscall.ENOENT:       "ENOENT",
	syscall.ENOSYS:       "ENOSYS",
	syscall.ENOTCONN:     "ENOTCONN",
	syscall.ENOTSUP:      "ENOTSUP",
	syscall.EPIPE:        "EPIPE",
	syscall.ESRCH:        "ESRCH",
	syscall.ETIMEDOUT:    "ETIMEDOUT",
}

func errnoName(errno syscall.Errno) string {
	return fallbackNames[errno]
}
