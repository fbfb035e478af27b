//go:build unix

// File: api/errcode_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// errno naming backed by x/sys/unix.

package api

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func errnoName(errno syscall.Errno) string {
	return unix.ErrnoName(errno)
}
