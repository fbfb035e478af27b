//go:build unix

// File: uv/fs_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package uv

import (
	"os"

	"golang.org/x/sys/unix"
)

// Access mode bits.
const (
	R_OK = unix.R_OK
	W_OK = unix.W_OK
	X_OK = unix.X_OK
)

func unlink(path string) error {
	return os.NewSyscallError("unlink", unix.Unlink(path))
}

func rmdir(path string) error {
	return os.NewSyscallError("rmdir", unix.Rmdir(path))
}

func access(path string, mode uint32) error {
	return os.NewSyscallError("access", unix.Access(path, mode))
}
