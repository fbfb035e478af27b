// File: uv/fdatasync_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package uv

import (
	"os"

	"golang.org/x/sys/unix"
)

func fdatasync(f *os.File) error {
	return os.NewSyscallError("fdatasync", unix.Fdatasync(int(f.Fd())))
}
