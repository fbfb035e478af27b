//go:build !linux

// File: uv/fdatasync_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package uv

import "os"

func fdatasync(f *os.File) error {
	return f.Sync()
}
