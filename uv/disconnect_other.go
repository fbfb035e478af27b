//go:build unix && !(linux || darwin || freebsd)

// File: uv/disconnect_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package uv

import "golang.org/x/sys/unix"

func disconnect(int) error {
	return unix.ENOTSUP
}
