//go:build unix

// File: uv/process_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package uv

import (
	"os/exec"
	"syscall"
)

func detach(cmd *exec.Cmd, detached bool) {
	if detached {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	}
}
