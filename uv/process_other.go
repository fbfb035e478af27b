//go:build !unix

// File: uv/process_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package uv

import "os/exec"

func detach(*exec.Cmd, bool) {}
