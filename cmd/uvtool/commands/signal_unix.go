//go:build unix

// File: cmd/uvtool/commands/signal_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package commands

import (
	"os"
	"syscall"
)

var debugSignal os.Signal = syscall.SIGUSR1
