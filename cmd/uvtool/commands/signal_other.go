//go:build !unix

// File: cmd/uvtool/commands/signal_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package commands

import "os"

var debugSignal os.Signal
