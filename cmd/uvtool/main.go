// File: cmd/uvtool/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// uvtool drives the uv event loop from the command line.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/momentics/hioload-uv/cmd/uvtool/commands"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := commands.Execute(context.Background(), Version, Commit, BuildDate); err != nil {
		fmt.Fprintln(os.Stderr, "uvtool:", err)
		os.Exit(1)
	}
}
