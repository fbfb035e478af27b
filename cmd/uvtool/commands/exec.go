// File: cmd/uvtool/commands/exec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Spawns a child with its stdout piped through the loop.

package commands

import (
	"fmt"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
	"github.com/momentics/hioload-uv/uv"
	"github.com/spf13/cobra"
)

func newExecCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec -- COMMAND [ARGS...]",
		Short: "Run a child process and relay its output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			l, err := s.newLoop()
			if err != nil {
				return err
			}
			out, err := uv.NewPipe(l)
			if err != nil {
				return s.abort(l, err)
			}
			proc, err := uv.NewProcess(l)
			if err != nil {
				return s.abort(l, err)
			}
			stdout := cmd.OutOrStdout()
			emitter.On(out, func(ev uv.DataEvent, _ *uv.Pipe) {
				_, _ = stdout.Write(ev.Data)
			})
			emitter.On(out, func(uv.EndEvent, *uv.Pipe) { out.Close() })
			emitter.On(out, func(api.ErrorEvent, *uv.Pipe) { out.Close() })

			var exit uv.ExitEvent
			emitter.On(proc, func(ev uv.ExitEvent, p *uv.Process) {
				exit = ev
				p.Close()
			})
			err = proc.Spawn(uv.ProcessOptions{
				File: args[0],
				Args: args[1:],
				Stdio: []uv.StdioContainer{
					{Flags: uv.StdioInherit},
					{Flags: uv.StdioCreatePipe, Pipe: out},
					{Flags: uv.StdioInherit},
				},
			})
			if err != nil {
				return s.abort(l, err)
			}
			if err := out.ReadStart(); err != nil {
				return s.abort(l, err)
			}
			if err := s.run(l); err != nil {
				return err
			}
			switch {
			case exit.Signal != nil:
				return fmt.Errorf("%s: killed by %s", args[0], exit.Signal)
			case exit.Status != 0:
				return fmt.Errorf("%s: exit status %d", args[0], exit.Status)
			}
			return nil
		},
	}
	return cmd
}
