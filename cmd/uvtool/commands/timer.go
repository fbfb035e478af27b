// File: cmd/uvtool/commands/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Prints timer ticks measured against the loop clock.

package commands

import (
	"fmt"
	"time"

	"github.com/momentics/hioload-uv/emitter"
	"github.com/momentics/hioload-uv/uv"
	"github.com/spf13/cobra"
)

func newTimerCommand() *cobra.Command {
	var (
		after  time.Duration
		repeat time.Duration
		count  int
	)
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Fire a timer and print each tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("invalid --count %d", count)
			}
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			l, err := s.newLoop()
			if err != nil {
				return err
			}
			if err := stopOnInterrupt(l); err != nil {
				return s.abort(l, err)
			}
			timer, err := uv.NewTimer(l)
			if err != nil {
				return s.abort(l, err)
			}
			start := l.Now()
			ticks := 0
			out := cmd.OutOrStdout()
			emitter.On(timer, func(_ uv.TimerEvent, t *uv.Timer) {
				ticks++
				fmt.Fprintf(out, "tick %d at %s\n", ticks, l.Now()-start)
				if ticks >= count || t.Repeat() == 0 {
					t.Close()
				}
			})
			if err := timer.Start(after, repeat); err != nil {
				return s.abort(l, err)
			}
			return s.run(l)
		},
	}
	cmd.Flags().DurationVar(&after, "after", time.Second, "delay before the first tick")
	cmd.Flags().DurationVar(&repeat, "repeat", 0, "interval between ticks, 0 for one tick")
	cmd.Flags().IntVar(&count, "count", 1, "number of ticks before stopping")
	return cmd
}
