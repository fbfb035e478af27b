// File: cmd/uvtool/commands/watch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reports file system changes through a watch handle, or through stat
// polling when --poll is set.

package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
	"github.com/momentics/hioload-uv/uv"
	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	var (
		recursive bool
		poll      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch PATH",
		Short: "Print changes below PATH until interrupted",
		Args:  cobra.ExactArgs(1),
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
			if err := stopOnInterrupt(l); err != nil {
				return s.abort(l, err)
			}
			out := cmd.OutOrStdout()
			if poll > 0 {
				err = pollPath(l, out, args[0], poll)
			} else {
				err = watchPath(l, out, args[0], recursive)
			}
			if err != nil {
				return s.abort(l, err)
			}
			return s.run(l)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "watch subdirectories")
	cmd.Flags().DurationVar(&poll, "poll", 0, "stat polling interval instead of change notifications")
	return cmd
}

func watchPath(l *uv.Loop, out io.Writer, path string, recursive bool) error {
	w, err := uv.NewFsWatch(l)
	if err != nil {
		return err
	}
	emitter.On(w, func(ev uv.FsWatchEvent, _ *uv.FsWatch) {
		kind := "change"
		if ev.Flags&uv.FsWatchRename != 0 {
			kind = "rename"
		}
		fmt.Fprintf(out, "%s\t%s\n", kind, ev.Filename)
	})
	emitter.On(w, func(ev api.ErrorEvent, fw *uv.FsWatch) {
		fmt.Fprintf(out, "error\t%s\n", ev.Name())
		fw.Close()
	})
	var flags uv.FsWatchFlags
	if recursive {
		flags |= uv.FsWatchRecursive
	}
	return w.Start(path, flags)
}

func pollPath(l *uv.Loop, out io.Writer, path string, interval time.Duration) error {
	p, err := uv.NewFsPoll(l)
	if err != nil {
		return err
	}
	emitter.On(p, func(ev uv.FsPollEvent, _ *uv.FsPoll) {
		fmt.Fprintf(out, "change\t%s\tsize %d -> %d\n", path, ev.Prev.Size, ev.Curr.Size)
	})
	emitter.On(p, func(ev api.ErrorEvent, _ *uv.FsPoll) {
		fmt.Fprintf(out, "error\t%s\t%s\n", path, ev.Name())
	})
	return p.Start(path, interval)
}
