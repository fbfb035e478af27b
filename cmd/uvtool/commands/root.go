// File: cmd/uvtool/commands/root.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Root command and the setup shared by every subcommand.

package commands

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/momentics/hioload-uv/control"
	"github.com/momentics/hioload-uv/emitter"
	"github.com/momentics/hioload-uv/uv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var (
	// Global flags
	configPath string
	logLevel   string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "uvtool",
		Short: "uvtool - event loop playground",
		Long: `uvtool exercises the uv event loop: a TCP echo server, timers,
name resolution, file watching and child processes, each driven by a
single-threaded loop.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(newEchoCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newTimerCommand())
	rootCmd.AddCommand(newResolveCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newExecCommand())

	return rootCmd
}

// session bundles what a subcommand needs to build loops.
type session struct {
	cfg    control.Config
	log    zerolog.Logger
	closer io.Closer
}

func newSession() (*session, error) {
	cfg := control.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = control.LoadConfig(configPath); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	log, closer, err := control.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, log: log, closer: closer}, nil
}

func (s *session) newLoop() (*uv.Loop, error) {
	return uv.New(s.cfg.LoopOptions(s.log)...)
}

// run drives l until it has nothing left to do, closes the unreferenced
// handles that remain, drains their close callbacks and closes l.
func (s *session) run(l *uv.Loop) error {
	_, err := l.Run(uv.RunDefault)
	closeAll(l)
	if _, drainErr := l.Run(uv.RunDefault); drainErr != nil {
		err = multierr.Append(err, drainErr)
	}
	return multierr.Append(err, l.Close())
}

// abort closes every handle of l, drains it and returns err together with
// whatever the teardown reported.
func (s *session) abort(l *uv.Loop, err error) error {
	closeAll(l)
	return multierr.Append(err, s.run(l))
}

func (s *session) Close() error {
	return s.closer.Close()
}

// stopOnInterrupt closes every handle of l on SIGINT so RunDefault drains.
// The signal handle itself does not keep the loop alive.
func stopOnInterrupt(l *uv.Loop) error {
	sig, err := uv.NewSignal(l)
	if err != nil {
		return err
	}
	emitter.On(sig, func(ev uv.SignalEvent, _ *uv.Signal) {
		l.Logger().Info().Str("signal", ev.Signum.String()).Msg("shutting down")
		closeAll(l)
	})
	if err := sig.Start(os.Interrupt); err != nil {
		sig.Close()
		return err
	}
	sig.Unreference()
	return nil
}

func closeAll(l *uv.Loop) {
	l.Walk(func(r uv.Resource) {
		if h, ok := r.(uv.AnyHandle); ok {
			h.Close()
		}
	})
}

func parseAddr(hostport string) (uv.Addr, error) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return uv.Addr{}, err
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return uv.Addr{}, fmt.Errorf("invalid port %q: %w", port, err)
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return uv.Addr{IP: host, Port: p}, nil
}
