// File: cmd/uvtool/commands/serve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Multi-loop echo service with Prometheus metrics and config hot reload.
// Every loop runs on its own goroutine and owns its handles.

package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/momentics/hioload-uv/affinity"
	"github.com/momentics/hioload-uv/control"
	"github.com/momentics/hioload-uv/emitter"
	"github.com/momentics/hioload-uv/uv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

func newServeCommand() *cobra.Command {
	var (
		listen string
		loops  int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run echo servers on several loops with metrics",
		Long: `serve starts one echo listener per loop on consecutive ports starting at
--listen. With metrics enabled in the config file the loop counters are
exposed on /metrics. The config file is watched and reloaded in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if loops < 1 {
				return fmt.Errorf("invalid --loops %d", loops)
			}
			base, err := parseAddr(listen)
			if err != nil {
				return err
			}
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()
			return s.serve(cmd.Context(), base, loops)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "127.0.0.1:7000", "first listen address")
	cmd.Flags().IntVarP(&loops, "loops", "n", 1, "number of loops")
	return cmd
}

func (s *session) serve(ctx context.Context, base uv.Addr, n int) error {
	store := control.NewConfigStore(s.cfg)
	store.OnReload(func(cfg control.Config) {
		s.log.Info().Str("level", cfg.Log.Level).Bool("metrics", cfg.Metrics.Enabled).
			Msg("config updated; loop options apply to new loops only")
	})

	reg := control.NewMetricsRegistry()

	var srv *http.Server
	if s.cfg.Metrics.Enabled {
		promReg := prometheus.NewRegistry()
		if err := promReg.Register(control.NewLoopCollector(s.cfg.Metrics.Namespace, reg)); err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: s.cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
		s.log.Info().Str("addr", s.cfg.Metrics.Listen).Msg("metrics endpoint listening")
	}

	loops, err := s.setupServeLoops(base, n, store, reg)
	if err == nil {
		var g errgroup.Group
		for i, l := range loops {
			i, l := i, l
			g.Go(func() error {
				if s.cfg.Loop.PinThreads {
					if err := affinity.PinLoopThread(i); err != nil {
						l.Logger().Warn().Err(err).Msg("loop thread not pinned")
					}
				}
				if err := s.run(l); err != nil {
					return fmt.Errorf("loop-%d: %w", i, err)
				}
				return nil
			})
		}
		err = g.Wait()
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, srv.Shutdown(shutdownCtx))
	}
	return err
}

// setupServeLoops builds every loop before any of them runs, so a failure
// tears down the ones already built on this goroutine.
func (s *session) setupServeLoops(base uv.Addr, n int, store *control.ConfigStore,
	reg *control.MetricsRegistry) ([]*uv.Loop, error) {
	loops := make([]*uv.Loop, 0, n)
	fail := func(err error) ([]*uv.Loop, error) {
		for _, l := range loops {
			err = multierr.Append(err, s.abort(l, nil))
		}
		return nil, err
	}
	for i := 0; i < n; i++ {
		l, err := s.newLoop()
		if err != nil {
			return fail(err)
		}
		loops = append(loops, l)
		if err := s.setupServeLoop(l, fmt.Sprintf("loop-%d", i), i, base, store, reg); err != nil {
			return fail(err)
		}
	}
	return loops, nil
}

func (s *session) setupServeLoop(l *uv.Loop, name string, i int, base uv.Addr,
	store *control.ConfigStore, reg *control.MetricsRegistry) error {
	if err := stopOnInterrupt(l); err != nil {
		return err
	}
	if _, err := serveEcho(l, uv.Addr{IP: base.IP, Port: base.Port + i}); err != nil {
		return err
	}
	if s.cfg.Metrics.Enabled {
		if _, err := control.PublishMetrics(l, name, reg, s.cfg.Metrics.Interval); err != nil {
			return err
		}
	}
	if i == 0 && configPath != "" {
		if _, err := control.WatchConfig(l, configPath, store, s.log); err != nil {
			return err
		}
	}
	return dumpProbesOn(l)
}

// dumpProbesOn logs the probe state of l every time the debug signal
// arrives. Probes read loop state, so each loop dumps its own.
func dumpProbesOn(l *uv.Loop) error {
	if debugSignal == nil {
		return nil
	}
	probes := control.NewDebugProbes()
	control.RegisterRuntimeProbes(probes)
	control.RegisterLoopProbes(probes, l)
	sig, err := uv.NewSignal(l)
	if err != nil {
		return err
	}
	emitter.On(sig, func(uv.SignalEvent, *uv.Signal) {
		l.Logger().Info().Interface("probes", probes.DumpState()).Msg("debug dump")
	})
	if err := sig.Start(debugSignal); err != nil {
		sig.Close()
		return err
	}
	sig.Unreference()
	return nil
}
