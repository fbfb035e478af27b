// File: cmd/uvtool/commands/echo.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TCP echo server on one loop.

package commands

import (
	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
	"github.com/momentics/hioload-uv/uv"
	"github.com/spf13/cobra"
)

func newEchoCommand() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Run a TCP echo server until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddr(listen)
			if err != nil {
				return err
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
			if _, err := serveEcho(l, addr); err != nil {
				return s.abort(l, err)
			}
			return s.run(l)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "127.0.0.1:7000", "listen address")
	return cmd
}

// serveEcho binds a listening TCP handle on l that writes back whatever
// each client sends and half-closes after the client does.
func serveEcho(l *uv.Loop, addr uv.Addr) (*uv.TCP, error) {
	server, err := uv.NewTCP(l)
	if err != nil {
		return nil, err
	}
	log := l.Logger()

	emitter.On(server, func(_ uv.ListenEvent, srv *uv.TCP) {
		client, err := uv.NewTCP(l)
		if err != nil {
			log.Warn().Err(err).Msg("accept: client handle")
			return
		}
		if err := srv.Accept(client); err != nil {
			log.Warn().Err(err).Msg("accept")
			client.Close()
			return
		}
		peer, _ := client.Peer()
		log.Debug().Str("peer", peer.String()).Msg("client connected")

		emitter.On(client, func(ev uv.DataEvent, c *uv.TCP) {
			if err := c.Write(ev.Data); err != nil {
				c.Close()
			}
		})
		emitter.On(client, func(_ uv.EndEvent, c *uv.TCP) {
			if err := c.Shutdown(); err != nil {
				c.Close()
			}
		})
		emitter.On(client, func(_ uv.ShutdownEvent, c *uv.TCP) { c.Close() })
		emitter.On(client, func(ev api.ErrorEvent, c *uv.TCP) {
			log.Debug().Str("peer", peer.String()).Str("error", ev.Name()).Msg("client failed")
			c.Close()
		})
		emitter.On(client, func(api.CloseEvent, *uv.TCP) {
			log.Debug().Str("peer", peer.String()).Msg("client closed")
		})
		if err := client.ReadStart(); err != nil {
			client.Close()
		}
	})
	emitter.On(server, func(ev api.ErrorEvent, srv *uv.TCP) {
		log.Error().Str("error", ev.Name()).Msg("listener failed")
		srv.Close()
	})

	if err := server.Bind(addr); err != nil {
		server.Close()
		return nil, err
	}
	if err := server.Listen(128); err != nil {
		server.Close()
		return nil, err
	}
	sock, _ := server.Sock()
	log.Info().Str("addr", sock.String()).Msg("echo server listening")
	return server, nil
}
