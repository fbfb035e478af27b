// File: cmd/uvtool/commands/resolve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Resolves a host through the loop's getaddrinfo request and optionally
// maps every result back through getnameinfo.

package commands

import (
	"fmt"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
	"github.com/momentics/hioload-uv/uv"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newResolveCommand() *cobra.Command {
	var (
		family  int
		reverse bool
	)
	cmd := &cobra.Command{
		Use:   "resolve HOST [SERVICE]",
		Short: "Resolve a host name",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hints := uv.AddrInfoHints{}
			switch family {
			case 0:
			case 4:
				hints.Family = uv.FamilyIPv4
			case 6:
				hints.Family = uv.FamilyIPv6
			default:
				return fmt.Errorf("invalid --family %d", family)
			}
			service := ""
			if len(args) == 2 {
				service = args[1]
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
			out := cmd.OutOrStdout()
			var failed error

			req := uv.NewGetAddrInfo(l)
			emitter.On(req, func(ev uv.AddrInfoEvent, _ *uv.GetAddrInfoReq) {
				for _, ai := range ev.Addrs {
					fmt.Fprintln(out, ai.Addr.String())
					if !reverse {
						continue
					}
					addr := ai.Addr
					rev := uv.NewGetNameInfo(l)
					emitter.On(rev, func(ev uv.NameInfoEvent, _ *uv.GetNameInfoReq) {
						fmt.Fprintf(out, "%s -> %s\n", addr.IP, ev.Hostname)
					})
					emitter.On(rev, func(ev api.ErrorEvent, _ *uv.GetNameInfoReq) {
						fmt.Fprintf(out, "%s -> %s\n", addr.IP, ev.Name())
					})
					if err := rev.NameInfo(addr, 0); err != nil {
						failed = multierr.Append(failed, err)
					}
				}
			})
			emitter.On(req, func(ev api.ErrorEvent, _ *uv.GetAddrInfoReq) {
				failed = multierr.Append(failed, fmt.Errorf("resolve %s: %s", args[0], ev.What()))
			})
			if err := req.AddrInfo(args[0], service, &hints); err != nil {
				return multierr.Append(err, s.run(l))
			}
			return multierr.Append(s.run(l), failed)
		},
	}
	cmd.Flags().IntVar(&family, "family", 0, "address family: 4, 6 or 0 for any")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "reverse-resolve every address")
	return cmd
}
