// File: uv/dns.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Name resolution requests. Lookups run on the thread pool through the Go
// resolver.

package uv

import (
	"context"
	"net"
	"strconv"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
)

// AddrFamily restricts lookups to one address family.
type AddrFamily int

const (
	FamilyUnspec AddrFamily = iota
	FamilyIPv4
	FamilyIPv6
)

// SocketType selects the protocol a service name is resolved for.
type SocketType int

const (
	SockStream SocketType = iota
	SockDgram
)

// AddrInfoHints narrow a lookup.
type AddrInfoHints struct {
	Family     AddrFamily
	SocketType SocketType
	// NumericHost skips name resolution; the node must be an IP literal.
	NumericHost bool
}

// AddrInfo is one resolved endpoint.
type AddrInfo struct {
	Addr   Addr
	Family AddrFamily
}

// AddrInfoEvent carries the resolved endpoints in resolver order.
type AddrInfoEvent struct {
	Addrs []AddrInfo
}

// NameInfoEvent carries the result of a reverse lookup.
type NameInfoEvent struct {
	Hostname string
	Service  string
}

// GetAddrInfoReq resolves a node and service.
type GetAddrInfoReq struct {
	Request[GetAddrInfoReq]
	resolver *net.Resolver
}

// NewGetAddrInfo creates a resolution request.
func NewGetAddrInfo(l *Loop) *GetAddrInfoReq {
	r := &GetAddrInfoReq{resolver: net.DefaultResolver}
	r.bind(l, r, GetAddrInfoRequest)
	return r
}

// AddrInfo resolves node and service. Either may be empty but not both.
func (r *GetAddrInfoReq) AddrInfo(node, service string, hints *AddrInfoHints) error {
	const op = "getaddrinfo"
	if node == "" && service == "" {
		return errCode(op, api.EAI_NONAME)
	}
	h := AddrInfoHints{}
	if hints != nil {
		h = *hints
	}
	var out []AddrInfo
	return r.schedule(op, func() error {
		var err error
		out, err = resolve(r.resolver, node, service, h)
		return err
	}, func() {
		emitter.Publish[AddrInfoEvent, GetAddrInfoReq](r, AddrInfoEvent{Addrs: out})
	})
}

func resolve(res *net.Resolver, node, service string, h AddrInfoHints) ([]AddrInfo, error) {
	ctx := context.Background()
	port := 0
	if service != "" {
		proto := "tcp"
		if h.SocketType == SockDgram {
			proto = "udp"
		}
		p, err := res.LookupPort(ctx, proto, service)
		if err != nil {
			return nil, api.EAI_SERVICE
		}
		port = p
	}
	var ips []net.IP
	switch {
	case node == "":
		ips = []net.IP{net.IPv4(127, 0, 0, 1)}
		if h.Family == FamilyIPv6 {
			ips = []net.IP{net.IPv6loopback}
		}
	case h.NumericHost:
		ip := net.ParseIP(node)
		if ip == nil {
			return nil, api.EAI_NONAME
		}
		ips = []net.IP{ip}
	default:
		addrs, err := res.LookupIPAddr(ctx, node)
		if err != nil {
			return nil, err
		}
		for _, a := range addrs {
			ips = append(ips, a.IP)
		}
	}
	var out []AddrInfo
	for _, ip := range ips {
		fam := FamilyIPv6
		if ip.To4() != nil {
			fam = FamilyIPv4
		}
		if h.Family != FamilyUnspec && h.Family != fam {
			continue
		}
		out = append(out, AddrInfo{Addr: Addr{IP: ip.String(), Port: port}, Family: fam})
	}
	if len(out) == 0 {
		return nil, api.EAI_NODATA
	}
	return out, nil
}

// NameInfoFlags modify NameInfo.
type NameInfoFlags int

const (
	// NameInfoNumericHost returns the address literal instead of a name.
	NameInfoNumericHost NameInfoFlags = 1 << iota
	// NameInfoNameRequired fails when no name is found.
	NameInfoNameRequired
)

// GetNameInfoReq resolves an address back to a host name.
type GetNameInfoReq struct {
	Request[GetNameInfoReq]
	resolver *net.Resolver
}

// NewGetNameInfo creates a reverse lookup request.
func NewGetNameInfo(l *Loop) *GetNameInfoReq {
	r := &GetNameInfoReq{resolver: net.DefaultResolver}
	r.bind(l, r, GetNameInfoRequest)
	return r
}

// NameInfo looks up addr. The service is the decimal port.
func (r *GetNameInfoReq) NameInfo(addr Addr, flags NameInfoFlags) error {
	const op = "getnameinfo"
	ip := net.ParseIP(addr.IP)
	if ip == nil {
		return errCode(op, api.EAI_NONAME)
	}
	var ev NameInfoEvent
	return r.schedule(op, func() error {
		ev.Service = strconv.Itoa(addr.Port)
		ev.Hostname = ip.String()
		if flags&NameInfoNumericHost != 0 {
			return nil
		}
		names, err := r.resolver.LookupAddr(context.Background(), ip.String())
		switch {
		case err == nil && len(names) > 0:
			ev.Hostname = trimDot(names[0])
		case flags&NameInfoNameRequired != 0:
			return api.EAI_NONAME
		}
		return nil
	}, func() {
		emitter.Publish[NameInfoEvent, GetNameInfoReq](r, ev)
	})
}

func trimDot(name string) string {
	if n := len(name); n > 1 && name[n-1] == '.' {
		return name[:n-1]
	}
	return name
}
