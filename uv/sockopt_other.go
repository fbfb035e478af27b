//go:build !unix

// File: uv/sockopt_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platforms without x/sys/unix report raw socket operations as unsupported.

package uv

import (
	"net"
	"syscall"

	"github.com/momentics/hioload-uv/api"
)

const (
	optSendBuffer = iota
	optRecvBuffer
	optBroadcast
	msgTrunc = 0
)

func udpControl(UDPFlags) func(string, string, syscall.RawConn) error { return nil }

type sockaddr = any

func getSockopt(any, int) (int, error) { return 0, api.ENOTSUP }

func setSockopt(any, int, int) error { return api.ENOTSUP }

func rawWrite(any, []byte) (int, error) { return 0, api.ENOTSUP }

func rawSendTo(any, []byte, sockaddr) (int, error) { return 0, api.ENOTSUP }

func rawConnect(any, sockaddr) error { return api.ENOTSUP }

func toSockaddr(*net.UDPAddr) sockaddr { return nil }

func sockFd(any) (int, error) { return -1, api.ENOTSUP }
