// File: uv/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Enumerations and value types shared by handles and requests.

package uv

import (
	"io/fs"
	"net"
	"strconv"
	"time"
)

// RunMode selects how Loop.Run drives the reactor.
type RunMode int

const (
	// RunDefault runs until no referenced active handle and no pending
	// request remain, or Stop is called.
	RunDefault RunMode = iota
	// RunOnce performs one pass, blocking for events if none are ready.
	RunOnce
	// RunNoWait performs one pass without blocking.
	RunNoWait
)

func (m RunMode) String() string {
	switch m {
	case RunDefault:
		return "default"
	case RunOnce:
		return "once"
	case RunNoWait:
		return "nowait"
	}
	return "unknown"
}

// HandleType identifies the native capability behind a handle.
type HandleType int

const (
	UnknownHandle HandleType = iota
	AsyncHandle
	CheckHandle
	FsWatchHandle
	FsPollHandle
	IdleHandle
	PipeHandle
	PollHandle
	PrepareHandle
	ProcessHandle
	TCPHandle
	TimerHandle
	UDPHandle
	SignalHandle
)

var handleTypeNames = [...]string{
	UnknownHandle: "unknown",
	AsyncHandle:   "async",
	CheckHandle:   "check",
	FsWatchHandle: "fs_event",
	FsPollHandle:  "fs_poll",
	IdleHandle:    "idle",
	PipeHandle:    "pipe",
	PollHandle:    "poll",
	PrepareHandle: "prepare",
	ProcessHandle: "process",
	TCPHandle:     "tcp",
	TimerHandle:   "timer",
	UDPHandle:     "udp",
	SignalHandle:  "signal",
}

func (t HandleType) String() string {
	if int(t) < len(handleTypeNames) {
		return handleTypeNames[t]
	}
	return "unknown"
}

// RequestType identifies the operation behind a request.
type RequestType int

const (
	UnknownRequest RequestType = iota
	WorkRequest
	FsRequest
	GetAddrInfoRequest
	GetNameInfoRequest
	ConnectRequest
	WriteRequest
	ShutdownRequest
	UDPSendRequest
)

var requestTypeNames = [...]string{
	UnknownRequest:     "unknown",
	WorkRequest:        "work",
	FsRequest:          "fs",
	GetAddrInfoRequest: "getaddrinfo",
	GetNameInfoRequest: "getnameinfo",
	ConnectRequest:     "connect",
	WriteRequest:       "write",
	ShutdownRequest:    "shutdown",
	UDPSendRequest:     "udp_send",
}

func (t RequestType) String() string {
	if int(t) < len(requestTypeNames) {
		return requestTypeNames[t]
	}
	return "unknown"
}

// State is the lifecycle position of a handle.
type State int

const (
	StateCreated State = iota
	StateInitialized
	StateActive
	StateInactive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// RequestState is the lifecycle position of a request.
type RequestState int

const (
	RequestCreated RequestState = iota
	RequestPending
	RequestCompleted
	RequestFailed
)

func (s RequestState) String() string {
	switch s {
	case RequestCreated:
		return "created"
	case RequestPending:
		return "pending"
	case RequestCompleted:
		return "completed"
	case RequestFailed:
		return "failed"
	}
	return "unknown"
}

// Addr is an IP endpoint.
type Addr struct {
	IP   string
	Port int
}

func (a Addr) String() string {
	return net.JoinHostPort(a.IP, strconv.Itoa(a.Port))
}

// AddrFrom converts a net.Addr into an Addr. Non-IP addresses yield the zero
// value.
func AddrFrom(a net.Addr) Addr {
	switch v := a.(type) {
	case *net.TCPAddr:
		return Addr{IP: v.IP.String(), Port: v.Port}
	case *net.UDPAddr:
		return Addr{IP: v.IP.String(), Port: v.Port}
	}
	return Addr{}
}

func (a Addr) udp() (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp", a.String())
}

// FileInfo is the subset of stat data exposed by fs requests and FsPoll.
type FileInfo struct {
	Name    string
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
}

// IsDir reports whether the entry is a directory.
func (fi FileInfo) IsDir() bool {
	return fi.Mode.IsDir()
}

func fileInfoOf(fi fs.FileInfo) FileInfo {
	return FileInfo{Name: fi.Name(), Size: fi.Size(), Mode: fi.Mode(), ModTime: fi.ModTime()}
}
