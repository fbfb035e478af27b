// File: api/errcode.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ErrorCode translates native status values into a stable, comparable form.

package api

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"os"
	"strconv"
	"syscall"
)

// ErrorCode is a native status: zero on success, a negated errno on unix, or
// one of the portable codes below.
type ErrorCode int

// Portable codes with no errno counterpart.
const (
	EOF     ErrorCode = -4095
	UNKNOWN ErrorCode = -4094

	EAI_ADDRFAMILY ErrorCode = -3000
	EAI_AGAIN      ErrorCode = -3001
	EAI_BADFLAGS   ErrorCode = -3002
	EAI_CANCELED   ErrorCode = -3003
	EAI_FAIL       ErrorCode = -3004
	EAI_FAMILY     ErrorCode = -3005
	EAI_MEMORY     ErrorCode = -3006
	EAI_NODATA     ErrorCode = -3007
	EAI_NONAME     ErrorCode = -3008
	EAI_SERVICE    ErrorCode = -3010
)

// Codes backed by errno values.
var (
	EACCES       = FromErrno(syscall.EACCES)
	EADDRINUSE   = FromErrno(syscall.EADDRINUSE)
	EAGAIN       = FromErrno(syscall.EAGAIN)
	EALREADY     = FromErrno(syscall.EALREADY)
	EBADF        = FromErrno(syscall.EBADF)
	EBUSY        = FromErrno(syscall.EBUSY)
	ECANCELED    = FromErrno(syscall.ECANCELED)
	ECONNREFUSED = FromErrno(syscall.ECONNREFUSED)
	ECONNRESET   = FromErrno(syscall.ECONNRESET)
	EDESTADDRREQ = FromErrno(syscall.EDESTADDRREQ)
	EEXIST       = FromErrno(syscall.EEXIST)
	EINVAL       = FromErrno(syscall.EINVAL)
	EISCONN      = FromErrno(syscall.EISCONN)
	ENOENT       = FromErrno(syscall.ENOENT)
	ENOSYS       = FromErrno(syscall.ENOSYS)
	ENOTCONN     = FromErrno(syscall.ENOTCONN)
	ENOTSUP      = FromErrno(syscall.ENOTSUP)
	EPIPE        = FromErrno(syscall.EPIPE)
	ESRCH        = FromErrno(syscall.ESRCH)
	ETIMEDOUT    = FromErrno(syscall.ETIMEDOUT)
)

var portableNames = map[ErrorCode][2]string{
	EOF:            {"EOF", "end of file"},
	UNKNOWN:        {"UNKNOWN", "unknown error"},
	EAI_ADDRFAMILY: {"EAI_ADDRFAMILY", "address family not supported"},
	EAI_AGAIN:      {"EAI_AGAIN", "temporary failure"},
	EAI_BADFLAGS:   {"EAI_BADFLAGS", "bad ai_flags value"},
	EAI_CANCELED:   {"EAI_CANCELED", "request canceled"},
	EAI_FAIL:       {"EAI_FAIL", "permanent failure"},
	EAI_FAMILY:     {"EAI_FAMILY", "ai_family not supported"},
	EAI_MEMORY:     {"EAI_MEMORY", "out of memory"},
	EAI_NODATA:     {"EAI_NODATA", "no address"},
	EAI_NONAME:     {"EAI_NONAME", "unknown node or service"},
	EAI_SERVICE:    {"EAI_SERVICE", "service not available for socket type"},
}

// FromErrno converts a platform errno into an ErrorCode.
func FromErrno(errno syscall.Errno) ErrorCode {
	return ErrorCode(-int(errno))
}

// Translate maps a Go error onto an ErrorCode. nil maps to zero.
func Translate(err error) ErrorCode {
	if err == nil {
		return 0
	}
	var code ErrorCode
	if errors.As(err, &code) {
		return code
	}
	var structured *Error
	if errors.As(err, &structured) && structured.Code != 0 {
		return structured.Code
	}
	var errno syscall.Errno
	if errors.As(err, &errno) && errno != 0 {
		return FromErrno(errno)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return EAI_NONAME
		case dnsErr.IsTimeout, dnsErr.IsTemporary:
			return EAI_AGAIN
		default:
			return EAI_FAIL
		}
	}
	switch {
	case errors.Is(err, io.EOF):
		return EOF
	case errors.Is(err, net.ErrClosed), errors.Is(err, os.ErrClosed),
		errors.Is(err, io.ErrClosedPipe), errors.Is(err, context.Canceled):
		return ECANCELED
	case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return ETIMEDOUT
	case errors.Is(err, fs.ErrNotExist):
		return ENOENT
	case errors.Is(err, fs.ErrPermission):
		return EACCES
	case errors.Is(err, fs.ErrExist):
		return EEXIST
	case errors.Is(err, fs.ErrInvalid):
		return EINVAL
	}
	var addrErr *net.AddrError
	if errors.As(err, &addrErr) {
		return EINVAL
	}
	return UNKNOWN
}

// Ok reports success.
func (c ErrorCode) Ok() bool {
	return c == 0
}

// Name returns the symbolic name of the code, e.g. "ECONNREFUSED".
func (c ErrorCode) Name() string {
	if c == 0 {
		return "OK"
	}
	if names, ok := portableNames[c]; ok {
		return names[0]
	}
	if c < 0 {
		if name := errnoName(syscall.Errno(-c)); name != "" {
			return name
		}
	}
	return "E" + strconv.Itoa(int(-c))
}

// Message returns the human readable description of the code.
func (c ErrorCode) Message() string {
	if c == 0 {
		return "success"
	}
	if names, ok := portableNames[c]; ok {
		return names[1]
	}
	if c < 0 {
		return syscall.Errno(-c).Error()
	}
	return "unknown error " + strconv.Itoa(int(c))
}

// Error implements the error interface so a bare code can travel as an error.
func (c ErrorCode) Error() string {
	return c.Name() + ": " + c.Message()
}
