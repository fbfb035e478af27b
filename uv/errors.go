// File: uv/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shorthands over the api error taxonomy.

package uv

import (
	"github.com/momentics/hioload-uv/api"
)

func errClosed(op string) error {
	return api.NewError(api.KindClosedHandle, op, "")
}

func errState(op, msg string) error {
	return api.NewError(api.KindInvalidState, op, msg)
}

func errArg(op, msg string) error {
	return api.NewError(api.KindInvalidArgument, op, msg)
}

func errInit(op string, err error) error {
	return api.Wrap(api.KindInit, op, err)
}

func errOp(op string, err error) error {
	return api.Wrap(api.KindOperation, op, err)
}

func errCode(op string, code api.ErrorCode) error {
	return api.FromCode(api.KindOperation, op, code)
}
