//go:build !unix

// File: uv/fs_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package uv

import (
	"os"
	"syscall"
)

// Access mode bits.
const (
	R_OK = 0x4
	W_OK = 0x2
	X_OK = 0x1
)

func unlink(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return &os.PathError{Op: "unlink", Path: path, Err: syscall.EISDIR}
	}
	return os.Remove(path)
}

func rmdir(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return &os.PathError{Op: "rmdir", Path: path, Err: syscall.ENOTDIR}
	}
	return os.Remove(path)
}

func access(path string, mode uint32) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode&W_OK != 0 && fi.Mode().Perm()&0o200 == 0 {
		return &os.PathError{Op: "access", Path: path, Err: syscall.EACCES}
	}
	return nil
}
