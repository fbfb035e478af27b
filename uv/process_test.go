//go:build unix

// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package uv

import (
	"bytes"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessExitStatus(t *testing.T) {
	l := newTestLoop(t)
	guard(t, l, 10*time.Second)
	p, err := NewProcess(l)
	require.NoError(t, err)

	var exit *ExitEvent
	emitter.On(p, func(ev ExitEvent, h *Process) {
		exit = &ev
		h.Close()
	})
	require.NoError(t, p.Spawn(ProcessOptions{File: "sh", Args: []string{"-c", "exit 3"}}))
	assert.Positive(t, p.PID())
	assert.True(t, p.Active())
	assert.ErrorIs(t, p.Spawn(ProcessOptions{File: "sh"}), api.ErrInvalidState)

	_, err = l.Run(RunDefault)
	require.NoError(t, err)
	require.NotNil(t, exit)
	assert.EqualValues(t, 3, exit.Status)
	assert.Nil(t, exit.Signal)
}

func TestProcessStdoutPipe(t *testing.T) {
	l := newTestLoop(t)
	guard(t, l, 10*time.Second)
	out, err := NewPipe(l)
	require.NoError(t, err)
	p, err := NewProcess(l)
	require.NoError(t, err)

	var got bytes.Buffer
	exited := false
	emitter.On(out, func(ev DataEvent, _ *Pipe) { got.Write(ev.Data) })
	ended := false
	emitter.On(out, func(EndEvent, *Pipe) { ended = true })
	emitter.On(p, func(_ ExitEvent, h *Process) {
		exited = true
		h.Close()
	})
	require.NoError(t, p.Spawn(ProcessOptions{
		File: "sh",
		Args: []string{"-c", "printf 'from child'"},
		Stdio: []StdioContainer{
			{Flags: StdioIgnore},
			{Flags: StdioCreatePipe, Pipe: out},
			{Flags: StdioInherit},
		},
	}))
	require.NoError(t, out.ReadStart())

	alive, err := l.Run(RunDefault)
	require.NoError(t, err)
	assert.False(t, alive)
	assert.True(t, exited)
	assert.True(t, ended)
	assert.Equal(t, "from child", got.String())
	// The pipe reached EOF without being closed and no longer holds the loop.
	assert.False(t, out.Active())
}

func TestProcessKill(t *testing.T) {
	l := newTestLoop(t)
	guard(t, l, 10*time.Second)
	p, err := NewProcess(l)
	require.NoError(t, err)
	assert.ErrorIs(t, p.Kill(syscall.SIGTERM), api.ESRCH)

	var exit ExitEvent
	emitter.On(p, func(ev ExitEvent, h *Process) {
		exit = ev
		h.Close()
	})
	require.NoError(t, p.Spawn(ProcessOptions{File: "sleep", Args: []string{"30"}}))
	require.NoError(t, p.Kill(syscall.SIGTERM))

	_, err = l.Run(RunDefault)
	require.NoError(t, err)
	assert.Equal(t, syscall.SIGTERM, exit.Signal)
	assert.Zero(t, exit.Status)
}

func TestProcessSpawnMissingBinary(t *testing.T) {
	l := newTestLoop(t)
	p, err := NewProcess(l)
	require.NoError(t, err)
	err = p.Spawn(ProcessOptions{File: "/nonexistent/binary"})
	assert.ErrorIs(t, err, api.ENOENT)
	assert.False(t, p.Active())
}

func TestSignalOneShot(t *testing.T) {
	l := newTestLoop(t)
	guard(t, l, 5*time.Second)
	s, err := NewSignal(l)
	require.NoError(t, err)

	var got []string
	emitter.On(s, func(ev SignalEvent, h *Signal) {
		got = append(got, ev.Signum.String())
		assert.False(t, h.Active())
		h.Close()
	})
	require.NoError(t, s.OneShot(syscall.SIGUSR1))
	assert.Equal(t, syscall.SIGUSR1, s.Signum())
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	_, err = l.Run(RunDefault)
	require.NoError(t, err)
	assert.Equal(t, []string{syscall.SIGUSR1.String()}, got)
}

func TestKillUnknownProcess(t *testing.T) {
	err := Kill(0x3fffffff, syscall.Signal(0))
	assert.ErrorIs(t, err, api.ESRCH)
}

func TestProcessWaitFailureReportsErrorOnly(t *testing.T) {
	l := newTestLoop(t)
	p, err := NewProcess(l)
	require.NoError(t, err)
	errs, exits := 0, 0
	emitter.On(p, func(api.ErrorEvent, *Process) { errs++ })
	emitter.On(p, func(ExitEvent, *Process) { exits++ })

	p.setActive(true)
	p.exited(errors.New("wait failed"))
	assert.Equal(t, 1, errs)
	assert.Zero(t, exits)
	assert.False(t, p.Active())
	assert.False(t, l.Alive())
}
