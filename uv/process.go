// File: uv/process.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process spawns a child and publishes ExitEvent when it terminates. The
// handle is active from a successful Spawn until the exit is delivered.

package uv

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
)

// ExitEvent reports how the child terminated.
type ExitEvent struct {
	Status int64
	Signal os.Signal // nil unless killed by a signal
}

// StdioFlags select how a child stdio slot is wired.
type StdioFlags int

const (
	// StdioIgnore connects the slot to the null device.
	StdioIgnore StdioFlags = iota
	// StdioInherit shares the parent's descriptor for the slot.
	StdioInherit
	// StdioCreatePipe connects the slot to Pipe, opened by Spawn.
	StdioCreatePipe
	// StdioInheritFile passes File to the child.
	StdioInheritFile
)

// StdioContainer describes one child stdio slot.
type StdioContainer struct {
	Flags StdioFlags
	Pipe  *Pipe
	File  *os.File
}

// ProcessOptions configure Spawn.
type ProcessOptions struct {
	File string   // executable, looked up in PATH when it has no separator
	Args []string // argv without argv[0]
	Env  []string // nil inherits the parent environment
	Cwd  string
	// Stdio holds stdin, stdout, stderr and extra descriptors in order.
	Stdio []StdioContainer
	// Detached starts the child in its own session where supported.
	Detached bool
}

// Process is a child process handle.
type Process struct {
	Handle[Process]
	cmd *exec.Cmd
	pid int
}

// NewProcess creates and initializes a process handle.
func NewProcess(l *Loop) (*Process, error) {
	p := &Process{}
	p.bind(l, p, ProcessHandle)
	return initialized(p, p.Init())
}

// Init registers the handle with its loop.
func (p *Process) Init() error {
	return p.init("process init", nil)
}

// PID returns the child pid, zero before Spawn.
func (p *Process) PID() int {
	return p.pid
}

// Spawn starts the child. Errors starting it are returned, not published.
func (p *Process) Spawn(opts ProcessOptions) error {
	const op = "spawn"
	if err := p.check(op); err != nil {
		return err
	}
	if p.cmd != nil {
		return errState(op, "process already spawned")
	}
	if opts.File == "" {
		return errArg(op, "empty file")
	}
	cmd := exec.Command(opts.File, opts.Args...)
	cmd.Env = opts.Env
	cmd.Dir = opts.Cwd
	detach(cmd, opts.Detached)

	var childEnds, parentEnds []*os.File
	var pipes []*Pipe
	cleanup := func() {
		for _, f := range append(childEnds, parentEnds...) {
			_ = f.Close()
		}
	}
	for i, sc := range opts.Stdio {
		var child *os.File
		switch sc.Flags {
		case StdioInherit:
			child = inheritedStdio(i)
		case StdioInheritFile:
			child = sc.File
		case StdioCreatePipe:
			if sc.Pipe == nil {
				cleanup()
				return errArg(op, "pipe stdio without a pipe handle")
			}
			r, w, err := os.Pipe()
			if err != nil {
				cleanup()
				return errOp(op, err)
			}
			if i == 0 {
				child = r
				parentEnds = append(parentEnds, w)
			} else {
				child = w
				parentEnds = append(parentEnds, r)
			}
			childEnds = append(childEnds, child)
			pipes = append(pipes, sc.Pipe)
		}
		switch i {
		case 0:
			if child != nil {
				cmd.Stdin = child
			}
		case 1:
			if child != nil {
				cmd.Stdout = child
			}
		case 2:
			if child != nil {
				cmd.Stderr = child
			}
		default:
			if child == nil {
				child, _ = os.Open(os.DevNull)
				if child != nil {
					childEnds = append(childEnds, child)
				}
			}
			cmd.ExtraFiles = append(cmd.ExtraFiles, child)
		}
	}

	if err := cmd.Start(); err != nil {
		cleanup()
		return errOp(op, err)
	}
	for _, f := range childEnds {
		_ = f.Close()
	}
	for i, pipe := range pipes {
		if err := pipe.Open(parentEnds[i]); err != nil {
			p.log.Debug().Err(err).Msg("attach stdio pipe")
			_ = parentEnds[i].Close()
		}
	}
	p.cmd = cmd
	p.pid = cmd.Process.Pid
	p.setActive(true)
	p.log.Debug().Int("pid", p.pid).Str("file", opts.File).Msg("spawned")
	go func() {
		err := cmd.Wait()
		p.loop.post(func() { p.exited(err) })
	}()
	return nil
}

func (p *Process) exited(err error) {
	ev := ExitEvent{}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		ev.Signal = exitSignal(exitErr.ProcessState)
		if ev.Signal == nil {
			ev.Status = int64(exitErr.ExitCode())
		}
	default:
		// No exit status is known; the failure is reported instead.
		if p.state < StateClosing {
			p.setActive(false)
			p.fail(err)
		}
		return
	}
	if p.state >= StateClosing {
		return
	}
	p.setActive(false)
	emitter.Publish[ExitEvent, Process](p, ev)
}

// Kill sends signum to the child.
func (p *Process) Kill(signum os.Signal) error {
	const op = "process kill"
	if err := p.check(op); err != nil {
		return err
	}
	if p.cmd == nil || p.cmd.ProcessState != nil {
		return errCode(op, api.ESRCH)
	}
	if err := p.cmd.Process.Signal(signum); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return errCode(op, api.ESRCH)
		}
		return errOp(op, err)
	}
	return nil
}

// Kill sends signum to the process pid.
func Kill(pid int, signum os.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return errOp("kill", err)
	}
	if err := proc.Signal(signum); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return errCode("kill", api.ESRCH)
		}
		return errOp("kill", err)
	}
	return nil
}

func inheritedStdio(i int) *os.File {
	switch i {
	case 0:
		return os.Stdin
	case 1:
		return os.Stdout
	case 2:
		return os.Stderr
	}
	return os.NewFile(uintptr(i), "inherited")
}

func exitSignal(ps *os.ProcessState) os.Signal {
	if ps == nil {
		return nil
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ws.Signal()
	}
	return nil
}
