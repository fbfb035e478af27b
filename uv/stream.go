// File: uv/stream.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stream is the connection-oriented core shared by TCP and Pipe. Reads and
// accepts run on pumps; writes and shutdown go through one writer goroutine
// per stream so their completions arrive in submission order.

package uv

import (
	"context"
	"io"
	"net"
	"os"
	"sync"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
)

const readBufferSize = 64 << 10

// DataEvent carries bytes read from a stream. Data is owned by the listener.
type DataEvent struct {
	Data []byte
}

// EndEvent is published when the peer closed its write side.
type EndEvent struct{}

// ListenEvent is published when a connection is ready for Accept.
type ListenEvent struct{}

// ConnectEvent is published when Connect succeeded.
type ConnectEvent struct{}

// WriteEvent is published when one Write completed.
type WriteEvent struct{}

// ShutdownEvent is published when Shutdown completed.
type ShutdownEvent struct{}

type readResult struct {
	data []byte
	err  error
}

type acceptResult struct {
	conn net.Conn
	err  error
}

// streamReq is the internal request behind connect, write and shutdown. Its
// terminal events are forwarded to the owning stream.
type streamReq struct {
	Request[streamReq]
	success func()
}

func newStreamReq(l *Loop, typ RequestType) *streamReq {
	r := &streamReq{}
	r.bind(l, r, typ)
	return r
}

// Stream is embedded by TCP and Pipe; T is the embedding type.
type Stream[T any] struct {
	Handle[T]

	conn     io.ReadWriteCloser
	listener net.Listener

	reader  *pump[readResult]
	reading bool
	eof     bool
	stash   []readResult

	acceptor  *pump[acceptResult]
	listening bool
	accepted  net.Conn

	out          *writer
	writeBytes   int
	writeCount   int
	shut         bool
	connecting   bool
	stopConnect  context.CancelFunc
	onAttachHook func()
}

func (s *Stream[T]) bindStream(l *Loop, owner *T, typ HandleType) {
	s.bind(l, owner, typ)
	s.teardown = s.closeNative
}

// Readable reports whether the stream can still deliver data.
func (s *Stream[T]) Readable() bool {
	return s.conn != nil && !s.eof
}

// Writable reports whether the stream accepts writes.
func (s *Stream[T]) Writable() bool {
	return s.conn != nil && !s.shut
}

// WriteQueueSize returns the number of bytes queued for writing.
func (s *Stream[T]) WriteQueueSize() int {
	return s.writeBytes
}

// Fd returns the descriptor of the connection, or of the listener when the
// stream is listening.
func (s *Stream[T]) Fd() (int, error) {
	const op = "fileno"
	if err := s.check(op); err != nil {
		return -1, err
	}
	var c any
	switch {
	case s.conn != nil:
		c = s.conn
	case s.listener != nil:
		c = s.listener
	default:
		return -1, errCode(op, api.EBADF)
	}
	fd, err := sockFd(c)
	if err != nil {
		return -1, errOp(op, err)
	}
	return fd, nil
}

// ReadStart begins publishing DataEvent. Data read while reading was stopped
// is delivered first.
func (s *Stream[T]) ReadStart() error {
	const op = "read start"
	if err := s.check(op); err != nil {
		return err
	}
	if s.conn == nil {
		return errCode(op, api.ENOTCONN)
	}
	if s.reading {
		return nil
	}
	if s.eof && len(s.stash) == 0 {
		return errCode(op, api.EOF)
	}
	s.reading = true
	s.setActive(true)
	if len(s.stash) > 0 {
		s.loop.post(s.replay)
		return nil
	}
	s.reader.kick()
	return nil
}

// ReadStop stops publishing DataEvent. A read already in flight is kept for
// the next ReadStart.
func (s *Stream[T]) ReadStop() error {
	if err := s.check("read stop"); err != nil {
		return err
	}
	s.reading = false
	s.setActive(s.listening)
	return nil
}

// Write queues data. The stream owns data until WriteEvent or ErrorEvent.
func (s *Stream[T]) Write(data []byte) error {
	const op = "write"
	if err := s.writeCheck(op); err != nil {
		return err
	}
	if len(data) == 0 {
		return errArg(op, "empty buffer")
	}
	req := s.newReq(WriteRequest, func() {
		emitter.Publish[WriteEvent, T](s, WriteEvent{})
	})
	if err := req.start(op); err != nil {
		return err
	}
	s.enqueue(writeOp{data: data, req: req})
	return nil
}

// TryWrite writes as much of data as the socket accepts without blocking.
// It fails with EAGAIN while queued writes are pending or nothing could be
// written.
func (s *Stream[T]) TryWrite(data []byte) (int, error) {
	const op = "try write"
	if err := s.writeCheck(op); err != nil {
		return 0, err
	}
	if s.writeCount > 0 {
		return 0, errCode(op, api.EAGAIN)
	}
	n, err := rawWrite(s.conn, data)
	if err != nil {
		return n, errOp(op, err)
	}
	return n, nil
}

// Shutdown closes the write side after queued writes complete.
func (s *Stream[T]) Shutdown() error {
	const op = "shutdown"
	if err := s.writeCheck(op); err != nil {
		return err
	}
	req := s.newReq(ShutdownRequest, func() {
		emitter.Publish[ShutdownEvent, T](s, ShutdownEvent{})
	})
	if err := req.start(op); err != nil {
		return err
	}
	s.shut = true
	s.enqueue(writeOp{shutdown: true, req: req})
	return nil
}

func (s *Stream[T]) writeCheck(op string) error {
	if err := s.check(op); err != nil {
		return err
	}
	if s.conn == nil {
		return errCode(op, api.ENOTCONN)
	}
	if s.shut {
		return errCode(op, api.EPIPE)
	}
	return nil
}

func (s *Stream[T]) newReq(typ RequestType, success func()) *streamReq {
	req := newStreamReq(s.loop, typ)
	emitter.On[api.ErrorEvent, streamReq](req, func(ev api.ErrorEvent, _ *streamReq) {
		s.forward(ev)
	})
	req.success = success
	return req
}

func (s *Stream[T]) forward(ev api.ErrorEvent) {
	if s.state >= StateClosing {
		ev.Code = api.ECANCELED
	}
	emitter.Publish[api.ErrorEvent, T](s, ev)
}

// attach adopts an established connection.
func (s *Stream[T]) attach(c io.ReadWriteCloser) {
	s.conn = c
	s.reader = newPump(s.loop, s, func() readResult {
		buf := make([]byte, readBufferSize)
		n, err := c.Read(buf)
		return readResult{data: buf[:n:n], err: err}
	}, s.onRead)
	if s.onAttachHook != nil {
		s.onAttachHook()
	}
}

func (s *Stream[T]) onRead(r readResult) {
	if s.state >= StateClosing {
		return
	}
	if !s.reading {
		s.stash = append(s.stash, r)
		return
	}
	s.emitRead(r)
	if s.reading && !s.eof && s.state < StateClosing {
		s.reader.kick()
	}
}

func (s *Stream[T]) replay() {
	for len(s.stash) > 0 && s.reading && s.state < StateClosing {
		r := s.stash[0]
		s.stash = s.stash[1:]
		s.emitRead(r)
	}
	if len(s.stash) == 0 && s.reading && !s.eof && s.state < StateClosing {
		s.reader.kick()
	}
}

// emitRead publishes the data part of a read before its error part; Go
// readers may return both from one call.
func (s *Stream[T]) emitRead(r readResult) {
	if len(r.data) > 0 {
		emitter.Publish[DataEvent, T](s, DataEvent{Data: r.data})
	}
	if r.err == nil || s.state >= StateClosing {
		return
	}
	// Nothing arrives after EOF or a read error.
	s.eof = true
	s.reading = false
	s.setActive(s.listening)
	if api.Translate(r.err) == api.EOF {
		emitter.Publish[EndEvent, T](s, EndEvent{})
		return
	}
	s.fail(r.err)
}

// listen starts accepting on ln.
func (s *Stream[T]) listen(ln net.Listener) {
	s.listener = ln
	s.listening = true
	s.acceptor = newPump(s.loop, s, func() acceptResult {
		c, err := ln.Accept()
		return acceptResult{conn: c, err: err}
	}, s.onAccept)
	s.setActive(true)
	s.acceptor.kick()
}

func (s *Stream[T]) onAccept(r acceptResult) {
	if s.state >= StateClosing || !s.listening {
		if r.conn != nil {
			_ = r.conn.Close()
		}
		return
	}
	if r.err != nil {
		s.fail(r.err)
		if api.Translate(r.err) != api.ECANCELED {
			s.acceptor.kick()
		}
		return
	}
	s.accepted = r.conn
	emitter.Publish[ListenEvent, T](s, ListenEvent{})
	if s.accepted == nil && s.listening && s.state < StateClosing {
		s.acceptor.kick()
	}
}

// accept hands the pending connection to client.
func (s *Stream[T]) accept(client *Stream[T]) error {
	const op = "accept"
	if err := s.check(op); err != nil {
		return err
	}
	if err := client.check(op); err != nil {
		return err
	}
	if !s.listening || s.accepted == nil {
		return errCode(op, api.EAGAIN)
	}
	if client.conn != nil {
		return errState(op, "client already connected")
	}
	c := s.accepted
	s.accepted = nil
	client.attach(c)
	if !s.acceptor.Busy() && s.state < StateClosing {
		s.acceptor.kick()
	}
	return nil
}

// connect dials on a helper goroutine and attaches the result.
func (s *Stream[T]) connect(op string, dial func(context.Context) (net.Conn, error)) error {
	if err := s.check(op); err != nil {
		return err
	}
	if s.conn != nil || s.listening {
		return errCode(op, api.EISCONN)
	}
	if s.connecting {
		return errCode(op, api.EALREADY)
	}
	req := s.newReq(ConnectRequest, func() {
		emitter.Publish[ConnectEvent, T](s, ConnectEvent{})
	})
	if err := req.start(op); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.connecting = true
	s.stopConnect = cancel
	s.begin()
	go func() {
		c, err := dial(ctx)
		s.loop.post(func() {
			s.end()
			s.connecting = false
			cancel()
			if err == nil && s.state >= StateClosing {
				_ = c.Close()
				err = api.ECANCELED
			}
			if err == nil {
				s.attach(c)
			}
			req.complete(err)
		})
	}()
	return nil
}

func (s *Stream[T]) enqueue(op writeOp) {
	if s.out == nil {
		s.out = newWriter(s.conn)
		go s.out.run(s.loop)
	}
	s.begin()
	s.writeBytes += len(op.data)
	s.writeCount++
	op.done = func(err error) {
		s.end()
		s.writeBytes -= len(op.data)
		s.writeCount--
		op.req.complete(err)
	}
	s.out.push(op)
}

func (s *Stream[T]) closeNative() {
	s.reading = false
	s.listening = false
	if s.stopConnect != nil {
		s.stopConnect()
		s.stopConnect = nil
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.accepted != nil {
		_ = s.accepted.Close()
		s.accepted = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	if s.reader != nil {
		s.reader.stop()
	}
	if s.acceptor != nil {
		s.acceptor.stop()
	}
	if s.out != nil {
		s.out.stop()
	}
	s.stash = nil
}

// complete finishes the request and publishes its success event.
func (r *streamReq) complete(err error) {
	r.finish(err, r.success)
}

type writeOp struct {
	data     []byte
	to       net.Addr
	shutdown bool
	req      *streamReq
	done     func(error)
}

// writer serializes writes of one stream on a dedicated goroutine.
type writer struct {
	conn io.Writer
	mu   sync.Mutex
	ops  []writeOp
	kick chan struct{}
	done chan struct{}
}

func newWriter(conn io.Writer) *writer {
	return &writer{conn: conn, kick: make(chan struct{}, 1), done: make(chan struct{})}
}

func (w *writer) push(op writeOp) {
	w.mu.Lock()
	w.ops = append(w.ops, op)
	w.mu.Unlock()
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *writer) pop() (writeOp, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.ops) == 0 {
		return writeOp{}, false
	}
	op := w.ops[0]
	w.ops[0] = writeOp{}
	w.ops = w.ops[1:]
	return op, true
}

func (w *writer) stop() {
	close(w.done)
}

func (w *writer) run(l *Loop) {
	for {
		stopping := false
		select {
		case <-w.kick:
		case <-w.done:
			stopping = true
		}
		for op, ok := w.pop(); ok; op, ok = w.pop() {
			err := w.perform(op)
			done := op.done
			l.post(func() { done(err) })
		}
		if stopping {
			return
		}
	}
}

func (w *writer) perform(op writeOp) error {
	if op.shutdown {
		switch c := w.conn.(type) {
		case interface{ CloseWrite() error }:
			return c.CloseWrite()
		case *os.File:
			return c.Close()
		}
		return api.ENOTSUP
	}
	if op.to != nil {
		_, err := w.conn.(net.PacketConn).WriteTo(op.data, op.to)
		return err
	}
	_, err := w.conn.Write(op.data)
	return err
}
