// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package uv

import (
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/emitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindUDP(t *testing.T, l *Loop) (*UDP, Addr) {
	t.Helper()
	u, err := NewUDP(l)
	require.NoError(t, err)
	require.NoError(t, u.Bind(Addr{IP: "127.0.0.1"}, UDPReuseAddr))
	addr, err := u.Sock()
	require.NoError(t, err)
	return u, addr
}

func TestUDPRoundTrip(t *testing.T) {
	l := newTestLoop(t)
	guard(t, l, 5*time.Second)
	server, serverAddr := bindUDP(t, l)
	client, clientAddr := bindUDP(t, l)

	emitter.On(server, func(ev UDPDataEvent, s *UDP) {
		assert.Equal(t, clientAddr, ev.Sender)
		assert.False(t, ev.Partial)
		require.NoError(t, s.Send(ev.Sender, append([]byte("re: "), ev.Data...)))
	})
	emitter.On(server, func(_ SendEvent, s *UDP) { s.Close() })

	var reply string
	sent := 0
	emitter.On(client, func(SendEvent, *UDP) { sent++ })
	emitter.On(client, func(ev UDPDataEvent, c *UDP) {
		reply = string(ev.Data)
		c.Close()
	})
	require.NoError(t, server.RecvStart())
	require.NoError(t, client.RecvStart())
	require.NoError(t, client.Send(serverAddr, []byte("datagram")))
	assert.Equal(t, 1, client.SendQueueCount())
	assert.Equal(t, len("datagram"), client.SendQueueSize())

	_, err := l.Run(RunDefault)
	require.NoError(t, err)
	assert.Equal(t, "re: datagram", reply)
	assert.Equal(t, 1, sent)
}

func TestUDPConnectedPeer(t *testing.T) {
	l := newTestLoop(t)
	guard(t, l, 5*time.Second)
	server, serverAddr := bindUDP(t, l)
	client, err := NewUDP(l)
	require.NoError(t, err)

	assert.ErrorIs(t, client.Send(Addr{}, []byte("x")), api.EDESTADDRREQ)
	_, err = client.Peer()
	assert.ErrorIs(t, err, api.ENOTCONN)

	require.NoError(t, client.Connect(serverAddr))
	peer, err := client.Peer()
	require.NoError(t, err)
	assert.Equal(t, serverAddr, peer)
	assert.ErrorIs(t, client.Connect(serverAddr), api.EISCONN)
	assert.ErrorIs(t, client.Send(serverAddr, []byte("x")), api.EISCONN)

	var got []string
	emitter.On(server, func(ev UDPDataEvent, s *UDP) {
		got = append(got, string(ev.Data))
		if len(got) == 2 {
			s.Close()
		}
	})
	require.NoError(t, server.RecvStart())
	n, err := client.TrySend(Addr{}, []byte("try"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, client.Send(Addr{}, []byte("queued")))

	runUntil(t, l, func() bool { return len(got) == 2 })
	assert.Equal(t, []string{"try", "queued"}, got)

	require.NoError(t, client.Disconnect())
	_, err = client.Peer()
	assert.ErrorIs(t, err, api.ENOTCONN)
	assert.ErrorIs(t, client.Disconnect(), api.ENOTCONN)
	assert.ErrorIs(t, client.Send(Addr{}, []byte("x")), api.EDESTADDRREQ)
}

func TestUDPSocketOptions(t *testing.T) {
	l := newTestLoop(t)
	u, err := NewUDP(l)
	require.NoError(t, err)
	assert.ErrorIs(t, u.SetTTL(10), api.EBADF)
	_, err = u.Sock()
	assert.ErrorIs(t, err, api.EBADF)

	require.NoError(t, u.Bind(Addr{IP: "127.0.0.1"}, 0))
	assert.ErrorIs(t, u.Bind(Addr{IP: "127.0.0.1"}, 0), api.EINVAL)
	require.NoError(t, u.SetTTL(32))
	assert.ErrorIs(t, u.SetTTL(0), api.ErrInvalidArgument)
	assert.ErrorIs(t, u.SetMulticastTTL(256), api.ErrInvalidArgument)
	require.NoError(t, u.SetMulticastTTL(4))
	require.NoError(t, u.SetMulticastLoop(false))
	require.NoError(t, u.SetBroadcast(true))

	size, err := u.RecvBufferSize()
	require.NoError(t, err)
	assert.Positive(t, size)
	size, err = u.SendBufferSize()
	require.NoError(t, err)
	assert.Positive(t, size)
}

func TestUDPSendAfterCloseFails(t *testing.T) {
	l := newTestLoop(t)
	u, addr := bindUDP(t, l)
	u.Close()
	assert.ErrorIs(t, u.Send(addr, []byte("x")), api.ErrInvalidState)
	assert.ErrorIs(t, u.RecvStart(), api.ErrInvalidState)
	_, err := l.Run(RunDefault)
	require.NoError(t, err)
	assert.ErrorIs(t, u.Send(addr, []byte("x")), api.ErrClosedHandle)
}

type closedReader struct{}

func (closedReader) ReadMsgUDP([]byte, []byte) (int, int, int, *net.UDPAddr, error) {
	return -1, 0, 0, nil, net.ErrClosed
}

func TestReadDatagramInterruptedByClose(t *testing.T) {
	var r udpResult
	require.NotPanics(t, func() { r = readDatagram(closedReader{}) })
	assert.Empty(t, r.data)
	assert.ErrorIs(t, r.err, net.ErrClosed)
}

func TestUDPCloseWhileReceiving(t *testing.T) {
	l := newTestLoop(t)
	guard(t, l, 5*time.Second)
	u, _ := bindUDP(t, l)
	require.NoError(t, u.RecvStart())
	_, err := l.Run(RunNoWait)
	require.NoError(t, err)

	closed := false
	emitter.On(u, func(api.CloseEvent, *UDP) { closed = true })
	u.Close()
	runUntil(t, l, func() bool { return closed })
}
