package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/opd-ai/pixlfs/limits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBridge(t *testing.T) (addr string, accepted <-chan net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ch := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		ch <- conn
	}()

	return ln.Addr().String(), ch
}

func receive(t *testing.T, frames <-chan []byte) []byte {
	t.Helper()
	select {
	case f, ok := <-frames:
		require.True(t, ok, "frame channel closed")
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestTCPTransportExchangesFrames(t *testing.T) {
	addr, accepted := startBridge(t)

	host, err := NewTCPTransport(context.Background(), addr, time.Second)
	require.NoError(t, err)
	defer host.Close()

	bridge := NewConnTransport(<-accepted)
	defer bridge.Close()

	require.NoError(t, host.Send([]byte{0x16, 0, 0, 0, 3, 0, 'E', ':', '/'}))
	assert.Equal(t, []byte{0x16, 0, 0, 0, 3, 0, 'E', ':', '/'}, receive(t, bridge.Frames()))

	require.NoError(t, bridge.Send([]byte{0x16, 0, 0x00, 0x80}))
	require.NoError(t, bridge.Send([]byte{0x16, 0, 0x01, 0x00}))
	assert.Equal(t, []byte{0x16, 0, 0x00, 0x80}, receive(t, host.Frames()))
	assert.Equal(t, []byte{0x16, 0, 0x01, 0x00}, receive(t, host.Frames()))
}

func TestTCPTransportReassemblesSplitWrites(t *testing.T) {
	addr, accepted := startBridge(t)

	host, err := NewTCPTransport(context.Background(), addr, time.Second)
	require.NoError(t, err)
	defer host.Close()

	raw := <-accepted
	defer raw.Close()

	var header [2]byte
	binary.LittleEndian.PutUint16(header[:], 5)
	_, err = raw.Write(header[:1])
	require.NoError(t, err)
	_, err = raw.Write(append(header[1:], 1, 2))
	require.NoError(t, err)
	_, err = raw.Write([]byte{3, 4, 5})
	require.NoError(t, err)

	assert.Equal(t, []byte{1, 2, 3, 4, 5}, receive(t, host.Frames()))
}

func TestTCPTransportRejectsOversizeFrame(t *testing.T) {
	addr, accepted := startBridge(t)

	host, err := NewTCPTransport(context.Background(), addr, time.Second)
	require.NoError(t, err)
	defer host.Close()
	defer func() { (<-accepted).Close() }()

	err = host.Send(make([]byte, limits.MaxFrameSize+1))
	assert.True(t, errors.Is(err, limits.ErrTooLarge))
	assert.True(t, errors.Is(host.Send(nil), limits.ErrEmpty))
}

func TestTCPTransportPeerCloseClosesFrames(t *testing.T) {
	addr, accepted := startBridge(t)

	host, err := NewTCPTransport(context.Background(), addr, time.Second)
	require.NoError(t, err)
	defer host.Close()

	(<-accepted).Close()

	select {
	case _, ok := <-host.Frames():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("frame channel not closed after peer hangup")
	}
	assert.NoError(t, host.Err())
}

func TestTCPTransportDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = NewTCPTransport(context.Background(), addr, 500*time.Millisecond)
	assert.Error(t, err)
}
