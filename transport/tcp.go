package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/opd-ai/pixlfs/limits"
	"github.com/sirupsen/logrus"
)

const (
	// frameBacklog is the number of inbound frames buffered before the
	// reader blocks.
	frameBacklog = 256

	writeTimeout = 5 * time.Second
)

// TCPTransport carries frames over a stream connection to a BLE-UART
// bridge. Each frame is prefixed with its length as a little-endian uint16
// so notification boundaries survive the stream. It satisfies the Transport
// interface.
type TCPTransport struct {
	conn   net.Conn
	frames chan []byte

	writeMu   sync.Mutex
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// NewTCPTransport dials the bridge at addr.
func NewTCPTransport(ctx context.Context, addr string, dialTimeout time.Duration) (*TCPTransport, error) {
	logrus.WithFields(logrus.Fields{
		"function": "NewTCPTransport",
		"address":  addr,
	}).Info("Dialing device bridge")

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	return NewConnTransport(conn), nil
}

// NewConnTransport wraps an established connection. Bridges and the
// emulator's listener use it for the accepting side.
func NewConnTransport(conn net.Conn) *TCPTransport {
	t := &TCPTransport{
		conn:   conn,
		frames: make(chan []byte, frameBacklog),
	}

	go t.readLoop()

	logrus.WithFields(logrus.Fields{
		"function": "NewConnTransport",
		"local":    conn.LocalAddr().String(),
		"remote":   conn.RemoteAddr().String(),
	}).Debug("Frame transport started")

	return t
}

// Send writes one length-prefixed frame.
func (t *TCPTransport) Send(frame []byte) error {
	if err := limits.ValidateFrame(frame); err != nil {
		return err
	}

	buf := make([]byte, 2+len(frame))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(frame)))
	copy(buf[2:], frame)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return t.fail(err)
	}
	if _, err := t.conn.Write(buf); err != nil {
		return t.fail(err)
	}

	return nil
}

// Frames returns the inbound frame channel.
func (t *TCPTransport) Frames() <-chan []byte {
	return t.frames
}

// Err returns the reason the link stopped, or nil while it is up or after a
// clean Close.
func (t *TCPTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Close shuts down the connection. The Frames channel is closed once the
// reader exits.
func (t *TCPTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.conn.Close()
	})
	return err
}

// fail records the first link error, closes the connection and returns a
// wrapped error for the caller.
func (t *TCPTransport) fail(err error) error {
	t.mu.Lock()
	if t.err == nil {
		t.err = err
	}
	t.mu.Unlock()

	t.Close()
	return fmt.Errorf("%w: %v", ErrClosed, err)
}

// readLoop reads frames until the connection fails or is closed.
func (t *TCPTransport) readLoop() {
	defer close(t.frames)

	header := make([]byte, 2)
	for {
		frame, err := t.readFrame(header)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logrus.WithFields(logrus.Fields{
					"function": "readLoop",
					"remote":   t.conn.RemoteAddr().String(),
					"error":    err.Error(),
				}).Warn("Frame transport read failed")
				t.fail(err)
			}
			return
		}
		t.frames <- frame
	}
}

// readFrame reads the 2-byte length header and the frame body.
func (t *TCPTransport) readFrame(header []byte) ([]byte, error) {
	if _, err := io.ReadFull(t.conn, header); err != nil {
		return nil, err
	}

	length := int(binary.LittleEndian.Uint16(header))
	if err := limits.ValidateSize("frame", length, limits.MaxFrameSize); err != nil {
		return nil, err
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(t.conn, frame); err != nil {
		return nil, err
	}
	return frame, nil
}
