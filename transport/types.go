package transport

import "errors"

// ErrClosed is returned by Send after the transport has been closed or the
// link has dropped.
var ErrClosed = errors.New("transport closed")

// Transport defines the link between the host and the device. Each call to
// Send is one write on the device's write channel; each value received from
// Frames is one notification from the device's notify channel.
//
// Implementations must not call back into the caller: inbound frames are
// delivered only through the channel, which is closed when the link drops.
type Transport interface {
	// Send writes one frame to the device.
	Send(frame []byte) error

	// Frames returns the inbound notification channel.
	Frames() <-chan []byte

	// Close shuts down the link and closes the Frames channel.
	Close() error
}
