// Package transport implements the links that carry Pixl frames between the
// host and a device.
//
// The device exposes one write channel and one notify channel. A Transport
// models exactly that: Send performs one write, and every notification
// arrives as one value on the Frames channel. Connection management, device
// discovery and radio details stay outside the protocol engine.
//
// # Implementations
//
//   - TCPTransport: a stream connection to a BLE-UART bridge. Each frame is
//     carried as a little-endian uint16 length followed by the frame bytes.
//   - Pipe: an in-memory pair used by tests and by the device emulator.
//
// Example:
//
//	t, err := transport.NewTCPTransport(ctx, "127.0.0.1:9123", 5*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Close()
//
//	if err := t.Send(frame); err != nil {
//	    // link is down
//	}
//	for frame := range t.Frames() {
//	    // one notification
//	}
//
// # Link Loss
//
// When the link drops the Frames channel is closed. Send returns ErrClosed
// from then on. Callers treat a closed channel as a disconnect and abort any
// work in progress.
package transport
