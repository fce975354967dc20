// Package emulator implements an in-memory Pixl device.
//
// A Device answers request frames the way the firmware does: responses echo
// the command code, carry a status byte, and payloads larger than one frame
// are split into fragments flagged with the more-data bit. It backs the CLI's
// --simulate mode and the end-to-end tests.
//
// Example:
//
//	host, dev := transport.NewPipe(64)
//	d := emulator.New()
//	d.AddDrive('E', "Flash", 8<<20)
//	go d.Serve(ctx, dev)
//	client, _ := pixlfs.New(host, nil)
package emulator

import (
	"context"
	"strings"
	"sync"

	"github.com/opd-ai/pixlfs/limits"
	"github.com/opd-ai/pixlfs/protocol"
	"github.com/opd-ai/pixlfs/transport"
	"github.com/sirupsen/logrus"
)

// Version is the GetVersion payload reported by the emulator.
const Version = "pixl-emulator 1.0"

type handle struct {
	path string
	file *node
	mode byte
}

// Device is an emulated Pixl. It is safe for concurrent use.
type Device struct {
	mu      sync.Mutex
	drives  []*drive
	handles map[byte]*handle
	nextID  byte

	// one-shot overrides keyed by command
	statuses map[protocol.Command]byte
	silenced map[protocol.Command]bool
}

// New creates a device with no drives.
func New() *Device {
	return &Device{
		handles:  make(map[byte]*handle),
		statuses: make(map[protocol.Command]byte),
		silenced: make(map[protocol.Command]bool),
	}
}

// AddDrive adds an empty volume reported as "<letter>:/".
func (d *Device) AddDrive(letter byte, label string, size uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drives = append(d.drives, &drive{letter: letter, label: label, size: size, root: newDir("")})
}

// WriteFile stores a file, creating parent directories.
func (d *Device) WriteFile(path string, data []byte) error {
	letter, parts, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return errIsDir
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.mkdirAll(string(letter) + ":/" + strings.Join(parts[:len(parts)-1], "/")); err != nil {
		return err
	}
	f, err := d.create(path)
	if err != nil {
		return err
	}
	f.data = append([]byte(nil), data...)
	return nil
}

// ReadFile returns a copy of a stored file.
func (d *Device) ReadFile(path string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.lookup(path)
	if err != nil {
		return nil, err
	}
	if n.dir {
		return nil, errIsDir
	}
	return append([]byte(nil), n.data...), nil
}

// Mkdir creates a directory and any missing parents.
func (d *Device) Mkdir(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mkdirAll(path)
}

// Exists reports whether path names a file or directory.
func (d *Device) Exists(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.lookup(path)
	return err == nil
}

// OpenHandles returns the number of file ids not yet closed.
func (d *Device) OpenHandles() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handles)
}

// InjectStatus makes the next response to cmd carry status.
func (d *Device) InjectStatus(cmd protocol.Command, status byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses[cmd] = status
}

// Silence makes the device ignore the next request for cmd.
func (d *Device) Silence(cmd protocol.Command) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.silenced[cmd] = true
}

// Handle executes one request frame and returns the response frames. A
// malformed or silenced request yields no frames.
func (d *Device) Handle(frame []byte) [][]byte {
	pkt, err := protocol.Decode(frame)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Handle",
			"bytes":    len(frame),
		}).Warn("Emulator ignoring malformed request")
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.silenced[pkt.Command] {
		delete(d.silenced, pkt.Command)
		return nil
	}

	status, payload := d.execute(pkt.Command, pkt.Payload)
	if injected, ok := d.statuses[pkt.Command]; ok {
		delete(d.statuses, pkt.Command)
		status, payload = injected, nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "Handle",
		"command":  pkt.Command.String(),
		"status":   status,
		"bytes":    len(payload),
	}).Debug("Emulator answered request")

	return Fragment(pkt.Command, status, payload)
}

// Fragment splits a response payload into frames no larger than
// limits.MaxFrameSize.
func Fragment(cmd protocol.Command, status byte, payload []byte) [][]byte {
	const room = limits.MaxFrameSize - protocol.HeaderSize
	if len(payload) <= room {
		return [][]byte{protocol.EncodeResponse(cmd, status, payload, 0)}
	}

	frames := make([][]byte, 0, (len(payload)+room-1)/room)
	for index := 0; len(payload) > 0; index++ {
		n := room
		if n > len(payload) {
			n = len(payload)
		}
		chunk := uint16(index) & protocol.ChunkIndexMask
		if n < len(payload) {
			chunk |= protocol.MoreDataFlag
		}
		frames = append(frames, protocol.EncodeResponse(cmd, status, payload[:n], chunk))
		payload = payload[n:]
	}
	return frames
}

// Serve answers every frame arriving on t until ctx ends or the link closes.
func (d *Device) Serve(ctx context.Context, t transport.Transport) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-t.Frames():
			if !ok {
				return nil
			}
			for _, resp := range d.Handle(frame) {
				if err := t.Send(resp); err != nil {
					logrus.WithFields(logrus.Fields{
						"function": "Serve",
						"error":    err.Error(),
					}).Warn("Emulator failed to send response")
					return err
				}
			}
		}
	}
}
