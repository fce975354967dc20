// Package limits provides centralized size limits for the Pixl link.
// This ensures consistent validation across the codec, session, transfer
// queue and transports.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxFrameSize is the largest frame the link carries in one write or
	// notification: a 247 byte ATT MTU minus the 3 byte ATT header.
	MaxFrameSize = 244

	// frameOverhead is the packet header (4 bytes) plus the file handle
	// byte that precedes WriteFile data.
	frameOverhead = 4 + 1

	// MaxChunkSize is the largest WriteFile data block that still fits in
	// one frame.
	MaxChunkSize = MaxFrameSize - frameOverhead

	// DefaultChunkSize is the upload block size the device firmware is
	// known to accept.
	DefaultChunkSize = 200

	// MaxPathLength bounds remote paths sent by the host.
	MaxPathLength = 255

	// MaxResponsePayload bounds a reassembled logical response (1MB). A
	// ReadFile response carries a whole file, so this is also the largest
	// file that can be downloaded.
	MaxResponsePayload = 1024 * 1024
)

var (
	// ErrEmpty indicates an empty value where one is required
	ErrEmpty = errors.New("empty value")

	// ErrTooLarge indicates a value exceeds its limit
	ErrTooLarge = errors.New("value too large")
)

// ValidateSize checks n against max. Returns an error with context including
// the actual and maximum sizes.
func ValidateSize(what string, n, max int) error {
	if n > max {
		return fmt.Errorf("%w: %s size %d exceeds limit %d", ErrTooLarge, what, n, max)
	}
	return nil
}

// ValidateChunkSize checks a configured upload block size.
func ValidateChunkSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: chunk size %d", ErrEmpty, n)
	}
	return ValidateSize("chunk", n, MaxChunkSize)
}

// ValidateFrame checks an outgoing or incoming frame against MaxFrameSize.
func ValidateFrame(frame []byte) error {
	if len(frame) == 0 {
		return ErrEmpty
	}
	return ValidateSize("frame", len(frame), MaxFrameSize)
}

// ValidateResponseSize checks the length of a reassembled response.
func ValidateResponseSize(n int) error {
	return ValidateSize("response", n, MaxResponsePayload)
}

// ValidatePath checks a remote path before it is encoded into a request.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: path", ErrEmpty)
	}
	return ValidateSize("path", len(path), MaxPathLength)
}
