package pixlfs

import (
	"errors"

	"github.com/opd-ai/pixlfs/protocol"
	"github.com/opd-ai/pixlfs/session"
	"github.com/opd-ai/pixlfs/transfer"
)

var (
	// ErrLinkLost indicates the transport closed. Pending work is aborted.
	ErrLinkLost = errors.New("link lost")

	// ErrClosed indicates the client's Run loop has exited.
	ErrClosed = errors.New("client stopped")

	// ErrMalformedPacket indicates a frame shorter than the packet header.
	ErrMalformedPacket = protocol.ErrMalformedPacket

	// ErrTimeout indicates a command did not complete within the deadline.
	ErrTimeout = session.ErrTimeout

	// ErrBusy indicates a command was issued while another was outstanding.
	ErrBusy = session.ErrBusy
)

type (
	// ProtocolError reports a response that could not be reassembled.
	ProtocolError = session.ProtocolError
	// LinkError reports a transport failure while sending.
	LinkError = session.LinkError
	// DeviceError reports a non-zero response status.
	DeviceError = protocol.DeviceError
	// LocalIOError reports a local file failure.
	LocalIOError = transfer.LocalIOError
)

type (
	// Operation is one queued file request.
	Operation = transfer.Operation
	// Progress is the queue position.
	Progress = transfer.Progress
	// Summary is the outcome of a drained queue.
	Summary = transfer.Summary
)
