package session

import (
	"fmt"

	"github.com/opd-ai/pixlfs/protocol"
)

// ProtocolError reports a response that could not be reassembled. The
// command it belonged to is abandoned.
type ProtocolError struct {
	Command protocol.Command
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error on %s: %v", e.Command, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// LinkError reports a transport failure while sending a command.
type LinkError struct {
	Command protocol.Command
	Err     error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link error sending %s: %v", e.Command, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}
