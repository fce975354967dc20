// Package session implements the Pixl link session: it owns the single
// outstanding command, hands request frames to the transport, and reassembles
// fragmented notifications into one logical response per command.
//
// Example:
//
//	s := session.New(t, 10*time.Second)
//	if err := s.Send(protocol.CmdReadDir, payload); err != nil {
//	    return err
//	}
//	for frame := range t.Frames() {
//	    resp, err := s.Receive(frame)
//	    if err != nil {
//	        // *ProtocolError: accumulation discarded, session idle
//	    }
//	    if resp != nil {
//	        // complete response
//	    }
//	}
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/opd-ai/pixlfs/limits"
	"github.com/opd-ai/pixlfs/protocol"
	"github.com/sirupsen/logrus"
)

// ErrBusy indicates a Send while another command is still awaiting its
// response. The protocol is strictly request/response.
var ErrBusy = errors.New("command already in flight")

// ErrTimeout indicates the device did not complete a response in time.
var ErrTimeout = errors.New("command timed out")

// DefaultTimeout is the per-command deadline used when none is configured.
const DefaultTimeout = 10 * time.Second

// State is the session's position in the command lifecycle.
type State uint8

const (
	// StateIdle means no command is outstanding.
	StateIdle State = iota
	// StateAwaitingResponse means a command was sent and its response is
	// not complete yet.
	StateAwaitingResponse
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting_response"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// TimeProvider abstracts time operations for deterministic testing.
type TimeProvider interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// DefaultTimeProvider uses the standard library time functions.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// Since returns the duration since t.
func (DefaultTimeProvider) Since(t time.Time) time.Duration { return time.Since(t) }

// Sender is the outbound half of a transport.
type Sender interface {
	Send(frame []byte) error
}

// Response is one complete logical response.
type Response struct {
	Command protocol.Command
	Status  byte
	Payload []byte
}

// Session tracks one command at a time. It is not safe for concurrent use;
// the owner serializes calls.
type Session struct {
	link    Sender
	timeout time.Duration
	clock   TimeProvider

	state     State
	pending   protocol.Command
	sentAt    time.Time
	buffer    []byte
	fragments int
}

// New creates an idle session writing to link. A timeout of zero disables
// the per-command deadline.
func New(link Sender, timeout time.Duration) *Session {
	return &Session{
		link:    link,
		timeout: timeout,
		clock:   DefaultTimeProvider{},
	}
}

// SetTimeProvider sets a custom time provider for deterministic testing.
func (s *Session) SetTimeProvider(tp TimeProvider) {
	s.clock = tp
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Idle reports whether a new command may be sent.
func (s *Session) Idle() bool {
	return s.state == StateIdle
}

// Pending returns the outstanding command, if any.
func (s *Session) Pending() (protocol.Command, bool) {
	return s.pending, s.state == StateAwaitingResponse
}

// Send encodes and writes a request and arms the response deadline. A
// transport failure leaves the session idle and is returned as *LinkError.
func (s *Session) Send(cmd protocol.Command, payload []byte) error {
	if s.state == StateAwaitingResponse {
		logrus.WithFields(logrus.Fields{
			"function": "Send",
			"command":  cmd.String(),
			"pending":  s.pending.String(),
		}).Error("Send while a command is outstanding")
		return fmt.Errorf("%w: %s pending, cannot send %s", ErrBusy, s.pending, cmd)
	}

	frame := protocol.Encode(cmd, payload, 0)
	if err := limits.ValidateFrame(frame); err != nil {
		return fmt.Errorf("%s request: %w", cmd, err)
	}

	if err := s.link.Send(frame); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Send",
			"command":  cmd.String(),
			"error":    err.Error(),
		}).Warn("Transport rejected frame")
		return &LinkError{Command: cmd, Err: err}
	}

	s.state = StateAwaitingResponse
	s.pending = cmd
	s.sentAt = s.clock.Now()
	s.buffer = nil
	s.fragments = 0

	logrus.WithFields(logrus.Fields{
		"function": "Send",
		"command":  cmd.String(),
		"bytes":    len(frame),
	}).Debug("Command sent")

	return nil
}

// Receive folds one inbound frame into the pending response. It returns the
// response once the final fragment arrives, (nil, nil) while more fragments
// are expected or when the frame was dropped, and a *ProtocolError when the
// frame cannot be decoded or the response grows past the reassembly limit.
// After an error the accumulation is discarded and the session is idle.
func (s *Session) Receive(frame []byte) (*Response, error) {
	pkt, err := protocol.Decode(frame)
	if err != nil {
		cmd := s.pending
		s.reset()
		logrus.WithFields(logrus.Fields{
			"function": "Receive",
			"command":  cmd.String(),
			"bytes":    len(frame),
		}).Warn("Dropping malformed frame and pending response")
		return nil, &ProtocolError{Command: cmd, Err: err}
	}

	if s.state != StateAwaitingResponse {
		logrus.WithFields(logrus.Fields{
			"function": "Receive",
			"command":  pkt.Command.String(),
			"chunk":    pkt.ChunkIndex(),
		}).Warn("Dropping unsolicited frame")
		return nil, nil
	}
	if pkt.Command != s.pending {
		logrus.WithFields(logrus.Fields{
			"function": "Receive",
			"command":  pkt.Command.String(),
			"pending":  s.pending.String(),
		}).Warn("Dropping frame for a different command")
		return nil, nil
	}

	s.buffer = append(s.buffer, pkt.Payload...)
	if err := limits.ValidateResponseSize(len(s.buffer)); err != nil {
		s.reset()
		return nil, &ProtocolError{Command: pkt.Command, Err: err}
	}

	if pkt.MoreData() {
		s.fragments++
		return nil, nil
	}

	resp := &Response{
		Command: pkt.Command,
		Status:  pkt.Status,
		Payload: s.buffer,
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Receive",
		"command":   resp.Command.String(),
		"status":    resp.Status,
		"bytes":     len(resp.Payload),
		"fragments": s.fragments + 1,
	}).Debug("Response complete")

	s.reset()
	return resp, nil
}

// Expired reports whether the outstanding command has passed its deadline.
func (s *Session) Expired() bool {
	if s.state != StateAwaitingResponse || s.timeout <= 0 {
		return false
	}
	return s.clock.Since(s.sentAt) >= s.timeout
}

// Abort discards any partial response and returns the session to idle. It
// returns the command that was outstanding, if any.
func (s *Session) Abort() (protocol.Command, bool) {
	cmd, ok := s.Pending()
	if ok {
		logrus.WithFields(logrus.Fields{
			"function":  "Abort",
			"command":   cmd.String(),
			"buffered":  len(s.buffer),
			"fragments": s.fragments,
		}).Warn("Abandoning outstanding command")
	}
	s.reset()
	return cmd, ok
}

func (s *Session) reset() {
	s.state = StateIdle
	s.pending = 0
	s.buffer = nil
	s.fragments = 0
}
