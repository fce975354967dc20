package transfer

import (
	"github.com/opd-ai/pixlfs/protocol"
	"github.com/opd-ai/pixlfs/session"
)

type sentCommand struct {
	cmd     protocol.Command
	payload []byte
}

// mockSender records commands and tracks the single-outstanding-command rule.
type mockSender struct {
	sent []sentCommand
	busy bool
	err  error
}

func (m *mockSender) Send(cmd protocol.Command, payload []byte) error {
	if m.err != nil {
		return m.err
	}
	if m.busy {
		return session.ErrBusy
	}
	m.sent = append(m.sent, sentCommand{cmd: cmd, payload: append([]byte(nil), payload...)})
	m.busy = true
	return nil
}

func (m *mockSender) Idle() bool {
	return !m.busy
}

func (m *mockSender) last() sentCommand {
	if len(m.sent) == 0 {
		return sentCommand{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockSender) commands() []protocol.Command {
	out := make([]protocol.Command, 0, len(m.sent))
	for _, s := range m.sent {
		out = append(out, s.cmd)
	}
	return out
}

// reply completes the outstanding command with the given status and payload.
func (m *mockSender) reply(q *Queue, status byte, payload []byte) bool {
	m.busy = false
	return q.HandleResponse(&session.Response{
		Command: m.last().cmd,
		Status:  status,
		Payload: payload,
	})
}

// okDevice answers every command successfully; OpenFile returns handle 7 and
// ReadFile returns content.
func okDevice(content []byte) func(sentCommand) (byte, []byte) {
	return func(c sentCommand) (byte, []byte) {
		switch c.cmd {
		case protocol.CmdOpenFile:
			return protocol.StatusOK, []byte{7}
		case protocol.CmdReadFile:
			return protocol.StatusOK, content
		default:
			return protocol.StatusOK, nil
		}
	}
}

// run answers commands until the queue stops sending.
func (m *mockSender) run(q *Queue, device func(sentCommand) (byte, []byte)) {
	for m.busy {
		status, payload := device(m.last())
		m.reply(q, status, payload)
	}
}

// finishedRecorder collects OnFinished summaries.
type finishedRecorder struct {
	summaries []Summary
}

func (r *finishedRecorder) record(s Summary) {
	r.summaries = append(r.summaries, s)
}
