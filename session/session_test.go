package session

import (
	"errors"
	"testing"
	"time"

	"github.com/opd-ai/pixlfs/limits"
	"github.com/opd-ai/pixlfs/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession() (*Session, *mockLink, *mockTimeProvider) {
	link := &mockLink{}
	tp := newMockTimeProvider()
	s := New(link, 5*time.Second)
	s.SetTimeProvider(tp)
	return s, link, tp
}

func TestSendEncodesRequest(t *testing.T) {
	s, link, _ := newTestSession()

	require.NoError(t, s.Send(protocol.CmdReadDir, []byte{3, 0, 'E', ':', '/'}))

	assert.Equal(t, []byte{0x16, 0, 0, 0, 3, 0, 'E', ':', '/'}, link.last())
	assert.Equal(t, StateAwaitingResponse, s.State())
	cmd, ok := s.Pending()
	assert.True(t, ok)
	assert.Equal(t, protocol.CmdReadDir, cmd)
}

func TestSendWhileAwaitingIsBusy(t *testing.T) {
	s, link, _ := newTestSession()
	require.NoError(t, s.Send(protocol.CmdGetVersion, nil))

	err := s.Send(protocol.CmdGetDriveList, nil)
	assert.True(t, errors.Is(err, ErrBusy))
	assert.Len(t, link.frames, 1)

	cmd, _ := s.Pending()
	assert.Equal(t, protocol.CmdGetVersion, cmd)
}

func TestSendLinkFailure(t *testing.T) {
	s, link, _ := newTestSession()
	link.fail = true

	err := s.Send(protocol.CmdGetVersion, nil)

	var linkErr *LinkError
	require.True(t, errors.As(err, &linkErr))
	assert.Equal(t, protocol.CmdGetVersion, linkErr.Command)
	assert.True(t, errors.Is(err, errLinkDown))
	assert.True(t, s.Idle())
}

func TestSendRejectsOversizeRequest(t *testing.T) {
	s, link, _ := newTestSession()

	err := s.Send(protocol.CmdWriteFile, make([]byte, limits.MaxFrameSize))

	assert.True(t, errors.Is(err, limits.ErrTooLarge))
	assert.Empty(t, link.frames)
	assert.True(t, s.Idle())
}

func TestReceiveSingleFrame(t *testing.T) {
	s, _, _ := newTestSession()
	require.NoError(t, s.Send(protocol.CmdGetVersion, nil))

	resp, err := s.Receive([]byte{0x01, 0x00, 0x00, 0x00, 0x01, 0x02})

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, protocol.CmdGetVersion, resp.Command)
	assert.Equal(t, byte(0), resp.Status)
	assert.Equal(t, []byte{1, 2}, resp.Payload)
	assert.True(t, s.Idle())
}

func TestReceiveReassemblesFragments(t *testing.T) {
	s, _, _ := newTestSession()
	require.NoError(t, s.Send(protocol.CmdReadDir, nil))

	frames := [][]byte{
		{0x16, 0x00, 0x00, 0x80, 'a', 'b'},
		{0x16, 0x00, 0x01, 0x80},
		{0x16, 0x00, 0x02, 0x80, 'c'},
		{0x16, 0x00, 0x03, 0x00, 'd', 'e'},
	}

	for _, f := range frames[:3] {
		resp, err := s.Receive(f)
		require.NoError(t, err)
		assert.Nil(t, resp)
		assert.Equal(t, StateAwaitingResponse, s.State())
	}

	resp, err := s.Receive(frames[3])
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, []byte("abcde"), resp.Payload)
	assert.True(t, s.Idle())
}

func TestReceiveFragmentSizesDoNotMatter(t *testing.T) {
	want := []byte("the quick brown fox jumps over the lazy dog")

	for _, size := range []int{1, 3, 7, len(want)} {
		s, _, _ := newTestSession()
		require.NoError(t, s.Send(protocol.CmdReadFile, nil))

		var resp *Response
		for off, idx := 0, uint16(0); off < len(want); off, idx = off+size, idx+1 {
			end := off + size
			if end > len(want) {
				end = len(want)
			}
			chunk := idx
			if end < len(want) {
				chunk |= protocol.MoreDataFlag
			}
			var err error
			resp, err = s.Receive(protocol.EncodeResponse(protocol.CmdReadFile, 0, want[off:end], chunk))
			require.NoError(t, err)
		}

		require.NotNil(t, resp, "fragment size %d", size)
		assert.Equal(t, want, resp.Payload, "fragment size %d", size)
	}
}

func TestReceiveMalformedFrameDiscardsAccumulation(t *testing.T) {
	s, _, _ := newTestSession()
	require.NoError(t, s.Send(protocol.CmdReadDir, nil))

	_, err := s.Receive([]byte{0x16, 0x00, 0x00, 0x80, 'x'})
	require.NoError(t, err)

	resp, err := s.Receive([]byte{0x16, 0x00})
	assert.Nil(t, resp)

	var perr *ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, protocol.CmdReadDir, perr.Command)
	assert.True(t, errors.Is(err, protocol.ErrMalformedPacket))
	assert.True(t, s.Idle())

	// The next command starts from a clean buffer.
	require.NoError(t, s.Send(protocol.CmdReadDir, nil))
	resp, err = s.Receive([]byte{0x16, 0x00, 0x00, 0x00, 'y'})
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), resp.Payload)
}

func TestReceiveDropsUnsolicitedFrames(t *testing.T) {
	s, _, _ := newTestSession()

	resp, err := s.Receive([]byte{0x01, 0x00, 0x00, 0x00})
	assert.NoError(t, err)
	assert.Nil(t, resp)
	assert.True(t, s.Idle())
}

func TestReceiveDropsMismatchedCommand(t *testing.T) {
	s, _, _ := newTestSession()
	require.NoError(t, s.Send(protocol.CmdReadDir, nil))

	resp, err := s.Receive([]byte{0x13, 0x00, 0x00, 0x00, 'z'})
	assert.NoError(t, err)
	assert.Nil(t, resp)

	resp, err = s.Receive([]byte{0x16, 0x00, 0x00, 0x00, 'a'})
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), resp.Payload)
}

func TestReceiveEnforcesResponseLimit(t *testing.T) {
	s, _, _ := newTestSession()
	require.NoError(t, s.Send(protocol.CmdReadFile, nil))

	chunk := make([]byte, 4096)
	var err error
	for i := 0; i <= limits.MaxResponsePayload/len(chunk); i++ {
		_, err = s.Receive(protocol.EncodeResponse(protocol.CmdReadFile, 0, chunk, protocol.MoreDataFlag))
		if err != nil {
			break
		}
	}

	var perr *ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.True(t, errors.Is(err, limits.ErrTooLarge))
	assert.True(t, s.Idle())
}

func TestExpired(t *testing.T) {
	s, _, tp := newTestSession()
	assert.False(t, s.Expired(), "idle session never expires")

	require.NoError(t, s.Send(protocol.CmdGetVersion, nil))
	tp.advance(4 * time.Second)
	assert.False(t, s.Expired())

	tp.advance(time.Second)
	assert.True(t, s.Expired())
}

func TestExpiredDisabled(t *testing.T) {
	link := &mockLink{}
	tp := newMockTimeProvider()
	s := New(link, 0)
	s.SetTimeProvider(tp)

	require.NoError(t, s.Send(protocol.CmdGetVersion, nil))
	tp.advance(time.Hour)
	assert.False(t, s.Expired())
}

func TestAbort(t *testing.T) {
	s, _, _ := newTestSession()

	_, ok := s.Abort()
	assert.False(t, ok)

	require.NoError(t, s.Send(protocol.CmdReadFile, nil))
	_, err := s.Receive([]byte{0x13, 0x00, 0x00, 0x80, 1, 2, 3})
	require.NoError(t, err)

	cmd, ok := s.Abort()
	assert.True(t, ok)
	assert.Equal(t, protocol.CmdReadFile, cmd)
	assert.True(t, s.Idle())
	assert.False(t, s.Expired())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "awaiting_response", StateAwaitingResponse.String())
	assert.Equal(t, "State(9)", State(9).String())
}
