package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		payload []byte
		chunk   uint16
	}{
		{name: "empty_payload", cmd: CmdGetVersion, payload: nil, chunk: 0},
		{name: "string_payload", cmd: CmdReadDir, payload: []byte{0x03, 0x00, 'E', ':', '/'}, chunk: 0},
		{name: "chunk_index", cmd: CmdReadFile, payload: []byte{1, 2, 3}, chunk: 0x0102},
		{name: "more_data_flag", cmd: CmdReadFile, payload: []byte{0xFF}, chunk: MoreDataFlag | 7},
		{name: "max_chunk", cmd: CmdUpdateMeta, payload: make([]byte, 200), chunk: 0xFFFF},
		{name: "unknown_command", cmd: Command(0x7E), payload: []byte{0}, chunk: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := Encode(tt.cmd, tt.payload, tt.chunk)
			require.Len(t, frame, HeaderSize+len(tt.payload))

			pkt, err := Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, pkt.Command)
			assert.Equal(t, byte(0), pkt.Status)
			assert.Equal(t, tt.chunk, pkt.Chunk)
			if len(tt.payload) == 0 {
				assert.Nil(t, pkt.Payload)
			} else {
				assert.Equal(t, tt.payload, pkt.Payload)
			}
		})
	}
}

func TestEncodeLayout(t *testing.T) {
	frame := Encode(CmdWriteFile, []byte{0xAA, 0xBB}, 0x8123)
	assert.Equal(t, []byte{0x15, 0x00, 0x23, 0x81, 0xAA, 0xBB}, frame)
}

func TestDecodeMalformed(t *testing.T) {
	for _, frame := range [][]byte{nil, {}, {0x01}, {0x01, 0x00, 0x00}} {
		pkt, err := Decode(frame)
		assert.Nil(t, pkt)
		assert.True(t, errors.Is(err, ErrMalformedPacket), "len %d", len(frame))
	}
}

func TestDecodeHeaderOnly(t *testing.T) {
	pkt, err := Decode([]byte{0x13, 0x02, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, CmdCloseFile, pkt.Command)
	assert.Equal(t, byte(2), pkt.Status)
	assert.Nil(t, pkt.Payload)
}

func TestDecodeCopiesPayload(t *testing.T) {
	frame := []byte{0x14, 0x00, 0x00, 0x00, 'x'}
	pkt, err := Decode(frame)
	require.NoError(t, err)

	frame[4] = 'y'
	assert.Equal(t, []byte{'x'}, pkt.Payload)
}

func TestPacketChunkHelpers(t *testing.T) {
	pkt := &Packet{Chunk: MoreDataFlag | 42}
	assert.True(t, pkt.MoreData())
	assert.Equal(t, uint16(42), pkt.ChunkIndex())

	pkt.Chunk = 42
	assert.False(t, pkt.MoreData())
	assert.Equal(t, uint16(42), pkt.ChunkIndex())
}

func TestEncodeResponseSetsStatus(t *testing.T) {
	frame := EncodeResponse(CmdOpenFile, StatusNotFound, []byte{9}, 0)
	pkt, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, pkt.Status)
	assert.Equal(t, []byte{9}, pkt.Payload)
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "ReadDir", CmdReadDir.String())
	assert.Equal(t, "Command(0x7e)", Command(0x7E).String())
}

func TestCheckStatus(t *testing.T) {
	assert.NoError(t, CheckStatus(CmdRemove, StatusOK))

	err := CheckStatus(CmdRemove, 4)
	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, CmdRemove, devErr.Command)
	assert.Equal(t, byte(4), devErr.Status)
	assert.Contains(t, err.Error(), "Remove")
}
