package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderReadString(t *testing.T) {
	tests := []struct {
		name       string
		buf        []byte
		want       string
		wantOffset int
	}{
		{name: "exact", buf: []byte{0x03, 0x00, 'a', 'b', 'c'}, want: "abc", wantOffset: 5},
		{name: "trailing_bytes", buf: []byte{0x01, 0x00, 'z', 0xFF}, want: "z", wantOffset: 3},
		{name: "empty_string", buf: []byte{0x00, 0x00}, want: "", wantOffset: 2},
		{name: "short_body", buf: []byte{0x05, 0x00, 'a', 'b'}, want: "", wantOffset: 0},
		{name: "short_length", buf: []byte{0x05}, want: "", wantOffset: 0},
		{name: "empty_buffer", buf: nil, want: "", wantOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(tt.buf)
			assert.Equal(t, tt.want, d.ReadString())
			assert.Equal(t, tt.wantOffset, d.Offset())
		})
	}
}

func TestDecoderIntegers(t *testing.T) {
	d := NewDecoder([]byte{0x34, 0x12, 0x78, 0x56, 0x34, 0x12, 0x09})
	assert.Equal(t, uint16(0x1234), d.ReadU16())
	assert.Equal(t, uint32(0x12345678), d.ReadU32())
	assert.Equal(t, 6, d.Offset())

	// Shortfall leaves the cursor alone.
	assert.Equal(t, uint32(0), d.ReadU32())
	assert.Equal(t, uint16(0), d.ReadU16())
	assert.Equal(t, 6, d.Offset())

	assert.Equal(t, byte(0x09), d.ReadU8())
	assert.Equal(t, byte(0), d.ReadU8())
	assert.Equal(t, 0, d.Remaining())
}

func TestDecoderBytesAndSkip(t *testing.T) {
	d := NewDecoder([]byte{1, 2, 3, 4})
	assert.Equal(t, []byte{1, 2}, d.ReadBytes(2))
	assert.Nil(t, d.ReadBytes(3))
	assert.Equal(t, 2, d.Offset())

	d.Skip(10)
	assert.Equal(t, 4, d.Offset())
	d.Skip(-1)
	assert.Equal(t, 4, d.Offset())
}

func TestEncoderFields(t *testing.T) {
	e := NewEncoder(0)
	e.WriteU8(0x01)
	e.WriteU16(0x0302)
	e.WriteU32(0x07060504)
	require.NoError(t, e.WriteString("hi"))
	e.WriteBytes([]byte{0xEE})

	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 2, 0, 'h', 'i', 0xEE}, e.Bytes())
}

func TestEncoderStringTooLong(t *testing.T) {
	e := NewEncoder(0)
	err := e.WriteString(strings.Repeat("x", 0x10000))
	assert.Error(t, err)
	assert.Empty(t, e.Bytes())
}

func TestEncoderDecoderStringRoundTrip(t *testing.T) {
	for _, s := range []string{"", "/", "E:/music/track 01.mp3", strings.Repeat("p", 300)} {
		e := NewEncoder(0)
		require.NoError(t, e.WriteString(s))

		d := NewDecoder(e.Bytes())
		assert.Equal(t, s, d.ReadString())
		assert.Equal(t, 0, d.Remaining())
	}
}
