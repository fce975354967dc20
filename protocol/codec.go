package protocol

import (
	"encoding/binary"
	"fmt"
)

// Decoder reads little-endian fields from a payload. Reads that would run
// past the end return the zero value and do not move the cursor.
type Decoder struct {
	b []byte
	o int
}

// NewDecoder returns a Decoder positioned at the start of b.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{b: b}
}

// Offset returns the cursor position.
func (d *Decoder) Offset() int { return d.o }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.b) - d.o }

// ReadU8 reads one byte, or returns 0 when the payload is exhausted.
func (d *Decoder) ReadU8() byte {
	if d.Remaining() < 1 {
		return 0
	}
	v := d.b[d.o]
	d.o++
	return v
}

// ReadU16 reads a little-endian uint16.
func (d *Decoder) ReadU16() uint16 {
	if d.Remaining() < 2 {
		return 0
	}
	v := binary.LittleEndian.Uint16(d.b[d.o : d.o+2])
	d.o += 2
	return v
}

// ReadU32 reads a little-endian uint32.
func (d *Decoder) ReadU32() uint32 {
	if d.Remaining() < 4 {
		return 0
	}
	v := binary.LittleEndian.Uint32(d.b[d.o : d.o+4])
	d.o += 4
	return v
}

// ReadString reads a u16 length-prefixed string. When the declared length
// does not fit in the remaining bytes it returns "" and the cursor stays put,
// including the two length bytes.
func (d *Decoder) ReadString() string {
	if d.Remaining() < 2 {
		return ""
	}
	n := int(binary.LittleEndian.Uint16(d.b[d.o : d.o+2]))
	if d.Remaining() < 2+n {
		return ""
	}
	s := string(d.b[d.o+2 : d.o+2+n])
	d.o += 2 + n
	return s
}

// ReadBytes reads n raw bytes, or returns nil when fewer remain.
func (d *Decoder) ReadBytes(n int) []byte {
	if n < 0 || d.Remaining() < n {
		return nil
	}
	v := d.b[d.o : d.o+n]
	d.o += n
	return v
}

// Skip advances the cursor by n bytes, clamped to the end of the payload.
func (d *Decoder) Skip(n int) {
	if n < 0 {
		return
	}
	if n > d.Remaining() {
		n = d.Remaining()
	}
	d.o += n
}

// Encoder builds little-endian request payloads.
type Encoder struct {
	b []byte
}

// NewEncoder returns an Encoder with the given initial capacity.
func NewEncoder(capacity int) *Encoder {
	if capacity < 0 {
		capacity = 0
	}
	return &Encoder{b: make([]byte, 0, capacity)}
}

// Bytes returns the encoded payload.
func (e *Encoder) Bytes() []byte { return e.b }

func (e *Encoder) WriteU8(v byte) {
	e.b = append(e.b, v)
}

func (e *Encoder) WriteU16(v uint16) {
	e.b = binary.LittleEndian.AppendUint16(e.b, v)
}

func (e *Encoder) WriteU32(v uint32) {
	e.b = binary.LittleEndian.AppendUint32(e.b, v)
}

func (e *Encoder) WriteBytes(b []byte) {
	e.b = append(e.b, b...)
}

// WriteString writes a u16 length-prefixed string.
func (e *Encoder) WriteString(s string) error {
	if len(s) > 0xFFFF {
		return fmt.Errorf("string too long: %d bytes", len(s))
	}
	e.WriteU16(uint16(len(s)))
	e.b = append(e.b, s...)
	return nil
}
