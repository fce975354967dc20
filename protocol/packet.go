package protocol

import (
	"errors"
	"fmt"
)

// Command identifies a device request and the response that answers it.
type Command byte

const (
	CmdGetVersion   Command = 0x01
	CmdEnterDfu     Command = 0x02
	CmdGetDriveList Command = 0x10
	CmdDriveFormat  Command = 0x11
	CmdOpenFile     Command = 0x12
	CmdCloseFile    Command = 0x13
	CmdReadFile     Command = 0x14
	CmdWriteFile    Command = 0x15
	CmdReadDir      Command = 0x16
	CmdCreateFolder Command = 0x17
	CmdRemove       Command = 0x18
	CmdRename       Command = 0x19
	CmdUpdateMeta   Command = 0x1A
)

var commandNames = map[Command]string{
	CmdGetVersion:   "GetVersion",
	CmdEnterDfu:     "EnterDfu",
	CmdGetDriveList: "GetDriveList",
	CmdDriveFormat:  "DriveFormat",
	CmdOpenFile:     "OpenFile",
	CmdCloseFile:    "CloseFile",
	CmdReadFile:     "ReadFile",
	CmdWriteFile:    "WriteFile",
	CmdReadDir:      "ReadDir",
	CmdCreateFolder: "CreateFolder",
	CmdRemove:       "Remove",
	CmdRename:       "Rename",
	CmdUpdateMeta:   "UpdateMeta",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(0x%02x)", byte(c))
}

const (
	// HeaderSize is the fixed frame header: command, status, chunk (u16).
	HeaderSize = 4

	// MoreDataFlag is set in the chunk field when further fragments follow.
	MoreDataFlag uint16 = 0x8000

	// ChunkIndexMask selects the 15-bit fragment index from the chunk field.
	ChunkIndexMask uint16 = 0x7FFF
)

// ErrMalformedPacket indicates a frame too short to hold a packet header.
var ErrMalformedPacket = errors.New("malformed packet")

// Packet is one decoded frame.
type Packet struct {
	Command Command
	Status  byte
	Chunk   uint16
	Payload []byte
}

// MoreData reports whether more fragments of the same response follow.
func (p *Packet) MoreData() bool {
	return p.Chunk&MoreDataFlag != 0
}

// ChunkIndex returns the fragment index without the more-data flag.
func (p *Packet) ChunkIndex() uint16 {
	return p.Chunk & ChunkIndexMask
}

// Encode builds a request frame. Status is always zero for requests.
func Encode(cmd Command, payload []byte, chunk uint16) []byte {
	frame := make([]byte, HeaderSize+len(payload))
	frame[0] = byte(cmd)
	frame[1] = 0
	frame[2] = byte(chunk)
	frame[3] = byte(chunk >> 8)
	copy(frame[HeaderSize:], payload)
	return frame
}

// EncodeResponse builds a frame with an explicit status. Only device-side
// code (the emulator) produces these.
func EncodeResponse(cmd Command, status byte, payload []byte, chunk uint16) []byte {
	frame := Encode(cmd, payload, chunk)
	frame[1] = status
	return frame
}

// Decode parses a frame. The returned payload is a copy; Payload is nil when
// the frame holds only a header.
func Decode(frame []byte) (*Packet, error) {
	if len(frame) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedPacket, len(frame), HeaderSize)
	}

	pkt := &Packet{
		Command: Command(frame[0]),
		Status:  frame[1],
		Chunk:   uint16(frame[2]) | uint16(frame[3])<<8,
	}
	if len(frame) > HeaderSize {
		pkt.Payload = make([]byte, len(frame)-HeaderSize)
		copy(pkt.Payload, frame[HeaderSize:])
	}

	return pkt, nil
}
