// Package protocol implements the Pixl device-file wire format: command
// codes, packet framing, and the payload field codec used by every request
// and response exchanged with the device.
//
// # Frames
//
// Every notification or write on the link carries exactly one frame:
//
//	[0]   command
//	[1]   status (0 in requests)
//	[2:4] chunk, little-endian; bit 15 = more data follows, bits 0-14 = index
//	[4:]  payload
//
// Encode and Decode convert between frames and Packet values:
//
//	frame := protocol.Encode(protocol.CmdReadDir, protocol.StringPayload("E:/"), 0)
//
//	pkt, err := protocol.Decode(frame)
//	if errors.Is(err, protocol.ErrMalformedPacket) {
//	    // fewer than 4 bytes
//	}
//	if pkt.MoreData() {
//	    // more fragments of this response follow
//	}
//
// # Payload Fields
//
// Multi-byte integers are little-endian. Strings are a u16 length followed by
// that many bytes, without a terminator. The Decoder is deliberately lenient:
// a short read returns the zero value and leaves the cursor where it was, so a
// garbled tail produced by device firmware truncates a listing instead of
// failing the whole response.
//
//	d := protocol.NewDecoder(payload)
//	name := d.ReadString()
//	size := d.ReadU32()
//
// # Responses
//
// ParseDriveList and ParseDirListing decode the two structured responses the
// host consumes. All other responses are either empty or carry a single file
// identifier byte (OpenFile) or raw file content (ReadFile).
package protocol
