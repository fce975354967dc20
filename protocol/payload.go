package protocol

import "fmt"

// OpenFile mode bytes. Their bit meaning is defined by the device firmware;
// these are the two values the firmware accepts for whole-file transfers.
const (
	ModeWrite byte = 0x16 // host uploads into the opened file
	ModeRead  byte = 0x08 // host downloads the opened file
)

// Directory entry types reported by ReadDir.
const (
	EntryTypeFile byte = 0
	EntryTypeDir  byte = 1
)

// Drive is one storage volume from a GetDriveList response.
type Drive struct {
	Status byte
	Letter byte
	Label  string
	Size   uint32
	Used   uint32
}

// Root returns the drive's root path, e.g. "E:/".
func (d Drive) Root() string {
	return string(rune(d.Letter)) + ":/"
}

// DirEntry is one record of a ReadDir response.
type DirEntry struct {
	Name string
	Size uint32
	Type byte
	Meta []byte
}

// IsDir reports whether the entry is a directory.
func (e DirEntry) IsDir() bool {
	return e.Type == EntryTypeDir
}

// StringPayload encodes a single length-prefixed string, the payload of
// ReadDir, CreateFolder and Remove.
func StringPayload(s string) ([]byte, error) {
	e := NewEncoder(2 + len(s))
	if err := e.WriteString(s); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// OpenFilePayload encodes the path followed by the mode byte.
func OpenFilePayload(path string, mode byte) ([]byte, error) {
	e := NewEncoder(3 + len(path))
	if err := e.WriteString(path); err != nil {
		return nil, err
	}
	e.WriteU8(mode)
	return e.Bytes(), nil
}

// RenamePayload encodes the old and new paths back to back.
func RenamePayload(oldPath, newPath string) ([]byte, error) {
	e := NewEncoder(4 + len(oldPath) + len(newPath))
	if err := e.WriteString(oldPath); err != nil {
		return nil, fmt.Errorf("old path: %w", err)
	}
	if err := e.WriteString(newPath); err != nil {
		return nil, fmt.Errorf("new path: %w", err)
	}
	return e.Bytes(), nil
}

// FileIDPayload encodes the one-byte handle used by ReadFile and CloseFile.
func FileIDPayload(id byte) []byte {
	return []byte{id}
}

// WriteFilePayload encodes the handle followed by the chunk data.
func WriteFilePayload(id byte, data []byte) []byte {
	e := NewEncoder(1 + len(data))
	e.WriteU8(id)
	e.WriteBytes(data)
	return e.Bytes()
}

// ParseDriveList decodes a GetDriveList response. Parsing stops at the first
// record that cannot start within the payload.
func ParseDriveList(payload []byte) []Drive {
	d := NewDecoder(payload)
	if d.Remaining() < 1 {
		return nil
	}

	count := int(d.ReadU8())
	drives := make([]Drive, 0, count)
	for i := 0; i < count; i++ {
		if d.Remaining() < 2 {
			break
		}
		var drv Drive
		drv.Status = d.ReadU8()
		drv.Letter = d.ReadU8()
		drv.Label = d.ReadString()
		drv.Size = d.ReadU32()
		drv.Used = d.ReadU32()
		drives = append(drives, drv)
	}

	return drives
}

// ParseDirListing decodes a ReadDir response. Records are read until the
// payload is exhausted or an empty name is found.
func ParseDirListing(payload []byte) []DirEntry {
	d := NewDecoder(payload)
	var entries []DirEntry

	for d.Remaining() > 0 {
		var entry DirEntry
		entry.Name = d.ReadString()
		entry.Size = d.ReadU32()
		if d.Remaining() > 0 {
			entry.Type = d.ReadU8()
		}
		if d.Remaining() > 0 {
			metaLen := int(d.ReadU8())
			if meta := d.ReadBytes(metaLen); meta != nil {
				entry.Meta = append([]byte(nil), meta...)
			} else {
				d.Skip(metaLen)
			}
		}

		if entry.Name == "" {
			break
		}
		entries = append(entries, entry)
	}

	return entries
}

// EncodeDriveList builds a GetDriveList response payload.
func EncodeDriveList(drives []Drive) ([]byte, error) {
	if len(drives) > 0xFF {
		return nil, fmt.Errorf("too many drives: %d", len(drives))
	}
	e := NewEncoder(1 + len(drives)*16)
	e.WriteU8(byte(len(drives)))
	for _, drv := range drives {
		e.WriteU8(drv.Status)
		e.WriteU8(drv.Letter)
		if err := e.WriteString(drv.Label); err != nil {
			return nil, err
		}
		e.WriteU32(drv.Size)
		e.WriteU32(drv.Used)
	}
	return e.Bytes(), nil
}

// EncodeDirListing builds a ReadDir response payload.
func EncodeDirListing(entries []DirEntry) ([]byte, error) {
	e := NewEncoder(len(entries) * 16)
	for _, entry := range entries {
		if len(entry.Meta) > 0xFF {
			return nil, fmt.Errorf("meta for %q too long: %d bytes", entry.Name, len(entry.Meta))
		}
		if err := e.WriteString(entry.Name); err != nil {
			return nil, err
		}
		e.WriteU32(entry.Size)
		e.WriteU8(entry.Type)
		e.WriteU8(byte(len(entry.Meta)))
		e.WriteBytes(entry.Meta)
	}
	return e.Bytes(), nil
}
