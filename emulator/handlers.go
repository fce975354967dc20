package emulator

import (
	"errors"

	"github.com/opd-ai/pixlfs/protocol"
)

// execute runs one command against the device state. The caller holds mu.
func (d *Device) execute(cmd protocol.Command, payload []byte) (byte, []byte) {
	switch cmd {
	case protocol.CmdGetVersion:
		out, _ := protocol.StringPayload(Version)
		return protocol.StatusOK, out

	case protocol.CmdGetDriveList:
		return d.driveList()

	case protocol.CmdReadDir:
		return d.readDir(payload)

	case protocol.CmdCreateFolder:
		path, ok := singlePath(payload)
		if !ok {
			return protocol.StatusFailed, nil
		}
		return statusFor(d.mkdir(path)), nil

	case protocol.CmdRemove:
		path, ok := singlePath(payload)
		if !ok {
			return protocol.StatusFailed, nil
		}
		return statusFor(d.remove(path)), nil

	case protocol.CmdRename:
		dec := protocol.NewDecoder(payload)
		oldPath, newPath := dec.ReadString(), dec.ReadString()
		if oldPath == "" || newPath == "" {
			return protocol.StatusFailed, nil
		}
		return statusFor(d.rename(oldPath, newPath)), nil

	case protocol.CmdOpenFile:
		return d.openFile(payload)

	case protocol.CmdWriteFile:
		return d.writeFile(payload)

	case protocol.CmdReadFile:
		return d.readFile(payload)

	case protocol.CmdCloseFile:
		if len(payload) < 1 {
			return protocol.StatusFailed, nil
		}
		if _, ok := d.handles[payload[0]]; !ok {
			return protocol.StatusNotFound, nil
		}
		delete(d.handles, payload[0])
		return protocol.StatusOK, nil
	}

	return protocol.StatusUnsupported, nil
}

func (d *Device) driveList() (byte, []byte) {
	drives := make([]protocol.Drive, 0, len(d.drives))
	for _, drv := range d.drives {
		drives = append(drives, protocol.Drive{
			Letter: drv.letter,
			Label:  drv.label,
			Size:   drv.size,
			Used:   drv.root.used(),
		})
	}
	out, err := protocol.EncodeDriveList(drives)
	if err != nil {
		return protocol.StatusFailed, nil
	}
	return protocol.StatusOK, out
}

func (d *Device) readDir(payload []byte) (byte, []byte) {
	path, ok := singlePath(payload)
	if !ok {
		return protocol.StatusFailed, nil
	}
	dir, err := d.lookup(path)
	if err != nil {
		return statusFor(err), nil
	}
	if !dir.dir {
		return protocol.StatusFailed, nil
	}

	children := dir.sortedChildren()
	entries := make([]protocol.DirEntry, 0, len(children))
	for _, child := range children {
		entry := protocol.DirEntry{Name: child.name, Size: child.size(), Type: protocol.EntryTypeFile}
		if child.dir {
			entry.Type = protocol.EntryTypeDir
		}
		entries = append(entries, entry)
	}

	out, err := protocol.EncodeDirListing(entries)
	if err != nil {
		return protocol.StatusFailed, nil
	}
	return protocol.StatusOK, out
}

func (d *Device) openFile(payload []byte) (byte, []byte) {
	dec := protocol.NewDecoder(payload)
	path := dec.ReadString()
	if path == "" || dec.Remaining() < 1 {
		return protocol.StatusFailed, nil
	}
	mode := dec.ReadU8()

	var f *node
	var err error
	switch mode {
	case protocol.ModeWrite:
		f, err = d.create(path)
	case protocol.ModeRead:
		f, err = d.lookup(path)
		if err == nil && f.dir {
			err = errIsDir
		}
	default:
		return protocol.StatusFailed, nil
	}
	if err != nil {
		return statusFor(err), nil
	}

	id, ok := d.allocID()
	if !ok {
		return protocol.StatusFailed, nil
	}
	d.handles[id] = &handle{path: path, file: f, mode: mode}
	return protocol.StatusOK, []byte{id}
}

func (d *Device) writeFile(payload []byte) (byte, []byte) {
	if len(payload) < 1 {
		return protocol.StatusFailed, nil
	}
	h, ok := d.handles[payload[0]]
	if !ok {
		return protocol.StatusNotFound, nil
	}
	if h.mode != protocol.ModeWrite {
		return protocol.StatusFailed, nil
	}
	h.file.data = append(h.file.data, payload[1:]...)
	return protocol.StatusOK, nil
}

func (d *Device) readFile(payload []byte) (byte, []byte) {
	if len(payload) < 1 {
		return protocol.StatusFailed, nil
	}
	h, ok := d.handles[payload[0]]
	if !ok {
		return protocol.StatusNotFound, nil
	}
	if h.mode != protocol.ModeRead {
		return protocol.StatusFailed, nil
	}
	return protocol.StatusOK, append([]byte(nil), h.file.data...)
}

// allocID returns an unused non-zero file id.
func (d *Device) allocID() (byte, bool) {
	for i := 0; i < 255; i++ {
		d.nextID++
		if d.nextID == 0 {
			d.nextID = 1
		}
		if _, used := d.handles[d.nextID]; !used {
			return d.nextID, true
		}
	}
	return 0, false
}

func singlePath(payload []byte) (string, bool) {
	path := protocol.NewDecoder(payload).ReadString()
	return path, path != ""
}

func statusFor(err error) byte {
	switch {
	case err == nil:
		return protocol.StatusOK
	case errors.Is(err, errExists):
		return protocol.StatusExists
	case errors.Is(err, errNotFound):
		return protocol.StatusNotFound
	default:
		return protocol.StatusFailed
	}
}
