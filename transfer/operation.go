package transfer

import (
	"fmt"
)

// Kind is the type of a queued operation.
type Kind uint8

const (
	// KindCreateFolder creates Target on the device.
	KindCreateFolder Kind = iota
	// KindUploadFile copies local Source to remote Target.
	KindUploadFile
	// KindDownloadFile copies remote Source to local Target.
	KindDownloadFile
	// KindDeleteFile removes remote Target.
	KindDeleteFile
	// KindRename moves remote Source to remote Target.
	KindRename
)

func (k Kind) String() string {
	switch k {
	case KindCreateFolder:
		return "create_folder"
	case KindUploadFile:
		return "upload"
	case KindDownloadFile:
		return "download"
	case KindDeleteFile:
		return "delete"
	case KindRename:
		return "rename"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Idempotent reports whether the operation can be re-sent without
// resynchronizing device state.
func (k Kind) Idempotent() bool {
	return k == KindCreateFolder || k == KindDeleteFile
}

// Operation is one user-level file request.
type Operation struct {
	Kind   Kind
	Source string
	Target string
}

// CreateFolder returns an operation that creates a remote directory.
func CreateFolder(remote string) Operation {
	return Operation{Kind: KindCreateFolder, Target: remote}
}

// Upload returns an operation that copies a local file to the device.
func Upload(local, remote string) Operation {
	return Operation{Kind: KindUploadFile, Source: local, Target: remote}
}

// Download returns an operation that copies a remote file to local disk.
func Download(remote, local string) Operation {
	return Operation{Kind: KindDownloadFile, Source: remote, Target: local}
}

// Delete returns an operation that removes a remote path.
func Delete(remote string) Operation {
	return Operation{Kind: KindDeleteFile, Target: remote}
}

// Rename returns an operation that moves a remote path.
func Rename(oldPath, newPath string) Operation {
	return Operation{Kind: KindRename, Source: oldPath, Target: newPath}
}

func (o Operation) String() string {
	if o.Source == "" {
		return fmt.Sprintf("%s %s", o.Kind, o.Target)
	}
	return fmt.Sprintf("%s %s -> %s", o.Kind, o.Source, o.Target)
}

// Progress is the queue position reported before each operation starts.
type Progress struct {
	Completed int
	Total     int
	Label     string
	Current   Operation
}

// Summary is reported once each time the queue drains.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Cancelled bool
	// Err is set when the queue was aborted by link loss.
	Err error
}

// OK reports whether every operation ran and succeeded.
func (s Summary) OK() bool {
	return s.Err == nil && s.Failed == 0 && s.Skipped == 0 && !s.Cancelled
}
