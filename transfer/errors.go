package transfer

import (
	"errors"
	"fmt"
)

// ErrNoFileID indicates an OpenFile acknowledgement without a file handle.
var ErrNoFileID = errors.New("open response carries no file id")

// LocalIOError reports a failure opening, reading or writing a local file.
// Only the operation it belongs to is abandoned.
type LocalIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *LocalIOError) Error() string {
	return fmt.Sprintf("local %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LocalIOError) Unwrap() error {
	return e.Err
}
