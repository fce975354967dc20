// Package transfer sequences file operations over the single-command link.
//
// A Queue holds user-level operations (create folder, upload, download,
// delete, rename) and drives each one through its command sequence, one
// command at a time:
//
//	CreateFolder  CreateFolder(target)
//	Upload        OpenFile(target, write) WriteFile(id, chunk)... CloseFile(id)
//	Download      OpenFile(source, read) ReadFile(id) CloseFile(id)
//	Delete        Remove(target)
//	Rename        Rename(source, target)
//
// The queue never reads from the link itself. The owner feeds it every
// completed response through HandleResponse, every protocol error or
// timeout through Fail, and link loss through Abort.
//
// Example:
//
//	q, err := transfer.NewQueue(sess, transfer.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	q.OnFinished(func(s transfer.Summary) {
//	    log.Printf("%d ok, %d failed", s.Succeeded, s.Failed)
//	})
//	q.Enqueue(ops, "Uploading")
package transfer

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/opd-ai/pixlfs/limits"
	"github.com/opd-ai/pixlfs/protocol"
	"github.com/opd-ai/pixlfs/session"
	"github.com/sirupsen/logrus"
)

// Sender issues commands on the link. *session.Session implements it.
type Sender interface {
	Send(cmd protocol.Command, payload []byte) error
	Idle() bool
}

// Options configures a Queue.
type Options struct {
	// ChunkSize is the WriteFile block size.
	ChunkSize int
	// CreateFolderOK lists the CreateFolder statuses treated as success.
	CreateFolderOK []byte
	// Retries bounds how often a failed idempotent operation is re-sent.
	Retries int
}

// DefaultOptions returns the settings known to work with the device
// firmware: 200 byte chunks, CreateFolder statuses 0 and 1, no retries.
func DefaultOptions() Options {
	return Options{
		ChunkSize:      limits.DefaultChunkSize,
		CreateFolderOK: []byte{protocol.StatusOK, protocol.StatusExists},
		Retries:        0,
	}
}

// fileState is the one active upload or download.
type fileState struct {
	file   *os.File
	path   string
	upload bool
	offset int64
	id     byte
	// err is reported once the device acknowledges CloseFile.
	err error
}

// Queue is a FIFO of operations. It is not safe for concurrent use; the
// owner serializes calls.
type Queue struct {
	sender    Sender
	chunkSize int
	tolerated map[byte]bool
	retries   int

	pending  []Operation
	current  *Operation
	expect   protocol.Command
	attempts int
	xfer     *fileState

	running   bool
	cancelled bool
	label     string
	completed int
	total     int
	summary   Summary

	onProgress func(Progress)
	onFinished func(Summary)
}

// NewQueue creates an idle queue issuing commands through sender.
func NewQueue(sender Sender, opts Options) (*Queue, error) {
	if sender == nil {
		return nil, errors.New("transfer queue requires a sender")
	}
	if err := limits.ValidateChunkSize(opts.ChunkSize); err != nil {
		return nil, err
	}
	if opts.Retries < 0 {
		return nil, fmt.Errorf("retries must not be negative: %d", opts.Retries)
	}

	tolerated := make(map[byte]bool, len(opts.CreateFolderOK)+1)
	tolerated[protocol.StatusOK] = true
	for _, status := range opts.CreateFolderOK {
		tolerated[status] = true
	}

	return &Queue{
		sender:    sender,
		chunkSize: opts.ChunkSize,
		tolerated: tolerated,
		retries:   opts.Retries,
	}, nil
}

// OnProgress sets the callback fired as each operation is taken off the
// queue.
func (q *Queue) OnProgress(fn func(Progress)) {
	q.onProgress = fn
}

// OnFinished sets the callback fired once each time the queue drains.
func (q *Queue) OnFinished(fn func(Summary)) {
	q.onFinished = fn
}

// Busy reports whether a batch is being processed.
func (q *Queue) Busy() bool {
	return q.running
}

// Active reports whether an operation is waiting on a response.
func (q *Queue) Active() bool {
	return q.current != nil
}

// Progress returns the current batch position.
func (q *Queue) Progress() Progress {
	p := Progress{
		Completed: q.completed,
		Total:     q.total,
		Label:     q.label,
	}
	if q.current != nil {
		p.Current = *q.current
	}
	return p
}

// Enqueue appends operations and starts processing when the queue is idle.
func (q *Queue) Enqueue(ops []Operation, label string) {
	if len(ops) == 0 {
		return
	}

	q.pending = append(q.pending, ops...)
	q.total += len(ops)
	if label != "" {
		q.label = label
	}

	logrus.WithFields(logrus.Fields{
		"function": "Enqueue",
		"count":    len(ops),
		"total":    q.total,
		"label":    q.label,
	}).Info("Operations queued")

	q.running = true
	q.Start()
}

// Start resumes processing after the link became idle. It does nothing
// while an operation is in flight or another command holds the link.
func (q *Queue) Start() {
	if !q.running || q.current != nil || !q.sender.Idle() {
		return
	}
	q.processNext()
}

// Cancel asks the queue to skip every operation not yet started. The
// operation in flight runs to completion.
func (q *Queue) Cancel() bool {
	if !q.running {
		return false
	}
	q.cancelled = true

	logrus.WithFields(logrus.Fields{
		"function":  "Cancel",
		"completed": q.completed,
		"total":     q.total,
	}).Info("Cancellation requested")
	return true
}

// HandleResponse advances the current operation. It returns false when the
// response does not belong to the queue.
func (q *Queue) HandleResponse(resp *session.Response) bool {
	if q.current == nil || resp == nil || resp.Command != q.expect {
		return false
	}

	switch resp.Command {
	case protocol.CmdCreateFolder:
		if q.tolerated[resp.Status] {
			q.complete(nil)
		} else {
			q.retryOrComplete(&protocol.DeviceError{Command: resp.Command, Status: resp.Status})
		}
	case protocol.CmdRemove:
		if err := protocol.CheckStatus(resp.Command, resp.Status); err != nil {
			q.retryOrComplete(err)
		} else {
			q.complete(nil)
		}
	case protocol.CmdRename:
		q.complete(protocol.CheckStatus(resp.Command, resp.Status))
	case protocol.CmdOpenFile:
		q.handleOpen(resp)
	case protocol.CmdWriteFile:
		q.handleWrite(resp)
	case protocol.CmdReadFile:
		q.handleRead(resp)
	case protocol.CmdCloseFile:
		q.handleClose(resp)
	default:
		return false
	}
	return true
}

// Fail abandons the current command after a protocol error or timeout.
// Idempotent operations are re-sent while retries remain.
func (q *Queue) Fail(err error) bool {
	if q.current == nil {
		return false
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Fail",
		"operation": q.current.String(),
		"command":   q.expect.String(),
		"error":     err.Error(),
	}).Warn("Command failed")

	q.retryOrComplete(err)
	return true
}

// Abort drops the whole queue after link loss and reports err in the
// summary. Nothing is retried.
func (q *Queue) Abort(err error) {
	if !q.running {
		return
	}

	if q.current != nil {
		q.summary.Failed++
		q.closeLocal(err)
		q.current = nil
	}
	q.summary.Skipped += len(q.pending)
	q.pending = nil
	q.summary.Err = err

	logrus.WithFields(logrus.Fields{
		"function":  "Abort",
		"completed": q.completed,
		"total":     q.total,
		"error":     err.Error(),
	}).Error("Queue aborted")

	q.drain()
}

func (q *Queue) processNext() {
	for q.running && q.current == nil {
		if len(q.pending) == 0 {
			q.drain()
			return
		}

		op := q.pending[0]
		q.pending = q.pending[1:]
		q.completed++

		if q.onProgress != nil {
			q.onProgress(Progress{
				Completed: q.completed,
				Total:     q.total,
				Label:     q.label,
				Current:   op,
			})
		}

		if q.cancelled {
			skipped := 1 + len(q.pending)
			q.summary.Skipped += skipped
			q.pending = nil

			logrus.WithFields(logrus.Fields{
				"function": "processNext",
				"skipped":  skipped,
			}).Info("Skipping remaining operations after cancel")
			continue
		}

		q.current = &op
		q.attempts = 0

		logrus.WithFields(logrus.Fields{
			"function":  "processNext",
			"operation": op.String(),
			"completed": q.completed,
			"total":     q.total,
		}).Debug("Starting operation")

		err := q.dispatch(op)
		if err == nil {
			return
		}
		if isLinkError(err) {
			q.Abort(err)
			return
		}
		q.record(err)
		q.closeLocal(err)
		q.current = nil
	}
}

func (q *Queue) dispatch(op Operation) error {
	switch op.Kind {
	case KindCreateFolder:
		return q.sendPath(protocol.CmdCreateFolder, op.Target)

	case KindDeleteFile:
		return q.sendPath(protocol.CmdRemove, op.Target)

	case KindRename:
		if err := limits.ValidatePath(op.Source); err != nil {
			return err
		}
		if err := limits.ValidatePath(op.Target); err != nil {
			return err
		}
		payload, err := protocol.RenamePayload(op.Source, op.Target)
		if err != nil {
			return err
		}
		return q.send(protocol.CmdRename, payload)

	case KindUploadFile:
		f, err := os.Open(op.Source)
		if err != nil {
			return &LocalIOError{Op: "open", Path: op.Source, Err: err}
		}
		if info, err := f.Stat(); err != nil || info.IsDir() {
			f.Close()
			if err == nil {
				err = errors.New("is a directory")
			}
			return &LocalIOError{Op: "open", Path: op.Source, Err: err}
		}
		q.xfer = &fileState{file: f, path: op.Source, upload: true}
		return q.sendOpen(op.Target, protocol.ModeWrite)

	case KindDownloadFile:
		f, err := os.Create(op.Target)
		if err != nil {
			return &LocalIOError{Op: "create", Path: op.Target, Err: err}
		}
		q.xfer = &fileState{file: f, path: op.Target}
		return q.sendOpen(op.Source, protocol.ModeRead)
	}

	return fmt.Errorf("unknown operation kind %s", op.Kind)
}

func (q *Queue) handleOpen(resp *session.Response) {
	if err := protocol.CheckStatus(resp.Command, resp.Status); err != nil {
		q.complete(err)
		return
	}
	if len(resp.Payload) < 1 {
		q.complete(fmt.Errorf("%s: %w", q.current, ErrNoFileID))
		return
	}

	q.xfer.id = resp.Payload[0]
	if q.xfer.upload {
		q.sendNextChunk()
		return
	}
	q.sent(q.send(protocol.CmdReadFile, protocol.FileIDPayload(q.xfer.id)))
}

// sendNextChunk writes the block at the current offset, or closes the
// device file once a read returns no data.
func (q *Queue) sendNextChunk() {
	buf := make([]byte, q.chunkSize)
	n, err := q.xfer.file.ReadAt(buf, q.xfer.offset)
	if err != nil && !errors.Is(err, io.EOF) {
		q.xfer.err = &LocalIOError{Op: "read", Path: q.xfer.path, Err: err}
		q.closeRemote()
		return
	}
	if n == 0 {
		q.closeRemote()
		return
	}
	q.sent(q.send(protocol.CmdWriteFile, protocol.WriteFilePayload(q.xfer.id, buf[:n])))
}

func (q *Queue) handleWrite(resp *session.Response) {
	if err := protocol.CheckStatus(resp.Command, resp.Status); err != nil {
		q.complete(err)
		return
	}
	q.xfer.offset += int64(q.chunkSize)
	q.sendNextChunk()
}

func (q *Queue) handleRead(resp *session.Response) {
	if err := protocol.CheckStatus(resp.Command, resp.Status); err != nil {
		q.complete(err)
		return
	}

	x := q.xfer
	if _, err := x.file.Write(resp.Payload); err != nil {
		x.err = &LocalIOError{Op: "write", Path: x.path, Err: err}
	}
	if err := x.file.Close(); err != nil && x.err == nil {
		x.err = &LocalIOError{Op: "close", Path: x.path, Err: err}
	}
	x.file = nil

	logrus.WithFields(logrus.Fields{
		"function": "handleRead",
		"path":     x.path,
		"bytes":    len(resp.Payload),
	}).Debug("File content received")

	q.closeRemote()
}

func (q *Queue) handleClose(resp *session.Response) {
	if resp.Status != protocol.StatusOK {
		logrus.WithFields(logrus.Fields{
			"function": "handleClose",
			"status":   resp.Status,
		}).Warn("Device reported CloseFile failure")
	}

	var err error
	if q.xfer != nil {
		err = q.xfer.err
	}
	q.complete(err)
}

func (q *Queue) closeRemote() {
	q.sent(q.send(protocol.CmdCloseFile, protocol.FileIDPayload(q.xfer.id)))
}

func (q *Queue) retryOrComplete(err error) {
	if q.current.Kind.Idempotent() && q.attempts < q.retries {
		q.attempts++

		logrus.WithFields(logrus.Fields{
			"function":  "retryOrComplete",
			"operation": q.current.String(),
			"attempt":   q.attempts,
			"retries":   q.retries,
			"error":     err.Error(),
		}).Info("Retrying operation")

		q.sent(q.dispatch(*q.current))
		return
	}
	q.complete(err)
}

// complete records the current operation's outcome and moves on.
func (q *Queue) complete(err error) {
	q.record(err)
	q.closeLocal(err)
	q.current = nil
	q.processNext()
}

// sent handles the result of a Send issued while an operation is in flight.
func (q *Queue) sent(err error) {
	if err == nil {
		return
	}
	if isLinkError(err) {
		q.Abort(err)
		return
	}
	q.complete(err)
}

func (q *Queue) record(err error) {
	if err == nil {
		q.summary.Succeeded++
		logrus.WithFields(logrus.Fields{
			"function":  "record",
			"operation": q.current.String(),
		}).Info("Operation succeeded")
		return
	}

	q.summary.Failed++
	logrus.WithFields(logrus.Fields{
		"function":  "record",
		"operation": q.current.String(),
		"error":     err.Error(),
	}).Warn("Operation failed")
}

// closeLocal releases the local file of the current transfer. A failed
// download leaves no partial file behind.
func (q *Queue) closeLocal(err error) {
	x := q.xfer
	q.xfer = nil
	if x == nil {
		return
	}

	if x.file != nil {
		if closeErr := x.file.Close(); closeErr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "closeLocal",
				"path":     x.path,
				"error":    closeErr.Error(),
			}).Warn("Failed to close local file")
		}
	}
	if err != nil && !x.upload {
		if rmErr := os.Remove(x.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logrus.WithFields(logrus.Fields{
				"function": "closeLocal",
				"path":     x.path,
				"error":    rmErr.Error(),
			}).Warn("Failed to remove partial download")
		}
	}
}

func (q *Queue) drain() {
	summary := q.summary
	summary.Cancelled = q.cancelled

	q.running = false
	q.cancelled = false
	q.pending = nil
	q.current = nil
	q.label = ""
	q.completed = 0
	q.total = 0
	q.summary = Summary{}

	logrus.WithFields(logrus.Fields{
		"function":  "drain",
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"cancelled": summary.Cancelled,
	}).Info("Queue finished")

	if q.onFinished != nil {
		q.onFinished(summary)
	}
}

func (q *Queue) sendPath(cmd protocol.Command, path string) error {
	if err := limits.ValidatePath(path); err != nil {
		return err
	}
	payload, err := protocol.StringPayload(path)
	if err != nil {
		return err
	}
	return q.send(cmd, payload)
}

func (q *Queue) sendOpen(path string, mode byte) error {
	if err := limits.ValidatePath(path); err != nil {
		return err
	}
	payload, err := protocol.OpenFilePayload(path, mode)
	if err != nil {
		return err
	}
	return q.send(protocol.CmdOpenFile, payload)
}

func (q *Queue) send(cmd protocol.Command, payload []byte) error {
	q.expect = cmd
	return q.sender.Send(cmd, payload)
}

func isLinkError(err error) bool {
	var linkErr *session.LinkError
	return errors.As(err, &linkErr)
}
