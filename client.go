package pixlfs

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/opd-ai/pixlfs/protocol"
	"github.com/opd-ai/pixlfs/session"
	"github.com/opd-ai/pixlfs/transfer"
	"github.com/opd-ai/pixlfs/transport"
	"github.com/opd-ai/pixlfs/tree"
	"github.com/sirupsen/logrus"
)

type listResult struct {
	entries []protocol.DirEntry
	err     error
}

// Client drives one device over one transport. All methods are safe for
// concurrent use. Callbacks run on the goroutine that triggered them, after
// the client's lock has been released.
type Client struct {
	mu sync.Mutex

	link    transport.Transport
	options *Options
	session *session.Session
	queue   *transfer.Queue
	tree    *tree.Cache

	version    string
	drives     []protocol.Drive
	connecting bool
	ready      bool
	readyErr   error
	readyCh    chan struct{}
	readyOnce  sync.Once
	closed     bool
	done       chan struct{}
	runOnce    sync.Once

	// displayed is the directory the presentation layer shows.
	displayed string
	// listing is the path of the outstanding ReadDir or GetDriveList.
	listing string
	// pendingListings are deferred until the link and the queue are idle.
	pendingListings []string

	listWaiters   map[string][]chan listResult
	finishWaiters []chan transfer.Summary

	events []func()

	onFetchRequested   func(path string)
	onDirectoryUpdated func(path string)
	onProgress         func(Progress)
	onFinished         func(Summary)
	onReady            func(version string, drives []protocol.Drive)
}

// New creates a client on an established transport. A nil opts uses
// NewOptions.
func New(t transport.Transport, opts *Options) (*Client, error) {
	if t == nil {
		return nil, errors.New("pixlfs: transport is required")
	}
	if opts == nil {
		opts = NewOptions()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = NewOptions().TickInterval
	}

	sess := session.New(t, opts.CommandTimeout)
	if opts.TimeProvider != nil {
		sess.SetTimeProvider(opts.TimeProvider)
	}

	queue, err := transfer.NewQueue(sess, opts.Transfer)
	if err != nil {
		return nil, fmt.Errorf("pixlfs: %w", err)
	}

	c := &Client{
		link:        t,
		options:     opts,
		session:     sess,
		queue:       queue,
		tree:        tree.New(),
		readyCh:     make(chan struct{}),
		done:        make(chan struct{}),
		listWaiters: make(map[string][]chan listResult),
	}

	c.tree.OnFetchRequested(c.fetchRequested)
	c.tree.OnDirectoryUpdated(c.directoryUpdated)
	queue.OnProgress(c.progressed)
	queue.OnFinished(c.finished)

	logrus.WithFields(logrus.Fields{
		"function":        "New",
		"command_timeout": opts.CommandTimeout,
		"chunk_size":      opts.Transfer.ChunkSize,
	}).Info("Client created")

	return c, nil
}

// OnFetchRequested sets the callback fired when a directory listing is
// requested.
func (c *Client) OnFetchRequested(fn func(path string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFetchRequested = fn
}

// OnDirectoryUpdated sets the callback fired when a listing has been merged
// into the tree.
func (c *Client) OnDirectoryUpdated(fn func(path string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDirectoryUpdated = fn
}

// OnProgress sets the callback fired as each queued operation starts.
func (c *Client) OnProgress(fn func(Progress)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onProgress = fn
}

// OnFinished sets the callback fired once each time the queue drains.
func (c *Client) OnFinished(fn func(Summary)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFinished = fn
}

// OnReady sets the callback fired when the handshake has completed.
func (c *Client) OnReady(fn func(version string, drives []protocol.Drive)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReady = fn
}

// Run consumes inbound frames and enforces command deadlines until ctx ends
// or the link drops. It returns ErrLinkLost when the transport closes.
func (c *Client) Run(ctx context.Context) error {
	started := false
	c.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("pixlfs: Run called twice")
	}
	defer close(c.done)

	ticker := time.NewTicker(c.options.TickInterval)
	defer ticker.Stop()

	frames := c.link.Frames()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case frame, ok := <-frames:
			if !ok {
				c.locked(func() { c.linkLost(ErrLinkLost) })
				return ErrLinkLost
			}
			c.locked(func() { c.handleFrame(frame) })

		case <-ticker.C:
			c.locked(c.checkTimeout)
		}
	}
}

// Close closes the transport. Run observes the closed link and returns.
func (c *Client) Close() error {
	return c.link.Close()
}

// Connect starts the handshake: GetVersion, then GetDriveList, then the
// listing of the first drive.
func (c *Client) Connect() error {
	var err error
	c.locked(func() {
		switch {
		case c.closed:
			err = ErrLinkLost
		case c.ready || c.connecting:
			return
		case !c.session.Idle():
			err = ErrBusy
		default:
			c.connecting = true
			if err = c.session.Send(protocol.CmdGetVersion, nil); err != nil {
				c.connecting = false
			}
		}
	})
	return err
}

// WaitReady blocks until the handshake completes or fails.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.readyCh:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.readyErr
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// Version returns the firmware version reported during the handshake.
func (c *Client) Version() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Drives returns the drive list reported during the handshake.
func (c *Client) Drives() []protocol.Drive {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Drive(nil), c.drives...)
}

// Displayed returns the directory most recently requested for display.
func (c *Client) Displayed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayed
}

// RequestListing makes path the displayed directory and fetches it. The
// ReadDir is sent as soon as the link and the queue are idle. Bare drive
// letters such as "E" are accepted.
func (c *Client) RequestListing(path string) {
	p := NormalizeRemote(path)
	c.locked(func() {
		c.displayed = p
		c.refresh(p)
	})
}

// Fetch lists a directory only if it has never been listed.
func (c *Client) Fetch(path string) bool {
	var ok bool
	c.locked(func() {
		ok = c.tree.Fetch(NormalizeRemote(path))
	})
	return ok
}

// Lookup returns the cached node for path.
func (c *Client) Lookup(path string) (tree.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Lookup(NormalizeRemote(path))
}

// Children returns the cached children of a directory.
func (c *Client) Children(path string) []tree.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Children(NormalizeRemote(path))
}

// List fetches a directory and waits for its entries. Listing "/" returns
// the drives as directory entries.
func (c *Client) List(ctx context.Context, path string) ([]protocol.DirEntry, error) {
	p := NormalizeRemote(path)
	ch := make(chan listResult, 1)

	c.locked(func() {
		if c.closed {
			ch <- listResult{err: ErrLinkLost}
			return
		}
		key := tree.NormalizePath(p)
		c.listWaiters[key] = append(c.listWaiters[key], ch)
		c.refresh(p)
	})

	select {
	case r := <-ch:
		return r.entries, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

// Enqueue appends operations to the queue.
func (c *Client) Enqueue(ops []Operation, label string) {
	c.locked(func() {
		if c.closed {
			return
		}
		c.queue.Enqueue(ops, label)
	})
}

// Execute enqueues operations and waits until the queue drains. When ctx
// ends the remaining operations are cancelled and Execute still waits for
// the operation in flight.
func (c *Client) Execute(ctx context.Context, ops []Operation, label string) (Summary, error) {
	if len(ops) == 0 {
		return Summary{}, nil
	}

	ch := make(chan transfer.Summary, 1)
	var err error
	c.locked(func() {
		if c.closed {
			err = ErrLinkLost
			return
		}
		c.finishWaiters = append(c.finishWaiters, ch)
		c.queue.Enqueue(ops, label)
	})
	if err != nil {
		return Summary{}, err
	}

	cancelled := ctx.Done()
	for {
		select {
		case s := <-ch:
			return s, s.Err
		case <-cancelled:
			c.Cancel()
			cancelled = nil
		case <-c.done:
			select {
			case s := <-ch:
				return s, s.Err
			default:
				return Summary{}, ErrClosed
			}
		}
	}
}

// Cancel skips every queued operation that has not started.
func (c *Client) Cancel() bool {
	var ok bool
	c.locked(func() { ok = c.queue.Cancel() })
	return ok
}

// Busy reports whether the queue is processing operations.
func (c *Client) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Busy()
}

// Progress returns the queue position.
func (c *Client) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Progress()
}

// Upload queues a local file or directory tree for upload into remoteDir.
func (c *Client) Upload(local, remoteDir string) error {
	ops, err := transfer.ExpandUpload(local, NormalizeRemote(remoteDir))
	if err != nil {
		return err
	}
	c.Enqueue(ops, "Uploading")
	return nil
}

// Download queues remote files for download into localDir.
func (c *Client) Download(remotePaths []string, localDir string) {
	c.Enqueue(transfer.DownloadOps(remotePaths, localDir), "Downloading")
}

// Delete queues remote paths for removal.
func (c *Client) Delete(remotePaths []string) {
	c.Enqueue(transfer.DeleteOps(remotePaths), "Deleting")
}

// Mkdir queues the creation of a remote directory.
func (c *Client) Mkdir(path string) {
	c.Enqueue([]Operation{transfer.CreateFolder(NormalizeRemote(path))}, "Creating folder")
}

// Rename queues a remote move.
func (c *Client) Rename(oldPath, newPath string) {
	c.Enqueue([]Operation{transfer.Rename(oldPath, newPath)}, "Renaming")
}

// NormalizeRemote expands a bare drive letter ("E" or "E:") to its root
// ("E:/"). Other paths are returned unchanged.
func NormalizeRemote(p string) string {
	switch {
	case len(p) == 1 && isLetter(p[0]):
		return strings.ToUpper(p) + ":/"
	case len(p) == 2 && isLetter(p[0]) && p[1] == ':':
		return strings.ToUpper(p[:1]) + ":/"
	}
	return p
}

func isLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// locked runs fn under the lock, advances the link, then fires the
// callbacks fn queued.
func (c *Client) locked(fn func()) {
	c.mu.Lock()
	fn()
	c.pump()
	events := c.events
	c.events = nil
	c.mu.Unlock()

	for _, ev := range events {
		ev()
	}
}

func (c *Client) emit(ev func()) {
	c.events = append(c.events, ev)
}

// pump sends the next command when the link is idle. The queue has
// priority; listings wait until it drains.
func (c *Client) pump() {
	for !c.closed && c.session.Idle() {
		if c.queue.Busy() {
			c.queue.Start()
			return
		}
		if len(c.pendingListings) == 0 {
			return
		}

		p := c.pendingListings[0]
		c.pendingListings = c.pendingListings[1:]
		if err := c.sendListing(p); err == nil {
			return
		}
	}
}

func (c *Client) sendListing(p string) error {
	var err error
	if p == tree.RootPath {
		err = c.session.Send(protocol.CmdGetDriveList, nil)
	} else {
		var payload []byte
		if payload, err = protocol.StringPayload(p); err == nil {
			err = c.session.Send(protocol.CmdReadDir, payload)
		}
	}

	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "sendListing",
			"path":     p,
			"error":    err.Error(),
		}).Warn("Failed to request listing")
		c.listingFailed(p, err)
		return err
	}

	c.listing = p
	return nil
}

// refresh invalidates a directory and schedules its listing.
func (c *Client) refresh(p string) {
	if !c.tree.Refresh(p) {
		c.scheduleListing(p)
	}
}

func (c *Client) scheduleListing(p string) {
	if c.listing != "" && tree.SamePath(c.listing, p) {
		return
	}
	for _, q := range c.pendingListings {
		if tree.SamePath(q, p) {
			return
		}
	}
	c.pendingListings = append(c.pendingListings, p)
}

func (c *Client) fetchRequested(p string) {
	c.scheduleListing(p)
	if fn := c.onFetchRequested; fn != nil {
		c.emit(func() { fn(p) })
	}
}

func (c *Client) directoryUpdated(p string) {
	if fn := c.onDirectoryUpdated; fn != nil {
		c.emit(func() { fn(p) })
	}
}

func (c *Client) progressed(p transfer.Progress) {
	if fn := c.onProgress; fn != nil {
		c.emit(func() { fn(p) })
	}
}

func (c *Client) finished(s transfer.Summary) {
	for _, ch := range c.finishWaiters {
		ch <- s
	}
	c.finishWaiters = nil

	if fn := c.onFinished; fn != nil {
		c.emit(func() { fn(s) })
	}

	if !c.closed && c.displayed != "" {
		c.refresh(c.displayed)
	}
}

func (c *Client) handleFrame(frame []byte) {
	resp, err := c.session.Receive(frame)
	if err != nil {
		c.commandFailed(err)
		return
	}
	if resp != nil {
		c.handleResponse(resp)
	}
}

func (c *Client) checkTimeout() {
	if !c.session.Expired() {
		return
	}
	cmd, _ := c.session.Abort()

	logrus.WithFields(logrus.Fields{
		"function": "checkTimeout",
		"command":  cmd.String(),
		"timeout":  c.options.CommandTimeout,
	}).Warn("Command timed out")

	c.commandFailed(fmt.Errorf("%s: %w", cmd, session.ErrTimeout))
}

// commandFailed routes a protocol error or timeout to whoever owns the
// abandoned command.
func (c *Client) commandFailed(err error) {
	switch {
	case c.queue.Active():
		c.queue.Fail(err)
	case c.listing != "":
		p := c.listing
		c.listing = ""
		c.listingFailed(p, err)
	case c.connecting:
		c.connecting = false
		c.markReady(err)
	default:
		logrus.WithFields(logrus.Fields{
			"function": "commandFailed",
			"error":    err.Error(),
		}).Warn("Protocol error with no command outstanding")
	}
}

func (c *Client) handleResponse(resp *session.Response) {
	if c.queue.HandleResponse(resp) {
		return
	}

	switch resp.Command {
	case protocol.CmdGetVersion:
		c.handleVersion(resp)
	case protocol.CmdGetDriveList:
		c.handleDrives(resp)
	case protocol.CmdReadDir:
		c.handleListing(resp)
	default:
		logrus.WithFields(logrus.Fields{
			"function": "handleResponse",
			"command":  resp.Command.String(),
			"status":   resp.Status,
		}).Warn("Unexpected response")
	}
}

func (c *Client) handleVersion(resp *session.Response) {
	if err := protocol.CheckStatus(resp.Command, resp.Status); err != nil {
		c.connecting = false
		c.markReady(err)
		return
	}

	c.version = versionString(resp.Payload)
	logrus.WithFields(logrus.Fields{
		"function": "handleVersion",
		"version":  c.version,
	}).Info("Device version received")

	c.refresh(tree.RootPath)
}

func (c *Client) handleDrives(resp *session.Response) {
	c.listing = ""
	if err := protocol.CheckStatus(resp.Command, resp.Status); err != nil {
		c.listingFailed(tree.RootPath, err)
		return
	}

	c.drives = protocol.ParseDriveList(resp.Payload)
	first, ok := c.tree.ApplyDrives(c.drives)

	entries := make([]protocol.DirEntry, 0, len(c.drives))
	for _, drv := range c.drives {
		entries = append(entries, protocol.DirEntry{Name: drv.Root(), Size: drv.Size, Type: protocol.EntryTypeDir})
	}
	c.resolveListing(tree.RootPath, entries, nil)

	logrus.WithFields(logrus.Fields{
		"function": "handleDrives",
		"drives":   len(c.drives),
	}).Info("Drive list received")

	if c.connecting {
		c.connecting = false
		if ok && c.displayed == "" {
			c.displayed = first
			c.tree.Fetch(first)
		}
		c.markReady(nil)
	}
}

func (c *Client) handleListing(resp *session.Response) {
	p := c.listing
	c.listing = ""
	if p == "" {
		return
	}

	if err := protocol.CheckStatus(resp.Command, resp.Status); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleListing",
			"path":     p,
			"status":   resp.Status,
		}).Warn("Device refused directory listing")
		c.listingFailed(p, err)
		return
	}

	entries := protocol.ParseDirListing(resp.Payload)
	c.tree.ApplyListing(p, entries)
	c.resolveListing(p, entries, nil)
}

// listingFailed releases a listing that will not complete. A failed drive
// list during the handshake fails the handshake.
func (c *Client) listingFailed(p string, err error) {
	c.tree.FetchFailed(p)
	c.resolveListing(p, nil, err)
	if p == tree.RootPath && c.connecting {
		c.connecting = false
		c.markReady(err)
	}
}

func (c *Client) resolveListing(p string, entries []protocol.DirEntry, err error) {
	key := tree.NormalizePath(p)
	for _, ch := range c.listWaiters[key] {
		ch <- listResult{entries: entries, err: err}
	}
	delete(c.listWaiters, key)
}

func (c *Client) markReady(err error) {
	c.readyOnce.Do(func() {
		c.ready = err == nil
		c.readyErr = err
		close(c.readyCh)

		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "markReady",
				"error":    err.Error(),
			}).Error("Handshake failed")
			return
		}
		if fn := c.onReady; fn != nil {
			version := c.version
			drives := append([]protocol.Drive(nil), c.drives...)
			c.emit(func() { fn(version, drives) })
		}
	})
}

// linkLost aborts everything: the command in flight, the queue, pending
// listings and the cached tree.
func (c *Client) linkLost(err error) {
	if c.closed {
		return
	}
	c.closed = true

	logrus.WithFields(logrus.Fields{
		"function": "linkLost",
		"error":    err.Error(),
	}).Error("Link lost")

	c.session.Abort()
	c.queue.Abort(err)
	c.tree.Clear()

	c.listing = ""
	c.pendingListings = nil
	for key, waiters := range c.listWaiters {
		for _, ch := range waiters {
			ch <- listResult{err: err}
		}
		delete(c.listWaiters, key)
	}

	c.connecting = false
	c.markReady(err)
}

func versionString(payload []byte) string {
	if s := protocol.NewDecoder(payload).ReadString(); s != "" {
		return s
	}
	return hex.EncodeToString(payload)
}
