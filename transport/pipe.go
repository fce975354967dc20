package transport

import "sync"

// Pipe is an in-memory link. Frames sent on one end arrive on the other.
// Closing either end drops the whole link, like losing the radio connection.
type Pipe struct {
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	once   sync.Once

	host   *PipeEnd
	device *PipeEnd
}

// PipeEnd is one side of a Pipe. It satisfies the Transport interface.
type PipeEnd struct {
	pipe   *Pipe
	frames chan []byte
	peer   *PipeEnd
}

// NewPipe creates a linked pair. backlog is the number of frames each end
// buffers before Send blocks.
func NewPipe(backlog int) (host, device *PipeEnd) {
	if backlog < 1 {
		backlog = 1
	}

	p := &Pipe{done: make(chan struct{})}
	p.host = &PipeEnd{pipe: p, frames: make(chan []byte, backlog)}
	p.device = &PipeEnd{pipe: p, frames: make(chan []byte, backlog)}
	p.host.peer = p.device
	p.device.peer = p.host

	return p.host, p.device
}

// Send delivers a copy of frame to the peer.
func (e *PipeEnd) Send(frame []byte) error {
	e.pipe.mu.RLock()
	defer e.pipe.mu.RUnlock()

	if e.pipe.closed {
		return ErrClosed
	}

	buf := make([]byte, len(frame))
	copy(buf, frame)

	select {
	case e.peer.frames <- buf:
		return nil
	case <-e.pipe.done:
		return ErrClosed
	}
}

// Frames returns the frames sent by the peer.
func (e *PipeEnd) Frames() <-chan []byte {
	return e.frames
}

// Close drops the link for both ends.
func (e *PipeEnd) Close() error {
	p := e.pipe
	p.once.Do(func() {
		close(p.done)

		p.mu.Lock()
		p.closed = true
		close(p.host.frames)
		close(p.device.frames)
		p.mu.Unlock()
	})
	return nil
}
