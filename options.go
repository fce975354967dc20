package pixlfs

import (
	"time"

	"github.com/opd-ai/pixlfs/session"
	"github.com/opd-ai/pixlfs/transfer"
)

// Options contains client configuration.
type Options struct {
	// CommandTimeout bounds how long one command may wait for its
	// response. Zero disables the deadline.
	CommandTimeout time.Duration
	// TickInterval is how often Run checks the command deadline.
	TickInterval time.Duration
	// Transfer configures the operation queue.
	Transfer transfer.Options
	// TimeProvider overrides the clock used for deadlines.
	TimeProvider session.TimeProvider
}

// NewOptions returns the default client options.
func NewOptions() *Options {
	return &Options{
		CommandTimeout: session.DefaultTimeout,
		TickInterval:   250 * time.Millisecond,
		Transfer:       transfer.DefaultOptions(),
	}
}
