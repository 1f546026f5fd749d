package worker

import "github.com/c360/eventscope/errors"

var (
	// ErrQueueFull is returned by Submit when the queue is at capacity.
	ErrQueueFull = errors.New("worker queue full")

	// ErrStopTimeout is returned by Stop when workers outlive the timeout.
	ErrStopTimeout = errors.New("timeout waiting for workers to stop")
)
