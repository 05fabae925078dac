// Package eventloop implements the readiness-polling dispatcher: it
// multiplexes the listening socket and every live connection through a
// Poller, accepts new connections, and drives each connection's state
// machine (internal/connstate) forward as its socket becomes ready.
package eventloop

import "time"

// Interest is a bitmask of the readiness a registered file descriptor
// should be watched for.
type Interest uint8

const (
	// Readable watches for incoming data (or, for the listening socket,
	// a pending connection).
	Readable Interest = 1 << iota
	// Writable watches for buffer space to send into.
	Writable
)

// Event reports that a registered file descriptor is ready.
type Event struct {
	Fd       int
	Readable bool
	Writable bool
}

// Poller is the readiness-polling primitive the dispatcher multiplexes
// through. Implementations are level-triggered: a fd registered for
// Readable stays reported ready on every Wait call until its readable
// condition is drained or its interest is changed.
type Poller interface {
	// Add registers fd for the given interest.
	Add(fd int, interest Interest) error
	// Modify changes the interest a previously-Added fd is watched for.
	Modify(fd int, interest Interest) error
	// Remove stops watching fd. Safe to call even if fd was never added.
	Remove(fd int) error
	// Wait blocks until at least one registered fd is ready, or until
	// timeout elapses. A negative timeout blocks indefinitely.
	Wait(timeout time.Duration) ([]Event, error)
	// Close releases the poller's own resources (e.g. the epoll fd).
	Close() error
}
