package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownNeighbor indicates a next hop with no known link endpoint
	ErrUnknownNeighbor = errors.New("unknown neighbor")

	// ErrTransportClosed indicates a send on a closed transport
	ErrTransportClosed = errors.New("transport closed")

	// ErrNoNeighbors indicates a broadcast with nobody to receive it
	ErrNoNeighbors = errors.New("no neighbors configured")
)

// Error represents a transmit error with additional context.
type Error struct {
	Op   string // operation that caused the error
	Addr string // neighbor address if relevant
	Err  error  // underlying error
}

func (e *Error) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("ara %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("ara %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, addr string, err error) *Error {
	return &Error{
		Op:   op,
		Addr: addr,
		Err:  err,
	}
}
