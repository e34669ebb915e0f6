package irc

import (
	"errors"
	"fmt"
)

var (
	// ErrNoConfig is returned by Connect when the client has no config
	ErrNoConfig = errors.New("no config passed to connect")

	// ErrNotConnected is returned by sends while there is no socket
	ErrNotConnected = errors.New("not connected")

	// ErrRetriesExhausted is wrapped by ConnectError
	ErrRetriesExhausted = errors.New("maximum retry attempts reached")

	// ErrIdleTimeout is the cause of a ReadError when nothing arrived within nodataTimeout
	ErrIdleTimeout = errors.New("no data received before idle timeout")
)

// ConnectError reports that every connection attempt failed
type ConnectError struct {
	Addr     string
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s failed after %d attempts: %v", e.Addr, e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Err}
}

// ReadError ends the receive loop: an I/O fault, the peer closing
// (io.EOF), or ErrIdleTimeout.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("connection lost: %v", e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
