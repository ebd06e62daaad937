package bridge

import (
	"errors"
	"fmt"
)

// ErrClosed is returned for any request issued after Close.
var ErrClosed = errors.New("bridge: session closed")

// ConnectError reports a failure to establish the bridge connection.
type ConnectError struct {
	Endpoint string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("bridge: connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ProtocolError reports a failed exchange: a transport failure, a malformed
// frame, a Nack, or a response of the wrong kind. The session is unusable
// afterwards.
type ProtocolError struct {
	Request Kind   // request being exchanged
	Reason  string // what went wrong
	Err     error  // underlying cause, if any
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("bridge: %s: %s", e.Request, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }
