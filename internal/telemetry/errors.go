package telemetry

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by Send when no session is open. It is a warning, not a failure.
var ErrNotConnected = errors.New("telemetry: not connected")

// TransportError reports a websocket that failed to open or dropped unexpectedly.
type TransportError struct {
	Op  string // "dial", "read" or "write"
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("telemetry: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports an inbound frame that is not a well-formed sample. The frame is dropped.
type DecodeError struct {
	Frame string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("telemetry: decode %q: %v", e.Frame, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
