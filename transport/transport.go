// Package transport implements the byte-stream abstraction a controller
// session drives: a serial port, a TCP socket, or (in package simulator) a
// fully in-process stand-in. None of the session code above this package
// knows or cares which one it is talking to.
package transport

import "time"

// ConnectionState is the transport's coarse-grained link status, reported
// independently of the GRBL-level machine state carried in status reports.
type ConnectionState int

const (
	Closed ConnectionState = iota
	Connected
	Disconnected
	Errored
)

func (c ConnectionState) String() string {
	switch c {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Errored:
		return "error"
	default:
		return "closed"
	}
}

// Stream is the capability set a controller session needs from a
// byte-stream endpoint. A serial port, a TCP socket, and the simulator are
// siblings implementing it directly; there is no shared base type.
type Stream interface {
	// Write sends raw bytes, e.g. a real-time command byte or a queued line
	// plus its trailing newline.
	Write(data []byte) (int, error)

	// WriteByte sends a single byte without buffering, used for real-time
	// commands that must reach the controller immediately.
	WriteByte(b byte) error

	// ReadLine blocks for up to timeout for a complete newline-terminated
	// line. ok is false on timeout; err is non-nil only on a real I/O
	// failure (the caller should treat that as a disconnect).
	ReadLine(timeout time.Duration) (line string, ok bool, err error)

	// Drain blocks until any buffered output has been physically
	// transmitted.
	Drain() error

	// Close releases the underlying descriptor. Idempotent.
	Close() error

	// IsOpen reports whether Close has not yet been called.
	IsOpen() bool

	// Device is a human-readable label for logging ("/dev/ttyUSB0",
	// "192.168.1.100:23", "simulator").
	Device() string

	// ConnectionState reports the transport's last observed link state.
	ConnectionState() ConnectionState
}

// Error wraps a lower-level I/O failure with the operation that produced
// it, the way the teacher's own error type does, generalized to every
// transport implementation instead of just the serial one.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
