package transport

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"
)

// fatalReadErrno are the errno values that mean the device itself is gone
// (unplugged, power-cycled) rather than merely "no byte arrived yet".
// Anything else — including a plain poll timeout — is treated as
// no-data-within-this-slice and the read loop keeps going until the
// caller's deadline.
func fatalReadErrno(err error) bool {
	errno, ok := err.(syscall.Errno)
	if !ok {
		return false
	}
	switch errno {
	case syscall.EIO, syscall.ENXIO, syscall.EBADF, syscall.ENODEV:
		return true
	default:
		return false
	}
}

// baudRates maps the handful of rates GRBL-family firmware actually ships
// with to the kernel's CBAUD constants. Anything else falls back to
// 115200, the grblHAL/FluidNC default, per the unknown-baud edge case.
var baudRates = map[int]CFlag{
	9600:   B9600,
	19200:  B19200,
	38400:  B38400,
	57600:  B57600,
	115200: B115200,
	230400: B230400,
	460800: B460800,
	921600: B921600,
}

func baudConstant(rate int) CFlag {
	if c, ok := baudRates[rate]; ok {
		return c
	}
	return B115200
}

// SerialTransport is a GRBL-family byte-stream endpoint over a local
// serial device. It configures the port the way the original's
// serial_port.cpp does: non-blocking open, raw mode, 8N1, no flow
// control, CLOCAL|CREAD, then layers newline-buffered reads with a
// monotonic-clock timeout on top.
type SerialTransport struct {
	device string
	port   *Port
	buf    bytes.Buffer
	state  ConnectionState
}

// OpenSerial opens device at baud and configures it for 8N1 line
// communication with no flow control, matching the GRBL wire protocol.
func OpenSerial(device string, baud int) (*SerialTransport, error) {
	port, err := Open(device, NewOptions())
	if err != nil {
		return nil, wrapErr("open "+device, err)
	}
	attrs, err := port.GetAttr()
	if err != nil {
		port.Close()
		return nil, wrapErr("get attrs", err)
	}
	attrs.MakeRaw()
	attrs.Cflag |= CLOCAL | CREAD
	attrs.Cflag &= ^CRTSCTS
	attrs.SetSpeed(baudConstant(baud))
	if err := port.SetAttr(TCSANOW, attrs); err != nil {
		port.Close()
		return nil, wrapErr("set attrs", err)
	}
	return &SerialTransport{device: device, port: port, state: Connected}, nil
}

func (s *SerialTransport) Write(data []byte) (int, error) {
	n, err := s.port.Write(data)
	if err != nil {
		s.state = Errored
		return n, wrapErr("write", err)
	}
	return n, nil
}

func (s *SerialTransport) WriteByte(b byte) error {
	_, err := s.Write([]byte{b})
	return err
}

// ReadLine reads one newline-terminated line, tracking elapsed time with a
// monotonic clock rather than the original's per-iteration "remaining -=
// 10" approximation (REDESIGN FLAGS, spec.md §9).
func (s *SerialTransport) ReadLine(timeout time.Duration) (string, bool, error) {
	deadline := time.Now().Add(timeout)
	chunk := make([]byte, 256)
	for {
		if idx := bytes.IndexByte(s.buf.Bytes(), '\n'); idx >= 0 {
			line := s.buf.Next(idx + 1)
			return strings.TrimRight(string(line[:idx]), "\r"), true, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", false, nil
		}
		n, err := s.port.ReadTimeout(chunk, remaining)
		if err != nil {
			if fatalReadErrno(err) {
				s.state = Disconnected
				return "", false, wrapErr("read", err)
			}
			// Poll timeout or a transient interrupt: loop and re-check
			// the overall deadline rather than failing the whole read.
			continue
		}
		if n == 0 {
			s.state = Disconnected
			return "", false, wrapErr("read", fmt.Errorf("eof"))
		}
		s.buf.Write(chunk[:n])
	}
}

func (s *SerialTransport) Drain() error {
	return wrapErr("drain", s.port.Drain())
}

func (s *SerialTransport) Close() error {
	s.state = Closed
	return wrapErr("close", s.port.Close())
}

func (s *SerialTransport) IsOpen() bool { return s.port.Fd() >= 0 }

func (s *SerialTransport) Device() string { return s.device }

func (s *SerialTransport) ConnectionState() ConnectionState { return s.state }

// ListSerialPorts enumerates locally attached serial devices under
// /dev, the way the original's listSerialPorts() scans for ttyUSB*/ttyACM*
// (FTDI/CH340/CDC-ACM adapters, which is what nearly every GRBL board
// shows up as) plus ttyAMA* for boards wired to a Pi's UART header.
func ListSerialPorts() ([]string, error) {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		return nil, wrapErr("readdir /dev", err)
	}
	var ports []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "ttyUSB") || strings.HasPrefix(name, "ttyACM") || strings.HasPrefix(name, "ttyAMA") {
			ports = append(ports, filepath.Join("/dev", name))
		}
	}
	sort.Strings(ports)
	return ports, nil
}
