package transport

import (
	"bytes"
	"net"
	"strings"
	"time"
)

// TCPTransport is a GRBL-family byte-stream endpoint over a network
// socket, the way grblHAL/FluidNC boards with WiFi/Ethernet expose
// themselves on port 23. Unlike the serial transport, the original's
// tcp_socket.cpp already tracked its read deadline with a monotonic
// clock rather than an approximation, so this type's ReadLine loop is a
// direct port of that behavior rather than a redesign.
type TCPTransport struct {
	addr string
	conn net.Conn
	buf  bytes.Buffer
	state ConnectionState
}

// DialTCP connects to addr ("host:port") with a bounded connect timeout,
// disabling Nagle's algorithm the way the original does for low-latency
// line delivery.
func DialTCP(addr string, timeout time.Duration) (*TCPTransport, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, wrapErr("dial "+addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return &TCPTransport{addr: addr, conn: conn, state: Connected}, nil
}

func (t *TCPTransport) Write(data []byte) (int, error) {
	n, err := t.conn.Write(data)
	if err != nil {
		t.state = Errored
		return n, wrapErr("write", err)
	}
	return n, nil
}

func (t *TCPTransport) WriteByte(b byte) error {
	_, err := t.Write([]byte{b})
	return err
}

func (t *TCPTransport) ReadLine(timeout time.Duration) (string, bool, error) {
	deadline := time.Now().Add(timeout)
	chunk := make([]byte, 4096)
	for {
		if idx := bytes.IndexByte(t.buf.Bytes(), '\n'); idx >= 0 {
			line := t.buf.Next(idx + 1)
			return strings.TrimRight(string(line[:idx]), "\r"), true, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", false, nil
		}
		if err := t.conn.SetReadDeadline(time.Now().Add(remaining)); err != nil {
			return "", false, wrapErr("set read deadline", err)
		}
		n, err := t.conn.Read(chunk)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return "", false, nil
			}
			t.state = Disconnected
			return "", false, wrapErr("read", err)
		}
		if n == 0 {
			t.state = Disconnected
			return "", false, nil
		}
		t.buf.Write(chunk[:n])
	}
}

// Drain is a no-op for TCP: the kernel socket buffer has no user-facing
// "flush" primitive the way a tty line discipline does.
func (t *TCPTransport) Drain() error { return nil }

func (t *TCPTransport) Close() error {
	t.state = Closed
	return wrapErr("close", t.conn.Close())
}

func (t *TCPTransport) IsOpen() bool { return t.state != Closed }

func (t *TCPTransport) Device() string { return t.addr }

func (t *TCPTransport) ConnectionState() ConnectionState { return t.state }
