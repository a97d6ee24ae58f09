package transport

import (
	"fmt"
	"strings"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"github.com/daedaluz/fdev/poll"
	ioctl "github.com/daedaluz/goioctl"
)

// Termios, Termios2 and the raw-mode/ioctl plumbing below are adapted from
// the teacher's port_linux.go almost verbatim: GRBL-family firmware only
// ever needs 8N1 + a baud rate, but getting there on Linux still means
// going through the kernel's termios2 ioctls.

type Termios struct {
	Iflag IFlag
	Oflag OFlag
	Cflag CFlag
	Lflag LFlag
	Line  Discipline
	Cc    [19]byte
}

type Termios2 struct {
	Iflag  IFlag
	Oflag  OFlag
	Cflag  CFlag
	Lflag  LFlag
	Line   Discipline
	Cc     [19]byte
	ISpeed uint32
	OSpeed uint32
}

const (
	VTIME = 5
	VMIN  = 6
)

type IFlag uint32

const (
	IGNBRK IFlag = 0000001
	BRKINT IFlag = 0000002
	IGNPAR IFlag = 0000004
	PARMRK IFlag = 0000010
	INPCK  IFlag = 0000020
	ISTRIP IFlag = 0000040
	INLCR  IFlag = 0000100
	IGNCR  IFlag = 0000200
	ICRNL  IFlag = 0000400
	IXON   IFlag = 0002000
	IXANY  IFlag = 0004000
	IXOFF  IFlag = 0010000
)

type OFlag uint32

const (
	OPOST OFlag = 0000001
	ONLCR OFlag = 0000004
)

type CFlag uint32

const (
	CBAUD  CFlag = 0010017
	B0     CFlag = 0000000
	B50    CFlag = 0000001
	B110   CFlag = 0000003
	B300   CFlag = 0000007
	B600   CFlag = 0000010
	B1200  CFlag = 0000011
	B2400  CFlag = 0000013
	B4800  CFlag = 0000014
	B9600  CFlag = 0000015
	B19200 CFlag = 0000016
	B38400 CFlag = 0000017

	CSIZE  CFlag = 0000060
	CS5    CFlag = 0000000
	CS6    CFlag = 0000020
	CS7    CFlag = 0000040
	CS8    CFlag = 0000060
	CSTOPB CFlag = 0000100
	CREAD  CFlag = 0000200
	PARENB CFlag = 0000400
	PARODD CFlag = 0001000
	HUPCL  CFlag = 0002000
	CLOCAL CFlag = 0004000

	CBAUDEX CFlag = 0010000
	BOTHER  CFlag = 0010000

	B57600   CFlag = 0010001
	B115200  CFlag = 0010002
	B230400  CFlag = 0010003
	B460800  CFlag = 0010004
	B500000  CFlag = 0010005
	B921600  CFlag = 0010007
	B1000000 CFlag = 0010010
	B1500000 CFlag = 0010012
	B2000000 CFlag = 0010013

	CRTSCTS CFlag = 020000000000
)

type LFlag uint32

const (
	ISIG   LFlag = 0000001
	ICANON LFlag = 0000002
	ECHO   LFlag = 0000010
	ECHOE  LFlag = 0000020
	ECHOK  LFlag = 0000040
	ECHONL LFlag = 0000100
	NOFLSH LFlag = 0000200
	TOSTOP LFlag = 0000400
	IEXTEN LFlag = 0100000
)

type Flow uint32

const (
	TCOOFF Flow = iota
	TCOON
	TCIOFF
	TCION
)

type Queue uint32

const (
	TCIFLUSH Queue = iota
	TCOFLUSH
	TCIOFLUSH
)

type Action int

const (
	TCSANOW Action = iota
	TCSADRAIN
	TCSAFLUSH
)

type ModemLine int

const (
	TIOCM_LE   ModemLine = 0x001
	TIOCM_DTR  ModemLine = 0x002
	TIOCM_RTS  ModemLine = 0x004
	TIOCM_CTS  ModemLine = 0x020
	TIOCM_CAR  ModemLine = 0x040
	TIOCM_RNG  ModemLine = 0x080
	TIOCM_DSR  ModemLine = 0x100
	TIOCM_LOOP ModemLine = 0x8000
)

var modemLineStrings = map[ModemLine]string{
	TIOCM_LE:  "LE",
	TIOCM_DTR: "DTR",
	TIOCM_RTS: "RTS",
	TIOCM_CTS: "CTS",
	TIOCM_CAR: "CAR",
	TIOCM_RNG: "RNG",
	TIOCM_DSR: "DSR",
}

func (m ModemLine) String() string {
	flags := make([]string, 0, len(modemLineStrings))
	for i := 1; i <= int(TIOCM_LOOP); i <<= 1 {
		if int(m)&i > 0 {
			if flag, ok := modemLineStrings[ModemLine(i)]; ok {
				flags = append(flags, flag)
			} else {
				flags = append(flags, fmt.Sprintf("Unknown(%x)", i))
			}
		}
	}
	return fmt.Sprintf("[%s]", strings.Join(flags, "|"))
}

type Discipline byte

const N_TTY Discipline = 0

// Options configures how Open behaves.
type Options struct {
	ReadTimeout time.Duration
	OpenMode    int
}

func NewOptions() *Options {
	return &Options{ReadTimeout: -1, OpenMode: syscall.O_RDWR | syscall.O_NOCTTY | syscall.O_NONBLOCK}
}

func (o *Options) SetReadTimeout(timeout time.Duration) *Options {
	o.ReadTimeout = timeout
	return o
}

// Port is a raw character-device file descriptor with termios2 ioctl
// access. SerialTransport builds the line-oriented GRBL transport on top
// of it.
type Port struct {
	options *Options
	closed  atomic.Bool
	f       int
}

func Open(name string, opts *Options) (*Port, error) {
	if opts == nil {
		opts = NewOptions()
	}
	fd, err := syscall.Open(name, opts.OpenMode, 0)
	if err != nil {
		return nil, wrapErr("open "+name, err)
	}
	return &Port{options: opts, f: fd}, nil
}

func (p *Port) Write(data []byte) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	n, err := syscall.Write(p.f, data)
	return n, wrapErr("write", err)
}

func (p *Port) readTimeout(data []byte, timeout time.Duration) (int, error) {
	if err := poll.WaitInput(p.f, timeout); err != nil {
		return 0, err
	}
	return syscall.Read(p.f, data)
}

func (p *Port) Read(data []byte) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	if p.options.ReadTimeout > -1 {
		return p.readTimeout(data, p.options.ReadTimeout)
	}
	return syscall.Read(p.f, data)
}

func (p *Port) ReadTimeout(data []byte, timeout time.Duration) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	return p.readTimeout(data, timeout)
}

func (p *Port) Fd() int {
	if p.closed.Load() {
		return -1
	}
	return p.f
}

func (p *Port) Close() error {
	if !p.closed.Swap(true) {
		fd := p.f
		p.f = -1
		return syscall.Close(fd)
	}
	return ErrClosed
}

func (p *Port) GetAttr() (*Termios, error) {
	attrs := &Termios{}
	err := ioctl.Ioctl(uintptr(p.f), tcgets, uintptr(unsafe.Pointer(attrs)))
	return attrs, err
}

func (p *Port) SetAttr(when Action, attrs *Termios) error {
	return ioctl.Ioctl(uintptr(p.f), tcsets+uintptr(when), uintptr(unsafe.Pointer(attrs)))
}

func (p *Port) GetAttr2() (*Termios2, error) {
	attrs := &Termios2{}
	err := ioctl.Ioctl(uintptr(p.f), tcgets2, uintptr(unsafe.Pointer(attrs)))
	return attrs, err
}

func (p *Port) SetAttr2(when Action, attrs *Termios2) error {
	return ioctl.Ioctl(uintptr(p.f), tcsets2+uintptr(when), uintptr(unsafe.Pointer(attrs)))
}

func (p *Port) SendBreak(arg int) error {
	return ioctl.Ioctl(uintptr(p.f), tcsbrk, uintptr(arg))
}

func (p *Port) SendBreakPosix(arg int) error {
	return ioctl.Ioctl(uintptr(p.f), tcsbrkp, uintptr(arg))
}

func (p *Port) SetBreak() error {
	return ioctl.Ioctl(uintptr(p.f), tiocsbrk, 1)
}

func (p *Port) ClearBreak() error {
	return ioctl.Ioctl(uintptr(p.f), tioccbrk, 1)
}

// Drain blocks until all written data has been physically transmitted.
// Like the teacher's port, this is implemented with TCSBRK(1) rather than
// a dedicated "flush" ioctl — Linux overloads the same request number.
func (p *Port) Drain() error {
	return ioctl.Ioctl(uintptr(p.f), tcsbrk, 1)
}

func (p *Port) Flush(queue Queue) error {
	return ioctl.Ioctl(uintptr(p.f), tcflsh, uintptr(queue))
}

func (p *Port) Flow(flow Flow) error {
	return ioctl.Ioctl(uintptr(p.f), tcxonc, uintptr(flow))
}

func (p *Port) SetModemLines(line ModemLine) error {
	return ioctl.Ioctl(uintptr(p.f), tiocmset, uintptr(unsafe.Pointer(&line)))
}

func (p *Port) GetModemLines() (ModemLine, error) {
	var line ModemLine
	err := ioctl.Ioctl(uintptr(p.f), tiocmget, uintptr(unsafe.Pointer(&line)))
	return line, err
}

func (p *Port) EnableModemLines(line ModemLine) error {
	return ioctl.Ioctl(uintptr(p.f), tiocmbis, uintptr(unsafe.Pointer(&line)))
}

func (p *Port) DisableModemLines(line ModemLine) error {
	return ioctl.Ioctl(uintptr(p.f), tiocmbic, uintptr(unsafe.Pointer(&line)))
}

func (p *Port) MakeRaw() error {
	attrs, err := p.GetAttr()
	if err != nil {
		return err
	}
	attrs.MakeRaw()
	return p.SetAttr(TCSANOW, attrs)
}

func (attrs *Termios) MakeRaw() {
	attrs.Iflag &= ^(IGNBRK | BRKINT | PARMRK | ISTRIP | INLCR | IGNCR | ICRNL | IXON)
	attrs.Oflag &= ^OPOST
	attrs.Lflag &= ^(ECHO | ECHONL | ICANON | ISIG | IEXTEN)
	attrs.Cflag &= ^(CSIZE | PARENB)
	attrs.Cflag |= CS8
	attrs.Cc[VMIN] = 0
	attrs.Cc[VTIME] = 0
}

func (attrs *Termios2) MakeRaw() {
	attrs.Iflag &= ^(IGNBRK | BRKINT | PARMRK | ISTRIP | INLCR | IGNCR | ICRNL | IXON)
	attrs.Oflag &= ^OPOST
	attrs.Lflag &= ^(ECHO | ECHONL | ICANON | ISIG | IEXTEN)
	attrs.Cflag &= ^(CSIZE | PARENB)
	attrs.Cflag |= CS8
	attrs.Cc[VMIN] = 0
	attrs.Cc[VTIME] = 0
}

func (attrs *Termios) SetSpeed(speed CFlag) {
	attrs.Cflag &= ^CBAUD
	attrs.Cflag |= speed
}

func (attrs *Termios2) SetSpeed(speed CFlag) {
	attrs.Cflag &= ^CBAUD
	attrs.Cflag |= speed
}

func (attrs *Termios2) SetCustomIOSpeed(iSpeed, oSpeed uint32) {
	attrs.Cflag &= ^CBAUD
	attrs.Cflag |= BOTHER
	attrs.ISpeed = iSpeed
	attrs.OSpeed = oSpeed
}
