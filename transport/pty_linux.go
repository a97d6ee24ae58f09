package transport

import (
	"strconv"
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
)

// Winsize is the tty window size, set on the slave half of a PTY pair
// purely so ioctl-sensitive readers don't see a bogus 0x0.
type Winsize struct {
	Row, Col, Xpixel, Ypixel uint16
}

// SetLockPT sets or clears the PTY lock, matching glibc's unlockpt().
func (p *Port) SetLockPT(lock bool) error {
	var v int32
	if lock {
		v = 1
	}
	return ioctl.Ioctl(uintptr(p.f), tiocsptlck, uintptr(unsafe.Pointer(&v)))
}

// GetPTPeer opens the PTY slave corresponding to this master, the way
// glibc's ptsname()+open() pair does it: TIOCGPTN yields the slave number,
// which is opened directly under /dev/pts.
func (p *Port) GetPTPeer(flags int) (*Port, error) {
	var n uint32
	if err := ioctl.Ioctl(uintptr(p.f), tiocgptn, uintptr(unsafe.Pointer(&n))); err != nil {
		return nil, err
	}
	return Open("/dev/pts/"+strconv.Itoa(int(n)), nil)
}

// PTSName reports the /dev/pts/N path of the slave paired with this
// master, for callers (tests, mainly) that want to reopen the slave by
// path instead of holding the *Port GetPTPeer already opened.
func (p *Port) PTSName() (string, error) {
	var n uint32
	if err := ioctl.Ioctl(uintptr(p.f), tiocgptn, uintptr(unsafe.Pointer(&n))); err != nil {
		return "", err
	}
	return "/dev/pts/" + strconv.Itoa(int(n)), nil
}

func (p *Port) SetWinSize(w *Winsize) error {
	return ioctl.Ioctl(uintptr(p.f), tiocswinsz, uintptr(unsafe.Pointer(w)))
}

// OpenPTY finds an available pseudoterminal and returns a master and slave
// port. This is the harness the serial transport tests drive against
// instead of a physical serial device: the slave end behaves exactly like
// a real /dev/ttyUSB0 as far as SerialTransport is concerned, while the
// test writes/reads the master end to play the part of the firmware.
func OpenPTY(termp *Termios, winp *Winsize) (*Port, *Port, error) {
	master, err := Open("/dev/ptmx", nil)
	if err != nil {
		return nil, nil, err
	}
	if err := master.SetLockPT(false); err != nil {
		master.Close()
		return nil, nil, err
	}
	slave, err := master.GetPTPeer(0)
	if err != nil {
		master.Close()
		return nil, nil, err
	}
	if termp != nil {
		if err := slave.SetAttr(TCSANOW, termp); err != nil {
			master.Close()
			slave.Close()
			return nil, nil, err
		}
	}
	if winp != nil {
		if err := slave.SetWinSize(winp); err != nil {
			master.Close()
			slave.Close()
			return nil, nil, err
		}
	}
	return master, slave, nil
}
