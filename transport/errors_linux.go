package transport

import "syscall"

// ErrClosed is returned by Port operations after Close, mirroring the
// teacher's error.go sentinel.
var ErrClosed = wrapErr("port already closed", syscall.EBADF)
