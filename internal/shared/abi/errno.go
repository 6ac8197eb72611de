package abi

import (
	"errors"
	"fmt"
)

// Errno is a kernel error number as returned to user mode in v0.
type Errno int32

const (
	ENOSYS       Errno = 1  // No such system call
	EUNIMP       Errno = 2  // Unimplemented feature
	ENOMEM       Errno = 3  // Out of memory
	EAGAIN       Errno = 4  // Operation would block
	EINTR        Errno = 5  // Interrupted system call
	EFAULT       Errno = 6  // Bad memory reference
	ENAMETOOLONG Errno = 7  // String too long
	EINVAL       Errno = 8  // Invalid argument
	EPERM        Errno = 9  // Operation not permitted
	EACCES       Errno = 10 // Permission denied
	EMPROC       Errno = 11 // Too many processes
	ENPROC       Errno = 12 // Too many processes in system
	ENOEXEC      Errno = 13 // File is not executable
	E2BIG        Errno = 14 // Argument list too long
	ESRCH        Errno = 15 // No such process
	ECHILD       Errno = 16 // No child processes
	ENOTDIR      Errno = 17 // Not a directory
	EISDIR       Errno = 18 // Is a directory
	ENOENT       Errno = 19 // No such file or directory
)

var errnoNames = map[Errno]string{
	ENOSYS:       "no such system call",
	EUNIMP:       "unimplemented feature",
	ENOMEM:       "out of memory",
	EAGAIN:       "operation would block",
	EINTR:        "interrupted system call",
	EFAULT:       "bad memory reference",
	ENAMETOOLONG: "string too long",
	EINVAL:       "invalid argument",
	EPERM:        "operation not permitted",
	EACCES:       "permission denied",
	EMPROC:       "too many processes",
	ENPROC:       "too many processes in system",
	ENOEXEC:      "file is not executable",
	E2BIG:        "argument list too long",
	ESRCH:        "no such process",
	ECHILD:       "no child processes",
	ENOTDIR:      "not a directory",
	EISDIR:       "is a directory",
	ENOENT:       "no such file or directory",
}

var errnoSymbols = map[Errno]string{
	ENOSYS: "ENOSYS", EUNIMP: "EUNIMP", ENOMEM: "ENOMEM", EAGAIN: "EAGAIN",
	EINTR: "EINTR", EFAULT: "EFAULT", ENAMETOOLONG: "ENAMETOOLONG", EINVAL: "EINVAL",
	EPERM: "EPERM", EACCES: "EACCES", EMPROC: "EMPROC", ENPROC: "ENPROC",
	ENOEXEC: "ENOEXEC", E2BIG: "E2BIG", ESRCH: "ESRCH", ECHILD: "ECHILD",
	ENOTDIR: "ENOTDIR", EISDIR: "EISDIR", ENOENT: "ENOENT",
}

// Name returns the symbolic constant name, e.g. "ESRCH".
func (e Errno) Name() string {
	if s, ok := errnoSymbols[e]; ok {
		return s
	}
	return fmt.Sprintf("E%d", int32(e))
}

func (e Errno) Error() string {
	if s, ok := errnoNames[e]; ok {
		return s
	}
	return fmt.Sprintf("errno %d", int32(e))
}

// Aliases for the lifecycle error taxonomy.
var (
	ErrResourceExhausted = ENPROC
	ErrNoMemory          = ENOMEM
	ErrNoSuchProcess     = ESRCH
	ErrInvalidArgument   = EINVAL
	ErrTooManyArguments  = E2BIG
	ErrArgumentTooLong   = ENAMETOOLONG
	ErrNoSuchFile        = ENOENT
	ErrExecFormat        = ENOEXEC
	ErrBadAddress        = EFAULT
)

// ErrnoOf extracts the Errno carried by err. Errors that carry none are
// reported as EINVAL.
func ErrnoOf(err error) Errno {
	if err == nil {
		return 0
	}
	var e Errno
	if errors.As(err, &e) {
		return e
	}
	return EINVAL
}
