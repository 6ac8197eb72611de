// Package abi holds the user/kernel contract of the process lifecycle
// subsystem: system call numbers, error numbers, wait-status encoding and
// the default exec marshaling limits.
package abi

// System call numbers.
const (
	SysFork    = 0
	SysVfork   = 1
	SysExecv   = 2
	SysExit    = 3
	SysWaitpid = 4
	SysGetpid  = 5
)

var callNames = map[uint32]string{
	SysFork:    "fork",
	SysVfork:   "vfork",
	SysExecv:   "execv",
	SysExit:    "_exit",
	SysWaitpid: "waitpid",
	SysGetpid:  "getpid",
}

// CallName returns the symbolic name of a system call number.
func CallName(n uint32) string {
	if s, ok := callNames[n]; ok {
		return s
	}
	return "unknown"
}

// Exec marshaling limits.
const (
	ArgCountMax = 64
	ArgBytesMax = 1024
	PathMax     = 1024
)

// Process id range.
const (
	PidMin = 2
	PidMax = 32767
)

// Wait status layout: the low two bits say how the process ended, the rest
// carry the value.
const (
	wExited   = 0
	wSignaled = 1
	wCored    = 2
	wStopped  = 3
)

func wWhat(x int32) int32 { return x & 3 }
func wVal(x int32) int32  { return x >> 2 }

// MakeWaitExit encodes a normal exit. Only the low eight bits of code survive.
func MakeWaitExit(code int32) int32 { return (code&0xff)<<2 | wExited }

// WIfExited reports whether status describes a normal exit.
func WIfExited(status int32) bool { return wWhat(status) == wExited }

// WExitStatus returns the exit code of a normally exited process.
func WExitStatus(status int32) int32 { return wVal(status) }

// WIfSignaled reports whether status describes a signal death. The lifecycle
// core never produces one; it is decoded for completeness.
func WIfSignaled(status int32) bool {
	w := wWhat(status)
	return w == wSignaled || w == wCored
}

// WIfStopped reports whether status describes a stopped process.
func WIfStopped(status int32) bool { return wWhat(status) == wStopped }
