// Package trap defines the saved hardware context captured when a user
// thread enters the kernel.
package trap

import "fmt"

// NumRegs is the size of the general register file.
const NumRegs = 32

// Register indices with a fixed role in the calling convention.
const (
	Zero = 0
	V0   = 2 // call number in, return value or errno out
	V1   = 3
	A0   = 4
	A1   = 5
	A2   = 6
	A3   = 7 // error flag on return
	SP   = 29
	RA   = 31
)

// InsnSize is the width of one instruction; a syscall returns past the trap.
const InsnSize = 4

// Frame is the register snapshot taken at a trap.
type Frame struct {
	R   [NumRegs]uint32
	EPC uint32
}

// Clone returns an independent copy of the frame.
func (f *Frame) Clone() *Frame {
	c := *f
	return &c
}

// SetReturn stores a successful syscall result.
func (f *Frame) SetReturn(v uint32) {
	f.R[V0] = v
	f.R[A3] = 0
}

// SetError stores a failed syscall's error number.
func (f *Frame) SetError(errno uint32) {
	f.R[V0] = errno
	f.R[A3] = 1
}

// Failed reports whether the last syscall set the error flag.
func (f *Frame) Failed() bool { return f.R[A3] != 0 }

// Advance moves EPC past the trapping instruction.
func (f *Frame) Advance() { f.EPC += InsnSize }

func (f *Frame) String() string {
	return fmt.Sprintf("epc=%#08x sp=%#08x v0=%#x a0=%#x a1=%#x a3=%d",
		f.EPC, f.R[SP], f.R[V0], f.R[A0], f.R[A1], f.R[A3])
}
