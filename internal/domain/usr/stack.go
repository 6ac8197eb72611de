package usr

import (
	"encoding/binary"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/trap"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

var byteOrder = binary.BigEndian

// stack builds a call's in-memory arguments below the current stack pointer
// and restores it once the call returns.
type stack struct {
	c     *Context
	saved uint32
	sp    uint32
}

func (c *Context) stack() *stack {
	sp := c.tf.R[trap.SP]
	return &stack{c: c, saved: sp, sp: sp}
}

func (s *stack) push(b []byte) (uint32, error) {
	n := (uint32(len(b)) + 3) &^ 3
	if n > s.sp {
		return 0, abi.EFAULT
	}
	s.sp -= n
	if err := s.c.mem.Store(s.sp, b); err != nil {
		return 0, err
	}
	return s.sp, nil
}

func (s *stack) pushString(str string) (uint32, error) {
	b := make([]byte, len(str)+1)
	copy(b, str)
	return s.push(b)
}

func (s *stack) pushWords(words []uint32) (uint32, error) {
	b := make([]byte, 4*len(words))
	for i, w := range words {
		byteOrder.PutUint32(b[4*i:], w)
	}
	return s.push(b)
}

func (s *stack) call(num, a0, a1, a2 uint32) Record {
	s.c.tf.R[trap.SP] = s.sp &^ 7
	r := s.c.trap(num, a0, a1, a2, 0)
	s.c.tf.R[trap.SP] = s.saved
	return r
}
