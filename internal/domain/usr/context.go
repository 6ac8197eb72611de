// Package usr is the user-mode side of the system call boundary.
//
// A program is a Routine. It runs with a Context that owns the thread's
// register frame and reaches the kernel only through Gate.Trap, the same way
// compiled code would execute a syscall instruction: arguments go in
// registers, anything larger is pushed on the user stack.
//
// A forked child resumes at the instruction after the fork. Routines are
// ordinary Go functions, so the child re-enters its routine from the top
// with a journal of every system call result the parent saw up to that
// point. Calls are answered from the journal until it runs out, and the
// fork itself then returns 0. User memory was copied with the address
// space, so a routine computing only from system call results and user
// memory arrives at the fork in the same state the parent was in.
//
// Everything else the routine did before the fork runs again in the child,
// channel sends and writes to shared Go variables included. Guard such
// effects with Resumed, which stays true until the child reaches its fork.
package usr

import (
	"fmt"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/trap"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

// Routine is a program's main function. Its return value is the exit code.
type Routine func(*Context) int

// Gate enters the kernel with the caller's frame.
type Gate interface {
	Trap(tf *trap.Frame)
}

// Memory is the view of user memory the stubs need.
type Memory interface {
	Load(va uint32, n int) ([]byte, error)
	Store(va uint32, b []byte) error
}

// Record is the outcome of one system call as seen by user code.
type Record struct {
	V0     uint32
	Failed bool
	// Status holds the word waitpid stored through its status pointer.
	Status int32
}

// Journal is what a forked child inherits from its parent's context.
type Journal struct {
	Argc  uint32
	Argv  uint32
	Calls []Record
}

// Context is the user-mode state of one running routine.
type Context struct {
	gate Gate
	tf   *trap.Frame
	mem  Memory

	argc, argv uint32

	journal []Record
	replay  []Record
	resumed bool
}

// NewContext prepares a fresh entry into a program. argc and argv are taken
// from a0 and a1 of tf.
func NewContext(g Gate, tf *trap.Frame, mem Memory) *Context {
	return &Context{
		gate: g,
		tf:   tf,
		mem:  mem,
		argc: tf.R[trap.A0],
		argv: tf.R[trap.A1],
	}
}

// Resume prepares a forked child's context. tf is the child's frame, whose
// v0 is the value the pending fork returns.
func Resume(g Gate, tf *trap.Frame, mem Memory, j Journal) *Context {
	return &Context{
		gate:    g,
		tf:      tf,
		mem:     mem,
		argc:    j.Argc,
		argv:    j.Argv,
		replay:  j.Calls,
		resumed: true,
	}
}

// Journal returns a copy of the calls made so far.
func (c *Context) Journal() Journal {
	calls := make([]Record, len(c.journal))
	copy(calls, c.journal)
	return Journal{Argc: c.argc, Argv: c.argv, Calls: calls}
}

// Frame returns the live register frame.
func (c *Context) Frame() *trap.Frame {
	return c.tf
}

// Memory returns the user memory the context runs in.
func (c *Context) Memory() Memory {
	return c.mem
}

// Resumed reports whether the context is still returning from a fork.
func (c *Context) Resumed() bool {
	return c.resumed
}

// Args decodes the argument vector the program was started with.
func (c *Context) Args() ([]string, error) {
	args := make([]string, 0, c.argc)
	for i := uint32(0); i < c.argc; i++ {
		b, err := c.mem.Load(c.argv+4*i, 4)
		if err != nil {
			return nil, err
		}
		s, err := c.loadString(byteOrder.Uint32(b))
		if err != nil {
			return nil, err
		}
		args = append(args, s)
	}
	return args, nil
}

func (c *Context) loadString(va uint32) (string, error) {
	var out []byte
	for {
		b, err := c.mem.Load(va, 1)
		if err != nil {
			return "", err
		}
		if b[0] == 0 {
			return string(out), nil
		}
		out = append(out, b[0])
		va++
	}
}

// next answers a call from the fork journal. It returns false once the
// context is running live.
func (c *Context) next() (Record, bool) {
	if !c.resumed {
		return Record{}, false
	}
	if len(c.replay) > 0 {
		r := c.replay[0]
		c.replay = c.replay[1:]
		c.journal = append(c.journal, r)
		return r, true
	}
	// The journal is exhausted: this call is the fork the child returns from.
	c.resumed = false
	r := Record{V0: c.tf.R[trap.V0], Failed: c.tf.Failed()}
	c.journal = append(c.journal, r)
	return r, true
}

func (c *Context) trap(num uint32, a0, a1, a2, a3 uint32) Record {
	c.tf.R[trap.V0] = num
	c.tf.R[trap.A0] = a0
	c.tf.R[trap.A1] = a1
	c.tf.R[trap.A2] = a2
	c.tf.R[trap.A3] = a3
	c.gate.Trap(c.tf)
	return Record{V0: c.tf.R[trap.V0], Failed: c.tf.Failed()}
}

func result(r Record) (uint32, error) {
	if r.Failed {
		return 0, abi.Errno(r.V0)
	}
	return r.V0, nil
}

// Syscall issues system call num with up to four register arguments.
func (c *Context) Syscall(num uint32, a0, a1, a2, a3 uint32) (uint32, error) {
	if r, ok := c.next(); ok {
		return result(r)
	}
	r := c.trap(num, a0, a1, a2, a3)
	c.journal = append(c.journal, r)
	return result(r)
}

// Getpid returns the caller's pid.
func (c *Context) Getpid() int32 {
	v, _ := c.Syscall(abi.SysGetpid, 0, 0, 0, 0)
	return int32(v)
}

// Fork creates a child process. The parent gets the child's pid; the child
// re-enters its routine and gets 0 from the same call.
func (c *Context) Fork() (int32, error) {
	v, err := c.Syscall(abi.SysFork, 0, 0, 0, 0)
	return int32(v), err
}

// Exit terminates the process with code. It does not return.
func (c *Context) Exit(code int) {
	c.trap(abi.SysExit, uint32(int32(code)), 0, 0, 0)
	panic("usr: _exit returned")
}

// Execv replaces the running program. It returns only on failure.
func (c *Context) Execv(path string, argv []string) error {
	if r, ok := c.next(); ok {
		_, err := result(r)
		return err
	}

	st := c.stack()
	pathp, err := st.pushString(path)
	if err != nil {
		return err
	}
	ptrs := make([]uint32, 0, len(argv)+1)
	for _, a := range argv {
		p, err := st.pushString(a)
		if err != nil {
			return err
		}
		ptrs = append(ptrs, p)
	}
	ptrs = append(ptrs, 0)
	argvp, err := st.pushWords(ptrs)
	if err != nil {
		return err
	}

	r := st.call(abi.SysExecv, pathp, argvp, 0)
	c.journal = append(c.journal, r)
	_, err = result(r)
	return err
}

// ExecvRaw issues execv with caller-built user pointers.
func (c *Context) ExecvRaw(pathp, argvp uint32) error {
	_, err := c.Syscall(abi.SysExecv, pathp, argvp, 0, 0)
	return err
}

// Waitpid waits for child pid and returns its wait status.
func (c *Context) Waitpid(pid int32, options int) (int32, error) {
	if r, ok := c.next(); ok {
		_, err := result(r)
		return r.Status, err
	}

	st := c.stack()
	statusp, err := st.pushWords([]uint32{0})
	if err != nil {
		return 0, err
	}
	r := st.call(abi.SysWaitpid, uint32(pid), statusp, uint32(int32(options)))
	if !r.Failed {
		b, err := c.mem.Load(statusp, 4)
		if err != nil {
			return 0, err
		}
		r.Status = int32(byteOrder.Uint32(b))
	}
	c.journal = append(c.journal, r)
	if r.Failed {
		return 0, abi.Errno(r.V0)
	}
	if int32(r.V0) != pid {
		return 0, fmt.Errorf("usr: waitpid(%d) returned pid %d", pid, int32(r.V0))
	}
	return r.Status, nil
}

// WaitpidRaw issues waitpid with a caller-supplied status pointer and
// returns the pid the kernel reported.
func (c *Context) WaitpidRaw(pid int32, statusp uint32, options int) (int32, error) {
	v, err := c.Syscall(abi.SysWaitpid, uint32(pid), statusp, uint32(int32(options)), 0)
	return int32(v), err
}
