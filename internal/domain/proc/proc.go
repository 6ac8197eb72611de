package proc

import (
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/vm"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/id"
)

// Pid is a process identifier drawn from the table's bounded range.
type Pid int32

// NoParent marks a process nobody will ever wait for.
const NoParent Pid = -1

// State is a descriptor's exit state.
type State int

const (
	// Running covers everything before exit.
	Running State = iota
	// Exited is terminal: the exit status is recorded and never changes.
	Exited
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Exited:
		return "exited"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Proc is a process descriptor.
type Proc struct {
	// Pid is fixed for the life of the descriptor.
	Pid Pid
	// ID distinguishes this descriptor from later occupants of the same pid.
	ID        id.ProcID
	CreatedAt time.Time

	// Guarded by the table lock.
	parent  Pid
	claimed bool

	// lock guards the fields below it.
	lock      sync.Mutex
	name      string
	as        *vm.AddressSpace
	threads   int
	destroyed bool

	// Exit monitor: waitMu and waitCv guard state, status and exitedAt only.
	waitMu   sync.Mutex
	waitCv   *sync.Cond
	state    State
	status   int32
	exitedAt time.Time
}

func newProc(pid Pid, name string, parent Pid) *Proc {
	p := &Proc{
		Pid:       pid,
		ID:        id.NewProcID(),
		CreatedAt: time.Now(),
		parent:    parent,
		name:      name,
		state:     Running,
	}
	p.waitCv = sync.NewCond(&p.waitMu)
	return p
}

// Name returns the debug name.
func (p *Proc) Name() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.name
}

// SetName replaces the debug name, as exec does.
func (p *Proc) SetName(name string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.name = name
}

// AddrSpace returns the process's address space, nil once it has exited.
func (p *Proc) AddrSpace() *vm.AddressSpace {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.as
}

// SetAddrSpace installs as and returns the previous space.
func (p *Proc) SetAddrSpace(as *vm.AddressSpace) *vm.AddressSpace {
	p.lock.Lock()
	defer p.lock.Unlock()
	old := p.as
	p.as = as
	return old
}

// AddThread records a thread bound to the process.
func (p *Proc) AddThread() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.destroyed {
		panic(fmt.Sprintf("proc: thread attached to destroyed pid %d", p.Pid))
	}
	p.threads++
}

// RemoveThread detaches a thread from the process.
func (p *Proc) RemoveThread() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.threads == 0 {
		panic(fmt.Sprintf("proc: pid %d has no thread to remove", p.Pid))
	}
	p.threads--
}

// Threads returns the number of attached threads.
func (p *Proc) Threads() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.threads
}

// Destroyed reports whether the descriptor has been torn down.
func (p *Proc) Destroyed() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.destroyed
}

// ExitState returns the exit state and, when Exited, the wait status.
func (p *Proc) ExitState() (State, int32) {
	p.waitMu.Lock()
	defer p.waitMu.Unlock()
	return p.state, p.status
}

// AwaitExit blocks until the process has exited and returns its wait status.
func (p *Proc) AwaitExit() int32 {
	p.waitMu.Lock()
	defer p.waitMu.Unlock()
	for p.state == Running {
		p.waitCv.Wait()
	}
	return p.status
}

func (p *Proc) markExited(status int32) {
	p.waitMu.Lock()
	defer p.waitMu.Unlock()
	if p.state == Exited {
		panic(fmt.Sprintf("proc: pid %d exited twice", p.Pid))
	}
	p.state = Exited
	p.status = status
	p.exitedAt = time.Now()
	p.waitCv.Signal()
}

func (p *Proc) exited() bool {
	p.waitMu.Lock()
	defer p.waitMu.Unlock()
	return p.state == Exited
}

// destroy releases what the descriptor still owns. It runs exactly once.
func (p *Proc) destroy() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.destroyed {
		panic(fmt.Sprintf("proc: pid %d destroyed twice", p.Pid))
	}
	if p.threads != 0 {
		panic(fmt.Sprintf("proc: destroying pid %d with %d threads", p.Pid, p.threads))
	}
	if p.as != nil {
		p.as.Destroy()
		p.as = nil
	}
	p.destroyed = true
}
