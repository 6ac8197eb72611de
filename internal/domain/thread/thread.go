// Package thread runs process threads. Each thread is a goroutine bound to
// one process descriptor; the scheduler caps how many may exist at once.
package thread

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/proc"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/usr"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

// Thread is a single kernel thread.
type Thread struct {
	Name string

	// User is the user-mode context the thread is currently running, if any.
	User *usr.Context

	proc  *proc.Proc
	sched *Scheduler
}

// Proc returns the process the thread belongs to, nil once detached.
func (t *Thread) Proc() *proc.Proc {
	return t.proc
}

// Detach unbinds the thread from its process.
func (t *Thread) Detach() {
	if t.proc == nil {
		panic(fmt.Sprintf("thread: %s detached twice", t.Name))
	}
	t.proc.RemoveThread()
	t.proc = nil
}

// Exit terminates the calling thread. It must be called from the thread's
// own goroutine and does not return.
func (t *Thread) Exit() {
	runtime.Goexit()
}

// Scheduler starts threads and tracks how many are running.
type Scheduler struct {
	max int

	mu       sync.Mutex
	running  int
	idle     chan struct{}
	observer func(running int)
}

// NewScheduler creates a scheduler allowing at most max live threads.
func NewScheduler(max int) *Scheduler {
	if max <= 0 {
		panic(fmt.Sprintf("thread: bad thread limit %d", max))
	}
	idle := make(chan struct{})
	close(idle)
	return &Scheduler{max: max, idle: idle}
}

// Observe registers fn to be called with the running count whenever it
// changes. fn runs under the scheduler lock and must not call back into it.
func (s *Scheduler) Observe(fn func(running int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// Fork starts a thread running entry on behalf of p. entry must end by
// calling Exit; returning from it is a fatal error.
func (s *Scheduler) Fork(name string, p *proc.Proc, entry func(*Thread)) error {
	s.mu.Lock()
	if s.running >= s.max {
		s.mu.Unlock()
		return fmt.Errorf("thread: %d threads running: %w", s.max, abi.ENOMEM)
	}
	if s.running == 0 {
		s.idle = make(chan struct{})
	}
	s.running++
	s.notifyLocked()
	s.mu.Unlock()

	p.AddThread()
	t := &Thread{Name: name, proc: p, sched: s}
	go t.run(entry)
	return nil
}

func (t *Thread) run(entry func(*Thread)) {
	defer t.sched.retire()
	entry(t)
	panic(fmt.Sprintf("thread: %s returned from its entry function", t.Name))
}

func (s *Scheduler) retire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running--
	if s.running == 0 {
		close(s.idle)
	}
	s.notifyLocked()
}

func (s *Scheduler) notifyLocked() {
	if s.observer != nil {
		s.observer(s.running)
	}
}

// Running returns the number of live threads.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Max returns the thread limit.
func (s *Scheduler) Max() int {
	return s.max
}

// Drain blocks until no threads are running or ctx is done.
func (s *Scheduler) Drain(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.running == 0 {
			s.mu.Unlock()
			return nil
		}
		idle := s.idle
		s.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
