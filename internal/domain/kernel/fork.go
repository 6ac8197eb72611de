package kernel

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/proc"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/thread"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/trap"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/usr"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/logging"
)

// Fork duplicates the process running t. tf is the parent's frame at the
// trap; the child starts from a copy of it that returns 0 past the trap.
// The child's pid is returned to the parent.
//
// A failure at any step releases everything the earlier steps acquired and
// leaves the parent unchanged.
func (k *Kernel) Fork(t *thread.Thread, tf *trap.Frame) (proc.Pid, error) {
	parent := t.Proc()

	child, err := k.table.Allocate(parent.Name(), parent.Pid)
	if err != nil {
		return 0, err
	}

	as, err := parent.AddrSpace().Duplicate()
	if err != nil {
		k.table.Free(child)
		return 0, err
	}
	child.SetAddrSpace(as)

	routine, ok := k.loader.Registry().Lookup(as.Text)
	if !ok {
		k.fatal("running program has no routine", logging.Pid(int32(parent.Pid)), zap.String("symbol", as.Text))
	}

	ctf := tf.Clone()
	ctf.SetReturn(0)
	ctf.Advance()

	var journal usr.Journal
	if t.User != nil {
		journal = t.User.Journal()
	}

	err = k.sched.Fork(t.Name, child, func(ct *thread.Thread) {
		k.enterForked(ct, ctf, journal, routine)
	})
	if err != nil {
		k.table.Free(child)
		return 0, err
	}

	k.created()
	k.logger.Debug("fork", logging.Pid(int32(parent.Pid)), zap.Int32("child", int32(child.Pid)), zap.String("child_id", child.ID.String()))
	return child.Pid, nil
}

// enterForked is the first thing a forked child's thread runs: it switches
// to the child's address space and resumes the program past the fork.
func (k *Kernel) enterForked(t *thread.Thread, tf *trap.Frame, journal usr.Journal, routine usr.Routine) {
	as := t.Proc().AddrSpace()
	as.Activate()
	k.usermode(t, usr.Resume(gate{k, t}, tf, as, journal), routine)
}
