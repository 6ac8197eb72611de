package kernel

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/thread"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

// Exit terminates the process running t with the given code. It cannot fail
// and does not return.
//
// The address space goes first, then children are reaped or orphaned, then
// the thread detaches. Finally the exit is published: a parentless process
// destroys itself, anyone else stays registered until its parent harvests
// it or exits.
func (k *Kernel) Exit(t *thread.Thread, code int32) {
	p := t.Proc()
	if p == nil {
		k.fatal("exit from a detached thread", zap.String("thread", t.Name))
	}
	status := abi.MakeWaitExit(code)

	as := p.SetAddrSpace(nil)
	if as == nil {
		k.fatal("exiting process has no address space", logging.Pid(int32(p.Pid)))
	}
	as.Deactivate()
	as.Destroy()

	reaped, orphaned := k.table.Disown(p.Pid)
	t.Detach()
	orphan := k.table.Retire(p, status)

	k.destroyed(monitoring.DestroyReaped, reaped)
	if orphan {
		k.destroyed(monitoring.DestroyOrphan, 1)
	} else if k.metrics != nil {
		k.observe()
	}
	k.logger.Debug("exit",
		logging.Pid(int32(p.Pid)),
		zap.Int32("code", code),
		zap.Int("reaped", reaped),
		zap.Int("orphaned", orphaned),
		zap.Bool("self_destroyed", orphan),
	)

	t.User = nil
	t.Exit()
}
