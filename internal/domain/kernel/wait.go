package kernel

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/proc"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/thread"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/vm"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

// Waitpid blocks until child pid of t's process exits, stores its wait
// status at user address statusp unless it is 0, and destroys the child.
//
// Only the parent may wait, and only options 0 is supported. If the status
// cannot be stored the child is left unharvested and EFAULT is returned.
func (k *Kernel) Waitpid(t *thread.Thread, pid proc.Pid, statusp uint32, options int) (proc.Pid, error) {
	if options != 0 {
		return 0, fmt.Errorf("kernel: waitpid options %#x: %w", options, abi.EINVAL)
	}
	p := t.Proc()

	child, err := k.table.Claim(p.Pid, pid)
	if err != nil {
		return 0, err
	}

	status := child.AwaitExit()

	if statusp != 0 {
		if err := vm.CopyOutWord(p.AddrSpace(), statusp, uint32(status)); err != nil {
			k.table.Unclaim(child)
			return 0, err
		}
	}

	k.table.Free(child)
	k.destroyed(monitoring.DestroyHarvested, 1)
	k.logger.Debug("harvest",
		logging.Pid(int32(p.Pid)),
		zap.Int32("child", int32(pid)),
		zap.String("child_id", child.ID.String()),
		zap.Int32("status", status),
	)
	return pid, nil
}
