package kernel

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/proc"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/thread"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/trap"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

// call is the bookkeeping for one system call in flight.
type call struct {
	name  string
	pid   proc.Pid
	timer *monitoring.Timer
	span  *tracing.Span
	done  bool
}

func (k *Kernel) begin(p *proc.Proc, name string) *call {
	c := &call{name: name, pid: p.Pid, timer: monitoring.NewTimer(k.metrics, name)}
	if k.tracer != nil {
		c.span = k.tracer.Start(tracing.TraceID(p.ID), name)
		c.span.SetTag("pid", strconv.Itoa(int(p.Pid)))
	}
	return c
}

// end records the call's outcome. Calls that do not return end themselves
// before leaving, so end is idempotent.
func (k *Kernel) end(c *call, err error) {
	if c.done {
		return
	}
	c.done = true

	result := "ok"
	if err != nil {
		result = abi.ErrnoOf(err).Name()
	}
	d := c.timer.Stop(result)
	if c.span != nil {
		c.span.SetTag("result", result)
		c.span.SetError(err)
		c.span.Finish()
		k.tracer.Submit(c.span)
	}
	if ce := k.logger.Check(zap.DebugLevel, "syscall"); ce != nil {
		ce.Write(logging.Pid(int32(c.pid)), logging.Call(c.name), zap.String("result", result), zap.Duration("took", d))
	}
}

// Trap handles a system call made by thread t. The call number is in v0
// and arguments in a0..a3; the result or error number goes back in v0 with
// a3 as the error flag, and EPC moves past the trapping instruction.
func (k *Kernel) Trap(t *thread.Thread, tf *trap.Frame) {
	num := tf.R[trap.V0]
	c := k.begin(t.Proc(), abi.CallName(num))

	var ret uint32
	var err error
	switch num {
	case abi.SysFork:
		var pid proc.Pid
		pid, err = k.Fork(t, tf)
		ret = uint32(pid)
	case abi.SysExecv:
		err = k.sysExecv(t, tf, c)
	case abi.SysExit:
		k.end(c, nil)
		k.Exit(t, int32(tf.R[trap.A0]))
	case abi.SysWaitpid:
		var pid proc.Pid
		pid, err = k.Waitpid(t, proc.Pid(int32(tf.R[trap.A0])), tf.R[trap.A1], int(int32(tf.R[trap.A2])))
		ret = uint32(pid)
	case abi.SysGetpid:
		ret = uint32(k.Getpid(t))
	default:
		err = abi.ENOSYS
	}

	k.end(c, err)
	if err != nil {
		tf.SetError(uint32(abi.ErrnoOf(err)))
	} else {
		tf.SetReturn(ret)
	}
	tf.Advance()
}
