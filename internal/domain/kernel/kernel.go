// Package kernel implements the process lifecycle: fork, execv, _exit,
// waitpid and getpid, plus the bootstrap path that starts the first
// processes.
//
// Every user thread is a goroutine running a program routine. System calls
// reach the kernel through Trap on the calling goroutine, so a call blocks
// exactly the thread that made it. _exit and a successful execv never
// return to their caller.
package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/loader"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/proc"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/thread"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/trap"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/usr"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/vm"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/tracing"
)

// Kernel owns the process table, the thread scheduler, the page pool and
// the program loader.
type Kernel struct {
	limits Limits

	table  *proc.Table
	sched  *thread.Scheduler
	pool   *vm.Pool
	loader *loader.Loader

	logger  *zap.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer

	bootID   uuid.UUID
	bootedAt time.Time
}

// New boots a kernel that loads programs from store and resolves their entry
// symbols through registry.
func New(store loader.Store, registry *loader.Registry, opts ...Option) (*Kernel, error) {
	k := &Kernel{
		limits:   DefaultLimits(),
		logger:   zap.NewNop(),
		bootID:   uuid.New(),
		bootedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(k)
	}
	if err := k.limits.Validate(); err != nil {
		return nil, err
	}

	k.table = proc.NewTable(proc.Pid(k.limits.PidMin), k.limits.ProcMax)
	k.sched = thread.NewScheduler(k.limits.ThreadMax)
	k.pool = vm.NewPool(k.limits.MemPages)
	k.loader = loader.New(store, registry, k.pool)
	k.logger = k.logger.With(zap.String("boot_id", k.bootID.String()))

	if k.metrics != nil {
		m := k.metrics
		k.sched.Observe(func(n int) { m.SetThreadsLive(n) })
		m.SetPages(0, k.pool.Total())
	}

	k.logger.Info("kernel booted",
		zap.Int32("pid_min", k.limits.PidMin),
		zap.Int("proc_max", k.limits.ProcMax),
		zap.Int("thread_max", k.limits.ThreadMax),
		zap.Int("mem_pages", k.limits.MemPages),
	)
	return k, nil
}

// gate is a thread's way into the kernel.
type gate struct {
	k *Kernel
	t *thread.Thread
}

func (g gate) Trap(tf *trap.Frame) { g.k.Trap(g.t, tf) }

// Spawn starts path as a new parentless process, the way the first user
// process is started at boot.
func (k *Kernel) Spawn(path string, argv []string) (proc.Pid, error) {
	if err := k.checkArgs(path, argv); err != nil {
		return 0, err
	}

	p, err := k.table.Allocate(path, proc.NoParent)
	if err != nil {
		return 0, err
	}
	as, entry, err := k.loader.Load(path)
	if err != nil {
		k.table.Free(p)
		return 0, err
	}
	p.SetAddrSpace(as)

	tf := &trap.Frame{EPC: entry.PC}
	if err := pushArgs(as, entry.StackTop, argv, tf); err != nil {
		k.table.Free(p)
		return 0, err
	}

	err = k.sched.Fork(path, p, func(t *thread.Thread) {
		t.Proc().AddrSpace().Activate()
		k.usermode(t, usr.NewContext(gate{k, t}, tf, as), entry.Routine)
	})
	if err != nil {
		k.table.Free(p)
		return 0, err
	}

	k.created()
	k.logger.Debug("spawn",
		logging.Pid(int32(p.Pid)),
		zap.String("path", path),
		zap.Strings("argv", argv),
		zap.String("image", fmt.Sprintf("%016x", entry.Digest)),
	)
	return p.Pid, nil
}

// usermode runs routine on the calling thread and exits with its result.
func (k *Kernel) usermode(t *thread.Thread, ctx *usr.Context, routine usr.Routine) {
	t.User = ctx
	code := routine(ctx)
	ctx.Exit(code)
}

// Getpid returns the pid of the process t belongs to.
func (k *Kernel) Getpid(t *thread.Thread) proc.Pid {
	return t.Proc().Pid
}

// Processes returns a snapshot of the process table.
func (k *Kernel) Processes() []proc.Info {
	return k.table.Snapshot()
}

// Process returns the snapshot of one pid.
func (k *Kernel) Process(pid proc.Pid) (proc.Info, bool) {
	return k.table.Describe(pid)
}

// Idle blocks until every thread has exited or ctx is done.
func (k *Kernel) Idle(ctx context.Context) error {
	return k.sched.Drain(ctx)
}

// BootID identifies this boot.
func (k *Kernel) BootID() string {
	return k.bootID.String()
}

// Limits returns the limits the kernel was booted with.
func (k *Kernel) Limits() Limits {
	return k.limits
}

// Stats is a summary of resource usage.
type Stats struct {
	BootID     string        `json:"boot_id"`
	Uptime     time.Duration `json:"uptime_ns"`
	Processes  int           `json:"processes"`
	ProcMax    int           `json:"proc_max"`
	Threads    int           `json:"threads"`
	ThreadMax  int           `json:"thread_max"`
	PagesUsed  int           `json:"pages_used"`
	PagesTotal int           `json:"pages_total"`
}

// Stats reports current resource usage.
func (k *Kernel) Stats() Stats {
	return Stats{
		BootID:     k.BootID(),
		Uptime:     time.Since(k.bootedAt),
		Processes:  k.table.Len(),
		ProcMax:    k.table.Cap(),
		Threads:    k.sched.Running(),
		ThreadMax:  k.sched.Max(),
		PagesUsed:  k.pool.Used(),
		PagesTotal: k.pool.Total(),
	}
}

func (k *Kernel) created() {
	if k.metrics == nil {
		return
	}
	k.metrics.IncProcessesCreated()
	k.observe()
}

func (k *Kernel) destroyed(path string, n int) {
	if k.metrics == nil {
		return
	}
	k.metrics.AddProcessesDestroyed(path, n)
	k.observe()
}

func (k *Kernel) observe() {
	k.metrics.SetProcessesLive(k.table.Len())
	k.metrics.SetPages(k.pool.Used(), k.pool.Total())
}

// fatal logs a broken kernel invariant and panics.
func (k *Kernel) fatal(msg string, fields ...zap.Field) {
	k.logger.Error(msg, fields...)
	panic(fmt.Sprintf("kernel: %s", msg))
}
