package kernel

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/bin"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/loader"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/proc"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/trap"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/usr"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/vm"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

type harness struct {
	k     *Kernel
	store *loader.MemStore
	reg   *loader.Registry
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	store := loader.NewMemStore()
	reg := loader.NewRegistry()
	bin.Register(reg)
	require.NoError(t, bin.Install(store))

	k, err := New(store, reg, opts...)
	require.NoError(t, err)
	return &harness{k: k, store: store, reg: reg}
}

func limits(mutate func(*Limits)) Option {
	l := DefaultLimits()
	mutate(&l)
	return WithLimits(l)
}

// program installs fn as the program at path.
func (h *harness) program(t *testing.T, path string, fn usr.Routine) {
	t.Helper()
	h.reg.Register(path, fn)
	data, err := loader.Encode(&loader.Manifest{Format: loader.FormatTag, Entry: path}, loader.FormatYAML, false)
	require.NoError(t, err)
	h.store.Install(path, loader.FormatYAML, data)
}

func (h *harness) spawn(t *testing.T, path string, argv ...string) proc.Pid {
	t.Helper()
	pid, err := h.k.Spawn(path, append([]string{path}, argv...))
	require.NoError(t, err)
	return pid
}

// idle waits for every thread to finish and checks that nothing leaked.
func (h *harness) idle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.k.Idle(ctx))
	assert.Equal(t, 0, h.k.table.Len(), "process table back to empty")
	assert.Equal(t, 0, h.k.pool.Used(), "every page returned")
}

func TestSpawnAndExit(t *testing.T) {
	h := newHarness(t)
	got := make(chan int32, 1)
	h.program(t, "/t/pid", func(c *usr.Context) int {
		got <- c.Getpid()
		return 0
	})

	pid := h.spawn(t, "/t/pid")
	assert.Equal(t, proc.Pid(abi.PidMin), pid)
	assert.Equal(t, int32(pid), <-got)
	h.idle(t)
}

func TestSpawnErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.k.Spawn("/no/such", nil)
	assert.ErrorIs(t, err, abi.ENOENT)

	_, err = h.k.Spawn("/bin/true", make([]string, abi.ArgCountMax+1))
	assert.ErrorIs(t, err, abi.E2BIG)

	assert.Equal(t, 0, h.k.table.Len())
}

func TestForkReturnsTwice(t *testing.T) {
	h := newHarness(t)

	type report struct {
		pid   int32
		self  int32
		frame trap.Frame
	}
	reports := make(chan report, 2)
	h.program(t, "/t/fork", func(c *usr.Context) int {
		pid, err := c.Fork()
		if err != nil {
			return 1
		}
		frame := *c.Frame()
		reports <- report{pid: pid, self: c.Getpid(), frame: frame}
		if pid != 0 {
			if _, err := c.Waitpid(pid, 0); err != nil {
				return 2
			}
		}
		return 0
	})

	parentPid := h.spawn(t, "/t/fork")
	h.idle(t)
	close(reports)

	var parent, child report
	for r := range reports {
		if r.pid == 0 {
			child = r
		} else {
			parent = r
		}
	}
	require.NotZero(t, parent.pid, "parent reported")
	assert.Equal(t, int32(parentPid), parent.self)
	assert.Equal(t, parent.pid, child.self, "fork returns the child's pid to the parent")
	assert.NotEqual(t, parent.self, child.self)

	// Both sides leave the trap with the same frame apart from v0.
	pf, cf := parent.frame, child.frame
	assert.Equal(t, uint32(parent.pid), pf.R[trap.V0])
	assert.Equal(t, uint32(0), cf.R[trap.V0])
	pf.R[trap.V0], cf.R[trap.V0] = 0, 0
	assert.Equal(t, pf, cf)
}

func TestWaitCollectsExitStatus(t *testing.T) {
	h := newHarness(t)
	type result struct {
		status int32
		err    error
		again  error
	}
	results := make(chan result, 1)
	h.program(t, "/t/wait", func(c *usr.Context) int {
		pid, err := c.Fork()
		if err != nil {
			return 1
		}
		if pid == 0 {
			return 42
		}
		st, err := c.Waitpid(pid, 0)
		_, again := c.Waitpid(pid, 0)
		results <- result{st, err, again}
		return 0
	})

	h.spawn(t, "/t/wait")
	r := <-results
	require.NoError(t, r.err)
	assert.True(t, abi.WIfExited(r.status))
	assert.Equal(t, int32(42), abi.WExitStatus(r.status))
	assert.ErrorIs(t, r.again, abi.ESRCH, "a harvested child is gone")
	h.idle(t)
}

func TestWaitErrors(t *testing.T) {
	h := newHarness(t)
	type result struct {
		self, notMine, options, parent error
	}
	results := make(chan result, 1)
	childErr := make(chan error, 1)
	h.program(t, "/t/waiterr", func(c *usr.Context) int {
		me := c.Getpid()
		pid, err := c.Fork()
		if err != nil {
			return 1
		}
		if pid == 0 {
			_, err := c.Waitpid(me, 0)
			childErr <- err
			return 0
		}
		var r result
		_, r.self = c.Waitpid(me, 0)
		_, r.notMine = c.Waitpid(pid+1000, 0)
		_, r.options = c.Waitpid(pid, 1)
		_, r.parent = c.Waitpid(pid, 0)
		results <- r
		return 0
	})

	h.spawn(t, "/t/waiterr")
	r := <-results
	assert.ErrorIs(t, r.self, abi.ESRCH)
	assert.ErrorIs(t, r.notMine, abi.ESRCH)
	assert.ErrorIs(t, r.options, abi.EINVAL)
	assert.NoError(t, r.parent)
	assert.ErrorIs(t, <-childErr, abi.ESRCH, "a child cannot wait for its parent")
	h.idle(t)
}

func TestWaitStatusPointer(t *testing.T) {
	h := newHarness(t)
	type result struct {
		bad     error
		nullPid int32
		nullErr error
	}
	results := make(chan result, 1)
	h.program(t, "/t/waitptr", func(c *usr.Context) int {
		pid, err := c.Fork()
		if err != nil {
			return 1
		}
		if pid == 0 {
			return 3
		}
		var r result
		_, r.bad = c.WaitpidRaw(pid, 0x10, 0)
		r.nullPid, r.nullErr = c.WaitpidRaw(pid, 0, 0)
		results <- r
		return 0
	})

	h.spawn(t, "/t/waitptr")
	r := <-results
	assert.ErrorIs(t, r.bad, abi.EFAULT)
	require.NoError(t, r.nullErr, "a failed copyout leaves the child to be collected again")
	assert.NotZero(t, r.nullPid)
	h.idle(t)
}

func TestManyChildrenWaitedInAnyOrder(t *testing.T) {
	const n = 8
	h := newHarness(t)
	codes := make(chan []int32, 1)
	h.program(t, "/t/many", func(c *usr.Context) int {
		var pids []int32
		for i := 0; i < n; i++ {
			pid, err := c.Fork()
			if err != nil {
				return 1
			}
			if pid == 0 {
				return 10 + i
			}
			pids = append(pids, pid)
		}
		var got []int32
		for i := len(pids) - 1; i >= 0; i-- {
			st, err := c.Waitpid(pids[i], 0)
			if err != nil {
				return 2
			}
			got = append(got, abi.WExitStatus(st))
		}
		codes <- got
		return 0
	})

	h.spawn(t, "/t/many")
	got := <-codes
	require.Len(t, got, n)
	for i, code := range got {
		assert.Equal(t, int32(10+n-1-i), code)
	}
	h.idle(t)
}

func TestOrphanCleansUpAfterItself(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	childPid := make(chan int32, 1)
	h.program(t, "/t/orphan", func(c *usr.Context) int {
		pid, err := c.Fork()
		if err != nil {
			return 1
		}
		if pid == 0 {
			<-release
			return 0
		}
		childPid <- pid
		return 0
	})

	h.spawn(t, "/t/orphan")
	pid := proc.Pid(<-childPid)

	require.Eventually(t, func() bool { return h.k.table.Len() == 1 }, time.Second, time.Millisecond,
		"the parent is destroyed when it exits")
	info, ok := h.k.Process(pid)
	require.True(t, ok)
	assert.Equal(t, proc.NoParent, info.Parent)

	close(release)
	h.idle(t)
}

func TestParentExitReapsExitedChild(t *testing.T) {
	h := newHarness(t)
	h.program(t, "/t/reap", func(c *usr.Context) int {
		pid, err := c.Fork()
		if err != nil {
			return 1
		}
		if pid == 0 {
			return 5
		}
		for {
			info, ok := h.k.Process(proc.Pid(pid))
			if !ok || info.State == proc.Exited.String() {
				break
			}
			time.Sleep(time.Millisecond)
		}
		return 0
	})

	h.spawn(t, "/t/reap")
	h.idle(t)
}

func TestConcurrentParentAndChildExits(t *testing.T) {
	h := newHarness(t)
	h.program(t, "/t/race", func(c *usr.Context) int {
		_, _ = c.Fork()
		return 0
	})
	for i := 0; i < 50; i++ {
		h.spawn(t, "/t/race")
	}
	h.idle(t)
}

func TestForkChildRepeatsPreForkCode(t *testing.T) {
	h := newHarness(t)
	var (
		mu                 sync.Mutex
		unguarded, guarded int
	)
	h.program(t, "/t/effects", func(c *usr.Context) int {
		mu.Lock()
		unguarded++
		if !c.Resumed() {
			guarded++
		}
		mu.Unlock()

		pid, err := c.Fork()
		if err != nil {
			return 1
		}
		if pid != 0 {
			_, _ = c.Waitpid(pid, 0)
		}
		return 0
	})

	h.spawn(t, "/t/effects")
	h.idle(t)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, unguarded, "the child re-runs code before its fork")
	assert.Equal(t, 1, guarded)
}

func TestForkProcessLimit(t *testing.T) {
	h := newHarness(t, limits(func(l *Limits) { l.ProcMax = 4 }))
	type result struct {
		err      error
		children int
		live     int
		refork   error
	}
	results := make(chan result, 1)

	// Each child blocks on its own gate until the parent releases it.
	var mu sync.Mutex
	gates := make(map[int32]chan struct{})
	gate := func(pid int32) chan struct{} {
		mu.Lock()
		defer mu.Unlock()
		if gates[pid] == nil {
			gates[pid] = make(chan struct{})
		}
		return gates[pid]
	}
	forget := func(pid int32) {
		mu.Lock()
		defer mu.Unlock()
		delete(gates, pid)
	}

	h.program(t, "/t/fill", func(c *usr.Context) int {
		var (
			pids []int32
			r    result
		)
		for {
			pid, err := c.Fork()
			if err != nil {
				r.err, r.children = err, len(pids)
				break
			}
			if pid == 0 {
				<-gate(c.Getpid())
				return 0
			}
			pids = append(pids, pid)
		}

		// A child forked below replays this far; only the parent may
		// release the first child.
		if !c.Resumed() {
			r.live = h.k.table.Len()
			close(gate(pids[0]))
		}
		if _, err := c.Waitpid(pids[0], 0); err != nil {
			return 2
		}
		if !c.Resumed() {
			forget(pids[0])
		}

		pid, err := c.Fork()
		r.refork = err
		if err == nil {
			if pid == 0 {
				<-gate(c.Getpid())
				return 0
			}
			pids = append(pids, pid)
		}
		for _, pid := range pids[1:] {
			close(gate(pid))
			_, _ = c.Waitpid(pid, 0)
		}
		results <- r
		return 0
	})

	h.spawn(t, "/t/fill")
	r := <-results
	assert.ErrorIs(t, r.err, abi.ENPROC)
	assert.Equal(t, 3, r.children)
	assert.Equal(t, 4, r.live)
	assert.NoError(t, r.refork, "a harvested slot is reusable")
	h.idle(t)
}

func TestForkOutOfMemory(t *testing.T) {
	// Each process needs 1 text and 4 stack pages.
	h := newHarness(t, limits(func(l *Limits) { l.MemPages = 12 }))
	type result struct {
		first, second error
		live          int
	}
	results := make(chan result, 1)
	h.program(t, "/t/oom", func(c *usr.Context) int {
		pid, err := c.Fork()
		if err != nil {
			results <- result{first: err}
			return 1
		}
		if pid == 0 {
			return 0
		}
		_, err2 := c.Fork()
		results <- result{second: err2, live: h.k.table.Len()}
		_, _ = c.Waitpid(pid, 0)
		return 0
	})

	h.spawn(t, "/t/oom")
	r := <-results
	require.NoError(t, r.first)
	assert.ErrorIs(t, r.second, abi.ENOMEM)
	assert.LessOrEqual(t, r.live, 2, "the failed child's slot is released")
	h.idle(t)
}

func TestForkThreadLimit(t *testing.T) {
	h := newHarness(t, limits(func(l *Limits) { l.ThreadMax = 2 }))
	results := make(chan error, 1)
	release := make(chan struct{})
	h.program(t, "/t/threads", func(c *usr.Context) int {
		pid, err := c.Fork()
		if err != nil {
			return 1
		}
		if pid == 0 {
			<-release
			return 0
		}
		_, err = c.Fork()
		results <- err
		close(release)
		_, _ = c.Waitpid(pid, 0)
		return 0
	})

	h.spawn(t, "/t/threads")
	assert.ErrorIs(t, <-results, abi.ENOMEM)
	h.idle(t)
}

func TestExecRunsNewProgram(t *testing.T) {
	h := newHarness(t)
	args := make(chan []string, 1)
	h.program(t, "/t/args", func(c *usr.Context) int {
		a, err := c.Args()
		if err != nil {
			return 255
		}
		args <- a
		return len(a)
	})
	statuses := make(chan int32, 1)
	h.program(t, "/t/exec", func(c *usr.Context) int {
		pid, err := c.Fork()
		if err != nil {
			return 1
		}
		if pid == 0 {
			_ = c.Execv("/t/args", []string{"a", "bb", "", "ccc"})
			return 127
		}
		st, err := c.Waitpid(pid, 0)
		if err != nil {
			return 2
		}
		statuses <- st
		return 0
	})

	h.spawn(t, "/t/exec")
	assert.Equal(t, []string{"a", "bb", "", "ccc"}, <-args)
	assert.Equal(t, int32(4), abi.WExitStatus(<-statuses))
	h.idle(t)
}

func TestExecFailuresLeaveCallerIntact(t *testing.T) {
	h := newHarness(t)
	h.store.Install("/t/badexe", loader.FormatYAML, []byte("format: kexe/1\nentry: missing\n"))

	type result struct {
		name string
		err  error
	}
	results := make(chan []result, 1)
	names := make(chan string, 1)
	pids := make(chan [2]int32, 1)
	pages := make(chan [2]int, 1)
	h.program(t, "/t/execfail", func(c *usr.Context) int {
		self := proc.Pid(c.Getpid())
		before := h.k.pool.Used()
		many := make([]string, abi.ArgCountMax+1)
		var rs []result
		add := func(name string, err error) { rs = append(rs, result{name, err}) }

		add("missing", c.Execv("/no/such", []string{"x"}))
		add("format", c.Execv("/t/badexe", nil))
		add("count", c.Execv("/bin/true", many))
		add("bytes", c.Execv("/bin/true", []string{strings.Repeat("a", 500), strings.Repeat("b", 500), strings.Repeat("c", 500)}))
		add("arg", c.Execv("/bin/true", []string{strings.Repeat("a", abi.ArgBytesMax+10)}))
		add("path", c.Execv("/"+strings.Repeat("p", abi.PathMax), nil))
		add("fault", c.ExecvRaw(0x10, 0))

		pids <- [2]int32{int32(self), c.Getpid()}
		info, _ := h.k.Process(self)
		names <- info.Name
		pages <- [2]int{before, h.k.pool.Used()}
		results <- rs
		return 0
	})

	h.spawn(t, "/t/execfail")
	want := map[string]abi.Errno{
		"missing": abi.ENOENT,
		"format":  abi.ENOEXEC,
		"count":   abi.E2BIG,
		"bytes":   abi.E2BIG,
		"arg":     abi.ENAMETOOLONG,
		"path":    abi.ENAMETOOLONG,
		"fault":   abi.EFAULT,
	}
	for _, r := range <-results {
		assert.ErrorIs(t, r.err, want[r.name], r.name)
	}
	ids := <-pids
	assert.Equal(t, ids[0], ids[1], "getpid unchanged after failed execs")
	assert.Equal(t, "/t/execfail", <-names)
	p := <-pages
	assert.Equal(t, p[0], p[1], "failed execs release what they loaded")
	h.idle(t)
}

func TestExecRenamesProcess(t *testing.T) {
	h := newHarness(t)
	names := make(chan string, 1)
	h.program(t, "/t/name", func(c *usr.Context) int {
		info, _ := h.k.Process(proc.Pid(c.Getpid()))
		names <- info.Name
		return 0
	})
	h.program(t, "/t/rename", func(c *usr.Context) int {
		_ = c.Execv("/t/name", nil)
		return 1
	})

	h.spawn(t, "/t/rename")
	assert.Equal(t, "/t/name", <-names)
	h.idle(t)
}

func TestUnknownSyscall(t *testing.T) {
	h := newHarness(t)
	errs := make(chan error, 2)
	h.program(t, "/t/nosys", func(c *usr.Context) int {
		_, err := c.Syscall(77, 0, 0, 0, 0)
		errs <- err
		_, err = c.Syscall(abi.SysVfork, 0, 0, 0, 0)
		errs <- err
		return 0
	})

	h.spawn(t, "/t/nosys")
	assert.ErrorIs(t, <-errs, abi.ENOSYS)
	assert.ErrorIs(t, <-errs, abi.ENOSYS)
	h.idle(t)
}

// runner forks, execs path with argv in the child and reports the child's
// wait status.
func (h *harness) runner(t *testing.T, path string, argv []string) <-chan int32 {
	out := make(chan int32, 1)
	h.program(t, "/t/run"+path, func(c *usr.Context) int {
		pid, err := c.Fork()
		if err != nil {
			return 1
		}
		if pid == 0 {
			_ = c.Execv(path, argv)
			return 127
		}
		st, err := c.Waitpid(pid, 0)
		if err != nil {
			return 2
		}
		out <- st
		return 0
	})
	h.spawn(t, "/t/run"+path)
	return out
}

func TestBuiltinPrograms(t *testing.T) {
	h := newHarness(t, limits(func(l *Limits) { l.ProcMax = 32 }))

	assert.Equal(t, int32(0), abi.WExitStatus(<-h.runner(t, "/bin/true", []string{"true"})))
	assert.Equal(t, int32(1), abi.WExitStatus(<-h.runner(t, "/bin/false", []string{"false"})))
	assert.Equal(t, int32(9), abi.WExitStatus(<-h.runner(t, "/bin/exit", []string{"exit", "9"})))
	assert.Equal(t, int32(15), abi.WExitStatus(<-h.runner(t, "/bin/forktree", []string{"forktree", "3"})))
	assert.Equal(t, int32(2), abi.WExitStatus(<-h.runner(t, "/sbin/init",
		[]string{"init", "/bin/true", "/bin/false", "/no/such"})))
	h.idle(t)
}

func TestExitCodeKeepsLowByte(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, int32(255), abi.WExitStatus(<-h.runner(t, "/bin/exit", []string{"exit", "-1"})))

	codes := []int{-1, 256, 1 << 29}
	results := make(chan []int32, 1)
	h.program(t, "/t/codes", func(c *usr.Context) int {
		// Children replay the loop up to their own fork, so only the
		// parent reaches the send.
		var got []int32
		for _, code := range codes {
			pid, err := c.Fork()
			if err != nil {
				return 1
			}
			if pid == 0 {
				return code
			}
			st, err := c.Waitpid(pid, 0)
			if err != nil {
				return 2
			}
			got = append(got, st)
		}
		results <- got
		return 0
	})
	h.spawn(t, "/t/codes")

	got := <-results
	require.Len(t, got, len(codes))
	for i, want := range []int32{255, 0, 0} {
		st := got[i]
		assert.True(t, abi.WIfExited(st))
		assert.GreaterOrEqual(t, st, int32(0))
		assert.Equal(t, want, abi.WExitStatus(st))
	}
	h.idle(t)
}

func TestMetricsAndTraces(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	tracer := tracing.New("kernel", nil, 64)
	h := newHarness(t, WithMetrics(metrics), WithTracer(tracer))

	<-h.runner(t, "/bin/true", []string{"true"})
	h.idle(t)
	tracer.Close()

	s := metrics.GetSnapshot()
	assert.Equal(t, int64(2), s.ProcessesCreated)
	assert.Equal(t, int64(1), s.ProcessesDestroyed[monitoring.DestroyHarvested])
	assert.Equal(t, int64(1), s.ProcessesDestroyed[monitoring.DestroyOrphan])
	assert.Equal(t, int64(0), s.ProcessesLive)
	assert.Equal(t, int64(0), s.ThreadsLive)
	assert.Equal(t, int64(0), s.PagesUsed)
	assert.Equal(t, int64(1), s.Syscalls["fork"])
	assert.Equal(t, int64(1), s.Syscalls["execv"])
	assert.Equal(t, int64(1), s.Syscalls["waitpid"])
	assert.Equal(t, int64(2), s.Syscalls["_exit"])

	names := map[string]int{}
	for _, span := range tracer.Recent(0) {
		names[span.Name]++
		assert.Equal(t, "ok", span.Tags["result"])
	}
	assert.Equal(t, map[string]int{"fork": 1, "execv": 1, "waitpid": 1, "_exit": 2}, names)
}

func TestLimitsValidate(t *testing.T) {
	bad := []func(*Limits){
		func(l *Limits) { l.PidMin = 0 },
		func(l *Limits) { l.ProcMax = 0 },
		func(l *Limits) { l.ProcMax = abi.PidMax },
		func(l *Limits) { l.ThreadMax = 0 },
		func(l *Limits) { l.MemPages = -1 },
		func(l *Limits) { l.PathMax = 0 },
	}
	for i, mutate := range bad {
		l := DefaultLimits()
		mutate(&l)
		assert.Error(t, l.Validate(), "case %d", i)
	}
	assert.NoError(t, DefaultLimits().Validate())

	_, err := New(loader.NewMemStore(), loader.NewRegistry(), limits(func(l *Limits) { l.ThreadMax = 0 }))
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	s := h.k.Stats()
	assert.Equal(t, h.k.BootID(), s.BootID)
	assert.Equal(t, DefaultLimits().ProcMax, s.ProcMax)
	assert.Equal(t, 0, s.Processes)
	assert.Equal(t, DefaultLimits().MemPages, s.PagesTotal)
}

func TestPushArgsLayout(t *testing.T) {
	as := vm.New(vm.NewPool(4))
	require.NoError(t, as.DefineRegion("stack", vm.UserStack-vm.PageSize, 1))

	var tf trap.Frame
	argv := []string{"prog", "a", "three"}
	require.NoError(t, pushArgs(as, vm.UserStack, argv, &tf))

	sp := tf.R[trap.SP]
	assert.Zero(t, sp%8, "stack pointer is 8-byte aligned")
	assert.Equal(t, uint32(len(argv)), tf.R[trap.A0])
	assert.Equal(t, sp, tf.R[trap.A1])

	for i, want := range argv {
		ptr, err := vm.CopyInWord(as, sp+uint32(4*i))
		require.NoError(t, err)
		assert.Zero(t, ptr%4)
		assert.Greater(t, ptr, sp)
		got, _, err := vm.CopyInStr(as, ptr, abi.ArgBytesMax)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	end, err := vm.CopyInWord(as, sp+uint32(4*len(argv)))
	require.NoError(t, err)
	assert.Zero(t, end, "argv is NULL-terminated")

	assert.Error(t, pushArgs(as, vm.UserStack, []string{strings.Repeat("x", vm.PageSize)}, &tf),
		"arguments larger than the stack do not fit")
}
