package kernel

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/thread"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/trap"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/usr"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/vm"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

// sysExecv copies execv's arguments out of user memory and runs Execv.
func (k *Kernel) sysExecv(t *thread.Thread, tf *trap.Frame, c *call) error {
	as := t.Proc().AddrSpace()

	path, _, err := vm.CopyInStr(as, tf.R[trap.A0], k.limits.PathMax)
	if err != nil {
		return err
	}
	argv, err := k.copyinArgs(as, tf.R[trap.A1])
	if err != nil {
		return err
	}
	return k.execv(t, path, argv, func() { k.end(c, nil) })
}

// copyinArgs reads a NULL-terminated array of string pointers.
func (k *Kernel) copyinArgs(as *vm.AddressSpace, argvp uint32) ([]string, error) {
	var ptrs []uint32
	for i := 0; ; i++ {
		ptr, err := vm.CopyInWord(as, argvp+uint32(4*i))
		if err != nil {
			return nil, err
		}
		if ptr == 0 {
			break
		}
		if len(ptrs) == k.limits.ArgCountMax {
			return nil, fmt.Errorf("kernel: more than %d arguments: %w", k.limits.ArgCountMax, abi.E2BIG)
		}
		ptrs = append(ptrs, ptr)
	}

	argv := make([]string, 0, len(ptrs))
	total := 0
	for _, ptr := range ptrs {
		s, n, err := vm.CopyInStr(as, ptr, k.limits.ArgBytesMax)
		if err != nil {
			return nil, err
		}
		total += n
		if total > k.limits.ArgBytesMax {
			return nil, fmt.Errorf("kernel: arguments exceed %d bytes: %w", k.limits.ArgBytesMax, abi.E2BIG)
		}
		argv = append(argv, s)
	}
	return argv, nil
}

// checkArgs applies the exec limits to kernel-side arguments.
func (k *Kernel) checkArgs(path string, argv []string) error {
	if len(path)+1 > k.limits.PathMax {
		return fmt.Errorf("kernel: path longer than %d bytes: %w", k.limits.PathMax, abi.ENAMETOOLONG)
	}
	if len(argv) > k.limits.ArgCountMax {
		return fmt.Errorf("kernel: more than %d arguments: %w", k.limits.ArgCountMax, abi.E2BIG)
	}
	total := 0
	for _, a := range argv {
		if len(a)+1 > k.limits.ArgBytesMax {
			return fmt.Errorf("kernel: argument longer than %d bytes: %w", k.limits.ArgBytesMax, abi.ENAMETOOLONG)
		}
		total += len(a) + 1
	}
	if total > k.limits.ArgBytesMax {
		return fmt.Errorf("kernel: arguments exceed %d bytes: %w", k.limits.ArgBytesMax, abi.E2BIG)
	}
	return nil
}

// Execv replaces the program running in t's process with path. On success
// it does not return; on failure the caller's address space, name and
// arguments are untouched.
func (k *Kernel) Execv(t *thread.Thread, path string, argv []string) error {
	return k.execv(t, path, argv, nil)
}

func (k *Kernel) execv(t *thread.Thread, path string, argv []string, commit func()) error {
	if err := k.checkArgs(path, argv); err != nil {
		return err
	}

	as, entry, err := k.loader.Load(path)
	if err != nil {
		return err
	}
	tf := &trap.Frame{EPC: entry.PC}
	if err := pushArgs(as, entry.StackTop, argv, tf); err != nil {
		as.Destroy()
		return err
	}

	// Nothing below can fail.
	p := t.Proc()
	as.Activate()
	old := p.SetAddrSpace(as)
	old.Deactivate()
	old.Destroy()
	p.SetName(path)

	if k.metrics != nil {
		k.observe()
	}
	k.logger.Debug("exec",
		logging.Pid(int32(p.Pid)),
		zap.String("path", path),
		zap.Strings("argv", argv),
		zap.String("image", fmt.Sprintf("%016x", entry.Digest)),
	)
	if commit != nil {
		commit()
	}

	k.usermode(t, usr.NewContext(gate{k, t}, tf, as), entry.Routine)
	panic("kernel: returned to a replaced program")
}

// pushArgs lays argv out at the top of the new stack and points tf at it:
// the strings go highest, each 4-byte aligned, with the NULL-terminated
// pointer array below them at an 8-byte aligned stack pointer. a0 gets argc
// and a1 the array.
func pushArgs(as *vm.AddressSpace, top uint32, argv []string, tf *trap.Frame) error {
	sp := top
	ptrs := make([]uint32, len(argv)+1)
	for i := len(argv) - 1; i >= 0; i-- {
		b := make([]byte, len(argv[i])+1)
		copy(b, argv[i])
		sp -= (uint32(len(b)) + 3) &^ 3
		if err := as.Store(sp, b); err != nil {
			return err
		}
		ptrs[i] = sp
	}

	sp = (sp - uint32(4*len(ptrs))) &^ 7
	arr := make([]byte, 4*len(ptrs))
	for i, p := range ptrs {
		vm.ByteOrder.PutUint32(arr[4*i:], p)
	}
	if err := as.Store(sp, arr); err != nil {
		return err
	}

	tf.R[trap.SP] = sp
	tf.R[trap.A0] = uint32(len(argv))
	tf.R[trap.A1] = sp
	return nil
}
