// Package bin provides the built-in user programs.
package bin

import (
	"fmt"
	"strconv"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/loader"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/usr"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

// Program is a built-in program and the manifest it is installed with.
type Program struct {
	Path    string
	Symbol  string
	Routine usr.Routine
	// Layout overrides the default segment sizes.
	Layout loader.Manifest
}

// Programs returns every built-in program.
func Programs() []Program {
	return []Program{
		{Path: "/sbin/init", Symbol: "init", Routine: Init},
		{Path: "/bin/true", Symbol: "true", Routine: True},
		{Path: "/bin/false", Symbol: "false", Routine: False},
		{Path: "/bin/exit", Symbol: "exit", Routine: Exit},
		{Path: "/bin/forktree", Symbol: "forktree", Routine: ForkTree, Layout: loader.Manifest{Heap: 1}},
	}
}

// Register adds the built-in routines to reg.
func Register(reg *loader.Registry) {
	for _, p := range Programs() {
		reg.Register(p.Symbol, p.Routine)
	}
}

// Install writes a manifest for every built-in program into store.
func Install(store *loader.MemStore) error {
	for _, p := range Programs() {
		m := p.Layout
		m.Format = loader.FormatTag
		m.Entry = p.Symbol
		data, err := loader.Encode(&m, loader.FormatYAML, false)
		if err != nil {
			return fmt.Errorf("bin: %s: %w", p.Path, err)
		}
		store.Install(p.Path, loader.FormatYAML, data)
	}
	return nil
}

// True exits 0.
func True(*usr.Context) int { return 0 }

// False exits 1.
func False(*usr.Context) int { return 1 }

// Exit exits with the code given as its first argument.
func Exit(c *usr.Context) int {
	args, err := c.Args()
	if err != nil || len(args) < 2 {
		return 255
	}
	code, err := strconv.Atoi(args[1])
	if err != nil {
		return 255
	}
	return code
}

// Init runs each argument as a program, one after another, and exits with
// the number of programs that failed.
func Init(c *usr.Context) int {
	args, err := c.Args()
	if err != nil {
		return 255
	}

	failed := 0
	for _, path := range args[1:] {
		pid, err := c.Fork()
		if err != nil {
			failed++
			continue
		}
		if pid == 0 {
			if err := c.Execv(path, []string{path}); err != nil {
				return 127
			}
		}
		status, err := c.Waitpid(pid, 0)
		if err != nil || !abi.WIfExited(status) || abi.WExitStatus(status) != 0 {
			failed++
		}
	}
	return failed
}

// ForkTree builds a binary tree of processes of the depth given as its first
// argument (default 2). Every process exits with the size of its subtree.
func ForkTree(c *usr.Context) int {
	depth := 2
	if args, err := c.Args(); err == nil && len(args) > 1 {
		if d, err := strconv.Atoi(args[1]); err == nil {
			depth = d
		}
	}

	for level := 0; level < depth; level++ {
		left, err := c.Fork()
		if err != nil {
			return 1
		}
		if left == 0 {
			continue
		}
		right, err := c.Fork()
		if err != nil {
			_, _ = c.Waitpid(left, 0)
			return 1
		}
		if right == 0 {
			continue
		}

		size := 1
		for _, pid := range []int32{left, right} {
			status, err := c.Waitpid(pid, 0)
			if err != nil {
				return 1
			}
			size += int(abi.WExitStatus(status))
		}
		return size
	}
	return 1
}
