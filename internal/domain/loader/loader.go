// Package loader turns program paths into ready-to-run address spaces.
//
// Programs are described by small manifests fetched from a Store. A
// manifest names an entry symbol, which the Registry resolves to the Go
// routine that implements the program, and sizes the segments of the
// address space built for it.
package loader

import (
	"fmt"
	"sort"
	"sync"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/usr"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/vm"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

// Registry maps entry symbols to routines.
type Registry struct {
	mu       sync.RWMutex
	routines map[string]usr.Routine
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{routines: make(map[string]usr.Routine)}
}

// Register binds symbol to r. Registering a symbol twice panics.
func (r *Registry) Register(symbol string, fn usr.Routine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.routines[symbol]; dup {
		panic(fmt.Sprintf("loader: symbol %q registered twice", symbol))
	}
	r.routines[symbol] = fn
}

// Lookup resolves symbol.
func (r *Registry) Lookup(symbol string) (usr.Routine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.routines[symbol]
	return fn, ok
}

// Symbols lists the registered symbols.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.routines))
	for s := range r.routines {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Entry is where a loaded program starts.
type Entry struct {
	PC       uint32
	StackTop uint32
	Routine  usr.Routine
	// Digest is the image digest, for logs.
	Digest uint64
}

// Loader builds address spaces for programs.
type Loader struct {
	store    Store
	registry *Registry
	pool     *vm.Pool
}

// New creates a loader reading from store and drawing pages from pool.
func New(store Store, registry *Registry, pool *vm.Pool) *Loader {
	return &Loader{store: store, registry: registry, pool: pool}
}

// Registry returns the symbol registry.
func (l *Loader) Registry() *Registry {
	return l.registry
}

// Pool returns the page pool address spaces are charged to.
func (l *Loader) Pool() *vm.Pool {
	return l.pool
}

// Load creates a fresh address space holding the program at path.
// It fails with ENOENT for an unknown path, ENOEXEC for a bad manifest or
// unresolvable entry and ENOMEM when the pool cannot back the segments.
func (l *Loader) Load(path string) (*vm.AddressSpace, Entry, error) {
	img, err := l.store.Open(path)
	if err != nil {
		return nil, Entry{}, err
	}
	m, err := Decode(img)
	if err != nil {
		return nil, Entry{}, err
	}
	routine, ok := l.registry.Lookup(m.Entry)
	if !ok {
		return nil, Entry{}, fmt.Errorf("loader: %s: unknown entry %q: %w", path, m.Entry, abi.ENOEXEC)
	}

	as := vm.New(l.pool)
	if err := define(as, m); err != nil {
		as.Destroy()
		return nil, Entry{}, fmt.Errorf("loader: %s: %w", path, err)
	}
	as.Text = m.Entry
	return as, Entry{PC: vm.TextBase, StackTop: vm.UserStack, Routine: routine, Digest: img.Digest()}, nil
}

func define(as *vm.AddressSpace, m *Manifest) error {
	base := uint32(vm.TextBase)
	if err := as.DefineRegion("text", base, m.Text); err != nil {
		return err
	}
	base += uint32(m.Text) * vm.PageSize

	if m.Data > 0 {
		if err := as.DefineRegion("data", base, m.Data); err != nil {
			return err
		}
		if m.InitData != "" {
			if err := as.Store(base, []byte(m.InitData)); err != nil {
				return err
			}
		}
		base += uint32(m.Data) * vm.PageSize
	}
	if m.Heap > 0 {
		if err := as.DefineRegion("heap", base, m.Heap); err != nil {
			return err
		}
	}
	stack := uint32(vm.UserStack) - uint32(m.Stack)*vm.PageSize
	return as.DefineRegion("stack", stack, m.Stack)
}
