// Package vm implements the address-space collaborator of the lifecycle
// core: a set of byte-backed segments charged against a shared page pool.
package vm

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

// Layout of a user address space.
const (
	PageSize  = 4096
	TextBase  = 0x00400000
	UserStack = 0x80000000
)

// ByteOrder is the byte order of user memory.
var ByteOrder = binary.BigEndian

// Segment is one contiguous mapped region.
type Segment struct {
	Name string
	Base uint32
	Data []byte
}

// End returns the first address past the segment.
func (s *Segment) End() uint32 {
	return s.Base + uint32(len(s.Data))
}

func (s *Segment) pages() int {
	return len(s.Data) / PageSize
}

// AddressSpace is a user address space. It is owned by exactly one process
// descriptor and is never shared.
type AddressSpace struct {
	pool *Pool

	mu        sync.Mutex
	segs      []*Segment
	active    int
	destroyed bool

	// Text names the program symbol this space was loaded from.
	Text string
}

// New creates an empty address space drawing pages from pool.
func New(pool *Pool) *AddressSpace {
	return &AddressSpace{pool: pool}
}

// DefineRegion maps a zero-filled region of the given number of pages.
func (as *AddressSpace) DefineRegion(name string, base uint32, pages int) error {
	if pages <= 0 || base%PageSize != 0 {
		return fmt.Errorf("vm: region %s at %#x (%d pages): %w", name, base, pages, abi.EINVAL)
	}
	size := uint64(pages) * PageSize
	if uint64(base)+size > UserStack {
		return fmt.Errorf("vm: region %s overflows user space: %w", name, abi.EINVAL)
	}

	as.mu.Lock()
	defer as.mu.Unlock()
	as.assertLive()

	end := base + uint32(size)
	for _, s := range as.segs {
		if base < s.End() && s.Base < end {
			return fmt.Errorf("vm: region %s overlaps %s: %w", name, s.Name, abi.EINVAL)
		}
	}
	if err := as.pool.alloc(pages); err != nil {
		return err
	}
	as.segs = append(as.segs, &Segment{Name: name, Base: base, Data: make([]byte, size)})
	sort.Slice(as.segs, func(i, j int) bool { return as.segs[i].Base < as.segs[j].Base })
	return nil
}

// Region returns the named segment, or nil.
func (as *AddressSpace) Region(name string) *Segment {
	as.mu.Lock()
	defer as.mu.Unlock()
	for _, s := range as.segs {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Duplicate returns a full copy of the space, charged to the same pool.
func (as *AddressSpace) Duplicate() (*AddressSpace, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.assertLive()

	pages := 0
	for _, s := range as.segs {
		pages += s.pages()
	}
	if err := as.pool.alloc(pages); err != nil {
		return nil, err
	}

	dup := &AddressSpace{pool: as.pool, Text: as.Text, segs: make([]*Segment, len(as.segs))}
	for i, s := range as.segs {
		data := make([]byte, len(s.Data))
		copy(data, s.Data)
		dup.segs[i] = &Segment{Name: s.Name, Base: s.Base, Data: data}
	}
	return dup, nil
}

// Activate makes the space current for the calling thread.
func (as *AddressSpace) Activate() {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.assertLive()
	as.active++
}

// Deactivate undoes one Activate.
func (as *AddressSpace) Deactivate() {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.active == 0 {
		panic("vm: deactivate of inactive address space")
	}
	as.active--
}

// Active reports whether any thread is running under the space.
func (as *AddressSpace) Active() bool {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.active > 0
}

// Destroy releases the space's pages. The space must not be active.
func (as *AddressSpace) Destroy() {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.assertLive()
	if as.active != 0 {
		panic("vm: destroy of active address space")
	}
	pages := 0
	for _, s := range as.segs {
		pages += s.pages()
	}
	as.segs = nil
	as.destroyed = true
	as.pool.free(pages)
}

// Destroyed reports whether Destroy has run.
func (as *AddressSpace) Destroyed() bool {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.destroyed
}

// Pages returns the number of pages mapped.
func (as *AddressSpace) Pages() int {
	as.mu.Lock()
	defer as.mu.Unlock()
	n := 0
	for _, s := range as.segs {
		n += s.pages()
	}
	return n
}

func (as *AddressSpace) assertLive() {
	if as.destroyed {
		panic("vm: use of destroyed address space")
	}
}

// segment returns the segment containing va. Callers hold as.mu.
func (as *AddressSpace) segment(va uint32) *Segment {
	for _, s := range as.segs {
		if va >= s.Base && va < s.End() {
			return s
		}
	}
	return nil
}

// span returns the backing bytes for [va, va+n) if they lie in one segment.
func (as *AddressSpace) span(va uint32, n int) ([]byte, error) {
	as.assertLive()
	s := as.segment(va)
	if s == nil || n < 0 || uint64(va)+uint64(n) > uint64(s.End()) {
		return nil, fmt.Errorf("vm: access %#x+%d: %w", va, n, abi.EFAULT)
	}
	off := va - s.Base
	return s.Data[off : off+uint32(n)], nil
}

// Load reads n bytes of user memory at va.
func (as *AddressSpace) Load(va uint32, n int) ([]byte, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	b, err := as.span(va, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Store writes b into user memory at va.
func (as *AddressSpace) Store(va uint32, b []byte) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	dst, err := as.span(va, len(b))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}
