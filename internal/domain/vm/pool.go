package vm

import (
	"fmt"
	"sync"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

// Pool accounts for the physical pages backing every address space.
type Pool struct {
	mu    sync.Mutex
	total int
	used  int
}

// NewPool creates a pool of the given number of pages.
func NewPool(pages int) *Pool {
	return &Pool{total: pages}
}

func (p *Pool) alloc(pages int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.used+pages > p.total {
		return fmt.Errorf("vm: need %d pages, %d free: %w", pages, p.total-p.used, abi.ENOMEM)
	}
	p.used += pages
	return nil
}

func (p *Pool) free(pages int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pages > p.used {
		panic(fmt.Sprintf("vm: freeing %d pages with %d in use", pages, p.used))
	}
	p.used -= pages
}

// Used returns the number of pages currently allocated.
func (p *Pool) Used() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used
}

// Total returns the pool size in pages.
func (p *Pool) Total() int {
	return p.total
}
