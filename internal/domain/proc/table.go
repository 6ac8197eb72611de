// Package proc holds process descriptors and the bounded process table.
//
// Locking: the table lock guards slot contents and every descriptor's parent
// link. Each descriptor has a field lock and a separate exit monitor. The
// table lock may be held while briefly taking one descriptor lock, never the
// other way around, and nothing blocks while holding the table lock.
package proc

import (
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

// Table maps pids in [min, min+cap) to live descriptors.
type Table struct {
	mu    sync.Mutex
	min   Pid
	slots []*Proc
	next  int
	live  int
}

// NewTable creates a table for pids min..min+capacity-1.
func NewTable(min Pid, capacity int) *Table {
	if min <= 0 || capacity <= 0 {
		panic(fmt.Sprintf("proc: bad table geometry min=%d cap=%d", min, capacity))
	}
	return &Table{min: min, slots: make([]*Proc, capacity)}
}

func (t *Table) index(pid Pid) (int, bool) {
	i := int(pid - t.min)
	if pid < t.min || i >= len(t.slots) {
		return 0, false
	}
	return i, true
}

// Allocate installs a new Running descriptor in the next free slot.
func (t *Table) Allocate(name string, parent Pid) (*Proc, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.slots)
	for k := 0; k < n; k++ {
		i := (t.next + k) % n
		if t.slots[i] != nil {
			continue
		}
		p := newProc(t.min+Pid(i), name, parent)
		t.slots[i] = p
		t.next = (i + 1) % n
		t.live++
		return p, nil
	}
	return nil, fmt.Errorf("proc: table full (%d slots): %w", n, abi.ENPROC)
}

// Lookup returns the descriptor registered under pid. The reference is only
// stable while the caller otherwise guarantees the descriptor stays alive.
func (t *Table) Lookup(pid Pid) (*Proc, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index(pid)
	if !ok || t.slots[i] == nil {
		return nil, false
	}
	return t.slots[i], true
}

// Parent returns p's parent pid.
func (t *Table) Parent(p *Proc) Pid {
	t.mu.Lock()
	defer t.mu.Unlock()
	return p.parent
}

// Claim resolves pid for a wait by caller. It fails with ESRCH unless pid is
// a live child of caller that no other wait has claimed.
func (t *Table) Claim(caller, pid Pid) (*Proc, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index(pid)
	if !ok || t.slots[i] == nil {
		return nil, fmt.Errorf("proc: no pid %d: %w", pid, abi.ESRCH)
	}
	p := t.slots[i]
	if p.parent != caller {
		return nil, fmt.Errorf("proc: pid %d is not a child of %d: %w", pid, caller, abi.ESRCH)
	}
	if p.claimed {
		return nil, fmt.Errorf("proc: pid %d already being waited for: %w", pid, abi.ESRCH)
	}
	p.claimed = true
	return p, nil
}

// Unclaim releases a claim whose harvest did not complete.
func (t *Table) Unclaim(p *Proc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p.claimed = false
}

// Free removes p from its slot and destroys it.
func (t *Table) Free(p *Proc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.freeLocked(p)
}

func (t *Table) freeLocked(p *Proc) {
	i, ok := t.index(p.Pid)
	if !ok || t.slots[i] != p {
		panic(fmt.Sprintf("proc: pid %d (%s) is not in the table", p.Pid, p.ID))
	}
	p.destroy()
	t.slots[i] = nil
	t.live--
}

// Disown handles the children of an exiting parent: children that already
// exited are destroyed, the rest become orphans.
func (t *Table) Disown(parent Pid) (reaped, orphaned int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range t.slots {
		if c == nil || c.parent != parent {
			continue
		}
		// Retire publishes Exited while holding t.mu, so the state seen
		// here cannot change before the slot is cleared.
		if c.exited() {
			t.freeLocked(c)
			reaped++
			continue
		}
		c.parent = NoParent
		orphaned++
	}
	return reaped, orphaned
}

// Retire records p's exit. An orphan is removed and destroyed on the spot
// and Retire returns true; otherwise the status is published on p's monitor
// for the parent to harvest.
func (t *Table) Retire(p *Proc, status int32) (orphan bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i, ok := t.index(p.Pid); !ok || t.slots[i] != p {
		panic(fmt.Sprintf("proc: retiring pid %d which is not in the table", p.Pid))
	}
	if p.parent == NoParent {
		t.freeLocked(p)
		return true
	}
	p.markExited(status)
	return false
}

// Len returns the number of occupied slots.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// Cap returns the number of slots.
func (t *Table) Cap() int {
	return len(t.slots)
}

// Info is a point-in-time view of one descriptor.
type Info struct {
	Pid       Pid       `json:"pid"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Parent    Pid       `json:"parent"`
	ParentID  string    `json:"parent_id,omitempty"`
	State     string    `json:"state"`
	Status    *int32    `json:"status,omitempty"`
	Threads   int       `json:"threads"`
	Pages     int       `json:"pages"`
	CreatedAt time.Time `json:"created_at"`
	ExitedAt  time.Time `json:"exited_at,omitempty"`
}

// Snapshot returns every live descriptor ordered by pid.
func (t *Table) Snapshot() []Info {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Info, 0, t.live)
	for _, p := range t.slots {
		if p == nil {
			continue
		}
		out = append(out, t.infoLocked(p))
	}
	return out
}

// Describe returns the view of a single pid.
func (t *Table) Describe(pid Pid) (Info, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index(pid)
	if !ok || t.slots[i] == nil {
		return Info{}, false
	}
	return t.infoLocked(t.slots[i]), true
}

func (t *Table) infoLocked(p *Proc) Info {
	info := Info{
		Pid:       p.Pid,
		ID:        p.ID.String(),
		Parent:    p.parent,
		CreatedAt: p.CreatedAt,
	}
	// parent links are weak: report the parent's incarnation only if the
	// slot still holds a process that could have created p.
	if i, ok := t.index(p.parent); ok {
		if pp := t.slots[i]; pp != nil && !pp.CreatedAt.After(p.CreatedAt) {
			info.ParentID = pp.ID.String()
		}
	}

	p.lock.Lock()
	info.Name = p.name
	info.Threads = p.threads
	if p.as != nil {
		info.Pages = p.as.Pages()
	}
	p.lock.Unlock()

	p.waitMu.Lock()
	info.State = p.state.String()
	if p.state == Exited {
		st := p.status
		info.Status = &st
		info.ExitedAt = p.exitedAt
	}
	p.waitMu.Unlock()

	return info
}
