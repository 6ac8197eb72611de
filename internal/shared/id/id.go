// Package id provides ULID generation for kernel objects whose numeric
// identifiers are recycled.
//
// A pid names a table slot only for the lifetime of one process; the slot is
// reused afterwards. Every descriptor therefore also carries a ULID
// incarnation id so logs, traces and weak parent references can tell two
// occupants of the same pid apart.
package id

import (
	"crypto/rand"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// ProcID identifies one incarnation of a process descriptor
type ProcID string

// SpanID identifies one traced system call or request
type SpanID string

const (
	procPrefix = "proc_"
	spanPrefix = "span_"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// next returns prefix followed by a ULID. ULIDs from one process are strictly
// increasing, also within a millisecond.
func next(prefix string) string {
	mu.Lock()
	defer mu.Unlock()
	return prefix + ulid.MustNew(ulid.Now(), entropy).String()
}

// New returns a bare ULID string
func New() string { return next("") }

// NewProcID generates a new process incarnation ID
func NewProcID() ProcID { return ProcID(next(procPrefix)) }

// NewSpanID generates a new span ID
func NewSpanID() SpanID { return SpanID(next(spanPrefix)) }

func (id ProcID) String() string { return string(id) }
func (id SpanID) String() string { return string(id) }

// ParseSpanID accepts a span id received from outside, such as a propagation
// header. Anything not shaped like a span id is rejected.
func ParseSpanID(s string) (SpanID, bool) {
	u, ok := strings.CutPrefix(s, spanPrefix)
	if !ok {
		return "", false
	}
	if _, err := ulid.ParseStrict(u); err != nil {
		return "", false
	}
	return SpanID(s), true
}
