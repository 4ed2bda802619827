// Package intern implements the process-wide string interner described by
// the spec: equal byte sequences map to the same small stable Handle so
// identity comparison of rustlox strings is O(1) integer equality instead of
// a byte-for-byte compare.
package intern

import (
	"sync"

	"github.com/dolthub/swiss"
)

// Handle is an opaque, process-lifetime-valid reference to an interned
// string. The zero Handle is reserved and never returned by Intern.
type Handle uint32

// Interner maps distinct byte sequences to Handles and retains the owned
// storage so As can hand back a string valid for the life of the process.
//
// The spec treats this as a single process-wide mutable collection guarded
// only by the single-threaded assumption of the interpreter; Interner adds a
// mutex anyway so a host embedding multiple VMs on separate goroutines does
// not corrupt the table, matching the spec's note that "these interners must
// be made per-VM or guarded by mutual exclusion" if ever multi-threaded.
type Interner struct {
	mu      sync.RWMutex
	byBytes *swiss.Map[string, Handle]
	strings []string
}

// Global is the default process-wide interner used by the compiler and VM,
// per the spec's "single process-global string interner" design.
var Global = New()

// New returns an empty Interner. Most callers should use Global; New exists
// for tests that want isolation between cases.
func New() *Interner {
	return &Interner{
		byBytes: swiss.NewMap[string, Handle](64),
		strings: []string{""}, // index 0 reserved
	}
}

// Intern returns the stable Handle for s, assigning a new one the first time
// s (by byte content) is seen.
func (in *Interner) Intern(s string) Handle {
	in.mu.RLock()
	if h, ok := in.byBytes.Get(s); ok {
		in.mu.RUnlock()
		return h
	}
	in.mu.RUnlock()

	in.mu.Lock()
	defer in.mu.Unlock()
	if h, ok := in.byBytes.Get(s); ok {
		return h
	}
	h := Handle(len(in.strings))
	in.strings = append(in.strings, s)
	in.byBytes.Put(s, h)
	return h
}

// As returns the string that h was interned from. It panics if h was never
// produced by this Interner, which indicates an internal bug (a stale handle
// crossing interner instances).
func (in *Interner) As(h Handle) string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if int(h) <= 0 || int(h) >= len(in.strings) {
		panic("intern: handle from a different interner or never interned")
	}
	return in.strings[h]
}

// Concat interns the concatenation of the two strings denoted by a and b,
// without requiring the caller to materialize the intermediate string
// themselves.
func (in *Interner) Concat(a, b Handle) Handle {
	return in.Intern(in.As(a) + in.As(b))
}
