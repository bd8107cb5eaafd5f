// Package handle implements the Handle Registry (C3): refcounted, ID-keyed
// entries mapping native-side objects to foreign-side proxies and back,
// without ever copying the underlying opaque object.
//
// The registry is grounded on the teacher's addonmaps (addon.go): a single
// mutex-guarded map tracking loaded resources by name, generalized here
// from "addon name" to "handle id", with reference counting added per the
// spec's ownership model.
package handle

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Kind discriminates which side of the language boundary a handle wraps.
type Kind int

// Handle kinds.
const (
	// NativeToForeign wraps a kernel Object exposed to foreign code.
	NativeToForeign Kind = iota
	// ForeignToNative wraps an opaque foreign object exposed to the kernel.
	ForeignToNative
)

func (k Kind) String() string {
	switch k {
	case NativeToForeign:
		return "NativeToForeign"
	case ForeignToNative:
		return "ForeignToNative"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ReleaseHook is invoked when a ForeignToNative handle's refcount reaches
// zero, implementing "releasing a ForeignToNative handle MUST invoke the
// foreign runtime's release protocol under C5" (§4.2). It is supplied by
// the caller of Acquire and may be nil, in which case no hook runs.
type ReleaseHook func(foreignRef interface{}) error

type entry struct {
	kind       Kind
	nativeRef  interface{}
	foreignRef interface{}
	refcount   int64
	onRelease  ReleaseHook
	released   bool
}

// ErrorKind enumerates the registry's error taxonomy (§7).
type ErrorKind int

// Registry error kinds.
const (
	ErrUnknownHandle ErrorKind = iota
	ErrDoubleRelease
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnknownHandle:
		return "UnknownHandle"
	case ErrDoubleRelease:
		return "DoubleRelease"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a structured registry error.
type Error struct {
	Kind    ErrorKind
	Message string
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func errf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Registry is the single authority for the handle_id -> (kind, native_ref,
// foreign_ref) mapping. No other subsystem may cache raw foreign pointers
// beyond the span of a single bridge call (§4.2 policy).
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	counter uint64
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Acquire allocates a new entry with refcount 1 and returns its opaque,
// string-typed, monotonically numbered handle id. Handle ids never encode
// pointer values (§4.2 policy).
func (r *Registry) Acquire(kind Kind, nativeRef, foreignRef interface{}, onRelease ReleaseHook) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter++
	id := fmt.Sprintf("h%d", r.counter)
	r.entries[id] = &entry{
		kind:       kind,
		nativeRef:  nativeRef,
		foreignRef: foreignRef,
		refcount:   1,
		onRelease:  onRelease,
	}
	return id
}

// Retain increments the handle's refcount. Fails with UnknownHandle if
// handleID is not a live entry.
func (r *Registry) Retain(handleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[handleID]
	if !ok || e.released {
		return errf(ErrUnknownHandle, "no such handle %q", handleID)
	}
	atomic.AddInt64(&e.refcount, 1)
	return nil
}

// Release decrements the handle's refcount. When it reaches zero, the
// foreign-release hook is called for ForeignToNative handles and the entry
// is tombstoned (kept in the table, marked released, no longer counted as
// live). Releasing an already-released handle is a logic error and fails
// with DoubleRelease: per §4.2, this is "critical to detect marshalling
// bugs" and so is never treated as idempotent.
func (r *Registry) Release(handleID string) error {
	r.mu.Lock()
	e, ok := r.entries[handleID]
	if !ok {
		r.mu.Unlock()
		return errf(ErrUnknownHandle, "no such handle %q", handleID)
	}
	if e.released {
		r.mu.Unlock()
		return errf(ErrDoubleRelease, "handle %q already released", handleID)
	}
	n := atomic.AddInt64(&e.refcount, -1)
	var hook ReleaseHook
	var foreignRef interface{}
	if n <= 0 {
		// The entry is kept as a tombstone (released=true) rather than
		// deleted so a second Release on the same id finds it and reports
		// DoubleRelease instead of falling through to the !ok branch above
		// and misreporting UnknownHandle.
		e.released = true
		hook = e.onRelease
		foreignRef = e.foreignRef
	}
	r.mu.Unlock()

	if hook != nil && e.kind == ForeignToNative {
		return hook(foreignRef)
	}
	return nil
}

// Resolve returns the handle's kind and references without mutating its
// refcount. Fails with UnknownHandle if absent.
func (r *Registry) Resolve(handleID string) (kind Kind, nativeRef, foreignRef interface{}, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[handleID]
	if !ok || e.released {
		return 0, nil, nil, errf(ErrUnknownHandle, "no such handle %q", handleID)
	}
	return e.kind, e.nativeRef, e.foreignRef, nil
}

// Refcount returns the handle's current refcount, or 0 and an error if it
// does not exist.
func (r *Registry) Refcount(handleID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[handleID]
	if !ok || e.released {
		return 0, errf(ErrUnknownHandle, "no such handle %q", handleID)
	}
	return atomic.LoadInt64(&e.refcount), nil
}

// Len returns the number of live (non-released) handles. Tests use this to
// verify invariant 6 (handle accounting): after acquiring N and releasing
// N, the registry is empty. Tombstoned entries kept around for
// DoubleRelease detection do not count.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if !e.released {
			n++
		}
	}
	return n
}

// Snapshot returns the ids of all currently live handles, for diagnostics.
// Tombstoned entries are omitted.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id, e := range r.entries {
		if !e.released {
			ids = append(ids, id)
		}
	}
	return ids
}

// ReleaseAllInOrder releases every live handle in acquisition order, as
// required by Bridge.Shutdown (§4.5 op 2: "releases all outstanding
// handles (in acquisition order...)"). Errors are collected but do not
// stop the sweep; the first error, if any, is returned.
func (r *Registry) ReleaseAllInOrder() error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.entries))
	for id, e := range r.entries {
		if !e.released {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()
	// Handle ids are "h<n>" with monotonically increasing n, so a
	// lexicographic-by-length-then-value sort recovers acquisition order.
	sortHandleIDs(ids)

	var first error
	for _, id := range ids {
		n, err := r.Refcount(id)
		if err != nil {
			continue
		}
		for i := int64(0); i < n; i++ {
			if err := r.Release(id); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

func sortHandleIDs(ids []string) {
	// Insertion sort is fine: handle counts in a single session are small,
	// and this keeps the package free of an extra "sort" import for what is
	// fundamentally a numeric-suffix comparison.
	seq := func(id string) uint64 {
		var n uint64
		for i := 1; i < len(id); i++ {
			n = n*10 + uint64(id[i]-'0')
		}
		return n
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && seq(ids[j-1]) > seq(ids[j]); j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
