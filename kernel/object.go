package kernel

import (
	"sync"
	"sync/atomic"
)

// ObjectState is a kernel object's lifecycle state (§4.1 state machine).
type ObjectState int

// Object states. Transitions: Mutable -> Frozen via freeze; Mutable or
// Frozen -> Dead on reclamation. There are no transitions back from Dead.
const (
	Mutable ObjectState = iota
	Frozen
	Dead
)

func (s ObjectState) String() string {
	switch s {
	case Mutable:
		return "Mutable"
	case Frozen:
		return "Frozen"
	case Dead:
		return "Dead"
	default:
		return "ObjectState(?)"
	}
}

// Tag is an optional opaque kind marker used by native method tables, such
// as the Foreign Runtime Gate's built-in classes. Tags are compared by
// identity, so two distinct Tag values are never considered equal even if
// their Name is the same string.
type Tag interface {
	// Name returns the type name associated with this tag, e.g. "Number".
	Name() string
}

// Object is a kernel object: an (id, slots, parents, tag) tuple as defined
// in the data model (§3). Use Kernel.Clone or the Kernel.Root field to
// obtain one; the zero Object is not usable.
type Object struct {
	mu sync.Mutex

	id     uint64
	slots  *orderedSlots
	parents []*Object
	tag    Tag
	state  ObjectState

	// value is the object's native payload when it wraps a Go value (e.g. a
	// ForeignHandle or a vector). It is opaque to the kernel itself.
	value interface{}

	// transactional marks that slot writes on this object should be
	// journaled via set_slot_transactional's protocol (see wal package).
	// This resolves the spec's Open Question in favor of per-write rather
	// than per-object transactionality: writers choose the journaled path
	// explicitly by calling Kernel.SetSlotTransactional, and this flag is
	// informational only (surfaced for introspection, e.g. by debuggers).
	transactional int32
}

// Kind implements Value.
func (*Object) Kind() ValueKind { return KindObject }

// ID returns the object's process-unique, stable id.
func (o *Object) ID() uint64 {
	return o.id
}

// Tag returns the object's tag, or nil if it has none.
func (o *Object) Tag() Tag {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tag
}

// SetTag sets the object's tag. Used by native constructors (Number,
// String, ForeignHandle wrappers, ...) immediately after creation.
func (o *Object) SetTag(t Tag) {
	o.mu.Lock()
	o.tag = t
	o.mu.Unlock()
}

// Value returns the object's native payload, if any.
func (o *Object) Value() interface{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// SetValue sets the object's native payload.
func (o *Object) SetValue(v interface{}) {
	o.mu.Lock()
	o.value = v
	o.mu.Unlock()
}

// State returns the object's current lifecycle state.
func (o *Object) State() ObjectState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// MarkTransactional flags the object so that future writers know to prefer
// Kernel.SetSlotTransactional for it. Purely advisory.
func (o *Object) MarkTransactional(yes bool) {
	if yes {
		atomic.StoreInt32(&o.transactional, 1)
	} else {
		atomic.StoreInt32(&o.transactional, 0)
	}
}

// IsTransactional reports the advisory transactional flag set by
// MarkTransactional.
func (o *Object) IsTransactional() bool {
	return atomic.LoadInt32(&o.transactional) != 0
}

// Parents returns a snapshot of the object's delegation chain.
func (o *Object) Parents() []*Object {
	o.mu.Lock()
	defer o.mu.Unlock()
	p := make([]*Object, len(o.parents))
	copy(p, o.parents)
	return p
}

// SetParents replaces the object's delegation chain.
func (o *Object) SetParents(parents []*Object) {
	o.mu.Lock()
	o.parents = append([]*Object(nil), parents...)
	o.mu.Unlock()
}

// HasSlotLocal reports whether name is bound directly on o, without
// consulting the delegation chain.
func (o *Object) HasSlotLocal(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.slots.get(name)
	return ok
}

// LocalSlotNames returns the names of slots bound directly on o, in
// insertion order.
func (o *Object) LocalSlotNames() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.slots.names()
}
