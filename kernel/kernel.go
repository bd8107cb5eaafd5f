package kernel

import (
	"context"
	"sync/atomic"

	"github.com/zephyrtronium/contains"
)

// NativeFn is a Go function bound to a slot so that it behaves as an
// invocable method when performed. It plays the role of the teacher's
// Fn/CFunction (cfunction.go), generalized to the kernel's Value type. ctx
// carries the current perform recursion depth (§4.1): a NativeFn that
// recurses into the kernel MUST do so via Kernel.PerformContext(ctx, ...),
// passing the ctx it was given, so that the depth bound in
// Kernel.Perform's plain entry point actually accumulates across reentrant
// dispatch instead of resetting on every call.
type NativeFn func(ctx context.Context, k *Kernel, self *Object, args []Value) (Value, error)

// depthKey is the context.Context key under which Perform threads the
// current recursion depth, mirroring how package gate threads its
// reentrancy token through context rather than inspecting the goroutine
// stack (which Go does not expose stably).
type depthKey struct{}

func depthFromContext(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

// nativeMethodTag marks an Object whose Value is a NativeFn.
type nativeMethodTag struct{}

func (nativeMethodTag) Name() string { return "Method" }

// MethodTag is the Tag used for objects wrapping a NativeFn. GetSlot
// results with this tag are invocable by Perform.
var MethodTag Tag = nativeMethodTag{}

// defaultMaxDepth bounds perform's reentrant recursion (§4.1: "exceeding
// the bound yields StackOverflow").
const defaultMaxDepth = 10000

// Kernel is the embedder-facing object kernel (C2). It owns object id
// allocation, the root prototype, and the recursion-depth policy for
// perform. The zero Kernel is not usable; use New.
type Kernel struct {
	nextID uint64

	// Root is the root prototype. Every object other than Root must have at
	// least one parent (§3 invariant).
	Root *Object

	// MaxDepth bounds perform's recursion. Zero means defaultMaxDepth.
	MaxDepth int

	// trace, when non-zero, causes every Perform call to be sent on Tracer,
	// mirroring the teacher's atomic debug flag (debugger.go). Zero cost
	// when disabled: a single atomic load per Perform.
	trace  uint32
	Tracer chan<- TraceEvent
}

// TraceEvent describes one perform call, emitted when tracing is enabled
// via Kernel.SetTrace.
type TraceEvent struct {
	Target *Object
	Name   string
	Args   []Value
}

// New creates a Kernel with a fresh root prototype.
func New() *Kernel {
	k := &Kernel{}
	k.Root = k.newObject(nil)
	return k
}

func (k *Kernel) newObject(parents []*Object) *Object {
	return &Object{
		id:      atomic.AddUint64(&k.nextID, 1),
		slots:   newOrderedSlots(),
		parents: append([]*Object(nil), parents...),
	}
}

// SetTrace enables or disables perform tracing. When enabling, ch receives
// one TraceEvent per Perform call; the caller must keep it drained.
func (k *Kernel) SetTrace(ch chan<- TraceEvent) {
	k.Tracer = ch
	if ch != nil {
		atomic.StoreUint32(&k.trace, 1)
	} else {
		atomic.StoreUint32(&k.trace, 0)
	}
}

// Clone creates a new object with parents = [proto] and empty slots. Never
// fails, per §4.1.
func (k *Kernel) Clone(proto *Object) *Object {
	o := k.newObject([]*Object{proto})
	return o
}

// CloneMulti creates a new object whose delegation chain begins with
// protos, in order. Multiple parents are formally supported (§4.1's
// Open Question resolution): lookup ties are broken by parent order.
func (k *Kernel) CloneMulti(protos ...*Object) *Object {
	return k.newObject(protos)
}

// maxDepth returns the effective recursion bound.
func (k *Kernel) maxDepth() int {
	if k.MaxDepth > 0 {
		return k.MaxDepth
	}
	return defaultMaxDepth
}

// lookup performs depth-first, left-to-right, cycle-guarded search of obj's
// delegation chain for name, returning the value and the object on which it
// was found (nil if absent). The visited set is keyed by object id using
// contains.Set, exactly as the teacher's internal/object.go IsKindOf guards
// proto traversal.
func lookup(obj *Object, name string) (Value, *Object) {
	obj.mu.Lock()
	if v, ok := obj.slots.get(name); ok {
		obj.mu.Unlock()
		return v, obj
	}
	parents := make([]*Object, len(obj.parents))
	copy(parents, obj.parents)
	obj.mu.Unlock()

	seen := contains.Set{}
	seen.Add(uintptr(obj.id))
	for _, p := range parents {
		if v, holder := lookupGuarded(p, name, &seen); holder != nil {
			return v, holder
		}
	}
	return nil, nil
}

func lookupGuarded(obj *Object, name string, seen *contains.Set) (Value, *Object) {
	if !seen.Add(uintptr(obj.id)) {
		// Already visited along this search: a cycle. Skip it rather than
		// recursing forever (§3 invariant).
		return nil, nil
	}
	obj.mu.Lock()
	if v, ok := obj.slots.get(name); ok {
		obj.mu.Unlock()
		return v, obj
	}
	parents := make([]*Object, len(obj.parents))
	copy(parents, obj.parents)
	obj.mu.Unlock()

	for _, p := range parents {
		if v, holder := lookupGuarded(p, name, seen); holder != nil {
			return v, holder
		}
	}
	return nil, nil
}

// GetSlot returns the first slot found along obj's delegation chain, or Nil
// if none is found.
func (k *Kernel) GetSlot(obj *Object, name string) Value {
	if v, _ := lookup(obj, name); v != nil {
		return v
	}
	return Nil{}
}

// GetSlotChecked is like GetSlot but also reports whether the slot was
// found at all (distinguishing an explicit Nil value from absence).
func (k *Kernel) GetSlotChecked(obj *Object, name string) (Value, bool) {
	v, holder := lookup(obj, name)
	return v, holder != nil
}

// SetSlot writes to obj.slots[name]. Fails with Frozen if the object has
// been frozen, or Dead if it has been reclaimed.
func (k *Kernel) SetSlot(obj *Object, name string, v Value) error {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	switch obj.state {
	case Frozen:
		return newError(ErrFrozen, "cannot set slot %q: object is frozen", name)
	case Dead:
		return newError(ErrDead, "cannot set slot %q: object is dead", name)
	}
	obj.slots.set(name, v)
	return nil
}

// Journal is the write-ahead-log side of the transactional slot write
// protocol (C7). The wal package's Writer satisfies it; kernel does not
// import wal directly to avoid a dependency cycle (wal imports kernel for
// Value, not the reverse).
type Journal interface {
	Record(objectID uint64, slot string, v Value, origin string) (seq uint64, err error)
}

// SetSlotTransactional performs the write protocol of §4.6: the new value
// is appended to j and flushed *before* the in-memory slot is updated. If
// the append fails, the in-memory write is not performed and the slot
// remains at its prior value (§4.6 failure model, "LogUnavailable").
func (k *Kernel) SetSlotTransactional(obj *Object, name string, v Value, j Journal) error {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	switch obj.state {
	case Frozen:
		return newError(ErrFrozen, "cannot set slot %q: object is frozen", name)
	case Dead:
		return newError(ErrDead, "cannot set slot %q: object is dead", name)
	}
	if _, err := j.Record(obj.id, name, v, "kernel"); err != nil {
		return err
	}
	obj.slots.set(name, v)
	obj.transactional = 1
	return nil
}

// Freeze transitions obj from Mutable to Frozen. It is idempotent if obj is
// already Frozen.
func (k *Kernel) Freeze(obj *Object) error {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	if obj.state == Dead {
		return newError(ErrDead, "cannot freeze a dead object")
	}
	obj.state = Frozen
	return nil
}

// Kill transitions obj to Dead. There is no transition back.
func (k *Kernel) Kill(obj *Object) {
	obj.mu.Lock()
	obj.state = Dead
	obj.mu.Unlock()
}

// HasSlotLocal reports whether name is bound directly on obj, with no
// delegation.
func (k *Kernel) HasSlotLocal(obj *Object, name string) bool {
	return obj.HasSlotLocal(name)
}

// Invocable returns the NativeFn wrapped by v and true if v is an Object
// tagged MethodTag; otherwise it returns false.
func Invocable(v Value) (NativeFn, bool) {
	o, ok := v.(*Object)
	if !ok {
		return nil, false
	}
	if o.Tag() != MethodTag {
		return nil, false
	}
	fn, ok := o.Value().(NativeFn)
	return fn, ok
}

// NewMethod wraps fn as an invocable slot value.
func (k *Kernel) NewMethod(fn NativeFn) *Object {
	o := k.newObject(nil)
	o.SetTag(MethodTag)
	o.SetValue(fn)
	return o
}

// Perform resolves message via GetSlot on obj; if the resolved value is
// invocable it evaluates it with self = obj, args = args. If the resolved
// value is not invocable, it returns it unchanged (field access). Fails
// with DoesNotUnderstand only when the slot is absent and no forward slot
// exists; if forward exists, it is invoked with the original message name
// as its first argument followed by args.
//
// This is the entry point for a fresh call chain and always starts the
// recursion-depth count at zero. A NativeFn that sends itself (or another
// object) a further message as part of handling this one must call
// PerformContext with the context it was given instead, or the depth bound
// of §4.1 never sees the accumulated recursion and StackOverflow can never
// fire.
func (k *Kernel) Perform(obj *Object, message string, args []Value) (Value, error) {
	return k.PerformContext(context.Background(), obj, message, args)
}

// PerformContext is Perform, but continues a call chain whose recursion
// depth is carried in ctx rather than starting a new one at zero. Pass the
// ctx a NativeFn was invoked with to keep depth accounting accurate across
// reentrant dispatch.
func (k *Kernel) PerformContext(ctx context.Context, obj *Object, message string, args []Value) (Value, error) {
	return k.performDepth(ctx, obj, message, args, depthFromContext(ctx))
}

func (k *Kernel) performDepth(ctx context.Context, obj *Object, message string, args []Value, depth int) (Value, error) {
	if depth > k.maxDepth() {
		return nil, newError(ErrStackOverflow, "perform recursion exceeded %d frames resolving %q", k.maxDepth(), message)
	}
	if atomic.LoadUint32(&k.trace) != 0 && k.Tracer != nil {
		k.Tracer <- TraceEvent{Target: obj, Name: message, Args: args}
	}
	if obj.State() == Dead {
		return nil, newError(ErrDead, "cannot perform %q on a dead object", message)
	}

	nextCtx := context.WithValue(ctx, depthKey{}, depth+1)

	v, holder := lookup(obj, message)
	if holder != nil {
		if fn, ok := Invocable(v); ok {
			return fn(nextCtx, k, obj, args)
		}
		return v, nil
	}

	fwd, holder := lookup(obj, "forward")
	if holder != nil {
		if fn, ok := Invocable(fwd); ok {
			fargs := make([]Value, 0, len(args)+1)
			fargs = append(fargs, String(message))
			fargs = append(fargs, args...)
			return fn(nextCtx, k, obj, fargs)
		}
		return fwd, nil
	}

	return nil, newError(ErrDoesNotUnderstand, "object does not understand %q", message)
}
