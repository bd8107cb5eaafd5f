// Package marshal implements the Marshaller (C4): bidirectional Value <->
// foreign-value translation under the rule "primitives copy, everything
// else becomes a handle."
//
// Since the foreign runtime itself is out of scope (§1: "treated as an
// opaque foreign interpreter"), this package represents foreign values with
// a small closed Go type, Foreign, standing in for whatever a concrete
// embedded runtime's native values would be. A real embedding (see
// foreignrt) maps its own native representation to/from Foreign at its
// boundary; the rules in this package never change.
package marshal

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/ImPhilipGlover/EntropicGarden/handle"
	"github.com/ImPhilipGlover/EntropicGarden/kernel"
	"github.com/zephyrtronium/contains"
)

// Foreign is a foreign-side value as produced by Marshal / consumed by
// Unmarshal. It stands in for "whatever native value the foreign runtime
// uses," per the mapping table in §4.3.
type Foreign interface{}

// ForeignDict is the foreign-side analogue of Map: an insertion-ordered
// string-keyed dictionary. Plain Go maps cannot stand in for this because
// they do not preserve order, and the round-trip invariant (§8 property 4)
// requires it.
type ForeignDict struct {
	keys   []string
	values map[string]Foreign
}

// NewForeignDict creates an empty ForeignDict.
func NewForeignDict() *ForeignDict {
	return &ForeignDict{values: make(map[string]Foreign)}
}

// Set inserts or updates key, preserving original insertion order on update.
func (d *ForeignDict) Set(key string, v Foreign) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

// Get returns the value bound to key and whether it was present.
func (d *ForeignDict) Get(key string) (Foreign, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Keys returns the dict's keys in insertion order.
func (d *ForeignDict) Keys() []string {
	return d.keys
}

// Proxy is what a kernel Object becomes on the foreign side: a handle to a
// proxy object, per §4.3's mapping row "Object -> NativeToForeign handle
// wrapping the object id; foreign side sees a proxy with get_slot, set_slot,
// perform, clone." Proxy carries only the handle reference; no package in
// this repository gives it a get_slot/set_slot/perform/clone method surface
// on the foreign side.
type Proxy struct {
	HandleID string
}

// ErrorKind enumerates the marshaller's failure taxonomy (§4.3).
type ErrorKind int

// Marshalling error kinds.
const (
	ErrUnsupportedForeignType ErrorKind = iota
	ErrNonStringMapKey
	ErrCycleInGraph
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnsupportedForeignType:
		return "UnsupportedForeignType"
	case ErrNonStringMapKey:
		return "NonStringMapKey"
	case ErrCycleInGraph:
		return "CycleInGraph"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a structured MarshallingError.
type Error struct {
	Kind    ErrorKind
	Message string
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("MarshallingError(%s): %s", e.Kind, e.Message)
}

func errf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Marshaller converts between kernel Values and Foreign values, acquiring
// handles for opaque objects via a Registry. Cycle detection for List/Map
// uses contains.Set keyed by pointer identity, mirroring the teacher's use
// of contains.Set for cycle-guarded proto traversal (internal/object.go).
type Marshaller struct {
	Handles *handle.Registry

	mu         sync.Mutex
	objHandles map[*kernel.Object]string
}

// New creates a Marshaller backed by the given Registry.
func New(reg *handle.Registry) *Marshaller {
	return &Marshaller{Handles: reg, objHandles: make(map[*kernel.Object]string)}
}

// handleFor returns the stable handle id for obj, acquiring one on first
// sight and retaining on every subsequent sight. This is what makes
// repeated references to the same Object -- whether within one cyclic
// graph or across separate Marshal calls -- resolve to the same handle id
// (§4.3's cycle-handling rule; S6's "the second reference becomes the same
// handle id").
func (m *Marshaller) handleFor(obj *kernel.Object) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.objHandles[obj]; ok {
		m.Handles.Retain(id)
		return id
	}
	id := m.Handles.Acquire(handle.NativeToForeign, obj, nil, nil)
	m.objHandles[obj] = id
	return id
}

// Marshal converts a kernel Value to its foreign representation. Cycles in
// List/Map graphs fail with CycleInGraph; repeated Object references
// (cycles across handles) are allowed and resolve to the same handle id.
func (m *Marshaller) Marshal(v kernel.Value) (Foreign, error) {
	seen := contains.Set{}
	return m.marshal(v, &seen)
}

func (m *Marshaller) marshal(v kernel.Value, seen *contains.Set) (Foreign, error) {
	if v == nil {
		v = kernel.Nil{}
	}
	switch vv := v.(type) {
	case kernel.Nil:
		return nil, nil
	case kernel.Bool:
		return bool(vv), nil
	case kernel.Number:
		return float64(vv), nil
	case kernel.String:
		return string(vv), nil
	case kernel.List:
		ptr := reflect.ValueOf(vv).Pointer()
		if ptr != 0 && !seen.Add(ptr) {
			return nil, errf(ErrCycleInGraph, "cyclic List detected")
		}
		out := make([]Foreign, len(vv))
		for i, e := range vv {
			fe, err := m.marshal(e, seen)
			if err != nil {
				return nil, err
			}
			out[i] = fe
		}
		return out, nil
	case *kernel.Map:
		ptr := reflect.ValueOf(vv).Pointer()
		if !seen.Add(ptr) {
			return nil, errf(ErrCycleInGraph, "cyclic Map detected")
		}
		out := NewForeignDict()
		for _, k := range vv.Keys() {
			val, _ := vv.Get(k)
			fv, err := m.marshal(val, seen)
			if err != nil {
				return nil, err
			}
			out.Set(k, fv)
		}
		return out, nil
	case *kernel.Object:
		// Objects are allowed to be self-referential (S6): repeated
		// references to the same object become the same handle id rather
		// than erroring, because a handle is not a copy of the graph.
		return Proxy{HandleID: m.handleFor(vv)}, nil
	case kernel.ForeignHandle:
		// The original foreign object, handle resolved.
		_, _, foreignRef, err := m.Handles.Resolve(vv.HandleID)
		if err != nil {
			return nil, err
		}
		return foreignRef, nil
	default:
		return nil, errf(ErrUnsupportedForeignType, "cannot marshal %T", v)
	}
}

// Unmarshal converts a foreign value to a kernel Value using type
// introspection, per the inverse mapping table in §4.3.
func (m *Marshaller) Unmarshal(f Foreign) (kernel.Value, error) {
	switch fv := f.(type) {
	case nil:
		return kernel.Nil{}, nil
	case bool:
		return kernel.Bool(fv), nil
	case float64:
		return kernel.Number(fv), nil
	case int:
		return kernel.Number(fv), nil
	case string:
		return kernel.String(fv), nil
	case []Foreign:
		out := make(kernel.List, len(fv))
		for i, e := range fv {
			ev, err := m.Unmarshal(e)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case *ForeignDict:
		out := kernel.NewMap()
		for _, k := range fv.Keys() {
			val, _ := fv.Get(k)
			kv, err := m.Unmarshal(val)
			if err != nil {
				return nil, err
			}
			out.Set(k, kv)
		}
		return out, nil
	case Proxy:
		// A proxy that came back from the foreign side refers to a kernel
		// Object we already know about; resolve it through the registry.
		_, nativeRef, _, err := m.Handles.Resolve(fv.HandleID)
		if err != nil {
			return nil, err
		}
		obj, ok := nativeRef.(*kernel.Object)
		if !ok {
			return nil, errf(ErrUnsupportedForeignType, "handle %q is not a kernel Object", fv.HandleID)
		}
		return obj, nil
	default:
		// Any other foreign object becomes a newly acquired ForeignToNative
		// handle whose native-side appearance is a ForeignHandle value.
		id := m.Handles.Acquire(handle.ForeignToNative, nil, f, nil)
		return kernel.ForeignHandle{HandleID: id, HandleKind: kernel.ForeignToNative}, nil
	}
}
