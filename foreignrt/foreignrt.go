// Package foreignrt provides the concrete default Foreign Runtime: the
// "opaque foreign interpreter" that the Synaptic Bridge (C6) gates access
// to via C5. The core kernel never depends on this package directly; the
// bridge package wires a Runtime implementation in behind the gate.
//
// Runtime has two implementations here:
//
//   - PluginRuntime is grounded on the teacher's addon.go: foreign modules
//     are Go plugins (plugin.Open), discovered by name in a search path,
//     exposing a well-known entry point symbol analogous to addon.go's
//     "IoAddon" function. This gives load_module/call/create_instance
//     concrete, testable semantics without an embedded scripting VM.
//   - NativeTableRuntime is a Go-function-table runtime grounded on the
//     teacher's CFunction (cfunction.go): modules are plain Go maps of
//     named functions/classes, registered directly rather than loaded from
//     a plugin file. It is the runtime used by the bridge's own tests
//     (plugins cannot be built at test time) and by embedders who want to
//     expose native Go functionality without shipping a .so.
package foreignrt

import (
	"fmt"
)

// Value is a foreign-side value, the same representation marshal.Foreign
// uses. This package does not import marshal; the two named types are
// structurally identical empty interfaces, converted at the call site in
// package bridge.
type Value interface{}

// ErrorKind enumerates the failures a Runtime can return (§7:
// ModuleNotFound, NotCallable, SyntaxError, RuntimeError).
type ErrorKind int

// Runtime error kinds.
const (
	ErrModuleNotFound ErrorKind = iota
	ErrNotCallable
	ErrSyntaxError
	ErrRuntimeError
)

func (k ErrorKind) String() string {
	switch k {
	case ErrModuleNotFound:
		return "ModuleNotFound"
	case ErrNotCallable:
		return "NotCallable"
	case ErrSyntaxError:
		return "SyntaxError"
	case ErrRuntimeError:
		return "RuntimeError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a structured foreign-runtime error, matching §4.5's propagation
// policy of converting foreign exceptions into a structured record
// {kind, message, traceback, foreign_type_name} at the gate boundary.
type Error struct {
	Kind            ErrorKind
	Message         string
	Traceback       string
	ForeignTypeName string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func errf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Callable identifies something Call/CallMethod can invoke: either a bare
// foreign value (expected to be a *Func or *Instance produced by this
// package) or a {module, name} pair per §4.5 op 5.
type Callable struct {
	Value  Value
	Module string
	Name   string
}

// Runtime is the foreign interpreter surface the bridge gates every touch
// of behind C5 (§4.4: "this gate is the ONLY path by which components C6
// and C8 may touch foreign state").
type Runtime interface {
	// Eval evaluates a source fragment with context as extra bindings.
	Eval(code string, context map[string]Value) (Value, error)
	// LoadModule imports a named module and returns an opaque handle to it.
	LoadModule(name string) (Value, error)
	// Call invokes callable with args/kwargs.
	Call(callable Callable, args []Value, kwargs map[string]Value) (Value, error)
	// CreateInstance constructs an instance of a class handle.
	CreateInstance(class Value, args []Value, kwargs map[string]Value) (Value, error)
	// CallMethod invokes a method on an instance handle.
	CallMethod(obj Value, method string, args []Value, kwargs map[string]Value) (Value, error)
}
