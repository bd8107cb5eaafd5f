// Package bridge implements the Synaptic Bridge (C6): the embedder-facing
// API that wires the object kernel (C2), the handle registry (C3), the
// marshaller (C4), the foreign runtime gate (C5), and a foreign runtime
// together into the nine operations of §4.5.
//
// Bridge itself holds no foreign state directly; every touch of the foreign
// runtime goes through Gate.Acquire first, exactly as §4.4 requires: "this
// gate is the ONLY path by which components C6 and C8 may touch foreign
// state." This mirrors the teacher's VM, which never lets addon state be
// touched except through the single addon-management goroutine (addon.go).
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/ImPhilipGlover/EntropicGarden/foreignrt"
	"github.com/ImPhilipGlover/EntropicGarden/gate"
	"github.com/ImPhilipGlover/EntropicGarden/handle"
	"github.com/ImPhilipGlover/EntropicGarden/kernel"
	"github.com/ImPhilipGlover/EntropicGarden/marshal"
	"github.com/ImPhilipGlover/EntropicGarden/wal"
)

// ErrorKind enumerates the bridge's error taxonomy (§7), which is a
// superset of the taxonomies of the components it wires: every error a
// lower component returns is reported through this set at the bridge
// boundary, reclassified where the lower kind has no bridge-level analogue
// (e.g. a marshal.Error becomes ErrRuntimeError, carrying the original
// message).
type ErrorKind int

// Bridge error kinds.
const (
	ErrRuntimeInitFailed ErrorKind = iota
	ErrModuleNotFound
	ErrNotCallable
	ErrSyntaxError
	ErrRuntimeError
	ErrTimedOut
	ErrCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case ErrRuntimeInitFailed:
		return "RuntimeInitFailed"
	case ErrModuleNotFound:
		return "ModuleNotFound"
	case ErrNotCallable:
		return "NotCallable"
	case ErrSyntaxError:
		return "SyntaxError"
	case ErrRuntimeError:
		return "RuntimeError"
	case ErrTimedOut:
		return "TimedOut"
	case ErrCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a structured bridge error, matching §4.5's propagation policy of
// surfacing every foreign exception as {kind, message, traceback,
// foreign_type_name}.
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

// wrapForeignErr reclassifies an error surfaced by a foreignrt.Runtime into
// the bridge's own taxonomy, preserving traceback/type-name detail carried
// by foreignrt.Error.
func wrapForeignErr(err error) error {
	if err == nil {
		return nil
	}
	fe, ok := err.(*foreignrt.Error)
	if !ok {
		return errf(ErrRuntimeError, "%v", err)
	}
	var kind ErrorKind
	switch fe.Kind {
	case foreignrt.ErrModuleNotFound:
		kind = ErrModuleNotFound
	case foreignrt.ErrNotCallable:
		kind = ErrNotCallable
	case foreignrt.ErrSyntaxError:
		kind = ErrSyntaxError
	default:
		kind = ErrRuntimeError
	}
	return &Error{Kind: kind, Message: fe.Message, Traceback: fe.Traceback, ForeignTypeName: fe.ForeignTypeName}
}

// Callable identifies something Call can invoke: either a marshalled kernel
// Value expected to resolve to a foreign function, or a {module, name} pair,
// mirroring foreignrt.Callable at the kernel-Value level (§4.5 op 5).
type Callable struct {
	Value  kernel.Value
	Module string
	Name   string
}

// Bridge is the embedder-facing Synaptic Bridge: the wiring of C2-C6 (and,
// through AsyncEval, the worker pool backing §4.5's async operations).
type Bridge struct {
	Kernel  *kernel.Kernel
	Handles *handle.Registry
	Marshal *marshal.Marshaller
	Gate    *gate.Gate
	Runtime foreignrt.Runtime
	Log     *wal.Writer

	config    *Config
	pool      *futurePool
	manifests map[string]*ModuleManifest
}

// Initialize constructs a Bridge from cfg (§4.5 op 1). RuntimePath selects
// which foreignrt.Runtime backs the bridge: empty means NativeTableRuntime
// (the embeddable, plugin-free default used by tests and simple
// embedders); any other value is treated as a plugin search-path root and
// backs a foreignrt.PluginRuntime searching RuntimePath and ExtraPaths in
// order.
func Initialize(cfg *Config) (*Bridge, error) {
	if cfg == nil {
		cfg = &Config{ThreadMode: "single"}
	}
	var rt foreignrt.Runtime
	if cfg.RuntimePath == "" {
		rt = foreignrt.NewNativeTableRuntime()
	} else {
		paths := append([]string{cfg.RuntimePath}, cfg.ExtraPaths...)
		rt = foreignrt.NewPluginRuntime(paths...)
	}

	reg := handle.New()
	b := &Bridge{
		Kernel:  kernel.New(),
		Handles: reg,
		Marshal: marshal.New(reg),
		Gate:    gate.New(),
		Runtime: rt,
		config:  cfg,
		pool:    newFuturePool(0),
	}
	return b, nil
}

// Shutdown releases all outstanding handles in acquisition order (§4.5 op
// 2), then stops the async worker pool. It is idempotent: calling it again
// on an already-shut-down Bridge releases nothing further and returns nil.
func (b *Bridge) Shutdown() error {
	err := b.Handles.ReleaseAllInOrder()
	b.pool.stop()
	if err != nil {
		return errf(ErrRuntimeError, "shutdown: releasing handles: %v", err)
	}
	return nil
}

// toForeignContext marshals a kernel-Value context map into a foreignrt
// context map, used by Eval (§4.5 op 3).
func (b *Bridge) toForeignContext(ctx map[string]kernel.Value) (map[string]foreignrt.Value, error) {
	if ctx == nil {
		return nil, nil
	}
	out := make(map[string]foreignrt.Value, len(ctx))
	for k, v := range ctx {
		fv, err := b.Marshal.Marshal(v)
		if err != nil {
			return nil, errf(ErrRuntimeError, "marshalling context %q: %v", k, err)
		}
		out[k] = foreignrt.Value(fv)
	}
	return out, nil
}

// Eval evaluates a foreign source fragment under the gate (§4.5 op 3).
func (b *Bridge) Eval(code string, context map[string]kernel.Value) (kernel.Value, error) {
	fctx, err := b.toForeignContext(context)
	if err != nil {
		return nil, err
	}
	_, release, _ := b.Gate.Acquire(nil)
	defer release()

	fv, err := b.Runtime.Eval(code, fctx)
	if err != nil {
		return nil, wrapForeignErr(err)
	}
	v, err := b.Marshal.Unmarshal(marshal.Foreign(fv))
	if err != nil {
		return nil, errf(ErrRuntimeError, "unmarshalling eval result: %v", err)
	}
	return v, nil
}

// LoadModule imports name (§4.5 op 4). If a manifest is registered for name
// (via RegisterManifest), its Depends are loaded first, in order, failing
// the whole load with ModuleNotFound if any dependency cannot be resolved
// -- generalizing the teacher's reallyLoadAddon dependency-ordering rule
// from statically linked addons to runtime-loaded foreign modules.
func (b *Bridge) LoadModule(name string) (kernel.Value, error) {
	return b.loadModule(name, nil)
}

func (b *Bridge) loadModule(name string, seen map[string]bool) (kernel.Value, error) {
	if seen == nil {
		seen = make(map[string]bool)
	}
	if seen[name] {
		return nil, errf(ErrModuleNotFound, "cyclic module dependency involving %q", name)
	}
	seen[name] = true

	if m, ok := b.manifests[name]; ok {
		for _, dep := range m.Depends {
			if _, err := b.loadModule(dep, seen); err != nil {
				return nil, errf(ErrModuleNotFound, "loading %q: dependency %q: %v", name, dep, err)
			}
		}
	}

	_, release, _ := b.Gate.Acquire(nil)
	defer release()

	fv, err := b.Runtime.LoadModule(name)
	if err != nil {
		return nil, wrapForeignErr(err)
	}
	v, err := b.Marshal.Unmarshal(marshal.Foreign(fv))
	if err != nil {
		return nil, errf(ErrRuntimeError, "unmarshalling module %q: %v", name, err)
	}
	return v, nil
}

// RegisterManifest records a ModuleManifest so LoadModule resolves name's
// dependencies before loading it.
func (b *Bridge) RegisterManifest(m *ModuleManifest) {
	if b.manifests == nil {
		b.manifests = make(map[string]*ModuleManifest)
	}
	b.manifests[m.Name] = m
}

func (b *Bridge) toForeignArgs(args []kernel.Value) ([]foreignrt.Value, error) {
	out := make([]foreignrt.Value, len(args))
	for i, a := range args {
		fv, err := b.Marshal.Marshal(a)
		if err != nil {
			return nil, errf(ErrRuntimeError, "marshalling argument %d: %v", i, err)
		}
		out[i] = foreignrt.Value(fv)
	}
	return out, nil
}

func (b *Bridge) toForeignKwargs(kwargs map[string]kernel.Value) (map[string]foreignrt.Value, error) {
	if kwargs == nil {
		return nil, nil
	}
	out := make(map[string]foreignrt.Value, len(kwargs))
	for k, v := range kwargs {
		fv, err := b.Marshal.Marshal(v)
		if err != nil {
			return nil, errf(ErrRuntimeError, "marshalling kwarg %q: %v", k, err)
		}
		out[k] = foreignrt.Value(fv)
	}
	return out, nil
}

func (b *Bridge) foreignCallable(c Callable) (foreignrt.Callable, error) {
	fc := foreignrt.Callable{Module: c.Module, Name: c.Name}
	if c.Value != nil {
		fv, err := b.Marshal.Marshal(c.Value)
		if err != nil {
			return fc, errf(ErrRuntimeError, "marshalling callable: %v", err)
		}
		fc.Value = foreignrt.Value(fv)
	}
	return fc, nil
}

// Call invokes callable with args/kwargs under the gate (§4.5 op 5).
func (b *Bridge) Call(callable Callable, args []kernel.Value, kwargs map[string]kernel.Value) (kernel.Value, error) {
	fc, err := b.foreignCallable(callable)
	if err != nil {
		return nil, err
	}
	fargs, err := b.toForeignArgs(args)
	if err != nil {
		return nil, err
	}
	fkwargs, err := b.toForeignKwargs(kwargs)
	if err != nil {
		return nil, err
	}

	_, release, _ := b.Gate.Acquire(nil)
	defer release()

	fv, err := b.Runtime.Call(fc, fargs, fkwargs)
	if err != nil {
		return nil, wrapForeignErr(err)
	}
	v, err := b.Marshal.Unmarshal(marshal.Foreign(fv))
	if err != nil {
		return nil, errf(ErrRuntimeError, "unmarshalling call result: %v", err)
	}
	return v, nil
}

// CreateInstance constructs an instance of a foreign class handle (§4.5 op
// 6).
func (b *Bridge) CreateInstance(class kernel.Value, args []kernel.Value, kwargs map[string]kernel.Value) (kernel.Value, error) {
	fclass, err := b.Marshal.Marshal(class)
	if err != nil {
		return nil, errf(ErrRuntimeError, "marshalling class: %v", err)
	}
	fargs, err := b.toForeignArgs(args)
	if err != nil {
		return nil, err
	}
	fkwargs, err := b.toForeignKwargs(kwargs)
	if err != nil {
		return nil, err
	}

	_, release, _ := b.Gate.Acquire(nil)
	defer release()

	fv, err := b.Runtime.CreateInstance(foreignrt.Value(fclass), fargs, fkwargs)
	if err != nil {
		return nil, wrapForeignErr(err)
	}
	v, err := b.Marshal.Unmarshal(marshal.Foreign(fv))
	if err != nil {
		return nil, errf(ErrRuntimeError, "unmarshalling instance: %v", err)
	}
	return v, nil
}

// CallMethod invokes a named method on a foreign instance handle (§4.5 op
// 7).
func (b *Bridge) CallMethod(obj kernel.Value, method string, args []kernel.Value, kwargs map[string]kernel.Value) (kernel.Value, error) {
	fobj, err := b.Marshal.Marshal(obj)
	if err != nil {
		return nil, errf(ErrRuntimeError, "marshalling instance: %v", err)
	}
	fargs, err := b.toForeignArgs(args)
	if err != nil {
		return nil, err
	}
	fkwargs, err := b.toForeignKwargs(kwargs)
	if err != nil {
		return nil, err
	}

	_, release, _ := b.Gate.Acquire(nil)
	defer release()

	fv, err := b.Runtime.CallMethod(foreignrt.Value(fobj), method, fargs, fkwargs)
	if err != nil {
		return nil, wrapForeignErr(err)
	}
	v, err := b.Marshal.Unmarshal(marshal.Foreign(fv))
	if err != nil {
		return nil, errf(ErrRuntimeError, "unmarshalling call-method result: %v", err)
	}
	return v, nil
}

// AsyncEval evaluates code on the worker pool, returning immediately with a
// Future (§4.5 op 8), generalizing the teacher's NewFuture (future.go) from
// "one goroutine per future" to a bounded pool sized by GOMAXPROCS so that
// a burst of async_eval calls cannot spawn unbounded goroutines each
// contending for the single Gate.
func (b *Bridge) AsyncEval(code string, context map[string]kernel.Value) *Future {
	f := newFuture()
	b.pool.submit(func() {
		v, err := b.Eval(code, context)
		f.complete(v, err)
	})
	return f
}

// Wait blocks for f to complete, for up to timeout if timeout > 0, or until
// ctx is cancelled (§4.5 op 9). A zero timeout with a background ctx blocks
// indefinitely.
func (b *Bridge) Wait(ctx context.Context, f *Future, timeout time.Duration) (kernel.Value, error) {
	return f.wait(ctx, timeout)
}
