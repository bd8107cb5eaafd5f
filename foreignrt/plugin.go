package foreignrt

import (
	"path/filepath"
	"plugin"
	"sync"
)

// ModuleExports is what a plugin's well-known entry point must return,
// directly analogous to the teacher's Addon interface (addon.go): a named
// surface of functions and classes the runtime can look up by name,
// installed once per plugin open.
type ModuleExports interface {
	Name() string
	Functions() map[string]Func
	Classes() map[string]Class
}

// EntryPointSymbol is the exported symbol every plugin module must provide,
// of type func() ModuleExports, mirroring the teacher's "IoAddon" symbol
// convention (addon.go's plug.Lookup("IoAddon")).
const EntryPointSymbol = "ForeignModule"

// PluginRuntime loads foreign modules from Go plugins (-buildmode=plugin),
// grounded on addon.go's manageAddons/findAddons/reallyLoadAddon: a
// directory of .so files, each opened once and cached by path, each
// exposing one well-known entry point function.
type PluginRuntime struct {
	searchPaths []string

	mu     sync.Mutex
	opened map[string]*plugin.Plugin
	loaded map[string]*Module
}

// NewPluginRuntime creates a PluginRuntime that resolves module names to
// "<name>.so" under the given search paths, probed in order (teacher's
// havePlugins platform probe governs whether this can ever succeed; on
// platforms without plugin support every plugin.Open fails, so LoadModule
// returns ModuleNotFound, which the bridge surfaces as ModuleNotFound).
func NewPluginRuntime(searchPaths ...string) *PluginRuntime {
	return &PluginRuntime{
		searchPaths: searchPaths,
		opened:      make(map[string]*plugin.Plugin),
		loaded:      make(map[string]*Module),
	}
}

// LoadModule opens and caches the plugin for name, converting its exports
// into a Module. Errors with ModuleNotFound if no search path has a
// matching file or the plugin does not expose EntryPointSymbol.
func (r *PluginRuntime) LoadModule(name string) (Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.loaded[name]; ok {
		return m, nil
	}

	for _, dir := range r.searchPaths {
		path := filepath.Join(dir, name+".so")
		plug, ok := r.opened[path]
		if !ok {
			p, err := plugin.Open(path)
			if err != nil {
				continue
			}
			plug = p
			r.opened[path] = plug
		}
		sym, err := plug.Lookup(EntryPointSymbol)
		if err != nil {
			continue
		}
		entry, ok := sym.(func() ModuleExports)
		if !ok {
			continue
		}
		exports := entry()
		m := &Module{Functions: exports.Functions(), Classes: exports.Classes()}
		r.loaded[name] = m
		return m, nil
	}
	return nil, errf(ErrModuleNotFound, "module %q not found in any search path", name)
}

// Eval is not supported by the plugin runtime: a Go plugin is a compiled
// module, not a source-evaluable fragment. Embedders that need eval
// semantics use NativeTableRuntime (directly, or layered in front of this
// one) for that surface while still loading heavier modules as plugins.
func (r *PluginRuntime) Eval(code string, context map[string]Value) (Value, error) {
	return nil, errf(ErrRuntimeError, "PluginRuntime does not support eval; use NativeTableRuntime for source evaluation")
}

func (r *PluginRuntime) resolveFunc(callable Callable) (Func, error) {
	if fn, ok := callable.Value.(Func); ok {
		return fn, nil
	}
	if callable.Module == "" {
		return nil, errf(ErrNotCallable, "value is not callable")
	}
	mv, err := r.LoadModule(callable.Module)
	if err != nil {
		return nil, err
	}
	m := mv.(*Module)
	fn, ok := m.Functions[callable.Name]
	if !ok {
		return nil, errf(ErrNotCallable, "module %q has no function %q", callable.Module, callable.Name)
	}
	return fn, nil
}

// Call invokes a function exported by a loaded plugin module.
func (r *PluginRuntime) Call(callable Callable, args []Value, kwargs map[string]Value) (Value, error) {
	fn, err := r.resolveFunc(callable)
	if err != nil {
		return nil, err
	}
	return fn(args, kwargs)
}

// CreateInstance constructs an instance of a plugin-exported Class.
func (r *PluginRuntime) CreateInstance(class Value, args []Value, kwargs map[string]Value) (Value, error) {
	c, ok := class.(Class)
	if !ok {
		return nil, errf(ErrNotCallable, "value is not a class")
	}
	return c.New(args, kwargs)
}

// CallMethod invokes a named method on an Instance handle produced by a
// plugin-exported Class.
func (r *PluginRuntime) CallMethod(obj Value, method string, args []Value, kwargs map[string]Value) (Value, error) {
	inst, ok := obj.(*Instance)
	if !ok {
		return nil, errf(ErrNotCallable, "value is not an instance")
	}
	fn, ok := inst.Methods[method]
	if !ok {
		return nil, errf(ErrNotCallable, "instance has no method %q", method)
	}
	return fn(args, kwargs)
}

var _ Runtime = (*PluginRuntime)(nil)
var _ Runtime = (*NativeTableRuntime)(nil)
