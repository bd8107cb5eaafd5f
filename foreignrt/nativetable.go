package foreignrt

import (
	"strconv"
	"sync"
)

// Func is a native Go function exposed to eval/call, mirroring the
// teacher's Fn (cfunction.go): a plain Go function bound under a name
// rather than requiring a scripting-language closure.
type Func func(args []Value, kwargs map[string]Value) (Value, error)

// Class is a constructible native type.
type Class struct {
	New func(args []Value, kwargs map[string]Value) (*Instance, error)
}

// Instance is a live object produced by Class.New, dispatching named
// methods, the native-table analogue of a foreign object handle.
type Instance struct {
	Methods map[string]func(args []Value, kwargs map[string]Value) (Value, error)
}

// Module is a named collection of functions and classes, the native-table
// analogue of a loaded foreign module.
type Module struct {
	Functions map[string]Func
	Classes   map[string]Class
}

// NativeTableRuntime is a Runtime backed entirely by registered Go values;
// see the package doc for its grounding and purpose.
type NativeTableRuntime struct {
	mu      sync.Mutex
	modules map[string]*Module
}

// NewNativeTableRuntime creates an empty NativeTableRuntime.
func NewNativeTableRuntime() *NativeTableRuntime {
	return &NativeTableRuntime{modules: make(map[string]*Module)}
}

// Register makes a module available to LoadModule under name.
func (r *NativeTableRuntime) Register(name string, m *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[name] = m
}

// LoadModule returns the registered module, or ModuleNotFound.
func (r *NativeTableRuntime) LoadModule(name string) (Value, error) {
	r.mu.Lock()
	m, ok := r.modules[name]
	r.mu.Unlock()
	if !ok {
		return nil, errf(ErrModuleNotFound, "no such module %q", name)
	}
	return m, nil
}

// Call invokes a function looked up either directly (callable.Value is a
// Func) or via {module, name} (§4.5 op 5).
func (r *NativeTableRuntime) Call(callable Callable, args []Value, kwargs map[string]Value) (Value, error) {
	fn, err := r.resolveFunc(callable)
	if err != nil {
		return nil, err
	}
	return fn(args, kwargs)
}

func (r *NativeTableRuntime) resolveFunc(callable Callable) (Func, error) {
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

// CreateInstance constructs a new Instance from a Class value (resolved via
// {module, name} through Call's Callable convention is not used here since
// class is passed directly per §4.5 op 6's signature).
func (r *NativeTableRuntime) CreateInstance(class Value, args []Value, kwargs map[string]Value) (Value, error) {
	c, ok := class.(Class)
	if !ok {
		return nil, errf(ErrNotCallable, "value is not a class")
	}
	return c.New(args, kwargs)
}

// CallMethod invokes a named method on an Instance handle, or a named
// function on a Module handle returned by LoadModule.
func (r *NativeTableRuntime) CallMethod(obj Value, method string, args []Value, kwargs map[string]Value) (Value, error) {
	if m, ok := obj.(*Module); ok {
		fn, ok := m.Functions[method]
		if !ok {
			return nil, errf(ErrNotCallable, "module has no function %q", method)
		}
		return fn(args, kwargs)
	}
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

// Eval evaluates a small arithmetic expression language: number literals,
// +, -, *, /, parentheses, and identifiers resolved from context. This is
// the one piece of "real" source evaluation SPEC_FULL requires end to end
// (scenario "eval(\"1 + 2\") == 3"); anything beyond arithmetic belongs to
// a real embedded language, which is out of scope for the native-table
// runtime used by tests. The tokenizer/parser shape (scan left to right,
// track position, recursive-descent by precedence) mirrors the teacher's
// lex.go/parse.go structure, simplified to this narrow grammar.
func (r *NativeTableRuntime) Eval(code string, context map[string]Value) (Value, error) {
	p := &exprParser{src: code, context: context}
	p.skipSpace()
	v, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, errf(ErrSyntaxError, "unexpected input at position %d in %q", p.pos, code)
	}
	return v, nil
}

type exprParser struct {
	src     string
	pos     int
	context map[string]Value
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

// parseExpr handles + and - at the lowest precedence.
func (p *exprParser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '+':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v += rhs
		case '-':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

// parseTerm handles * and / at higher precedence than +/-.
func (p *exprParser) parseTerm() (float64, error) {
	v, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case '/':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, errf(ErrRuntimeError, "division by zero")
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

// parseFactor handles numbers, identifiers, parenthesized sub-expressions,
// and unary minus.
func (p *exprParser) parseFactor() (float64, error) {
	p.skipSpace()
	if p.peek() == '(' {
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, errf(ErrSyntaxError, "missing closing parenthesis at position %d", p.pos)
		}
		p.pos++
		return v, nil
	}
	if p.peek() == '-' {
		p.pos++
		v, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
	start := p.pos
	for p.pos < len(p.src) && (isDigit(p.src[p.pos]) || p.src[p.pos] == '.') {
		p.pos++
	}
	if p.pos > start {
		return strconv.ParseFloat(p.src[start:p.pos], 64)
	}
	for p.pos < len(p.src) && isIdent(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return 0, errf(ErrSyntaxError, "unexpected character %q at position %d", string(p.peek()), p.pos)
	}
	name := p.src[start:p.pos]
	v, ok := p.context[name]
	if !ok {
		return 0, errf(ErrRuntimeError, "undefined name %q", name)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, errf(ErrRuntimeError, "name %q is not numeric", name)
	}
	return f, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdent(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || isDigit(c)
}
