package foreignrt_test

import (
	"testing"

	"github.com/ImPhilipGlover/EntropicGarden/foreignrt"
)

func TestEvalArithmetic(t *testing.T) {
	rt := foreignrt.NewNativeTableRuntime()
	cases := map[string]float64{
		"1 + 2":           3,
		"2 * (3 + 4)":     14,
		"10 / 4":          2.5,
		"-3 + 5":          2,
		"1 + 2 * 3":       7,
		"(1 + 2) * 3":     9,
	}
	for expr, want := range cases {
		v, err := rt.Eval(expr, nil)
		if err != nil {
			t.Fatalf("Eval(%q): %v", expr, err)
		}
		got, ok := v.(float64)
		if !ok || got != want {
			t.Errorf("Eval(%q) = %v, want %v", expr, v, want)
		}
	}
}

func TestEvalWithContext(t *testing.T) {
	rt := foreignrt.NewNativeTableRuntime()
	v, err := rt.Eval("x + y", map[string]foreignrt.Value{"x": float64(4), "y": float64(5)})
	if err != nil {
		t.Fatal(err)
	}
	if got := v.(float64); got != 9 {
		t.Errorf("Eval with context = %v, want 9", got)
	}
}

func TestEvalUndefinedNameErrors(t *testing.T) {
	rt := foreignrt.NewNativeTableRuntime()
	if _, err := rt.Eval("z + 1", nil); err == nil {
		t.Fatal("expected error for undefined name")
	}
}

func TestEvalSyntaxError(t *testing.T) {
	rt := foreignrt.NewNativeTableRuntime()
	if _, err := rt.Eval("1 +", nil); err == nil {
		t.Fatal("expected syntax error")
	}
	if _, err := rt.Eval("1 2", nil); err == nil {
		t.Fatal("expected syntax error for trailing garbage")
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	rt := foreignrt.NewNativeTableRuntime()
	if _, err := rt.Eval("1 / 0", nil); err == nil {
		t.Fatal("expected RuntimeError for division by zero")
	}
}

func TestLoadModuleAndCallFunction(t *testing.T) {
	rt := foreignrt.NewNativeTableRuntime()
	rt.Register("math", &foreignrt.Module{
		Functions: map[string]foreignrt.Func{
			"double": func(args []foreignrt.Value, kwargs map[string]foreignrt.Value) (foreignrt.Value, error) {
				return args[0].(float64) * 2, nil
			},
		},
	})

	v, err := rt.Call(foreignrt.Callable{Module: "math", Name: "double"}, []foreignrt.Value{float64(21)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v.(float64) != 42 {
		t.Errorf("Call math.double(21) = %v, want 42", v)
	}
}

func TestLoadModuleNotFound(t *testing.T) {
	rt := foreignrt.NewNativeTableRuntime()
	if _, err := rt.LoadModule("nope"); err == nil {
		t.Fatal("expected ModuleNotFound")
	}
}

func TestCreateInstanceAndCallMethod(t *testing.T) {
	rt := foreignrt.NewNativeTableRuntime()
	counter := foreignrt.Class{
		New: func(args []foreignrt.Value, kwargs map[string]foreignrt.Value) (*foreignrt.Instance, error) {
			n := args[0].(float64)
			return &foreignrt.Instance{
				Methods: map[string]func(args []foreignrt.Value, kwargs map[string]foreignrt.Value) (foreignrt.Value, error){
					"value": func([]foreignrt.Value, map[string]foreignrt.Value) (foreignrt.Value, error) {
						return n, nil
					},
				},
			}, nil
		},
	}
	inst, err := rt.CreateInstance(counter, []foreignrt.Value{float64(7)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	v, err := rt.CallMethod(inst, "value", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v.(float64) != 7 {
		t.Errorf("CallMethod(value) = %v, want 7", v)
	}
}

func TestCallMethodOnNonInstanceErrors(t *testing.T) {
	rt := foreignrt.NewNativeTableRuntime()
	if _, err := rt.CallMethod("not an instance", "foo", nil, nil); err == nil {
		t.Fatal("expected NotCallable")
	}
}
