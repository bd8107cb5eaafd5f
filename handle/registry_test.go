package handle_test

import (
	"testing"

	"github.com/ImPhilipGlover/EntropicGarden/handle"
)

func TestAcquireResolveRelease(t *testing.T) {
	r := handle.New()
	id := r.Acquire(handle.NativeToForeign, "native", nil, nil)
	kind, native, _, err := r.Resolve(id)
	if err != nil {
		t.Fatal(err)
	}
	if kind != handle.NativeToForeign || native != "native" {
		t.Errorf("Resolve = %v, %v, want NativeToForeign, native", kind, native)
	}
	if err := r.Release(id); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

// TestHandleAccounting is universal invariant 6: acquire N, release N ->
// empty registry.
func TestHandleAccounting(t *testing.T) {
	r := handle.New()
	ids := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		ids = append(ids, r.Acquire(handle.NativeToForeign, i, nil, nil))
	}
	for _, id := range ids {
		if err := r.Release(id); err != nil {
			t.Fatal(err)
		}
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRetainRequiresMatchingRelease(t *testing.T) {
	r := handle.New()
	id := r.Acquire(handle.NativeToForeign, nil, nil, nil)
	if err := r.Retain(id); err != nil {
		t.Fatal(err)
	}
	if err := r.Release(id); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d after one release of two holds, want 1", r.Len())
	}
	if err := r.Release(id); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestDoubleReleaseFails(t *testing.T) {
	r := handle.New()
	id := r.Acquire(handle.NativeToForeign, nil, nil, nil)
	if err := r.Release(id); err != nil {
		t.Fatal(err)
	}
	err := r.Release(id)
	he, ok := err.(*handle.Error)
	if !ok {
		t.Fatalf("err = %v (%T), want *handle.Error", err, err)
	}
	if he.Kind != handle.ErrDoubleRelease {
		t.Errorf("Kind = %v, want DoubleRelease", he.Kind)
	}
}

// TestDoubleReleaseOnMultiplyRetainedHandleStillFails exercises
// DoubleRelease on a handle that was retained before being fully released:
// acquire, retain (refcount 2), release twice (refcount 0, tombstoned), then
// release a third time.
func TestDoubleReleaseOnMultiplyRetainedHandleStillFails(t *testing.T) {
	r := handle.New()
	id := r.Acquire(handle.NativeToForeign, nil, nil, nil)
	if err := r.Retain(id); err != nil {
		t.Fatal(err)
	}
	if err := r.Release(id); err != nil {
		t.Fatal(err)
	}
	if err := r.Release(id); err != nil {
		t.Fatal(err)
	}
	err := r.Release(id)
	he, ok := err.(*handle.Error)
	if !ok {
		t.Fatalf("err = %v (%T), want *handle.Error", err, err)
	}
	if he.Kind != handle.ErrDoubleRelease {
		t.Errorf("Kind = %v, want DoubleRelease", he.Kind)
	}
}

func TestUnknownHandleOperations(t *testing.T) {
	r := handle.New()
	if _, _, _, err := r.Resolve("hNope"); err == nil {
		t.Error("Resolve(unknown) should fail")
	}
	if err := r.Retain("hNope"); err == nil {
		t.Error("Retain(unknown) should fail")
	}
}

func TestForeignReleaseHookInvoked(t *testing.T) {
	r := handle.New()
	called := false
	id := r.Acquire(handle.ForeignToNative, nil, "foreignptr", func(ref interface{}) error {
		called = true
		if ref != "foreignptr" {
			t.Errorf("hook ref = %v, want foreignptr", ref)
		}
		return nil
	})
	if err := r.Release(id); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("release hook was not invoked")
	}
}

func TestReleaseAllInOrder(t *testing.T) {
	r := handle.New()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		r.Acquire(handle.ForeignToNative, nil, i, func(ref interface{}) error {
			order = append(order, ref.(int))
			return nil
		})
	}
	if err := r.ReleaseAllInOrder(); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
	for i, v := range order {
		if i != v {
			t.Errorf("release order = %v, want ascending acquisition order", order)
			break
		}
	}
}
