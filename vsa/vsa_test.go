package vsa_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/ImPhilipGlover/EntropicGarden/vsa"
)

func TestBindBundleElementwise(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{4, 5, 6}
	bound, err := vsa.Bind(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{4, 10, 18}
	for i := range want {
		if bound[i] != want[i] {
			t.Errorf("Bind[%d] = %v, want %v", i, bound[i], want[i])
		}
	}
	bundled, err := vsa.Bundle(a, b)
	if err != nil {
		t.Fatal(err)
	}
	wantSum := []float64{5, 7, 9}
	for i := range wantSum {
		if bundled[i] != wantSum[i] {
			t.Errorf("Bundle[%d] = %v, want %v", i, bundled[i], wantSum[i])
		}
	}
}

func TestShapeMismatchErrors(t *testing.T) {
	_, err := vsa.Bind([]float64{1, 2}, []float64{1})
	if err == nil {
		t.Fatal("expected ShapeMismatch for unequal lengths")
	}
	_, err = vsa.Bind(nil, nil)
	if err == nil {
		t.Fatal("expected ShapeMismatch for empty operands")
	}
}

func TestUnbindZeroGuard(t *testing.T) {
	bound := []float64{6, 0, 10}
	key := []float64{2, 0, 5}
	got, err := vsa.Unbind(bound, key)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{3, 0, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Unbind[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

// TestCosineBounds is universal invariant 8.
func TestCosineBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		a := vsa.GenerateHypervector(64, rng)
		b := vsa.GenerateHypervector(64, rng)
		c, err := vsa.Cosine(a, b)
		if err != nil {
			t.Fatal(err)
		}
		if c < -1.0001 || c > 1.0001 {
			t.Errorf("cosine(a,b) = %v out of [-1,1]", c)
		}
	}
	a := vsa.GenerateHypervector(64, rng)
	self, err := vsa.Cosine(a, a)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(self-1) > 1e-9 {
		t.Errorf("cosine(a,a) = %v, want 1", self)
	}
}

func TestCosineZeroNorm(t *testing.T) {
	zero := []float64{0, 0, 0}
	other := []float64{1, 2, 3}
	c, err := vsa.Cosine(zero, other)
	if err != nil {
		t.Fatal(err)
	}
	if c != 0 {
		t.Errorf("cosine with zero vector = %v, want 0", c)
	}
}

// TestBindUnbindApproximateInverse is universal invariant 9: for a random
// hypervector k with no zeros, unbind(bind(x,k), k) == x exactly.
func TestBindUnbindApproximateInverse(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	x := vsa.GenerateHypervector(256, rng)
	k := vsa.GenerateHypervector(256, rng) // bipolar +-1: never zero

	bound, err := vsa.Bind(x, k)
	if err != nil {
		t.Fatal(err)
	}
	recovered, err := vsa.Unbind(bound, k)
	if err != nil {
		t.Fatal(err)
	}
	for i := range x {
		if recovered[i] != x[i] {
			t.Fatalf("unbind(bind(x,k),k)[%d] = %v, want %v", i, recovered[i], x[i])
		}
	}
}

func TestGenerateHypervectorIsSeedable(t *testing.T) {
	a := vsa.GenerateHypervector(128, rand.New(rand.NewSource(7)))
	b := vsa.GenerateHypervector(128, rand.New(rand.NewSource(7)))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same-seed hypervectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
	for i := range a {
		if a[i] != 1 && a[i] != -1 {
			t.Fatalf("hypervector element %d = %v, want +-1", i, a[i])
		}
	}
}

func TestFlatIPIndexSearch(t *testing.T) {
	idx, err := vsa.NewIndex(vsa.FlatIP, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	vectors := [][]float64{
		{1, 0},
		{0, 1},
		{1, 1},
	}
	if err := idx.Add(vectors, []float64{10, 20, 30}); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search([]float64{1, 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].ID != 30 {
		t.Errorf("top result id = %v, want 30 (exact match)", results[0].ID)
	}
}

func TestFlatIPIndexShapeMismatch(t *testing.T) {
	idx, _ := vsa.NewIndex(vsa.FlatIP, 3, 0)
	if err := idx.Add([][]float64{{1, 2}}, nil); err == nil {
		t.Fatal("expected ShapeMismatch for wrong-dimension vector")
	}
}

func TestUnimplementedIndexKinds(t *testing.T) {
	for _, kind := range []vsa.IndexKind{vsa.IVFFlat, vsa.HNSWCosine} {
		idx, err := vsa.NewIndex(kind, 8, 0)
		if err != nil {
			t.Fatalf("NewIndex(%s): %v", kind, err)
		}
		if err := idx.Add([][]float64{{1, 2, 3, 4, 5, 6, 7, 8}}, nil); err == nil {
			t.Errorf("%s: expected NotImplemented from index_add", kind)
		}
		if _, err := idx.Search(make([]float64, 8), 1); err == nil {
			t.Errorf("%s: expected NotImplemented from index_search", kind)
		}
	}
}

func TestUnknownIndexKindErrors(t *testing.T) {
	if _, err := vsa.NewIndex("bogus", 8, 0); err == nil {
		t.Fatal("expected error for unknown index kind")
	}
}
