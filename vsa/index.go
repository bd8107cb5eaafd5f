package vsa

import (
	"fmt"
	"sort"
)

// IndexKind names an ANN backend (§4.7: kind in {"flat_ip", "ivf_flat",
// "hnsw_cosine"}).
type IndexKind string

// Recognized index kinds.
const (
	FlatIP     IndexKind = "flat_ip"
	IVFFlat    IndexKind = "ivf_flat"
	HNSWCosine IndexKind = "hnsw_cosine"
)

// SearchResult is one hit from Index.Search, sorted by descending score with
// ties broken by ascending id for determinism (§4.7).
type SearchResult struct {
	ID    float64
	Score float64
}

// ErrNotImplemented is returned by index kinds whose real backend SPEC_FULL
// does not require end to end (§4.7: "implementations MAY omit it, but the
// contract is fixed"). It is a distinct, documented failure rather than a
// silent no-op.
type ErrNotImplemented struct {
	Kind IndexKind
	Op   string
}

func (e *ErrNotImplemented) Error() string {
	return fmt.Sprintf("NotImplemented: %s backend does not implement %s", e.Kind, e.Op)
}

// Index is the ANN index facade every backend satisfies, mirroring the
// teacher's "capability behind a small interface" idiom used for Addon.
type Index interface {
	Kind() IndexKind
	Dim() int
	Add(vectors [][]float64, ids []float64) error
	Search(query []float64, k int) ([]SearchResult, error)
}

// NewIndex creates an index of the given kind and dimension. capacity is a
// hint only; flat_ip does not need it to operate correctly.
func NewIndex(kind IndexKind, dim int, capacity int) (Index, error) {
	switch kind {
	case FlatIP:
		return &flatIPIndex{dim: dim, capacity: capacity}, nil
	case IVFFlat, HNSWCosine:
		return &unimplementedIndex{kind: kind, dim: dim}, nil
	default:
		return nil, fmt.Errorf("vsa: unknown index kind %q", kind)
	}
}

// flatIPIndex is an exhaustive inner-product scan: the one ANN backend
// SPEC_FULL requires end to end, since it needs no additional dependency.
type flatIPIndex struct {
	dim      int
	capacity int
	vectors  [][]float64
	ids      []float64
}

func (x *flatIPIndex) Kind() IndexKind { return FlatIP }
func (x *flatIPIndex) Dim() int        { return x.dim }

func (x *flatIPIndex) Add(vectors [][]float64, ids []float64) error {
	for i, v := range vectors {
		if len(v) != x.dim {
			return errf(ErrShapeMismatch, "index_add: vector %d has dimension %d, want %d", i, len(v), x.dim)
		}
		id := float64(len(x.ids))
		if ids != nil {
			id = ids[i]
		}
		x.vectors = append(x.vectors, v)
		x.ids = append(x.ids, id)
	}
	return nil
}

func (x *flatIPIndex) Search(query []float64, k int) ([]SearchResult, error) {
	if len(query) != x.dim {
		return nil, errf(ErrShapeMismatch, "index_search: query has dimension %d, want %d", len(query), x.dim)
	}
	results := make([]SearchResult, len(x.vectors))
	for i, v := range x.vectors {
		results[i] = SearchResult{ID: x.ids[i], Score: dotProduct(query, v)}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// unimplementedIndex accepts index_create for ivf_flat/hnsw_cosine (so
// callers can discover the kind exists) but fails index_add/index_search
// with a documented NotImplemented error, per §4.7's explicit allowance.
type unimplementedIndex struct {
	kind IndexKind
	dim  int
}

func (x *unimplementedIndex) Kind() IndexKind { return x.kind }
func (x *unimplementedIndex) Dim() int        { return x.dim }

func (x *unimplementedIndex) Add([][]float64, []float64) error {
	return &ErrNotImplemented{Kind: x.kind, Op: "index_add"}
}

func (x *unimplementedIndex) Search([]float64, int) ([]SearchResult, error) {
	return nil, &ErrNotImplemented{Kind: x.kind, Op: "index_search"}
}
