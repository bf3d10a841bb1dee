// Package embedding holds entity vectors produced by the external trainer.
package embedding

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/OFFIS-RIT/kgalign/pkg/entity"
)

// ErrMixedDimensions is returned when the vectors of a table differ in length.
var ErrMixedDimensions = errors.New("embedding vectors have mixed dimensions")

// ErrNonFinite is returned for vectors holding NaN or infinite components.
var ErrNonFinite = errors.New("embedding vector has non-finite component")

// Table maps entity ids to their embedding vectors.
type Table map[string][]float32

// Keys returns the ids of t in ascending order.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Dim returns the common vector length of t. An empty table has dimension 0.
func (t Table) Dim() (int, error) {
	dim := -1
	var first string
	for _, k := range t.Keys() {
		n := len(t[k])
		if dim == -1 {
			dim, first = n, k
			continue
		}
		if n != dim {
			return 0, fmt.Errorf("%w: %q has %d, %q has %d", ErrMixedDimensions, first, dim, k, n)
		}
	}
	if dim == -1 {
		return 0, nil
	}
	return dim, nil
}

// CheckFinite returns ErrNonFinite for the first id, in ascending order,
// whose vector holds a NaN or infinite component.
func (t Table) CheckFinite() error {
	for _, k := range t.Keys() {
		if j, ok := nonFinite(t[k]); ok {
			return fmt.Errorf("%w: %q component %d", ErrNonFinite, k, j)
		}
	}
	return nil
}

func nonFinite(vec []float32) (int, bool) {
	for j, f := range vec {
		if !isFinite(float64(f)) {
			return j, true
		}
	}
	return 0, false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Filter returns the entries of t whose id classifies as kind.
func (t Table) Filter(kind entity.Kind) Table {
	out := make(Table)
	for k, v := range t {
		if entity.Classify(k) == kind {
			out[k] = v
		}
	}
	return out
}

// SplitBlank returns the graph-A and graph-B blank node tables of t.
func SplitBlank(t Table) (a, b Table) {
	return t.Filter(entity.BlankA), t.Filter(entity.BlankB)
}

// FromVocabulary pairs every vocabulary entry with its row in vectors.
func FromVocabulary(v *entity.Vocabulary, vectors [][]float32) (Table, error) {
	if v.Len() != len(vectors) {
		return nil, fmt.Errorf("vocabulary has %d entities but %d vectors were given", v.Len(), len(vectors))
	}
	t := make(Table, len(vectors))
	for i, vec := range vectors {
		t[v.ID(i)] = vec
	}
	return t, nil
}
