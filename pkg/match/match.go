// Package match aligns the blank nodes of two graphs by greedy minimum
// distance assignment over their embedding vectors.
//
// Every iteration selects the globally closest pair among the still unmatched
// ids, records it and retires both ids. The result is one-to-one and covers
// the smaller side completely. It is not a minimum cost perfect matching:
// there is no backtracking once a pair is taken.
package match

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/OFFIS-RIT/kgalign/pkg/embedding"
	"github.com/OFFIS-RIT/kgalign/pkg/logger"
	"github.com/OFFIS-RIT/kgalign/pkg/mapping"

	"github.com/viterin/vek/vek32"
	"gonum.org/v1/gonum/mat"
)

// ErrDimensionMismatch is returned when vectors of the two tables, or within
// one table, differ in length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Step describes one completed iteration of the matcher.
type Step struct {
	// Index is the zero based iteration number.
	Index int
	Pair  mapping.Pair
	// RemainingA and RemainingB count the unmatched ids after this step.
	RemainingA int
	RemainingB int
}

// Options configures a Matcher.
type Options struct {
	// OnStep, if set, is called after every selected pair.
	OnStep func(Step)
}

// Matcher computes greedy blank node alignments.
type Matcher struct {
	opts Options
}

// New returns a Matcher with the given options.
func New(opts Options) *Matcher {
	return &Matcher{opts: opts}
}

// Greedy matches a against b with default options.
func Greedy(a, b embedding.Table) (mapping.Mapping, error) {
	return New(Options{}).Match(a, b)
}

// Match returns the pairs in selection order. Both tables are read only.
//
// Ties on the minimum distance go to the smallest graph-A id and then the
// smallest graph-B id: rows and columns are kept in ascending id order and
// the scan takes the first minimum in row-major order.
func (m *Matcher) Match(a, b embedding.Table) (mapping.Mapping, error) {
	if len(a) == 0 || len(b) == 0 {
		return mapping.Mapping{}, nil
	}

	start := time.Now()
	aKeys, bKeys := a.Keys(), b.Keys()
	dist, err := DistanceMatrix(aKeys, bKeys, a, b)
	if err != nil {
		return nil, err
	}

	rows := make([]int, len(aKeys))
	for i := range rows {
		rows[i] = i
	}
	cols := make([]int, len(bKeys))
	for j := range cols {
		cols[j] = j
	}

	result := make(mapping.Mapping, 0, min(len(rows), len(cols)))
	for step := 0; len(rows) > 0 && len(cols) > 0; step++ {
		bestRow, bestCol := -1, -1
		best := 0.0
		for ri, i := range rows {
			row := dist.RawRowView(i)
			for ci, j := range cols {
				if d := row[j]; bestRow < 0 || d < best {
					best, bestRow, bestCol = d, ri, ci
				}
			}
		}

		pair := mapping.Pair{
			A:        aKeys[rows[bestRow]],
			B:        bKeys[cols[bestCol]],
			Distance: best,
		}
		result = append(result, pair)
		rows = slices.Delete(rows, bestRow, bestRow+1)
		cols = slices.Delete(cols, bestCol, bestCol+1)

		if m.opts.OnStep != nil {
			m.opts.OnStep(Step{
				Index:      step,
				Pair:       pair,
				RemainingA: len(rows),
				RemainingB: len(cols),
			})
		}
	}

	logger.Debug(
		"Computed blank node mapping",
		"blank_a", len(aKeys),
		"blank_b", len(bKeys),
		"pairs", len(result),
		"duration", time.Since(start),
	)
	return result, nil
}

// DistanceMatrix returns the squared euclidean distances between every vector
// of a (rows, in aKeys order) and every vector of b (columns, in bKeys order).
// Tables holding NaN or infinite components are rejected with
// embedding.ErrNonFinite.
func DistanceMatrix(aKeys, bKeys []string, a, b embedding.Table) (*mat.Dense, error) {
	dimA, err := a.Dim()
	if err != nil {
		return nil, fmt.Errorf("%w: graph A: %w", ErrDimensionMismatch, err)
	}
	dimB, err := b.Dim()
	if err != nil {
		return nil, fmt.Errorf("%w: graph B: %w", ErrDimensionMismatch, err)
	}
	if dimA != dimB {
		return nil, fmt.Errorf("%w: graph A has %d, graph B has %d", ErrDimensionMismatch, dimA, dimB)
	}
	if len(aKeys) == 0 || len(bKeys) == 0 {
		return nil, fmt.Errorf("distance matrix needs at least one vector per side")
	}
	if err := a.CheckFinite(); err != nil {
		return nil, fmt.Errorf("graph A: %w", err)
	}
	if err := b.CheckFinite(); err != nil {
		return nil, fmt.Errorf("graph B: %w", err)
	}

	dist := mat.NewDense(len(aKeys), len(bKeys), nil)
	diff := make([]float32, dimA)
	for i, ka := range aKeys {
		va, ok := a[ka]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", ka)
		}
		row := dist.RawRowView(i)
		for j, kb := range bKeys {
			vb, ok := b[kb]
			if !ok {
				return nil, fmt.Errorf("no vector for %q", kb)
			}
			row[j] = squaredDistance(diff, va, vb)
		}
	}
	return dist, nil
}

func squaredDistance(buf, a, b []float32) float64 {
	if len(a) == 0 {
		return 0
	}
	vek32.Sub_Into(buf, a, b)
	return float64(vek32.Dot(buf, buf))
}
