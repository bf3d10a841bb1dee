package match

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/OFFIS-RIT/kgalign/pkg/embedding"
	"github.com/OFFIS-RIT/kgalign/pkg/mapping"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGreedyClosestFirst(t *testing.T) {
	a := embedding.Table{"a1": {0, 0}, "a2": {10, 10}}
	b := embedding.Table{"b1": {0.1, 0.1}, "b2": {9, 11}}

	got, err := Greedy(a, b)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].A)
	assert.Equal(t, "b1", got[0].B)
	assert.Equal(t, "a2", got[1].A)
	assert.Equal(t, "b2", got[1].B)
	assert.InDelta(t, 0.02, got[0].Distance, 1e-6)
	assert.InDelta(t, 2.0, got[1].Distance, 1e-6)
}

func TestGreedyIsNotOptimal(t *testing.T) {
	// The closest pair (a1,b1) is taken first even though (a1,b2)+(a2,b1)
	// would be cheaper overall.
	a := embedding.Table{"a1": {0}, "a2": {1.1}}
	b := embedding.Table{"b1": {0.4}, "b2": {-0.6}}

	got, err := Greedy(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, []string{got[0].A, got[1].A})
	assert.Equal(t, []string{"b1", "b2"}, []string{got[0].B, got[1].B})
	assert.Greater(t, got[0].Distance+got[1].Distance, 0.36+0.49)
}

func TestGreedyTieBreaksByID(t *testing.T) {
	a := embedding.Table{"a2": {0, 0}, "a1": {0, 0}}
	b := embedding.Table{"b2": {1, 0}, "b1": {1, 0}}

	got, err := Greedy(a, b)
	require.NoError(t, err)
	assert.Equal(t, mapping.Mapping{
		{A: "a1", B: "b1", Distance: 1},
		{A: "a2", B: "b2", Distance: 1},
	}, got)

	// a single row equidistant to two columns picks the smaller column id
	got, err = Greedy(embedding.Table{"a": {0}}, embedding.Table{"y": {1}, "x": {-1}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].B)
}

func TestGreedyEmptySides(t *testing.T) {
	full := embedding.Table{"a": {1, 2}}

	got, err := Greedy(embedding.Table{}, full)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Greedy(full, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGreedyDimensionMismatch(t *testing.T) {
	_, err := Greedy(embedding.Table{"a": {1, 2}}, embedding.Table{"b": {1, 2, 3}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Greedy(embedding.Table{"a1": {1, 2}, "a2": {1}}, embedding.Table{"b": {1, 2}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.ErrorIs(t, err, embedding.ErrMixedDimensions)
}

func TestGreedyRejectsNonFiniteVectors(t *testing.T) {
	nan := float32(math.NaN())

	// a NaN row would otherwise be scanned first and shadow the exact a1-b1 match
	_, err := Greedy(
		embedding.Table{"a0": {nan}, "a1": {5}},
		embedding.Table{"b0": {100}, "b1": {5}},
	)
	require.ErrorIs(t, err, embedding.ErrNonFinite)
	assert.Contains(t, err.Error(), "graph A")

	_, err = Greedy(
		embedding.Table{"a0": {1}},
		embedding.Table{"b0": {float32(math.Inf(-1))}},
	)
	require.ErrorIs(t, err, embedding.ErrNonFinite)
	assert.Contains(t, err.Error(), "graph B")
}

func TestGreedyDoesNotMutateInputs(t *testing.T) {
	a := embedding.Table{"a1": {1, 2}, "a2": {3, 4}}
	b := embedding.Table{"b1": {5, 6}}

	_, err := Greedy(a, b)
	require.NoError(t, err)
	assert.Equal(t, embedding.Table{"a1": {1, 2}, "a2": {3, 4}}, a)
	assert.Equal(t, embedding.Table{"b1": {5, 6}}, b)
}

func TestDistanceMatrix(t *testing.T) {
	a := embedding.Table{"a1": {0, 0}, "a2": {1, 1}}
	b := embedding.Table{"b1": {0, 1}, "b2": {3, 4}, "b3": {1, 1}}

	dist, err := DistanceMatrix(a.Keys(), b.Keys(), a, b)
	require.NoError(t, err)

	r, c := dist.Dims()
	require.Equal(t, 2, r)
	require.Equal(t, 3, c)
	want := [][]float64{
		{1, 25, 2},
		{1, 13, 0},
	}
	for i := range want {
		for j := range want[i] {
			assert.InDelta(t, want[i][j], dist.At(i, j), 1e-6, "entry %d,%d", i, j)
		}
	}
}

func randomTable(rng *rand.Rand, prefix string, n, dim int) embedding.Table {
	t := make(embedding.Table, n)
	for i := range n {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = float32(rng.NormFloat64())
		}
		t[fmt.Sprintf("%s%03d", prefix, i)] = vec
	}
	return t
}

func naiveDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func TestGreedyCoverageAndStepMinimality(t *testing.T) {
	sizes := [][2]int{{1, 1}, {5, 5}, {7, 3}, {3, 9}, {20, 17}}
	rng := rand.New(rand.NewPCG(7, 11))

	for _, size := range sizes {
		t.Run(fmt.Sprintf("%dx%d", size[0], size[1]), func(t *testing.T) {
			a := randomTable(rng, "<■0■", size[0], 8)
			b := randomTable(rng, "<■1■", size[1], 8)

			liveA := make(map[string]bool, len(a))
			for k := range a {
				liveA[k] = true
			}
			liveB := make(map[string]bool, len(b))
			for k := range b {
				liveB[k] = true
			}

			var steps []Step
			matcher := New(Options{OnStep: func(s Step) {
				require.True(t, liveA[s.Pair.A], "A id reused: %s", s.Pair.A)
				require.True(t, liveB[s.Pair.B], "B id reused: %s", s.Pair.B)

				chosen := naiveDistance(a[s.Pair.A], b[s.Pair.B])
				assert.InDelta(t, chosen, s.Pair.Distance, 1e-4)
				for ka := range liveA {
					for kb := range liveB {
						other := naiveDistance(a[ka], b[kb])
						assert.LessOrEqual(t, chosen, other+1e-4, "step %d: %s-%s beats the selection", s.Index, ka, kb)
					}
				}

				delete(liveA, s.Pair.A)
				delete(liveB, s.Pair.B)
				assert.Equal(t, len(liveA), s.RemainingA)
				assert.Equal(t, len(liveB), s.RemainingB)
				steps = append(steps, s)
			}})

			got, err := matcher.Match(a, b)
			require.NoError(t, err)

			want := min(size[0], size[1])
			assert.Len(t, got, want)
			assert.Len(t, steps, want)
			assert.NoError(t, got.Validate())
			for i, s := range steps {
				assert.Equal(t, i, s.Index)
				assert.Equal(t, got[i], s.Pair)
			}
		})
	}
}

func TestGreedyRecoversPerturbedCopy(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	a := randomTable(rng, "<■0■", 30, 16)
	b := make(embedding.Table, len(a))
	for k, v := range a {
		shifted := make([]float32, len(v))
		for i := range v {
			shifted[i] = v[i] + float32(rng.NormFloat64()*1e-3)
		}
		b["<■1■"+k[len("<■0■"):]] = shifted
	}

	got, err := Greedy(a, b)
	require.NoError(t, err)
	report := mapping.Evaluate(got)
	assert.Equal(t, 30, report.Correct)
	assert.Zero(t, report.URIDiffs)
	assert.False(t, math.IsNaN(got[0].Distance))
}
