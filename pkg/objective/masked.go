package objective

import (
	"fmt"
	"sync"

	"github.com/OFFIS-RIT/kgalign/pkg/entity"
	"github.com/OFFIS-RIT/kgalign/pkg/logger"

	"gonum.org/v1/gonum/mat"
)

// Masks flags, over the whole entity index space, the blank nodes of each graph.
type Masks struct {
	A []bool
	B []bool
}

// MaskBuilder derives Masks from a vocabulary.
type MaskBuilder func(v *entity.Vocabulary) Masks

// BuildMasks is the default MaskBuilder.
func BuildMasks(v *entity.Vocabulary) Masks {
	m := Masks{
		A: make([]bool, v.Len()),
		B: make([]bool, v.Len()),
	}
	for _, i := range v.BlankIndices(entity.BlankA) {
		m.A[i] = true
	}
	for _, i := range v.BlankIndices(entity.BlankB) {
		m.B[i] = true
	}
	return m
}

// MaskCache builds Masks on first use and serves the same masks afterwards.
// The vocabulary is fixed for a training run, so the masks never go stale.
type MaskCache struct {
	vocab *entity.Vocabulary
	build MaskBuilder

	once  sync.Once
	masks Masks
	colsA []int
	colsB []int
}

// NewMaskCache returns an empty cache for vocab. A nil builder selects BuildMasks.
func NewMaskCache(vocab *entity.Vocabulary, build MaskBuilder) *MaskCache {
	if build == nil {
		build = BuildMasks
	}
	return &MaskCache{vocab: vocab, build: build}
}

func (c *MaskCache) init() {
	c.once.Do(func() {
		c.masks = c.build(c.vocab)
		c.colsA = trueIndices(c.masks.A)
		c.colsB = trueIndices(c.masks.B)
		logger.Debug("Built blank node masks", "entities", c.vocab.Len(), "blank_a", len(c.colsA), "blank_b", len(c.colsB))
	})
}

// Masks returns the cached masks, building them if needed.
func (c *MaskCache) Masks() Masks {
	c.init()
	return c.masks
}

// Columns returns the target columns of the blank nodes of graph k.
func (c *MaskCache) Columns(k entity.Kind) []int {
	c.init()
	switch k {
	case entity.BlankA:
		return c.colsA
	case entity.BlankB:
		return c.colsB
	default:
		return nil
	}
}

func trueIndices(mask []bool) []int {
	var out []int
	for i, ok := range mask {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// Masked trains on targets in which every cross graph blank node entry has
// been replaced by NeutralValue. Whether a blank node of graph A corresponds
// to a blank node of graph B is what the alignment has to discover, so the
// model is neither pushed towards 0 nor towards 1 for such pairs.
type Masked struct {
	vocab *entity.Vocabulary
	cache *MaskCache
	loss  WeightedBCE

	builder MaskBuilder
}

// MaskedOption configures a Masked objective.
type MaskedOption func(*Masked)

// WithMaskBuilder replaces the function used to build the masks.
func WithMaskBuilder(b MaskBuilder) MaskedOption {
	return func(m *Masked) {
		m.builder = b
	}
}

// WithLoss replaces the loss settings.
func WithLoss(l WeightedBCE) MaskedOption {
	return func(m *Masked) {
		m.loss = l
	}
}

// NewMasked returns a Masked objective over vocab. The masks are built on the
// first Step and reused for the lifetime of the returned value.
func NewMasked(vocab *entity.Vocabulary, opts ...MaskedOption) *Masked {
	m := &Masked{
		vocab: vocab,
		loss:  DefaultLoss(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(m)
	}
	m.cache = NewMaskCache(vocab, m.builder)
	return m
}

// Neutralize returns a copy of targets in which rows with a graph-A blank
// subject carry NeutralValue at every graph-B blank column and vice versa,
// together with the number of rewritten rows. targets is not modified.
func (m *Masked) Neutralize(inputs [][]int, targets *mat.Dense) (*mat.Dense, int, error) {
	rows, cols := targets.Dims()
	if cols != m.vocab.Len() {
		return nil, 0, fmt.Errorf("%w: %d target columns, %d entities", ErrShapeMismatch, cols, m.vocab.Len())
	}
	if len(inputs) != rows {
		return nil, 0, fmt.Errorf("%w: %d input rows, %d target rows", ErrShapeMismatch, len(inputs), rows)
	}

	replace := make(map[entity.Kind][]int, 2)
	for i, in := range inputs {
		if len(in) == 0 {
			return nil, 0, fmt.Errorf("%w: input row %d has no subject", ErrShapeMismatch, i)
		}
		subject := in[0]
		if subject < 0 || subject >= m.vocab.Len() {
			return nil, 0, fmt.Errorf("%w: %d in row %d", ErrSubjectRange, subject, i)
		}
		if kind := m.vocab.KindAt(subject); kind.IsBlank() {
			replace[kind] = append(replace[kind], i)
		}
	}

	out := mat.DenseCopyOf(targets)
	rewritten := 0
	for kind, rows := range replace {
		neutralizeRows(out, rows, m.cache.Columns(kind.Other()))
		rewritten += len(rows)
	}
	return out, rewritten, nil
}

func neutralizeRows(targets *mat.Dense, rows, cols []int) {
	for _, i := range rows {
		row := targets.RawRowView(i)
		for _, j := range cols {
			row[j] = NeutralValue
		}
	}
}

// Step implements Objective.
func (m *Masked) Step(model Model, batch Batch) (Result, error) {
	if err := checkBatch(batch); err != nil {
		return Result{}, err
	}
	targets, rewritten, err := m.Neutralize(batch.Inputs, batch.Targets)
	if err != nil {
		return Result{}, err
	}
	res, err := forwardAndScore(model, batch.Inputs, targets, m.loss)
	if err != nil {
		return Result{}, err
	}
	res.NeutralizedRows = rewritten
	return res, nil
}
