// Package objective provides training objectives that an embedding trainer
// plugs into its training step.
//
// The trainer owns batching, the forward pass and parameter updates. Per
// step it hands the objective its model and the current batch and receives
// the scalar loss together with the gradient of that loss with respect to the
// raw model scores.
package objective

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShapeMismatch is returned when scores, targets and inputs disagree in size.
	ErrShapeMismatch = errors.New("batch shape mismatch")
	// ErrEmptyBatch is returned for batches without entries.
	ErrEmptyBatch = errors.New("empty batch")
	// ErrSubjectRange is returned for subject indices outside the vocabulary.
	ErrSubjectRange = errors.New("subject index out of range")
)

// Batch is one training step worth of data in KvsAll layout.
type Batch struct {
	// Inputs holds one index row per sample; column 0 is the subject entity.
	Inputs [][]int
	// Targets holds one multi-hot row per sample over the entity vocabulary.
	Targets *mat.Dense
}

// Model produces raw, pre-sigmoid scores shaped like the batch targets.
type Model interface {
	Forward(inputs [][]int) (*mat.Dense, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(inputs [][]int) (*mat.Dense, error)

// Forward calls f.
func (f ModelFunc) Forward(inputs [][]int) (*mat.Dense, error) {
	return f(inputs)
}

// Result is the outcome of one training step.
type Result struct {
	Loss float64
	// Grad is dLoss/dScores, shaped like the scores.
	Grad *mat.Dense
	// NeutralizedRows counts the batch rows whose targets were rewritten.
	NeutralizedRows int
}

// Objective is the training step strategy a trainer is configured with.
type Objective interface {
	Step(model Model, batch Batch) (Result, error)
}

// Plain is weighted binary cross entropy on the unmodified targets.
type Plain struct {
	Loss WeightedBCE
}

// NewPlain returns a Plain objective with default loss settings.
func NewPlain() *Plain {
	return &Plain{Loss: DefaultLoss()}
}

// Step implements Objective.
func (p *Plain) Step(model Model, batch Batch) (Result, error) {
	if err := checkBatch(batch); err != nil {
		return Result{}, err
	}
	return forwardAndScore(model, batch.Inputs, batch.Targets, p.Loss)
}

func checkBatch(batch Batch) error {
	if batch.Targets == nil || batch.Targets.IsEmpty() {
		return ErrEmptyBatch
	}
	rows, _ := batch.Targets.Dims()
	if len(batch.Inputs) != rows {
		return fmt.Errorf("%w: %d input rows, %d target rows", ErrShapeMismatch, len(batch.Inputs), rows)
	}
	for i, in := range batch.Inputs {
		if len(in) == 0 {
			return fmt.Errorf("%w: input row %d has no subject", ErrShapeMismatch, i)
		}
	}
	return nil
}

func forwardAndScore(model Model, inputs [][]int, targets *mat.Dense, loss WeightedBCE) (Result, error) {
	scores, err := model.Forward(inputs)
	if err != nil {
		return Result{}, fmt.Errorf("forward pass failed: %w", err)
	}
	value, grad, err := loss.Compute(scores, targets)
	if err != nil {
		return Result{}, err
	}
	return Result{Loss: value, Grad: grad}, nil
}
