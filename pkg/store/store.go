package store

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/kgalign/pkg/embedding"
	"github.com/OFFIS-RIT/kgalign/pkg/mapping"
)

// ErrRunNotFound is returned when no run exists for the given id.
var ErrRunNotFound = errors.New("run not found")

type RunState string

const (
	RunPending    RunState = "pending"
	RunProcessing RunState = "processing"
	RunCompleted  RunState = "completed"
	RunFailed     RunState = "failed"
)

// Run is one matching job: the embedding export it reads, the naming
// parameters of the mapping file it writes and, once completed, the
// evaluation of that mapping.
type Run struct {
	ID            string    `json:"id"`
	EmbeddingsKey string    `json:"embeddings_key"`
	Model         string    `json:"model"`
	Epochs        int       `json:"epochs"`
	Dim           int       `json:"dim"`
	State         RunState  `json:"state"`
	MappingKey    string    `json:"mapping_key,omitempty"`
	Pairs         int       `json:"pairs"`
	Correct       int       `json:"correct"`
	URIDiffs      int       `json:"uri_diffs"`
	Accuracy      float64   `json:"accuracy"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RunStorage persists runs, the blank-node embeddings a run matched and the
// resulting mapping.
type RunStorage interface {
	CreateRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	UpdateRunState(ctx context.Context, id string, state RunState, message string) error
	CompleteRun(ctx context.Context, id string, mappingKey string, report mapping.Report) error

	SaveBlankEmbeddings(ctx context.Context, runID string, a, b embedding.Table) error
	LoadBlankTables(ctx context.Context, runID string) (a, b embedding.Table, err error)

	// SaveMapping replaces the stored pairs of a run, keeping their order.
	SaveMapping(ctx context.Context, runID string, m mapping.Mapping) error
	GetMapping(ctx context.Context, runID string) (mapping.Mapping, error)
}
