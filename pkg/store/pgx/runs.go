package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kgalign/pkg/logger"
	"github.com/OFFIS-RIT/kgalign/pkg/mapping"
	"github.com/OFFIS-RIT/kgalign/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const insertRunSQL = `
INSERT INTO runs (id, embeddings_key, model, epochs, dim, state)
VALUES ($1, $2, $3, $4, $5, $6);
`

const selectRunSQL = `
SELECT id, embeddings_key, model, epochs, dim, state, mapping_key,
       pairs, correct, uri_diffs, accuracy, error, created_at, updated_at
FROM runs
WHERE id = $1;
`

const updateRunStateSQL = `
UPDATE runs
SET state = $2, error = $3, updated_at = now()
WHERE id = $1;
`

const completeRunSQL = `
UPDATE runs
SET state = $2, mapping_key = $3, pairs = $4, correct = $5, uri_diffs = $6,
    accuracy = $7, error = '', updated_at = now()
WHERE id = $1;
`

func (s *RunDBStorage) CreateRun(ctx context.Context, run store.Run) error {
	state := run.State
	if state == "" {
		state = store.RunPending
	}
	_, err := s.conn.Exec(ctx, insertRunSQL, run.ID, run.EmbeddingsKey, run.Model, run.Epochs, run.Dim, string(state))
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	logger.Debug("[Runs][CreateRun] Run created", "run", run.ID, "embeddings", run.EmbeddingsKey)
	return nil
}

func (s *RunDBStorage) GetRun(ctx context.Context, id string) (store.Run, error) {
	var run store.Run
	var state string
	err := s.conn.QueryRow(ctx, selectRunSQL, id).Scan(
		&run.ID,
		&run.EmbeddingsKey,
		&run.Model,
		&run.Epochs,
		&run.Dim,
		&state,
		&run.MappingKey,
		&run.Pairs,
		&run.Correct,
		&run.URIDiffs,
		&run.Accuracy,
		&run.Error,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return store.Run{}, fmt.Errorf("%w: %s", store.ErrRunNotFound, id)
		}
		return store.Run{}, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	run.State = store.RunState(state)
	return run, nil
}

func (s *RunDBStorage) UpdateRunState(ctx context.Context, id string, state store.RunState, message string) error {
	tag, err := s.conn.Exec(ctx, updateRunStateSQL, id, string(state), message)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrRunNotFound, id)
	}
	return nil
}

func (s *RunDBStorage) CompleteRun(ctx context.Context, id string, mappingKey string, report mapping.Report) error {
	tag, err := s.conn.Exec(ctx, completeRunSQL,
		id,
		string(store.RunCompleted),
		mappingKey,
		report.Pairs,
		report.Correct,
		report.URIDiffs,
		report.Accuracy,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrRunNotFound, id)
	}
	return nil
}
