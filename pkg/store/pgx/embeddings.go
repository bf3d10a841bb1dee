package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgalign/pkg/embedding"
	"github.com/OFFIS-RIT/kgalign/pkg/entity"
	"github.com/OFFIS-RIT/kgalign/pkg/logger"
	"github.com/OFFIS-RIT/kgalign/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

const deleteBlankEmbeddingsSQL = `
DELETE FROM blank_embeddings WHERE run_id = $1;
`

const insertBlankEmbeddingSQL = `
INSERT INTO blank_embeddings (run_id, entity, side, embedding)
VALUES ($1, $2, $3, $4);
`

const selectBlankEmbeddingsSQL = `
SELECT entity, side, embedding
FROM blank_embeddings
WHERE run_id = $1
ORDER BY entity;
`

const (
	sideA = "A"
	sideB = "B"
)

type blankRow struct {
	Entity string
	Side   string
	Vector []float32
}

// blankRows flattens both tables into insert rows, A before B, each side in
// key order.
func blankRows(a, b embedding.Table) []blankRow {
	rows := make([]blankRow, 0, len(a)+len(b))
	for _, k := range a.Keys() {
		rows = append(rows, blankRow{Entity: k, Side: sideA, Vector: a[k]})
	}
	for _, k := range b.Keys() {
		rows = append(rows, blankRow{Entity: k, Side: sideB, Vector: b[k]})
	}
	return rows
}

// sideOf maps a stored side back to a blank kind.
func sideOf(side string) (entity.Kind, error) {
	switch side {
	case sideA:
		return entity.BlankA, nil
	case sideB:
		return entity.BlankB, nil
	default:
		return entity.Plain, fmt.Errorf("unknown blank side %q", side)
	}
}

// SaveBlankEmbeddings replaces the stored blank-node vectors of a run.
func (s *RunDBStorage) SaveBlankEmbeddings(ctx context.Context, runID string, a, b embedding.Table) error {
	rows := blankRows(a, b)

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteBlankEmbeddingsSQL, runID); err != nil {
		return fmt.Errorf("failed to clear embeddings of run %s: %w", runID, err)
	}

	err = store.ChunkRange(len(rows), s.chunkSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, r := range rows[start:end] {
			batch.Queue(insertBlankEmbeddingSQL, runID, r.Entity, r.Side, pgvector.NewVector(r.Vector))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("failed to store embeddings of run %s: %w", runID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	logger.Debug("[Runs][SaveBlankEmbeddings] Stored blank embeddings", "run", runID, "a", len(a), "b", len(b))
	return nil
}

func (s *RunDBStorage) LoadBlankTables(ctx context.Context, runID string) (embedding.Table, embedding.Table, error) {
	rows, err := s.conn.Query(ctx, selectBlankEmbeddingsSQL, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load embeddings of run %s: %w", runID, err)
	}
	defer rows.Close()

	a := embedding.Table{}
	b := embedding.Table{}
	for rows.Next() {
		var id, side string
		var vec pgvector.Vector
		if err := rows.Scan(&id, &side, &vec); err != nil {
			return nil, nil, err
		}
		kind, err := sideOf(side)
		if err != nil {
			return nil, nil, err
		}
		if kind == entity.BlankA {
			a[id] = vec.Slice()
		} else {
			b[id] = vec.Slice()
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return a, b, nil
}
