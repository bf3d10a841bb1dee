package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgalign/pkg/logger"
	"github.com/OFFIS-RIT/kgalign/pkg/mapping"
	"github.com/OFFIS-RIT/kgalign/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const deletePairsSQL = `
DELETE FROM mapping_pairs WHERE run_id = $1;
`

const insertPairsSQL = `
INSERT INTO mapping_pairs (run_id, position, entity_a, entity_b, distance)
SELECT $1, p.position, p.entity_a, p.entity_b, p.distance
FROM unnest($2::int[], $3::text[], $4::text[], $5::double precision[])
    AS p(position, entity_a, entity_b, distance);
`

const selectPairsSQL = `
SELECT entity_a, entity_b, distance
FROM mapping_pairs
WHERE run_id = $1
ORDER BY position;
`

type pairColumns struct {
	Positions []int32
	A         []string
	B         []string
	Distances []float64
}

// columnsOf splits m[start:end] into the arrays bound by insertPairsSQL.
// Positions are absolute so completion order survives chunking.
func columnsOf(m mapping.Mapping, start, end int) pairColumns {
	n := end - start
	cols := pairColumns{
		Positions: make([]int32, 0, n),
		A:         make([]string, 0, n),
		B:         make([]string, 0, n),
		Distances: make([]float64, 0, n),
	}
	for i := start; i < end; i++ {
		cols.Positions = append(cols.Positions, int32(i))
		cols.A = append(cols.A, m[i].A)
		cols.B = append(cols.B, m[i].B)
		cols.Distances = append(cols.Distances, m[i].Distance)
	}
	return cols
}

func (s *RunDBStorage) SaveMapping(ctx context.Context, runID string, m mapping.Mapping) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deletePairsSQL, runID); err != nil {
		return fmt.Errorf("failed to clear mapping of run %s: %w", runID, err)
	}

	err = store.ChunkRange(len(m), s.chunkSize, func(start, end int) error {
		cols := columnsOf(m, start, end)
		_, err := tx.Exec(ctx, insertPairsSQL, runID, cols.Positions, cols.A, cols.B, cols.Distances)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to store mapping of run %s: %w", runID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	logger.Debug("[Runs][SaveMapping] Stored mapping", "run", runID, "pairs", len(m))
	return nil
}

func (s *RunDBStorage) GetMapping(ctx context.Context, runID string) (mapping.Mapping, error) {
	rows, err := s.conn.Query(ctx, selectPairsSQL, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping of run %s: %w", runID, err)
	}
	pairs, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (mapping.Pair, error) {
		var p mapping.Pair
		err := row.Scan(&p.A, &p.B, &p.Distance)
		return p, err
	})
	if err != nil {
		return nil, err
	}
	return mapping.Mapping(pairs), nil
}
