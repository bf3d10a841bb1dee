package embedding

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/OFFIS-RIT/kgalign/pkg/entity"
)

// ReadCSV parses an entity embedding export. The first record is a header
// whose first cell is empty and whose remaining cells name the dimensions;
// every following record is `entity,v0,...,vD-1`. Record order defines the
// entity index.
func ReadCSV(r io.Reader) (*entity.Vocabulary, Table, error) {
	// FieldsPerRecord stays 0 so ragged rows fail against the header width.
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("embedding csv is empty")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read embedding csv header: %w", err)
	}
	dim := len(header) - 1
	if dim < 1 {
		return nil, nil, fmt.Errorf("embedding csv header has no dimension columns")
	}

	var ids []string
	var vectors [][]float32
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read embedding csv line %d: %w", line, err)
		}

		vec := make([]float32, dim)
		for j, cell := range record[1:] {
			f, err := strconv.ParseFloat(cell, 32)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d column %d: %w", line, j+1, err)
			}
			if !isFinite(f) {
				return nil, nil, fmt.Errorf("line %d column %d: %w", line, j+1, ErrNonFinite)
			}
			vec[j] = float32(f)
		}
		ids = append(ids, record[0])
		vectors = append(vectors, vec)
	}

	vocab, err := entity.NewVocabulary(ids)
	if err != nil {
		return nil, nil, err
	}
	table, err := FromVocabulary(vocab, vectors)
	if err != nil {
		return nil, nil, err
	}
	return vocab, table, nil
}
