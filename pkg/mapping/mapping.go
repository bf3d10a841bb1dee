// Package mapping holds blank node alignments and their text file format.
//
// A mapping file has one pair per line, `<idA>>-<idB>`, in the order the
// pairs were selected.
package mapping

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Separator joins the two ids of a pair on one line.
const Separator = ">-<"

// ErrMalformedLine is returned by Parse for lines without a separator.
var ErrMalformedLine = errors.New("malformed mapping line")

// Pair is one aligned blank node pair. Distance is the squared euclidean
// distance at the time the pair was selected; it is zero for parsed pairs.
type Pair struct {
	A        string  `json:"a"`
	B        string  `json:"b"`
	Distance float64 `json:"distance"`
}

// Mapping is an ordered list of pairs.
type Mapping []Pair

// Validate checks that no id is used twice on either side.
func (m Mapping) Validate() error {
	seenA := make(map[string]int, len(m))
	seenB := make(map[string]int, len(m))
	for i, p := range m {
		if j, ok := seenA[p.A]; ok {
			return fmt.Errorf("%q is mapped at position %d and %d", p.A, j, i)
		}
		if j, ok := seenB[p.B]; ok {
			return fmt.Errorf("%q is mapped at position %d and %d", p.B, j, i)
		}
		seenA[p.A] = i
		seenB[p.B] = i
	}
	return nil
}

// Write writes m to w in mapping file format.
func Write(w io.Writer, m Mapping) error {
	bw := bufio.NewWriter(w)
	for _, p := range m {
		if _, err := bw.WriteString(p.A + Separator + p.B + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes m to path, truncating an existing file.
func WriteFile(path string, m Mapping) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create mapping file: %w", err)
	}
	if err := Write(f, m); err != nil {
		f.Close()
		return fmt.Errorf("failed to write mapping file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close mapping file: %w", err)
	}
	return nil
}

// Parse reads a mapping file. Each line is split at its first separator;
// empty lines are skipped.
func Parse(r io.Reader) (Mapping, error) {
	var m Mapping
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" {
			continue
		}
		a, b, ok := strings.Cut(text, Separator)
		if !ok {
			return nil, fmt.Errorf("%w at line %d", ErrMalformedLine, line)
		}
		m = append(m, Pair{A: a, B: b})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mapping: %w", err)
	}
	return m, nil
}

// ReadFile parses the mapping file at path.
func ReadFile(path string) (Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// FileName returns the conventional file name for a mapping computed from
// embeddings of the given model, epoch count and dimension.
func FileName(model string, epochs, dim int) string {
	return fmt.Sprintf("mapping-%s-epochs-%04d-dim-%03d.txt", model, epochs, dim)
}
