package mapping

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, Mapping{{A: "X", B: "Y"}, {A: "P", B: "Q"}})
	require.NoError(t, err)
	assert.Equal(t, "X>-<Y\nP>-<Q\n", buf.String())
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName("TransE", 16, 32))
	m := Mapping{{A: "<■0■a>", B: "<■1■a>"}, {A: "<■0■b>", B: "<■1■c>"}}
	require.NoError(t, WriteFile(path, m))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<■0■a>>-<<■1■a>\n<■0■b>>-<<■1■c>\n", string(content))

	parsed, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, m, parsed)
}

func TestWriteFileMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "mapping.txt")
	err := WriteFile(path, Mapping{{A: "X", B: "Y"}})
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	m, err := Parse(strings.NewReader("X>-<Y\r\n\n<■0■a>>-<<■1■b>\n"))
	require.NoError(t, err)
	assert.Equal(t, Mapping{{A: "X", B: "Y"}, {A: "<■0■a>", B: "<■1■b>"}}, m)

	_, err = Parse(strings.NewReader("X>-<Y\nbroken\n"))
	assert.ErrorIs(t, err, ErrMalformedLine)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "mapping-TransE-epochs-0016-dim-032.txt", FileName("TransE", 16, 32))
	assert.Equal(t, "mapping-DistMult-epochs-0256-dim-128.txt", FileName("DistMult", 256, 128))
}

func TestValidate(t *testing.T) {
	m := Mapping{{A: "a1", B: "b1"}, {A: "a2", B: "b2"}}
	require.NoError(t, m.Validate())

	assert.Error(t, Mapping{{A: "a1", B: "b1"}, {A: "a1", B: "b2"}}.Validate())
	assert.Error(t, Mapping{{A: "a1", B: "b1"}, {A: "a2", B: "b1"}}.Validate())
}

func TestEvaluate(t *testing.T) {
	r := Evaluate(Mapping{
		{A: "<■0■n1>", B: "<■1■n1>"},
		{A: "<■0■n2>", B: "<■1■n3>"},
		{A: "<BlankNode#A4>", B: "<BlankNode#B4>"},
		{A: "<■0■n3>", B: "<■1■n2>"},
	})
	assert.Equal(t, Report{Pairs: 4, Correct: 2, URIDiffs: 2, Accuracy: 0.5}, r)
	assert.Equal(t, Report{}, Evaluate(nil))
}
