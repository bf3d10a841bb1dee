package entity

import "fmt"

// Vocabulary is the trainer's entity index: position i holds the id whose
// embedding is row i. Kinds are classified once on construction.
type Vocabulary struct {
	ids   []string
	kinds []Kind
	index map[string]int
}

// NewVocabulary builds a vocabulary from ids in index order.
// Duplicate ids are rejected.
func NewVocabulary(ids []string) (*Vocabulary, error) {
	v := &Vocabulary{
		ids:   make([]string, len(ids)),
		kinds: make([]Kind, len(ids)),
		index: make(map[string]int, len(ids)),
	}
	for i, id := range ids {
		if prev, ok := v.index[id]; ok {
			return nil, fmt.Errorf("duplicate entity %q at index %d and %d", id, prev, i)
		}
		v.ids[i] = id
		v.kinds[i] = Classify(id)
		v.index[id] = i
	}
	return v, nil
}

// Len returns the number of entities.
func (v *Vocabulary) Len() int {
	return len(v.ids)
}

// ID returns the id at index i.
func (v *Vocabulary) ID(i int) string {
	return v.ids[i]
}

// KindAt returns the classified kind of the entity at index i.
// Out-of-range indices are Plain.
func (v *Vocabulary) KindAt(i int) Kind {
	if i < 0 || i >= len(v.kinds) {
		return Plain
	}
	return v.kinds[i]
}

// BlankIndices returns the ascending indices of all entities of kind k.
func (v *Vocabulary) BlankIndices(k Kind) []int {
	var out []int
	for i, kind := range v.kinds {
		if kind == k {
			out = append(out, i)
		}
	}
	return out
}
