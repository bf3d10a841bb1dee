package mapping

import "github.com/OFFIS-RIT/kgalign/pkg/entity"

// Report summarises a mapping against the naming ground truth of synthetic
// graph pairs, where both graph-local ids of a node share their suffix.
type Report struct {
	Pairs    int     `json:"pairs"`
	Correct  int     `json:"correct"`
	URIDiffs int     `json:"uri_diffs"`
	Accuracy float64 `json:"accuracy"`
}

// Evaluate counts the pairs whose shortened ids differ.
func Evaluate(m Mapping) Report {
	r := Report{Pairs: len(m)}
	for _, p := range m {
		if entity.Shorten(p.A) == entity.Shorten(p.B) {
			r.Correct++
		} else {
			r.URIDiffs++
		}
	}
	if r.Pairs > 0 {
		r.Accuracy = float64(r.Correct) / float64(r.Pairs)
	}
	return r
}
