package model

import "sort"

// UnseenCategoryCode is the code produced for category values that were not
// part of the training-time category set. Trees route it like any other
// value, so unseen categories degrade gracefully instead of erroring.
const UnseenCategoryCode = -1.0

// CategoryTable fixes the category set of one feature at training time.
// The table travels inside the model artifact so forecast-time encoding
// reproduces the training-time codes exactly.
type CategoryTable struct {
	Names []string `json:"names"` // sorted; code = index

	codes map[string]int
}

// NewCategoryTable builds a table from observed values. Sorting the unique
// values keeps codes stable across runs on identical data.
func NewCategoryTable(values []string) *CategoryTable {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for v := range seen {
		names = append(names, v)
	}
	sort.Strings(names)

	t := &CategoryTable{Names: names}
	t.index()
	return t
}

func (t *CategoryTable) index() {
	t.codes = make(map[string]int, len(t.Names))
	for i, n := range t.Names {
		t.codes[n] = i
	}
}

// Code encodes a value, mapping unseen categories to UnseenCategoryCode.
func (t *CategoryTable) Code(v string) float64 {
	if t.codes == nil {
		t.index()
	}
	if c, ok := t.codes[v]; ok {
		return float64(c)
	}
	return UnseenCategoryCode
}

// Size returns the number of known categories.
func (t *CategoryTable) Size() int { return len(t.Names) }
