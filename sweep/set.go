package sweep

import "github.com/weiihann/reorderbench/harness"

// ResultSet is a deduplicated collection of results. It remembers
// insertion order so rendering and tie-breaking stay deterministic.
type ResultSet struct {
	seen    map[string]struct{}
	results []harness.Result
}

// NewResultSet returns an empty set.
func NewResultSet() *ResultSet {
	return &ResultSet{seen: make(map[string]struct{})}
}

// Add inserts r and reports whether it was new. A result identical to one
// already present is dropped.
func (s *ResultSet) Add(r harness.Result) bool {
	key := r.Key()
	if _, ok := s.seen[key]; ok {
		return false
	}

	s.seen[key] = struct{}{}
	s.results = append(s.results, r)

	return true
}

// Len returns the number of distinct results.
func (s *ResultSet) Len() int {
	return len(s.results)
}

// Results returns the distinct results in insertion order.
func (s *ResultSet) Results() []harness.Result {
	return append([]harness.Result(nil), s.results...)
}
