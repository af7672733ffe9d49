// Package index provides a flat inner-product similarity index and the
// persistence of an index together with its parallel entry store. Positions
// returned by Search are the only linkage between the two; they are always
// written and swapped as one artifact.
package index

import (
	"fmt"
	"sort"
)

// Flat is an exact (brute-force) inner-product index. With L2-normalized
// vectors the inner product is the cosine similarity. The index is immutable
// after building, so concurrent searches need no locking.
type Flat struct {
	dimension int
	vectors   [][]float32
}

// NewFlat creates an empty index for vectors of the given width.
func NewFlat(dimension int) (*Flat, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dimension)
	}
	return &Flat{dimension: dimension}, nil
}

// Dimension returns the vector width.
func (f *Flat) Dimension() int { return f.dimension }

// Size returns the number of stored vectors.
func (f *Flat) Size() int { return len(f.vectors) }

// Add appends vectors in order. Position in the index equals position in the
// parallel entry store.
func (f *Flat) Add(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != f.dimension {
			return fmt.Errorf("vector %d has dimension %d, index expects %d", i, len(v), f.dimension)
		}
	}
	f.vectors = append(f.vectors, vectors...)
	return nil
}

// Search returns, per query, the k highest inner-product scores with their
// positions in descending score order. When fewer than k vectors are stored,
// the remainder is padded with position -1, which callers must skip.
func (f *Flat) Search(queries [][]float32, k int) (scores [][]float32, positions [][]int, err error) {
	if k <= 0 {
		return nil, nil, fmt.Errorf("invalid k %d", k)
	}
	scores = make([][]float32, len(queries))
	positions = make([][]int, len(queries))
	for qi, q := range queries {
		if len(q) != f.dimension {
			return nil, nil, fmt.Errorf("query %d has dimension %d, index expects %d", qi, len(q), f.dimension)
		}

		all := make([]float32, len(f.vectors))
		for i, v := range f.vectors {
			all[i] = dot(q, v)
		}
		order := make([]int, len(all))
		for i := range order {
			order[i] = i
		}
		// Descending score; ties keep insertion order, matching the
		// deterministic tie-break the searcher documents.
		sort.SliceStable(order, func(a, b int) bool { return all[order[a]] > all[order[b]] })

		qScores := make([]float32, k)
		qPositions := make([]int, k)
		for i := 0; i < k; i++ {
			if i < len(order) {
				qScores[i] = all[order[i]]
				qPositions[i] = order[i]
			} else {
				qPositions[i] = -1
			}
		}
		scores[qi] = qScores
		positions[qi] = qPositions
	}
	return scores, positions, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
