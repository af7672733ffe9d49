// Package embed abstracts the embedding model and provides the vector
// normalization the similarity index depends on.
package embed

import (
	"context"
	"math"
)

// Embedder converts text into fixed-width numeric vectors. Implementations
// are batchable; one call embeds all inputs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelID() string
}

// NormalizeL2 scales vec to unit length in place, so that inner product
// equals cosine similarity. Zero vectors are left untouched.
func NormalizeL2(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
}

// NormalizeBatch applies NormalizeL2 to every vector in place.
func NormalizeBatch(vecs [][]float32) {
	for _, v := range vecs {
		NormalizeL2(v)
	}
}
