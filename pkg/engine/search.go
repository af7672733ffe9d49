package engine

import (
	"context"
	"fmt"

	"github.com/calaix/esmena/pkg/embed"
)

// Search defaults. The threshold is inclusive: a match scoring exactly the
// threshold is returned.
const (
	DefaultTopK      = 5
	DefaultThreshold = float32(0.80)
)

// Match is one glossary entry found similar to a candidate term.
type Match struct {
	ID                string   `json:"id"`
	RecommendedTerm   string   `json:"recommended_term"`
	Variants          []string `json:"variants,omitempty"`
	UsageContext      string   `json:"usage_context,omitempty"`
	Category          string   `json:"category,omitempty"`
	Domain            string   `json:"domain,omitempty"`
	Notes             string   `json:"notes,omitempty"`
	Source            string   `json:"source,omitempty"`
	CorrectExamples   []string `json:"correct_examples,omitempty"`
	IncorrectExamples []string `json:"incorrect_examples,omitempty"`
	Similarity        float32  `json:"similarity"`
}

// Result pairs one queried term with its matches above the threshold,
// ordered by descending similarity.
type Result struct {
	Original string  `json:"original"`
	Matches  []Match `json:"matches"`
}

// Search embeds the candidate terms as one batch and returns, per term, the
// glossary entries whose similarity meets the threshold. k <= 0 selects
// DefaultTopK; threshold <= 0 selects DefaultThreshold.
func (e *Engine) Search(ctx context.Context, candidates []string, k int, threshold float32) ([]Result, error) {
	if e.embedder == nil {
		return nil, fmt.Errorf("%w: embedding model not loaded", ErrNotReady)
	}
	gen := e.snapshot()
	if gen == nil {
		return nil, fmt.Errorf("%w: index not built", ErrNotReady)
	}
	if len(candidates) == 0 {
		return []Result{}, nil
	}
	if k <= 0 {
		k = DefaultTopK
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	vectors, err := e.embedder.EmbedBatch(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("embed candidates: %w", err)
	}
	embed.NormalizeBatch(vectors)

	scores, positions, err := gen.Index.Search(vectors, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	results := make([]Result, len(candidates))
	for i, term := range candidates {
		matches := []Match{}
		for j, pos := range positions[i] {
			if pos < 0 || scores[i][j] < threshold {
				continue
			}
			entry := gen.Entries[pos]
			matches = append(matches, Match{
				ID:                entry.ID,
				RecommendedTerm:   entry.RecommendedTerm,
				Variants:          entry.Variants,
				UsageContext:      entry.UsageContext,
				Category:          entry.Category,
				Domain:            entry.Domain,
				Notes:             entry.Notes,
				Source:            entry.Source,
				CorrectExamples:   entry.CorrectExamples,
				IncorrectExamples: entry.IncorrectExamples,
				Similarity:        scores[i][j],
			})
		}
		results[i] = Result{Original: term, Matches: matches}
	}
	return results, nil
}
