package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/calaix/esmena/pkg/lemma"
)

// DefaultContextWindow is the number of tokens kept on each side of a match
// when the caller does not say otherwise.
const DefaultContextWindow = 3

// Detection strategies and the tag used for multi-word matches.
const (
	StrategyMultiword = "multiword"
	StrategyToken     = "token"
	TagMultiword      = "MWE"
)

// Candidate is one detected occurrence of a known-incorrect form.
type Candidate struct {
	Term            string `json:"term"`        // surface text as written
	MatchedKey      string `json:"matched_key"` // normalized form that hit the lookup
	Position        int    `json:"position"`    // token position of the match start
	Context         string `json:"context"`
	Tag             string `json:"tag"` // POS tag, or MWE for multi-word matches
	GlossaryID      string `json:"glossary_id"`
	RecommendedTerm string `json:"recommended_term"`
	Category        string `json:"category"`
	Strategy        string `json:"strategy"`
}

// DetectReport is the structured result of one detection call. A lemmatizer
// fault mid-scan sets Success=false with Error populated; it never affects
// other calls.
type DetectReport struct {
	Success    bool        `json:"success"`
	Candidates []Candidate `json:"candidates"`
	Lemmatizer string      `json:"lemmatizer"`
	Error      string      `json:"error,omitempty"`
}

// DetectCandidates scans text for occurrences of known variants in two
// passes: multi-word expressions longest-first, then lemma-aware single
// tokens. Candidates are returned sorted by start position.
func (e *Engine) DetectCandidates(ctx context.Context, text string, contextWindow int) (DetectReport, error) {
	if e.lemmatizer == nil {
		return DetectReport{}, fmt.Errorf("%w: lemmatizer not loaded", ErrNotReady)
	}
	gen := e.snapshot()
	if gen == nil {
		return DetectReport{}, fmt.Errorf("%w: variant lookup not built", ErrNotReady)
	}
	if contextWindow < 0 {
		contextWindow = DefaultContextWindow
	}

	report := DetectReport{Lemmatizer: e.lemmatizer.Name()}

	tokens, err := e.lemmatizer.Lemmatize(ctx, text)
	if err != nil {
		e.logger.Error("lemmatization failed", "error", err)
		report.Error = fmt.Sprintf("lemmatize: %v", err)
		return report, nil
	}

	lookup := gen.Lookup
	claimed := make(map[int]bool)
	var candidates []Candidate

	// Pass 1: multi-word expressions, longest match first. Windows touching
	// an already claimed position are skipped, so a 3-gram hit shadows the
	// 2-grams and single tokens inside it.
	for n := 4; n >= 2; n-- {
		for i := 0; i+n <= len(tokens); i++ {
			if anyClaimed(claimed, i, n) {
				continue
			}
			surface := joinTokens(tokens[i : i+n])
			rec, ok := lookup.Get(surface)
			if !ok {
				continue
			}
			for j := i; j < i+n; j++ {
				claimed[j] = true
			}
			candidates = append(candidates, Candidate{
				Term:            surface,
				MatchedKey:      lookup.NormalizeForm(surface),
				Position:        i,
				Context:         contextAround(tokens, i, n, contextWindow),
				Tag:             TagMultiword,
				GlossaryID:      rec.ID,
				RecommendedTerm: rec.RecommendedTerm,
				Category:        rec.Category,
				Strategy:        StrategyMultiword,
			})
		}
	}

	// Pass 2: single tokens, lemma before raw text.
	for i, tok := range tokens {
		if claimed[i] || tok.IsPunct || tok.IsSpace {
			continue
		}
		lemmaKey := strings.ToLower(tok.Lemma)
		rawKey := strings.ToLower(tok.Text)

		rec, ok := lookup.Get(lemmaKey)
		matched := lemmaKey
		if !ok {
			rec, ok = lookup.Get(rawKey)
			matched = rawKey
		}
		if !ok {
			continue
		}

		// Entries categorized as verbs sometimes match tokens tagged as
		// something else. Those matches are still emitted: suppressing them
		// produced false negatives on nominalized and participial forms.

		claimed[i] = true
		candidates = append(candidates, Candidate{
			Term:            tok.Text,
			MatchedKey:      lookup.NormalizeForm(matched),
			Position:        i,
			Context:         contextAround(tokens, i, 1, contextWindow),
			Tag:             tok.POS,
			GlossaryID:      rec.ID,
			RecommendedTerm: rec.RecommendedTerm,
			Category:        rec.Category,
			Strategy:        StrategyToken,
		})
	}

	// Passes interleave positions; present them in document order.
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Position < candidates[b].Position
	})

	report.Success = true
	report.Candidates = candidates
	return report, nil
}

func anyClaimed(claimed map[int]bool, start, n int) bool {
	for j := start; j < start+n; j++ {
		if claimed[j] {
			return true
		}
	}
	return false
}

func joinTokens(tokens []lemma.Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

func contextAround(tokens []lemma.Token, start, n, window int) string {
	lo := start - window
	if lo < 0 {
		lo = 0
	}
	hi := start + n + window
	if hi > len(tokens) {
		hi = len(tokens)
	}
	return joinTokens(tokens[lo:hi])
}
