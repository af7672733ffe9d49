// Package glossary holds the canonical glossary model: normalization of raw
// records from heterogeneous sources into Entry values, synthesis of the text
// each entry is embedded from, and the variant lookup used for exact and
// lemma-based detection.
package glossary

import "strings"

const (
	// MaxCorrectExamples is the number of correct usage examples kept per entry.
	MaxCorrectExamples = 3
	// MaxIncorrectExamples is the number of incorrect usage examples kept per entry.
	MaxIncorrectExamples = 2
)

// Entry is one canonical glossary record. Entries are immutable once built
// into a generation; an Entry with an empty RecommendedTerm never exists in
// the canonical store.
type Entry struct {
	ID                string   `json:"id"`
	RecommendedTerm   string   `json:"recommended_term"`
	Variants          []string `json:"variants"`
	UsageContext      string   `json:"usage_context"`
	Category          string   `json:"category"`
	Domain            string   `json:"domain"`
	Notes             string   `json:"notes"`
	Source            string   `json:"source"`
	CorrectExamples   []string `json:"correct_examples"`
	IncorrectExamples []string `json:"incorrect_examples"`
}

// nullPlaceholder is the literal some spreadsheet exports write for missing
// cells. It is treated as an empty field during embed-text synthesis.
const nullPlaceholder = "nan"

// EmbedText synthesizes the string an entry is embedded from. The order is
// deliberate: recommended term, then variants, then incorrect examples, then
// usage context. Query-time input is itself an incorrect usage, so the vector
// is biased toward the problem side of the entry, not the solution side.
func EmbedText(e Entry) string {
	parts := make([]string, 0, 2+len(e.Variants)+len(e.IncorrectExamples))
	parts = append(parts, e.RecommendedTerm)
	for _, v := range e.Variants {
		if v != "" && v != nullPlaceholder {
			parts = append(parts, v)
		}
	}
	for _, ex := range e.IncorrectExamples {
		if ex != "" && ex != nullPlaceholder {
			parts = append(parts, ex)
		}
	}
	if e.UsageContext != "" && e.UsageContext != nullPlaceholder {
		parts = append(parts, e.UsageContext)
	}
	return strings.Join(parts, " ")
}

// EmbedTexts synthesizes embed texts for a slice of entries, in order.
func EmbedTexts(entries []Entry) []string {
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = EmbedText(e)
	}
	return texts
}
