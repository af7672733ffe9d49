package glossary

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Raw glossary records arrive in two shapes: structured submissions from the
// admin tool, and tabular rows from a spreadsheet export. Each shape has its
// own adapter producing canonical Entry values, so the engine never branches
// on field presence.

// Submission is the structured record shape accepted by the rebuild
// operation. Variants may be a JSON array or a single comma-separated string;
// both are normalized by the adapter.
type Submission struct {
	ID                string     `json:"id"`
	RecommendedTerm   string     `json:"recommended_term"`
	Variants          StringList `json:"variants"`
	UsageContext      string     `json:"usage_context"`
	Category          string     `json:"category"`
	Domain            string     `json:"domain"`
	Notes             string     `json:"notes"`
	Source            string     `json:"source"`
	CorrectExamples   []string   `json:"correct_examples"`
	IncorrectExamples []string   `json:"incorrect_examples"`
}

// FromSubmission converts one structured submission into a canonical Entry.
// Returns ok=false when the recommended term is empty after trimming; such
// records are silently excluded.
func FromSubmission(s Submission) (Entry, bool) {
	term := strings.TrimSpace(s.RecommendedTerm)
	if term == "" {
		return Entry{}, false
	}
	return Entry{
		ID:                strings.TrimSpace(s.ID),
		RecommendedTerm:   term,
		Variants:          trimNonEmpty(s.Variants),
		UsageContext:      strings.TrimSpace(s.UsageContext),
		Category:          strings.TrimSpace(s.Category),
		Domain:            strings.TrimSpace(s.Domain),
		Notes:             strings.TrimSpace(s.Notes),
		Source:            strings.TrimSpace(s.Source),
		CorrectExamples:   capExamples(s.CorrectExamples, MaxCorrectExamples),
		IncorrectExamples: capExamples(s.IncorrectExamples, MaxIncorrectExamples),
	}, true
}

// FromSubmissions converts a batch of submissions, dropping invalid records.
func FromSubmissions(subs []Submission) []Entry {
	entries := make([]Entry, 0, len(subs))
	for _, s := range subs {
		if e, ok := FromSubmission(s); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// Row is one tabular record keyed by its human-readable column name.
type Row map[string]string

// Column names as they appear in the spreadsheet export.
const (
	ColID              = "ID"
	ColRecommended     = "Terme recomanat"
	ColVariants        = "Terme no normatiu o inadequat"
	ColUsageContext    = "context d'ús"
	ColCategory        = "Categoria"
	ColDomain          = "Àmbit"
	ColNotes           = "Comentari/notes lingüístiques"
	ColSource          = "Font"
	colExamplePrefix   = "Exemple "
	colIncorrectPrefix = "Exemple incorrecte "
)

// FromRow converts one tabular row into a canonical Entry. Variant cells hold
// a comma-separated list. Returns ok=false when the recommended term is empty.
func FromRow(r Row) (Entry, bool) {
	term := strings.TrimSpace(r[ColRecommended])
	if term == "" {
		return Entry{}, false
	}
	e := Entry{
		ID:              strings.TrimSpace(r[ColID]),
		RecommendedTerm: term,
		Variants:        SplitVariants(r[ColVariants]),
		UsageContext:    strings.TrimSpace(r[ColUsageContext]),
		Category:        strings.TrimSpace(r[ColCategory]),
		Domain:          strings.TrimSpace(r[ColDomain]),
		Notes:           strings.TrimSpace(r[ColNotes]),
		Source:          strings.TrimSpace(r[ColSource]),
	}
	for i := 1; i <= MaxCorrectExamples; i++ {
		if ex := strings.TrimSpace(r[colExamplePrefix+itoa(i)]); ex != "" {
			e.CorrectExamples = append(e.CorrectExamples, ex)
		}
	}
	for i := 1; i <= MaxIncorrectExamples; i++ {
		if ex := strings.TrimSpace(r[colIncorrectPrefix+itoa(i)]); ex != "" {
			e.IncorrectExamples = append(e.IncorrectExamples, ex)
		}
	}
	return e, true
}

// SplitVariants splits a comma-separated variant cell into trimmed,
// non-empty strings.
func SplitVariants(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func trimNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if v := strings.TrimSpace(s); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func capExamples(in []string, max int) []string {
	out := make([]string, 0, max)
	for _, s := range in {
		if len(out) == max {
			break
		}
		if v := strings.TrimSpace(s); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func itoa(i int) string { return strconv.Itoa(i) }

// StringList unmarshals from either a JSON array of strings or a single
// comma-separated string. Spreadsheet-backed submitters send the latter.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = SplitVariants(s)
		return nil
	}
	return fmt.Errorf("variants: expected string array or comma-separated string")
}
