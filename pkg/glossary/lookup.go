package glossary

// LookupRecord is the compact record a variant key resolves to.
type LookupRecord struct {
	ID              string `json:"id"`
	RecommendedTerm string `json:"recommended_term"`
	Category        string `json:"category"`
	UsageContext    string `json:"usage_context"`
	Variant         string `json:"variant"` // surface form as written in the glossary
}

// VariantLookup maps normalized known-incorrect forms to their lookup
// records. It is rebuilt wholesale whenever the canonical store changes and
// is never mutated afterwards, so concurrent reads need no locking.
type VariantLookup struct {
	records   map[string]LookupRecord
	normalize KeyNormalizer
}

// BuildVariantLookup derives the lookup from canonical entries. Pure: safe to
// call repeatedly. Keys collide on normalized form; the last entry written
// wins, which is acceptable because rebuilds publish atomically.
func BuildVariantLookup(entries []Entry, normalize KeyNormalizer) *VariantLookup {
	if normalize == nil {
		normalize = NormalizeKey
	}
	l := &VariantLookup{
		records:   make(map[string]LookupRecord),
		normalize: normalize,
	}
	for _, e := range entries {
		for _, v := range e.Variants {
			key := normalize(v)
			if key == "" {
				continue
			}
			l.records[key] = LookupRecord{
				ID:              e.ID,
				RecommendedTerm: e.RecommendedTerm,
				Category:        e.Category,
				UsageContext:    e.UsageContext,
				Variant:         v,
			}
		}
	}
	return l
}

// Get looks up a form. The key is normalized before lookup, so callers may
// pass raw surface text.
func (l *VariantLookup) Get(form string) (LookupRecord, bool) {
	rec, ok := l.records[l.normalize(form)]
	return rec, ok
}

// NormalizeForm applies this lookup's key normalizer to a form.
func (l *VariantLookup) NormalizeForm(form string) string {
	return l.normalize(form)
}

// Len returns the number of distinct variant keys.
func (l *VariantLookup) Len() int {
	return len(l.records)
}
