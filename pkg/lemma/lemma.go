// Package lemma abstracts tokenization and lemmatization. The engine only
// sees Token values; whether they come from a local dictionary or an external
// NLP sidecar is a deployment choice.
package lemma

import "context"

// Token is one token of the analyzed text, in document order.
type Token struct {
	Text    string `json:"text"`
	Lemma   string `json:"lemma"`
	POS     string `json:"pos"` // UPOS tag (VERB, NOUN, AUX, PUNCT, ...)
	IsPunct bool   `json:"is_punct"`
	IsSpace bool   `json:"is_space"`
}

// Lemmatizer produces tokens with base forms and part-of-speech tags.
type Lemmatizer interface {
	Lemmatize(ctx context.Context, text string) ([]Token, error)
	Name() string
}
