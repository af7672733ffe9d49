package lemma

import (
	"context"
	"encoding/csv"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

// Form is the lemma-table record for one inflected surface form.
type Form struct {
	Lemma string
	POS   string
}

// DictLemmatizer is a dictionary-backed lemmatizer: a form→lemma table plus a
// rune-class tokenizer. It covers deployments without an NLP sidecar; forms
// missing from the table keep their lowercased surface text as lemma.
type DictLemmatizer struct {
	forms map[string]Form
	name  string
}

// NewDictLemmatizer wraps an already-built form table.
func NewDictLemmatizer(forms map[string]Form) *DictLemmatizer {
	if forms == nil {
		forms = make(map[string]Form)
	}
	return &DictLemmatizer{forms: forms, name: "lemma-dict"}
}

// LoadDictLemmatizer reads a lemma table from path. A .gob file takes
// priority; otherwise the file is parsed as semicolon CSV with a
// form;lemma;pos header.
func LoadDictLemmatizer(path string) (*DictLemmatizer, error) {
	if strings.HasSuffix(path, ".gob") {
		return loadGob(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lemma table: %w", err)
	}
	defer f.Close()
	return loadCSV(f)
}

func loadCSV(reader io.Reader) (*DictLemmatizer, error) {
	r := csv.NewReader(reader)
	r.Comma = ';'
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read lemma table header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("lemma table needs form;lemma[;pos] columns, got %v", header)
	}

	forms := make(map[string]Form)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read lemma row: %w", err)
		}
		if len(record) < 2 {
			continue
		}
		form := strings.ToLower(strings.TrimSpace(record[0]))
		lemmaText := strings.ToLower(strings.TrimSpace(record[1]))
		if form == "" || lemmaText == "" {
			continue
		}
		pos := ""
		if len(record) > 2 {
			pos = strings.ToUpper(strings.TrimSpace(record[2]))
		}
		forms[form] = Form{Lemma: lemmaText, POS: pos}
	}
	return NewDictLemmatizer(forms), nil
}

func loadGob(path string) (*DictLemmatizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lemma gob: %w", err)
	}
	defer f.Close()

	var forms map[string]Form
	if err := gob.NewDecoder(f).Decode(&forms); err != nil {
		return nil, fmt.Errorf("decode lemma gob: %w", err)
	}
	return NewDictLemmatizer(forms), nil
}

// SaveGob serializes a form table for fast loading.
func SaveGob(forms map[string]Form, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create lemma gob: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(forms); err != nil {
		return fmt.Errorf("encode lemma gob: %w", err)
	}
	return nil
}

// Name identifies this lemmatizer in detection reports.
func (d *DictLemmatizer) Name() string { return d.name }

// Len returns the number of known forms.
func (d *DictLemmatizer) Len() int { return len(d.forms) }

// Lemmatize tokenizes text and resolves each word token against the form
// table. Unknown words keep their lowercased surface as lemma with an X tag.
func (d *DictLemmatizer) Lemmatize(_ context.Context, text string) ([]Token, error) {
	var tokens []Token
	for _, raw := range tokenize(text) {
		if isPunctToken(raw) {
			tokens = append(tokens, Token{Text: raw, Lemma: raw, POS: "PUNCT", IsPunct: true})
			continue
		}
		lower := strings.ToLower(raw)
		tok := Token{Text: raw, Lemma: lower, POS: "X"}
		if form, ok := d.forms[lower]; ok {
			tok.Lemma = form.Lemma
			if form.POS != "" {
				tok.POS = form.POS
			}
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// tokenize splits text into word and punctuation tokens. Words are runs of
// letters, digits, or in-word hyphens; every punctuation rune is its own
// token; whitespace separates but is not emitted.
func tokenize(text string) []string {
	var out []string
	var word []rune
	flush := func() {
		if len(word) > 0 {
			out = append(out, string(word))
			word = word[:0]
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			word = append(word, r)
		case r == '-' && len(word) > 0:
			word = append(word, r)
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			out = append(out, string(r))
		}
	}
	flush()
	return out
}

func isPunctToken(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return false
		}
	}
	return true
}
