package glossary

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// KeyNormalizer transforms a variant string before it is used as a lookup key.
type KeyNormalizer func(string) string

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeKey lowercases and trims but preserves accents. This is the
// default: the glossary language is accent-bearing and "conformen" and
// "confórmen" are different surface forms.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeKeyASCII lowercases, trims, and strips accents, for glossary
// sources with unreliable accent usage.
func NormalizeKeyASCII(s string) string {
	result, _, _ := transform.String(stripAccents, strings.ToLower(strings.TrimSpace(s)))
	return result
}

// GetKeyNormalizer returns the normalizer for the given mode.
// Default is lowercase_utf8.
func GetKeyNormalizer(mode string) KeyNormalizer {
	switch mode {
	case "lowercase_ascii":
		return NormalizeKeyASCII
	case "lowercase_utf8":
		return NormalizeKey
	default:
		return NormalizeKey
	}
}
