// Package tokenize turns document text into the fingerprint token set
// consumed by the signature generator.
//
// Tokenization is hybrid: word n-grams catch reordered or lightly edited
// prose, while character n-grams catch near-duplicates that word
// boundaries miss (agglutinative scripts, markup noise, concatenated
// text). Both schemes are merged into a single set, so two documents
// compare over their combined shingle vocabulary.
package tokenize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Tokenizer produces fingerprint tokens from raw text. It is a pure
// function of (text, config): no internal state, safe for concurrent use.
type Tokenizer struct {
	// GraphemeNGram is the character n-gram size (0 disables the scheme)
	GraphemeNGram int

	// WordNGram is the word n-gram size (0 disables the scheme)
	WordNGram int
}

// New creates a Tokenizer with the given n-gram sizes.
func New(graphemeNGram, wordNGram int) *Tokenizer {
	return &Tokenizer{
		GraphemeNGram: graphemeNGram,
		WordNGram:     wordNGram,
	}
}

// Normalize canonicalizes text before shingling: NFKC normalization,
// lowercasing, and whitespace collapsing. Exposed so ingestion-side
// token counting agrees with tokenization.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ToLower(text)
	return strings.Join(strings.Fields(text), " ")
}

// Tokens returns the merged set of character and word n-grams for text.
// Empty text yields an empty set. Text shorter than one scheme's n
// contributes nothing from that scheme; there is no padding.
func (t *Tokenizer) Tokens(text string) map[string]struct{} {
	normalized := Normalize(text)
	if normalized == "" {
		return map[string]struct{}{}
	}

	set := make(map[string]struct{})
	t.wordNGrams(normalized, set)
	t.graphemeNGrams(normalized, set)
	return set
}

// wordNGrams adds space-joined word shingles to set. A text with fewer
// words than WordNGram but at least one word contributes the whole
// joined text as a single shingle, so very short documents still
// fingerprint on the word scheme.
func (t *Tokenizer) wordNGrams(normalized string, set map[string]struct{}) {
	if t.WordNGram <= 0 {
		return
	}
	words := strings.Fields(normalized)
	if len(words) == 0 {
		return
	}
	if len(words) < t.WordNGram {
		set["w:"+strings.Join(words, " ")] = struct{}{}
		return
	}
	for i := 0; i+t.WordNGram <= len(words); i++ {
		set["w:"+strings.Join(words[i:i+t.WordNGram], " ")] = struct{}{}
	}
}

// graphemeNGrams adds rune-level n-grams of the normalized text to set.
// Runs over the full normalized string, spaces included, so shingles
// spanning word boundaries participate too. Text shorter than the
// n-gram size contributes nothing.
func (t *Tokenizer) graphemeNGrams(normalized string, set map[string]struct{}) {
	if t.GraphemeNGram <= 0 {
		return
	}
	runes := []rune(normalized)
	if len(runes) < t.GraphemeNGram {
		return
	}
	for i := 0; i+t.GraphemeNGram <= len(runes); i++ {
		set["c:"+string(runes[i:i+t.GraphemeNGram])] = struct{}{}
	}
}

// TokenCount returns the whitespace word count of the normalized text.
// This is the count stored on Document and used for representative
// selection.
func TokenCount(text string) int {
	return len(strings.Fields(Normalize(text)))
}
