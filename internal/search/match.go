package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// DefaultCutoff is the minimum Ratio for two field names to count as similar
const DefaultCutoff = 0.8

// Matcher finds recorded fields that resemble a set of requested fields
type Matcher struct {
	speller   SpellChecker
	thesaurus SynonymSource
	cutoff    float64
}

// NewMatcher builds a matcher. Either oracle may be nil, which disables the
// matching expansion step.
func NewMatcher(speller SpellChecker, thesaurus SynonymSource, cutoff float64) *Matcher {
	return &Matcher{
		speller:   speller,
		thesaurus: thesaurus,
		cutoff:    cutoff,
	}
}

// Cutoff returns the ratio threshold in use
func (m *Matcher) Cutoff() float64 {
	return m.cutoff
}

// Expand returns the requested words together with spelling corrections of
// unknown words and every synonym, sorted and without duplicates.
func (m *Matcher) Expand(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	add := func(w string) {
		if w != "" {
			seen[w] = struct{}{}
		}
	}

	for _, word := range words {
		add(word)
		if m.speller != nil && !m.speller.Known(word) {
			if correction, ok := m.speller.Correction(word); ok {
				add(correction)
			}
		}
		if m.thesaurus != nil {
			for _, synonym := range m.thesaurus.Synonyms(word) {
				add(synonym)
			}
		}
	}

	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// SimilarFields returns the candidates that, compared case-insensitively with
// at least one word, contain it, are contained by it, or reach the cutoff
// ratio. The result is sorted and never nil.
func (m *Matcher) SimilarFields(candidates, words []string) []string {
	out := []string{}
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if _, dup := seen[candidate]; dup {
			continue
		}
		for _, word := range words {
			if IsSubstring(candidate, word) || Ratio(candidate, word) >= m.cutoff {
				seen[candidate] = struct{}{}
				out = append(out, candidate)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Similar expands the requested words and matches them against candidates
func (m *Matcher) Similar(candidates, requested []string) []string {
	return m.SimilarFields(candidates, m.Expand(requested))
}

// IsSubstring reports whether either string contains the other, ignoring case
func IsSubstring(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(b, a) || strings.Contains(a, b)
}

// Ratio is the normalized indel similarity of a and b ignoring case:
// 2*LCS(a, b) / (len(a) + len(b)), in runes. Two empty strings are identical.
func Ratio(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	return float64(2*edlib.LCS(a, b)) / float64(total)
}
