// Package textutil provides the string-normalize-then-score matching used
// for memory deduplication: lowercase, strip punctuation, extract
// keywords, compare keyword sets by Jaccard overlap.
package textutil

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords are excluded from keyword sets.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "in": true, "is": true, "it": true,
	"its": true, "of": true, "on": true, "or": true, "that": true,
	"the": true, "this": true, "to": true, "was": true, "were": true,
	"will": true, "with": true, "not": true, "which": true, "when": true,
}

// Normalize lowercases text, maps punctuation to spaces, and collapses
// whitespace.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Keywords extracts the deduplicated, sorted keyword set of a text.
func Keywords(s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range strings.Fields(Normalize(s)) {
		if len(w) < 3 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Jaccard returns |a ∩ b| / |a ∪ b| for two keyword sets.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := map[string]bool{}
	for _, w := range a {
		set[w] = true
	}
	inter := 0
	union := len(set)
	seen := map[string]bool{}
	for _, w := range b {
		if seen[w] {
			continue
		}
		seen[w] = true
		if set[w] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Similarity scores two texts in [0,1] by keyword overlap.
func Similarity(a, b string) float64 {
	return Jaccard(Keywords(a), Keywords(b))
}

// Overlap scores a keyword set against a text's keywords.
func Overlap(keywords []string, text string) float64 {
	return Jaccard(keywords, Keywords(text))
}

// MergeKeywords unions keyword sets, deduplicated and sorted.
func MergeKeywords(sets ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, set := range sets {
		for _, w := range set {
			if seen[w] {
				continue
			}
			seen[w] = true
			out = append(out, w)
		}
	}
	sort.Strings(out)
	return out
}
