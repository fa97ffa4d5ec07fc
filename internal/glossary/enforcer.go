// Package glossary applies preferred-term substitutions onto already
// translated text. It never translates; it only rewrites occurrences of
// source terms into their destination terms.
package glossary

import (
	"strings"
	"unicode"
)

// Term is one src→dst substitution.
type Term struct {
	Src string
	Dst string
}

// Mapping is an ordered term set. Substitution iterates terms in insertion
// order; for overlapping matches the last writer wins, which is an accepted
// limitation rather than a longest-match guarantee.
type Mapping struct {
	terms []Term
	index map[string]int
}

// NewMapping builds a mapping from terms, keeping first-seen order and
// letting later duplicates of the same source overwrite the destination.
func NewMapping(terms ...Term) *Mapping {
	m := &Mapping{index: make(map[string]int)}
	for _, t := range terms {
		m.Add(t.Src, t.Dst)
	}
	return m
}

// Add appends or updates a term without disturbing insertion order.
func (m *Mapping) Add(src, dst string) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[src]; ok {
		m.terms[i].Dst = dst
		return
	}
	m.index[src] = len(m.terms)
	m.terms = append(m.terms, Term{Src: src, Dst: dst})
}

// Len returns the number of distinct source terms.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.terms)
}

// Terms returns the term list in insertion order.
func (m *Mapping) Terms() []Term {
	if m == nil {
		return nil
	}
	return m.terms
}

// Counts accumulates per-term replacement counts across Apply calls.
type Counts map[string]int

// Apply rewrites text with the mapping and records occurrence counts per
// source term. Matching is case-insensitive; the exact-case, capitalized and
// all-upper variants of each source are replaced (the all-upper variant maps
// to the upper-cased destination). An empty or nil mapping returns the input
// unchanged.
func Apply(text string, m *Mapping, counts Counts) string {
	if m.Len() == 0 {
		return text
	}
	for _, term := range m.terms {
		if term.Src == "" {
			continue
		}
		lower := strings.ToLower(text)
		srcLower := strings.ToLower(term.Src)
		if !strings.Contains(lower, srcLower) {
			continue
		}
		if counts != nil {
			counts[term.Src] += strings.Count(lower, srcLower)
		}
		text = strings.ReplaceAll(text, term.Src, term.Dst)
		text = strings.ReplaceAll(text, capitalize(term.Src), term.Dst)
		text = strings.ReplaceAll(text, strings.ToUpper(term.Src), strings.ToUpper(term.Dst))
	}
	return text
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
