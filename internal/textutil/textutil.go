// File: internal/textutil/textutil.go
// Description: Pure text normalization and similarity primitives shared by
// template matching and app-name resolution. Everything here is total and
// deterministic; no errors, no I/O.
package textutil

import (
	"strings"
	"unicode"
)

// Normalize lowercases the input, strips every character outside
// [a-z0-9 whitespace], collapses runs of whitespace to single spaces and
// trims the result.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
		// Everything else (punctuation, symbols, non-latin letters) is dropped.
	}
	return strings.TrimRight(b.String(), " ")
}

// Tokenize splits an already normalized string into its whitespace-delimited
// tokens. Empty input yields a nil slice.
func Tokenize(normalized string) []string {
	return strings.Fields(normalized)
}

// Similarity returns the Jaccard index over the normalized token sets of a
// and b, in [0, 1]. If either side normalizes to the empty string the
// similarity is 0 by definition, not an error.
func Similarity(a, b string) float64 {
	ta := Tokenize(Normalize(a))
	tb := Tokenize(Normalize(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		setB[t] = struct{}{}
	}

	shared := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// LCSRatio returns the length of the longest common subsequence of a and b
// divided by the length of the longer string, in [0, 1]. This is the fuzzy
// metric for app label matching, where character order matters more than
// shared whole words.
func LCSRatio(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	ra := []rune(a)
	rb := []rune(b)

	// Single-row DP over the shorter dimension keeps allocation small.
	if len(rb) > len(ra) {
		ra, rb = rb, ra
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	longer := len(ra)
	return float64(prev[len(rb)]) / float64(longer)
}
