// Package text normalizes raw input into the bare lowercase word tokens the
// G2P model was trained on.
package text

import (
	"strings"
	"unicode"
)

// Normalize lowercases the input and splits it into whitespace-delimited
// words, stripping punctuation attached to word boundaries. Apostrophes and
// hyphens inside a word are kept ("isn't", "blue-green"). Tokens that are
// pure punctuation disappear. Empty or whitespace-only input yields nil.
func Normalize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return nil
	}

	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, isBoundaryPunct)
		if w == "" {
			continue
		}

		words = append(words, w)
	}

	if len(words) == 0 {
		return nil
	}

	return words
}

func isBoundaryPunct(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
