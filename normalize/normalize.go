// Package normalize canonicalizes provider resource identifiers into
// comparison-safe keys. Cost-export rows and inventory listings often
// disagree on invisible formatting (zero-width characters, non-breaking
// spaces, trailing separators, case), which defeats exact-match joins.
package normalize

import (
	"strings"
	"unicode"
)

// Key canonicalizes a provider resource identifier: every whitespace,
// non-breaking-space and zero-width character is removed anywhere in the
// string, trailing path separators are trimmed, and the result is
// lowercased. Key is idempotent.
func Key(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		if stripped(r) {
			continue
		}
		b.WriteRune(r)
	}
	clean := strings.TrimRight(b.String(), "/")
	return strings.ToLower(clean)
}

// stripped reports whether the rune carries no identifier information.
// The zero-width family is not covered by unicode.IsSpace.
func stripped(r rune) bool {
	switch r {
	case '\u00a0', '\u200b', '\u200c', '\u200d', '\ufeff':
		return true
	}
	return unicode.IsSpace(r)
}
