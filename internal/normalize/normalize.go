// Package normalize canonicalizes raw provider field values into comparable
// forms. All functions are pure, total, and idempotent; byte/character-level
// only, no locale-aware transliteration.
package normalize

import (
	"strings"
	"unicode"
)

// Phone strips whitespace, hyphens, parentheses, plus signs, and periods,
// leaving the residual digit/character sequence. Empty input yields "".
func Phone(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
		case r == '-' || r == '(' || r == ')' || r == '+' || r == '.':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Address lower-cases, trims, and collapses internal whitespace runs to a
// single space. Empty input yields "".
func Address(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
