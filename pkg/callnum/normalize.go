// CLAUDE:SUMMARY Canonical form of a raw call number: uppercase, NFKC, no hyphens, single spaces.
package callnum

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns the canonical form of a call number. It never fails and
// Normalize(Normalize(s)) == Normalize(s).
//
// Hyphens are dropped before whitespace is collapsed, so "S - 237" cannot
// leave a double space behind. NFKC runs again after hyphen removal and
// after uppercasing: removing a hyphen can bring a combining mark next to
// its base letter, and NFKC can turn "ª" into a lowercase "a".
func Normalize(s string) string {
	// Casers and transform chains carry state; build them per call.
	folded := transform.Chain(norm.NFKC, runes.Remove(runes.In(unicode.Hyphen)), norm.NFKC)
	s, _, _ = transform.String(folded, s)
	s = norm.NFKC.String(cases.Upper(language.Und).String(s))
	return strings.Join(strings.Fields(s), " ")
}
