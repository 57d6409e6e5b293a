// Package callnum parses bibliographic call numbers (plain Dewey and
// country-prefixed Latin-American literature codes) into a structured
// ParsedCode and a fixed-width comparable key.
//
// The comparable key is 22 bytes:
//
//	T(1) CC(2) CLS(3) DEC(6) CUT(1) CUTDEC(6) SUFL(1) SUFN(2)
//
// and byte-wise ordering of keys matches bibliographic ordering within a
// type, so a store can range-query it with plain string comparison.
package callnum

import "fmt"

// Field widths of the comparable key.
const (
	TypeWidth          = 1
	CountryWidth       = 2
	ClassNumberWidth   = 3
	ClassDecimalWidth  = 6
	CutterMainWidth    = 1
	CutterDecimalWidth = 6
	SuffixLetterWidth  = 1
	SuffixNumberWidth  = 2

	KeyLen = TypeWidth + CountryWidth + ClassNumberWidth + ClassDecimalWidth +
		CutterMainWidth + CutterDecimalWidth + SuffixLetterWidth + SuffixNumberWidth
)

// Sentinels used when a field is absent.
const (
	NoCountry      = "AA"
	NoCutterMain   = "0"
	NoSuffixLetter = "0"
)

// Type is the grammar family a code was parsed with.
type Type int

const (
	Dewey Type = iota
	LatinAmerican
)

func (t Type) String() string {
	switch t {
	case Dewey:
		return "DEWEY"
	case LatinAmerican:
		return "LATIN_AMERICAN"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Flag is the leading byte of the comparable key.
func (t Type) Flag() byte {
	if t == LatinAmerican {
		return 'L'
	}
	return 'D'
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	switch string(b) {
	case "DEWEY":
		*t = Dewey
	case "LATIN_AMERICAN":
		*t = LatinAmerican
	default:
		return fmt.Errorf("unknown code type %q", b)
	}
	return nil
}

// ParsedCode is the result of parsing one call number. It is a plain value:
// copy it freely, never mutate it.
//
// CutterTitle is the whole letter run after the Cutter digits ("CI" in G5CI)
// and CutterEdition the whole digit run after it ("123" in P123). The key
// keeps only the first title letter and the last two edition digits; Compare
// falls back to the full runs when everything in the key is equal.
type ParsedCode struct {
	Raw                string `json:"raw"`
	Normalized         string `json:"normalized"`
	Type               Type   `json:"type"`
	Country            string `json:"country"`
	ClassNumber        string `json:"class_number"`
	ClassDecimal       string `json:"class_decimal"`
	CutterMain         string `json:"cutter_main"`
	CutterDecimal      string `json:"cutter_decimal"`
	CutterSuffixLetter string `json:"cutter_suffix_letter"`
	CutterSuffixNumber string `json:"cutter_suffix_number"`
	CutterTitle        string `json:"cutter_title,omitempty"`
	CutterEdition      string `json:"cutter_edition,omitempty"`
	ComparableKey      string `json:"comparable_key"`
}

// Cutter reassembles the author Cutter (letter + digits) without padding.
func (c ParsedCode) Cutter() string {
	if c.CutterMain == NoCutterMain {
		return ""
	}
	return c.CutterMain + trimRight(c.CutterDecimal, '0')
}

func trimRight(s string, b byte) string {
	i := len(s)
	for i > 0 && s[i-1] == b {
		i--
	}
	return s[:i]
}
