package callnum

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Compare orders two parsed codes field by field:
//
//  1. classification number, numerically
//  2. country: plain codes first, then alphabetical
//  3. Cutter letter, then Cutter digits as a decimal fraction
//  4. first title letter
//  5. suffix number as stored in the key (last two digits), numerically
//  6. remaining title letters, then the full suffix number
//
// Steps 3-5 follow the key field by field, so for two codes of the same
// type and country Compare and the comparable key never disagree; step 6
// only splits codes whose keys are equal. Across types and countries the
// key is type-major and country-major while Compare puts the
// classification number first.
func Compare(a, b ParsedCode) int {
	if c := cmp.Compare(atoi(a.ClassNumber), atoi(b.ClassNumber)); c != 0 {
		return c
	}
	// Fixed-width fractional digits compare as numbers.
	if c := strings.Compare(a.ClassDecimal, b.ClassDecimal); c != 0 {
		return c
	}
	if c := compareCountry(countryOf(a), countryOf(b)); c != 0 {
		return c
	}
	if c := strings.Compare(a.CutterMain, b.CutterMain); c != 0 {
		return c
	}
	if c := strings.Compare(a.CutterDecimal, b.CutterDecimal); c != 0 {
		return c
	}
	if c := strings.Compare(a.CutterSuffixLetter, b.CutterSuffixLetter); c != 0 {
		return c
	}
	if c := cmp.Compare(atoi(a.CutterSuffixNumber), atoi(b.CutterSuffixNumber)); c != 0 {
		return c
	}
	if c := strings.Compare(a.CutterTitle, b.CutterTitle); c != 0 {
		return c
	}
	return compareDigits(a.CutterEdition, b.CutterEdition)
}

// InRange reports start <= code <= end under Compare.
func InRange(code, start, end ParsedCode) bool {
	return Compare(code, start) >= 0 && Compare(code, end) <= 0
}

// ClassValue returns the classification number as a float, e.g. 511.33.
func ClassValue(c ParsedCode) float64 {
	v, err := strconv.ParseFloat(c.ClassNumber+"."+c.ClassDecimal, 64)
	if err != nil {
		return 0
	}
	return v
}

// ValidateRange parses both ends of a range and rejects it when the start
// key sorts after the end key.
func (p *Parser) ValidateRange(start, end string) (ParsedCode, ParsedCode, error) {
	s, err := p.Parse(start)
	if err != nil {
		return ParsedCode{}, ParsedCode{}, fmt.Errorf("range start: %w", err)
	}
	e, err := p.Parse(end)
	if err != nil {
		return ParsedCode{}, ParsedCode{}, fmt.Errorf("range end: %w", err)
	}
	if s.ComparableKey > e.ComparableKey {
		return ParsedCode{}, ParsedCode{}, fmt.Errorf("%w: %q > %q", ErrInvalidRangeOrder, start, end)
	}
	return s, e, nil
}

// ValidateRange uses the default whitelist.
func ValidateRange(start, end string) (ParsedCode, ParsedCode, error) {
	return defaultParser.ValidateRange(start, end)
}

func countryOf(c ParsedCode) string {
	if c.Type != LatinAmerican {
		return ""
	}
	return c.Country
}

func compareCountry(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// compareDigits compares two unbounded digit runs as integers.
func compareDigits(a, b string) int {
	a, b = strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
