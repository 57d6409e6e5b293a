// CLAUDE:SUMMARY Type detection, country whitelist and field extraction for Dewey and Latin-American call numbers.
package callnum

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// DefaultCountries is the whitelist of Latin-American country prefixes.
var DefaultCountries = []string{
	"AR", "BO", "CH", "CO", "CR", "CU", "EC",
	"SV", "GT", "HN", "MX", "NI", "PA", "PY", "PE",
	"PR", "DO", "UY", "VE",
}

var (
	countryShape  = regexp.MustCompile(`^[A-Z]{1,2}[- ]?\d`)
	countryPrefix = regexp.MustCompile(`^[A-Z]{1,2}[- ]?`)
	classPattern  = regexp.MustCompile(`^(\d{1,3})(?:\.(\d+))?$`)
)

// Parser parses call numbers against one country whitelist.
// A Parser is immutable after NewParser and safe for concurrent use.
type Parser struct {
	countries map[string]struct{}
}

// Option configures a Parser.
type Option func(*Parser)

// WithCountries replaces the country whitelist. Codes are upper-cased;
// blank entries are ignored.
func WithCountries(codes []string) Option {
	return func(p *Parser) {
		p.countries = make(map[string]struct{}, len(codes))
		for _, c := range codes {
			c = strings.ToUpper(strings.TrimSpace(c))
			if c != "" {
				p.countries[c] = struct{}{}
			}
		}
	}
}

// NewParser returns a Parser using DefaultCountries unless overridden.
func NewParser(opts ...Option) *Parser {
	p := &Parser{}
	WithCountries(DefaultCountries)(p)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = NewParser()

// Parse parses raw with the default whitelist.
func Parse(raw string) (ParsedCode, error) {
	return defaultParser.Parse(raw)
}

// Countries returns the whitelist, sorted.
func (p *Parser) Countries() []string {
	out := make([]string, 0, len(p.countries))
	for c := range p.countries {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (p *Parser) knownCountry(prefix string) bool {
	_, ok := p.countries[prefix]
	return ok
}

// countryCandidate returns the leading letters when s is shaped like a
// country-prefixed code (1-2 letters, optional separator, then a digit).
func countryCandidate(normalized string) (string, bool) {
	if !countryShape.MatchString(normalized) {
		return "", false
	}
	prefix := strings.TrimRight(countryPrefix.FindString(normalized), "- ")
	return prefix, true
}

// DetectType classifies an already normalized code.
func (p *Parser) DetectType(normalized string) Type {
	if prefix, ok := countryCandidate(normalized); ok && p.knownCountry(prefix) {
		return LatinAmerican
	}
	return Dewey
}

// Parse normalizes raw, validates it and returns its fields and comparable
// key. Failures are *ParseError values wrapping one of the Err* sentinels.
func (p *Parser) Parse(raw string) (ParsedCode, error) {
	normalized := Normalize(raw)

	// A country-shaped prefix outside the whitelist is rejected, never
	// reinterpreted as a plain code.
	if prefix, ok := countryCandidate(normalized); ok && !p.knownCountry(prefix) {
		return ParsedCode{}, &ParseError{
			Input:   raw,
			Segment: SegmentCountry,
			Value:   prefix,
			Err:     ErrInvalidCountry,
		}
	}

	code := ParsedCode{
		Raw:        raw,
		Normalized: normalized,
		Type:       p.DetectType(normalized),
	}

	var perr *ParseError
	if code.Type == LatinAmerican {
		perr = parseLatam(normalized, &code)
	} else {
		perr = parseDewey(normalized, &code)
	}
	if perr != nil {
		perr.Input = raw
		return ParsedCode{}, perr
	}

	code.ComparableKey = BuildComparableKey(code)
	return code, nil
}

// parseLatam strips the country prefix and parses the rest as Dewey.
func parseLatam(normalized string, code *ParsedCode) *ParseError {
	prefix := countryPrefix.FindString(normalized)
	if perr := parseDewey(normalized[len(prefix):], code); perr != nil {
		return perr
	}
	code.Country = fit(strings.TrimRight(prefix, "- "), CountryWidth, 'A', false)
	return nil
}

// parseDewey parses "<class>[ <cutter tokens>]". Cutter tokens after the
// first space are joined without separators.
func parseDewey(normalized string, code *ParsedCode) *ParseError {
	classPart, cutterPart, _ := strings.Cut(normalized, " ")
	cutterRaw := strings.ReplaceAll(cutterPart, " ", "")

	m := classPattern.FindStringSubmatch(classPart)
	if m == nil {
		return &ParseError{Segment: SegmentClassification, Value: classPart, Err: ErrInvalidClassification}
	}
	code.Country = NoCountry
	code.ClassNumber = fit(m[1], ClassNumberWidth, '0', true)
	code.ClassDecimal = fit(m[2], ClassDecimalWidth, '0', false)

	return parseCutter(cutterRaw, code)
}

// parseCutter decomposes letter digits* letters* digits*. The digit run
// after the main letter is a decimal fraction: A5 == A50 == .500, A501 == .501.
func parseCutter(raw string, code *ParsedCode) *ParseError {
	code.CutterMain = NoCutterMain
	code.CutterDecimal = strings.Repeat("0", CutterDecimalWidth)
	code.CutterSuffixLetter = NoSuffixLetter
	code.CutterSuffixNumber = strings.Repeat("0", SuffixNumberWidth)
	if raw == "" {
		return nil
	}
	if !isUpperASCII(raw[0]) {
		return &ParseError{Segment: SegmentCutter, Value: raw, Err: ErrInvalidCutter}
	}
	code.CutterMain = raw[:1]

	digits, rest := span(raw[1:], isDigitASCII)
	code.CutterDecimal = fit(digits, CutterDecimalWidth, '0', false)

	title, rest := span(rest, isUpperASCII)
	if title != "" {
		code.CutterTitle = title
		code.CutterSuffixLetter = title[:1]
	}

	suffix, rest := span(rest, isDigitASCII)
	code.CutterEdition = suffix
	if len(suffix) > SuffixNumberWidth {
		suffix = suffix[len(suffix)-SuffixNumberWidth:]
	}
	code.CutterSuffixNumber = fit(suffix, SuffixNumberWidth, '0', true)

	if strings.ContainsFunc(rest, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) {
		return &ParseError{Segment: SegmentCutter, Value: raw, Reason: "unexpected remainder", Err: ErrInvalidCutter}
	}
	return nil
}

// fit pads s with pad to width (on the left when left is set, otherwise on
// the right) and truncates anything beyond width.
func fit(s string, width int, pad byte, left bool) string {
	if len(s) >= width {
		return s[:width]
	}
	padding := strings.Repeat(string(pad), width-len(s))
	if left {
		return padding + s
	}
	return s + padding
}

// span splits s after its longest prefix of bytes satisfying ok.
func span(s string, ok func(byte) bool) (string, string) {
	i := 0
	for i < len(s) && ok(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func isUpperASCII(b byte) bool { return b >= 'A' && b <= 'Z' }
func isDigitASCII(b byte) bool { return b >= '0' && b <= '9' }
