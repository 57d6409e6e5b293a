package callnum

import "strings"

// BuildComparableKey concatenates the fixed-width fields of c into the
// KeyLen-byte key. Fields must already be padded (as Parse leaves them).
func BuildComparableKey(c ParsedCode) string {
	var b strings.Builder
	b.Grow(KeyLen)
	b.WriteByte(c.Type.Flag())
	b.WriteString(c.Country)
	b.WriteString(c.ClassNumber)
	b.WriteString(c.ClassDecimal)
	b.WriteString(c.CutterMain)
	b.WriteString(c.CutterDecimal)
	b.WriteString(c.CutterSuffixLetter)
	b.WriteString(c.CutterSuffixNumber)
	return b.String()
}

// KeyInRange reports start <= key <= end using byte-wise comparison. It is
// the in-memory form of the store's `key_start <= ? AND key_end >= ?`
// predicate, for callers that hold keys rather than a database.
func KeyInRange(key, start, end string) bool {
	return start <= key && key <= end
}
