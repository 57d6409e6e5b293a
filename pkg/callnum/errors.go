package callnum

import (
	"errors"
	"fmt"
)

// Validation failures. Retrying with the same input never helps.
var (
	ErrInvalidClassification = errors.New("invalid classification format")
	ErrInvalidCutter         = errors.New("invalid Cutter format")
	ErrInvalidCountry        = errors.New("invalid country code")
	ErrInvalidRangeOrder     = errors.New("range start sorts after range end")
)

// Segment names the part of a call number that failed validation.
type Segment string

const (
	SegmentCountry        Segment = "country"
	SegmentClassification Segment = "classification"
	SegmentCutter         Segment = "cutter"
)

// ParseError reports which segment of Input was rejected.
// Err is one of the Err* sentinels, so errors.Is works on it.
type ParseError struct {
	Input   string
	Segment Segment
	Value   string
	Reason  string
	Err     error
}

func (e *ParseError) Error() string {
	msg := e.Err.Error()
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	value := e.Value
	if value == "" {
		value = "(empty)"
	}
	return fmt.Sprintf("%s: %q", msg, value)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a call-number validation failure,
// as opposed to an I/O or storage error from a caller.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidClassification) ||
		errors.Is(err, ErrInvalidCutter) ||
		errors.Is(err, ErrInvalidCountry) ||
		errors.Is(err, ErrInvalidRangeOrder)
}
