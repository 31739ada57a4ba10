// Package xmlpath wraps cxpath evaluation with the mandatory/optional
// semantics the mappers need: mandatory lookups fail with a typed
// MappingError carrying the query, optional lookups fall back to a default
// and report unparsable values through a warning sink.
package xmlpath

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/speedata/cxpath"
)

// MappingError is the permanent error class for extraction failures. Value
// is empty when the field was absent, non-empty when it was present but
// unparsable.
type MappingError struct {
	Path  string
	Value string
	Err   error
}

func (e *MappingError) Error() string {
	if e.Missing() {
		return fmt.Sprintf("mandatory field missing or empty at %s", e.Path)
	}
	return fmt.Sprintf("invalid value '%s' at %s: %v", e.Value, e.Path, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

// Missing reports whether the field was absent rather than malformed.
func (e *MappingError) Missing() bool { return e.Value == "" && e.Err == nil }

// WarnFunc receives optional values that failed to parse.
type WarnFunc func(path, value string)

// Text returns the string value at path, "" if nothing matches.
func Text(ctx *cxpath.Context, path string) string {
	return ctx.Eval(path).String()
}

// TextDefault returns the string value at path or def if empty.
func TextDefault(ctx *cxpath.Context, path, def string) string {
	if s := ctx.Eval(path).String(); s != "" {
		return s
	}
	return def
}

// MandatoryText returns the string value at path or a MappingError if the
// result is empty.
func MandatoryText(ctx *cxpath.Context, path string) (string, error) {
	s := ctx.Eval(path).String()
	if s == "" {
		return "", &MappingError{Path: path}
	}
	return s, nil
}

// Decimal returns the decimal at path. A missing value yields def; a present
// but unparsable value yields def and is reported through warn (which may be
// nil). Strict parsing belongs to MandatoryDecimal.
func Decimal(ctx *cxpath.Context, path string, def decimal.Decimal, warn WarnFunc) decimal.Decimal {
	s := ctx.Eval(path).String()
	if s == "" {
		return def
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		if warn != nil {
			warn(path, s)
		}
		return def
	}
	return d
}

// MandatoryDecimal returns the decimal at path; missing or unparsable values
// fail with a MappingError.
func MandatoryDecimal(ctx *cxpath.Context, path string) (decimal.Decimal, error) {
	s := ctx.Eval(path).String()
	if s == "" {
		return decimal.Zero, &MappingError{Path: path}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &MappingError{Path: path, Value: s, Err: err}
	}
	return d, nil
}

// dateFormats are the two date shapes CII and UBL use: ISO 8601 basic
// (format code 102) and extended.
var dateFormats = []string{"20060102", "2006-01-02"}

func parseDate(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range dateFormats {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// Date returns the date at path, the zero time if nothing matches, and a
// MappingError if a present value matches neither accepted layout.
func Date(ctx *cxpath.Context, path string) (time.Time, error) {
	s := ctx.Eval(path).String()
	if s == "" {
		return time.Time{}, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return time.Time{}, &MappingError{Path: path, Value: s, Err: err}
	}
	return t, nil
}

// MandatoryDate is Date with a MappingError when the value is absent.
func MandatoryDate(ctx *cxpath.Context, path string) (time.Time, error) {
	s := ctx.Eval(path).String()
	if s == "" {
		return time.Time{}, &MappingError{Path: path}
	}
	t, err := parseDate(s)
	if err != nil {
		return time.Time{}, &MappingError{Path: path, Value: s, Err: err}
	}
	return t, nil
}
