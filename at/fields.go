package at

import (
	"fmt"
	"strconv"
	"strings"
)

// Field is one positional field of a data line payload, as sent by the
// modem (quotes and parentheses included).
type Field string

// SplitFields splits a payload on commas that are neither inside double
// quotes nor inside parentheses. Blanks around fields are trimmed.
func SplitFields(payload string) []Field {
	if strings.TrimSpace(payload) == "" {
		return nil
	}
	var (
		out    []Field
		quoted bool
		depth  int
		start  int
	)
	for i := 0; i < len(payload); i++ {
		switch payload[i] {
		case '"':
			quoted = !quoted
		case '(':
			if !quoted {
				depth++
			}
		case ')':
			if !quoted && depth > 0 {
				depth--
			}
		case ',':
			if !quoted && depth == 0 {
				out = append(out, Field(strings.TrimSpace(payload[start:i])))
				start = i + 1
			}
		}
	}
	return append(out, Field(strings.TrimSpace(payload[start:])))
}

// Int parses an unquoted decimal field.
func (f Field) Int() (int, error) {
	v, err := strconv.Atoi(string(f))
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", string(f), ErrInvalidResponse)
	}
	return v, nil
}

// Quoted returns the content of a double quoted field.
func (f Field) Quoted() (string, bool) {
	s := string(f)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", false
	}
	return s[1 : len(s)-1], true
}

// Text returns the field without surrounding quotes, if any.
func (f Field) Text() string {
	if s, ok := f.Quoted(); ok {
		return s
	}
	return string(f)
}

// IsEmpty reports an omitted field (",,") or an empty string ("").
func (f Field) IsEmpty() bool {
	return f == "" || f == `""`
}

// Range is a parenthesized list of supported values from a test variant
// reply, e.g. "(0-31,99)". Min/Max come from the first span; single values
// are listed in Values.
type Range struct {
	Min, Max int
	Values   []int
}

// Contains reports whether v is inside the span or one of the single values.
func (r Range) Contains(v int) bool {
	if v >= r.Min && v <= r.Max {
		return true
	}
	for _, x := range r.Values {
		if x == v {
			return true
		}
	}
	return false
}

// Range parses a field of the form "(a-b,c,...)". A list without any span
// takes Min/Max from its smallest and largest value.
func (f Field) Range() (Range, error) {
	s := string(f)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return Range{}, fmt.Errorf("field %q is not a range: %w", s, ErrInvalidResponse)
	}
	var (
		r       Range
		hasSpan bool
	)
	for _, part := range strings.Split(s[1:len(s)-1], ",") {
		part = strings.TrimSpace(part)
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			a, errA := strconv.Atoi(lo)
			b, errB := strconv.Atoi(hi)
			if errA != nil || errB != nil || a > b {
				return Range{}, fmt.Errorf("range %q: %w", s, ErrInvalidResponse)
			}
			if !hasSpan {
				r.Min, r.Max, hasSpan = a, b, true
			}
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return Range{}, fmt.Errorf("range %q: %w", s, ErrInvalidResponse)
		}
		r.Values = append(r.Values, v)
	}
	if !hasSpan {
		if len(r.Values) == 0 {
			return Range{}, fmt.Errorf("range %q is empty: %w", s, ErrInvalidResponse)
		}
		r.Min, r.Max = r.Values[0], r.Values[0]
		for _, v := range r.Values {
			r.Min, r.Max = min(r.Min, v), max(r.Max, v)
		}
	}
	return r, nil
}

// Fields is a set of "present" flags. Each typed result declares its own
// flag constants; a flag is set only for fields that were found and valid.
type Fields uint32

// Has reports whether every flag in f is set.
func (p Fields) Has(f Fields) bool {
	return p&f == f
}

// Set adds f.
func (p *Fields) Set(f Fields) {
	*p |= f
}

// ParseAs adapts a typed parser to ParseFunc. out must be a *R. The parser
// works on a zero R that is copied to out only on success, so a failing
// parse leaves the caller's value untouched.
func ParseAs[R any](fn func(r Response, out *R) error) ParseFunc {
	return func(r Response, out any) error {
		dst, ok := out.(*R)
		if !ok || dst == nil {
			var want *R
			return fmt.Errorf("%w: result is %T, want %T", ErrInvalidArgument, out, want)
		}
		var tmp R
		if err := fn(r, &tmp); err != nil {
			return err
		}
		*dst = tmp
		return nil
	}
}
