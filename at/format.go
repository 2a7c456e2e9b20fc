package at

import (
	"fmt"
	"strconv"
	"strings"
)

// ParamWriter builds the comma separated parameter list of a write command.
// Every method validates its value against the documented domain; the first
// violation is kept and reported by Err, later calls are no-ops.
type ParamWriter struct {
	buf    []byte
	fields int
	err    error
}

func (w *ParamWriter) sep() {
	if w.fields > 0 {
		w.buf = append(w.buf, ',')
	}
	w.fields++
}

func (w *ParamWriter) fail(format string, args ...any) {
	if w.err == nil {
		w.err = fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...)
	}
}

// Int writes v after checking min <= v <= max.
func (w *ParamWriter) Int(name string, v, min, max int) {
	if w.err != nil {
		return
	}
	if v < min || v > max {
		w.fail("%s=%d out of range [%d,%d]", name, v, min, max)
		return
	}
	w.sep()
	w.buf = strconv.AppendInt(w.buf, int64(v), 10)
}

// OneOf writes v after checking it is one of allowed.
func (w *ParamWriter) OneOf(name string, v int, allowed ...int) {
	if w.err != nil {
		return
	}
	for _, a := range allowed {
		if v == a {
			w.sep()
			w.buf = strconv.AppendInt(w.buf, int64(v), 10)
			return
		}
	}
	w.fail("%s=%d not one of %v", name, v, allowed)
}

// Bool writes 1 or 0.
func (w *ParamWriter) Bool(v bool) {
	if w.err != nil {
		return
	}
	w.sep()
	if v {
		w.buf = append(w.buf, '1')
	} else {
		w.buf = append(w.buf, '0')
	}
}

// Quoted writes s between double quotes. s must be 1..maxLen bytes long and
// must not contain a double quote or a line break.
func (w *ParamWriter) Quoted(name, s string, maxLen int) {
	if w.err != nil {
		return
	}
	if s == "" {
		w.fail("%s is empty", name)
		return
	}
	w.QuotedOrEmpty(name, s, maxLen)
}

// QuotedOrEmpty is Quoted but accepts the empty string, written as "".
func (w *ParamWriter) QuotedOrEmpty(name, s string, maxLen int) {
	if w.err != nil {
		return
	}
	if len(s) > maxLen {
		w.fail("%s is %d bytes, max %d", name, len(s), maxLen)
		return
	}
	if strings.ContainsAny(s, "\"\r\n") {
		w.fail("%s contains a quote or line break", name)
		return
	}
	w.sep()
	w.buf = append(w.buf, '"')
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, '"')
}

// Check records a violation of a constraint spanning several parameters
// when ok is false.
func (w *ParamWriter) Check(ok bool, format string, args ...any) {
	if !ok {
		w.fail(format, args...)
	}
}

// Err returns the first domain violation.
func (w *ParamWriter) Err() error {
	return w.err
}

// String returns the parameters written so far.
func (w *ParamWriter) String() string {
	return string(w.buf)
}

// FormatAs adapts a typed formatter to FormatFunc. params may be a P or a *P.
func FormatAs[P any](fn func(w *ParamWriter, p P)) FormatFunc {
	return func(w *ParamWriter, params any) error {
		switch p := params.(type) {
		case P:
			fn(w, p)
		case *P:
			if p == nil {
				return fmt.Errorf("%w: nil %T", ErrInvalidArgument, p)
			}
			fn(w, *p)
		default:
			var want P
			return fmt.Errorf("%w: params are %T, want %T", ErrInvalidArgument, params, want)
		}
		return w.Err()
	}
}

// Format writes the complete command line for variant v of d into dst and
// returns its length. On ErrBufferTooSmall dst is cleared and 0 is returned.
func Format(dst []byte, d *Descriptor, v Variant, params any) (int, error) {
	h, err := d.Lookup(v)
	if err != nil {
		return 0, err
	}

	line := make([]byte, 0, MaxCommandLen)
	line = append(line, d.Command()...)

	switch v {
	case Test:
		line = append(line, "=?"...)
	case Read:
		line = append(line, '?')
	case Write:
		w := &ParamWriter{}
		if err := h.Format(w, params); err != nil {
			return 0, fmt.Errorf("format %s: %w", d.Command(), err)
		}
		line = append(line, '=')
		line = append(line, w.buf...)
	case Execute:
	}
	line = append(line, CRLF...)

	if len(line) > len(dst) {
		clear(dst)
		return 0, fmt.Errorf("format %s: %d bytes into %d: %w", d.Command(), len(line), len(dst), ErrBufferTooSmall)
	}
	return copy(dst, line), nil
}
