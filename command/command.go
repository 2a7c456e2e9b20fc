// Package command declares the AT commands the driver knows about: their
// descriptors, typed parameter and result structs, and the formatter and
// parser pairs that connect them to the wire.
//
// Descriptors are package level values and are never mutated. Registry
// returns an immutable index of all of them.
package command

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"i4.energy/across/bg95/at"
)

// ValueKnown is the present flag of replies carrying a single value.
const ValueKnown at.Fields = 1

// MQTT client index domain shared by every QMT* command.
const (
	ClientMin = 0
	ClientMax = 5
)

// All returns every descriptor in this package.
func All() []*at.Descriptor {
	return []*at.Descriptor{
		AT, ATE0, CMEE, CFUN, CMGF, CMGS,
		CPIN,
		CSQ, QCSQ, COPS,
		CGATT, CGACT, CGDCONT, CGPADDR,
		QMTCFG, QMTOPEN, QMTCLOSE, QMTCONN, QMTDISC, QMTSUB, QMTUNS, QMTPUB,
	}
}

var registry = sync.OnceValue(func() *at.Registry {
	r, err := at.NewRegistry(All()...)
	if err != nil {
		panic(fmt.Sprintf("command: %v", err))
	}
	return r
})

// Registry returns the default registry holding every descriptor of All.
func Registry() *at.Registry {
	return registry()
}

// fields returns the split payload of the first data line starting with
// prefix. Parsers take the prefix rather than the descriptor so that
// descriptor initializers can refer to them.
func fields(r at.Response, prefix string) ([]at.Field, error) {
	p, ok := r.Payload(prefix)
	if !ok {
		return nil, fmt.Errorf("no %s line: %w", prefix, at.ErrInvalidResponse)
	}
	return at.SplitFields(p), nil
}

// leadingInt parses the mandatory first field of a data line.
func leadingInt(f []at.Field, name string, valid func(int) bool) (int, error) {
	if len(f) == 0 {
		return 0, fmt.Errorf("%s missing: %w", name, at.ErrInvalidResponse)
	}
	v, err := f[0].Int()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if valid != nil && !valid(v) {
		return 0, fmt.Errorf("%s=%d out of range: %w", name, v, at.ErrInvalidResponse)
	}
	return v, nil
}

// leadingValue parses the first field of a data line. A missing or
// non-numeric field fails the reply; a number outside valid is logged and
// reported absent, like any other field.
func leadingValue(f []at.Field, name string, valid func(int) bool) (int, bool, error) {
	if len(f) == 0 || f[0].IsEmpty() {
		return 0, false, fmt.Errorf("%s missing: %w", name, at.ErrInvalidResponse)
	}
	v, err := f[0].Int()
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", name, err)
	}
	if valid != nil && !valid(v) {
		slog.Warn("Ignoring invalid response field", "field", name, "value", v)
		return 0, false, nil
	}
	return v, true, nil
}

// intField returns field i when it exists and valid accepts it. A field that
// is present but unusable is logged and reported absent.
func intField(f []at.Field, i int, name string, valid func(int) bool) (int, bool) {
	if i >= len(f) || f[i].IsEmpty() {
		return 0, false
	}
	v, err := f[i].Int()
	if err != nil || (valid != nil && !valid(v)) {
		slog.Warn("Ignoring invalid response field", "field", name, "value", string(f[i]))
		return 0, false
	}
	return v, true
}

// quotedField returns the content of quoted field i.
func quotedField(f []at.Field, i int, name string) (string, bool) {
	if i >= len(f) || f[i] == "" {
		return "", false
	}
	s, ok := f[i].Quoted()
	if !ok {
		slog.Warn("Ignoring invalid response field", "field", name, "value", string(f[i]))
		return "", false
	}
	return s, true
}

// rangeField parses a test variant range at position i.
func rangeField(f []at.Field, i int, name string) (at.Range, error) {
	if i >= len(f) {
		return at.Range{}, fmt.Errorf("%s range missing: %w", name, at.ErrInvalidResponse)
	}
	r, err := f[i].Range()
	if err != nil {
		return at.Range{}, fmt.Errorf("%s: %w", name, err)
	}
	return r, nil
}

func between(lo, hi int) func(int) bool {
	return func(v int) bool { return v >= lo && v <= hi }
}

func oneOf(vs ...int) func(int) bool {
	return func(v int) bool { return slices.Contains(vs, v) }
}

// ClientRange is the test variant reply of the QMT* commands that only
// advertise their client index domain.
type ClientRange struct {
	Client at.Range
}

func parseClientRange(prefix string) at.ParseFunc {
	return at.ParseAs(func(r at.Response, out *ClientRange) error {
		f, err := fields(r, prefix)
		if err != nil {
			return err
		}
		out.Client, err = rangeField(f, 0, "client index")
		return err
	})
}
