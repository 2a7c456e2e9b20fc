package at

import (
	"fmt"
	"time"
)

// Variant is one of the four ways an AT command can be invoked.
type Variant int

const (
	Test    Variant = iota // AT+CMD=?
	Read                   // AT+CMD?
	Write                  // AT+CMD=<params>
	Execute                // AT+CMD
)

func (v Variant) String() string {
	switch v {
	case Test:
		return "test"
	case Read:
		return "read"
	case Write:
		return "write"
	case Execute:
		return "execute"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Shape declares what a complete response looks like for a variant.
type Shape int

const (
	// SimpleOnly responses consist of a final result line only.
	SimpleOnly Shape = iota
	// DataRequired responses are complete only once the command's data line
	// and the final OK have both arrived, in any order.
	DataRequired
	// DataOptional responses may carry a data line but are complete on the
	// final result alone.
	DataOptional
)

func (s Shape) String() string {
	switch s {
	case SimpleOnly:
		return "simple-only"
	case DataRequired:
		return "data-required"
	case DataOptional:
		return "data-optional"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// FormatFunc writes the parameter list of a write command. params is the
// caller supplied parameter struct.
type FormatFunc func(w *ParamWriter, params any) error

// ParseFunc fills out from a classified response. out is a pointer to the
// caller owned typed result.
type ParseFunc func(r Response, out any) error

// Handler holds the pluggable behaviour of one command variant.
type Handler struct {
	Format FormatFunc
	Parse  ParseFunc
	Shape  Shape
}

// Descriptor is the static description of one AT command. Descriptors are
// built once at package initialization and never mutated.
type Descriptor struct {
	// Name is the mnemonic without the "AT+" prefix, e.g. "CSQ".
	Name        string
	Description string
	// Basic commands are sent as "AT"+Name, without '+' and without a data
	// line prefix (the bare liveness command has an empty Name).
	Basic bool
	// Timeout is the wall clock budget of one transaction. Some values are
	// deliberately shorter than the vendor's maximum.
	Timeout time.Duration
	// Variants lists the supported variants. A missing key means the
	// variant does not exist or is not implemented.
	Variants map[Variant]Handler
}

// Lookup returns the handler of variant v.
func (d *Descriptor) Lookup(v Variant) (Handler, error) {
	h, ok := d.Variants[v]
	if !ok {
		return Handler{}, fmt.Errorf("%s %s: %w", d.Command(), v, ErrUnsupportedVariant)
	}
	return h, nil
}

// Command returns the wire name including the "AT" prefix.
func (d *Descriptor) Command() string {
	if d.Basic {
		return "AT" + d.Name
	}
	return "AT+" + d.Name
}

// DataPrefix returns the marker that starts this command's data lines, or ""
// for basic commands.
func (d *Descriptor) DataPrefix() string {
	if d.Basic {
		return ""
	}
	return "+" + d.Name + ":"
}

// Validate checks the descriptor invariants.
func (d *Descriptor) Validate() error {
	if d.Name == "" && !d.Basic {
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	}
	if len(d.Variants) == 0 {
		return fmt.Errorf("%w: %s declares no variants", ErrInvalidDescriptor, d.Command())
	}
	for v, h := range d.Variants {
		if v < Test || v > Execute {
			return fmt.Errorf("%w: %s: unknown variant %d", ErrInvalidDescriptor, d.Command(), int(v))
		}
		if h.Shape < SimpleOnly || h.Shape > DataOptional {
			return fmt.Errorf("%w: %s %s: unknown shape %d", ErrInvalidDescriptor, d.Command(), v, int(h.Shape))
		}
		if v == Write && h.Format == nil {
			return fmt.Errorf("%w: %s write variant has no formatter", ErrInvalidDescriptor, d.Command())
		}
		if v != Write && h.Format != nil {
			return fmt.Errorf("%w: %s %s variant takes no parameters", ErrInvalidDescriptor, d.Command(), v)
		}
		if d.Basic && (v != Execute || h.Shape == DataRequired) {
			return fmt.Errorf("%w: basic command %s supports plain execute only", ErrInvalidDescriptor, d.Command())
		}
	}
	return nil
}

// Registry is an immutable name-indexed set of descriptors. It is safe for
// concurrent use once built.
type Registry struct {
	byName map[string]*Descriptor
}

// NewRegistry validates every descriptor and indexes it by name.
func NewRegistry(descs ...*Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Descriptor, len(descs))}
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate command %s", ErrInvalidDescriptor, d.Command())
		}
		r.byName[d.Name] = d
	}
	return r, nil
}

// Lookup returns the descriptor and handler for the named command variant.
func (r *Registry) Lookup(name string, v Variant) (*Descriptor, Handler, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, Handler{}, fmt.Errorf("%w: unknown command %q", ErrUnsupportedVariant, name)
	}
	h, err := d.Lookup(v)
	if err != nil {
		return nil, Handler{}, err
	}
	return d, h, nil
}

// Descriptor returns the named descriptor.
func (r *Registry) Descriptor(name string) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	return len(r.byName)
}
