package command

import (
	"fmt"
	"time"

	"i4.energy/across/bg95/at"
)

// AT is the bare liveness check.
var AT = &at.Descriptor{
	Basic:       true,
	Description: "Attention",
	Timeout:     300 * time.Millisecond,
	Variants: map[at.Variant]at.Handler{
		at.Execute: {Shape: at.SimpleOnly},
	},
}

// ATE0 disables command echo.
var ATE0 = &at.Descriptor{
	Name:        "E0",
	Basic:       true,
	Description: "Echo Off",
	Timeout:     300 * time.Millisecond,
	Variants: map[at.Variant]at.Handler{
		at.Execute: {Shape: at.SimpleOnly},
	},
}

// ErrorMode selects how the modem reports +CME ERROR results.
type ErrorMode int

const (
	ErrorsDisabled ErrorMode = 0 // plain ERROR
	ErrorsNumeric  ErrorMode = 1 // +CME ERROR: <code>
	ErrorsVerbose  ErrorMode = 2 // +CME ERROR: <text>
)

func (m ErrorMode) String() string {
	switch m {
	case ErrorsDisabled:
		return "disabled"
	case ErrorsNumeric:
		return "numeric"
	case ErrorsVerbose:
		return "verbose"
	default:
		return fmt.Sprintf("ErrorMode(%d)", int(m))
	}
}

type CMEEParams struct {
	Mode ErrorMode
}

type CMEEResult struct {
	Mode    ErrorMode
	Present at.Fields
}

// CMEE configures the extended error result format.
var CMEE = &at.Descriptor{
	Name:        "CMEE",
	Description: "Error Message Format",
	Timeout:     300 * time.Millisecond,
	Variants: map[at.Variant]at.Handler{
		at.Read: {
			Shape: at.DataRequired,
			Parse: at.ParseAs(func(r at.Response, out *CMEEResult) error {
				f, err := fields(r, "+CMEE:")
				if err != nil {
					return err
				}
				v, ok, err := leadingValue(f, "mode", between(0, 2))
				if ok {
					out.Mode = ErrorMode(v)
					out.Present.Set(ValueKnown)
				}
				return err
			}),
		},
		at.Write: {
			Shape: at.SimpleOnly,
			Format: at.FormatAs(func(w *at.ParamWriter, p CMEEParams) {
				w.Int("mode", int(p.Mode), 0, 2)
			}),
		},
	},
}

// Functionality is the UE functionality level of AT+CFUN.
type Functionality int

const (
	FunMinimum   Functionality = 0
	FunFull      Functionality = 1
	FunDisableRF Functionality = 4
)

func (f Functionality) String() string {
	switch f {
	case FunMinimum:
		return "minimum"
	case FunFull:
		return "full"
	case FunDisableRF:
		return "disable-rf"
	default:
		return fmt.Sprintf("Functionality(%d)", int(f))
	}
}

type CFUNParams struct {
	Fun Functionality
}

type CFUNResult struct {
	Fun     Functionality
	Present at.Fields
}

// CFUN reads and sets the UE functionality. The vendor allows up to 15s;
// 5s is enough in practice.
var CFUN = &at.Descriptor{
	Name:        "CFUN",
	Description: "Set UE Functionality",
	Timeout:     5 * time.Second,
	Variants: map[at.Variant]at.Handler{
		at.Read: {
			Shape: at.DataRequired,
			Parse: at.ParseAs(func(r at.Response, out *CFUNResult) error {
				f, err := fields(r, "+CFUN:")
				if err != nil {
					return err
				}
				v, ok, err := leadingValue(f, "fun", oneOf(0, 1, 4))
				if ok {
					out.Fun = Functionality(v)
					out.Present.Set(ValueKnown)
				}
				return err
			}),
		},
		at.Write: {
			Shape: at.SimpleOnly,
			Format: at.FormatAs(func(w *at.ParamWriter, p CFUNParams) {
				w.OneOf("fun", int(p.Fun), 0, 1, 4)
			}),
		},
	},
}

// MessageFormat selects PDU or text mode for SMS commands.
type MessageFormat int

const (
	FormatPDU  MessageFormat = 0
	FormatText MessageFormat = 1
)

func (f MessageFormat) String() string {
	switch f {
	case FormatPDU:
		return "pdu"
	case FormatText:
		return "text"
	default:
		return fmt.Sprintf("MessageFormat(%d)", int(f))
	}
}

type CMGFParams struct {
	Format MessageFormat
}

type CMGFResult struct {
	Format  MessageFormat
	Present at.Fields
}

// CMGF selects the SMS message format.
var CMGF = &at.Descriptor{
	Name:        "CMGF",
	Description: "Message Format",
	Timeout:     300 * time.Millisecond,
	Variants: map[at.Variant]at.Handler{
		at.Read: {
			Shape: at.DataRequired,
			Parse: at.ParseAs(func(r at.Response, out *CMGFResult) error {
				f, err := fields(r, "+CMGF:")
				if err != nil {
					return err
				}
				v, ok, err := leadingValue(f, "mode", between(0, 1))
				if ok {
					out.Format = MessageFormat(v)
					out.Present.Set(ValueKnown)
				}
				return err
			}),
		},
		at.Write: {
			Shape: at.SimpleOnly,
			Format: at.FormatAs(func(w *at.ParamWriter, p CMGFParams) {
				w.Int("mode", int(p.Format), 0, 1)
			}),
		},
	},
}
