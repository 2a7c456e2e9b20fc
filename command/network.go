package command

import (
	"fmt"
	"time"

	"i4.energy/across/bg95/at"
)

const (
	RSSIUnknown = 99
	BERUnknown  = 99
)

// Present flags of Signal.
const (
	SignalRSSI at.Fields = 1 << iota
	SignalBER
)

// Signal is the AT+CSQ execute reply. RSSI is the raw 0..31 index, BER the
// raw 0..7 class; either may be 99 when the modem cannot measure it.
type Signal struct {
	RSSI    int
	BER     int
	Present at.Fields
}

// DBm converts the RSSI index. It reports false when RSSI is unknown.
func (s Signal) DBm() (int, bool) {
	if !s.Present.Has(SignalRSSI) {
		return 0, false
	}
	return RSSIToDBm(s.RSSI)
}

// BERKnown reports whether a bit error rate class was measured.
func (s Signal) BERKnown() bool {
	return s.Present.Has(SignalBER) && s.BER != BERUnknown
}

// RSSIToDBm converts a raw CSQ RSSI index to dBm.
func RSSIToDBm(rssi int) (int, bool) {
	switch {
	case rssi == 0:
		return -113, true
	case rssi == 1:
		return -111, true
	case rssi >= 2 && rssi <= 30:
		return -109 + (rssi-2)*2, true
	case rssi == 31:
		return -51, true
	default:
		return 0, false
	}
}

// DBmToRSSI is the inverse of RSSIToDBm. Values between two steps round
// toward the weaker one.
func DBmToRSSI(dbm int) int {
	switch {
	case dbm <= -112:
		return 0
	case dbm <= -110:
		return 1
	case dbm <= -52:
		return 2 + (dbm+109)/2
	default:
		return 31
	}
}

// SignalRanges is the AT+CSQ test reply, e.g. "+CSQ: (0-31,99),(0-7,99)".
type SignalRanges struct {
	RSSI at.Range
	BER  at.Range
}

// CSQ reports the received signal strength and channel bit error rate.
var CSQ = &at.Descriptor{
	Name:        "CSQ",
	Description: "Signal Quality Report",
	Timeout:     300 * time.Millisecond,
	Variants: map[at.Variant]at.Handler{
		at.Test: {
			Shape: at.DataRequired,
			Parse: at.ParseAs(func(r at.Response, out *SignalRanges) error {
				f, err := fields(r, "+CSQ:")
				if err != nil {
					return err
				}
				if out.RSSI, err = rangeField(f, 0, "rssi"); err != nil {
					return err
				}
				out.BER, err = rangeField(f, 1, "ber")
				return err
			}),
		},
		at.Execute: {
			Shape: at.DataRequired,
			Parse: at.ParseAs(func(r at.Response, out *Signal) error {
				f, err := fields(r, "+CSQ:")
				if err != nil {
					return err
				}
				validRSSI := func(v int) bool { return (v >= 0 && v <= 31) || v == RSSIUnknown }
				v, ok, err := leadingValue(f, "rssi", validRSSI)
				if err != nil {
					return err
				}
				if ok {
					out.RSSI = v
					out.Present.Set(SignalRSSI)
				}
				validBER := func(v int) bool { return (v >= 0 && v <= 7) || v == BERUnknown }
				if v, ok := intField(f, 1, "ber", validBER); ok {
					out.BER = v
					out.Present.Set(SignalBER)
				}
				return nil
			}),
		},
	},
}

// SystemMode is the serving radio access technology reported by AT+QCSQ.
type SystemMode int

const (
	ModeNoService SystemMode = iota
	ModeGSM
	ModeEMTC
	ModeNBIoT
)

var systemModeNames = [...]string{
	ModeNoService: "NOSERVICE",
	ModeGSM:       "GSM",
	ModeEMTC:      "eMTC",
	ModeNBIoT:     "NBIoT",
}

// String returns the mode as the modem spells it.
func (m SystemMode) String() string {
	if m >= 0 && int(m) < len(systemModeNames) {
		return systemModeNames[m]
	}
	return fmt.Sprintf("SystemMode(%d)", int(m))
}

func parseSystemMode(s string) (SystemMode, bool) {
	for i, name := range systemModeNames {
		if name == s {
			return SystemMode(i), true
		}
	}
	return 0, false
}

// Present flags of SignalStrength.
const (
	StrengthRSSI at.Fields = 1 << iota
	StrengthRSRP
	StrengthSINR
	StrengthRSRQ
)

// SignalStrength is the AT+QCSQ execute reply. GSM reports RSSI only; eMTC
// and NB-IoT report RSSI, RSRP, SINR and RSRQ.
type SignalStrength struct {
	Mode    SystemMode
	RSSI    int // dBm
	RSRP    int // dBm
	SINR    int // raw, see SINRdB
	RSRQ    int // dB
	Present at.Fields
}

// SINRdB converts the raw SINR value to dB.
func (s SignalStrength) SINRdB() (float64, bool) {
	if !s.Present.Has(StrengthSINR) {
		return 0, false
	}
	return float64(s.SINR)/5 - 20, true
}

// SupportedModes is the AT+QCSQ test reply.
type SupportedModes struct {
	Modes []SystemMode
}

// QCSQ reports the serving cell signal strength per access technology.
var QCSQ = &at.Descriptor{
	Name:        "QCSQ",
	Description: "Query and Report Signal Strength",
	Timeout:     300 * time.Millisecond,
	Variants: map[at.Variant]at.Handler{
		at.Test: {
			Shape: at.DataRequired,
			Parse: at.ParseAs(func(r at.Response, out *SupportedModes) error {
				p, ok := r.Payload("+QCSQ:")
				if !ok {
					return fmt.Errorf("no +QCSQ: line: %w", at.ErrInvalidResponse)
				}
				// The list may or may not be wrapped in parentheses.
				p = trimParens(p)
				for _, f := range at.SplitFields(p) {
					if m, ok := parseSystemMode(f.Text()); ok {
						out.Modes = append(out.Modes, m)
					}
				}
				if len(out.Modes) == 0 {
					return fmt.Errorf("no system modes in %q: %w", p, at.ErrInvalidResponse)
				}
				return nil
			}),
		},
		at.Execute: {
			Shape: at.DataRequired,
			Parse: at.ParseAs(func(r at.Response, out *SignalStrength) error {
				f, err := fields(r, "+QCSQ:")
				if err != nil {
					return err
				}
				if len(f) == 0 {
					return fmt.Errorf("sysmode missing: %w", at.ErrInvalidResponse)
				}
				mode, ok := parseSystemMode(f[0].Text())
				if !ok {
					return fmt.Errorf("sysmode %q: %w", string(f[0]), at.ErrInvalidResponse)
				}
				out.Mode = mode

				switch mode {
				case ModeGSM:
					if v, ok := intField(f, 1, "rssi", nil); ok {
						out.RSSI = v
						out.Present.Set(StrengthRSSI)
					}
				case ModeEMTC, ModeNBIoT:
					targets := []struct {
						name string
						dst  *int
						flag at.Fields
					}{
						{"rssi", &out.RSSI, StrengthRSSI},
						{"rsrp", &out.RSRP, StrengthRSRP},
						{"sinr", &out.SINR, StrengthSINR},
						{"rsrq", &out.RSRQ, StrengthRSRQ},
					}
					for i, t := range targets {
						if v, ok := intField(f, i+1, t.name, nil); ok {
							*t.dst = v
							out.Present.Set(t.flag)
						}
					}
				}
				return nil
			}),
		},
	},
}

func trimParens(s string) string {
	if len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		return s[1 : len(s)-1]
	}
	return s
}

// OperatorMode is the <mode> of AT+COPS.
type OperatorMode int

const (
	OperatorAuto OperatorMode = iota
	OperatorManual
	OperatorDeregister
	OperatorSetFormat
	OperatorManualAuto
)

func (m OperatorMode) String() string {
	switch m {
	case OperatorAuto:
		return "automatic"
	case OperatorManual:
		return "manual"
	case OperatorDeregister:
		return "deregister"
	case OperatorSetFormat:
		return "set-format"
	case OperatorManualAuto:
		return "manual-automatic"
	default:
		return fmt.Sprintf("OperatorMode(%d)", int(m))
	}
}

// OperatorFormat is the <format> of the operator name.
type OperatorFormat int

const (
	FormatLongAlpha OperatorFormat = iota
	FormatShortAlpha
	FormatNumeric
)

func (f OperatorFormat) String() string {
	switch f {
	case FormatLongAlpha:
		return "long"
	case FormatShortAlpha:
		return "short"
	case FormatNumeric:
		return "numeric"
	default:
		return fmt.Sprintf("OperatorFormat(%d)", int(f))
	}
}

// AccessTechnology is the <AcT> of AT+COPS.
type AccessTechnology int

const (
	AccessGSM   AccessTechnology = 0
	AccessEMTC  AccessTechnology = 8
	AccessNBIoT AccessTechnology = 9
)

func (a AccessTechnology) String() string {
	switch a {
	case AccessGSM:
		return "GSM"
	case AccessEMTC:
		return "eMTC"
	case AccessNBIoT:
		return "NB-IoT"
	default:
		return fmt.Sprintf("AccessTechnology(%d)", int(a))
	}
}

// Present flags of Operator.
const (
	OperatorHasFormat at.Fields = 1 << iota
	OperatorHasName
	OperatorHasAccess
	OperatorHasMode
)

// Operator is the AT+COPS read reply. Mode is always reported unless the
// firmware sends an unknown one; the other fields are present once the
// modem is registered.
type Operator struct {
	Mode    OperatorMode
	Format  OperatorFormat
	Name    string
	Access  AccessTechnology
	Present at.Fields
}

// COPS reports the current operator. The vendor allows up to 180s for
// network scans; reading the current operator is much faster.
var COPS = &at.Descriptor{
	Name:        "COPS",
	Description: "Operator Selection",
	Timeout:     10 * time.Second,
	Variants: map[at.Variant]at.Handler{
		at.Read: {
			Shape: at.DataRequired,
			Parse: at.ParseAs(func(r at.Response, out *Operator) error {
				f, err := fields(r, "+COPS:")
				if err != nil {
					return err
				}
				mode, ok, err := leadingValue(f, "mode", between(0, 4))
				if err != nil {
					return err
				}
				if ok {
					out.Mode = OperatorMode(mode)
					out.Present.Set(OperatorHasMode)
				}
				if v, ok := intField(f, 1, "format", between(0, 2)); ok {
					out.Format = OperatorFormat(v)
					out.Present.Set(OperatorHasFormat)
				}
				if s, ok := quotedField(f, 2, "oper"); ok {
					out.Name = s
					out.Present.Set(OperatorHasName)
				}
				if v, ok := intField(f, 3, "act", oneOf(0, 8, 9)); ok {
					out.Access = AccessTechnology(v)
					out.Present.Set(OperatorHasAccess)
				}
				return nil
			}),
		},
	},
}
