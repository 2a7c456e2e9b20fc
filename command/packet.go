package command

import (
	"fmt"
	"log/slog"
	"time"

	"i4.energy/across/bg95/at"
)

// PDP context identifier domain.
const (
	CIDMin = 1
	CIDMax = 15
)

type CGATTParams struct {
	Attach bool
}

type CGATTResult struct {
	Attached bool
	Present  at.Fields
}

// CGATT attaches to or detaches from the packet domain service.
var CGATT = &at.Descriptor{
	Name:        "CGATT",
	Description: "PS Attach or Detach",
	Timeout:     140 * time.Second,
	Variants: map[at.Variant]at.Handler{
		at.Read: {
			Shape: at.DataRequired,
			Parse: at.ParseAs(func(r at.Response, out *CGATTResult) error {
				f, err := fields(r, "+CGATT:")
				if err != nil {
					return err
				}
				v, ok, err := leadingValue(f, "state", between(0, 1))
				if ok {
					out.Attached = v == 1
					out.Present.Set(ValueKnown)
				}
				return err
			}),
		},
		at.Write: {
			Shape: at.SimpleOnly,
			Format: at.FormatAs(func(w *at.ParamWriter, p CGATTParams) {
				w.Bool(p.Attach)
			}),
		},
	},
}

// ContextState is one line of the AT+CGACT read reply.
type ContextState struct {
	CID    int
	Active bool
}

type CGACTParams struct {
	Active bool
	CID    int
}

type CGACTResult struct {
	Contexts []ContextState
}

// Context returns the state of cid.
func (r CGACTResult) Context(cid int) (ContextState, bool) {
	for _, c := range r.Contexts {
		if c.CID == cid {
			return c, true
		}
	}
	return ContextState{}, false
}

// CGACT activates or deactivates PDP contexts. The vendor allows 150s;
// activation either succeeds or fails well within 20s on the networks the
// driver targets.
var CGACT = &at.Descriptor{
	Name:        "CGACT",
	Description: "Activate or Deactivate PDP Context",
	Timeout:     20 * time.Second,
	Variants: map[at.Variant]at.Handler{
		at.Read: {
			Shape: at.DataOptional,
			Parse: at.ParseAs(func(r at.Response, out *CGACTResult) error {
				for _, p := range r.Payloads("+CGACT:") {
					f := at.SplitFields(p)
					cid, ok := intField(f, 0, "cid", between(CIDMin, CIDMax))
					if !ok {
						continue
					}
					state, ok := intField(f, 1, "state", between(0, 1))
					if !ok {
						continue
					}
					out.Contexts = append(out.Contexts, ContextState{CID: cid, Active: state == 1})
				}
				return nil
			}),
		},
		at.Write: {
			Shape: at.SimpleOnly,
			Format: at.FormatAs(func(w *at.ParamWriter, p CGACTParams) {
				w.Bool(p.Active)
				w.Int("cid", p.CID, CIDMin, CIDMax)
			}),
		},
	},
}

// PDPType is the packet data protocol of a context.
type PDPType int

const (
	PDPIP PDPType = iota
	PDPPPP
	PDPIPv6
	PDPIPv4v6
	PDPNonIP
)

var pdpTypeNames = [...]string{
	PDPIP:     "IP",
	PDPPPP:    "PPP",
	PDPIPv6:   "IPV6",
	PDPIPv4v6: "IPV4V6",
	PDPNonIP:  "Non-IP",
}

// String returns the type as the modem spells it.
func (t PDPType) String() string {
	if t >= 0 && int(t) < len(pdpTypeNames) {
		return pdpTypeNames[t]
	}
	return fmt.Sprintf("PDPType(%d)", int(t))
}

// ParsePDPType maps the modem's spelling back to a PDPType.
func ParsePDPType(s string) (PDPType, bool) {
	for i, name := range pdpTypeNames {
		if name == s {
			return PDPType(i), true
		}
	}
	return 0, false
}

const (
	apnMaxLen     = 99
	pdpAddrMaxLen = 63
)

// CGDCONTParams defines context CID. With Undefine set only the CID is sent,
// which makes the context undefined. Address and compression settings are
// optional; omitted ones are sent empty or as 0 (off).
type CGDCONTParams struct {
	CID      int
	Type     PDPType
	APN      string
	Address  string
	DataComp int // 0 off, 1 on, 2 V.42bis
	HeadComp int // 0 off, 1 on, 2 RFC1144, 3 RFC2507, 4 RFC3095
	Undefine bool
}

// Present flags of PDPContext.
const (
	ContextHasType at.Fields = 1 << iota
	ContextHasAPN
	ContextHasAddress
	ContextHasDataComp
	ContextHasHeadComp
	ContextHasIPv4Alloc
)

// PDPContext is one line of the AT+CGDCONT read reply.
type PDPContext struct {
	CID       int
	Type      PDPType
	APN       string
	Address   string
	DataComp  int
	HeadComp  int
	IPv4Alloc int
	Present   at.Fields
}

type CGDCONTResult struct {
	Contexts []PDPContext
}

// Context returns the definition of cid.
func (r CGDCONTResult) Context(cid int) (PDPContext, bool) {
	for _, c := range r.Contexts {
		if c.CID == cid {
			return c, true
		}
	}
	return PDPContext{}, false
}

// CGDCONT defines PDP contexts. A modem with no context defined answers
// the read variant with OK alone.
var CGDCONT = &at.Descriptor{
	Name:        "CGDCONT",
	Description: "Define PDP Context",
	Timeout:     300 * time.Millisecond,
	Variants: map[at.Variant]at.Handler{
		at.Read: {
			Shape: at.DataOptional,
			Parse: at.ParseAs(func(r at.Response, out *CGDCONTResult) error {
				for _, p := range r.Payloads("+CGDCONT:") {
					ctx, ok := parsePDPContext(at.SplitFields(p))
					if !ok {
						slog.Warn("Skipping invalid PDP context line", "line", p)
						continue
					}
					out.Contexts = append(out.Contexts, ctx)
				}
				return nil
			}),
		},
		at.Write: {
			Shape: at.SimpleOnly,
			Format: at.FormatAs(func(w *at.ParamWriter, p CGDCONTParams) {
				w.Int("cid", p.CID, CIDMin, CIDMax)
				if p.Undefine {
					return
				}
				w.Check(p.Type >= PDPIP && p.Type <= PDPNonIP, "unknown pdp type %d", int(p.Type))
				w.Quoted("pdp type", p.Type.String(), 8)
				w.QuotedOrEmpty("apn", p.APN, apnMaxLen)
				w.QuotedOrEmpty("pdp address", p.Address, pdpAddrMaxLen)
				w.Int("data compression", p.DataComp, 0, 2)
				w.Int("header compression", p.HeadComp, 0, 4)
			}),
		},
	},
}

func parsePDPContext(f []at.Field) (PDPContext, bool) {
	var c PDPContext
	cid, ok := intField(f, 0, "cid", between(CIDMin, CIDMax))
	if !ok {
		return c, false
	}
	c.CID = cid
	if s, ok := quotedField(f, 1, "pdp type"); ok {
		if t, ok := ParsePDPType(s); ok {
			c.Type = t
			c.Present.Set(ContextHasType)
		}
	}
	if s, ok := quotedField(f, 2, "apn"); ok {
		c.APN = s
		c.Present.Set(ContextHasAPN)
	}
	if s, ok := quotedField(f, 3, "pdp address"); ok {
		c.Address = s
		c.Present.Set(ContextHasAddress)
	}
	if v, ok := intField(f, 4, "data compression", between(0, 2)); ok {
		c.DataComp = v
		c.Present.Set(ContextHasDataComp)
	}
	if v, ok := intField(f, 5, "header compression", between(0, 4)); ok {
		c.HeadComp = v
		c.Present.Set(ContextHasHeadComp)
	}
	if v, ok := intField(f, 6, "ipv4 address allocation", between(0, 0)); ok {
		c.IPv4Alloc = v
		c.Present.Set(ContextHasIPv4Alloc)
	}
	return c, true
}

type CGPADDRParams struct {
	CID int
}

type CGPADDRResult struct {
	CID     int
	Address string
}

// CGPADDR shows the address assigned to a PDP context.
var CGPADDR = &at.Descriptor{
	Name:        "CGPADDR",
	Description: "Show PDP Address",
	Timeout:     300 * time.Millisecond,
	Variants: map[at.Variant]at.Handler{
		at.Write: {
			Shape: at.DataRequired,
			Format: at.FormatAs(func(w *at.ParamWriter, p CGPADDRParams) {
				w.Int("cid", p.CID, CIDMin, CIDMax)
			}),
			Parse: at.ParseAs(func(r at.Response, out *CGPADDRResult) error {
				f, err := fields(r, "+CGPADDR:")
				if err != nil {
					return err
				}
				if out.CID, err = leadingInt(f, "cid", between(CIDMin, CIDMax)); err != nil {
					return err
				}
				// A context without an address reports only the cid.
				if len(f) > 1 {
					out.Address = f[1].Text()
				}
				return nil
			}),
		},
	},
}
