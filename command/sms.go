package command

import (
	"time"

	"i4.energy/across/bg95/at"
)

type CMGSParams struct {
	// Recipient in international format, e.g. "+1234567890".
	Recipient string
}

type CMGSResult struct {
	// Reference is the message reference assigned by the network.
	Reference int
	Present   at.Fields
}

// CMGS sends a text mode SMS. The write variant answers with the data input
// prompt; the message body follows terminated by Ctrl-Z.
var CMGS = &at.Descriptor{
	Name:        "CMGS",
	Description: "Send Message",
	Timeout:     120 * time.Second,
	Variants: map[at.Variant]at.Handler{
		at.Write: {
			Shape: at.DataRequired,
			Format: at.FormatAs(func(w *at.ParamWriter, p CMGSParams) {
				w.Quoted("recipient", p.Recipient, 20)
			}),
			Parse: at.ParseAs(func(r at.Response, out *CMGSResult) error {
				f, err := fields(r, "+CMGS:")
				if err != nil {
					return err
				}
				v, ok, err := leadingValue(f, "reference", between(0, 255))
				if ok {
					out.Reference = v
					out.Present.Set(ValueKnown)
				}
				return err
			}),
		},
	},
}
