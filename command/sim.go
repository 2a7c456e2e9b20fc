package command

import (
	"fmt"
	"time"

	"i4.energy/across/bg95/at"
)

// SIMStatus is the password state reported by AT+CPIN?.
type SIMStatus int

const (
	SIMReady SIMStatus = iota
	SIMPIN
	SIMPUK
	SIMPIN2
	SIMPUK2
	SIMNetPIN
	SIMNetPUK
	SIMNetSubPIN
	SIMNetSubPUK
	SIMProviderPIN
	SIMProviderPUK
	SIMCorpPIN
	SIMCorpPUK
	SIMUnknown
)

var simStatusNames = [...]string{
	SIMReady:       "READY",
	SIMPIN:         "SIM PIN",
	SIMPUK:         "SIM PUK",
	SIMPIN2:        "SIM PIN2",
	SIMPUK2:        "SIM PUK2",
	SIMNetPIN:      "PH-NET PIN",
	SIMNetPUK:      "PH-NET PUK",
	SIMNetSubPIN:   "PH-NETSUB PIN",
	SIMNetSubPUK:   "PH-NETSUB PUK",
	SIMProviderPIN: "PH-SP PIN",
	SIMProviderPUK: "PH-SP PUK",
	SIMCorpPIN:     "PH-CORP PIN",
	SIMCorpPUK:     "PH-CORP PUK",
	SIMUnknown:     "UNKNOWN",
}

// String returns the status as the modem spells it.
func (s SIMStatus) String() string {
	if s >= 0 && int(s) < len(simStatusNames) {
		return simStatusNames[s]
	}
	return fmt.Sprintf("SIMStatus(%d)", int(s))
}

// ParseSIMStatus maps the modem's spelling back to a SIMStatus.
func ParseSIMStatus(s string) (SIMStatus, bool) {
	for i, name := range simStatusNames {
		if name == s {
			return SIMStatus(i), true
		}
	}
	return SIMUnknown, false
}

// CPINParams carries a PIN, or a PUK together with the new PIN.
type CPINParams struct {
	PIN    string
	NewPIN string
}

type CPINResult struct {
	Status SIMStatus
}

// CPIN queries the SIM password state and enters PIN/PUK codes.
var CPIN = &at.Descriptor{
	Name:        "CPIN",
	Description: "Enter PIN",
	Timeout:     5 * time.Second,
	Variants: map[at.Variant]at.Handler{
		at.Test: {Shape: at.SimpleOnly},
		at.Read: {
			Shape: at.DataRequired,
			Parse: at.ParseAs(func(r at.Response, out *CPINResult) error {
				f, err := fields(r, "+CPIN:")
				if err != nil {
					return err
				}
				if len(f) == 0 {
					return fmt.Errorf("status missing: %w", at.ErrInvalidResponse)
				}
				st, ok := ParseSIMStatus(f[0].Text())
				if !ok {
					return fmt.Errorf("status %q: %w", string(f[0]), at.ErrInvalidResponse)
				}
				out.Status = st
				return nil
			}),
		},
		at.Write: {
			Shape: at.SimpleOnly,
			Format: at.FormatAs(func(w *at.ParamWriter, p CPINParams) {
				w.Quoted("pin", p.PIN, 8)
				if p.NewPIN != "" {
					w.Quoted("new pin", p.NewPIN, 8)
				}
			}),
		},
	},
}
