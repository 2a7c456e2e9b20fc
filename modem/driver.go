package modem

import (
	"context"
	"fmt"

	"i4.energy/across/bg95/at"
	"i4.energy/across/bg95/command"
)

// SIMStatus reports the SIM password state.
func (m *Modem) SIMStatus(ctx context.Context) (command.SIMStatus, error) {
	r, err := Query[command.CPINResult](ctx, m, command.CPIN, at.Read, nil)
	if err != nil {
		return command.SIMUnknown, err
	}
	return r.Status, nil
}

// SignalQuality returns the AT+CSQ signal report. An RSSI the firmware
// reports out of range leaves SignalRSSI unset.
func (m *Modem) SignalQuality(ctx context.Context) (command.Signal, error) {
	r, err := Query[command.Signal](ctx, m, command.CSQ, at.Execute, nil)
	if err != nil {
		return command.Signal{}, err
	}
	return *r, nil
}

// SignalStrength returns the per access technology report of AT+QCSQ.
func (m *Modem) SignalStrength(ctx context.Context) (command.SignalStrength, error) {
	r, err := Query[command.SignalStrength](ctx, m, command.QCSQ, at.Execute, nil)
	if err != nil {
		return command.SignalStrength{}, err
	}
	return *r, nil
}

// CurrentOperator returns the registered operator.
func (m *Modem) CurrentOperator(ctx context.Context) (command.Operator, error) {
	r, err := Query[command.Operator](ctx, m, command.COPS, at.Read, nil)
	if err != nil {
		return command.Operator{}, err
	}
	return *r, nil
}

// SoftRestart cycles the radio through minimum functionality.
func (m *Modem) SoftRestart(ctx context.Context) error {
	if err := m.SendCommand(ctx, command.CFUN, at.Write, command.CFUNParams{Fun: command.FunMinimum}, nil); err != nil {
		return fmt.Errorf("radio off: %w", err)
	}
	if err := m.SendCommand(ctx, command.CFUN, at.Write, command.CFUNParams{Fun: command.FunFull}, nil); err != nil {
		return fmt.Errorf("radio on: %w", err)
	}
	m.log.Info("Radio restarted")
	return nil
}

// AttachPacketDomain attaches to the packet domain service, or detaches when
// attach is false.
func (m *Modem) AttachPacketDomain(ctx context.Context, attach bool) error {
	return m.SendCommand(ctx, command.CGATT, at.Write, command.CGATTParams{Attach: attach}, nil)
}

// DefinePDPContext defines context cid with the given APN.
func (m *Modem) DefinePDPContext(ctx context.Context, cid int, typ command.PDPType, apn string) error {
	params := command.CGDCONTParams{CID: cid, Type: typ, APN: apn}
	if err := m.SendCommand(ctx, command.CGDCONT, at.Write, params, nil); err != nil {
		return fmt.Errorf("define PDP context %d: %w", cid, err)
	}
	return nil
}

// PDPContexts lists the defined contexts.
func (m *Modem) PDPContexts(ctx context.Context) ([]command.PDPContext, error) {
	r, err := Query[command.CGDCONTResult](ctx, m, command.CGDCONT, at.Read, nil)
	if err != nil {
		return nil, err
	}
	return r.Contexts, nil
}

// ActivatePDPContext activates or deactivates context cid.
func (m *Modem) ActivatePDPContext(ctx context.Context, cid int, active bool) error {
	params := command.CGACTParams{Active: active, CID: cid}
	if err := m.SendCommand(ctx, command.CGACT, at.Write, params, nil); err != nil {
		return fmt.Errorf("activate PDP context %d: %w", cid, err)
	}
	return nil
}

// IsPDPContextActive reports whether context cid is active. A context the
// modem does not list is inactive.
func (m *Modem) IsPDPContextActive(ctx context.Context, cid int) (bool, error) {
	r, err := Query[command.CGACTResult](ctx, m, command.CGACT, at.Read, nil)
	if err != nil {
		return false, err
	}
	c, ok := r.Context(cid)
	return ok && c.Active, nil
}

// PDPAddress returns the address assigned to context cid, or "" when it has
// none.
func (m *Modem) PDPAddress(ctx context.Context, cid int) (string, error) {
	r, err := Query[command.CGPADDRResult](ctx, m, command.CGPADDR, at.Write, command.CGPADDRParams{CID: cid})
	if err != nil {
		return "", err
	}
	return r.Address, nil
}
